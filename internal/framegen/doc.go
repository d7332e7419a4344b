// Package framegen drives a Generator over frame indices with a small worker
// pool, pacing requests through a rate limiter and retrying transient
// failures before each frame is handed to storage.
package framegen
