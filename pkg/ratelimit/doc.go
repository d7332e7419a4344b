// Package ratelimit paces outgoing text-to-image requests.
//
// TokenBucket holds a fixed number of tokens that are restored all at once
// when the refill period elapses. PerMinute derives the bucket from a
// requests-per-minute budget and a burst size:
//
//	limiter := ratelimit.PerMinute(30, 1) // one request every two seconds
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // context cancelled while waiting
//	}
//
// Unlimited satisfies Limiter without ever blocking and is used when rate
// limiting is switched off.
package ratelimit
