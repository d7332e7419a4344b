// Package noise produces placeholder frames of normalised Gaussian noise.
package noise
