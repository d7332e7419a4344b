// Package capture implements the capture command: render the animation page,
// hold it open in a headless browser and write a burst of frames.
package capture
