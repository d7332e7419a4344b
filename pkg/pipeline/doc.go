// Package pipeline wires the frame generator, encoder and frame store into
// the production loop.
//
// A cycle creates a timestamped frame directory, generates the configured
// number of frames, encodes them into a timestamped video and then always
// empties the frame directory. Errors from generation or encoding end the
// cycle but never the loop; only cancellation of the context does.
package pipeline
