// Package storage manages the ephemeral directory of numbered frames that a
// production cycle writes and the encoder consumes.
//
// Frames are written atomically through a temporary file and a rename, so a
// crash never leaves a truncated frame under its final name. The naming
// pattern (frame_%05d.png by default) is the single source for both
// FramePath and InputPattern, which keeps the encoder glob in step with the
// files on disk.
//
//	store, err := storage.NewFrameStore("frames_20240301-120000", storage.DefaultPattern, log)
//	path, size, err := store.SaveFrame(0, bytes.NewReader(png))
//	n, _ := store.Count()
//	report := store.Clean()
package storage
