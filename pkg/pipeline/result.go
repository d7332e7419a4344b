package pipeline

import (
	"time"

	"ytshorts/pkg/history"
	"ytshorts/pkg/storage"
)

// CycleResult describes one generate, encode, cleanup cycle
type CycleResult struct {
	ID               string
	Prompt           string
	FrameDir         string
	VideoPath        string
	MetadataPath     string
	Status           string
	Err              error
	FramesRequested  int
	FramesGenerated  int
	VideoSize        int64
	Cleanup          storage.CleanupReport
	StartedAt        time.Time
	FinishedAt       time.Time
	GenerateDuration time.Duration
	EncodeDuration   time.Duration
}

// Duration returns the wall time of the cycle
func (r *CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether a video was produced
func (r *CycleResult) Succeeded() bool {
	return r.Status == history.StatusSuccess
}

// Entry converts the result into a history entry
func (r *CycleResult) Entry() *history.Entry {
	e := &history.Entry{
		ID:              r.ID,
		Prompt:          r.Prompt,
		FrameDir:        r.FrameDir,
		Status:          r.Status,
		FramesRequested: r.FramesRequested,
		FramesGenerated: r.FramesGenerated,
		FramesRemoved:   len(r.Cleanup.Removed),
		VideoSize:       r.VideoSize,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
	if r.Succeeded() {
		e.VideoPath = r.VideoPath
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}
