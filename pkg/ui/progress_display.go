package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a one-line progress bar for the frames of a cycle
// plus a short summary per cycle
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	cycle     int
	prompt    string
	total     int
	done      int
	bytes     int64
	errors    int
	startTime time.Time
	isDebug   bool

	// loop totals
	succeeded int
	failed    int
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	if out == nil {
		out = Output
	}
	return &ProgressDisplay{out: out, isDebug: debug}
}

// StartCycle resets the frame counters for a new cycle
func (p *ProgressDisplay) StartCycle(prompt string, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycle++
	p.prompt = prompt
	p.total = totalFrames
	p.done = 0
	p.bytes = 0
	p.errors = 0
	p.startTime = time.Now()

	fmt.Fprintf(p.out, "%s #%d %s\n", Magenta("[CYCLE]"), p.cycle, Dim(truncate(prompt, 60)))
}

// FrameDone records a saved frame
func (p *ProgressDisplay) FrameDone(index int, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.bytes += size
	if p.isDebug {
		fmt.Fprintf(p.out, "%s frame %d • %s\n", Green("✓"), index, FormatBytes(size))
		return
	}
	p.printProgress()
}

// FrameFailed records a failed frame
func (p *ProgressDisplay) FrameFailed(index int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
	if p.isDebug {
		fmt.Fprintf(p.out, "%s frame %d - %v\n", Red("✗"), index, err)
		return
	}
	p.printProgress()
}

// Bar returns the progress bar for the current cycle
func (p *ProgressDisplay) Bar() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar()
}

func (p *ProgressDisplay) bar() string {
	const width = 20
	filled := 0
	if p.total > 0 {
		filled = p.done * width / p.total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("[%s] %d/%d • %s • %s",
		p.bar(),
		p.done,
		p.total,
		FormatBytes(p.bytes),
		FormatDuration(time.Since(p.startTime)),
	)
	if p.errors > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.errors))
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// FinishCycle prints the outcome of the current cycle
func (p *ProgressDisplay) FinishCycle(video string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isDebug {
		fmt.Fprintln(p.out)
	}
	elapsed := FormatDuration(time.Since(p.startTime))
	if err != nil {
		p.failed++
		fmt.Fprintf(p.out, "%s cycle #%d failed after %s: %v\n", Red("✗"), p.cycle, elapsed, err)
		return
	}
	p.succeeded++
	fmt.Fprintf(p.out, "%s %s • %d frames • %s\n", Green("✓"), video, p.done, elapsed)
}

// Totals returns the number of succeeded and failed cycles
func (p *ProgressDisplay) Totals() (succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed
}

// Waiting prints the pause before the next cycle
func (p *ProgressDisplay) Waiting(d time.Duration) {
	fmt.Fprintf(p.out, "%s next cycle in %s\n", Dim("…"), FormatDuration(d))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
