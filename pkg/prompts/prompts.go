package prompts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"ytshorts/pkg/logger"
)

const reloadDebounce = 100 * time.Millisecond

// Source yields the prompt for the next cycle
type Source interface {
	Next() string
}

// Static always returns the same prompt
type Static string

// Next returns the prompt
func (s Static) Next() string { return string(s) }

// FileSource rotates through the prompts in a file, one per line.
// Blank lines and lines starting with # are skipped.
type FileSource struct {
	path     string
	fallback string
	logger   logger.Logger

	mu      sync.Mutex
	prompts []string
	next    int
}

// NewFileSource loads path. fallback is returned while the file holds no prompts.
func NewFileSource(path, fallback string, log logger.Logger) (*FileSource, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &FileSource{
		path:     path,
		fallback: fallback,
		logger:   log.WithField("component", "prompts"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse extracts prompts from file contents
func Parse(data []byte) []string {
	var prompts []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts
}

// Reload re-reads the file. On error the previous prompts are kept.
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read prompts file: %w", err)
	}
	prompts := Parse(data)

	s.mu.Lock()
	s.prompts = prompts
	if s.next >= len(prompts) {
		s.next = 0
	}
	s.mu.Unlock()

	s.logger.InfoWithFields("Prompts loaded", map[string]interface{}{
		"path":    s.path,
		"prompts": len(prompts),
	})
	return nil
}

// Next returns the next prompt in round-robin order
func (s *FileSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.prompts) == 0 {
		return s.fallback
	}
	p := s.prompts[s.next]
	s.next = (s.next + 1) % len(s.prompts)
	return p
}

// Len returns the number of loaded prompts
func (s *FileSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Watch reloads the file whenever it is written, created or renamed into
// place, until ctx is cancelled. The parent directory is watched so editors
// that replace the file are handled. onReload, if non-nil, runs after each
// successful reload.
func (s *FileSource) Watch(ctx context.Context, onReload func(n int)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerC = timer.C
			return
		}
		timer.Reset(reloadDebounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-timerC:
			timer, timerC = nil, nil
			if err := s.Reload(); err != nil {
				s.logger.WithError(err).Warn("Prompt reload failed")
				continue
			}
			if onReload != nil {
				onReload(s.Len())
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(watchErr).Error("Prompt watcher error")
		}
	}
}
