package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	errs "ytshorts/pkg/errors"
	"ytshorts/pkg/logger"
)

// DefaultPattern is the frame naming scheme shared with the encoder input
const DefaultPattern = "frame_%05d.png"

var verbRe = regexp.MustCompile(`%0([1-9])d`)

// FrameStore manages one directory of sequentially numbered frames
type FrameStore struct {
	dir     string
	pattern string
	match   *regexp.Regexp
	log     logger.Logger
	remove  func(string) error
	mu      sync.Mutex
}

// FailedRemoval records a file Clean could not delete
type FailedRemoval struct {
	Path string
	Err  error
}

// CleanupReport summarizes a Clean call
type CleanupReport struct {
	Removed []string
	Failed  []FailedRemoval
}

// NewFrameStore creates dir if needed and returns a store naming frames with pattern.
// The pattern must contain exactly one zero-padded integer verb such as %05d.
func NewFrameStore(dir, pattern string, log logger.Logger) (*FrameStore, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	match, err := patternRegexp(pattern)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create frame directory %s", dir)
	}

	return &FrameStore{
		dir:     dir,
		pattern: pattern,
		match:   match,
		log:     log.WithField("frame_dir", dir),
		remove:  os.Remove,
	}, nil
}

// patternRegexp turns "frame_%05d.png" into ^frame_(\d{5,})\.png$
func patternRegexp(pattern string) (*regexp.Regexp, error) {
	locs := verbRe.FindAllStringSubmatchIndex(pattern, -1)
	if len(locs) != 1 {
		return nil, fmt.Errorf("frame pattern %q must contain exactly one zero-padded integer verb", pattern)
	}
	loc := locs[0]
	prefix, width, suffix := pattern[:loc[0]], pattern[loc[2]:loc[3]], pattern[loc[1]:]
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d{` + width + `,})` + regexp.QuoteMeta(suffix) + "$"), nil
}

// Dir returns the frame directory
func (s *FrameStore) Dir() string {
	return s.dir
}

// FramePath returns the path of the frame with the given index
func (s *FrameStore) FramePath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf(s.pattern, index))
}

// InputPattern returns the printf-style path that the encoder reads frames from.
// It is built from the same pattern FramePath uses.
func (s *FrameStore) InputPattern() string {
	return filepath.Join(s.dir, s.pattern)
}

// SaveFrame writes r to the frame at index atomically and returns its path and size
func (s *FrameStore) SaveFrame(index int, r io.Reader) (string, int64, error) {
	if index < 0 {
		return "", 0, fmt.Errorf("invalid frame index %d", index)
	}
	filename := s.FramePath(index)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create temporary file")
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to write frame %d", index)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", 0, errs.Wrap(errs.ErrorTypeFilesystem, closeErr, "failed to close frame %d", index)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to rename temporary file")
	}

	return filename, n, nil
}

// Frames returns the paths of all regular files matching the pattern, ordered by index
func (s *FrameStore) Frames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to read frame directory")
	}

	type frame struct {
		index int
		path  string
	}
	var frames []frame
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		m := s.match.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, frame{index: idx, path: filepath.Join(s.dir, entry.Name())})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })

	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}

// Count returns the number of frames currently stored
func (s *FrameStore) Count() (int, error) {
	frames, err := s.Frames()
	return len(frames), err
}

// Clean deletes every regular file in the frame directory. Subdirectories are
// left alone. A failed deletion is logged and recorded in the report but
// never stops the sweep. A missing directory is not an error.
func (s *FrameStore) Clean() CleanupReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report CleanupReport

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Failed to list frame directory for cleanup")
			report.Failed = append(report.Failed, FailedRemoval{Path: s.dir, Err: err})
		}
		return report
	}

	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		// Links count when they resolve to a regular file; the link itself is removed
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := s.remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.log.WithError(err).WarnWithFields("Failed to delete frame", map[string]interface{}{
				"path": path,
			})
			report.Failed = append(report.Failed, FailedRemoval{Path: path, Err: err})
			continue
		}
		report.Removed = append(report.Removed, path)
	}

	return report
}
