package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ytshorts/pkg/logger"
)

func newStore(t *testing.T) *FrameStore {
	t.Helper()
	store, err := NewFrameStore(filepath.Join(t.TempDir(), "frames_20240301-120000"), DefaultPattern, logger.NewNopLogger())
	require.NoError(t, err)
	return store
}

func TestNewFrameStoreCreatesDir(t *testing.T) {
	store := newStore(t)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFrameStoreRejectsBadPattern(t *testing.T) {
	for _, pattern := range []string{"frame.png", "frame_%d.png", "frame_%05d_%05d.png"} {
		_, err := NewFrameStore(t.TempDir(), pattern, logger.NewNopLogger())
		assert.Error(t, err, pattern)
	}
}

func TestFramePathAndInputPatternAgree(t *testing.T) {
	store := newStore(t)

	assert.Equal(t, filepath.Join(store.Dir(), "frame_00000.png"), store.FramePath(0))
	assert.Equal(t, filepath.Join(store.Dir(), "frame_00042.png"), store.FramePath(42))
	assert.Equal(t, filepath.Join(store.Dir(), "frame_%05d.png"), store.InputPattern())

	for _, i := range []int{0, 7, 59, 12345} {
		assert.Equal(t, store.FramePath(i), fmt.Sprintf(store.InputPattern(), i))
	}
}

func TestSaveFrameSequence(t *testing.T) {
	store := newStore(t)
	const count = 12

	for i := 0; i < count; i++ {
		path, size, err := store.SaveFrame(i, bytes.NewReader([]byte(fmt.Sprintf("frame-%d", i))))
		require.NoError(t, err)
		assert.Equal(t, store.FramePath(i), path)
		assert.Equal(t, int64(len(fmt.Sprintf("frame-%d", i))), size)
	}

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, count, n)

	frames, err := store.Frames()
	require.NoError(t, err)
	require.Len(t, frames, count)
	for i, p := range frames {
		assert.Equal(t, store.FramePath(i), p)
	}

	matches, err := filepath.Glob(filepath.Join(store.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files must not survive a save")
}

func TestSaveFrameOverwrites(t *testing.T) {
	store := newStore(t)

	_, _, err := store.SaveFrame(3, strings.NewReader("old"))
	require.NoError(t, err)
	_, _, err = store.SaveFrame(3, strings.NewReader("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(store.FramePath(3))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestSaveFrameNegativeIndex(t *testing.T) {
	store := newStore(t)
	_, _, err := store.SaveFrame(-1, strings.NewReader("x"))
	assert.Error(t, err)
}

func TestCountIgnoresForeignFiles(t *testing.T) {
	store := newStore(t)

	_, _, err := store.SaveFrame(0, strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "frame_1.png"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "frame_00009.png"), 0755))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCleanRemovesAllRegularFiles(t *testing.T) {
	store := newStore(t)

	for i := 0; i < 5; i++ {
		_, _, err := store.SaveFrame(i, strings.NewReader("png"))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "stray.log"), []byte("x"), 0644))
	sub := filepath.Join(store.Dir(), "keep")
	require.NoError(t, os.Mkdir(sub, 0755))

	report := store.Clean()
	assert.Len(t, report.Removed, 6)
	assert.Empty(t, report.Failed)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.Type().IsRegular(), "regular file %s survived cleanup", e.Name())
	}
	_, err = os.Stat(sub)
	assert.NoError(t, err, "subdirectories are left alone")
}

func TestCleanContinuesPastFailures(t *testing.T) {
	store := newStore(t)
	tl := logger.NewTestLogger()
	store.log = tl

	for i := 0; i < 4; i++ {
		_, _, err := store.SaveFrame(i, strings.NewReader("png"))
		require.NoError(t, err)
	}

	locked := store.FramePath(1)
	store.remove = func(path string) error {
		if path == locked {
			return errors.New("device busy")
		}
		return os.Remove(path)
	}

	report := store.Clean()
	assert.Len(t, report.Removed, 3)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, locked, report.Failed[0].Path)
	assert.True(t, tl.HasMessage("Failed to delete frame"))
}

func TestCleanMissingDir(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.RemoveAll(store.Dir()))

	report := store.Clean()
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Failed)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCleanRemovesLinksToFiles(t *testing.T) {
	store := newStore(t)
	outside := t.TempDir()

	target := filepath.Join(outside, "render.png")
	require.NoError(t, os.WriteFile(target, []byte("png"), 0644))
	require.NoError(t, os.Symlink(target, store.FramePath(0)))
	require.NoError(t, os.Symlink(outside, filepath.Join(store.Dir(), "linked_dir")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.png"), filepath.Join(store.Dir(), "dangling.png")))

	report := store.Clean()
	assert.Equal(t, []string{store.FramePath(0)}, report.Removed)
	assert.Empty(t, report.Failed)

	_, err := os.Lstat(store.FramePath(0))
	assert.True(t, os.IsNotExist(err), "link should be removed")
	_, err = os.Stat(target)
	assert.NoError(t, err, "link target must survive")
	_, err = os.Lstat(filepath.Join(store.Dir(), "linked_dir"))
	assert.NoError(t, err, "links to directories are left alone")
}
