package page

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ytshorts/pkg/config"
)

func parse(t *testing.T, data []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	return doc
}

func TestRenderDefaultGolden(t *testing.T) {
	data, err := Render(DefaultOptions())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "animation", data)
}

func TestRenderStructure(t *testing.T) {
	data, err := Render(DefaultOptions())
	require.NoError(t, err)
	doc := parse(t, data)

	assert.Equal(t, "CSS Animation", doc.Find("title").Text())
	assert.Equal(t, "Hello, CSS Animation!", doc.Find("div.animated-title").Text())

	viewport, ok := doc.Find(`meta[name="viewport"]`).Attr("content")
	require.True(t, ok)
	assert.Equal(t, "width=1080, initial-scale=1.0", viewport)

	style := doc.Find("style").Text()
	assert.Contains(t, style, "@keyframes moveTitle")
	assert.Contains(t, style, "animation: moveTitle 5s linear infinite;")
	assert.Contains(t, style, "width: 1080px;")
	assert.Contains(t, style, "height: 1920px;")
	assert.Contains(t, style, "background-color: #000;")
	assert.Contains(t, style, "color: red;")
	assert.Contains(t, style, "color: blue;")
}

func TestRenderEscapesTitle(t *testing.T) {
	opts := DefaultOptions()
	opts.Title = `<script>alert("x")</script>`

	data, err := Render(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "<script>")

	doc := parse(t, data)
	assert.Equal(t, opts.Title, doc.Find("div.animated-title").Text())
	assert.Zero(t, doc.Find("script").Length())
}

func TestRenderFractionalDuration(t *testing.T) {
	opts := DefaultOptions()
	opts.Duration = 2500 * time.Millisecond

	data, err := Render(opts)
	require.NoError(t, err)
	assert.Contains(t, parse(t, data).Find("style").Text(), "moveTitle 2.5s linear")
}

func TestRenderRejectsZeroDuration(t *testing.T) {
	opts := DefaultOptions()
	opts.Duration = 0
	_, err := Render(opts)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Capture
	cfg.Title = "Subscribe!"
	cfg.FontSize = 90
	cfg.Width = 720
	cfg.Height = 1280

	opts := FromConfig(cfg)
	assert.Equal(t, "Subscribe!", opts.Title)
	assert.Equal(t, 90, opts.FontSize)
	assert.Equal(t, 720, opts.Width)
	assert.Equal(t, 1280, opts.Height)
	assert.Equal(t, "CSS Animation", opts.DocumentTitle)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page", "animation.html")

	url, err := WriteFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/page/animation.html"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := Render(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, want, data)
}
