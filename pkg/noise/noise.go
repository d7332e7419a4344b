package noise

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"ytshorts/pkg/logger"
	"ytshorts/pkg/retry"
	"ytshorts/pkg/storage"
)

// DefaultPattern names placeholder frames
const DefaultPattern = "frame_%03d.png"

// Options controls noise frame generation
type Options struct {
	Width   int
	Height  int
	Pattern string
	Workers int
	// Pace is the delay between starting consecutive frames
	Pace time.Duration
	// Seed of zero picks a time-based seed
	Seed   int64
	Logger logger.Logger
}

// Frame fills a w x h RGB image with standard normal samples, one per
// channel, min-max normalised over the whole image to 0..255.
func Frame(rng *rand.Rand, w, h int) *image.RGBA {
	samples := make([]float64, w*h*3)
	for i := range samples {
		samples[i] = rng.NormFloat64()
	}
	values := Normalize(samples)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < w*h; p++ {
		img.Pix[p*4] = values[p*3]
		img.Pix[p*4+1] = values[p*3+1]
		img.Pix[p*4+2] = values[p*3+2]
		img.Pix[p*4+3] = 0xff
	}
	return img
}

// Normalize maps samples linearly so the minimum becomes 0 and the maximum
// 255, truncating toward zero. A constant input maps to all zeros.
func Normalize(samples []float64) []uint8 {
	out := make([]uint8, len(samples))
	if len(samples) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return out
	}

	for i, v := range samples {
		out[i] = uint8((v - lo) / span * 255)
	}
	return out
}

// Generate writes count noise frames into dir and returns their paths in
// index order. Encoding runs on up to Workers goroutines.
func Generate(ctx context.Context, dir string, count int, opts Options) ([]string, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	log := opts.Logger.WithField("component", "noise")

	store, err := storage.NewFrameStore(dir, opts.Pattern, log)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	paths := make([]string, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i := 0; i < count; i++ {
		if i > 0 && opts.Pace > 0 {
			if err := retry.Wait(gctx, opts.Pace); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}

		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
			img := Frame(rng, opts.Width, opts.Height)

			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return fmt.Errorf("encode frame %d: %w", i, err)
			}
			path, size, err := store.SaveFrame(i, &buf)
			if err != nil {
				return err
			}
			paths[i] = path
			logger.LogFrame(i, count, path, int(size))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.InfoWithFields("Noise frames written", map[string]interface{}{
		"dir":    dir,
		"frames": count,
	})
	return paths, nil
}
