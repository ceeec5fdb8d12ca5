// Package synthetic generates deterministic in-memory images for tests and
// offline catalog sources.
package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

// Synthetic is an in-memory pyramid whose planes are generated on demand.
// It satisfies loader.Loader and loader.PlaneReader.
type Synthetic struct {
	Meta  loader.Metadata
	Seed  int64
	reads atomic.Int64
}

// Reads counts ReadPlane calls.
func (s *Synthetic) Reads() int64 { return s.reads.Load() }

func (s *Synthetic) Metadata() loader.Metadata { return s.Meta }

// ReadPlane returns a deterministic plane for sel at level. Values grow with
// the channel-axis index so channels have distinct statistics.
func (s *Synthetic) ReadPlane(ctx context.Context, sel dims.Selection, level int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if level < 0 || level >= max(s.Meta.NumLevels, 1) {
		return nil, fmt.Errorf("synthetic: level %d out of range", level)
	}
	s.reads.Add(1)

	w := max(s.Meta.Width>>level, 1)
	h := max(s.Meta.Height>>level, 1)
	base := 0.0
	if axis, ok := dims.ChannelAxis(s.Meta.Dimensions); ok {
		base = float64(sel[axis.Field]) * 1000
	}
	rng := rand.New(rand.NewSource(s.Seed + int64(sel["z"])))
	plane := make([]float64, w*h)
	for i := range plane {
		plane[i] = base + float64(i%w) + rng.Float64()
	}
	return plane, nil
}

// Options shape a synthetic image.
type Options struct {
	URL       string
	Channels  []string
	Z         int
	T         int
	Width     int
	Height    int
	NumLevels int
	RGB       bool
}

// New builds a Synthetic image with channel/z/time dimensions.
func New(opts Options) *Synthetic {
	if opts.Width == 0 {
		opts.Width = 64
	}
	if opts.Height == 0 {
		opts.Height = 48
	}
	if opts.NumLevels == 0 {
		opts.NumLevels = 1
	}
	var dimensions []dims.Dimension
	if len(opts.Channels) > 0 {
		dimensions = append(dimensions, dims.Labeled("channel", opts.Channels...))
	}
	if opts.Z > 0 {
		dimensions = append(dimensions, dims.Range("z", opts.Z))
	}
	if opts.T > 0 {
		dimensions = append(dimensions, dims.Range("time", opts.T))
	}
	dtype := "Uint16"
	if opts.RGB {
		dtype = "Uint8"
	}
	return &Synthetic{
		Meta: loader.Metadata{
			URL:        opts.URL,
			Dimensions: dimensions,
			IsRGB:      opts.RGB,
			IsPyramid:  opts.NumLevels > 1,
			NumLevels:  opts.NumLevels,
			Width:      opts.Width,
			Height:     opts.Height,
			DType:      dtype,
		},
		Seed: 1,
	}
}

// ZarrConstructor builds synthetic loaders from catalog info, so the
// "static" source type works without network access.
func ZarrConstructor(_ context.Context, info loader.Info) (loader.Loader, error) {
	s := New(Options{URL: info.URL, NumLevels: 4, Width: 2048, Height: 1536, RGB: info.IsRGB})
	s.Meta.Dimensions = info.Dimensions
	s.Meta.IsPyramid = info.IsPyramid
	if !info.IsPyramid {
		s.Meta.NumLevels = 1
	}
	return s, nil
}
