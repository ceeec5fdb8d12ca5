// Package stats computes the initial intensity domain and slider range of each
// channel of a freshly loaded image.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

// Quantiles used for automatic slider placement.
const (
	LowCutoff  = 0.0005
	HighCutoff = 0.9995
)

// ChannelStats describes one selection's intensities.
type ChannelStats struct {
	Domain      channels.Range
	AutoSliders channels.Range
}

// Service returns one ChannelStats per selection, in order.
type Service interface {
	ChannelStats(ctx context.Context, l loader.Loader, selections []dims.Selection) ([]ChannelStats, error)
}

// Sampler reads the coarsest pyramid level when the loader can hand back
// planes, and falls back to the dtype range otherwise.
type Sampler struct{}

func (Sampler) ChannelStats(ctx context.Context, l loader.Loader, selections []dims.Selection) ([]ChannelStats, error) {
	meta := l.Metadata()
	reader, ok := l.(loader.PlaneReader)
	out := make([]ChannelStats, len(selections))
	for i, sel := range selections {
		if !ok {
			d := DTypeDomain(meta.DType)
			out[i] = ChannelStats{Domain: d, AutoSliders: d}
			continue
		}
		plane, err := reader.ReadPlane(ctx, sel, max(meta.NumLevels-1, 0))
		if err != nil {
			return nil, fmt.Errorf("read plane %s: %w", sel.Key(), err)
		}
		out[i] = Compute(plane)
	}
	return out, nil
}

// Compute derives domain and auto sliders from raw plane values.
func Compute(plane []float64) ChannelStats {
	if len(plane) == 0 {
		return ChannelStats{Domain: channels.Range{0, 0}, AutoSliders: channels.Range{0, 0}}
	}
	sorted := append([]float64(nil), plane...)
	sort.Float64s(sorted)
	return ChannelStats{
		Domain: channels.Range{floats.Min(sorted), floats.Max(sorted)},
		AutoSliders: channels.Range{
			stat.Quantile(LowCutoff, stat.Empirical, sorted, nil),
			stat.Quantile(HighCutoff, stat.Empirical, sorted, nil),
		},
	}
}

// DTypeDomain is the representable range of a pixel type.
func DTypeDomain(dtype string) channels.Range {
	switch strings.ToLower(strings.TrimLeft(dtype, "<>|=")) {
	case "uint8", "u1":
		return channels.Range{0, 255}
	case "int8", "i1":
		return channels.Range{-128, 127}
	case "uint16", "u2":
		return channels.Range{0, 65535}
	case "int16", "i2":
		return channels.Range{-32768, 32767}
	case "uint32", "u4":
		return channels.Range{0, 4294967295}
	case "int32", "i4":
		return channels.Range{-2147483648, 2147483647}
	case "float", "float32", "f4", "double", "float64", "f8":
		return channels.Range{0, 1}
	default:
		return channels.DefaultDomain
	}
}
