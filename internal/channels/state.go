// Package channels owns the per-channel rendering parameters of the viewer.
//
// Channels are stored as co-indexed columns. Position is the only addressing
// key for mutations; IDs exist so external consumers can key channels stably
// across reorders. Every column always has the same length.
package channels

import (
	"github.com/google/uuid"

	"github.com/jask/pyramidview/internal/dims"
)

// MaxChannels is the channel count at which adding is disabled.
const MaxChannels = 6

// Color is an RGB triple, 0-255 per component.
type Color [3]uint8

// Range is a [low, high] intensity pair.
type Range [2]float64

var (
	White = Color{255, 255, 255}

	// InitialSlider is the slider range of new and reset channels.
	InitialSlider = Range{0, 20000}

	// DefaultDomain scopes the slider of a channel with no known statistics.
	DefaultDomain = Range{0, 65535}

	// Palette colors channels by position after a reset.
	Palette = []Color{
		{0, 0, 255},
		{0, 255, 0},
		{255, 0, 255},
		{255, 255, 0},
		{255, 128, 0},
		{0, 255, 255},
		{255, 255, 255},
		{255, 0, 0},
	}
)

// PaletteColor returns the palette entry for position i, wrapping around.
func PaletteColor(i int) Color {
	return Palette[i%len(Palette)]
}

// State is the full channel set.
type State struct {
	Selections []dims.Selection
	Sliders    []Range
	Colors     []Color
	IsOn       []bool
	IDs        []string
	Domains    []Range
}

// Len is the number of channels.
func (s State) Len() int { return len(s.IDs) }

// Consistent reports whether every column has the same length.
func (s State) Consistent() bool {
	n := len(s.IDs)
	return len(s.Selections) == n && len(s.Sliders) == n && len(s.Colors) == n &&
		len(s.IsOn) == n && len(s.Domains) == n
}

// Clone deep-copies s.
func (s State) Clone() State {
	out := State{
		Selections: make([]dims.Selection, len(s.Selections)),
		Sliders:    append([]Range(nil), s.Sliders...),
		Colors:     append([]Color(nil), s.Colors...),
		IsOn:       append([]bool(nil), s.IsOn...),
		IDs:        append([]string(nil), s.IDs...),
		Domains:    append([]Range(nil), s.Domains...),
	}
	for i, sel := range s.Selections {
		out.Selections[i] = sel.Clone()
	}
	return out
}

// Channel is the row view of one position.
type Channel struct {
	ID        string
	Selection dims.Selection
	Color     Color
	Slider    Range
	Domain    Range
	IsOn      bool
}

// At returns the channel at position i. It panics when i is out of range.
func (s State) At(i int) Channel {
	return Channel{
		ID:        s.IDs[i],
		Selection: s.Selections[i],
		Color:     s.Colors[i],
		Slider:    s.Sliders[i],
		Domain:    s.Domains[i],
		IsOn:      s.IsOn[i],
	}
}

var newID = uuid.NewString
