package dims

import (
	"errors"
	"fmt"
)

// MaxDefaultChannels caps the number of selections BuildDefaultSelection returns.
const MaxDefaultChannels = 4

// ErrDegenerateDimensions is returned when no non-global dimension has values
// to select from.
var ErrDegenerateDimensions = errors.New("dims: no selectable non-global dimension")

// DefaultGlobalSelection selects the midpoint of every global dimension.
func DefaultGlobalSelection(dimensions []Dimension) Selection {
	sel := Selection{}
	for _, d := range dimensions {
		if IsGlobal(d.Field) {
			sel[d.Field] = len(d.Values) / 2
		}
	}
	return sel
}

// ChannelAxis returns the first non-global dimension with values.
func ChannelAxis(dimensions []Dimension) (Dimension, bool) {
	for _, d := range dimensions {
		if !IsGlobal(d.Field) && len(d.Values) > 0 {
			return d, true
		}
	}
	return Dimension{}, false
}

// BuildDefaultSelection returns one selection per index of the channel axis,
// at most MaxDefaultChannels, each combined with the global midpoints.
func BuildDefaultSelection(dimensions []Dimension) ([]Selection, error) {
	axis, ok := ChannelAxis(dimensions)
	if !ok {
		return nil, ErrDegenerateDimensions
	}
	global := DefaultGlobalSelection(dimensions)
	n := min(MaxDefaultChannels, len(axis.Values))
	out := make([]Selection, 0, n)
	for i := 0; i < n; i++ {
		sel := global.Clone()
		sel[axis.Field] = i
		out = append(out, sel)
	}
	return out, nil
}

// SelectionForNewChannel builds the selection for an added channel: index 0
// on every non-global dimension and the current global indices, taken from
// current when present.
func SelectionForNewChannel(dimensions []Dimension, current Selection) Selection {
	sel := Selection{}
	for _, d := range dimensions {
		if IsGlobal(d.Field) {
			if idx, ok := current[d.Field]; ok {
				sel[d.Field] = idx
			} else {
				sel[d.Field] = len(d.Values) / 2
			}
			continue
		}
		sel[d.Field] = 0
	}
	return sel
}

// Label names the channel-axis value sel points at.
func Label(dimensions []Dimension, sel Selection) string {
	axis, ok := ChannelAxis(dimensions)
	if !ok {
		return ""
	}
	idx, ok := sel[axis.Field]
	if !ok || idx < 0 || idx >= len(axis.Values) {
		return ""
	}
	return axis.Values[idx].String()
}

// WithAxisValue returns a copy of sel pointing at the channel-axis entry named
// label. Global indices are preserved.
func WithAxisValue(dimensions []Dimension, sel Selection, label string) (Selection, error) {
	axis, ok := ChannelAxis(dimensions)
	if !ok {
		return nil, ErrDegenerateDimensions
	}
	idx := axis.IndexOf(label)
	if idx < 0 {
		return nil, fmt.Errorf("dims: %q is not a value of %s", label, axis.Field)
	}
	out := sel.Clone()
	if out == nil {
		out = Selection{}
	}
	out[axis.Field] = idx
	return out, nil
}
