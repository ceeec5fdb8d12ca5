package channels

import (
	"errors"
	"fmt"

	"github.com/jask/pyramidview/internal/dims"
)

var (
	ErrUnknownAction    = errors.New("channels: unknown action")
	ErrIndexOutOfRange  = errors.New("channels: index out of range")
	errInconsistentRows = errors.New("channels: columns have diverging lengths")
)

// Kind tags an action.
type Kind string

const (
	KindChangeChannel Kind = "CHANGE_CHANNEL"
	KindChangeColor   Kind = "CHANGE_COLOR"
	KindChangeSlider  Kind = "CHANGE_SLIDER"
	KindToggleOn      Kind = "TOGGLE_ON"
	KindAddChannel    Kind = "ADD_CHANNEL"
	KindRemoveChannel Kind = "REMOVE_CHANNEL"
	KindReset         Kind = "RESET_CHANNELS"
)

// Action is one mutation of the channel set. The set of actions is closed.
type Action interface {
	Kind() Kind
	action()
}

type ChangeChannel struct {
	Index     int
	Selection dims.Selection
}

type ChangeColor struct {
	Index int
	Color Color
}

type ChangeSlider struct {
	Index int
	Range Range
}

type ToggleOn struct {
	Index int
}

type AddChannel struct {
	Selection dims.Selection
}

type RemoveChannel struct {
	Index int
}

// ResetChannels replaces the whole set. Sliders and Colors are accepted for
// symmetry with the loading pipeline but regenerated from defaults.
type ResetChannels struct {
	Selections []dims.Selection
	Domains    []Range
	Sliders    []Range
	Colors     []Color
}

func (ChangeChannel) Kind() Kind { return KindChangeChannel }
func (ChangeColor) Kind() Kind   { return KindChangeColor }
func (ChangeSlider) Kind() Kind  { return KindChangeSlider }
func (ToggleOn) Kind() Kind      { return KindToggleOn }
func (AddChannel) Kind() Kind    { return KindAddChannel }
func (RemoveChannel) Kind() Kind { return KindRemoveChannel }
func (ResetChannels) Kind() Kind { return KindReset }

func (ChangeChannel) action() {}
func (ChangeColor) action()   {}
func (ChangeSlider) action()  {}
func (ToggleOn) action()      {}
func (AddChannel) action()    {}
func (RemoveChannel) action() {}
func (ResetChannels) action() {}

// UnknownActionError reports an action outside the closed set.
type UnknownActionError struct {
	Kind Kind
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("channels: unknown action %q", e.Kind)
}

func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }

// IndexError reports an index-addressed action past the end of the set.
type IndexError struct {
	Kind  Kind
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("channels: %s index %d out of range [0,%d)", e.Kind, e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }

// Reduce applies a to s and returns the new state. s is never modified; on
// error the zero State is returned alongside it.
func Reduce(s State, a Action) (State, error) {
	if !s.Consistent() {
		return State{}, errInconsistentRows
	}
	switch act := a.(type) {
	case ChangeChannel:
		if err := checkIndex(s, act.Kind(), act.Index); err != nil {
			return State{}, err
		}
		next := s.Clone()
		next.Selections[act.Index] = act.Selection.Clone()
		return next, nil
	case ChangeColor:
		if err := checkIndex(s, act.Kind(), act.Index); err != nil {
			return State{}, err
		}
		next := s.Clone()
		next.Colors[act.Index] = act.Color
		return next, nil
	case ChangeSlider:
		if err := checkIndex(s, act.Kind(), act.Index); err != nil {
			return State{}, err
		}
		next := s.Clone()
		next.Sliders[act.Index] = act.Range
		return next, nil
	case ToggleOn:
		if err := checkIndex(s, act.Kind(), act.Index); err != nil {
			return State{}, err
		}
		next := s.Clone()
		next.IsOn[act.Index] = !next.IsOn[act.Index]
		return next, nil
	case AddChannel:
		next := s.Clone()
		next.Selections = append(next.Selections, act.Selection.Clone())
		next.Colors = append(next.Colors, White)
		next.IsOn = append(next.IsOn, true)
		next.Sliders = append(next.Sliders, InitialSlider)
		next.Domains = append(next.Domains, DefaultDomain)
		next.IDs = append(next.IDs, freshID(s.IDs))
		return next, nil
	case RemoveChannel:
		if err := checkIndex(s, act.Kind(), act.Index); err != nil {
			return State{}, err
		}
		return remove(s, act.Index), nil
	case ResetChannels:
		return reset(act), nil
	default:
		var kind Kind
		if a != nil {
			kind = a.Kind()
		}
		return State{}, &UnknownActionError{Kind: kind}
	}
}

func checkIndex(s State, kind Kind, i int) error {
	if i < 0 || i >= s.Len() {
		return &IndexError{Kind: kind, Index: i, Len: s.Len()}
	}
	return nil
}

func remove(s State, i int) State {
	next := State{
		Selections: make([]dims.Selection, 0, s.Len()-1),
		Sliders:    make([]Range, 0, s.Len()-1),
		Colors:     make([]Color, 0, s.Len()-1),
		IsOn:       make([]bool, 0, s.Len()-1),
		IDs:        make([]string, 0, s.Len()-1),
		Domains:    make([]Range, 0, s.Len()-1),
	}
	for j := 0; j < s.Len(); j++ {
		if j == i {
			continue
		}
		next.Selections = append(next.Selections, s.Selections[j].Clone())
		next.Sliders = append(next.Sliders, s.Sliders[j])
		next.Colors = append(next.Colors, s.Colors[j])
		next.IsOn = append(next.IsOn, s.IsOn[j])
		next.IDs = append(next.IDs, s.IDs[j])
		next.Domains = append(next.Domains, s.Domains[j])
	}
	return next
}

func reset(act ResetChannels) State {
	n := len(act.Selections)
	next := State{
		Selections: make([]dims.Selection, n),
		Sliders:    make([]Range, n),
		Colors:     make([]Color, n),
		IsOn:       make([]bool, n),
		IDs:        make([]string, 0, n),
		Domains:    make([]Range, n),
	}
	for i, sel := range act.Selections {
		next.Selections[i] = sel.Clone()
		next.Sliders[i] = InitialSlider
		next.IsOn[i] = true
		next.IDs = append(next.IDs, freshID(next.IDs))
		if len(act.Domains) == n {
			next.Domains[i] = act.Domains[i]
		} else {
			next.Domains[i] = DefaultDomain
		}
		if n == 1 {
			next.Colors[i] = White
		} else {
			next.Colors[i] = PaletteColor(i)
		}
	}
	return next
}

// freshID returns an id not present in live.
func freshID(live []string) string {
	for {
		id := newID()
		taken := false
		for _, l := range live {
			if l == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}
