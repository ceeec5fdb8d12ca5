package channels

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pyramidview/internal/dims"
)

func selections(n int) []dims.Selection {
	out := make([]dims.Selection, n)
	for i := range out {
		out[i] = dims.Selection{"channel": i, "z": 2}
	}
	return out
}

func resetState(t *testing.T, n int) State {
	t.Helper()
	s, err := Reduce(State{}, ResetChannels{Selections: selections(n)})
	require.NoError(t, err)
	return s
}

func requireLen(t *testing.T, s State, n int) {
	t.Helper()
	require.True(t, s.Consistent())
	require.Len(t, s.Selections, n)
	require.Len(t, s.Sliders, n)
	require.Len(t, s.Colors, n)
	require.Len(t, s.IsOn, n)
	require.Len(t, s.IDs, n)
	require.Len(t, s.Domains, n)
}

func requireUniqueIDs(t *testing.T, s State) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range s.IDs {
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestResetSizesEveryColumn(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 9; n++ {
		s := resetState(t, n)
		requireLen(t, s, n)
		requireUniqueIDs(t, s)
		for i := 0; i < n; i++ {
			require.True(t, s.IsOn[i])
			require.Equal(t, InitialSlider, s.Sliders[i])
			if n == 1 {
				require.Equal(t, White, s.Colors[i])
			} else {
				require.Equal(t, PaletteColor(i), s.Colors[i])
			}
		}
	}
}

func TestResetIgnoresSuppliedColorsAndSliders(t *testing.T) {
	t.Parallel()

	s, err := Reduce(State{}, ResetChannels{
		Selections: selections(1),
		Colors:     []Color{{1, 2, 3}},
		Sliders:    []Range{{5, 6}},
		Domains:    []Range{{0, 4095}},
	})
	require.NoError(t, err)
	require.Equal(t, []Color{White}, s.Colors)
	require.Equal(t, []Range{InitialSlider}, s.Sliders)
	require.Equal(t, []Range{{0, 4095}}, s.Domains)
}

func TestResetDomainsFallBackWhenMismatched(t *testing.T) {
	t.Parallel()

	s, err := Reduce(State{}, ResetChannels{Selections: selections(3), Domains: []Range{{0, 1}}})
	require.NoError(t, err)
	require.Equal(t, []Range{DefaultDomain, DefaultDomain, DefaultDomain}, s.Domains)
}

func TestAddChannelAppendsDefaults(t *testing.T) {
	t.Parallel()

	s := resetState(t, 2)
	next, err := Reduce(s, AddChannel{Selection: dims.Selection{"channel": 0, "z": 2}})
	require.NoError(t, err)
	requireLen(t, next, 3)
	requireUniqueIDs(t, next)

	require.Equal(t, White, next.Colors[2])
	require.True(t, next.IsOn[2])
	require.Equal(t, InitialSlider, next.Sliders[2])
	require.Equal(t, dims.Selection{"channel": 0, "z": 2}, next.Selections[2])
	require.Equal(t, s.IDs, next.IDs[:2])

	requireLen(t, s, 2)
}

func TestRemoveChannelPreservesOrder(t *testing.T) {
	t.Parallel()

	s := resetState(t, 4)
	next, err := Reduce(s, RemoveChannel{Index: 1})
	require.NoError(t, err)
	requireLen(t, next, 3)
	require.Equal(t, []string{s.IDs[0], s.IDs[2], s.IDs[3]}, next.IDs)
	require.Equal(t, []dims.Selection{s.Selections[0], s.Selections[2], s.Selections[3]}, next.Selections)
	require.Equal(t, []Color{s.Colors[0], s.Colors[2], s.Colors[3]}, next.Colors)

	requireLen(t, s, 4)
}

func TestIndexedMutations(t *testing.T) {
	t.Parallel()

	s := resetState(t, 3)

	next, err := Reduce(s, ChangeColor{Index: 1, Color: Color{9, 8, 7}})
	require.NoError(t, err)
	require.Equal(t, Color{9, 8, 7}, next.Colors[1])
	require.Equal(t, PaletteColor(1), s.Colors[1])

	next, err = Reduce(next, ChangeSlider{Index: 2, Range: Range{10, 500}})
	require.NoError(t, err)
	require.Equal(t, Range{10, 500}, next.Sliders[2])

	next, err = Reduce(next, ToggleOn{Index: 0})
	require.NoError(t, err)
	require.False(t, next.IsOn[0])
	next, err = Reduce(next, ToggleOn{Index: 0})
	require.NoError(t, err)
	require.True(t, next.IsOn[0])

	sel := dims.Selection{"channel": 5, "z": 2}
	next, err = Reduce(next, ChangeChannel{Index: 0, Selection: sel})
	require.NoError(t, err)
	require.Equal(t, sel, next.Selections[0])
	sel["channel"] = 6
	require.Equal(t, 5, next.Selections[0]["channel"], "state must not alias the action payload")

	requireLen(t, next, 3)
	require.Equal(t, s.IDs, next.IDs)
}

func TestIndexOutOfRange(t *testing.T) {
	t.Parallel()

	s := resetState(t, 2)
	for _, a := range []Action{
		ChangeChannel{Index: 2},
		ChangeColor{Index: -1},
		ChangeSlider{Index: 7},
		ToggleOn{Index: 2},
		RemoveChannel{Index: 2},
	} {
		_, err := Reduce(s, a)
		require.ErrorIs(t, err, ErrIndexOutOfRange, string(a.Kind()))
	}
	requireLen(t, s, 2)
}

type bogusAction struct{}

func (bogusAction) Kind() Kind { return "SPIN_CHANNEL" }
func (bogusAction) action()    {}

func TestUnknownActionDoesNotMutate(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.NoError(t, store.Dispatch(ResetChannels{Selections: selections(2)}))
	before := store.Snapshot()

	err := store.Dispatch(bogusAction{})
	require.ErrorIs(t, err, ErrUnknownAction)
	require.Contains(t, err.Error(), "SPIN_CHANNEL")
	require.Equal(t, before, store.Snapshot())

	_, err = Reduce(before, nil)
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestFreshIDSkipsCollisions(t *testing.T) {
	ids := []string{"a", "a", "b"}
	calls := 0
	orig := newID
	newID = func() string {
		id := ids[calls]
		calls++
		return id
	}
	t.Cleanup(func() { newID = orig })

	require.Equal(t, "b", freshID([]string{"a"}))
	require.Equal(t, 3, calls)
}

func TestStoreSubscribeAndConcurrentDispatch(t *testing.T) {
	t.Parallel()

	store := NewStore()
	var (
		mu   sync.Mutex
		seen []int
	)
	unsubscribe := store.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Len())
	})
	require.NoError(t, store.Dispatch(ResetChannels{Selections: selections(1)}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, store.Dispatch(AddChannel{Selection: dims.Selection{"channel": i}}))
		}(i)
	}
	wg.Wait()

	snap := store.Snapshot()
	requireLen(t, snap, 21)
	requireUniqueIDs(t, snap)

	unsubscribe()
	require.NoError(t, store.Dispatch(RemoveChannel{Index: 0}))
	require.Equal(t, 20, store.Len())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 21, fmt.Sprint(seen))
	for i, n := range seen {
		require.Equal(t, i+1, n, "states are delivered in commit order: %v", seen)
	}
}
