package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/database/repository"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/logging"
	"github.com/jask/pyramidview/internal/stats"
	"github.com/jask/pyramidview/internal/synthetic"
	"github.com/jask/pyramidview/internal/viewport"
)

type fakeCatalog map[string]repository.Source

func (c fakeCatalog) Lookup(_ context.Context, name string) (repository.Source, error) {
	s, ok := c[name]
	if !ok {
		return repository.Source{}, errors.New("unknown source " + name)
	}
	return s, nil
}

// fakeFactory returns prebuilt loaders keyed by URL.
type fakeFactory map[string]loader.Loader

func (f fakeFactory) Create(_ context.Context, sourceType string, info loader.Info) (loader.Loader, error) {
	if !loader.IsSupported(sourceType) {
		return nil, &loader.UnsupportedSourceTypeError{Type: sourceType}
	}
	l, ok := f[info.URL]
	if !ok {
		return nil, errors.New("no loader for " + info.URL)
	}
	return l, nil
}

var size = viewport.Size{Width: 1000, Height: 800}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	catalog := fakeCatalog{
		"fluo":   {Name: "fluo", Type: "zarr", URL: "mem://fluo"},
		"six":    {Name: "six", Type: "zarr", URL: "mem://six"},
		"rgb":    {Name: "rgb", Type: "rgb tiff", URL: "mem://rgb.ome.tif"},
		"flat":   {Name: "flat", Type: "zarr", URL: "mem://flat"},
		"bogus":  {Name: "bogus", Type: "png", URL: "mem://bogus"},
		"nodims": {Name: "nodims", Type: "zarr", URL: "mem://nodims"},
	}
	factory := fakeFactory{
		"mem://fluo": synthetic.New(synthetic.Options{URL: "mem://fluo", Channels: []string{"DAPI", "CD3", "CD8"}, Z: 5, NumLevels: 4}),
		"mem://six":  synthetic.New(synthetic.Options{URL: "mem://six", Channels: []string{"a", "b", "c", "d", "e", "f"}, NumLevels: 3}),
		"mem://rgb.ome.tif": synthetic.New(synthetic.Options{
			URL: "mem://rgb.ome.tif", Channels: []string{"red", "green", "blue"}, RGB: true, NumLevels: 2,
		}),
		"mem://flat":   synthetic.New(synthetic.Options{URL: "mem://flat", Channels: []string{"only"}}),
		"mem://nodims": synthetic.New(synthetic.Options{URL: "mem://nodims", Z: 3}),
	}
	opts = append([]Option{WithLogger(logging.NewTestLogger())}, opts...)
	return NewSession(catalog, factory, stats.Sampler{}, opts...)
}

func load(t *testing.T, s *Session, name string) {
	t.Helper()
	ticket := s.BeginLoad(name)
	applied, err := s.Apply(s.Load(context.Background(), ticket))
	require.NoError(t, err)
	require.True(t, applied)
}

func TestSessionLoad(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	ticket := s.BeginLoad("fluo")
	require.True(t, s.Snapshot().Loading)
	require.False(t, s.Derive(size).CanAddChannel)

	res := s.Load(context.Background(), ticket)
	require.NoError(t, res.Err)
	applied, err := s.Apply(res)
	require.NoError(t, err)
	require.True(t, applied)

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.Equal(t, "fluo", snap.Source)
	require.Equal(t, []string{"DAPI", "CD3", "CD8"}, snap.Labels)
	require.Equal(t, []string{FillPixelValue, FillPixelValue, FillPixelValue}, snap.PixelValues)
	require.Equal(t, 3, snap.Channels.Len())
	require.True(t, snap.Channels.Consistent())
	for i, sel := range snap.Channels.Selections {
		require.Equal(t, dims.Selection{"channel": i, "z": 2}, sel)
		require.Equal(t, channels.PaletteColor(i), snap.Channels.Colors[i])
		require.Equal(t, channels.InitialSlider, snap.Channels.Sliders[i])
	}
	// Domains come from channel statistics of the synthetic planes.
	require.Greater(t, snap.Channels.Domains[2][0], snap.Channels.Domains[0][1])

	cfg := s.Derive(size)
	require.Equal(t, ViewState{Target: [3]float64{24, 32, 0}, Zoom: -2}, cfg.InitialViewState)
	require.True(t, cfg.CanAddChannel)
}

func TestSessionRGBBypassesStats(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	ticket := s.BeginLoad("rgb")
	res := s.Load(context.Background(), ticket)
	require.NoError(t, res.Err)
	require.Equal(t, []channels.Range{RGBRange, RGBRange, RGBRange}, res.Reset.Domains)
	require.Equal(t, RGBColors, res.Reset.Colors)

	applied, err := s.Apply(res)
	require.NoError(t, err)
	require.True(t, applied)

	rgb := s.Snapshot().Meta.URL
	require.Equal(t, "mem://rgb.ome.tif", rgb)
	require.Equal(t, []channels.Range{RGBRange, RGBRange, RGBRange}, s.Snapshot().Channels.Domains)
	require.False(t, s.Derive(size).ShowChannelControls)
	require.ErrorIs(t, s.AddChannel(), ErrControlDisabled)
	require.ErrorIs(t, s.ToggleOn(0), ErrControlDisabled)
}

func TestSessionStaleLoadDiscarded(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	first := s.BeginLoad("fluo")
	second := s.BeginLoad("six")

	// The newer load resolves first; the older one arrives late.
	applied, err := s.Apply(s.Load(context.Background(), second))
	require.NoError(t, err)
	require.True(t, applied)
	applied, err = s.Apply(s.Load(context.Background(), first))
	require.NoError(t, err)
	require.False(t, applied)

	snap := s.Snapshot()
	require.Equal(t, "six", snap.Source)
	require.Equal(t, 4, snap.Channels.Len())
	require.Equal(t, []string{"a", "b", "c", "d"}, snap.Labels)
}

func TestSessionStaleResultWhileNewLoadPending(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	first := s.BeginLoad("fluo")
	res := s.Load(context.Background(), first)
	s.BeginLoad("six")

	applied, err := s.Apply(res)
	require.NoError(t, err)
	require.False(t, applied)
	require.True(t, s.Snapshot().Loading)
	require.Zero(t, s.Snapshot().Channels.Len())
}

func TestSessionFailedLoadKeepsState(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"bogus", "missing", "nodims"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newTestSession(t)
			load(t, s, "fluo")
			before := s.Snapshot()

			ticket := s.BeginLoad(name)
			applied, err := s.Apply(s.Load(context.Background(), ticket))
			require.Error(t, err)
			require.False(t, applied)

			after := s.Snapshot()
			require.False(t, after.Loading)
			require.Equal(t, err, after.Err)
			require.Equal(t, name, after.Requested)
			require.Equal(t, "fluo", after.Source)
			require.Equal(t, before.Channels, after.Channels)
			require.Equal(t, before.Meta, after.Meta)
		})
	}
}

func TestSessionFailedLoadErrors(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	res := s.Load(context.Background(), s.BeginLoad("bogus"))
	require.ErrorIs(t, res.Err, loader.ErrUnsupportedSourceType)

	res = s.Load(context.Background(), s.BeginLoad("nodims"))
	require.ErrorIs(t, res.Err, dims.ErrDegenerateDimensions)
}

func TestSessionAddChannel(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	load(t, s, "fluo")

	require.NoError(t, s.ChangeChannel(0, "CD8"))
	require.NoError(t, s.AddChannel())

	snap := s.Snapshot()
	require.Equal(t, 4, snap.Channels.Len())
	require.Equal(t, dims.Selection{"channel": 0, "z": 2}, snap.Channels.Selections[3])
	require.Equal(t, channels.White, snap.Channels.Colors[3])
	require.True(t, snap.Channels.IsOn[3])
	require.Len(t, snap.PixelValues, 4)
	require.Equal(t, "CD8", snap.Labels[0])
}

func TestSessionChannelLimit(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, WithMaxChannels(5))
	load(t, s, "six")

	require.NoError(t, s.AddChannel())
	require.ErrorIs(t, s.AddChannel(), ErrChannelLimit)
	require.Equal(t, 5, s.Snapshot().Channels.Len())
}

func TestSessionBusyRejectsChannelChanges(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	load(t, s, "fluo")

	s.BeginLoad("six")
	require.ErrorIs(t, s.AddChannel(), ErrBusy)
	require.ErrorIs(t, s.ToggleOn(0), ErrBusy)
	require.ErrorIs(t, s.ChangeSlider(0, channels.Range{1, 2}), ErrBusy)
	require.ErrorIs(t, s.ToggleOverview(), ErrControlDisabled)
	require.ErrorIs(t, s.SetColormap("viridis"), ErrBusy)
	require.Empty(t, s.Snapshot().Colormap)
}

func TestSessionChannelMutations(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	load(t, s, "fluo")

	require.NoError(t, s.ToggleOn(1))
	require.NoError(t, s.ChangeColor(1, channels.Color{1, 2, 3}))
	require.NoError(t, s.ChangeSlider(1, channels.Range{10, 20}))
	require.NoError(t, s.RemoveChannel(0))

	snap := s.Snapshot()
	require.Equal(t, 2, snap.Channels.Len())
	require.False(t, snap.Channels.IsOn[0])
	require.Equal(t, channels.Color{1, 2, 3}, snap.Channels.Colors[0])
	require.Equal(t, channels.Range{10, 20}, snap.Channels.Sliders[0])
	require.Equal(t, []string{"CD3", "CD8"}, snap.Labels)
	require.Len(t, snap.PixelValues, 2)

	require.ErrorIs(t, s.ToggleOn(7), channels.ErrIndexOutOfRange)
	require.ErrorIs(t, s.ChangeChannel(7, "DAPI"), channels.ErrIndexOutOfRange)
	require.Error(t, s.ChangeChannel(0, "nope"))
	require.Equal(t, snap.Channels, s.Snapshot().Channels)
}

func TestSessionToggles(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	// Nothing loaded: layout toggles are unavailable.
	require.ErrorIs(t, s.ToggleLinkedView(), ErrControlDisabled)
	load(t, s, "fluo")

	require.ErrorIs(t, s.ToggleZoomLock(), ErrControlDisabled)
	require.NoError(t, s.ToggleOverview())
	require.True(t, s.Derive(size).ShowOverview)
	require.ErrorIs(t, s.ToggleLinkedView(), ErrControlDisabled)

	require.NoError(t, s.ToggleOverview())
	require.NoError(t, s.ToggleLinkedView())
	cfg := s.Derive(size)
	require.Equal(t, SideBySide, cfg.Layout)
	require.Equal(t, 500.0, cfg.ViewSize.Width)
	require.True(t, cfg.ZoomLock)
	require.True(t, cfg.PanLock)
	require.ErrorIs(t, s.ToggleOverview(), ErrControlDisabled)

	require.NoError(t, s.ToggleZoomLock())
	require.NoError(t, s.TogglePanLock())
	cfg = s.Derive(size)
	require.False(t, cfg.ZoomLock)
	require.False(t, cfg.PanLock)

	s.ToggleController()
	require.False(t, s.Derive(size).ShowMenu)
}

func TestSessionFlatImageHasNoLayoutToggles(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	load(t, s, "flat")

	require.ErrorIs(t, s.ToggleOverview(), ErrControlDisabled)
	require.ErrorIs(t, s.ToggleLinkedView(), ErrControlDisabled)
	require.Equal(t, channels.White, s.Snapshot().Channels.Colors[0])
}

func TestSessionColormapAndPixelValues(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, WithColormap("magma"))
	load(t, s, "fluo")

	props := s.Props(size)
	require.Equal(t, "magma", props.Colormap)
	require.Nil(t, props.EffectiveColors())
	require.Len(t, props.IDs, 3)

	require.ErrorIs(t, s.SetColormap("rainbow"), ErrUnknownColormap)
	require.NoError(t, s.SetColormap(""))
	require.Equal(t, s.Snapshot().Channels.Colors, s.Props(size).EffectiveColors())

	props.HandleValue([]string{"12", "40", "7"})
	require.Equal(t, []string{"12", "40", "7"}, s.Snapshot().PixelValues)
}
