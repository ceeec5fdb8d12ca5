package viewer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/viewport"
)

var pyramidMeta = loader.Metadata{IsPyramid: true, NumLevels: 5, Height: 1000, Width: 2000}

func baseInputs() Inputs {
	return Inputs{
		Meta:         pyramidMeta,
		HasLoader:    true,
		Viewport:     viewport.Size{Width: 800, Height: 600},
		ControllerOn: true,
		ZoomLock:     true,
		PanLock:      true,
		ChannelCount: 4,
		MaxChannels:  6,
	}
}

func TestDeriveOverlaidDefault(t *testing.T) {
	t.Parallel()

	got := Derive(baseInputs())
	want := Config{
		Layout:                Overlaid,
		ViewSize:              viewport.Size{Width: 800, Height: 600},
		InitialViewState:      ViewState{Target: [3]float64{500, 1000, 0}, Zoom: -3},
		Overview:              DefaultOverview,
		ShowMenu:              true,
		ShowChannelControls:   true,
		CanAddChannel:         true,
		ShowPixelValues:       true,
		OverviewToggleEnabled: true,
		LinkedToggleEnabled:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Derive mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveSideBySide(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.UseLinkedView = true
	in.OverviewOn = true // ignored while side by side
	in.PanLock = false
	got := Derive(in)

	require.Equal(t, SideBySide, got.Layout)
	require.Equal(t, 400.0, got.ViewSize.Width)
	require.Equal(t, 600.0, got.ViewSize.Height)
	require.True(t, got.ShowLocks)
	require.True(t, got.ZoomLock)
	require.False(t, got.PanLock)
	require.False(t, got.ShowOverview)
	require.False(t, got.ShowPixelValues)
	require.False(t, got.OverviewToggleEnabled)
	require.False(t, got.LinkedToggleEnabled)
}

func TestDeriveLinkedViewNeedsPyramid(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.Meta.IsPyramid = false
	in.UseLinkedView = true
	in.OverviewOn = true
	got := Derive(in)

	require.Equal(t, Overlaid, got.Layout)
	require.Equal(t, 800.0, got.ViewSize.Width)
	require.False(t, got.ShowLocks)
	require.False(t, got.ZoomLock)
	require.False(t, got.ShowOverview)
	require.False(t, got.OverviewToggleEnabled)
	require.False(t, got.LinkedToggleEnabled)
}

func TestDeriveOverview(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.OverviewOn = true
	got := Derive(in)
	require.True(t, got.ShowOverview)
	require.True(t, got.OverviewToggleEnabled)
	require.False(t, got.LinkedToggleEnabled)
	require.Equal(t, OverviewSpec{Margin: 25, Scale: 0.15, Position: "bottom-right"}, got.Overview)
}

func TestDeriveLoadingDisablesControls(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.Loading = true
	got := Derive(in)
	require.False(t, got.CanAddChannel)
	require.False(t, got.OverviewToggleEnabled)
	require.False(t, got.LinkedToggleEnabled)
}

func TestDeriveChannelLimit(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.ChannelCount = 5
	require.True(t, Derive(in).CanAddChannel)
	in.ChannelCount = 6
	require.False(t, Derive(in).CanAddChannel)
}

func TestDeriveRGBHidesChannelControls(t *testing.T) {
	t.Parallel()

	in := baseInputs()
	in.Meta.IsRGB = true
	got := Derive(in)
	require.False(t, got.ShowChannelControls)
	require.False(t, got.CanAddChannel)
}

func TestDeriveWithoutLoader(t *testing.T) {
	t.Parallel()

	got := Derive(Inputs{Viewport: viewport.Size{Width: 10, Height: 10}, MaxChannels: 6})
	require.Equal(t, Overlaid, got.Layout)
	require.False(t, got.ShowChannelControls)
	require.False(t, got.OverviewToggleEnabled)
	require.Equal(t, ViewState{Zoom: FallbackZoom}, got.InitialViewState)
}

func TestInitialViewState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		levels int
		zoom   float64
	}{
		{0, -2},
		{1, 1},
		{2, 0},
		{6, -4},
	}
	for _, tc := range cases {
		vs := InitialViewState(loader.Metadata{NumLevels: tc.levels, Height: 10, Width: 30})
		require.Equal(t, tc.zoom, vs.Zoom, "levels=%d", tc.levels)
		require.Equal(t, [3]float64{5, 15, 0}, vs.Target)
	}
}

func TestPropsColormapSupersedesColors(t *testing.T) {
	t.Parallel()

	st, err := channels.Reduce(channels.State{}, channels.ResetChannels{
		Selections: []dims.Selection{{"channel": 0}, {"channel": 1}},
	})
	require.NoError(t, err)

	in := baseInputs()
	l := &loader.Static{Meta: pyramidMeta}
	props := Props(Derive(in), l, st, nil)
	require.Equal(t, st.Colors, props.EffectiveColors())
	require.Nil(t, props.Overview)

	in.Colormap = "viridis"
	in.OverviewOn = true
	props = Props(Derive(in), l, st, nil)
	require.Nil(t, props.EffectiveColors())
	require.Equal(t, []channels.Color{channels.Palette[0], channels.Palette[1]}, props.Colors)
	require.NotNil(t, props.Overview)
	require.Equal(t, "viridis", props.Colormap)
}

func TestIsColormap(t *testing.T) {
	t.Parallel()

	require.True(t, IsColormap(""))
	require.True(t, IsColormap("inferno"))
	require.False(t, IsColormap("rainbow"))
}
