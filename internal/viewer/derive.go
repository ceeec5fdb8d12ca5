// Package viewer derives what the rendering layer draws from the loaded
// image, the channel set and the layout toggles, and owns that screen state.
package viewer

import (
	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/viewport"
)

// FallbackZoom is the initial zoom of loaders without pyramid levels.
const FallbackZoom = -2

// FillPixelValue stands in for a channel's value until the pointer hovers.
const FillPixelValue = "----"

// Layout names how views are arranged.
type Layout string

const (
	Overlaid   Layout = "overlaid"
	SideBySide Layout = "side-by-side"
)

// ViewState is the initial camera.
type ViewState struct {
	Target [3]float64
	Zoom   float64
}

// OverviewSpec places the picture-in-picture overview.
type OverviewSpec struct {
	Margin   float64
	Scale    float64
	Position string
}

var DefaultOverview = OverviewSpec{Margin: 25, Scale: 0.15, Position: "bottom-right"}

// Colormaps lists the selectable colormaps. The empty name means off.
var Colormaps = []string{"", "viridis", "greys", "magma", "jet", "hot", "bone", "copper", "summer", "density", "inferno"}

// IsColormap reports whether name is selectable.
func IsColormap(name string) bool {
	for _, c := range Colormaps {
		if c == name {
			return true
		}
	}
	return false
}

// Inputs is everything Derive reads.
type Inputs struct {
	Meta          loader.Metadata
	HasLoader     bool
	Viewport      viewport.Size
	UseLinkedView bool
	OverviewOn    bool
	ControllerOn  bool
	ZoomLock      bool
	PanLock       bool
	Loading       bool
	Colormap      string
	ChannelCount  int
	MaxChannels   int
}

// Config is the derived render configuration.
type Config struct {
	Layout Layout
	// ViewSize is the size of each view; side-by-side halves the width.
	ViewSize         viewport.Size
	InitialViewState ViewState
	ShowOverview     bool
	Overview         OverviewSpec

	// Locks are exposed only in side-by-side layout and read false otherwise.
	ShowLocks bool
	ZoomLock  bool
	PanLock   bool

	Colormap              string
	ShowMenu              bool
	ShowChannelControls   bool
	CanAddChannel         bool
	ShowPixelValues       bool
	OverviewToggleEnabled bool
	LinkedToggleEnabled   bool
}

// Derive computes the render configuration. It is pure.
func Derive(in Inputs) Config {
	pyramid := in.HasLoader && in.Meta.IsPyramid
	cfg := Config{
		Layout:           Overlaid,
		ViewSize:         in.Viewport,
		InitialViewState: InitialViewState(in.Meta),
		Overview:         DefaultOverview,
		Colormap:         in.Colormap,
		ShowMenu:         in.ControllerOn,
	}
	if in.UseLinkedView && pyramid {
		cfg.Layout = SideBySide
		cfg.ViewSize.Width = in.Viewport.Width * 0.5
		cfg.ShowLocks = true
		cfg.ZoomLock = in.ZoomLock
		cfg.PanLock = in.PanLock
	} else {
		cfg.ShowOverview = in.OverviewOn && pyramid
	}

	rgb := in.HasLoader && in.Meta.IsRGB
	cfg.ShowChannelControls = in.HasLoader && !rgb
	cfg.CanAddChannel = cfg.ShowChannelControls && !in.Loading && in.ChannelCount < in.MaxChannels
	cfg.ShowPixelValues = cfg.Layout == Overlaid
	cfg.OverviewToggleEnabled = pyramid && !in.Loading && !in.UseLinkedView
	cfg.LinkedToggleEnabled = pyramid && !in.Loading && !in.OverviewOn
	return cfg
}

// InitialViewState centers the camera on the image.
func InitialViewState(meta loader.Metadata) ViewState {
	zoom := float64(FallbackZoom)
	if meta.NumLevels > 0 {
		zoom = -float64(meta.NumLevels - 2)
	}
	return ViewState{
		Target: [3]float64{float64(meta.Height) / 2, float64(meta.Width) / 2, 0},
		Zoom:   zoom,
	}
}

// RenderProps is the bundle handed to the rendering layer.
type RenderProps struct {
	Loader           loader.Loader
	Selections       []dims.Selection
	Sliders          []channels.Range
	Colors           []channels.Color
	IsOn             []bool
	IDs              []string
	InitialViewState ViewState
	Layout           Layout
	ViewSize         viewport.Size
	// Colormap supersedes Colors when non-empty.
	Colormap string
	// Overview is nil when the overview is hidden.
	Overview    *OverviewSpec
	ZoomLock    bool
	PanLock     bool
	HandleValue func(values []string)
}

// Props assembles render props from a derived config and a channel snapshot.
func Props(cfg Config, l loader.Loader, st channels.State, handleValue func([]string)) RenderProps {
	p := RenderProps{
		Loader:           l,
		Selections:       st.Selections,
		Sliders:          st.Sliders,
		Colors:           st.Colors,
		IsOn:             st.IsOn,
		IDs:              st.IDs,
		InitialViewState: cfg.InitialViewState,
		Layout:           cfg.Layout,
		ViewSize:         cfg.ViewSize,
		Colormap:         cfg.Colormap,
		ZoomLock:         cfg.ZoomLock,
		PanLock:          cfg.PanLock,
		HandleValue:      handleValue,
	}
	if cfg.ShowOverview {
		ov := cfg.Overview
		p.Overview = &ov
	}
	return p
}

// EffectiveColors returns the colors the rendering layer should use: nil when a
// colormap supersedes the channel colors.
func (p RenderProps) EffectiveColors() []channels.Color {
	if p.Colormap != "" {
		return nil
	}
	return p.Colors
}
