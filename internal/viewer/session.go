package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/database/repository"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/metrics"
	"github.com/jask/pyramidview/internal/stats"
	"github.com/jask/pyramidview/internal/viewport"
)

var (
	// ErrBusy is returned for channel and layout changes while a load is in flight.
	ErrBusy = errors.New("viewer: a load is in progress")
	// ErrControlDisabled is returned when a toggle is not currently available.
	ErrControlDisabled = errors.New("viewer: control is disabled")
	// ErrChannelLimit is returned when adding a channel is not allowed.
	ErrChannelLimit = errors.New("viewer: cannot add another channel")
	// ErrUnknownColormap is returned for names outside Colormaps.
	ErrUnknownColormap = errors.New("viewer: unknown colormap")
)

// RGB sources bypass statistics and use these per-sample defaults.
var (
	RGBRange  = channels.Range{0, 255}
	RGBColors = []channels.Color{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}
)

// Catalog resolves source names.
type Catalog interface {
	Lookup(ctx context.Context, name string) (repository.Source, error)
}

// LoaderFactory builds loaders by source type.
type LoaderFactory interface {
	Create(ctx context.Context, sourceType string, info loader.Info) (loader.Loader, error)
}

// Ticket identifies one load. Only the latest ticket's result is applied.
type Ticket struct {
	Generation uint64
	Source     string
}

// Result is the outcome of Load, applied with Apply.
type Result struct {
	Ticket     Ticket
	Loader     loader.Loader
	Dimensions []dims.Dimension
	Reset      channels.ResetChannels
	Err        error
}

// Session owns the screen state: the selected source, colormap, layout
// toggles, the loaded image and its channels. All mutations go through its
// methods.
type Session struct {
	catalog     Catalog
	factory     LoaderFactory
	stats       stats.Service
	store       *channels.Store
	maxChannels int
	log         logr.Logger

	mu            sync.RWMutex
	generation    uint64
	requested     string
	source        string
	colormap      string
	useLinkedView bool
	overviewOn    bool
	controllerOn  bool
	zoomLock      bool
	panLock       bool
	loading       bool
	current       loader.Loader
	dimensions    []dims.Dimension
	pixelValues   []string
	lastErr       error
}

// Option configures a Session.
type Option func(*Session)

// WithMaxChannels sets the channel count at which adding is disabled.
func WithMaxChannels(n int) Option {
	return func(s *Session) { s.maxChannels = n }
}

// WithLogger sets the session logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithColormap sets the starting colormap; unknown names are ignored.
func WithColormap(name string) Option {
	return func(s *Session) {
		if IsColormap(name) {
			s.colormap = name
		}
	}
}

// NewSession returns a session with no image loaded.
func NewSession(catalog Catalog, factory LoaderFactory, svc stats.Service, opts ...Option) *Session {
	s := &Session{
		catalog:      catalog,
		factory:      factory,
		stats:        svc,
		store:        channels.NewStore(),
		maxChannels:  channels.MaxChannels,
		log:          logr.Discard(),
		controllerOn: true,
		zoomLock:     true,
		panLock:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channels exposes the channel store for subscribers. Mutate through the
// session instead of dispatching directly.
func (s *Session) Channels() *channels.Store { return s.store }

// BeginLoad records name as the requested source, marks the session busy and
// returns the ticket the load must carry.
func (s *Session) BeginLoad(name string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.requested = name
	s.loading = true
	return Ticket{Generation: s.generation, Source: name}
}

// Load runs the load pipeline for t: catalog lookup, loader construction,
// default selections, then statistics or RGB defaults. It touches no session
// state and may run on any goroutine.
func (s *Session) Load(ctx context.Context, t Ticket) Result {
	res := Result{Ticket: t}
	logger := logr.FromContextOrDiscard(ctx).WithValues("source", t.Source, "generation", t.Generation)

	src, err := s.catalog.Lookup(ctx, t.Source)
	if err != nil {
		res.Err = err
		return res
	}
	l, err := s.factory.Create(ctx, src.Type, src.Info())
	if err != nil {
		res.Err = fmt.Errorf("load %q: %w", t.Source, err)
		return res
	}
	meta := l.Metadata()
	selections, err := dims.BuildDefaultSelection(meta.Dimensions)
	if err != nil {
		res.Err = fmt.Errorf("load %q: %w", t.Source, err)
		return res
	}

	reset := channels.ResetChannels{Selections: selections}
	if meta.IsRGB {
		for i := range selections {
			reset.Sliders = append(reset.Sliders, RGBRange)
			reset.Domains = append(reset.Domains, RGBRange)
			reset.Colors = append(reset.Colors, RGBColors[i%len(RGBColors)])
		}
	} else {
		st, err := s.stats.ChannelStats(ctx, l, selections)
		if err != nil {
			res.Err = fmt.Errorf("load %q: channel stats: %w", t.Source, err)
			return res
		}
		if len(st) != len(selections) {
			res.Err = fmt.Errorf("load %q: %d channel stats for %d selections", t.Source, len(st), len(selections))
			return res
		}
		for i, cs := range st {
			reset.Domains = append(reset.Domains, cs.Domain)
			reset.Sliders = append(reset.Sliders, cs.AutoSliders)
			reset.Colors = append(reset.Colors, channels.PaletteColor(i))
		}
	}
	logger.V(1).Info("source loaded", "channels", len(selections), "levels", meta.NumLevels)

	res.Loader = l
	res.Dimensions = meta.Dimensions
	res.Reset = reset
	return res
}

// Apply installs a load result. Results from superseded tickets are dropped
// and report false. A failed load clears the busy flag, records the error
// and leaves the previous image and channels in place.
func (s *Session) Apply(r Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Ticket.Generation != s.generation {
		metrics.RecordStaleLoad()
		s.log.V(1).Info("discarding stale load", "source", r.Ticket.Source, "generation", r.Ticket.Generation, "current", s.generation)
		return false, nil
	}
	s.loading = false
	if r.Err != nil {
		s.lastErr = r.Err
		s.log.Error(r.Err, "load failed", "source", r.Ticket.Source)
		return false, r.Err
	}
	if err := s.store.Dispatch(r.Reset); err != nil {
		s.lastErr = err
		s.log.Error(err, "reset channels failed", "source", r.Ticket.Source)
		return false, err
	}
	s.current = r.Loader
	s.dimensions = r.Dimensions
	s.source = r.Ticket.Source
	s.lastErr = nil
	s.pixelValues = fill(len(r.Reset.Selections))
	return true, nil
}

func fill(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = FillPixelValue
	}
	return out
}

func (s *Session) inputs(size viewport.Size) Inputs {
	in := Inputs{
		HasLoader:     s.current != nil,
		Viewport:      size,
		UseLinkedView: s.useLinkedView,
		OverviewOn:    s.overviewOn,
		ControllerOn:  s.controllerOn,
		ZoomLock:      s.zoomLock,
		PanLock:       s.panLock,
		Loading:       s.loading,
		Colormap:      s.colormap,
		ChannelCount:  s.store.Len(),
		MaxChannels:   s.maxChannels,
	}
	if s.current != nil {
		in.Meta = s.current.Metadata()
	}
	return in
}

// Derive computes the render configuration for a viewport of the given size.
func (s *Session) Derive(size viewport.Size) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Derive(s.inputs(size))
}

// Props returns the render props for a viewport of the given size. The hover
// hook feeds SetPixelValues.
func (s *Session) Props(size viewport.Size) RenderProps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Props(Derive(s.inputs(size)), s.current, s.store.Snapshot(), s.SetPixelValues)
}

// SetPixelValues stores the latest hover snapshot, one value per channel.
func (s *Session) SetPixelValues(values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixelValues = append([]string(nil), values...)
}

// Snapshot is a read-only copy of the session for presentation.
type Snapshot struct {
	Requested   string
	Source      string
	Colormap    string
	Loading     bool
	Err         error
	Dimensions  []dims.Dimension
	Channels    channels.State
	Labels      []string
	PixelValues []string
	Meta        loader.Metadata
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.store.Snapshot()
	snap := Snapshot{
		Requested:   s.requested,
		Source:      s.source,
		Colormap:    s.colormap,
		Loading:     s.loading,
		Err:         s.lastErr,
		Dimensions:  s.dimensions,
		Channels:    st,
		Labels:      make([]string, st.Len()),
		PixelValues: append([]string(nil), s.pixelValues...),
	}
	for i, sel := range st.Selections {
		snap.Labels[i] = dims.Label(s.dimensions, sel)
	}
	if s.current != nil {
		snap.Meta = s.current.Metadata()
	}
	return snap
}

// SetColormap selects a colormap; "" turns it off. Not available while loading.
func (s *Session) SetColormap(name string) error {
	if !IsColormap(name) {
		return fmt.Errorf("%w: %q", ErrUnknownColormap, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrBusy
	}
	s.colormap = name
	return nil
}

// ToggleLinkedView flips side-by-side mode. It is disabled for non-pyramids,
// while loading, and while the overview is on.
func (s *Session) ToggleLinkedView() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Derive(s.inputs(viewport.Size{})).LinkedToggleEnabled {
		return ErrControlDisabled
	}
	s.useLinkedView = !s.useLinkedView
	return nil
}

// ToggleOverview flips the picture-in-picture overview. It is disabled for
// non-pyramids, while loading, and in side-by-side mode.
func (s *Session) ToggleOverview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Derive(s.inputs(viewport.Size{})).OverviewToggleEnabled {
		return ErrControlDisabled
	}
	s.overviewOn = !s.overviewOn
	return nil
}

// ToggleZoomLock flips the zoom lock; only available side by side.
func (s *Session) ToggleZoomLock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Derive(s.inputs(viewport.Size{})).ShowLocks {
		return ErrControlDisabled
	}
	s.zoomLock = !s.zoomLock
	return nil
}

// TogglePanLock flips the pan lock; only available side by side.
func (s *Session) TogglePanLock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Derive(s.inputs(viewport.Size{})).ShowLocks {
		return ErrControlDisabled
	}
	s.panLock = !s.panLock
	return nil
}

// ToggleController shows or hides the controller menu.
func (s *Session) ToggleController() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllerOn = !s.controllerOn
}

// channelOp guards dispatches that require a loaded, idle, non-RGB image.
func (s *Session) channelOp(a channels.Action) error {
	if s.loading {
		return ErrBusy
	}
	if s.current == nil || s.current.Metadata().IsRGB {
		return ErrControlDisabled
	}
	if err := s.store.Dispatch(a); err != nil {
		s.log.Error(err, "channel update rejected", "action", a.Kind())
		return err
	}
	return nil
}

// AddChannel appends a channel at index 0 of every non-global dimension and
// the first channel's global indices.
func (s *Session) AddChannel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := Derive(s.inputs(viewport.Size{}))
	switch {
	case s.loading:
		return ErrBusy
	case !cfg.ShowChannelControls:
		return ErrControlDisabled
	case !cfg.CanAddChannel:
		return ErrChannelLimit
	}
	var current dims.Selection
	if st := s.store.Snapshot(); st.Len() > 0 {
		current = st.Selections[0]
	}
	sel := dims.SelectionForNewChannel(s.dimensions, current)
	if err := s.channelOp(channels.AddChannel{Selection: sel}); err != nil {
		return err
	}
	s.pixelValues = append(s.pixelValues, FillPixelValue)
	return nil
}

// RemoveChannel drops channel i.
func (s *Session) RemoveChannel(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.channelOp(channels.RemoveChannel{Index: i}); err != nil {
		return err
	}
	if i < len(s.pixelValues) {
		s.pixelValues = append(s.pixelValues[:i:i], s.pixelValues[i+1:]...)
	}
	return nil
}

// ChangeChannel points channel i at the channel-axis entry named label.
func (s *Session) ChangeChannel(i int, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.store.Snapshot()
	if i < 0 || i >= st.Len() {
		return &channels.IndexError{Kind: channels.KindChangeChannel, Index: i, Len: st.Len()}
	}
	sel, err := dims.WithAxisValue(s.dimensions, st.Selections[i], label)
	if err != nil {
		return err
	}
	return s.channelOp(channels.ChangeChannel{Index: i, Selection: sel})
}

// ChangeColor sets channel i's color.
func (s *Session) ChangeColor(i int, c channels.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelOp(channels.ChangeColor{Index: i, Color: c})
}

// ChangeSlider sets channel i's slider range.
func (s *Session) ChangeSlider(i int, r channels.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelOp(channels.ChangeSlider{Index: i, Range: r})
}

// ToggleOn flips channel i's visibility.
func (s *Session) ToggleOn(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelOp(channels.ToggleOn{Index: i})
}
