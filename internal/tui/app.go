package tui

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/viewer"
	"github.com/jask/pyramidview/internal/viewport"
)

// Sources lists the catalog source names.
type Sources interface {
	Names(ctx context.Context) ([]string, error)
}

// App is the interactive shell around a viewer session.
type App struct {
	ctx      context.Context
	session  *viewer.Session
	catalog  Sources
	terminal *viewport.Terminal
	tracker  *viewport.Tracker
	log      logr.Logger

	initial string
	sources []string
	cursor  int
	status  string

	// size is the latest snapshot published by the tracker.
	size viewport.Size
	// channels mirrors the channel count through a store subscription.
	channels    atomic.Int64
	unsubscribe func()
}

// New returns an App that loads initial on start.
func New(ctx context.Context, session *viewer.Session, catalog Sources, terminal *viewport.Terminal, tracker *viewport.Tracker, initial string) *App {
	return &App{
		ctx:      ctx,
		session:  session,
		catalog:  catalog,
		terminal: terminal,
		tracker:  tracker,
		log:      logr.FromContextOrDiscard(ctx).WithName("tui"),
		initial:  initial,
	}
}

func (a *App) Init() tea.Cmd {
	if err := a.tracker.Attach(); err != nil && !errors.Is(err, viewport.ErrAlreadyAttached) {
		a.status = "error: " + err.Error()
	}
	a.size = a.tracker.Size()
	if a.unsubscribe == nil {
		a.channels.Store(int64(a.session.Channels().Len()))
		a.unsubscribe = a.session.Channels().Subscribe(func(st channels.State) {
			a.channels.Store(int64(st.Len()))
		})
	}
	return tea.Batch(a.loadSources(), a.loadCmd(a.initial))
}

func (a *App) loadSources() tea.Cmd {
	return func() tea.Msg {
		names, err := a.catalog.Names(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return sourcesMsg(names)
	}
}

// loadCmd takes the ticket synchronously so generations follow key order;
// only the pipeline runs in the command.
func (a *App) loadCmd(name string) tea.Cmd {
	ticket := a.session.BeginLoad(name)
	a.status = fmt.Sprintf("loading %s...", name)
	return func() tea.Msg {
		return loadedMsg{a.session.Load(a.ctx, ticket)}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.terminal.Resize(m.Width, m.Height)
		a.takeResize()
	case tea.KeyMsg:
		return a.handleKey(m)
	case sourcesMsg:
		a.sources = []string(m)
	case loadedMsg:
		applied, err := a.session.Apply(m.Result)
		switch {
		case err != nil:
			a.status = "error: " + err.Error()
		case applied:
			a.status = "loaded " + m.Result.Ticket.Source
			a.clampCursor()
		}
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch m.String() {
	case "q", "ctrl+c":
		a.quit()
		return a, tea.Quit
	case "s":
		if name, ok := a.nextSource(1); ok {
			return a, a.loadCmd(name)
		}
	case "S":
		if name, ok := a.nextSource(-1); ok {
			return a, a.loadCmd(name)
		}
	case "m":
		err = a.session.SetColormap(nextColormap(a.session.Snapshot().Colormap))
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < a.channelCount()-1 {
			a.cursor++
		}
	case " ":
		err = a.session.ToggleOn(a.cursor)
	case "x":
		err = a.session.RemoveChannel(a.cursor)
		a.clampCursor()
	case "a":
		err = a.session.AddChannel()
		if err == nil {
			a.cursor = a.channelCount() - 1
		}
	case "[", "]", "{", "}":
		err = a.nudgeSlider(m.String())
	case "c":
		err = a.cycleColor()
	case "n":
		err = a.cycleChannel()
	case "l":
		err = a.session.ToggleLinkedView()
	case "o":
		err = a.session.ToggleOverview()
	case "z":
		err = a.session.ToggleZoomLock()
	case "p":
		err = a.session.TogglePanLock()
	case "h":
		a.session.ToggleController()
	}
	if err != nil {
		a.status = "error: " + err.Error()
	}
	return a, nil
}

func (a *App) quit() {
	if err := a.tracker.Detach(); err != nil && !errors.Is(err, viewport.ErrNotAttached) {
		a.log.Error(err, "detach viewport tracker")
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// takeResize picks up the snapshot the tracker published for a resize.
func (a *App) takeResize() {
	select {
	case size := <-a.tracker.Updates():
		a.size = size
		a.log.V(1).Info("viewport resized", "width", size.Width, "height", size.Height)
	default:
	}
}

func (a *App) channelCount() int {
	return int(a.channels.Load())
}

func (a *App) clampCursor() {
	n := a.channelCount()
	if a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

// nextSource steps through the catalog from the most recently requested source.
func (a *App) nextSource(step int) (string, bool) {
	if len(a.sources) == 0 {
		return "", false
	}
	cur := a.session.Snapshot().Requested
	idx := -1
	for i, name := range a.sources {
		if name == cur {
			idx = i
			break
		}
	}
	if idx < 0 && step < 0 {
		idx = 0
	}
	n := len(a.sources)
	return a.sources[((idx+step)%n+n)%n], true
}

func nextColormap(cur string) string {
	for i, name := range viewer.Colormaps {
		if name == cur {
			return viewer.Colormaps[(i+1)%len(viewer.Colormaps)]
		}
	}
	return viewer.Colormaps[0]
}

// nudgeSlider moves one slider bound by a hundredth of the channel domain.
// [ and ] move the low bound, { and } the high bound.
func (a *App) nudgeSlider(key string) error {
	st := a.session.Snapshot().Channels
	if a.cursor >= st.Len() {
		return nil
	}
	r, domain := st.Sliders[a.cursor], st.Domains[a.cursor]
	step := max((domain[1]-domain[0])/100, 1)
	switch key {
	case "[":
		r[0] = max(r[0]-step, domain[0])
	case "]":
		r[0] = min(r[0]+step, r[1])
	case "{":
		r[1] = max(r[1]-step, r[0])
	case "}":
		r[1] = min(r[1]+step, domain[1])
	}
	return a.session.ChangeSlider(a.cursor, r)
}

func (a *App) cycleColor() error {
	st := a.session.Snapshot().Channels
	if a.cursor >= st.Len() {
		return nil
	}
	next := channels.PaletteColor(0)
	for i, c := range channels.Palette {
		if c == st.Colors[a.cursor] {
			next = channels.PaletteColor(i + 1)
			break
		}
	}
	return a.session.ChangeColor(a.cursor, next)
}

// cycleChannel points the selected channel at the next channel-axis entry.
func (a *App) cycleChannel() error {
	snap := a.session.Snapshot()
	if a.cursor >= snap.Channels.Len() {
		return nil
	}
	axis, ok := dims.ChannelAxis(snap.Dimensions)
	if !ok {
		return dims.ErrDegenerateDimensions
	}
	idx := snap.Channels.Selections[a.cursor][axis.Field]
	labels := axis.Labels()
	return a.session.ChangeChannel(a.cursor, labels[(idx+1)%len(labels)])
}

type sourcesMsg []string

type loadedMsg struct {
	viewer.Result
}

type errMsg struct{ error }
