package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/pyramidview/internal/channels"
	"github.com/jask/pyramidview/internal/viewer"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const sliderWidth = 20

func (a *App) View() string {
	snap := a.session.Snapshot()
	cfg := a.session.Derive(a.size)

	header := titleStyle.Render("pyramidview") + "  " + a.renderSourceLine(snap)
	panels := []string{panelStyle.Render(a.renderViewer(snap, cfg))}
	if cfg.ShowMenu {
		panels = append(panels, panelStyle.Render(a.renderController(snap, cfg)))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panels...)

	status := a.status
	if strings.HasPrefix(status, "error:") {
		status = errStyle.Render(status)
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, body, status, dimStyle.Render(helpLine(cfg)))
}

func (a *App) renderSourceLine(snap viewer.Snapshot) string {
	source := snap.Source
	if source == "" {
		source = "(none)"
	}
	line := fmt.Sprintf("source: %s  colormap: %s", source, colormapLabel(snap.Colormap))
	if snap.Loading {
		line += fmt.Sprintf("  loading %s...", snap.Requested)
	}
	return line
}

func (a *App) renderViewer(snap viewer.Snapshot, cfg viewer.Config) string {
	if snap.Source == "" {
		return "no image loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("Viewer"))
	fmt.Fprintf(&b, "image: %dx%d  levels: %d  pyramid: %t  rgb: %t\n",
		snap.Meta.Width, snap.Meta.Height, snap.Meta.NumLevels, snap.Meta.IsPyramid, snap.Meta.IsRGB)
	fmt.Fprintf(&b, "layout: %s  view: %.0fx%.0f", cfg.Layout, cfg.ViewSize.Width, cfg.ViewSize.Height)
	if cfg.Layout == viewer.SideBySide {
		b.WriteString(" x2")
	}
	b.WriteString("\n")
	vs := cfg.InitialViewState
	fmt.Fprintf(&b, "camera: target (%.0f, %.0f, %.0f)  zoom %.0f\n", vs.Target[0], vs.Target[1], vs.Target[2], vs.Zoom)
	if cfg.ShowOverview {
		fmt.Fprintf(&b, "overview: %s, scale %.2f, margin %.0f\n", cfg.Overview.Position, cfg.Overview.Scale, cfg.Overview.Margin)
	}
	if cfg.ShowLocks {
		fmt.Fprintf(&b, "zoom lock: %s  pan lock: %s\n", onOff(cfg.ZoomLock), onOff(cfg.PanLock))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) renderController(snap viewer.Snapshot, cfg viewer.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("Channels"))
	if !cfg.ShowChannelControls {
		if snap.Meta.IsRGB {
			b.WriteString("RGB image")
		} else {
			b.WriteString("no channels")
		}
		return b.String()
	}
	st := snap.Channels
	for i := 0; i < st.Len(); i++ {
		marker := "  "
		if i == a.cursor {
			marker = cursorStyle.Render("> ")
		}
		swatch := "cm"
		if cfg.Colormap == "" {
			swatch = lipgloss.NewStyle().Background(hexColor(st.Colors[i])).Render("  ")
		}
		line := fmt.Sprintf("%s%s %-12s %-3s %s", marker, swatch, truncate(snap.Labels[i], 12), onOff(st.IsOn[i]), sliderBar(st.Sliders[i], st.Domains[i]))
		if cfg.ShowPixelValues && i < len(snap.PixelValues) {
			line += "  " + snap.PixelValues[i]
		}
		if !st.IsOn[i] {
			line = dimStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if cfg.CanAddChannel {
		b.WriteString("[a] add channel")
	} else {
		b.WriteString(dimStyle.Render("add channel unavailable"))
	}
	return b.String()
}

// sliderBar draws the slider range within the domain.
func sliderBar(r, domain channels.Range) string {
	span := domain[1] - domain[0]
	cell := func(v float64) int {
		if span <= 0 {
			return 0
		}
		c := int((v - domain[0]) / span * sliderWidth)
		return min(max(c, 0), sliderWidth-1)
	}
	lo, hi := cell(r[0]), cell(r[1])
	bar := []rune(strings.Repeat("-", sliderWidth))
	for i := lo; i <= hi; i++ {
		bar[i] = '='
	}
	return fmt.Sprintf("[%s] %g-%g", string(bar), r[0], r[1])
}

func helpLine(cfg viewer.Config) string {
	keys := []string{"[s/S] source", "[m] colormap", "[h] menu"}
	if cfg.ShowChannelControls {
		keys = append(keys, "[space] on/off", "[x] remove", "[[ ]/{ }] sliders", "[c] color", "[n] channel")
	}
	if cfg.LinkedToggleEnabled {
		keys = append(keys, "[l] side by side")
	}
	if cfg.OverviewToggleEnabled {
		keys = append(keys, "[o] overview")
	}
	if cfg.ShowLocks {
		keys = append(keys, "[z] zoom lock", "[p] pan lock")
	}
	return strings.Join(append(keys, "[q] quit"), "  ")
}

func hexColor(c channels.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

func colormapLabel(name string) string {
	if name == "" {
		return "off"
	}
	return name
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
