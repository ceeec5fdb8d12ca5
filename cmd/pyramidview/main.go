package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"

	"github.com/jask/pyramidview/internal/config"
	"github.com/jask/pyramidview/internal/database"
	"github.com/jask/pyramidview/internal/database/repository"
	"github.com/jask/pyramidview/internal/logging"
	"github.com/jask/pyramidview/internal/metrics"
	"github.com/jask/pyramidview/internal/prefs"
	"github.com/jask/pyramidview/internal/service"
	"github.com/jask/pyramidview/internal/stats"
	"github.com/jask/pyramidview/internal/tui"
	"github.com/jask/pyramidview/internal/viewer"
	"github.com/jask/pyramidview/internal/viewport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, flush, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer flush()
	ctx := logr.NewContext(context.Background(), logger)

	metrics.Register()
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "metrics listener", "addr", cfg.Metrics.Addr)
			}
		}()
		defer srv.Close()
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := database.SeedDefaults(ctx, db, cfg.Catalog.SeedFile); err != nil {
		log.Fatalf("seed sources: %v", err)
	}

	catalog := &service.Catalog{Sources: repository.NewSourceRepo(db)}
	factory := service.NewFactory(&http.Client{Timeout: cfg.Loader.HTTPTimeout})
	channelStats := stats.NewCached(stats.Sampler{}, cfg.Stats.CacheTTL)
	defer channelStats.Close()

	// restore the last viewed source and colormap if present
	initial := cfg.Viewer.DefaultSource
	saved, err := prefs.LoadViewer()
	if err != nil {
		logger.Error(err, "load viewer prefs")
	}
	if saved.Source != "" {
		initial = saved.Source
	}

	session := viewer.NewSession(catalog, factory, channelStats,
		viewer.WithMaxChannels(cfg.Viewer.MaxChannels),
		viewer.WithColormap(saved.Colormap),
		viewer.WithLogger(logger.WithName("viewer")),
	)
	terminal := viewport.NewTerminal(80, 24)
	tracker := viewport.NewTracker(terminal, viewport.WithScale(cfg.Viewer.ScaleWidth, cfg.Viewer.ScaleHeight))

	p := tea.NewProgram(tui.New(ctx, session, catalog, terminal, tracker, initial), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	snap := session.Snapshot()
	if err := prefs.SaveViewer(prefs.Viewer{Source: snap.Source, Colormap: snap.Colormap}); err != nil {
		logger.Error(err, "save viewer prefs")
	}
}
