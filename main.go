package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vainnor/airspace-engine/api"
	"github.com/vainnor/airspace-engine/config"
	"github.com/vainnor/airspace-engine/db"
	"github.com/vainnor/airspace-engine/engine"
	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/monitor"
	"github.com/vainnor/airspace-engine/scenario"
	jsonfetcher "github.com/vainnor/airspace-engine/services/json_fetcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	lg := logger.New(cfg.LogLevel, cfg.LogDir)
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("Exiting", "error", err)
		lg.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	opts := []engine.Option{
		engine.WithThresholds(cfg.Thresholds),
		engine.WithPathCache(cfg.PathCacheSize, cfg.PathCacheTTL),
		engine.WithRequestTimeout(cfg.RequestTimeout),
		engine.WithLogger(lg),
	}

	// Initialize the optional database journal
	var journal *db.Journal
	if cfg.DB.Enabled() {
		var err error
		journal, err = db.Open(ctx, cfg.DB.ConnString(), lg.With("component", "journal"))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer journal.Close()
		opts = append(opts, engine.WithObserver(journal.Observer()))
		lg.Info("Journaling to database", "host", cfg.DB.Host, "name", cfg.DB.Name)
	}

	e := engine.New(nil, opts...)
	if err := loadStartupDataset(ctx, cfg, e, lg); err != nil {
		return err
	}

	var mon *monitor.Monitor
	if cfg.MonitorSchedule != "" {
		monOpts := []monitor.Option{monitor.WithLogger(lg.With("component", "monitor"))}
		if journal != nil {
			monOpts = append(monOpts, monitor.WithRecorder(journal))
		}
		mon = monitor.New(e, monOpts...)
		if err := mon.Start(cfg.MonitorSchedule); err != nil {
			return err
		}
		defer mon.Stop()
	}

	feed := api.NewFeed(e, lg.With("component", "feed"))
	srvOpts := []api.Option{
		api.WithLogger(lg),
		api.WithMasterKey(cfg.MasterAPIKey),
		api.WithRateLimit(cfg.RateLimitMax, cfg.RateLimitWindow),
		api.WithFeed(feed),
	}
	if mon != nil {
		srvOpts = append(srvOpts, api.WithMonitor(mon))
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewServer(e, srvOpts...)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return feed.Run(ctx)
	})
	if journal != nil {
		eg.Go(func() error {
			return journal.Run(ctx, cfg.RequestTimeout)
		})
	}
	eg.Go(func() error {
		lg.Info("Starting API server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		lg.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// loadStartupDataset installs the configured dataset file, URL or the
// built-in test data, in that order of preference.
func loadStartupDataset(ctx context.Context, cfg *config.Config, e *engine.Engine, lg *logger.Logger) error {
	var d *scenario.Dataset
	var err error
	switch {
	case cfg.DatasetFile != "":
		d, err = scenario.Load(cfg.DatasetFile)
	case cfg.DatasetURL != "":
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		d, err = jsonfetcher.FetchDataset(fetchCtx, &http.Client{Timeout: 30 * time.Second}, cfg.DatasetURL, lg)
	case cfg.LoadTestData:
		res, err := e.LoadTestData()
		if err != nil {
			return err
		}
		lg.Info(res.Message, "waypoints", res.WaypointsCount, "flights", res.FlightsCount)
		return nil
	default:
		lg.Info("Starting with an empty airspace")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if _, err := e.LoadDataset(d); err != nil {
		return fmt.Errorf("failed to install dataset: %w", err)
	}
	return nil
}
