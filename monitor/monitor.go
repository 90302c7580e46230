package monitor

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/engine"
	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/types"
)

// Recorder persists sweep results. *db.Journal implements it.
type Recorder interface {
	RecordSweep(ctx context.Context, rec types.SweepRecord) error
}

// Monitor periodically scans the registry for conflicts and keeps
// running statistics. A sweep is skipped when the registry has not
// changed since the previous one.
type Monitor struct {
	engine   *engine.Engine
	recorder Recorder
	lg       *logger.Logger
	cron     *cron.Cron

	mu    sync.Mutex
	swept bool
	stats types.MonitorStats
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecorder stores every completed sweep.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

func WithLogger(lg *logger.Logger) Option {
	return func(m *Monitor) { m.lg = lg }
}

func New(e *engine.Engine, opts ...Option) *Monitor {
	m := &Monitor{
		engine: e,
		stats: types.MonitorStats{
			StartTime:     time.Now(),
			ConflictTypes: conflict.CountByType(nil),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start schedules Sweep with a six-field cron spec (seconds first). An
// overrunning sweep causes the next run to be skipped.
func (m *Monitor) Start(schedule string) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.Sweep(context.Background()); err != nil {
			m.lg.Warn("Error sweeping conflicts", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.lg.Info("Conflict monitor started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Stats returns a copy of the running statistics.
func (m *Monitor) Stats() types.MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ConflictTypes = maps.Clone(m.stats.ConflictTypes)
	return s
}

// Sweep runs one conflict scan. It reports false when the registry was
// unchanged and the scan was skipped.
func (m *Monitor) Sweep(ctx context.Context) (bool, error) {
	snap := m.engine.Snapshot()

	m.mu.Lock()
	if m.swept && snap.Version == m.stats.LastVersion {
		m.stats.SkippedSweeps++
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	start := time.Now()
	cs, err := m.engine.ConflictsIn(ctx, snap)
	if err != nil {
		m.mu.Lock()
		m.stats.FailedSweeps++
		m.mu.Unlock()
		return false, fmt.Errorf("error detecting conflicts: %w", err)
	}
	rec := types.SweepRecord{
		SweptAt:   start,
		Version:   snap.Version,
		Flights:   len(snap.Flights),
		Conflicts: cs,
		Duration:  time.Since(start),
	}

	m.mu.Lock()
	m.swept = true
	m.stats.LastSweep = rec.SweptAt
	m.stats.LastVersion = rec.Version
	m.stats.LastSweepDuration = rec.Duration
	m.stats.TotalSweeps++
	m.stats.ActiveFlights = rec.Flights
	m.stats.ActiveConflicts = len(cs)
	m.stats.ConflictTypes = conflict.CountByType(cs)
	m.stats.ProcessedFlights += int64(rec.Flights)
	total := m.stats.TotalSweeps
	m.mu.Unlock()

	m.lg.Info("Conflict sweep",
		"version", rec.Version,
		"flights", rec.Flights,
		"conflicts", len(cs),
		"duration", rec.Duration,
		"total_sweeps", total,
		"uptime", time.Since(m.stats.StartTime).Round(time.Second))

	if m.recorder != nil {
		if err := m.recorder.RecordSweep(ctx, rec); err != nil {
			m.lg.Warn("Error storing sweep", "error", err)
		}
	}
	return true, nil
}
