package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/flight"
	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/types"
)

// Journal appends flight registry events and conflict sweep results to
// Postgres. It is write-only: the in-memory registry stays authoritative.
type Journal struct {
	db     *sql.DB
	lg     *logger.Logger
	events chan flight.Event
	record func(context.Context, flight.Event) error
}

// eventBuffer is the number of registry events queued for Run.
const eventBuffer = 1024

func newJournal(db *sql.DB, lg *logger.Logger, buffer int) *Journal {
	j := &Journal{db: db, lg: lg, events: make(chan flight.Event, buffer)}
	j.record = j.RecordEvent
	return j
}

// Open connects to Postgres and creates the journal tables.
func Open(ctx context.Context, connStr string, lg *logger.Logger) (*Journal, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	j := newJournal(db, lg, eventBuffer)
	if err = j.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS flight_events (
			id SERIAL PRIMARY KEY,
			recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			registry_version BIGINT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			callsign VARCHAR(16) NOT NULL,
			route TEXT[] NOT NULL,
			speed DOUBLE PRECISION NOT NULL,
			flight_level INTEGER NOT NULL,
			entry_time TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conflict_sweeps (
			id SERIAL PRIMARY KEY,
			swept_at TIMESTAMP WITH TIME ZONE NOT NULL,
			registry_version BIGINT NOT NULL,
			flights_count INTEGER NOT NULL,
			conflicts_count INTEGER NOT NULL,
			crossing_count INTEGER NOT NULL,
			head_on_count INTEGER NOT NULL,
			overtake_count INTEGER NOT NULL,
			lateral_count INTEGER NOT NULL,
			conflicts TEXT[] NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_flight_events_callsign ON flight_events(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_events_recorded_at ON flight_events(recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conflict_sweeps_swept_at ON conflict_sweeps(swept_at DESC)`,
	}

	for _, query := range queries {
		if _, err := j.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvent stores one registry mutation. A replacement stores every
// flight of the new registry state in one transaction.
func (j *Journal) RecordEvent(ctx context.Context, ev flight.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	version := ev.Snapshot.Version
	switch ev.Kind {
	case flight.EventAdded, flight.EventRerouted:
		err = insertEvent(ctx, tx, version, ev.Kind, ev.Flight)
	case flight.EventRemoved:
		err = insertEvent(ctx, tx, version, ev.Kind, ev.Previous)
	case flight.EventReplaced:
		for _, f := range ev.Snapshot.Flights {
			if err = insertEvent(ctx, tx, version, ev.Kind, f); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, version uint64, kind flight.EventKind, f *flight.Flight) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO flight_events (
			registry_version, kind, callsign, route,
			speed, flight_level, entry_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, int64(version), string(kind), f.Callsign, pq.Array(f.Route),
		f.Speed, f.FlightLevel, f.EntryTime)
	return err
}

// RecordSweep stores the summary of one conflict sweep.
func (j *Journal) RecordSweep(ctx context.Context, rec types.SweepRecord) error {
	counts := conflict.CountByType(rec.Conflicts)
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO conflict_sweeps (
			swept_at, registry_version, flights_count, conflicts_count,
			crossing_count, head_on_count, overtake_count, lateral_count,
			conflicts, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.SweptAt, int64(rec.Version), rec.Flights, len(rec.Conflicts),
		counts[conflict.TypeCrossing], counts[conflict.TypeHeadOn],
		counts[conflict.TypeOvertake], counts[conflict.TypeLateral],
		pq.Array(SummarizeConflicts(rec.Conflicts)), rec.Duration.Milliseconds())
	return err
}

// SummarizeConflicts renders each conflict as one line, for example
// "head-on F1/F2 B-A".
func SummarizeConflicts(cs []conflict.Conflict) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		p := c.Base()
		out[i] = fmt.Sprintf("%s %s/%s %s", c.Type(), p.Flight1, p.Flight2, conflict.Describe(c))
	}
	return out
}

// Observer returns a registry observer that queues every event for Run.
// It never blocks the mutating goroutine: when the queue is full the event
// is dropped and logged.
func (j *Journal) Observer() flight.Observer {
	return func(ev flight.Event) {
		select {
		case j.events <- ev:
		default:
			j.lg.Warn("Journal queue full, dropping flight event",
				"kind", ev.Kind, "version", ev.Snapshot.Version)
		}
	}
}

// Run writes queued events, each bounded by timeout, until ctx is done.
// Events still queued at that point are written before Run returns.
func (j *Journal) Run(ctx context.Context, timeout time.Duration) error {
	for {
		select {
		case ev := <-j.events:
			j.write(ev, timeout)
		case <-ctx.Done():
			for {
				select {
				case ev := <-j.events:
					j.write(ev, timeout)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(ev flight.Event, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := j.record(ctx, ev); err != nil {
		j.lg.Warn("Error journaling flight event", "kind", ev.Kind, "error", err)
	}
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
