package types

import (
	"time"

	"github.com/vainnor/airspace-engine/conflict"
)

// Stats summarises one consistent snapshot of the engine.
type Stats struct {
	WaypointsCount int                   `json:"waypoints_count"`
	FlightsCount   int                   `json:"flights_count"`
	ConflictsCount int                   `json:"conflicts_count"`
	ConflictTypes  map[conflict.Type]int `json:"conflict_types"`
	RoutesCount    int                   `json:"routes_count"`
}

// LoadResult reports an installed dataset.
type LoadResult struct {
	Message        string `json:"message"`
	WaypointsCount int    `json:"waypoints_count"`
	FlightsCount   int    `json:"flights_count"`
}

// MonitorStats are the running statistics of the scheduled conflict sweep.
type MonitorStats struct {
	LastSweep         time.Time             `json:"last_sweep"`
	LastVersion       uint64                `json:"last_version"`
	TotalSweeps       int64                 `json:"total_sweeps"`
	SkippedSweeps     int64                 `json:"skipped_sweeps"`
	FailedSweeps      int64                 `json:"failed_sweeps"`
	ActiveFlights     int                   `json:"active_flights"`
	ActiveConflicts   int                   `json:"active_conflicts"`
	ConflictTypes     map[conflict.Type]int `json:"conflict_types"`
	ProcessedFlights  int64                 `json:"processed_flights"`
	LastSweepDuration time.Duration         `json:"last_sweep_duration_ns"`
	StartTime         time.Time             `json:"start_time"`
}

// SweepRecord is the outcome of one scheduled conflict sweep.
type SweepRecord struct {
	SweptAt   time.Time
	Version   uint64
	Flights   int
	Conflicts []conflict.Conflict
	Duration  time.Duration
}
