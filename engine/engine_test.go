package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/flight"
	"github.com/vainnor/airspace-engine/pathfind"
	"github.com/vainnor/airspace-engine/scenario"
)

func TestEmptyEngine(t *testing.T) {
	e := New(nil)

	a := e.Airspace()
	assert.NotNil(t, a.Waypoints)
	assert.NotNil(t, a.Routes)
	assert.NotNil(t, e.Flights())

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.FlightsCount)
	assert.Zero(t, stats.ConflictsCount)
	assert.Len(t, stats.ConflictTypes, len(conflict.Types))
}

func TestLoadTestData(t *testing.T) {
	e := New(nil)
	res, err := e.LoadTestData()
	require.NoError(t, err)
	assert.Equal(t, "Test data loaded successfully", res.Message)
	assert.Equal(t, 6, res.WaypointsCount)
	assert.Equal(t, 8, res.FlightsCount)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.WaypointsCount)
	assert.Equal(t, 6, stats.RoutesCount)
	assert.Equal(t, 8, stats.FlightsCount)
	assert.Equal(t, 8, stats.ConflictsCount)
	assert.Equal(t, 5, stats.ConflictTypes[conflict.TypeCrossing])

	cs, err := e.Conflicts(context.Background())
	require.NoError(t, err)
	assert.Len(t, cs, stats.ConflictsCount)
	assert.Len(t, e.Airspace().Routes, stats.RoutesCount)

	res2, err := e.SuggestPath(context.Background(), pathfind.Request{Callsign: "TEST001", Start: "A", Goal: "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, res2.NewPath)
	assert.Equal(t, 110.0, res2.TotalDistanceNM)
}

func TestLoadDatasetIsAtomic(t *testing.T) {
	e := New(nil)
	_, err := e.LoadTestData()
	require.NoError(t, err)
	before := e.Snapshot()

	d := scenario.Builtin()
	d.Flights[3].Route = scenario.RouteList{"A", "F"}
	_, err = e.LoadDataset(d)
	assert.ErrorIs(t, err, scenario.ErrInvalidDataset)
	assert.ErrorIs(t, err, flight.ErrDisconnectedRoute)
	assert.Same(t, before, e.Snapshot())

	d = scenario.Builtin()
	d.Waypoints = append(d.Waypoints, d.Waypoints[0])
	_, err = e.LoadDataset(d)
	assert.ErrorIs(t, err, scenario.ErrInvalidDataset)
	assert.Same(t, before, e.Snapshot())
}

func TestFlightLifecycle(t *testing.T) {
	var kinds []flight.EventKind
	e := New(nil, WithObserver(func(ev flight.Event) { kinds = append(kinds, ev.Kind) }))
	_, err := e.LoadTestData()
	require.NoError(t, err)

	f, err := e.AddFlight(flight.Plan{
		Callsign:    "NEW1",
		Route:       []string{"E", "F", "C"},
		Speed:       420,
		FlightLevel: 310,
		EntryTime:   time.Date(2025, 1, 19, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "F", "C"}, f.Timeline.Waypoints())

	_, err = e.Reroute("NEW1", []string{"E", "D", "A"})
	require.NoError(t, err)
	got, err := e.Flight("NEW1")
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "D", "A"}, got.Route)

	require.NoError(t, e.RemoveFlight("NEW1"))
	_, err = e.Flight("NEW1")
	assert.ErrorIs(t, err, flight.ErrNotFound)
	assert.ErrorIs(t, e.RemoveFlight("NEW1"), flight.ErrNotFound)

	assert.Equal(t, []flight.EventKind{flight.EventReplaced, flight.EventAdded, flight.EventRerouted, flight.EventRemoved}, kinds)
	assert.Len(t, e.Flights(), 8)
}

func TestQueriesHonorContext(t *testing.T) {
	e := New(nil, WithRequestTimeout(time.Second))
	_, err := e.LoadTestData()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Conflicts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.Stats(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.SuggestPath(ctx, pathfind.Request{Callsign: "TEST001", Start: "A", Goal: "F"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsStayConsistentUnderWrites(t *testing.T) {
	e := New(nil)
	_, err := e.LoadTestData()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _ = e.LoadTestData()
		}
	}()
	for i := 0; i < 20; i++ {
		stats, err := e.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 8, stats.FlightsCount)
		assert.Equal(t, 6, stats.WaypointsCount)
		assert.Equal(t, 8, stats.ConflictsCount)
	}
	wg.Wait()
}
