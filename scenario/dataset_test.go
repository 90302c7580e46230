package scenario

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/flight"
)

const sampleYAML = `
name: sample
base_date: "2025-01-19"
waypoints:
  - {name: A, lat: 0, lon: 0}
  - {name: B, lat: 0, lon: 1, type: vor}
  - {name: C, lat: 0, lon: 2}
edges:
  - {source: A, target: B, distance_nm: 60, airway: X1}
  - {source: B, target: C, airway: X1, direction: ONEWAY}
flights:
  - {callsign: F1, route: [A, B, C], speed: 360, flight_level: FL330, entry_time: "08:00"}
  - {callsign: F2, route: "A - B", speed: 400, flight_level: 340, entry_time: "2025-01-19T09:30:00Z"}
`

// The layout of the original airspace_data.json export.
const sampleJSON = `{
  "waypoints": [{"name": "A", "lat": 0, "lon": 0}, {"name": "B", "lat": 0, "lon": 1}],
  "edges": [{"source": "A", "target": "B", "distance_nm": 60}],
  "flights": [{"callsign": "F1", "route": "A→B", "speed": 360, "flight_level": "FL330", "entry_time": "2025-01-19T08:00:00Z"}]
}`

func TestParseAndBuildYAML(t *testing.T) {
	d, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "sample", d.Name)

	g, plans, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, g.WaypointCount())
	assert.Equal(t, 2, g.RouteCount())

	b, ok := g.Waypoint("B")
	require.True(t, ok)
	assert.Equal(t, airspace.TypeVOR, b.Type)

	// B-C had no distance: great circle along the equator, about 60 NM.
	bc, ok := g.Edge("B", "C")
	require.True(t, ok)
	assert.InDelta(t, 60.04, bc.Distance, 0.05)
	assert.Equal(t, airspace.OneWay, bc.Direction)
	_, ok = g.Edge("C", "B")
	assert.False(t, ok)

	require.Len(t, plans, 2)
	assert.Equal(t, flight.Plan{
		Callsign:    "F1",
		Route:       []string{"A", "B", "C"},
		Speed:       360,
		FlightLevel: 330,
		EntryTime:   time.Date(2025, 1, 19, 8, 0, 0, 0, time.UTC),
	}, plans[0])
	assert.Equal(t, []string{"A", "B"}, plans[1].Route)
	assert.Equal(t, 340, plans[1].FlightLevel)
	assert.Equal(t, time.Date(2025, 1, 19, 9, 30, 0, 0, time.UTC), plans[1].EntryTime.UTC())
}

func TestParseOriginalJSONLayout(t *testing.T) {
	d, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	g, plans, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, g.WaypointCount())
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"A", "B"}, plans[0].Route)
	assert.Equal(t, 330, plans[0].FlightLevel)
}

func TestBuildErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"duplicate waypoint": `{waypoints: [{name: A}, {name: A}]}`,
		"unknown endpoint":   `{waypoints: [{name: A}], edges: [{source: A, target: Z, distance_nm: 5}]}`,
		"bad direction":      `{waypoints: [{name: A}, {name: B, lon: 1}], edges: [{source: A, target: B, direction: SIDEWAYS}]}`,
		"bad type":           `{waypoints: [{name: A, type: BEACON}]}`,
		"clock without date": `{waypoints: [{name: A}], flights: [{callsign: F1, route: [A, B], speed: 1, flight_level: 330, entry_time: "08:00"}]}`,
		"bad entry time":     `{waypoints: [{name: A}], base_date: "2025-01-19", flights: [{callsign: F1, entry_time: "soon"}]}`,
		"no waypoints":       `{name: empty, flights: []}`,
		"empty document":     "",
		"blank document":     "  \n \n",
	} {
		t.Run(name, func(t *testing.T) {
			d, err := Parse([]byte(doc))
			require.NoError(t, err)
			_, _, err = d.Build()
			assert.ErrorIs(t, err, ErrInvalidDataset)
		})
	}

	_, err := Parse([]byte(`{flights: [{flight_level: high}]}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)
	_, err = Parse([]byte("waypoints: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, d.Flights, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuiltinProducesEveryConflictType(t *testing.T) {
	g, plans, err := Builtin().Build()
	require.NoError(t, err)
	assert.Equal(t, 6, g.WaypointCount())
	assert.Equal(t, 6, g.RouteCount())
	require.Len(t, plans, 8)

	r := flight.NewRegistry(g)
	require.NoError(t, r.Replace(nil, plans))

	cs, err := conflict.NewDetector(conflict.DefaultThresholds()).Detect(context.Background(), r.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, map[conflict.Type]int{
		conflict.TypeCrossing: 5,
		conflict.TypeHeadOn:   1,
		conflict.TypeOvertake: 1,
		conflict.TypeLateral:  1,
	}, conflict.CountByType(cs))

	idx := slices.IndexFunc(cs, func(c conflict.Conflict) bool { return c.Type() == conflict.TypeLateral })
	require.GreaterOrEqual(t, idx, 0)
	lat := cs[idx].(conflict.Lateral)
	assert.Equal(t, "TEST007", lat.Flight1)
	assert.Equal(t, "D", lat.WP1)
	assert.Equal(t, "C", lat.WP2)
}
