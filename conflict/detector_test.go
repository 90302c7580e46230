package conflict

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/flight"
)

var eight = time.Date(2025, 1, 19, 8, 0, 0, 0, time.UTC)

func at(min float64) time.Time {
	return eight.Add(time.Duration(min * float64(time.Minute)))
}

// testGraph is A(0,0) - B(0,1) - C(0,2) on X1 plus D, six miles north of B,
// joined to A and C.
func testGraph(t *testing.T) *airspace.Graph {
	t.Helper()
	g := airspace.NewGraph()
	for _, wp := range []airspace.Waypoint{
		{Name: "A", Latitude: 0, Longitude: 0},
		{Name: "B", Latitude: 0, Longitude: 1},
		{Name: "C", Latitude: 0, Longitude: 2},
		{Name: "D", Latitude: 0.1, Longitude: 1},
	} {
		require.NoError(t, g.AddWaypoint(wp))
	}
	for _, r := range []airspace.Route{
		{From: "A", To: "B", Distance: 60, Airway: "X1"},
		{From: "B", To: "C", Distance: 60, Airway: "X1"},
		{From: "A", To: "D", Distance: 60, Airway: "X2"},
		{From: "D", To: "C", Distance: 60, Airway: "X2"},
	} {
		require.NoError(t, g.AddRoute(r))
	}
	return g
}

func detect(t *testing.T, g *airspace.Graph, plans ...flight.Plan) []Conflict {
	t.Helper()
	r := flight.NewRegistry(g)
	for _, p := range plans {
		_, err := r.Add(p)
		require.NoError(t, err)
	}
	cs, err := NewDetector(DefaultThresholds()).Detect(context.Background(), r.Snapshot())
	require.NoError(t, err)
	return cs
}

func fp(callsign string, speed float64, fl int, entry time.Time, route ...string) flight.Plan {
	return flight.Plan{Callsign: callsign, Route: route, Speed: speed, FlightLevel: fl, EntryTime: entry}
}

func ofType[T Conflict](cs []Conflict) []T {
	var out []T
	for _, c := range cs {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Basic properties
// ---------------------------------------------------------------------------

func TestDetectEmpty(t *testing.T) {
	cs := detect(t, testGraph(t))
	assert.NotNil(t, cs)
	assert.Empty(t, cs)
}

func TestDetectHeadOnScenario(t *testing.T) {
	g := testGraph(t)
	cs := detect(t, g,
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 360, 330, at(5), "C", "B", "A"),
	)

	want := []Conflict{
		Crossing{Pair: Pair{"F1", "F2", 330, 330, at(10), at(15)}, Waypoint: "B"},
		HeadOn{Pair: Pair{"F1", "F2", 330, 330, at(0), at(25)}, Segment: [2]string{"B", "A"}},
		HeadOn{Pair: Pair{"F1", "F2", 330, 330, at(5), at(20)}, Segment: [2]string{"C", "B"}},
	}
	assert.Equal(t, want, cs)
}

func TestDetectHeadOnNeedsSameLevel(t *testing.T) {
	cs := detect(t, testGraph(t),
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 360, 340, at(5), "C", "B", "A"),
	)
	assert.Empty(t, cs)
}

func TestDetectIsSymmetric(t *testing.T) {
	g := testGraph(t)
	a := fp("ZULU", 360, 330, eight, "A", "B", "C")
	b := fp("ALFA", 360, 330, at(5), "C", "B", "A")

	ab := detect(t, g, a, b)
	ba := detect(t, g, b, a)
	assert.Equal(t, ab, ba)

	for _, c := range ab {
		p := c.Base()
		assert.Equal(t, "ALFA", p.Flight1)
		assert.Equal(t, "ZULU", p.Flight2)
	}
	// Head-on segments follow the second flight, ZULU, from A towards C.
	heads := ofType[HeadOn](ab)
	require.Len(t, heads, 2)
	assert.Equal(t, [2]string{"B", "C"}, heads[0].Segment)
	assert.Equal(t, [2]string{"A", "B"}, heads[1].Segment)
}

func TestDetectIsDeterministic(t *testing.T) {
	g := testGraph(t)
	plans := []flight.Plan{
		fp("F3", 480, 330, at(6), "A", "B", "C"),
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 360, 330, at(5), "C", "B", "A"),
		fp("F4", 360, 330, at(10), "D", "C"),
	}
	first := detect(t, g, plans...)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, detect(t, g, plans...))
	}

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1].Base(), first[i].Base()
		assert.LessOrEqual(t, prev.Flight1+prev.Flight2, cur.Flight1+cur.Flight2)
	}
}

func TestDetectCancelled(t *testing.T) {
	r := flight.NewRegistry(testGraph(t))
	_, err := r.Add(fp("F1", 360, 330, eight, "A", "B"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDetector(DefaultThresholds()).Detect(ctx, r.Snapshot())
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func TestDetectCrossingWindow(t *testing.T) {
	g := testGraph(t)
	// F1 reaches C at 08:20; F2 reaches C ten minutes after it enters D.
	for _, tc := range []struct {
		entry float64
		want  int
	}{
		{entry: 10, want: 1},
		{entry: 15, want: 1},
		{entry: 15.5, want: 0},
	} {
		cs := detect(t, g,
			fp("F1", 360, 330, eight, "A", "B", "C"),
			fp("F2", 360, 330, at(tc.entry), "D", "C"),
		)
		crossings := ofType[Crossing](cs)
		assert.Len(t, crossings, tc.want, "entry +%v", tc.entry)
		for _, c := range crossings {
			assert.Equal(t, "C", c.Waypoint)
		}
	}
}

func TestDetectOvertake(t *testing.T) {
	g := testGraph(t)

	cs := detect(t, g,
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 480, 330, at(6), "A", "B", "C"),
	)
	overtakes := ofType[Overtake](cs)
	require.Len(t, overtakes, 2)
	assert.Equal(t, [2]string{"A", "B"}, overtakes[0].Segment)
	assert.Equal(t, [2]string{"B", "C"}, overtakes[1].Segment)
	assert.Equal(t, "F2", overtakes[0].Trailing)
	assert.Equal(t, at(0), overtakes[0].StartTime)
	assert.Equal(t, at(13.5), overtakes[0].EndTime)
	assert.Empty(t, ofType[HeadOn](cs))

	// A slower follower never closes the gap.
	cs = detect(t, g,
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 300, 330, at(6), "A", "B", "C"),
	)
	assert.Empty(t, ofType[Overtake](cs))

	// Entering together is not an overtake, and on B-C the later flight is
	// the slower one.
	cs = detect(t, g,
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 480, 330, eight, "A", "B", "C"),
	)
	assert.Empty(t, ofType[Overtake](cs))
}

func TestDetectLateral(t *testing.T) {
	g := testGraph(t)
	cs := detect(t, g,
		fp("F1", 360, 330, eight, "A", "B", "C"),
		fp("F2", 360, 330, at(10), "D", "C"),
	)

	laterals := ofType[Lateral](cs)
	require.Len(t, laterals, 1)
	assert.Equal(t, "B", laterals[0].WP1)
	assert.Equal(t, "D", laterals[0].WP2)
	assert.InDelta(t, 6.0, laterals[0].DistanceNM, 0.05)
	assert.Equal(t, at(10), laterals[0].StartTime)

	// Categories keep their order within the pair.
	require.Len(t, cs, 2)
	assert.Equal(t, TypeCrossing, cs[0].Type())
	assert.Equal(t, TypeLateral, cs[1].Type())
}

func TestDetectLateralSkipsSharedSegment(t *testing.T) {
	g := airspace.NewGraph()
	require.NoError(t, g.AddWaypoint(airspace.Waypoint{Name: "P", Latitude: 0, Longitude: 0}))
	require.NoError(t, g.AddWaypoint(airspace.Waypoint{Name: "Q", Latitude: 0, Longitude: 0.2}))
	require.NoError(t, g.AddRoute(airspace.Route{From: "P", To: "Q", Distance: 12}))

	cs := detect(t, g,
		fp("F1", 360, 330, eight, "P", "Q"),
		fp("F2", 360, 330, eight, "Q", "P"),
	)
	assert.Empty(t, ofType[Lateral](cs))
	assert.Len(t, ofType[HeadOn](cs), 1)
}

func TestThresholdsAreConfigurable(t *testing.T) {
	g := testGraph(t)
	r := flight.NewRegistry(g)
	_, err := r.Add(fp("F1", 360, 330, eight, "A", "B", "C"))
	require.NoError(t, err)
	_, err = r.Add(fp("F2", 360, 330, at(5), "C", "B", "A"))
	require.NoError(t, err)

	th := DefaultThresholds()
	th.CrossingWindow = time.Minute
	th.SegmentTolerance = 0
	cs, err := NewDetector(th).Detect(context.Background(), r.Snapshot())
	require.NoError(t, err)

	// Without padding only B-C overlaps, and the B arrivals are too far apart.
	require.Len(t, cs, 1)
	assert.Equal(t, HeadOn{Pair: Pair{"F1", "F2", 330, 330, at(5), at(20)}, Segment: [2]string{"C", "B"}}, cs[0])
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func TestConflictJSON(t *testing.T) {
	c := HeadOn{Pair: Pair{"F1", "F2", 330, 330, at(0), at(25)}, Segment: [2]string{"B", "A"}}
	data, err := json.Marshal(Conflict(c))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "head-on",
		"flight1": "F1",
		"flight2": "F2",
		"flight_level1": 330,
		"flight_level2": 330,
		"start_time": "2025-01-19T08:00:00Z",
		"end_time": "2025-01-19T08:25:00Z",
		"segment": ["B", "A"]
	}`, string(data))

	data, err = json.Marshal(Lateral{Pair: Pair{Flight1: "F1", Flight2: "F2"}, WP1: "B", WP2: "D", DistanceNM: 6})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "lateral", m["type"])
	assert.Equal(t, "B", m["wp1"])
	assert.Equal(t, "D", m["wp2"])
}

func TestCountByType(t *testing.T) {
	counts := CountByType([]Conflict{
		Crossing{Waypoint: "B"},
		HeadOn{},
		HeadOn{},
	})
	assert.Equal(t, map[Type]int{
		TypeCrossing: 1,
		TypeHeadOn:   2,
		TypeOvertake: 0,
		TypeLateral:  0,
	}, counts)
	assert.Equal(t, "B-A", Describe(HeadOn{Segment: [2]string{"B", "A"}}))
}
