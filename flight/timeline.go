package flight

import (
	"fmt"
	"math"
	"time"

	"github.com/vainnor/airspace-engine/airspace"
)

// ComputeTimeline returns the arrival time at every waypoint of route for a
// flight entering route[0] at entry and flying speed knots along the
// airway edges of g.
//
// Elapsed times are derived from the cumulative distance and rounded to
// whole seconds, so identical inputs always produce identical timelines.
func ComputeTimeline(g *airspace.Graph, route []string, speed float64, entry time.Time) (Timeline, error) {
	if len(route) == 0 {
		return nil, fmt.Errorf("%w: empty route", ErrInvalidRoute)
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	if !g.HasWaypoint(route[0]) {
		return nil, fmt.Errorf("%w: %s", airspace.ErrUnknownWaypoint, route[0])
	}

	tl := make(Timeline, 0, len(route))
	tl = append(tl, Fix{Waypoint: route[0], Time: entry})

	var cumulative float64
	for i := 1; i < len(route); i++ {
		from, to := route[i-1], route[i]
		if !g.HasWaypoint(to) {
			return nil, fmt.Errorf("%w: %s", airspace.ErrUnknownWaypoint, to)
		}
		d, err := g.Distance(from, to)
		if err != nil {
			return nil, fmt.Errorf("%w: no airway %s-%s", ErrDisconnectedRoute, from, to)
		}
		cumulative += d
		elapsed := time.Duration(math.Round(cumulative*3600/speed)) * time.Second
		tl = append(tl, Fix{Waypoint: to, Time: entry.Add(elapsed)})
	}
	return tl, nil
}

// newFlight validates p against g and derives its timeline.
func newFlight(g *airspace.Graph, p Plan) (*Flight, error) {
	if p.Callsign == "" {
		return nil, ErrInvalidCallsign
	}
	if !(p.Speed > 0) || math.IsInf(p.Speed, 0) {
		return nil, fmt.Errorf("%w: %s speed %v", ErrInvalidSpeed, p.Callsign, p.Speed)
	}
	if !ValidLevel(p.FlightLevel) {
		return nil, fmt.Errorf("%w: %s FL%03d", ErrInvalidLevel, p.Callsign, p.FlightLevel)
	}
	if p.EntryTime.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntryTime, p.Callsign)
	}
	if len(p.Route) < 2 {
		return nil, fmt.Errorf("%w: %s route needs at least two waypoints", ErrInvalidRoute, p.Callsign)
	}
	seen := make(map[string]bool, len(p.Route))
	for _, wp := range p.Route {
		if seen[wp] {
			return nil, fmt.Errorf("%w: %s visits %s twice", ErrInvalidRoute, p.Callsign, wp)
		}
		seen[wp] = true
		if !g.HasWaypoint(wp) {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidRoute, airspace.ErrUnknownWaypoint, wp)
		}
	}

	tl, err := ComputeTimeline(g, p.Route, p.Speed, p.EntryTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRoute, p.Callsign, err)
	}

	return &Flight{
		Callsign:    p.Callsign,
		Route:       append([]string(nil), p.Route...),
		Speed:       p.Speed,
		FlightLevel: p.FlightLevel,
		EntryTime:   p.EntryTime,
		Timeline:    tl,
	}, nil
}
