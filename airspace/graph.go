package airspace

import (
	"fmt"
	"iter"
	"math"
	"sync/atomic"
)

var graphIDs atomic.Uint64

// Graph is the static airspace: waypoints indexed by name and the airway
// edges joining them.
//
// A Graph is built single-threaded (AddWaypoint/AddRoute) and is treated
// as read-only once it has been handed to a flight.Registry; concurrent
// readers need no locking.
type Graph struct {
	id uint64

	waypoints []Waypoint
	index     map[string]int

	routes []Route
	// adj maps a waypoint name to the indexes of the routes that can be
	// flown away from it.
	adj map[string][]int
}

// NewGraph returns an empty airspace graph.
func NewGraph() *Graph {
	return &Graph{
		id:    graphIDs.Add(1),
		index: make(map[string]int),
		adj:   make(map[string][]int),
	}
}

// ID identifies this graph instance; a reloaded airspace gets a new ID.
func (g *Graph) ID() uint64 { return g.id }

// AddWaypoint inserts wp. Names are unique.
func (g *Graph) AddWaypoint(wp Waypoint) error {
	if wp.Name == "" {
		return ErrInvalidWaypoint
	}
	if math.Abs(wp.Latitude) > 90 || math.Abs(wp.Longitude) > 180 {
		return fmt.Errorf("%w: %s (%f, %f)", ErrInvalidPosition, wp.Name, wp.Latitude, wp.Longitude)
	}
	if _, ok := g.index[wp.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, wp.Name)
	}
	if wp.Type == "" {
		wp.Type = TypeFix
	}
	g.index[wp.Name] = len(g.waypoints)
	g.waypoints = append(g.waypoints, wp)
	return nil
}

// AddRoute inserts an airway edge. Both endpoints must already exist.
// Several edges may join the same pair of waypoints.
func (g *Graph) AddRoute(r Route) error {
	for _, name := range []string{r.From, r.To} {
		if _, ok := g.index[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownWaypoint, name)
		}
	}
	if r.From == r.To {
		return fmt.Errorf("%w: %s", ErrSelfLoop, r.From)
	}
	if !(r.Distance > 0) || math.IsInf(r.Distance, 0) {
		return fmt.Errorf("%w: %s-%s %v", ErrInvalidDistance, r.From, r.To, r.Distance)
	}
	if r.Direction == "" {
		r.Direction = Bidirectional
	}

	idx := len(g.routes)
	g.routes = append(g.routes, r)
	g.adj[r.From] = append(g.adj[r.From], idx)
	if r.Direction == Bidirectional {
		g.adj[r.To] = append(g.adj[r.To], idx)
	}
	return nil
}

// Waypoint looks up a waypoint by name.
func (g *Graph) Waypoint(name string) (Waypoint, bool) {
	i, ok := g.index[name]
	if !ok {
		return Waypoint{}, false
	}
	return g.waypoints[i], true
}

// HasWaypoint reports whether name is part of the airspace.
func (g *Graph) HasWaypoint(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Neighbors yields the edges that can be flown away from name, each
// oriented so that From == name. One-way edges are only yielded from
// their origin.
func (g *Graph) Neighbors(name string) iter.Seq[Route] {
	return func(yield func(Route) bool) {
		for _, idx := range g.adj[name] {
			r := g.routes[idx]
			if r.From != name {
				r = r.Reversed()
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Edge returns the shortest edge that can be flown from -> to.
func (g *Graph) Edge(from, to string) (Route, bool) {
	var best Route
	found := false
	for r := range g.Neighbors(from) {
		if r.To == to && (!found || r.Distance < best.Distance) {
			best, found = r, true
		}
	}
	return best, found
}

// Distance returns the length in nautical miles of the edge from -> to.
func (g *Graph) Distance(from, to string) (float64, error) {
	r, ok := g.Edge(from, to)
	if !ok {
		return 0, fmt.Errorf("%w: %s-%s", ErrNoRoute, from, to)
	}
	return r.Distance, nil
}

// Waypoints yields the waypoints in insertion order.
func (g *Graph) Waypoints() iter.Seq[Waypoint] {
	return func(yield func(Waypoint) bool) {
		for _, wp := range g.waypoints {
			if !yield(wp) {
				return
			}
		}
	}
}

// Routes yields the edges in insertion order, as they were added.
func (g *Graph) Routes() iter.Seq[Route] {
	return func(yield func(Route) bool) {
		for _, r := range g.routes {
			if !yield(r) {
				return
			}
		}
	}
}

func (g *Graph) WaypointCount() int { return len(g.waypoints) }
func (g *Graph) RouteCount() int    { return len(g.routes) }

// SeparationNM returns the great-circle distance between two named
// waypoints.
func (g *Graph) SeparationNM(a, b string) (float64, error) {
	wa, ok := g.Waypoint(a)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownWaypoint, a)
	}
	wb, ok := g.Waypoint(b)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownWaypoint, b)
	}
	return GreatCircleNM(wa, wb), nil
}
