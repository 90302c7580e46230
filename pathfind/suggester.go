package pathfind

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/flight"
)

// Request asks for a route for Callsign from Start to Goal.
type Request struct {
	Callsign     string `json:"callsign"`
	Start        string `json:"start"`
	Goal         string `json:"goal"`
	AvoidTraffic bool   `json:"avoid_traffic,omitempty"`
}

// Result is a suggested route.
type Result struct {
	Callsign        string   `json:"callsign"`
	NewPath         []string `json:"new_path"`
	TotalDistanceNM float64  `json:"total_distance_nm"`
	WaypointsCount  int      `json:"waypoints_count"`
	OriginalStart   string   `json:"original_start"`
	OriginalGoal    string   `json:"original_goal"`
	// AvoidedTraffic is set when the path keeps clear of every segment
	// flown by other flights at the requesting flight's level.
	AvoidedTraffic bool `json:"avoided_traffic"`
}

type cacheKey struct {
	graph       uint64
	start, goal string
}

type cachedPath struct {
	path []string
	dist float64
}

// Suggester proposes alternate routes. Unconstrained searches are cached
// per airspace graph; a reloaded graph never hits entries of its
// predecessor.
type Suggester struct {
	cache *expirable.LRU[cacheKey, cachedPath]
}

// NewSuggester returns a Suggester caching up to size results for ttl. A
// size of zero disables the cache.
func NewSuggester(size int, ttl time.Duration) *Suggester {
	s := &Suggester{}
	if size > 0 {
		s.cache = expirable.NewLRU[cacheKey, cachedPath](size, nil, ttl)
	}
	return s
}

// Suggest searches the airspace of snap for req. Unknown endpoints are
// reported before an unknown callsign.
func (s *Suggester) Suggest(ctx context.Context, snap *flight.Snapshot, req Request) (Result, error) {
	g := snap.Graph
	for _, name := range []string{req.Start, req.Goal} {
		if !g.HasWaypoint(name) {
			return Result{}, fmt.Errorf("%w: %s", airspace.ErrUnknownWaypoint, name)
		}
	}
	f, ok := snap.Flight(req.Callsign)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", flight.ErrNotFound, req.Callsign)
	}

	res := Result{
		Callsign:      req.Callsign,
		OriginalStart: req.Start,
		OriginalGoal:  req.Goal,
	}

	if req.AvoidTraffic {
		path, dist, err := ShortestPath(ctx, g, req.Start, req.Goal, trafficAt(snap, f))
		switch {
		case err == nil:
			res.AvoidedTraffic = true
			return res.with(path, dist), nil
		case !errors.Is(err, ErrNoPath):
			return Result{}, err
		}
	}

	path, dist, err := s.plain(ctx, g, req.Start, req.Goal)
	if err != nil {
		return Result{}, err
	}
	return res.with(path, dist), nil
}

func (s *Suggester) plain(ctx context.Context, g *airspace.Graph, start, goal string) ([]string, float64, error) {
	key := cacheKey{graph: g.ID(), start: start, goal: goal}
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			return slices.Clone(hit.path), hit.dist, nil
		}
	}
	path, dist, err := ShortestPath(ctx, g, start, goal, nil)
	if err != nil {
		return nil, 0, err
	}
	if s.cache != nil {
		s.cache.Add(key, cachedPath{path: slices.Clone(path), dist: dist})
	}
	return path, dist, nil
}

// Purge drops every cached result.
func (s *Suggester) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (r Result) with(path []string, dist float64) Result {
	r.NewPath = path
	r.TotalDistanceNM = dist
	r.WaypointsCount = len(path)
	return r
}

// trafficAt blocks, in both directions, every segment flown by a flight
// other than self at self's flight level.
func trafficAt(snap *flight.Snapshot, self *flight.Flight) Blocked {
	busy := make(map[[2]string]bool)
	for _, f := range snap.Flights {
		if f.Callsign == self.Callsign || f.FlightLevel != self.FlightLevel {
			continue
		}
		for i := 1; i < len(f.Route); i++ {
			a, b := f.Route[i-1], f.Route[i]
			busy[[2]string{a, b}] = true
			busy[[2]string{b, a}] = true
		}
	}
	return func(from, to string) bool {
		return busy[[2]string{from, to}]
	}
}
