package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/flight"
	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/pathfind"
	"github.com/vainnor/airspace-engine/scenario"
	"github.com/vainnor/airspace-engine/types"
)

// Engine ties the flight registry to conflict detection and route
// suggestion. Every query works on a single registry snapshot.
type Engine struct {
	registry  *flight.Registry
	detector  *conflict.Detector
	suggester *pathfind.Suggester
	timeout   time.Duration
	lg        *logger.Logger

	thresholds   conflict.Thresholds
	cacheSize    int
	cacheTTL     time.Duration
	registryOpts []flight.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds sets the conflict detection limits.
func WithThresholds(th conflict.Thresholds) Option {
	return func(e *Engine) { e.thresholds = th }
}

// WithPathCache sizes the route suggestion cache; size 0 disables it.
func WithPathCache(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cacheSize = size
		e.cacheTTL = ttl
	}
}

// WithRequestTimeout bounds every conflict scan and path search.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithLogger(lg *logger.Logger) Option {
	return func(e *Engine) { e.lg = lg }
}

// WithObserver is notified after every registry mutation.
func WithObserver(fn flight.Observer) Option {
	return func(e *Engine) { e.registryOpts = append(e.registryOpts, flight.WithObserver(fn)) }
}

// New creates an engine over g with no flights. A nil g starts with an
// empty airspace.
func New(g *airspace.Graph, opts ...Option) *Engine {
	e := &Engine{
		thresholds: conflict.DefaultThresholds(),
		cacheSize:  256,
		cacheTTL:   10 * time.Minute,
		timeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if g == nil {
		g = airspace.NewGraph()
	}
	e.registry = flight.NewRegistry(g, e.registryOpts...)
	e.detector = conflict.NewDetector(e.thresholds)
	e.suggester = pathfind.NewSuggester(e.cacheSize, e.cacheTTL)
	return e
}

func (e *Engine) Registry() *flight.Registry      { return e.registry }
func (e *Engine) Snapshot() *flight.Snapshot      { return e.registry.Snapshot() }
func (e *Engine) Thresholds() conflict.Thresholds { return e.thresholds }
func (e *Engine) Subscribe(fn flight.Observer)    { e.registry.Subscribe(fn) }

// Airspace is the JSON view of the graph.
type Airspace struct {
	Waypoints []airspace.Waypoint `json:"waypoints"`
	Routes    []airspace.Route    `json:"routes"`
}

func (e *Engine) Airspace() Airspace {
	g := e.registry.Graph()
	a := Airspace{
		Waypoints: slices.Collect(g.Waypoints()),
		Routes:    slices.Collect(g.Routes()),
	}
	if a.Waypoints == nil {
		a.Waypoints = []airspace.Waypoint{}
	}
	if a.Routes == nil {
		a.Routes = []airspace.Route{}
	}
	return a
}

// Flights lists the scheduled flights in insertion order.
func (e *Engine) Flights() []*flight.Flight {
	out := slices.Collect(e.registry.List())
	if out == nil {
		out = []*flight.Flight{}
	}
	return out
}

func (e *Engine) Flight(callsign string) (*flight.Flight, error) {
	f, ok := e.registry.Get(callsign)
	if !ok {
		return nil, fmt.Errorf("%w: %s", flight.ErrNotFound, callsign)
	}
	return f, nil
}

func (e *Engine) AddFlight(p flight.Plan) (*flight.Flight, error) {
	f, err := e.registry.Add(p)
	if err != nil {
		return nil, err
	}
	e.lg.Info("Flight added", "callsign", f.Callsign, "route", f.Route, "flight_level", f.FlightLevel)
	return f, nil
}

func (e *Engine) RemoveFlight(callsign string) error {
	if err := e.registry.Remove(callsign); err != nil {
		return err
	}
	e.lg.Info("Flight removed", "callsign", callsign)
	return nil
}

func (e *Engine) Reroute(callsign string, route []string) (*flight.Flight, error) {
	f, err := e.registry.Reroute(callsign, route)
	if err != nil {
		return nil, err
	}
	e.lg.Info("Flight rerouted", "callsign", callsign, "route", route)
	return f, nil
}

// Conflicts detects conflicts on the current snapshot.
func (e *Engine) Conflicts(ctx context.Context) ([]conflict.Conflict, error) {
	return e.ConflictsIn(ctx, e.registry.Snapshot())
}

// ConflictsIn detects conflicts on s within the request timeout.
func (e *Engine) ConflictsIn(ctx context.Context, s *flight.Snapshot) ([]conflict.Conflict, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.detector.Detect(ctx, s)
}

func (e *Engine) SuggestPath(ctx context.Context, req pathfind.Request) (pathfind.Result, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.suggester.Suggest(ctx, e.registry.Snapshot(), req)
}

// Stats summarises a single snapshot, so its counts agree with each other.
func (e *Engine) Stats(ctx context.Context) (types.Stats, error) {
	s := e.registry.Snapshot()
	cs, err := e.ConflictsIn(ctx, s)
	if err != nil {
		return types.Stats{}, err
	}
	return types.Stats{
		WaypointsCount: s.Graph.WaypointCount(),
		FlightsCount:   len(s.Flights),
		ConflictsCount: len(cs),
		ConflictTypes:  conflict.CountByType(cs),
		RoutesCount:    s.Graph.RouteCount(),
	}, nil
}

// LoadDataset atomically replaces the airspace and every flight with the
// contents of d. On error nothing changes.
func (e *Engine) LoadDataset(d *scenario.Dataset) (types.LoadResult, error) {
	g, plans, err := d.Build()
	if err != nil {
		return types.LoadResult{}, err
	}
	if err := e.registry.Replace(g, plans); err != nil {
		return types.LoadResult{}, fmt.Errorf("%w: %w", scenario.ErrInvalidDataset, err)
	}
	e.suggester.Purge()

	name := d.Name
	if name == "" {
		name = "dataset"
	}
	e.lg.Info("Dataset loaded", "name", name, "waypoints", g.WaypointCount(), "flights", len(plans))
	return types.LoadResult{
		Message:        fmt.Sprintf("%s loaded successfully", name),
		WaypointsCount: g.WaypointCount(),
		FlightsCount:   len(plans),
	}, nil
}

// LoadTestData installs the built-in demonstration dataset.
func (e *Engine) LoadTestData() (types.LoadResult, error) {
	res, err := e.LoadDataset(scenario.Builtin())
	if err != nil {
		return res, err
	}
	res.Message = "Test data loaded successfully"
	return res, nil
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
