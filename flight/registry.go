package flight

import (
	"fmt"
	"iter"
	"sync"

	"github.com/vainnor/airspace-engine/airspace"
)

// EventKind names a registry mutation.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventRemoved  EventKind = "removed"
	EventRerouted EventKind = "rerouted"
	EventReplaced EventKind = "replaced"
)

// Event describes a committed registry mutation. Flight is the new flight
// (nil on removal); Previous is the flight that left the registry, if any.
type Event struct {
	Kind     EventKind
	Flight   *Flight
	Previous *Flight
	Snapshot *Snapshot
}

// Observer is notified after a mutation commits, outside the registry lock.
type Observer func(Event)

// Option configures a Registry.
type Option func(*Registry)

// WithObserver registers fn to be called after every mutation.
func WithObserver(fn Observer) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, fn)
	}
}

// Snapshot is an immutable view of the airspace and the scheduled flights
// at one instant. Flights are in insertion order.
type Snapshot struct {
	Graph   *airspace.Graph
	Flights []*Flight
	// Version increases with every committed mutation.
	Version uint64

	byCallsign map[string]int
}

func newSnapshot(g *airspace.Graph, flights []*Flight, version uint64) *Snapshot {
	s := &Snapshot{
		Graph:      g,
		Flights:    flights,
		Version:    version,
		byCallsign: make(map[string]int, len(flights)),
	}
	for i, f := range flights {
		s.byCallsign[f.Callsign] = i
	}
	return s
}

// Flight looks up a flight by callsign.
func (s *Snapshot) Flight(callsign string) (*Flight, bool) {
	i, ok := s.byCallsign[callsign]
	if !ok {
		return nil, false
	}
	return s.Flights[i], true
}

// Registry is the authoritative, thread-safe collection of scheduled
// flights.
//
// The registry state is an immutable Snapshot that mutations replace
// wholesale under the write lock, so readers never observe a half-applied
// change and can keep using a snapshot after the lock is released.
type Registry struct {
	mu        sync.RWMutex
	current   *Snapshot
	observers []Observer
}

// NewRegistry creates an empty registry over the airspace g.
func NewRegistry(g *airspace.Graph, opts ...Option) *Registry {
	r := &Registry{current: newSnapshot(g, nil, 0)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds an observer after construction.
func (r *Registry) Subscribe(fn Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Snapshot returns the current consistent view.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Graph returns the airspace the registry validates flights against.
func (r *Registry) Graph() *airspace.Graph {
	return r.Snapshot().Graph
}

// Len returns the number of scheduled flights.
func (r *Registry) Len() int {
	return len(r.Snapshot().Flights)
}

// Get returns the flight with the given callsign.
func (r *Registry) Get(callsign string) (*Flight, bool) {
	return r.Snapshot().Flight(callsign)
}

// List yields the flights in insertion order. The sequence is bound to the
// state at the time List is called, so iterating it again yields the same
// flights.
func (r *Registry) List() iter.Seq[*Flight] {
	s := r.Snapshot()
	return func(yield func(*Flight) bool) {
		for _, f := range s.Flights {
			if !yield(f) {
				return
			}
		}
	}
}

// Add validates p, computes its timeline and schedules the flight. Nothing
// is stored when an error is returned.
func (r *Registry) Add(p Plan) (*Flight, error) {
	r.mu.Lock()
	cur := r.current
	if _, exists := cur.byCallsign[p.Callsign]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCallsign, p.Callsign)
	}
	f, err := newFlight(cur.Graph, p)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	flights := make([]*Flight, len(cur.Flights), len(cur.Flights)+1)
	copy(flights, cur.Flights)
	flights = append(flights, f)
	next := r.commit(cur.Graph, flights)
	observers := r.observers
	r.mu.Unlock()

	notify(observers, Event{Kind: EventAdded, Flight: f, Snapshot: next})
	return f, nil
}

// Remove deletes the flight with the given callsign.
func (r *Registry) Remove(callsign string) error {
	r.mu.Lock()
	cur := r.current
	i, ok := cur.byCallsign[callsign]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, callsign)
	}
	prev := cur.Flights[i]

	flights := make([]*Flight, 0, len(cur.Flights)-1)
	flights = append(flights, cur.Flights[:i]...)
	flights = append(flights, cur.Flights[i+1:]...)
	next := r.commit(cur.Graph, flights)
	observers := r.observers
	r.mu.Unlock()

	notify(observers, Event{Kind: EventRemoved, Previous: prev, Snapshot: next})
	return nil
}

// Reroute supersedes a flight with one flying route at the same speed,
// level and entry time. The flight keeps its position in the listing. The
// swap is atomic: on error the original flight is untouched.
func (r *Registry) Reroute(callsign string, route []string) (*Flight, error) {
	r.mu.Lock()
	cur := r.current
	i, ok := cur.byCallsign[callsign]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, callsign)
	}
	prev := cur.Flights[i]
	p := prev.Plan()
	p.Route = route
	f, err := newFlight(cur.Graph, p)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	flights := make([]*Flight, len(cur.Flights))
	copy(flights, cur.Flights)
	flights[i] = f
	next := r.commit(cur.Graph, flights)
	observers := r.observers
	r.mu.Unlock()

	notify(observers, Event{Kind: EventRerouted, Flight: f, Previous: prev, Snapshot: next})
	return f, nil
}

// Replace installs a new airspace and flight set in one step. A nil graph
// keeps the current airspace. Every plan is validated before anything is
// swapped; the first failure aborts the replacement.
func (r *Registry) Replace(g *airspace.Graph, plans []Plan) error {
	if g == nil {
		g = r.Graph()
	}
	flights := make([]*Flight, 0, len(plans))
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		if seen[p.Callsign] {
			return fmt.Errorf("%w: %s", ErrDuplicateCallsign, p.Callsign)
		}
		seen[p.Callsign] = true
		f, err := newFlight(g, p)
		if err != nil {
			return err
		}
		flights = append(flights, f)
	}

	r.mu.Lock()
	next := r.commit(g, flights)
	observers := r.observers
	r.mu.Unlock()

	notify(observers, Event{Kind: EventReplaced, Snapshot: next})
	return nil
}

// commit must be called with r.mu held for writing.
func (r *Registry) commit(g *airspace.Graph, flights []*Flight) *Snapshot {
	r.current = newSnapshot(g, flights, r.current.Version+1)
	return r.current
}

func notify(observers []Observer, ev Event) {
	for _, fn := range observers {
		fn(ev)
	}
}
