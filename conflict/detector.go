package conflict

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/flight"
)

// Thresholds are the tunable limits of the detection rules. Flight levels
// are always compared for exact equality.
type Thresholds struct {
	// CrossingWindow is the largest arrival gap at a shared waypoint that
	// still counts as a crossing.
	CrossingWindow time.Duration `json:"crossing_window"`
	// SegmentTolerance pads both segment occupancy intervals before the
	// overlap test of head-on and overtake.
	SegmentTolerance time.Duration `json:"segment_tolerance"`
	// LateralWindow is the largest time gap between two nearby waypoints.
	LateralWindow time.Duration `json:"lateral_window"`
	// LateralDistanceNM is the great-circle distance under which two
	// distinct waypoints are considered nearby.
	LateralDistanceNM float64 `json:"lateral_distance_nm"`
}

// DefaultThresholds returns the limits used when nothing is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CrossingWindow:    5 * time.Minute,
		SegmentTolerance:  5 * time.Minute,
		LateralWindow:     5 * time.Minute,
		LateralDistanceNM: 20,
	}
}

// Detector scans flight pairs for conflicts. It holds no state between
// calls and is safe for concurrent use.
type Detector struct {
	th Thresholds
}

func NewDetector(th Thresholds) *Detector {
	return &Detector{th: th}
}

func (d *Detector) Thresholds() Thresholds { return d.th }

// Detect reports every conflict in s.
//
// Flights are ordered by callsign and each unordered pair is examined once
// with Flight1 < Flight2. A pair's conflicts are reported crossing first,
// then head-on, overtake and lateral; within a category they follow
// Flight1's route and then Flight2's. The scan stops with ctx's error when
// ctx is done.
func (d *Detector) Detect(ctx context.Context, s *flight.Snapshot) ([]Conflict, error) {
	return d.DetectFlights(ctx, s.Graph, s.Flights)
}

// DetectFlights is Detect over an explicit graph and flight set.
func (d *Detector) DetectFlights(ctx context.Context, g *airspace.Graph, flights []*flight.Flight) ([]Conflict, error) {
	sorted := slices.Clone(flights)
	slices.SortFunc(sorted, func(a, b *flight.Flight) int {
		return strings.Compare(a.Callsign, b.Callsign)
	})

	out := []Conflict{}
	for i, f1 := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, f2 := range sorted[i+1:] {
			if f1.FlightLevel != f2.FlightLevel {
				continue
			}
			out = d.pair(out, g, f1, f2)
		}
	}
	return out, nil
}

func (d *Detector) pair(out []Conflict, g *airspace.Graph, f1, f2 *flight.Flight) []Conflict {
	legs1, legs2 := f1.Legs(), f2.Legs()

	for _, fix := range f1.Timeline {
		t2, ok := f2.Timeline.At(fix.Waypoint)
		if !ok || absDiff(fix.Time, t2) > d.th.CrossingWindow {
			continue
		}
		out = append(out, Crossing{
			Pair:     newPair(f1, f2, minTime(fix.Time, t2), maxTime(fix.Time, t2)),
			Waypoint: fix.Waypoint,
		})
	}

	for _, l1 := range legs1 {
		for _, l2 := range legs2 {
			if l1.From != l2.To || l1.To != l2.From || !d.overlaps(l1, l2) {
				continue
			}
			out = append(out, HeadOn{
				Pair:    newPair(f1, f2, minTime(l1.Enter, l2.Enter), maxTime(l1.Exit, l2.Exit)),
				Segment: [2]string{l2.From, l2.To},
			})
		}
	}

	for _, l1 := range legs1 {
		for _, l2 := range legs2 {
			if l1.From != l2.From || l1.To != l2.To || !d.overlaps(l1, l2) {
				continue
			}
			var trailing *flight.Flight
			switch {
			case l2.Enter.After(l1.Enter) && f2.Speed > f1.Speed:
				trailing = f2
			case l1.Enter.After(l2.Enter) && f1.Speed > f2.Speed:
				trailing = f1
			default:
				continue
			}
			out = append(out, Overtake{
				Pair:     newPair(f1, f2, minTime(l1.Enter, l2.Enter), maxTime(l1.Exit, l2.Exit)),
				Segment:  [2]string{l1.From, l1.To},
				Trailing: trailing.Callsign,
			})
		}
	}

	shared := sharedSegments(legs1, legs2)
	for _, fix1 := range f1.Timeline {
		for _, fix2 := range f2.Timeline {
			if fix1.Waypoint == fix2.Waypoint || shared[segmentKey(fix1.Waypoint, fix2.Waypoint)] {
				continue
			}
			if absDiff(fix1.Time, fix2.Time) > d.th.LateralWindow {
				continue
			}
			dist, err := g.SeparationNM(fix1.Waypoint, fix2.Waypoint)
			if err != nil || dist > d.th.LateralDistanceNM {
				continue
			}
			out = append(out, Lateral{
				Pair:       newPair(f1, f2, minTime(fix1.Time, fix2.Time), maxTime(fix1.Time, fix2.Time)),
				WP1:        fix1.Waypoint,
				WP2:        fix2.Waypoint,
				DistanceNM: dist,
			})
		}
	}
	return out
}

// overlaps reports whether the two occupancy intervals intersect once each
// is widened by the segment tolerance. Touching intervals overlap.
func (d *Detector) overlaps(a, b flight.Leg) bool {
	tol := d.th.SegmentTolerance
	return !a.Enter.After(b.Exit.Add(tol)) && !b.Enter.After(a.Exit.Add(tol))
}

// sharedSegments returns the undirected segments flown by both flights.
func sharedSegments(legs1, legs2 []flight.Leg) map[string]bool {
	mine := make(map[string]bool, len(legs1))
	for _, l := range legs1 {
		mine[segmentKey(l.From, l.To)] = true
	}
	shared := make(map[string]bool)
	for _, l := range legs2 {
		if k := segmentKey(l.From, l.To); mine[k] {
			shared[k] = true
		}
	}
	return shared
}

func segmentKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func newPair(f1, f2 *flight.Flight, start, end time.Time) Pair {
	return Pair{
		Flight1:      f1.Callsign,
		Flight2:      f2.Callsign,
		FlightLevel1: f1.FlightLevel,
		FlightLevel2: f2.FlightLevel,
		StartTime:    start,
		EndTime:      end,
	}
}

func absDiff(a, b time.Time) time.Duration {
	if a.After(b) {
		return a.Sub(b)
	}
	return b.Sub(a)
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
