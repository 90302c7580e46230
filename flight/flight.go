package flight

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iancoleman/orderedmap"
)

// Flight levels are hundreds of feet: FL010 through FL600 in steps of 10.
const (
	MinFlightLevel  = 10
	MaxFlightLevel  = 600
	FlightLevelStep = 10
)

// ValidLevel reports whether fl belongs to the discrete set of assignable
// flight levels.
func ValidLevel(fl int) bool {
	return fl >= MinFlightLevel && fl <= MaxFlightLevel && fl%FlightLevelStep == 0
}

// Plan is a request to schedule a flight.
type Plan struct {
	Callsign    string    `json:"callsign" yaml:"callsign"`
	Route       []string  `json:"route" yaml:"route"`
	Speed       float64   `json:"speed" yaml:"speed"`
	FlightLevel int       `json:"flight_level" yaml:"flight_level"`
	EntryTime   time.Time `json:"entry_time" yaml:"entry_time"`
}

// Flight is a scheduled flight together with its derived timeline.
// Flights are immutable once created; a correction is a new Flight.
type Flight struct {
	Callsign    string    `json:"callsign"`
	Route       []string  `json:"route"`
	Speed       float64   `json:"speed"` // knots
	FlightLevel int       `json:"flight_level"`
	EntryTime   time.Time `json:"entry_time"`
	Timeline    Timeline  `json:"timeline"`
}

// Plan returns the request that would recreate f.
func (f *Flight) Plan() Plan {
	return Plan{
		Callsign:    f.Callsign,
		Route:       append([]string(nil), f.Route...),
		Speed:       f.Speed,
		FlightLevel: f.FlightLevel,
		EntryTime:   f.EntryTime,
	}
}

// Leg is one directed hop of a flight's route with the times the flight
// enters and leaves it.
type Leg struct {
	From, To    string
	Enter, Exit time.Time
}

// Legs returns the flight's segments in route order.
func (f *Flight) Legs() []Leg {
	legs := make([]Leg, 0, len(f.Timeline)-1)
	for i := 1; i < len(f.Timeline); i++ {
		legs = append(legs, Leg{
			From:  f.Timeline[i-1].Waypoint,
			To:    f.Timeline[i].Waypoint,
			Enter: f.Timeline[i-1].Time,
			Exit:  f.Timeline[i].Time,
		})
	}
	return legs
}

// Fix is the estimated arrival time at one waypoint.
type Fix struct {
	Waypoint string
	Time     time.Time
}

// Timeline is a flight's arrival schedule, in route order. It is encoded
// as a JSON object whose key order follows the route.
type Timeline []Fix

// At returns the arrival time at wp.
func (tl Timeline) At(wp string) (time.Time, bool) {
	for _, fix := range tl {
		if fix.Waypoint == wp {
			return fix.Time, true
		}
	}
	return time.Time{}, false
}

// Waypoints returns the timeline keys in order.
func (tl Timeline) Waypoints() []string {
	names := make([]string, len(tl))
	for i, fix := range tl {
		names[i] = fix.Waypoint
	}
	return names
}

func (tl Timeline) MarshalJSON() ([]byte, error) {
	o := orderedmap.New()
	for _, fix := range tl {
		o.Set(fix.Waypoint, fix.Time.Format(time.RFC3339Nano))
	}
	return json.Marshal(o)
}

func (tl *Timeline) UnmarshalJSON(data []byte) error {
	o := orderedmap.New()
	if err := json.Unmarshal(data, o); err != nil {
		return err
	}
	out := make(Timeline, 0, len(o.Keys()))
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("timeline %s: expected timestamp string, got %T", k, v)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timeline %s: %w", k, err)
		}
		out = append(out, Fix{Waypoint: k, Time: t})
	}
	*tl = out
	return nil
}
