package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/flight"
)

var ErrInvalidDataset = errors.New("invalid dataset")

// Dataset is a complete airspace and flight set as read from a YAML or
// JSON document.
type Dataset struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// BaseDate (YYYY-MM-DD, UTC) anchors clock-only entry times.
	BaseDate  string        `json:"base_date,omitempty" yaml:"base_date,omitempty"`
	Waypoints []WaypointDoc `json:"waypoints" yaml:"waypoints"`
	Routes    []RouteDoc    `json:"edges" yaml:"edges"`
	Flights   []FlightDoc   `json:"flights,omitempty" yaml:"flights,omitempty"`
}

type WaypointDoc struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
	Type      string  `json:"type,omitempty" yaml:"type,omitempty"`
}

// RouteDoc is an airway edge. A zero distance is replaced by the
// great-circle distance between the endpoints.
type RouteDoc struct {
	Source    string  `json:"source" yaml:"source"`
	Target    string  `json:"target" yaml:"target"`
	Distance  float64 `json:"distance_nm,omitempty" yaml:"distance_nm,omitempty"`
	Airway    string  `json:"airway,omitempty" yaml:"airway,omitempty"`
	Direction string  `json:"direction,omitempty" yaml:"direction,omitempty"`
}

type FlightDoc struct {
	Callsign    string    `json:"callsign" yaml:"callsign"`
	Route       RouteList `json:"route" yaml:"route"`
	Speed       float64   `json:"speed" yaml:"speed"`
	FlightLevel Level     `json:"flight_level" yaml:"flight_level"`
	// EntryTime is RFC 3339, or HH:MM on BaseDate.
	EntryTime string `json:"entry_time" yaml:"entry_time"`
}

// Parse decodes a YAML or JSON dataset document.
func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return &d, nil
}

// Load reads a dataset file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Build constructs the airspace graph and the flight plans of d. Plans are
// returned unvalidated against the graph; flight.Registry.Replace does
// that atomically.
func (d *Dataset) Build() (*airspace.Graph, []flight.Plan, error) {
	if len(d.Waypoints) == 0 {
		return nil, nil, fmt.Errorf("%w: no waypoints", ErrInvalidDataset)
	}
	g := airspace.NewGraph()
	for _, w := range d.Waypoints {
		typ, err := airspace.ParseWaypointType(w.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: waypoint %s: %w", ErrInvalidDataset, w.Name, err)
		}
		wp := airspace.Waypoint{Name: w.Name, Latitude: w.Latitude, Longitude: w.Longitude, Type: typ}
		if err := g.AddWaypoint(wp); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
		}
	}

	for i, r := range d.Routes {
		dir, err := airspace.ParseDirection(r.Direction)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: edge %d: %w", ErrInvalidDataset, i, err)
		}
		dist := r.Distance
		if dist == 0 {
			// Unknown endpoints fall through to AddRoute for the error.
			if gc, err := g.SeparationNM(r.Source, r.Target); err == nil {
				dist = gc
			}
		}
		route := airspace.Route{From: r.Source, To: r.Target, Distance: dist, Airway: r.Airway, Direction: dir}
		if err := g.AddRoute(route); err != nil {
			return nil, nil, fmt.Errorf("%w: edge %d: %w", ErrInvalidDataset, i, err)
		}
	}

	plans, err := d.Plans()
	if err != nil {
		return nil, nil, err
	}
	return g, plans, nil
}

// Plans converts the flight documents of d.
func (d *Dataset) Plans() ([]flight.Plan, error) {
	var base time.Time
	if d.BaseDate != "" {
		var err error
		base, err = time.Parse(time.DateOnly, d.BaseDate)
		if err != nil {
			return nil, fmt.Errorf("%w: base_date: %w", ErrInvalidDataset, err)
		}
	}

	plans := make([]flight.Plan, 0, len(d.Flights))
	for _, f := range d.Flights {
		entry, err := entryTime(base, f.EntryTime)
		if err != nil {
			return nil, fmt.Errorf("%w: flight %s: %w", ErrInvalidDataset, f.Callsign, err)
		}
		plans = append(plans, flight.Plan{
			Callsign:    f.Callsign,
			Route:       []string(f.Route),
			Speed:       f.Speed,
			FlightLevel: int(f.FlightLevel),
			EntryTime:   entry,
		})
	}
	return plans, nil
}

func entryTime(base time.Time, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	clock, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("entry_time %q is neither RFC 3339 nor HH:MM", s)
	}
	if base.IsZero() {
		return time.Time{}, fmt.Errorf("entry_time %q needs base_date", s)
	}
	return base.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
}

// Level is a flight level written either as a number (330) or as "FL330".
type Level int

func parseLevel(s string) (Level, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "FL")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid flight level %q", s)
	}
	return Level(n), nil
}

func (l *Level) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseLevel(value.Value)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	v, err := parseLevel(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// RouteList is a waypoint sequence written either as a list or as one
// string joined by "-" or "→".
type RouteList []string

func splitRoute(s string) RouteList {
	sep := "-"
	if strings.Contains(s, "→") {
		sep = "→"
	}
	var out RouteList
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *RouteList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = splitRoute(value.Value)
		return nil
	}
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	*r = names
	return nil
}

func (r *RouteList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = splitRoute(s)
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*r = names
	return nil
}
