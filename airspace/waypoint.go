package airspace

import (
	"fmt"
	"strings"
)

// WaypointType categorises a waypoint.
type WaypointType string

const (
	TypeFix          WaypointType = "FIX"
	TypeVOR          WaypointType = "VOR"
	TypeNDB          WaypointType = "NDB"
	TypeIntersection WaypointType = "INTERSECTION"
)

// ParseWaypointType accepts any case; an empty string is a FIX.
func ParseWaypointType(s string) (WaypointType, error) {
	switch t := WaypointType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return TypeFix, nil
	case TypeFix, TypeVOR, TypeNDB, TypeIntersection:
		return t, nil
	default:
		return "", fmt.Errorf("unknown waypoint type %q", s)
	}
}

// Direction describes how a route edge may be traversed.
type Direction string

const (
	Bidirectional Direction = "BIDIRECTIONAL"
	OneWay        Direction = "ONEWAY"
)

// ParseDirection accepts any case; an empty string is BIDIRECTIONAL.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case "":
		return Bidirectional, nil
	case Bidirectional, OneWay:
		return d, nil
	default:
		return "", fmt.Errorf("unknown route direction %q", s)
	}
}

// Waypoint is a named point in the airspace. Latitude and longitude are
// in degrees.
type Waypoint struct {
	Name      string       `json:"name"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Type      WaypointType `json:"type"`
}

// Route is an airway edge between two waypoints. Distance is in nautical
// miles.
type Route struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Distance  float64   `json:"distance"`
	Airway    string    `json:"airway"`
	Direction Direction `json:"direction"`
}

// Reversed returns the edge as seen when flown from To to From.
func (r Route) Reversed() Route {
	r.From, r.To = r.To, r.From
	return r
}
