package conflict

import (
	"encoding/json"
	"time"
)

// Type is the category of a conflict.
type Type string

const (
	TypeCrossing Type = "crossing"
	TypeHeadOn   Type = "head-on"
	TypeOvertake Type = "overtake"
	TypeLateral  Type = "lateral"
)

// Types lists every category in reporting order.
var Types = []Type{TypeCrossing, TypeHeadOn, TypeOvertake, TypeLateral}

// Conflict is one of Crossing, HeadOn, Overtake or Lateral. The set is
// closed: only this package can add implementations.
type Conflict interface {
	Type() Type
	Base() Pair
	sealed()
}

// Pair holds the fields shared by every conflict. Flight1 sorts before
// Flight2. StartTime and EndTime bound the interval in which the two
// flights are in conflict.
type Pair struct {
	Flight1      string    `json:"flight1"`
	Flight2      string    `json:"flight2"`
	FlightLevel1 int       `json:"flight_level1"`
	FlightLevel2 int       `json:"flight_level2"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

func (p Pair) Base() Pair { return p }
func (Pair) sealed()      {}

// Crossing: both flights pass Waypoint within the crossing window.
type Crossing struct {
	Pair
	Waypoint string `json:"waypoint"`
}

// HeadOn: the flights fly Segment in opposite directions at overlapping
// times. Segment is oriented in Flight2's direction of travel.
type HeadOn struct {
	Pair
	Segment [2]string `json:"segment"`
}

// Overtake: the flights fly Segment in the same direction at overlapping
// times and the one entering later is faster.
type Overtake struct {
	Pair
	Segment [2]string `json:"segment"`
	// Trailing is the callsign of the faster, later flight.
	Trailing string `json:"trailing"`
}

// Lateral: Flight1 at WP1 and Flight2 at WP2 are close in space and time
// without sharing a track.
type Lateral struct {
	Pair
	WP1        string  `json:"wp1"`
	WP2        string  `json:"wp2"`
	DistanceNM float64 `json:"distance_nm"`
}

func (Crossing) Type() Type { return TypeCrossing }
func (HeadOn) Type() Type   { return TypeHeadOn }
func (Overtake) Type() Type { return TypeOvertake }
func (Lateral) Type() Type  { return TypeLateral }

func (c Crossing) MarshalJSON() ([]byte, error) {
	type fields Crossing
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{TypeCrossing, fields(c)})
}

func (c HeadOn) MarshalJSON() ([]byte, error) {
	type fields HeadOn
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{TypeHeadOn, fields(c)})
}

func (c Overtake) MarshalJSON() ([]byte, error) {
	type fields Overtake
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{TypeOvertake, fields(c)})
}

func (c Lateral) MarshalJSON() ([]byte, error) {
	type fields Lateral
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{TypeLateral, fields(c)})
}

// Describe renders the type-specific detail of c for tabular output.
func Describe(c Conflict) string {
	switch c := c.(type) {
	case Crossing:
		return c.Waypoint
	case HeadOn:
		return c.Segment[0] + "-" + c.Segment[1]
	case Overtake:
		return c.Segment[0] + "-" + c.Segment[1]
	case Lateral:
		return c.WP1 + "/" + c.WP2
	}
	return ""
}

// CountByType tallies conflicts per category. Every category is present in
// the result, with zero when it has no conflicts.
func CountByType(cs []Conflict) map[Type]int {
	counts := make(map[Type]int, len(Types))
	for _, t := range Types {
		counts[t] = 0
	}
	for _, c := range cs {
		counts[c.Type()]++
	}
	return counts
}
