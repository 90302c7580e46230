package api

import (
	"time"

	"github.com/vainnor/airspace-engine/flight"
)

// FlightRequest is the body of POST /flights.
type FlightRequest struct {
	Callsign    string    `json:"callsign"`
	Route       []string  `json:"route"`
	Speed       float64   `json:"speed"`
	FlightLevel int       `json:"flight_level"`
	EntryTime   time.Time `json:"entry_time"`
}

func (req FlightRequest) Plan() flight.Plan {
	return flight.Plan{
		Callsign:    req.Callsign,
		Route:       req.Route,
		Speed:       req.Speed,
		FlightLevel: req.FlightLevel,
		EntryTime:   req.EntryTime,
	}
}

// RerouteRequest is the body of POST /flights/{callsign}/reroute.
type RerouteRequest struct {
	Route []string `json:"route"`
}
