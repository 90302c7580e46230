package api

import (
	"time"

	"github.com/vainnor/airspace-engine/conflict"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status          string        `json:"status"`
	RegistryVersion uint64        `json:"registry_version"`
	Flights         int           `json:"flights"`
	Waypoints       int           `json:"waypoints"`
	Uptime          time.Duration `json:"uptime_ns"`
}

// ConflictFeedMessage is pushed to websocket clients after every registry
// change.
type ConflictFeedMessage struct {
	RegistryVersion uint64              `json:"registry_version"`
	Conflicts       []conflict.Conflict `json:"conflicts"`
	Error           string              `json:"error,omitempty"`
}
