package airspace

import "errors"

var (
	ErrDuplicateKey    = errors.New("waypoint already exists")
	ErrInvalidDistance = errors.New("route distance must be positive")
	ErrInvalidPosition = errors.New("waypoint position out of range")
	ErrInvalidWaypoint = errors.New("waypoint name is required")
	ErrNoRoute         = errors.New("no route between waypoints")
	ErrSelfLoop        = errors.New("route must join two distinct waypoints")
	ErrUnknownWaypoint = errors.New("unknown waypoint")
)
