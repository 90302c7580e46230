package flight

import "errors"

var (
	ErrDisconnectedRoute = errors.New("route references non-adjacent waypoints")
	ErrDuplicateCallsign = errors.New("flight with callsign already exists")
	ErrInvalidCallsign   = errors.New("callsign is required")
	ErrInvalidEntryTime  = errors.New("entry time is required")
	ErrInvalidLevel      = errors.New("invalid flight level")
	ErrInvalidRoute      = errors.New("invalid route")
	ErrInvalidSpeed      = errors.New("speed must be positive")
	ErrNotFound          = errors.New("no flight exists with specified callsign")
)
