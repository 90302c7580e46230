package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/vainnor/airspace-engine/airspace"
	"github.com/vainnor/airspace-engine/flight"
	"github.com/vainnor/airspace-engine/pathfind"
	"github.com/vainnor/airspace-engine/scenario"
)

const maxBodyBytes = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// errorKinds maps engine errors to their reported kind and status. The
// first match wins, so wrapped causes that deserve their own kind come
// before the errors that wrap them.
var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{scenario.ErrInvalidDataset, "InvalidDataset", http.StatusBadRequest},
	{flight.ErrDuplicateCallsign, "DuplicateCallsign", http.StatusConflict},
	{airspace.ErrDuplicateKey, "DuplicateKey", http.StatusConflict},
	{flight.ErrDisconnectedRoute, "DisconnectedRoute", http.StatusBadRequest},
	{flight.ErrInvalidRoute, "InvalidRoute", http.StatusBadRequest},
	{flight.ErrInvalidSpeed, "InvalidSpeed", http.StatusBadRequest},
	{flight.ErrInvalidLevel, "InvalidLevel", http.StatusBadRequest},
	{flight.ErrInvalidCallsign, "InvalidCallsign", http.StatusBadRequest},
	{flight.ErrInvalidEntryTime, "InvalidEntryTime", http.StatusBadRequest},
	{flight.ErrNotFound, "NotFound", http.StatusNotFound},
	{airspace.ErrUnknownWaypoint, "UnknownWaypoint", http.StatusNotFound},
	{pathfind.ErrNoPath, "NoPath", http.StatusUnprocessableEntity},
	{context.DeadlineExceeded, "Timeout", http.StatusServiceUnavailable},
	{context.Canceled, "Canceled", http.StatusServiceUnavailable},
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			writeError(w, k.status, k.kind, sentence(err.Error()))
			return
		}
	}
	s.lg.Error("Unhandled engine error", "path", r.URL.Path, "error", err,
		"request_id", requestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "Internal", "Internal server error")
}

// sentence capitalizes the first letter of an error string for the
// response body.
func sentence(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		RegistryVersion: snap.Version,
		Flights:         len(snap.Flights),
		Waypoints:       snap.Graph.WaypointCount(),
		Uptime:          time.Since(s.started),
	})
}

func (s *Server) GetAirspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Airspace())
}

func (s *Server) ListFlights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Flights())
}

func (s *Server) GetFlight(w http.ResponseWriter, r *http.Request) {
	f, err := s.engine.Flight(mux.Vars(r)["callsign"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) AddFlight(w http.ResponseWriter, r *http.Request) {
	var req FlightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.engine.AddFlight(req.Plan())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) RemoveFlight(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveFlight(mux.Vars(r)["callsign"]); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RerouteFlight(w http.ResponseWriter, r *http.Request) {
	var req RerouteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.engine.Reroute(mux.Vars(r)["callsign"], req.Route)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) GetConflicts(w http.ResponseWriter, r *http.Request) {
	cs, err := s.engine.Conflicts(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) SuggestPath(w http.ResponseWriter, r *http.Request) {
	var req pathfind.Request
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.SuggestPath(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) LoadTestData(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.LoadTestData()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LoadDataset installs a YAML or JSON dataset document from the body.
func (s *Server) LoadDataset(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("Error reading body: %v", err))
		return
	}
	d, err := scenario.Parse(body)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	res, err := s.engine.LoadDataset(d)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) GetMonitorStats(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "MonitorDisabled", "Conflict monitor is not running")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Stats())
}
