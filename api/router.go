package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vainnor/airspace-engine/engine"
	"github.com/vainnor/airspace-engine/logger"
	"github.com/vainnor/airspace-engine/types"
)

// Monitor exposes the scheduled conflict sweep.
type Monitor interface {
	Stats() types.MonitorStats
}

// Server serves the engine over HTTP.
type Server struct {
	engine    *engine.Engine
	monitor   Monitor
	feed      *Feed
	limiter   *RateLimiter
	masterKey string
	lg        *logger.Logger
	started   time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithMonitor(m Monitor) Option {
	return func(s *Server) { s.monitor = m }
}

func WithLogger(lg *logger.Logger) Option {
	return func(s *Server) { s.lg = lg }
}

// WithMasterKey protects the admin endpoints and lets holders of the key
// bypass rate limiting.
func WithMasterKey(key string) Option {
	return func(s *Server) { s.masterKey = key }
}

// WithRateLimit allows max requests per client within window.
func WithRateLimit(max int, window time.Duration) Option {
	return func(s *Server) { s.limiter = NewRateLimiter(max, window) }
}

// WithFeed publishes conflict reports on /ws/conflicts.
func WithFeed(f *Feed) Option {
	return func(s *Server) { s.feed = f }
}

func NewServer(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  e,
		limiter: NewRateLimiter(100, 5*time.Minute),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRouter creates and configures a new router with all API endpoints
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.RequestID, s.LogRequests)

	r.HandleFunc("/health", s.Health).Methods("GET")

	// Apply rate limiting middleware to all other routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(s.limiter.Middleware(s.masterKey))

	api.HandleFunc("/airspace", s.GetAirspace).Methods("GET")

	api.HandleFunc("/flights", s.ListFlights).Methods("GET")
	api.HandleFunc("/flights", s.AddFlight).Methods("POST")
	api.HandleFunc("/flights/{callsign}", s.GetFlight).Methods("GET")
	api.HandleFunc("/flights/{callsign}", s.RemoveFlight).Methods("DELETE")
	api.HandleFunc("/flights/{callsign}/reroute", s.RerouteFlight).Methods("POST")

	api.HandleFunc("/conflicts", s.GetConflicts).Methods("GET")
	api.HandleFunc("/suggest_path", s.SuggestPath).Methods("POST")
	api.HandleFunc("/stats", s.GetStats).Methods("GET")
	api.HandleFunc("/load_test_data", s.LoadTestData).Methods("POST")

	api.HandleFunc("/monitor/stats", s.GetMonitorStats).Methods("GET")
	api.HandleFunc("/export/conflicts.xlsx", s.ExportConflicts).Methods("GET")
	if s.feed != nil {
		api.Handle("/ws/conflicts", s.feed).Methods("GET")
	}

	// Admin endpoints require the master key
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.RequireMasterKey)
	admin.HandleFunc("/dataset", s.LoadDataset).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "No such endpoint")
	})
	return r
}
