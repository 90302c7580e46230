package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter allows a fixed number of requests per client address within
// a window.
type RateLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	requests map[string]*ClientRequests
}

type ClientRequests struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		requests: make(map[string]*ClientRequests),
	}
}

// Allow records a request from client and reports whether it is within the
// limit, the requests remaining and when the window resets.
func (l *RateLimiter) Allow(client string, now time.Time) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Clean up old entries
	for ip, req := range l.requests {
		if now.Sub(req.windowStart) > l.window {
			delete(l.requests, ip)
		}
	}

	c, exists := l.requests[client]
	if !exists {
		c = &ClientRequests{windowStart: now}
		l.requests[client] = c
	}
	reset := c.windowStart.Add(l.window)
	if c.count >= l.max {
		return false, 0, reset
	}
	c.count++
	return true, l.max - c.count, reset
}

// Middleware enforces the limit. Requests carrying masterKey in the
// Authorization header bypass it.
func (l *RateLimiter) Middleware(masterKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if masterKey != "" && validateMasterKey(r, masterKey) {
				next.ServeHTTP(w, r)
				return
			}

			ok, remaining, reset := l.Allow(clientIP(r), time.Now())
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", reset.UTC().Format(time.RFC3339))
			if !ok {
				writeError(w, http.StatusTooManyRequests, "RateLimited", "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type requestIDKey struct{}

// RequestID tags every request with an X-Request-ID, keeping a
// client-supplied one.
func (s *Server) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// Hijack lets the conflict feed upgrade through the logging middleware.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.lg.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestID(r.Context()))
	})
}
