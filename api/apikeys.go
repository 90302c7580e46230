package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// validateMasterKey accepts the key either bare or as a bearer token.
func validateMasterKey(r *http.Request, key string) bool {
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

// RequireMasterKey rejects requests without the master key. Without a
// configured key the endpoints are open.
func (s *Server) RequireMasterKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.masterKey != "" && !validateMasterKey(r, s.masterKey) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid Authorization header")
			return
		}
		next.ServeHTTP(w, r)
	})
}
