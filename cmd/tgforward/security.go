package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"tgforward/internal/httputil"

	"github.com/sirupsen/logrus"
)

// requireAdminToken guards mutating endpoints. The expected token comes from
// the environment only; comparison is constant-time over digests so token
// length does not leak.
func (s *Server) requireAdminToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := s.cfg.Server.AdminToken

		if expected == "" {
			if os.Getenv("TGFORWARD_ENV") == "production" {
				s.logger.Error("Admin token missing in production, rejecting request")
				s.respondErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			// Dev mode runs open; config validation already warned about it.
			next(w, r)
			return
		}

		presented := bearerToken(r)
		if !tokensEqual(presented, expected) {
			s.logger.WithFields(logrus.Fields{
				"client_ip": httputil.GetClientIP(r),
				"path":      r.URL.Path,
			}).Warn("Rejected request with invalid admin token")
			s.respondErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(w, r)
	}
}

// bearerToken extracts the admin token from the Authorization header or the
// X-Admin-Token fallback used by the UI.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Admin-Token")
}

func tokensEqual(presented, expected string) bool {
	if presented == "" {
		return false
	}
	presentedSum := sha256.Sum256([]byte(presented))
	expectedSum := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(presentedSum[:], expectedSum[:]) == 1
}
