package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nick-dorsch/teamtasks/internal/service"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// IdentityHeader carries the caller's email. Authentication happens in
// front of this service.
const IdentityHeader = "X-User-Email"

type userKey struct{}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// identify resolves the identity header to a user, provisioning unknown
// emails on first sight.
func (s *Server) identify(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(IdentityHeader)
		if email == "" {
			writeError(w, http.StatusUnauthorized, "missing "+IdentityHeader+" header")
			return
		}

		u, err := s.svc.Users.Ensure(r.Context(), email)
		if err != nil {
			if errors.Is(err, service.ErrInvalid) {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			s.fail(w, r, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"user", r.Header.Get(IdentityHeader),
		)
	})
}
