package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nick-dorsch/teamtasks/internal/service"
)

// Options configure the HTTP listener.
type Options struct {
	Bind        string
	ReadTimeout time.Duration
}

// Server is the HTTP JSON API.
type Server struct {
	svc    *service.Service
	logger *slog.Logger
	opts   Options
	now    func() time.Time
	server *http.Server
}

func NewServer(svc *service.Service, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	return &Server{svc: svc, logger: logger, opts: opts, now: time.Now}
}

// Handler returns the routed API with identity and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("GET /api/me", s.identify(s.handleMe))

	mux.Handle("GET /api/tasks", s.identify(s.handleListTasks))
	mux.Handle("POST /api/tasks", s.identify(s.handleCreateTask))
	mux.Handle("GET /api/tasks/{id}", s.identify(s.handleGetTask))
	mux.Handle("PATCH /api/tasks/{id}", s.identify(s.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.identify(s.handleDeleteTask))
	mux.Handle("POST /api/tasks/{id}/comments", s.identify(s.handleAddComment))

	mux.Handle("GET /api/teams", s.identify(s.handleListTeams))
	mux.Handle("GET /api/teams/mine", s.identify(s.handleMyTeams))
	mux.Handle("POST /api/teams", s.identify(s.handleCreateTeam))
	mux.Handle("PATCH /api/teams/{id}", s.identify(s.handleUpdateTeam))
	mux.Handle("DELETE /api/teams/{id}", s.identify(s.handleDeleteTeam))

	mux.Handle("GET /api/users", s.identify(s.handleListUsers))
	mux.Handle("POST /api/users", s.identify(s.handleAddUser))
	mux.Handle("PATCH /api/users/{id}/role", s.identify(s.handleSetRole))
	mux.Handle("DELETE /api/users/{id}", s.identify(s.handleDeleteUser))

	mux.Handle("GET /api/activity", s.identify(s.handleActivity))
	mux.Handle("GET /api/analytics", s.identify(s.handleAnalytics))

	return s.logRequests(mux)
}

// Start listens on the configured address. It blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.opts.Bind,
		Handler:     s.Handler(),
		ReadTimeout: s.opts.ReadTimeout,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.opts.Bind)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail maps service errors onto status codes. Unexpected errors are logged
// and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
