package server

import (
	"net/http"
	"strconv"

	"github.com/nick-dorsch/teamtasks/internal/analytics"
	"github.com/nick-dorsch/teamtasks/internal/service"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

func filtersFrom(r *http.Request) visibility.Filters {
	q := r.URL.Query()
	return visibility.Filters{
		Query:    q.Get("q"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
	}
}

// GET /api/tasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	res, err := s.svc.Tasks.Visible(r.Context(), visibility.ViewerOf(u), filtersFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/tasks/{id}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Tasks.Get(r.Context(), userFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var rec models.TaskRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	t, err := s.svc.Tasks.CreateTask(r.Context(), userFrom(r.Context()), rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// PATCH /api/tasks/{id}
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch models.TaskPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	t, err := s.svc.Tasks.UpdateTask(r.Context(), userFrom(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DELETE /api/tasks/{id}
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tasks.DeleteTask(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/tasks/{id}/comments
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := s.svc.Tasks.AddComment(r.Context(), userFrom(r.Context()), r.PathValue("id"), body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/teams
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.svc.Teams.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// GET /api/teams/mine
func (s *Server) handleMyTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.svc.Teams.Mine(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// POST /api/teams
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var in service.TeamInput
	if !decodeBody(w, r, &in) {
		return
	}
	team, tasks, err := s.svc.Teams.Create(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"team": team, "tasks": tasks})
}

// PATCH /api/teams/{id}
func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var patch service.TeamPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	team, err := s.svc.Teams.Update(r.Context(), userFrom(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// DELETE /api/teams/{id}
func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Teams.Delete(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// POST /api/users
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string      `json:"email"`
		Name  string      `json:"name"`
		Role  models.Role `json:"role"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.svc.Users.Add(r.Context(), userFrom(r.Context()), body.Email, body.Name, body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// PATCH /api/users/{id}/role
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role models.Role `json:"role"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.svc.Users.SetRole(r.Context(), userFrom(r.Context()), r.PathValue("id"), body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DELETE /api/users/{id}
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Users.Delete(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/activity?q=&limit=
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.svc.Activity.List(r.Context(), userFrom(r.Context()), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/analytics
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	res, err := s.svc.Tasks.Visible(r.Context(), visibility.ViewerOf(u), filtersFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(res.Tasks, s.now()))
}
