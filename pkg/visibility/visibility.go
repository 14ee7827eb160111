// Package visibility decides which tasks a user may see and applies the
// dashboard filters on top. Everything here is a pure function of its
// inputs; callers re-run Resolve whenever the task set, the viewer or the
// filters change.
package visibility

import (
	"strings"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// Viewer is the identity a task list is resolved for.
type Viewer struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// ViewerOf returns the viewer for a stored user.
func ViewerOf(u *models.User) Viewer {
	return Viewer{Email: u.Email, Role: u.Role}
}

// Strategy is the visibility rule selected for a viewer.
type Strategy interface {
	Visible(t *models.Task) bool
}

// AdminView sees every task.
type AdminView struct{}

func (AdminView) Visible(*models.Task) bool { return true }

// MemberView sees tasks assigned to Email and tasks of the teams in TeamIDs.
type MemberView struct {
	Email   string
	TeamIDs map[string]struct{}
}

func (v MemberView) Visible(t *models.Task) bool {
	if t.IsAssignedTo(v.Email) {
		return true
	}
	if t.TeamID == nil {
		return false
	}
	_, ok := v.TeamIDs[*t.TeamID]
	return ok
}

// StrategyFor selects the strategy for viewer. userTeams are the teams the
// viewer belongs to; they are ignored for admins.
func StrategyFor(viewer Viewer, userTeams []*models.Team) Strategy {
	if viewer.Role == models.RoleAdmin {
		return AdminView{}
	}
	ids := make(map[string]struct{}, len(userTeams))
	for _, team := range userTeams {
		if team == nil || team.ID == "" {
			continue
		}
		ids[team.ID] = struct{}{}
	}
	return MemberView{Email: models.NormalizeEmail(viewer.Email), TeamIDs: ids}
}

// TeamsOf returns the teams whose member list contains email.
func TeamsOf(email string, teams []*models.Team) []*models.Team {
	var out []*models.Team
	for _, team := range teams {
		if team != nil && team.HasMember(email) {
			out = append(out, team)
		}
	}
	return out
}

// Filters are the dashboard filters. An empty clause always passes.
type Filters struct {
	Query    string `json:"q"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// IsZero reports whether no filter clause is set.
func (f Filters) IsZero() bool {
	return f.Query == "" && f.Status == "" && f.Priority == ""
}

// Matches reports whether t passes every set clause. A nil task never
// matches.
func (f Filters) Matches(t *models.Task) bool {
	if t == nil {
		return false
	}
	if f.Status != "" && string(t.Status) != f.Status {
		return false
	}
	if f.Priority != "" && string(t.Priority) != f.Priority {
		return false
	}
	if f.Query != "" {
		haystack := strings.ToLower(t.Title + " " + t.Description)
		if !strings.Contains(haystack, strings.ToLower(f.Query)) {
			return false
		}
	}
	return true
}

// Filter keeps the tasks matching f, in order.
func Filter(tasks []*models.Task, f Filters) []*models.Task {
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Merge combines task streams into one sequence with a single entry per id.
// A later record replaces an earlier one with the same id but keeps the
// earlier position. Records without an id are dropped.
func Merge(streams ...[]*models.Task) []*models.Task {
	index := make(map[string]int)
	var out []*models.Task
	for _, stream := range streams {
		for _, t := range stream {
			if t == nil || t.ID == "" {
				continue
			}
			if i, ok := index[t.ID]; ok {
				out[i] = t
				continue
			}
			index[t.ID] = len(out)
			out = append(out, t)
		}
	}
	return out
}

// Input is everything Resolve needs.
type Input struct {
	// Tasks is the task set known to the caller, possibly merged from
	// several streams already.
	Tasks []*models.Task
	// Loaded is false until the first delivery of task data.
	Loaded  bool
	Viewer  Viewer
	Teams   []*models.Team
	Filters Filters
}

// Result is the render-ready task list.
type Result struct {
	Tasks   []*models.Task `json:"tasks"`
	Loading bool           `json:"loading"`
}

// Resolve returns the tasks visible to in.Viewer that pass in.Filters, in
// input order. Duplicate ids collapse to the last record seen.
func Resolve(in Input) Result {
	if !in.Loaded {
		return Result{Tasks: []*models.Task{}, Loading: true}
	}

	strategy := StrategyFor(in.Viewer, in.Teams)
	merged := Merge(in.Tasks)

	out := make([]*models.Task, 0, len(merged))
	for _, t := range merged {
		if !strategy.Visible(t) {
			continue
		}
		if !in.Filters.Matches(t) {
			continue
		}
		out = append(out, t)
	}
	return Result{Tasks: out}
}
