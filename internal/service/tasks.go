package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

// NoCommentText replaces empty comment bodies.
const NoCommentText = "(No comment text)"

type Tasks struct {
	*base
}

// Visible loads the tasks viewer may see straight from the store and
// resolves them against filters. Members get the union of their assigned
// tasks and their teams' tasks.
func (s *Tasks) Visible(ctx context.Context, viewer visibility.Viewer, filters visibility.Filters) (visibility.Result, error) {
	in := visibility.Input{Loaded: true, Viewer: viewer, Filters: filters}

	if viewer.Role == models.RoleAdmin {
		tasks, err := s.store.ListTasks(ctx)
		if err != nil {
			return visibility.Result{}, err
		}
		in.Tasks = tasks
		return visibility.Resolve(in), nil
	}

	assigned, err := s.store.ListTasksAssignedTo(ctx, viewer.Email)
	if err != nil {
		return visibility.Result{}, err
	}
	teams, err := s.store.ListTeamsForMember(ctx, viewer.Email)
	if err != nil {
		return visibility.Result{}, err
	}
	ids := make([]string, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, team.ID)
	}
	teamTasks, err := s.store.ListTasksForTeams(ctx, ids)
	if err != nil {
		return visibility.Result{}, err
	}

	in.Tasks = visibility.Merge(assigned, teamTasks)
	in.Teams = teams
	return visibility.Resolve(in), nil
}

// Get returns a task the actor may see. Tasks outside the actor's view are
// reported as not found.
func (s *Tasks) Get(ctx context.Context, actor *models.User, id string) (*models.Task, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: no identity", ErrForbidden)
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	ok, err := s.canSee(ctx, actor, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return t, nil
}

// CreateTask creates a task from rec. Only admins may create tasks. A team
// task without explicit assignees is assigned to every team member.
func (s *Tasks) CreateTask(ctx context.Context, actor *models.User, rec models.TaskRecord) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Title) == "" {
		return nil, invalid("title is required")
	}

	t, err := rec.ToTask()
	if err != nil {
		return nil, invalid("%v", err)
	}
	t.ID = ""
	t.Title = strings.TrimSpace(t.Title)
	t.CreatedBy = actor.Email
	t.Comments = nil

	if t.TeamID != nil {
		team, err := s.store.GetTeam(ctx, *t.TeamID)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, invalid("unknown team %s", *t.TeamID)
		}
		if len(t.AssignedToEmails) == 0 {
			t.AssignedToEmails = append([]string(nil), team.Members...)
		}
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	s.record(ctx, actor, models.ActivityCreated, "Created a new task", t)
	return t, nil
}

// UpdateTask applies patch. Only admins may edit tasks.
func (s *Tasks) UpdateTask(ctx context.Context, actor *models.User, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, invalid("nothing to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, invalid("title is required")
		}
		patch.Title = &title
	}
	if patch.Status != nil {
		if _, err := models.ParseStatus(string(*patch.Status)); err != nil || *patch.Status == "" {
			return nil, invalid("invalid status %q", *patch.Status)
		}
	}
	if patch.Priority != nil {
		if _, err := models.ParsePriority(string(*patch.Priority)); err != nil || *patch.Priority == "" {
			return nil, invalid("invalid priority %q", *patch.Priority)
		}
	}
	if patch.TeamID != nil && *patch.TeamID != "" {
		team, err := s.store.GetTeam(ctx, *patch.TeamID)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, invalid("unknown team %s", *patch.TeamID)
		}
	}

	t, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, translate(err)
	}

	action := "Updated task details"
	if patch.Status != nil && patch.Title == nil && patch.Description == nil && patch.Priority == nil &&
		patch.DueDate == nil && !patch.ClearDueDate && patch.AssignedToEmails == nil && patch.TeamID == nil {
		action = fmt.Sprintf("Moved task to %s", *patch.Status)
	}
	s.record(ctx, actor, models.ActivityUpdated, action, t)
	return t, nil
}

// UpdateStatus is a shortcut for a status-only patch.
func (s *Tasks) UpdateStatus(ctx context.Context, actor *models.User, id string, status models.TaskStatus) (*models.Task, error) {
	return s.UpdateTask(ctx, actor, id, models.TaskPatch{Status: &status})
}

// DeleteTask removes a task and its comments. Only admins may delete.
func (s *Tasks) DeleteTask(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return translate(err)
	}

	s.record(ctx, actor, models.ActivityDeleted, "Deleted a task", t)
	return nil
}

// AddComment appends a comment to a task the actor can see.
func (s *Tasks) AddComment(ctx context.Context, actor *models.User, taskID, text string) (*models.Comment, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: no identity", ErrForbidden)
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	ok, err := s.canSee(ctx, actor, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: task %s is not visible to %s", ErrForbidden, taskID, actor.Email)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = NoCommentText
	}
	c := &models.Comment{
		TaskID:      taskID,
		Text:        text,
		AuthorEmail: actor.Email,
		AuthorName:  actor.DisplayName(),
	}
	if err := s.store.AddComment(ctx, c); err != nil {
		return nil, translate(err)
	}

	s.record(ctx, actor, models.ActivityCommented, "Added a comment", t)
	return c, nil
}
