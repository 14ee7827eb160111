package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

type Teams struct {
	*base
}

// TeamInput is the body of a team create request.
type TeamInput struct {
	Name    string              `json:"name"`
	Members []string            `json:"members"`
	Tasks   []models.TaskRecord `json:"tasks,omitempty"`
}

// TeamPatch changes a team's name and/or member list.
type TeamPatch struct {
	Name    *string  `json:"name,omitempty"`
	Members []string `json:"members,omitempty"`
}

// Create makes a team together with its initial tasks.
func (s *Teams) Create(ctx context.Context, actor *models.User, in TeamInput) (*models.Team, []*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nil, invalid("team name is required")
	}

	tasks := make([]*models.Task, 0, len(in.Tasks))
	for i := range in.Tasks {
		rec := in.Tasks[i]
		if strings.TrimSpace(rec.Title) == "" {
			return nil, nil, invalid("task %d: title is required", i+1)
		}
		rec.TeamID = nil
		t, err := rec.ToTask()
		if err != nil {
			return nil, nil, invalid("task %d: %v", i+1, err)
		}
		t.ID = ""
		t.Title = strings.TrimSpace(t.Title)
		t.CreatedBy = actor.Email
		t.Comments = nil
		tasks = append(tasks, t)
	}

	team := &models.Team{Name: name, Members: in.Members, CreatedBy: actor.Email}
	if err := s.store.CreateTeam(ctx, team, tasks); err != nil {
		return nil, nil, err
	}

	s.record(ctx, actor, models.ActivityTeamCreated, fmt.Sprintf("Created team %s", team.Name), nil)
	for _, t := range tasks {
		s.record(ctx, actor, models.ActivityCreated, "Created a new task", t)
	}
	return team, tasks, nil
}

// Update renames a team or replaces its members.
func (s *Teams) Update(ctx context.Context, actor *models.User, id string, patch TeamPatch) (*models.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	team, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("team name is required")
		}
		team.Name = name
	}
	if patch.Members != nil {
		team.Members = patch.Members
	}
	if err := s.store.UpdateTeam(ctx, team); err != nil {
		return nil, translate(err)
	}

	s.record(ctx, actor, models.ActivityTeamUpdated, fmt.Sprintf("Updated team %s", team.Name), nil)
	return team, nil
}

// Delete removes a team. Its tasks stay, without a team.
func (s *Teams) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	team, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	if team == nil {
		return fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	if err := s.store.DeleteTeam(ctx, id); err != nil {
		return translate(err)
	}

	s.record(ctx, actor, models.ActivityTeamDeleted, fmt.Sprintf("Deleted team %s", team.Name), nil)
	return nil
}

// List returns every team for admins and the actor's own teams otherwise.
func (s *Teams) List(ctx context.Context, actor *models.User) ([]*models.Team, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: no identity", ErrForbidden)
	}
	if actor.IsAdmin() {
		return s.store.ListTeams(ctx)
	}
	return s.store.ListTeamsForMember(ctx, actor.Email)
}

// Mine returns the teams the actor is a member of, whatever the role.
func (s *Teams) Mine(ctx context.Context, actor *models.User) ([]*models.Team, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: no identity", ErrForbidden)
	}
	return s.store.ListTeamsForMember(ctx, actor.Email)
}
