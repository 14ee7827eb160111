package db

import (
	"context"
	"errors"
	"testing"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func TestCreateTeamWithTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &models.Team{
		Name:      "Launch",
		Members:   []string{"A@x.com", "b@x.com"},
		CreatedBy: "admin@x.com",
	}
	fallback := &models.Task{Title: "Everyone"}
	explicit := &models.Task{Title: "Just c", AssignedToEmails: []string{"c@x.com"}}

	if err := db.CreateTeam(ctx, team, []*models.Task{fallback, explicit}); err != nil {
		t.Fatalf("Failed to create team: %v", err)
	}

	got, err := db.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("Failed to get team: %v", err)
	}
	if got == nil {
		t.Fatalf("Team not found")
	}
	if len(got.Members) != 2 || got.Members[0] != "a@x.com" || got.Members[1] != "b@x.com" {
		t.Errorf("Expected normalized members, got %v", got.Members)
	}

	tasks, err := db.ListTasksForTeams(ctx, []string{team.ID})
	if err != nil {
		t.Fatalf("Failed to list team tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 team tasks, got %d", len(tasks))
	}
	byTitle := map[string]*models.Task{}
	for _, task := range tasks {
		byTitle[task.Title] = task
	}
	if a := byTitle["Everyone"].AssignedToEmails; len(a) != 2 {
		t.Errorf("Expected fallback to all members, got %v", a)
	}
	if a := byTitle["Just c"].AssignedToEmails; len(a) != 1 || a[0] != "c@x.com" {
		t.Errorf("Expected explicit assignee kept, got %v", a)
	}
	if byTitle["Everyone"].CreatedBy != "admin@x.com" {
		t.Errorf("Expected team creator as task creator, got %q", byTitle["Everyone"].CreatedBy)
	}
}

func TestListTeamsForMember(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, team := range []*models.Team{
		{Name: "Beta", Members: []string{"me@x.com"}},
		{Name: "Alpha", Members: []string{"me@x.com", "you@x.com"}},
		{Name: "Gamma", Members: []string{"you@x.com"}},
	} {
		if err := db.CreateTeam(ctx, team, nil); err != nil {
			t.Fatalf("Failed to create team: %v", err)
		}
	}

	teams, err := db.ListTeamsForMember(ctx, "Me@X.com")
	if err != nil {
		t.Fatalf("Failed to list teams: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != "Alpha" || teams[1].Name != "Beta" {
		t.Errorf("Expected [Alpha Beta], got %v", teams)
	}

	all, err := db.ListTeams(ctx)
	if err != nil {
		t.Fatalf("Failed to list teams: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 teams, got %d", len(all))
	}
}

func TestUpdateAndDeleteTeam(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &models.Team{Name: "Old", Members: []string{"a@x.com"}}
	task := &models.Task{Title: "T"}
	if err := db.CreateTeam(ctx, team, []*models.Task{task}); err != nil {
		t.Fatalf("Failed to create team: %v", err)
	}

	team.Name = "New"
	team.Members = []string{"b@x.com"}
	if err := db.UpdateTeam(ctx, team); err != nil {
		t.Fatalf("Failed to update team: %v", err)
	}
	got, err := db.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("Failed to get team: %v", err)
	}
	if got.Name != "New" || len(got.Members) != 1 || got.Members[0] != "b@x.com" {
		t.Errorf("Unexpected team after update: %+v", got)
	}

	if err := db.UpdateTeam(ctx, &models.Team{ID: "missing", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := db.DeleteTeam(ctx, team.ID); err != nil {
		t.Fatalf("Failed to delete team: %v", err)
	}
	if err := db.DeleteTeam(ctx, team.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	// The task survives with its team reference cleared.
	fetched, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched == nil {
		t.Fatalf("Expected task to survive team deletion")
	}
	if fetched.TeamID != nil {
		t.Errorf("Expected team reference cleared, got %v", *fetched.TeamID)
	}
}
