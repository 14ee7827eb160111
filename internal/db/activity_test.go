package db

import (
	"context"
	"testing"
	"time"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func TestListActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []*models.Activity{
		{Type: models.ActivityCreated, Action: "Created task Write docs", ActorName: "Alice", Timestamp: base},
		{Type: models.ActivityCommented, Action: "Commented on Write docs", ActorName: "Bob", Timestamp: base.Add(time.Minute)},
		{Type: models.ActivityDeleted, Action: "Deleted task Ship", ActorName: "alice", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, a := range entries {
		if err := db.LogActivity(ctx, a); err != nil {
			t.Fatalf("Failed to log activity: %v", err)
		}
	}

	all, err := db.ListActivity(ctx, "", 0)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	if all[0].Type != models.ActivityDeleted {
		t.Errorf("Expected newest first, got %s", all[0].Type)
	}

	byActor, err := db.ListActivity(ctx, "ALICE", 0)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(byActor) != 2 {
		t.Errorf("Expected 2 entries for alice, got %d", len(byActor))
	}

	byAction, err := db.ListActivity(ctx, "commented", 0)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(byAction) != 1 || byAction[0].ActorName != "Bob" {
		t.Errorf("Expected Bob's comment entry, got %v", byAction)
	}

	limited, err := db.ListActivity(ctx, "", 2)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries with limit, got %d", len(limited))
	}
}

func TestListActivityUnicodeSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []*models.Activity{
		{Type: models.ActivityCreated, Action: "Created a new task", ActorName: "Élodie", Timestamp: base},
		{Type: models.ActivityUpdated, Action: "Updated task details", ActorName: "Søren", Timestamp: base.Add(time.Minute)},
		{Type: models.ActivityCommented, Action: "Added a comment", ActorName: "élodie", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, a := range entries {
		if err := db.LogActivity(ctx, a); err != nil {
			t.Fatalf("Failed to log activity: %v", err)
		}
	}

	found, err := db.ListActivity(ctx, "ÉLODIE", 0)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("Expected 2 entries for élodie, got %d", len(found))
	}

	limited, err := db.ListActivity(ctx, "élodie", 1)
	if err != nil {
		t.Fatalf("Failed to list activity: %v", err)
	}
	if len(limited) != 1 || limited[0].Type != models.ActivityCommented {
		t.Errorf("Expected newest matching entry only, got %v", limited)
	}
}
