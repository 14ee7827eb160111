package db

import (
	"context"
	"errors"
	"testing"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func TestEnsureUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, created, err := db.EnsureUser(ctx, " Alice@Example.com ", models.RoleMember)
	if err != nil {
		t.Fatalf("Failed to ensure user: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the user")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Expected normalized email, got %s", u.Email)
	}
	if u.Name != "alice" {
		t.Errorf("Expected default name alice, got %s", u.Name)
	}
	if u.Role != models.RoleMember {
		t.Errorf("Expected member role, got %s", u.Role)
	}

	again, created, err := db.EnsureUser(ctx, "ALICE@example.com", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Failed to ensure user: %v", err)
	}
	if created {
		t.Error("Expected second call to find the existing user")
	}
	if again.ID != u.ID {
		t.Errorf("Expected existing user %s, got %s", u.ID, again.ID)
	}
	if again.Role != models.RoleMember {
		t.Errorf("Expected existing role to be kept, got %s", again.Role)
	}
}

func TestUserRoleAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &models.User{Email: "bob@x.com", Name: "Bob"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if err := db.SetUserRole(ctx, u.ID, models.RoleAdmin); err != nil {
		t.Fatalf("Failed to set role: %v", err)
	}
	got, err := db.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if !got.IsAdmin() {
		t.Errorf("Expected admin role, got %s", got.Role)
	}

	if err := db.SetUserRole(ctx, "missing", models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := db.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	got, err = db.GetUserByEmail(ctx, "bob@x.com")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if got != nil {
		t.Errorf("Expected user to be deleted")
	}
	if err := db.DeleteUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateUserEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.CreateUser(ctx, &models.User{Email: "dup@x.com"}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := db.CreateUser(ctx, &models.User{Email: "DUP@x.com"}); err == nil {
		t.Errorf("Expected unique constraint error for duplicate email")
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected 1 user, got %d", len(users))
	}
}
