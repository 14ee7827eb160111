package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

type Users struct {
	*base
}

// Ensure resolves email to a user, provisioning it on first sight. Emails
// listed in Options.AdminEmails become admins; everyone else gets the
// default role.
func (s *Users) Ensure(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("invalid email %q", email)
	}

	role := s.opts.DefaultRole
	if slices.Contains(s.opts.AdminEmails, email) {
		role = models.RoleAdmin
	}
	u, created, err := s.store.EnsureUser(ctx, email, role)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("provisioned user", "email", email, "role", role)
	}
	return u, nil
}

// Add creates a user with an explicit role. Only admins may add users.
func (s *Users) Add(ctx context.Context, actor *models.User, email, name string, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.add(ctx, email, name, role)
}

// Bootstrap creates a user without an acting identity. It backs the CLI,
// which runs with local database access.
func (s *Users) Bootstrap(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	return s.add(ctx, email, name, role)
}

func (s *Users) add(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("invalid email %q", email)
	}
	if role == "" {
		role = s.opts.DefaultRole
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, invalid("%v", err)
	}
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invalid("user %s already exists", email)
	}

	u := &models.User{Email: email, Name: strings.TrimSpace(name), Role: role}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// List returns every user. Only admins may list users.
func (s *Users) List(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// SetRole changes a user's role. A nil actor is the local CLI.
func (s *Users) SetRole(ctx context.Context, actor *models.User, id string, role models.Role) (*models.User, error) {
	if actor != nil {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	parsed, err := models.ParseRole(string(role))
	if err != nil {
		return nil, invalid("%v", err)
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err := s.store.SetUserRole(ctx, id, parsed); err != nil {
		return nil, translate(err)
	}
	u.Role = parsed

	s.record(ctx, actor, models.ActivityRoleChanged, fmt.Sprintf("Changed role of %s to %s", u.Email, parsed), nil)
	return u, nil
}

// Delete removes a user record. Tasks and comments keep their emails.
func (s *Users) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return invalid("cannot delete yourself")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return translate(err)
	}
	return nil
}
