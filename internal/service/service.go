// Package service is the write path shared by the HTTP API, the MCP tools
// and the terminal board. It enforces roles, validates input and records
// an activity log entry for every change.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nick-dorsch/teamtasks/internal/db"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
)

// Store is the persistence the services need. *db.DB implements it.
type Store interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]*models.Task, error)
	ListTasksAssignedTo(ctx context.Context, email string) ([]*models.Task, error)
	ListTasksForTeams(ctx context.Context, teamIDs []string) ([]*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AddComment(ctx context.Context, c *models.Comment) error

	CreateTeam(ctx context.Context, team *models.Team, tasks []*models.Task) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]*models.Team, error)
	ListTeamsForMember(ctx context.Context, email string) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	EnsureUser(ctx context.Context, email string, role models.Role) (*models.User, bool, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	SetUserRole(ctx context.Context, id string, role models.Role) error
	DeleteUser(ctx context.Context, id string) error

	LogActivity(ctx context.Context, a *models.Activity) error
	ListActivity(ctx context.Context, search string, limit int) ([]*models.Activity, error)
}

// Options configure identity provisioning.
type Options struct {
	// AdminEmails are provisioned as admins on first sight.
	AdminEmails []string
	// DefaultRole is given to every other new user. Empty means member.
	DefaultRole models.Role
}

type base struct {
	store  Store
	logger *slog.Logger
	opts   Options
}

// Service groups the per-resource services.
type Service struct {
	Tasks    *Tasks
	Teams    *Teams
	Users    *Users
	Activity *Activity
}

func New(store Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = models.RoleMember
	}
	opts.AdminEmails = models.NormalizeEmails(opts.AdminEmails)

	b := &base{store: store, logger: logger, opts: opts}
	return &Service{
		Tasks:    &Tasks{base: b},
		Teams:    &Teams{base: b},
		Users:    &Users{base: b},
		Activity: &Activity{base: b},
	}
}

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return fmt.Errorf("%w: no identity", ErrForbidden)
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// translate maps store errors onto service errors.
func translate(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// record writes an activity entry. Failures are logged and swallowed so a
// broken log never fails the change it describes.
func (b *base) record(ctx context.Context, actor *models.User, typ models.ActivityType, action string, task *models.Task) {
	a := &models.Activity{Type: typ, Action: action}
	if actor != nil {
		a.ActorEmail = actor.Email
		a.ActorName = actor.DisplayName()
	}
	if task != nil {
		a.TaskID = task.ID
		a.TaskTitle = task.Title
	}
	if err := b.store.LogActivity(ctx, a); err != nil {
		b.logger.Warn("failed to log activity", "type", typ, "error", err)
	}
}

// viewerTeams returns the teams whose tasks actor may see through
// membership. Admins need none.
func (b *base) viewerTeams(ctx context.Context, actor *models.User) ([]*models.Team, error) {
	if actor.IsAdmin() {
		return nil, nil
	}
	return b.store.ListTeamsForMember(ctx, actor.Email)
}

// canSee reports whether the task is visible to actor.
func (b *base) canSee(ctx context.Context, actor *models.User, t *models.Task) (bool, error) {
	teams, err := b.viewerTeams(ctx, actor)
	if err != nil {
		return false, err
	}
	return visibility.StrategyFor(visibility.ViewerOf(actor), teams).Visible(t), nil
}
