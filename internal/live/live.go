// Package live keeps a feed.Feed in sync with the store for one viewer.
// Admins get a single stream of every task. Members get two streams, the
// tasks assigned to them and the tasks of their teams, which the feed
// merges. Every store change schedules a re-query of all streams.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nick-dorsch/teamtasks/internal/feed"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

// Stream names used in the feed.
const (
	StreamAll      = "all"
	StreamAssigned = "assigned"
	StreamTeam     = "team"
)

// Store is the subset of the database a session queries.
type Store interface {
	ListTasks(ctx context.Context) ([]*models.Task, error)
	ListTasksAssignedTo(ctx context.Context, email string) ([]*models.Task, error)
	ListTasksForTeams(ctx context.Context, teamIDs []string) ([]*models.Task, error)
	ListTeamsForMember(ctx context.Context, email string) ([]*models.Team, error)
	Watch(fn func(ctx context.Context)) (unwatch func())
}

// Session owns the feed of one viewer. Close must be called to stop the
// background refresh loop.
type Session struct {
	store  Store
	viewer visibility.Viewer
	feed   *feed.Feed
	logger *slog.Logger

	refreshMu sync.Mutex

	teamsMu sync.RWMutex
	teams   []*models.Team

	kick     chan struct{}
	unwatch  func()
	stopFunc context.CancelFunc
	stopped  chan struct{}
	once     sync.Once
}

// Open starts a session for viewer. The first query round runs before
// Open returns; if it fails the feed stays unloaded until a later round
// succeeds.
func Open(ctx context.Context, store Store, viewer visibility.Viewer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	viewer.Email = models.NormalizeEmail(viewer.Email)

	s := &Session{
		store:   store,
		viewer:  viewer,
		feed:    feed.New(logger),
		logger:  logger.With("viewer", viewer.Email, "role", viewer.Role),
		kick:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	s.Refresh(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopFunc = cancel
	s.unwatch = store.Watch(func(context.Context) { s.schedule() })
	go s.loop(loopCtx)

	return s
}

// Feed returns the session's feed.
func (s *Session) Feed() *feed.Feed {
	return s.feed
}

// Viewer returns the identity the session resolves for.
func (s *Session) Viewer() visibility.Viewer {
	return s.viewer
}

// Teams returns the viewer's teams as of the last refresh. Admin sessions
// do not track teams.
func (s *Session) Teams() []*models.Team {
	s.teamsMu.RLock()
	defer s.teamsMu.RUnlock()
	return append([]*models.Team(nil), s.teams...)
}

// Resolve runs the visibility resolver over the current feed contents.
func (s *Session) Resolve(filters visibility.Filters) visibility.Result {
	snap := s.feed.Snapshot()
	return visibility.Resolve(visibility.Input{
		Tasks:   snap.Tasks,
		Loaded:  snap.Loaded,
		Viewer:  s.viewer,
		Teams:   s.Teams(),
		Filters: filters,
	})
}

// Refresh re-runs every stream query synchronously. A failed query is
// logged and leaves that stream's previous records in place.
func (s *Session) Refresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.viewer.Role == models.RoleAdmin {
		tasks, err := s.store.ListTasks(ctx)
		if err != nil {
			s.logger.Warn("live query failed", "stream", StreamAll, "error", err)
			return
		}
		s.feed.Update(StreamAll, tasks)
		return
	}

	assigned, err := s.store.ListTasksAssignedTo(ctx, s.viewer.Email)
	if err != nil {
		s.logger.Warn("live query failed", "stream", StreamAssigned, "error", err)
	} else {
		s.feed.Update(StreamAssigned, assigned)
	}

	teams, err := s.store.ListTeamsForMember(ctx, s.viewer.Email)
	if err != nil {
		s.logger.Warn("live query failed", "stream", StreamTeam, "error", err)
		return
	}
	s.teamsMu.Lock()
	s.teams = teams
	s.teamsMu.Unlock()

	ids := make([]string, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, team.ID)
	}
	teamTasks, err := s.store.ListTasksForTeams(ctx, ids)
	if err != nil {
		s.logger.Warn("live query failed", "stream", StreamTeam, "error", err)
		return
	}
	s.feed.Update(StreamTeam, teamTasks)
}

// schedule requests a refresh. Bursts of changes collapse into one round.
func (s *Session) schedule() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			s.Refresh(ctx)
		}
	}
}

// Close detaches the session from the store and stops its refresh loop.
// It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.unwatch != nil {
			s.unwatch()
		}
		s.stopFunc()
		<-s.stopped
	})
}
