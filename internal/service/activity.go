package service

import (
	"context"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// DefaultActivityLimit caps activity listings when the caller gives none.
const DefaultActivityLimit = 200

type Activity struct {
	*base
}

// List returns the activity log, newest first. Only admins may read it.
func (s *Activity) List(ctx context.Context, actor *models.User, search string, limit int) ([]*models.Activity, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return s.store.ListActivity(ctx, search, limit)
}
