package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// LogActivity appends an entry to the activity log. It does not fire the
// change hooks; the log is not part of the task feed.
func (db *DB) LogActivity(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = db.now()
	}
	a.Timestamp = utc(a.Timestamp)
	_, err := db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, type, action, task_id, task_title, actor_email, actor_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Action, a.TaskID, a.TaskTitle, a.ActorEmail, a.ActorName, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// ListActivity returns log entries newest first. A non-empty search keeps
// entries whose action or actor name contains it, case-insensitively with
// Unicode folding, so it is applied here rather than in SQL.
// limit <= 0 means no limit.
func (db *DB) ListActivity(ctx context.Context, search string, limit int) ([]*models.Activity, error) {
	query := `
		SELECT id, type, action, task_id, task_title, actor_email, actor_name, timestamp
		FROM activity_logs
		ORDER BY timestamp DESC, rowid DESC
	`
	search = strings.ToLower(strings.TrimSpace(search))
	args := []any{}
	if search == "" && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []*models.Activity{}
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(&a.ID, &a.Type, &a.Action, &a.TaskID, &a.TaskTitle, &a.ActorEmail, &a.ActorName, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if search != "" && !matchesActivity(a, search) {
			continue
		}
		entries = append(entries, a)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

func matchesActivity(a *models.Activity, search string) bool {
	return strings.Contains(strings.ToLower(a.Action), search) ||
		strings.Contains(strings.ToLower(a.ActorName), search)
}
