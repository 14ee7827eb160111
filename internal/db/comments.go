package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const commentColumns = `id, task_id, text, author_email, author_name, created_at`

// AddComment appends a comment to a task's thread.
func (db *DB) AddComment(ctx context.Context, c *models.Comment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, c.TaskID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check task: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("task %s: %w", c.TaskID, ErrNotFound)
	}

	if err := db.addComment(ctx, tx, c); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?`, db.now(), c.TaskID); err != nil {
		return fmt.Errorf("failed to touch task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comment: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) addComment(ctx context.Context, exec executor, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = db.now()
	}
	c.CreatedAt = utc(c.CreatedAt)
	query := `
		INSERT INTO comments (` + commentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, id) DO UPDATE SET
			text = excluded.text, author_email = excluded.author_email,
			author_name = excluded.author_name, created_at = excluded.created_at
	`
	_, err := exec.ExecContext(ctx, query, c.ID, c.TaskID, c.Text, c.AuthorEmail, c.AuthorName, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// ListComments returns a task's comments, oldest first.
func (db *DB) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return comments, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	c := &models.Comment{}
	if err := row.Scan(&c.ID, &c.TaskID, &c.Text, &c.AuthorEmail, &c.AuthorName, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
