package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date, t.team_id,
	       t.created_by, t.created_at, t.updated_at`

// CreateTask inserts a new task with its assignees.
// If t.ID is empty, a new UUID is generated.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.createTask(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.TaskPriorityMedium
	}
	now := db.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.CreatedAt = utc(t.CreatedAt)
	t.UpdatedAt = now
	t.DueDate = utcPtr(t.DueDate)
	t.AssignedToEmails = models.NormalizeEmails(t.AssignedToEmails)
	if t.Comments == nil {
		t.Comments = []models.Comment{}
	}

	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date, team_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.TeamID,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return setAssignees(ctx, exec, t.ID, t.AssignedToEmails)
}

func setAssignees(ctx context.Context, exec executor, taskID string, emails []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	for i, email := range emails {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_assignees (task_id, email, position) VALUES (?, ?, ?)`,
			taskID, email, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add assignee %s: %w", email, err)
		}
	}
	return nil
}

// GetTask retrieves a task by its ID, including assignees and comments.
// It returns nil when no task matches.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return db.getTask(ctx, db.DB, id)
}

func (db *DB) getTask(ctx context.Context, exec executor, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = ?`
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := attachRelations(ctx, exec, []*models.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks returns every task, newest first.
func (db *DB) ListTasks(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t ORDER BY t.created_at DESC, t.id ASC`
	return db.queryTasks(ctx, query)
}

// ListTasksAssignedTo returns tasks whose assignee set contains email.
func (db *DB) ListTasksAssignedTo(ctx context.Context, email string) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE EXISTS (
			SELECT 1 FROM task_assignees a
			WHERE a.task_id = t.id AND a.email = ?
		)
		ORDER BY t.created_at DESC, t.id ASC
	`
	return db.queryTasks(ctx, query, models.NormalizeEmail(email))
}

// ListTasksForTeams returns tasks linked to any of the given teams.
func (db *DB) ListTasksForTeams(ctx context.Context, teamIDs []string) ([]*models.Task, error) {
	if len(teamIDs) == 0 {
		return []*models.Task{}, nil
	}
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.team_id IN (` + placeholders(len(teamIDs)) + `)
		ORDER BY t.created_at DESC, t.id ASC
	`
	return db.queryTasks(ctx, query, stringArgs(teamIDs)...)
}

// queryTasks is a helper to execute a query that returns a list of tasks.
func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	tasks, err := func() ([]*models.Task, error) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query tasks: %w", err)
		}
		defer rows.Close()

		tasks := []*models.Task{}
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan task: %w", err)
			}
			tasks = append(tasks, t)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
		return tasks, nil
	}()
	if err != nil {
		return nil, err
	}

	if err := attachRelations(ctx, db.DB, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.TeamID,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.AssignedToEmails = []string{}
	t.Comments = []models.Comment{}
	return t, nil
}

// attachRelations loads assignees and comments for tasks in two queries.
func attachRelations(ctx context.Context, exec executor, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*models.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	in := placeholders(len(ids))

	err := func() error {
		rows, err := exec.QueryContext(ctx,
			`SELECT task_id, email FROM task_assignees WHERE task_id IN (`+in+`) ORDER BY task_id, position`,
			stringArgs(ids)...,
		)
		if err != nil {
			return fmt.Errorf("failed to query assignees: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var taskID, email string
			if err := rows.Scan(&taskID, &email); err != nil {
				return fmt.Errorf("failed to scan assignee: %w", err)
			}
			t := byID[taskID]
			t.AssignedToEmails = append(t.AssignedToEmails, email)
		}
		return rows.Err()
	}()
	if err != nil {
		return err
	}

	rows, err := exec.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE task_id IN (`+in+`) ORDER BY created_at ASC, id ASC`,
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		t := byID[c.TaskID]
		t.Comments = append(t.Comments, *c)
	}
	return rows.Err()
}

// UpdateTask applies patch to the task with the given id and returns the
// updated task.
func (db *DB) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := db.getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	applyPatch(current, patch)
	current.UpdatedAt = db.now()

	query := `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, team_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = tx.ExecContext(ctx, query,
		current.Title, current.Description, current.Status, current.Priority,
		current.DueDate, current.TeamID, current.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if patch.AssignedToEmails != nil {
		if err := setAssignees(ctx, tx, id, current.AssignedToEmails); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	db.triggerChange(ctx)
	return current, nil
}

func applyPatch(t *models.Task, p models.TaskPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		t.DueDate = utcPtr(p.DueDate)
	}
	if p.AssignedToEmails != nil {
		t.AssignedToEmails = models.NormalizeEmails(p.AssignedToEmails)
	}
	if p.TeamID != nil {
		if *p.TeamID == "" {
			t.TeamID = nil
		} else {
			id := *p.TeamID
			t.TeamID = &id
		}
	}
}

// DeleteTask deletes a task by its ID. Comments and assignees cascade.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	query := `DELETE FROM tasks WHERE id = ?`
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	db.triggerChange(ctx)
	return nil
}
