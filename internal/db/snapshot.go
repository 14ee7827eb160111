package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

type userLine struct {
	RecordType string `json:"record_type"`
	*models.User
}

type teamLine struct {
	RecordType string `json:"record_type"`
	*models.Team
}

type taskLine struct {
	RecordType string `json:"record_type"`
	*models.Task
}

// ImportResult summarizes an ImportSnapshot run.
type ImportResult struct {
	Users    int
	Teams    int
	Tasks    int
	Comments int
	// Dropped counts malformed user, team and task records.
	Dropped int
	// DroppedComments counts comments without an id.
	DroppedComments int
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the write.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes users, teams and tasks (with their comments) as
// JSON lines to the given path atomically using a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	teams, err := db.ListTeams(ctx)
	if err != nil {
		return err
	}
	tasks, err := db.ListTasks(ctx)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)

	if err := enc.Encode(snapshotMeta{RecordType: "meta", Version: snapshotVersion, ExportedAt: db.now()}); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}
	for _, u := range users {
		if err := enc.Encode(userLine{RecordType: "user", User: u}); err != nil {
			return fmt.Errorf("failed to write user %s: %w", u.Email, err)
		}
	}
	for _, team := range teams {
		if err := enc.Encode(teamLine{RecordType: "team", Team: team}); err != nil {
			return fmt.Errorf("failed to write team %s: %w", team.Name, err)
		}
	}
	// Oldest first so a re-import keeps creation order.
	for i := len(tasks) - 1; i >= 0; i-- {
		if err := enc.Encode(taskLine{RecordType: "task", Task: tasks[i]}); err != nil {
			return fmt.Errorf("failed to write task %s: %w", tasks[i].ID, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and upserts its records by id in a
// single transaction. Task lines may use either the legacy single-assignee
// field or the assignee list; both are folded into the assignee list. Task
// lines without an id or with an unknown status are skipped and counted in
// ImportResult.Dropped.
func (db *DB) ImportSnapshot(ctx context.Context, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &ImportResult{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return nil, fmt.Errorf("failed to unmarshal line %d: %w", lineNo, err)
		}

		switch base.RecordType {
		case "meta":
			// Skip meta
		case "user":
			var u models.User
			if err := json.Unmarshal(line, &u); err != nil {
				return nil, fmt.Errorf("failed to unmarshal user on line %d: %w", lineNo, err)
			}
			if u.Email == "" {
				result.Dropped++
				continue
			}
			if err := upsertUser(ctx, tx, db, &u); err != nil {
				return nil, err
			}
			result.Users++

		case "team":
			var team models.Team
			if err := json.Unmarshal(line, &team); err != nil {
				return nil, fmt.Errorf("failed to unmarshal team on line %d: %w", lineNo, err)
			}
			if team.ID == "" {
				result.Dropped++
				continue
			}
			if err := upsertTeam(ctx, tx, db, &team); err != nil {
				return nil, err
			}
			result.Teams++

		case "task":
			var rec models.TaskRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal task on line %d: %w", lineNo, err)
			}
			t, err := rec.Normalize()
			if err != nil {
				result.Dropped++
				continue
			}
			if err := upsertTask(ctx, tx, db, t); err != nil {
				return nil, err
			}
			result.Tasks++
			result.Comments += len(t.Comments)
			result.DroppedComments += len(rec.Comments) - len(t.Comments)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return result, nil
}

func upsertUser(ctx context.Context, exec executor, db *DB, u *models.User) error {
	email := models.NormalizeEmail(u.Email)
	var existingID string
	err := exec.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&existingID)
	if err == nil {
		_, err = exec.ExecContext(ctx, `UPDATE users SET name = ?, role = ? WHERE id = ?`,
			u.Name, roleOrMember(u.Role), existingID)
		if err != nil {
			return fmt.Errorf("failed to sync user %s: %w", email, err)
		}
		return nil
	}
	u.Role = roleOrMember(u.Role)
	if err := db.createUser(ctx, exec, u); err != nil {
		return fmt.Errorf("failed to sync user %s: %w", email, err)
	}
	return nil
}

func roleOrMember(r models.Role) models.Role {
	if r == models.RoleAdmin {
		return r
	}
	return models.RoleMember
}

func upsertTeam(ctx context.Context, exec executor, db *DB, team *models.Team) error {
	if team.CreatedAt.IsZero() {
		team.CreatedAt = db.now()
	}
	if team.UpdatedAt.IsZero() {
		team.UpdatedAt = team.CreatedAt
	}
	team.CreatedAt, team.UpdatedAt = utc(team.CreatedAt), utc(team.UpdatedAt)
	team.Members = models.NormalizeEmails(team.Members)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO teams (id, name, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, created_by = excluded.created_by,
			created_at = excluded.created_at, updated_at = excluded.updated_at`,
		team.ID, team.Name, models.NormalizeEmail(team.CreatedBy), team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to sync team %s: %w", team.Name, err)
	}
	return setMembers(ctx, exec, team.ID, team.Members)
}

func upsertTask(ctx context.Context, exec executor, db *DB, t *models.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = db.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.CreatedAt, t.UpdatedAt = utc(t.CreatedAt), utc(t.UpdatedAt)
	t.DueDate = utcPtr(t.DueDate)

	// A team that is not in the database is a dangling weak reference.
	if t.TeamID != nil {
		var n int
		if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams WHERE id = ?`, *t.TeamID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check team for task %s: %w", t.ID, err)
		}
		if n == 0 {
			t.TeamID = nil
		}
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, due_date, team_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, description = excluded.description, status = excluded.status,
			priority = excluded.priority, due_date = excluded.due_date, team_id = excluded.team_id,
			created_by = excluded.created_by, created_at = excluded.created_at, updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.TeamID,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to sync task %s: %w", t.ID, err)
	}

	if err := setAssignees(ctx, exec, t.ID, t.AssignedToEmails); err != nil {
		return err
	}

	seen := make(map[string]bool, len(t.Comments))
	for i := range t.Comments {
		c := t.Comments[i]
		c.TaskID = t.ID
		if c.ID != "" && seen[c.ID] {
			c.ID = fmt.Sprintf("%s-%d", c.ID, i)
		}
		seen[c.ID] = true
		if err := db.addComment(ctx, exec, &c); err != nil {
			return fmt.Errorf("failed to sync comment %s: %w", c.ID, err)
		}
	}
	return nil
}
