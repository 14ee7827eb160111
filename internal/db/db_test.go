package db

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return db
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys enabled (1), got %d", fk)
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE test (
		id INTEGER PRIMARY KEY,
		name TEXT
	);
	`
	ctx := context.Background()
	if err := db.Migrate(ctx, schema); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "foo")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "foo" {
		t.Errorf("Expected foo, got %s", name)
	}
}

func TestInit(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"users", "teams", "team_members", "tasks", "task_assignees", "comments", "activity_logs"} {
		if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
			t.Fatalf("Table %s does not exist or query failed: %v", table, err)
		}
	}

	// Init is idempotent.
	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Second init failed: %v", err)
	}
}

func TestWatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var calls atomic.Int32
	unwatch := db.Watch(func(ctx context.Context) { calls.Add(1) })

	if err := db.CreateTask(ctx, &models.Task{Title: "one"}); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 watcher call, got %d", got)
	}

	db.DisableOnChange()
	if err := db.CreateTask(ctx, &models.Task{Title: "two"}); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	db.EnableOnChange()
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected watcher to be suppressed, got %d calls", got)
	}

	unwatch()
	if err := db.CreateTask(ctx, &models.Task{Title: "three"}); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected no calls after unwatch, got %d", got)
	}
}

func TestActivityDoesNotTriggerWatchers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var calls atomic.Int32
	db.Watch(func(ctx context.Context) { calls.Add(1) })

	if err := db.LogActivity(ctx, &models.Activity{Type: models.ActivityCreated, Action: "Created task"}); err != nil {
		t.Fatalf("Failed to log activity: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("Expected no watcher calls, got %d", got)
	}
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, _, err := db.EnsureUser(ctx, "a@x.com", models.RoleAdmin); err != nil {
		t.Fatalf("Failed to ensure user: %v", err)
	}
	task := &models.Task{Title: "T"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if err := db.AddComment(ctx, &models.Comment{TaskID: task.ID, Text: "hi"}); err != nil {
		t.Fatalf("Failed to add comment: %v", err)
	}

	s, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if s.Users != 1 || s.Tasks != 1 || s.Comments != 1 || s.Teams != 0 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
