package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	embedsql "github.com/nick-dorsch/teamtasks/embed/sql"
	_ "modernc.org/sqlite"
)

// ErrNotFound is wrapped by write operations that target a missing record.
var ErrNotFound = errors.New("not found")

type DB struct {
	*sql.DB
	onChange         func(ctx context.Context)
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
	watchers         map[uint64]func(ctx context.Context)
	nextWatcher      uint64
	now              func() time.Time
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SetOnChange installs the primary change hook, typically the snapshot export.
func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

// Watch registers fn to run after every successful write. Live query
// sessions use it to re-run their queries. The returned function removes
// the watcher.
func (db *DB) Watch(fn func(ctx context.Context)) (unwatch func()) {
	db.onChangeMu.Lock()
	db.nextWatcher++
	id := db.nextWatcher
	db.watchers[id] = fn
	db.onChangeMu.Unlock()

	return func() {
		db.onChangeMu.Lock()
		delete(db.watchers, id)
		db.onChangeMu.Unlock()
	}
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	disabled := db.onChangeDisabled
	watchers := make([]func(ctx context.Context), 0, len(db.watchers))
	for _, w := range db.watchers {
		watchers = append(watchers, w)
	}
	db.onChangeMu.RUnlock()

	if disabled {
		return
	}
	if fn != nil {
		fn(ctx)
	}
	for _, w := range watchers {
		w(ctx)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Foreign keys support
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{
		DB:       db,
		watchers: make(map[uint64]func(ctx context.Context)),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// Stats is a row count summary used by the status command.
type Stats struct {
	Users    int
	Teams    int
	Tasks    int
	Comments int
	Activity int
}

func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"users", &s.Users},
		{"teams", &s.Teams},
		{"tasks", &s.Tasks},
		{"comments", &s.Comments},
		{"activity_logs", &s.Activity},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return s, nil
}

// placeholders returns "?, ?, ..." with n markers.
// Times are written in UTC. The driver stores a time as its String form and
// cannot parse back a numeric zone like "+0200 +0200".
func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
