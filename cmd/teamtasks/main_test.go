package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nick-dorsch/teamtasks/internal/config"
	"github.com/nick-dorsch/teamtasks/internal/db"
	"github.com/nick-dorsch/teamtasks/internal/ui"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

type testEnv struct {
	dir          string
	dbPath       string
	snapshotPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{config.EnvDB, config.EnvBind, config.EnvLogLevel, config.EnvAdmins, envUser} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return &testEnv{
		dir:          dir,
		dbPath:       filepath.Join(dir, ".teamtasks", "teamtasks.db"),
		snapshotPath: filepath.Join(dir, ".teamtasks", "tasks.jsonl"),
	}
}

// run executes the CLI with the env's paths and returns captured stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append([]string{
		"--config", filepath.Join(e.dir, "teamtasks.toml"),
		"--db-path", e.dbPath,
		"--snapshot-path", e.snapshotPath,
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\nOutput: %s", args, err, out)
	}
	return out
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	if root.Use != "teamtasks" {
		t.Errorf("root.Use = %q, want teamtasks", root.Use)
	}

	expected := []string{"init", "serve", "mcp", "board", "list-tasks", "status", "user", "team", "db"}
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "init", "--admin", "Boss@X.com")
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(env.dbPath); err != nil {
		t.Errorf("expected database file: %v", err)
	}
	ignore, err := os.ReadFile(filepath.Join(filepath.Dir(env.dbPath), ".gitignore"))
	if err != nil || !strings.Contains(string(ignore), "teamtasks.db*") {
		t.Errorf("unexpected .gitignore %q: %v", ignore, err)
	}

	out = env.mustRun(t, "user", "list")
	if !strings.Contains(out, "boss@x.com") || !strings.Contains(out, "admin") {
		t.Errorf("expected admin in user list, got %s", out)
	}

	// Re-running init is safe.
	env.mustRun(t, "init", "--admin", "boss@x.com")
}

func TestInitImportsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.snapshotPath), 0755); err != nil {
		t.Fatal(err)
	}
	snapshot := `{"record_type":"task","id":"t1","title":"From snapshot","assignedToEmail":"me@x.com"}
{"record_type":"task","title":"No id"}
`
	if err := os.WriteFile(env.snapshotPath, []byte(snapshot), 0644); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "init")
	if !strings.Contains(out, "1 tasks") || !strings.Contains(out, "1 malformed") {
		t.Errorf("unexpected import output: %s", out)
	}

	out = env.mustRun(t, "list-tasks", "--as", "me@x.com")
	if !strings.Contains(out, "From snapshot") {
		t.Errorf("expected imported task, got %s", out)
	}
}

func seedTasks(t *testing.T, path string) {
	t.Helper()
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	tasks := []*models.Task{
		{Title: "Mine", AssignedToEmails: []string{"me@x.com"}, Priority: models.TaskPriorityHigh},
		{Title: "Theirs", AssignedToEmails: []string{"you@x.com"}, Status: models.TaskStatusDone},
	}
	for _, task := range tasks {
		if err := database.CreateTask(ctx, task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}
}

func TestListTasksRespectsVisibility(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init", "--admin", "boss@x.com")
	seedTasks(t, env.dbPath)

	out := env.mustRun(t, "list-tasks", "--as", "me@x.com")
	if !strings.Contains(out, "Mine") || strings.Contains(out, "Theirs") {
		t.Errorf("expected only the member's task, got %s", out)
	}

	out = env.mustRun(t, "list-tasks", "--as", "boss@x.com", "--status", "Done")
	if !strings.Contains(out, "Theirs") || strings.Contains(out, "Mine") {
		t.Errorf("expected the admin's filtered view, got %s", out)
	}

	t.Setenv(envUser, "you@x.com")
	out = env.mustRun(t, "list-tasks")
	if !strings.Contains(out, "Theirs") {
		t.Errorf("expected env user fallback, got %s", out)
	}
}

func TestMenuSelectionRuns(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init", "--admin", "boss@x.com")
	seedTasks(t, env.dbPath)

	menu := ui.NewMenu("me@x.com")
	menu.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	menu.Update(tea.KeyMsg{Type: tea.KeyEnter})
	menu.Update(tea.KeyMsg{Type: tea.KeyEnter})

	args := menu.Args()
	if len(args) == 0 || args[0] != "list-tasks" {
		t.Fatalf("expected list-tasks selection, got %v", args)
	}
	out := env.mustRun(t, args...)
	if !strings.Contains(out, "Mine") {
		t.Errorf("expected the member's tasks, got %s", out)
	}
}

func TestListTasksRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "list-tasks"); err == nil {
		t.Fatal("expected error without --as")
	}
}

func TestUserAndTeamCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init", "--admin", "boss@x.com")

	env.mustRun(t, "user", "add", "me@x.com", "--name", "Me")
	if _, err := env.run(t, "user", "add", "me@x.com"); err == nil {
		t.Error("expected duplicate user to fail")
	}

	out := env.mustRun(t, "user", "set-role", "ME@x.com", "admin")
	if !strings.Contains(out, "me@x.com is now admin") {
		t.Errorf("unexpected set-role output: %s", out)
	}
	if _, err := env.run(t, "user", "set-role", "ghost@x.com", "admin"); err == nil {
		t.Error("expected unknown user to fail")
	}

	if _, err := env.run(t, "team", "create", "Core", "--as", "nobody@x.com"); err == nil {
		t.Error("expected member team create to fail")
	}
	env.mustRun(t, "team", "create", "Core", "--as", "boss@x.com", "--members", "me@x.com,you@x.com")

	out = env.mustRun(t, "team", "list")
	if !strings.Contains(out, "Core") || !strings.Contains(out, "you@x.com") {
		t.Errorf("unexpected team list: %s", out)
	}
}

func TestStatusAndDBCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init")
	seedTasks(t, env.dbPath)

	out := env.mustRun(t, "status")
	if !strings.Contains(out, "Total Tasks: 2") || !strings.Contains(out, "Done:        1") {
		t.Errorf("unexpected status output: %s", out)
	}

	exported := filepath.Join(env.dir, "export.jsonl")
	env.mustRun(t, "db", "export", exported)
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	if !strings.Contains(string(data), "Mine") {
		t.Errorf("expected tasks in export")
	}

	other := newTestEnv(t)
	other.mustRun(t, "init")
	out = other.mustRun(t, "db", "import", exported)
	if !strings.Contains(out, "2 tasks") {
		t.Errorf("unexpected import output: %s", out)
	}

	out = other.mustRun(t, "db", "status")
	if !strings.Contains(out, "Tasks:    2") {
		t.Errorf("unexpected db status: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
