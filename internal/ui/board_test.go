package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nick-dorsch/teamtasks/internal/db"
	"github.com/nick-dorsch/teamtasks/internal/live"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

type recordingCommenter struct {
	taskID string
	text   string
	err    error
}

func (r *recordingCommenter) AddComment(ctx context.Context, actor *models.User, taskID, text string) (*models.Comment, error) {
	r.taskID, r.text = taskID, text
	if r.err != nil {
		return nil, r.err
	}
	return &models.Comment{ID: "c1", Text: text, AuthorEmail: actor.Email}, nil
}

func newBoardFixture(t *testing.T) (*db.DB, *live.Session, *models.User) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	tasks := []*models.Task{
		{ID: "a", Title: "Write docs", Status: models.TaskStatusTodo, Priority: models.TaskPriorityHigh, AssignedToEmails: []string{"me@x.com"}},
		{ID: "b", Title: "Ship release", Status: models.TaskStatusInProgress, Priority: models.TaskPriorityMedium, AssignedToEmails: []string{"me@x.com"}},
		{ID: "c", Title: "Someone else", Status: models.TaskStatusTodo, AssignedToEmails: []string{"you@x.com"}},
	}
	for _, task := range tasks {
		if err := database.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	actor := &models.User{Email: "me@x.com", Role: models.RoleMember}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := live.Open(ctx, database, visibility.ViewerOf(actor), logger)
	t.Cleanup(session.Close)
	return database, session, actor
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(b *Board, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = b.Update(msg)
	}
	return cmd
}

func TestBoardShowsVisibleTasks(t *testing.T) {
	_, session, actor := newBoardFixture(t)
	b := NewBoard(session, &recordingCommenter{}, actor)
	defer b.Close()
	send(b, tea.WindowSizeMsg{Width: 120, Height: 40})

	view := b.View()
	if !strings.Contains(view, "Write docs") || !strings.Contains(view, "Ship release") {
		t.Errorf("expected member's tasks on the board, got:\n%s", view)
	}
	if strings.Contains(view, "Someone else") {
		t.Errorf("expected other users' tasks to be hidden")
	}
	if b.Current() == nil || b.Current().ID != "a" {
		t.Errorf("expected first To Do task selected, got %v", b.Current())
	}

	send(b, key("l"))
	if b.Current() == nil || b.Current().ID != "b" {
		t.Errorf("expected In Progress task selected after 'l', got %v", b.Current())
	}
}

func TestBoardFilters(t *testing.T) {
	_, session, actor := newBoardFixture(t)
	b := NewBoard(session, &recordingCommenter{}, actor)
	defer b.Close()

	send(b, key("s"))
	if b.Filters().Status != string(models.TaskStatusTodo) {
		t.Fatalf("expected status filter To Do, got %q", b.Filters().Status)
	}
	if len(b.Result().Tasks) != 1 || b.Result().Tasks[0].ID != "a" {
		t.Errorf("expected only task a, got %v", b.Result().Tasks)
	}

	send(b, key("x"))
	if !b.Filters().IsZero() {
		t.Errorf("expected filters cleared, got %+v", b.Filters())
	}

	send(b, key("p"))
	if b.Filters().Priority != string(models.TaskPriorityHigh) {
		t.Errorf("expected priority filter High, got %q", b.Filters().Priority)
	}
	send(b, key("x"))

	send(b, key("/"), key("S"), key("H"), key("I"), key("P"), key("enter"))
	if b.Filters().Query != "SHIP" {
		t.Fatalf("expected query SHIP, got %q", b.Filters().Query)
	}
	if len(b.Result().Tasks) != 1 || b.Result().Tasks[0].ID != "b" {
		t.Errorf("expected case-insensitive match on task b, got %v", b.Result().Tasks)
	}
}

func TestBoardComment(t *testing.T) {
	_, session, actor := newBoardFixture(t)
	commenter := &recordingCommenter{}
	b := NewBoard(session, commenter, actor)
	defer b.Close()

	send(b, key("c"), key("o"), key("k"))
	cmd := send(b, key("enter"))
	if cmd == nil {
		t.Fatal("expected a save command")
	}
	msg := cmd()
	send(b, msg)

	if commenter.taskID != "a" || commenter.text != "ok" {
		t.Errorf("unexpected comment %q on %q", commenter.text, commenter.taskID)
	}
	if !strings.Contains(b.View(), "Comment added") {
		t.Errorf("expected confirmation in view")
	}

	commenter.err = errors.New("forbidden")
	send(b, key("c"), key("x"))
	msg = send(b, key("enter"))()
	send(b, msg)
	if !strings.Contains(b.View(), "Comment failed") {
		t.Errorf("expected failure in view")
	}
}

func TestBoardFollowsFeed(t *testing.T) {
	database, session, actor := newBoardFixture(t)
	b := NewBoard(session, &recordingCommenter{}, actor)
	defer b.Close()

	ctx := context.Background()
	if err := database.CreateTask(ctx, &models.Task{ID: "d", Title: "Fresh", AssignedToEmails: []string{"me@x.com"}}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	session.Refresh(ctx)

	msg := b.waitForChange()()
	if _, ok := msg.(feedChangedMsg); !ok {
		t.Fatalf("expected feedChangedMsg, got %T", msg)
	}
	send(b, msg)

	if !strings.Contains(b.View(), "Fresh") {
		t.Errorf("expected new task on the board")
	}
}

type unavailableStore struct {
	*db.DB
}

func (unavailableStore) ListTasksAssignedTo(ctx context.Context, email string) ([]*models.Task, error) {
	return nil, errors.New("offline")
}

func (unavailableStore) ListTeamsForMember(ctx context.Context, email string) ([]*models.Team, error) {
	return nil, errors.New("offline")
}

func TestBoardLoading(t *testing.T) {
	database, _, actor := newBoardFixture(t)
	session := live.Open(context.Background(), unavailableStore{database}, visibility.ViewerOf(actor), nil)
	defer session.Close()

	b := NewBoard(session, &recordingCommenter{}, actor)
	defer b.Close()

	if !b.Result().Loading {
		t.Fatal("expected loading state")
	}
	if !strings.Contains(b.View(), "Loading tasks") {
		t.Errorf("expected loading indicator")
	}
}
