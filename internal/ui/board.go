package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nick-dorsch/teamtasks/internal/feed"
	"github.com/nick-dorsch/teamtasks/internal/live"
	"github.com/nick-dorsch/teamtasks/internal/ui/components"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

var (
	boardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	filterStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	detailStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color("238"))
	flashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var (
	statusCycle   = []string{"", string(models.TaskStatusTodo), string(models.TaskStatusInProgress), string(models.TaskStatusDone)}
	priorityCycle = []string{"", string(models.TaskPriorityHigh), string(models.TaskPriorityMedium), string(models.TaskPriorityLow)}
)

const commentTimeout = 5 * time.Second

// Commenter adds a comment on behalf of a user.
type Commenter interface {
	AddComment(ctx context.Context, actor *models.User, taskID, text string) (*models.Comment, error)
}

type boardMode int

const (
	modeBrowse boardMode = iota
	modeFilter
	modeComment
)

type feedChangedMsg struct{}

type commentSavedMsg struct {
	comment *models.Comment
	err     error
}

// Board is the kanban view of the tasks visible to one user. It re-resolves
// whenever the session's feed changes.
type Board struct {
	session   *live.Session
	commenter Commenter
	actor     *models.User

	filters visibility.Filters
	result  visibility.Result

	columns []*components.TaskColumn
	focus   int
	thread  *components.CommentThread

	mode    boardMode
	query   textinput.Model
	draft   textinput.Model
	spinner spinner.Model

	changes     chan struct{}
	unsubscribe func()

	width  int
	height int
	flash  string
}

func NewBoard(session *live.Session, commenter Commenter, actor *models.User) *Board {
	query := textinput.New()
	query.Placeholder = "title or description"
	query.Prompt = "/ "

	draft := textinput.New()
	draft.Placeholder = "write a comment"
	draft.Prompt = "> "
	draft.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	b := &Board{
		session:   session,
		commenter: commenter,
		actor:     actor,
		columns: []*components.TaskColumn{
			components.NewTaskColumn(models.TaskStatusTodo, 30),
			components.NewTaskColumn(models.TaskStatusInProgress, 30),
			components.NewTaskColumn(models.TaskStatusDone, 30),
		},
		thread:  components.NewCommentThread(90, 6),
		query:   query,
		draft:   draft,
		spinner: sp,
		changes: make(chan struct{}, 1),
	}
	b.columns[0].Focused = true

	b.unsubscribe = session.Feed().Subscribe(func(feed.Snapshot) {
		select {
		case b.changes <- struct{}{}:
		default:
		}
	})
	b.refresh()
	return b
}

// Close detaches the board from the feed.
func (b *Board) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

func (b *Board) Filters() visibility.Filters {
	return b.filters
}

func (b *Board) Result() visibility.Result {
	return b.result
}

// Current returns the task under the cursor, or nil.
func (b *Board) Current() *models.Task {
	return b.columns[b.focus].Current()
}

func (b *Board) waitForChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-b.changes; !ok {
			return nil
		}
		return feedChangedMsg{}
	}
}

func (b *Board) refresh() {
	var currentID string
	if t := b.Current(); t != nil {
		currentID = t.ID
	}

	b.result = b.session.Resolve(b.filters)
	for _, col := range b.columns {
		col.SetTasks(b.result.Tasks)
		for i, t := range col.Tasks {
			if t.ID == currentID {
				col.Selected = i
			}
		}
		if col.Selected < 0 && len(col.Tasks) > 0 {
			col.Selected = 0
		}
	}
	b.syncThread()
}

func (b *Board) syncThread() {
	if t := b.Current(); t != nil {
		b.thread.SetComments(t.Comments)
		return
	}
	b.thread.SetComments(nil)
}

func (b *Board) moveFocus(delta int) {
	next := b.focus + delta
	if next < 0 || next >= len(b.columns) {
		return
	}
	b.columns[b.focus].Focused = false
	b.focus = next
	b.columns[b.focus].Focused = true
	b.syncThread()
}

func (b *Board) moveCursor(delta int) {
	col := b.columns[b.focus]
	next := col.Selected + delta
	if next < 0 || next >= len(col.Tasks) {
		return
	}
	col.Selected = next
	b.syncThread()
}

func cycle(values []string, current string) string {
	for i, v := range values {
		if strings.EqualFold(v, current) {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

func (b *Board) saveComment(taskID, text string) tea.Cmd {
	commenter, actor := b.commenter, b.actor
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commentTimeout)
		defer cancel()
		c, err := commenter.AddComment(ctx, actor, taskID, text)
		return commentSavedMsg{comment: c, err: err}
	}
}

func (b *Board) Init() tea.Cmd {
	return tea.Batch(b.spinner.Tick, b.waitForChange())
}

func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		threadHeight := msg.Height / 4
		if threadHeight < 3 {
			threadHeight = 3
		}
		colWidth := (msg.Width - 2) / len(b.columns)
		// Title, filter bar, detail pane chrome and help line.
		colHeight := msg.Height - threadHeight - 10
		if colHeight < 6 {
			colHeight = 6
		}
		for _, col := range b.columns {
			col.Width = colWidth
			col.Height = colHeight
		}
		b.thread.SetSize(msg.Width, threadHeight)
		b.query.Width = msg.Width / 2
		b.draft.Width = msg.Width - 4
		return b, nil

	case spinner.TickMsg:
		if !b.result.Loading {
			return b, nil
		}
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(msg)
		return b, cmd

	case feedChangedMsg:
		b.refresh()
		return b, b.waitForChange()

	case commentSavedMsg:
		if msg.err != nil {
			b.flash = fmt.Sprintf("Comment failed: %v", msg.err)
		} else {
			b.flash = "Comment added"
		}
		return b, nil

	case tea.KeyMsg:
		switch b.mode {
		case modeFilter:
			return b.updateFilter(msg)
		case modeComment:
			return b.updateComment(msg)
		}
		return b.updateBrowse(msg)
	}

	return b, nil
}

func (b *Board) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b.flash = ""
	switch msg.String() {
	case "ctrl+c", "q":
		return b, tea.Quit
	case "left", "h":
		b.moveFocus(-1)
	case "right", "l":
		b.moveFocus(1)
	case "up", "k":
		b.moveCursor(-1)
	case "down", "j":
		b.moveCursor(1)
	case "/":
		b.mode = modeFilter
		return b, b.query.Focus()
	case "s":
		b.filters.Status = cycle(statusCycle, b.filters.Status)
		b.refresh()
	case "p":
		b.filters.Priority = cycle(priorityCycle, b.filters.Priority)
		b.refresh()
	case "x":
		b.filters = visibility.Filters{}
		b.query.SetValue("")
		b.refresh()
	case "c":
		if b.Current() == nil {
			b.flash = "No task selected"
			return b, nil
		}
		b.mode = modeComment
		b.draft.Reset()
		return b, b.draft.Focus()
	case "pgup", "pgdown":
		return b, b.thread.Update(msg)
	}
	return b, nil
}

func (b *Board) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		b.mode = modeBrowse
		b.query.Blur()
		return b, nil
	case "ctrl+c":
		return b, tea.Quit
	}

	var cmd tea.Cmd
	b.query, cmd = b.query.Update(msg)
	if b.query.Value() != b.filters.Query {
		b.filters.Query = b.query.Value()
		b.refresh()
	}
	return b, cmd
}

func (b *Board) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		b.mode = modeBrowse
		b.draft.Blur()
		return b, nil
	case "ctrl+c":
		return b, tea.Quit
	case "enter":
		b.mode = modeBrowse
		b.draft.Blur()
		t := b.Current()
		if t == nil {
			return b, nil
		}
		b.flash = "Saving comment..."
		return b, b.saveComment(t.ID, b.draft.Value())
	}

	var cmd tea.Cmd
	b.draft, cmd = b.draft.Update(msg)
	return b, cmd
}

func label(v string) string {
	if v == "" {
		return "All"
	}
	return v
}

func (b *Board) View() string {
	var s strings.Builder

	viewer := b.session.Viewer()
	s.WriteString(boardTitleStyle.Render("TeamTasks"))
	s.WriteString(filterStyle.Render(fmt.Sprintf("  %s (%s)", viewer.Email, viewer.Role)))
	s.WriteString("\n")

	if b.mode == modeFilter {
		s.WriteString(b.query.View())
	} else {
		s.WriteString(filterStyle.Render("Search: " + label(b.filters.Query)))
	}
	s.WriteString(filterStyle.Render(fmt.Sprintf("  Status: %s  Priority: %s", label(b.filters.Status), label(b.filters.Priority))))
	s.WriteString("\n\n")

	if b.result.Loading {
		s.WriteString(b.spinner.View() + " Loading tasks...\n")
		return s.String()
	}

	views := make([]string, 0, len(b.columns))
	for _, col := range b.columns {
		views = append(views, col.View())
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, views...))
	s.WriteString("\n")

	var detail strings.Builder
	if t := b.Current(); t != nil {
		detail.WriteString(boardTitleStyle.Render(t.Title))
		detail.WriteString("\n")
		if t.Description != "" {
			detail.WriteString(t.Description)
			detail.WriteString("\n")
		}
		detail.WriteString(filterStyle.Render(fmt.Sprintf("Comments (%d)", b.thread.Len())))
		detail.WriteString("\n")
		detail.WriteString(b.thread.View())
		if b.mode == modeComment {
			detail.WriteString("\n")
			detail.WriteString(b.draft.View())
		}
	} else {
		detail.WriteString(filterStyle.Render("No task selected"))
	}
	s.WriteString(detailStyle.Render(detail.String()))
	s.WriteString("\n")

	if b.flash != "" {
		s.WriteString(flashStyle.Render(b.flash))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("h/l columns  j/k tasks  / search  s status  p priority  x clear  c comment  q quit"))
	s.WriteString("\n")
	return s.String()
}

// RunBoard shows the board until the user quits.
func RunBoard(session *live.Session, commenter Commenter, actor *models.User) error {
	b := NewBoard(session, commenter, actor)
	defer b.Close()

	_, err := tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}
