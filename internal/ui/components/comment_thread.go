package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

var (
	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	commentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// CommentThread renders a task's comments, oldest first, in a scrollable
// viewport.
type CommentThread struct {
	viewport viewport.Model
	comments []models.Comment
	ready    bool
}

func NewCommentThread(width, height int) *CommentThread {
	t := &CommentThread{}
	t.SetSize(width, height)
	return t
}

func (t *CommentThread) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !t.ready {
		t.viewport = viewport.New(vpWidth, height)
		t.ready = true
	} else {
		t.viewport.Width = vpWidth
		t.viewport.Height = height
	}
	t.render()
}

func (t *CommentThread) SetComments(comments []models.Comment) {
	t.comments = comments
	t.render()
}

func (t *CommentThread) Len() int {
	return len(t.comments)
}

func (t *CommentThread) render() {
	width := t.viewport.Width

	var sb strings.Builder
	if len(t.comments) == 0 {
		sb.WriteString(timestampStyle.Render("No comments yet"))
	}
	for i, c := range t.comments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		name := c.AuthorName
		if name == "" {
			name = c.AuthorEmail
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", authorStyle.Render(name), timestampStyle.Render(c.CreatedAt.Local().Format("Jan 2 15:04"))))
		style := commentStyle
		if width > 0 {
			style = style.Width(width)
		}
		sb.WriteString(style.Render(c.Text))
	}

	t.viewport.SetContent(sb.String())
	t.viewport.GotoBottom()
}

func (t *CommentThread) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

func (t *CommentThread) View() string {
	if t.viewport.TotalLineCount() <= t.viewport.Height {
		return t.viewport.View()
	}

	h := t.viewport.Height
	handlePos := int(float64(h-1) * t.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, t.viewport.View(), sb.String())
}
