package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nick-dorsch/teamtasks/internal/analytics"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(lipgloss.Color("12"))

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	focusedHeaderStyle = columnHeaderStyle.
				Foreground(lipgloss.Color("12"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	urgencyColors = map[analytics.Urgency]lipgloss.Color{
		analytics.UrgencyNone:    lipgloss.Color("240"),
		analytics.UrgencyLater:   lipgloss.Color("42"),
		analytics.UrgencySoon:    lipgloss.Color("214"),
		analytics.UrgencyToday:   lipgloss.Color("208"),
		analytics.UrgencyOverdue: lipgloss.Color("196"),
	}

	priorityIcons = map[models.TaskPriority]string{
		models.TaskPriorityHigh:   "▲",
		models.TaskPriorityMedium: "■",
		models.TaskPriorityLow:    "▼",
	}
)

// TaskColumn renders the tasks of one status as a stack of cards. When
// Height is set, only the cards around the selection that fit are shown.
type TaskColumn struct {
	Status   models.TaskStatus
	Tasks    []*models.Task
	Width    int
	Height   int
	Selected int
	Focused  bool
	Now      func() time.Time
}

func NewTaskColumn(status models.TaskStatus, width int) *TaskColumn {
	return &TaskColumn{
		Status:   status,
		Width:    width,
		Selected: -1,
		Now:      time.Now,
	}
}

// SetTasks keeps the tasks matching the column's status, preserving order.
func (c *TaskColumn) SetTasks(tasks []*models.Task) {
	c.Tasks = c.Tasks[:0]
	for _, t := range tasks {
		if t.Status == c.Status {
			c.Tasks = append(c.Tasks, t)
		}
	}
	if c.Selected >= len(c.Tasks) {
		c.Selected = len(c.Tasks) - 1
	}
}

// Current returns the selected task, or nil.
func (c *TaskColumn) Current() *models.Task {
	if c.Selected < 0 || c.Selected >= len(c.Tasks) {
		return nil
	}
	return c.Tasks[c.Selected]
}

func (c *TaskColumn) View() string {
	header := columnHeaderStyle
	if c.Focused {
		header = focusedHeaderStyle
	}
	title := header.Render(fmt.Sprintf("%s (%d)", c.Status, len(c.Tasks)))

	if len(c.Tasks) == 0 {
		return title + "\n" + placeholderStyle.Render("No tasks")
	}

	now := c.Now()
	cards := make([]string, 0, len(c.Tasks))
	for i, t := range c.Tasks {
		cards = append(cards, c.renderCard(t, now, c.Focused && i == c.Selected))
	}

	first, last := c.window(cards)
	var b strings.Builder
	b.WriteString(title)
	if first > 0 {
		b.WriteString("\n" + metaStyle.Render(fmt.Sprintf("↑ %d more", first)))
	}
	for _, card := range cards[first:last] {
		b.WriteString("\n" + card)
	}
	if rest := len(cards) - last; rest > 0 {
		b.WriteString("\n" + metaStyle.Render(fmt.Sprintf("↓ %d more", rest)))
	}
	return b.String()
}

// window returns the range of cards to show. The selected card is always
// included; the rest is filled below it first, then above.
func (c *TaskColumn) window(cards []string) (first, last int) {
	total := 0
	for _, card := range cards {
		total += lipgloss.Height(card)
	}
	// One line for the header.
	if c.Height <= 0 || total+1 <= c.Height {
		return 0, len(cards)
	}

	// Header plus the two overflow markers.
	budget := c.Height - 3
	anchor := c.Selected
	if anchor < 0 {
		anchor = 0
	}
	first, last = anchor, anchor+1
	used := lipgloss.Height(cards[anchor])
	for last < len(cards) && used+lipgloss.Height(cards[last]) <= budget {
		used += lipgloss.Height(cards[last])
		last++
	}
	for first > 0 && used+lipgloss.Height(cards[first-1]) <= budget {
		used += lipgloss.Height(cards[first-1])
		first--
	}
	return first, last
}

func (c *TaskColumn) renderCard(t *models.Task, now time.Time, selected bool) string {
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}

	innerWidth := c.Width - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	icon := priorityIcons[t.Priority]
	title := lipgloss.NewStyle().Width(innerWidth).Render(fmt.Sprintf("%s %s", icon, t.Title))

	label, urgency := analytics.DaysLeft(t.DueDate, now)
	due := lipgloss.NewStyle().Foreground(urgencyColors[urgency]).Render(label)

	lines := []string{title, due}
	if len(t.AssignedToEmails) > 0 {
		lines = append(lines, metaStyle.Width(innerWidth).Render(strings.Join(t.AssignedToEmails, ", ")))
	}
	switch n := len(t.Comments); {
	case n == 1:
		lines = append(lines, metaStyle.Render("1 comment"))
	case n > 1:
		lines = append(lines, metaStyle.Render(fmt.Sprintf("%d comments", n)))
	}
	return style.Width(c.Width).Render(strings.Join(lines, "\n"))
}
