package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const logo = `
 _                      _            _
| |_ ___  __ _ _ __ ___ | |_ __ _ ___| | _____
| __/ _ \/ _` + "`" + ` | '_ ` + "`" + ` _ \| __/ _` + "`" + ` / __| |/ / __|
| ||  __/ (_| | | | | | | || (_| \__ \   <\__ \
 \__\___|\__,_|_| |_| |_|\__\__,_|___/_|\_\___/
`

// MenuItem is one entry of the start menu. Items with an IdentityFlag ask
// for an email before running.
type MenuItem struct {
	Command      string
	Summary      string
	IdentityFlag string
	// IdentityOptional lets the email prompt be left empty.
	IdentityOptional bool
}

var menuItems = []MenuItem{
	{Command: "board", Summary: "Open the live task board", IdentityFlag: "--as"},
	{Command: "list-tasks", Summary: "List the tasks visible to a user", IdentityFlag: "--as"},
	{Command: "status", Summary: "Show task counts"},
	{Command: "serve", Summary: "Run the HTTP JSON API"},
	{Command: "mcp", Summary: "Serve the task tools over MCP on stdio"},
	{Command: "init", Summary: "Create the database", IdentityFlag: "--admin", IdentityOptional: true},
}

// Menu is shown when the binary runs without a subcommand. It resolves to
// the argument list of the chosen subcommand.
type Menu struct {
	items  []MenuItem
	cursor int

	prompting bool
	email     textinput.Model
	err       string

	args     []string
	quitting bool
}

// NewMenu creates the start menu. defaultEmail pre-fills the email prompt.
func NewMenu(defaultEmail string) *Menu {
	email := textinput.New()
	email.Prompt = "email: "
	email.Placeholder = "you@example.com"
	email.SetValue(defaultEmail)

	return &Menu{items: menuItems, email: email}
}

func (m *Menu) Init() tea.Cmd {
	return nil
}

// Args returns the chosen command line, or nil when the user quit.
func (m *Menu) Args() []string {
	return m.args
}

func (m *Menu) current() MenuItem {
	return m.items[m.cursor]
}

func (m *Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.prompting {
		return m.updatePrompt(key)
	}

	switch key.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		item := m.current()
		if item.IdentityFlag == "" {
			m.args = []string{item.Command}
			return m, tea.Quit
		}
		m.prompting = true
		m.err = ""
		m.email.CursorEnd()
		return m, m.email.Focus()
	}
	return m, nil
}

func (m *Menu) updatePrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.prompting = false
		m.email.Blur()
		return m, nil
	case "enter":
		item := m.current()
		email := strings.TrimSpace(m.email.Value())
		switch {
		case email == "" && item.IdentityOptional:
			m.args = []string{item.Command}
			return m, tea.Quit
		case !strings.Contains(email, "@"):
			m.err = "enter an email address"
			return m, nil
		}
		m.args = []string{item.Command, item.IdentityFlag, email}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.email, cmd = m.email.Update(key)
	return m, cmd
}

func (m *Menu) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, item := range m.items {
		line := item.Command + "  " + hintStyle.Render(item.Summary)
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if m.prompting {
		s.WriteString(m.email.View())
		s.WriteString("\n")
		if m.err != "" {
			s.WriteString(errorStyle.Render(m.err))
			s.WriteString("\n")
		}
		hint := "(enter to run, esc to go back)"
		if m.current().IdentityOptional {
			hint = "(leave empty to skip, enter to run, esc to go back)"
		}
		s.WriteString(hintStyle.Render(hint))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(hintStyle.Render("(use arrow keys or j/k to navigate, enter to select, q to quit)"))
	s.WriteString("\n")
	return s.String()
}

// RunMenu shows the start menu and returns the chosen command line.
func RunMenu(defaultEmail string) ([]string, error) {
	m := NewMenu(defaultEmail)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return nil, err
	}
	return m.Args(), nil
}
