package ui

import (
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func selectCommand(t *testing.T, m *Menu, command string) tea.Cmd {
	t.Helper()
	for m.current().Command != command {
		before := m.cursor
		m.Update(runes("j"))
		if m.cursor == before {
			t.Fatalf("command %q not in menu", command)
		}
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestMenuNavigation(t *testing.T) {
	m := NewMenu("")

	m.Update(runes("j"))
	if m.cursor != 1 {
		t.Errorf("expected cursor 1 after 'j', got %d", m.cursor)
	}
	m.Update(runes("k"))
	m.Update(runes("k"))
	if m.cursor != 0 {
		t.Errorf("expected cursor clamped at 0, got %d", m.cursor)
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil || !m.quitting || m.Args() != nil {
		t.Errorf("expected quit without args, got %v", m.Args())
	}
}

func TestMenuCommandWithoutIdentity(t *testing.T) {
	m := NewMenu("")
	if cmd := selectCommand(t, m, "status"); cmd == nil {
		t.Fatal("expected quit command")
	}
	if !slices.Equal(m.Args(), []string{"status"}) {
		t.Errorf("unexpected args %v", m.Args())
	}
}

func TestMenuPromptsForIdentity(t *testing.T) {
	m := NewMenu("")
	selectCommand(t, m, "board")
	if !m.prompting || !strings.Contains(m.View(), "email") {
		t.Fatalf("expected email prompt, got:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.Args() != nil {
		t.Fatalf("expected empty email to be rejected")
	}
	if !strings.Contains(m.View(), "enter an email address") {
		t.Errorf("expected validation message")
	}

	for _, r := range "me@x.com" {
		m.Update(runes(string(r)))
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatal("expected quit command")
	}
	if !slices.Equal(m.Args(), []string{"board", "--as", "me@x.com"}) {
		t.Errorf("unexpected args %v", m.Args())
	}
}

func TestMenuPrefillsIdentity(t *testing.T) {
	m := NewMenu("env@x.com")
	selectCommand(t, m, "list-tasks")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !slices.Equal(m.Args(), []string{"list-tasks", "--as", "env@x.com"}) {
		t.Errorf("unexpected args %v", m.Args())
	}
}

func TestMenuOptionalIdentity(t *testing.T) {
	m := NewMenu("")
	selectCommand(t, m, "init")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !slices.Equal(m.Args(), []string{"init"}) {
		t.Errorf("expected init without admin, got %v", m.Args())
	}
}

func TestMenuEscReturnsToList(t *testing.T) {
	m := NewMenu("")
	selectCommand(t, m, "board")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.prompting {
		t.Error("expected esc to leave the prompt")
	}
	m.Update(runes("q"))
	if !m.quitting {
		t.Error("expected 'q' to quit from the list")
	}
}
