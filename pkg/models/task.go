package models

import (
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// TaskStatuses lists the statuses in board order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

// ParseStatus validates s against the known statuses. An empty string
// yields the default status.
func ParseStatus(s string) (TaskStatus, error) {
	if s == "" {
		return TaskStatusTodo, nil
	}
	for _, st := range TaskStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh}

// ParsePriority validates s against the known priorities. An empty string
// yields the default priority.
func ParsePriority(s string) (TaskPriority, error) {
	if s == "" {
		return TaskPriorityMedium, nil
	}
	for _, p := range TaskPriorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

type Task struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Status           TaskStatus   `json:"status"`
	Priority         TaskPriority `json:"priority"`
	DueDate          *time.Time   `json:"dueDate,omitempty"`
	AssignedToEmails []string     `json:"assignedToEmails"`
	TeamID           *string      `json:"teamId,omitempty"`
	Comments         []Comment    `json:"comments"`
	CreatedBy        string       `json:"createdBy"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// IsAssignedTo reports whether email is in the task's assignee set.
func (t *Task) IsAssignedTo(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, a := range t.AssignedToEmails {
		if a == email {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand tasks to other goroutines.
func (t *Task) Clone() *Task {
	c := *t
	c.AssignedToEmails = append([]string(nil), t.AssignedToEmails...)
	c.Comments = append([]Comment(nil), t.Comments...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.TeamID != nil {
		id := *t.TeamID
		c.TeamID = &id
	}
	return &c
}

// TaskPatch is a field-change set. Nil fields are left untouched.
type TaskPatch struct {
	Title            *string       `json:"title,omitempty"`
	Description      *string       `json:"description,omitempty"`
	Status           *TaskStatus   `json:"status,omitempty"`
	Priority         *TaskPriority `json:"priority,omitempty"`
	DueDate          *time.Time    `json:"dueDate,omitempty"`
	ClearDueDate     bool          `json:"clearDueDate,omitempty"`
	AssignedToEmails []string      `json:"assignedToEmails,omitempty"`
	TeamID           *string       `json:"teamId,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.AssignedToEmails == nil && p.TeamID == nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEmails returns the distinct, non-empty, normalized emails in
// first-seen order.
func NormalizeEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
