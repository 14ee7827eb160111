package models

import (
	"errors"
	"time"
)

// ErrMissingID is returned by Normalize for records without an identifier.
var ErrMissingID = errors.New("task record has no id")

// TaskRecord is the wire shape of a task as it arrives from outside the
// store: API bodies, tool arguments and snapshot lines. Older records carry
// a single assignee in AssignedToEmail; newer ones use AssignedToEmails.
type TaskRecord struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	AssignedToEmail  string     `json:"assignedToEmail,omitempty"`
	AssignedToEmails []string   `json:"assignedToEmails,omitempty"`
	TeamID           *string    `json:"teamId,omitempty"`
	Comments         []Comment  `json:"comments,omitempty"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Assignees folds the legacy single-assignee field into the assignee set.
func (r *TaskRecord) Assignees() []string {
	all := make([]string, 0, len(r.AssignedToEmails)+1)
	all = append(all, r.AssignedToEmails...)
	all = append(all, r.AssignedToEmail)
	return NormalizeEmails(all)
}

// Normalize converts the record to the canonical Task shape. Records
// without an id are rejected with ErrMissingID; unknown status or priority
// values are rejected too.
func (r *TaskRecord) Normalize() (*Task, error) {
	if r.ID == "" {
		return nil, ErrMissingID
	}
	t, err := r.ToTask()
	if err != nil {
		return nil, err
	}
	t.ID = r.ID
	return t, nil
}

// ToTask converts the record without requiring an id. It is used for
// create requests where the store assigns the id.
func (r *TaskRecord) ToTask() (*Task, error) {
	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	priority, err := ParsePriority(r.Priority)
	if err != nil {
		return nil, err
	}

	var teamID *string
	if r.TeamID != nil && *r.TeamID != "" {
		id := *r.TeamID
		teamID = &id
	}

	comments := make([]Comment, 0, len(r.Comments))
	for _, c := range r.Comments {
		if c.ID == "" {
			continue
		}
		c.TaskID = r.ID
		comments = append(comments, c)
	}

	return &Task{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Status:           status,
		Priority:         priority,
		DueDate:          r.DueDate,
		AssignedToEmails: r.Assignees(),
		TeamID:           teamID,
		Comments:         comments,
		CreatedBy:        NormalizeEmail(r.CreatedBy),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

// NormalizeRecords converts a batch of records, dropping malformed ones.
// The returned count is the number of records dropped.
func NormalizeRecords(records []TaskRecord) ([]*Task, int) {
	tasks := make([]*Task, 0, len(records))
	dropped := 0
	for i := range records {
		t, err := records[i].Normalize()
		if err != nil {
			dropped++
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, dropped
}
