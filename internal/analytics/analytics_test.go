package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 15, 0, 0, 0, time.UTC)
	return &t
}

func TestStatusCountsAndAssignees(t *testing.T) {
	tasks := []*models.Task{
		{ID: "1", Status: models.TaskStatusDone, AssignedToEmails: []string{"b@x.com", "a@x.com"}},
		{ID: "2", Status: models.TaskStatusTodo, AssignedToEmails: []string{"a@x.com"}},
		{ID: "3", Status: models.TaskStatusInProgress},
	}

	c := StatusCounts(tasks)
	assert.Equal(t, Counts{Todo: 1, InProgress: 1, Done: 1}, c)
	assert.Equal(t, 3, c.Total())

	rows := ByAssignee(tasks)
	require.Len(t, rows, 2)
	assert.Equal(t, "a@x.com", rows[0].Email)
	assert.Equal(t, Counts{Todo: 1, Done: 1}, rows[0].Counts)
	assert.Equal(t, "b@x.com", rows[1].Email)
	assert.Equal(t, 1, rows[1].Done)
}

func TestDueTimeline(t *testing.T) {
	tasks := []*models.Task{
		{ID: "1", Status: models.TaskStatusTodo, DueDate: day(2026, 3, 2)},
		{ID: "2", Status: models.TaskStatusDone, DueDate: day(2026, 3, 1)},
		{ID: "3", Status: models.TaskStatusTodo, DueDate: day(2026, 3, 2)},
		{ID: "4", Status: models.TaskStatusTodo},
	}

	timeline := DueTimeline(tasks)
	require.Len(t, timeline, 2)
	assert.Equal(t, "2026-03-01", timeline[0].Date)
	assert.Equal(t, 1, timeline[0].Done)
	assert.Equal(t, "2026-03-02", timeline[1].Date)
	assert.Equal(t, 2, timeline[1].Todo)
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		due     *time.Time
		label   string
		urgency Urgency
	}{
		{nil, "No due date", UrgencyNone},
		{day(2026, 3, 20), "10 days left", UrgencyLater},
		{day(2026, 3, 13), "3 days left", UrgencySoon},
		{day(2026, 3, 11), "1 day left", UrgencySoon},
		{day(2026, 3, 10), "Due today", UrgencyToday},
		{day(2026, 3, 9), "Overdue by 1 day", UrgencyOverdue},
		{day(2026, 3, 8), "Overdue by 2 days", UrgencyOverdue},
	}
	for _, tc := range cases {
		label, urgency := DaysLeft(tc.due, now)
		assert.Equal(t, tc.label, label)
		assert.Equal(t, tc.urgency, urgency)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tasks := []*models.Task{
		{ID: "1", Status: models.TaskStatusTodo, DueDate: day(2026, 3, 1)},
		{ID: "2", Status: models.TaskStatusDone, DueDate: day(2026, 3, 1)},
		{ID: "3", Status: models.TaskStatusTodo, DueDate: day(2026, 3, 10)},
	}

	s := Summarize(tasks, now)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 2, s.Status.Todo)
	assert.Len(t, s.Timeline, 2)
	assert.Empty(t, s.Assignees)
}
