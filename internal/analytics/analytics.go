// Package analytics computes the dashboard aggregates over a resolved task
// list. All functions are pure; callers pass the tasks the viewer can see.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// Counts holds per-status task counts.
type Counts struct {
	Todo       int `json:"toDo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
}

func (c *Counts) add(s models.TaskStatus) {
	switch s {
	case models.TaskStatusTodo:
		c.Todo++
	case models.TaskStatusInProgress:
		c.InProgress++
	case models.TaskStatusDone:
		c.Done++
	}
}

// Total is the sum over all statuses.
func (c Counts) Total() int {
	return c.Todo + c.InProgress + c.Done
}

// StatusCounts counts tasks per status.
func StatusCounts(tasks []*models.Task) Counts {
	var c Counts
	for _, t := range tasks {
		c.add(t.Status)
	}
	return c
}

// AssigneeCounts is one row of the per-user performance chart.
type AssigneeCounts struct {
	Email string `json:"email"`
	Counts
}

// ByAssignee counts tasks per assignee and status, sorted by email. A task
// with several assignees counts once for each of them.
func ByAssignee(tasks []*models.Task) []AssigneeCounts {
	byEmail := map[string]*Counts{}
	for _, t := range tasks {
		for _, email := range t.AssignedToEmails {
			c, ok := byEmail[email]
			if !ok {
				c = &Counts{}
				byEmail[email] = c
			}
			c.add(t.Status)
		}
	}

	out := make([]AssigneeCounts, 0, len(byEmail))
	for email, c := range byEmail {
		out = append(out, AssigneeCounts{Email: email, Counts: *c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// DayCounts is one point of the due-date timeline.
type DayCounts struct {
	Date string `json:"date"`
	Counts
}

// DueTimeline groups tasks by due day (UTC, YYYY-MM-DD) in ascending order.
// Tasks without a due date are skipped.
func DueTimeline(tasks []*models.Task) []DayCounts {
	byDay := map[string]*Counts{}
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		key := t.DueDate.UTC().Format(time.DateOnly)
		c, ok := byDay[key]
		if !ok {
			c = &Counts{}
			byDay[key] = c
		}
		c.add(t.Status)
	}

	out := make([]DayCounts, 0, len(byDay))
	for day, c := range byDay {
		out = append(out, DayCounts{Date: day, Counts: *c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Urgency classifies a due date relative to today.
type Urgency string

const (
	UrgencyNone    Urgency = "none"
	UrgencyLater   Urgency = "later"
	UrgencySoon    Urgency = "soon"
	UrgencyToday   Urgency = "today"
	UrgencyOverdue Urgency = "overdue"
)

// DaysUntil returns the number of calendar days from now to due, both
// taken at midnight in now's location.
func DaysUntil(due, now time.Time) int {
	loc := now.Location()
	d := due.In(loc)
	dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	// Round to absorb DST shifts.
	return int(math.Round(dueDay.Sub(today).Hours() / 24))
}

// DaysLeft renders the due-date label shown on task cards.
func DaysLeft(due *time.Time, now time.Time) (string, Urgency) {
	if due == nil {
		return "No due date", UrgencyNone
	}
	days := DaysUntil(*due, now)
	switch {
	case days > 3:
		return fmt.Sprintf("%d days left", days), UrgencyLater
	case days > 0:
		return fmt.Sprintf("%d %s left", days, plural(days)), UrgencySoon
	case days == 0:
		return "Due today", UrgencyToday
	default:
		return fmt.Sprintf("Overdue by %d %s", -days, plural(-days)), UrgencyOverdue
	}
}

func plural(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// Summary is the dashboard header.
type Summary struct {
	Total     int              `json:"total"`
	Status    Counts           `json:"status"`
	Overdue   int              `json:"overdue"`
	Assignees []AssigneeCounts `json:"assignees"`
	Timeline  []DayCounts      `json:"timeline"`
}

// Summarize builds every aggregate at once. Overdue counts tasks that are
// not done and whose due day is before today.
func Summarize(tasks []*models.Task, now time.Time) Summary {
	s := Summary{
		Total:     len(tasks),
		Status:    StatusCounts(tasks),
		Assignees: ByAssignee(tasks),
		Timeline:  DueTimeline(tasks),
	}
	for _, t := range tasks {
		if t.DueDate != nil && t.Status != models.TaskStatusDone && DaysUntil(*t.DueDate, now) < 0 {
			s.Overdue++
		}
	}
	return s
}
