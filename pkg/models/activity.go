package models

import "time"

type ActivityType string

const (
	ActivityCreated     ActivityType = "created"
	ActivityUpdated     ActivityType = "updated"
	ActivityDeleted     ActivityType = "deleted"
	ActivityCommented   ActivityType = "commented"
	ActivityTeamCreated ActivityType = "team_created"
	ActivityTeamUpdated ActivityType = "team_updated"
	ActivityTeamDeleted ActivityType = "team_deleted"
	ActivityRoleChanged ActivityType = "role_changed"
)

type Activity struct {
	ID         string       `json:"id"`
	Type       ActivityType `json:"type"`
	Action     string       `json:"action"`
	TaskID     string       `json:"taskId,omitempty"`
	TaskTitle  string       `json:"taskTitle,omitempty"`
	ActorEmail string       `json:"actorEmail"`
	ActorName  string       `json:"actorName"`
	Timestamp  time.Time    `json:"timestamp"`
}
