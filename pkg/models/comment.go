package models

import "time"

// Comment is immutable once created.
type Comment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId,omitempty"`
	Text        string    `json:"text"`
	AuthorEmail string    `json:"authorEmail"`
	AuthorName  string    `json:"authorName"`
	CreatedAt   time.Time `json:"createdAt"`
}
