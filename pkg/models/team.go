package models

import "time"

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether email is in the team's member list.
func (t *Team) HasMember(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, m := range t.Members {
		if NormalizeEmail(m) == email {
			return true
		}
	}
	return false
}
