package models

import "time"

// User mirrors the identity provider's authenticated user handle. Lares
// never creates or authenticates users itself; it records the handle as
// the owner key on every entity and keeps a little per-user state.
type User struct {
	ID          string    `json:"id" validate:"required"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// UserKeyValue is one per-user configuration entry.
type UserKeyValue struct {
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
