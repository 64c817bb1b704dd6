package domain

import "time"

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public projection returned by username lookups.
type UserSummary struct {
	ID       int64
	Username string
	Email    string
}
