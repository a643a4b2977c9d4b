package domain

import "time"

type User struct {
	ID           string
	Email        string
	Username     string
	Description  string
	ProfileURL   string
	IsActive     bool
	IsAdmin      bool
	IsGroupOwner bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPassword tracks the current credential and the one before it so a
// password change can reject reuse of either.
type UserPassword struct {
	UserID       string
	PasswordHash string  // argon2 encoded
	PreviousHash *string // nullable, previous argon2 encoded hash
	ChangedAt    time.Time
}

type LoginRecord struct {
	ID         string
	UserID     string
	LoggedInAt time.Time
}
