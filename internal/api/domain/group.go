package domain

import "time"

// Group shares one credential with its members. The owner always holds an
// accepted, active membership row.
type Group struct {
	ID           string
	OwnerID      string
	CredentialID string
	Name         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type GroupMember struct {
	ID        string
	GroupID   string
	UserID    string
	Accepted  bool
	Active    bool
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
