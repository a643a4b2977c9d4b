package domain

import "time"

// InvitationStatus is the state of a registered-user invitation. Pending is
// the only state that can transition; the other three are terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationCanceled InvitationStatus = "canceled"
)

// Terminal reports whether the status admits no further transitions.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationDeclined || s == InvitationCanceled
}

type Invitation struct {
	ID        string
	GroupID   string
	UserID    string // invited user
	InvitedBy string
	Note      string
	Status    InvitationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
