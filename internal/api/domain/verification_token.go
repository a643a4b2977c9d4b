package domain

import "time"

// TokenType distinguishes the single-use token flows that share the
// verification_tokens table.
type TokenType string

const (
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
	TokenGroupInvitation   TokenType = "group_invitation"
)

// VerificationToken is the stored side of an opaque single-use token. Only
// the SHA-256 fingerprint is persisted; the plaintext token is emailed out
// and never stored.
type VerificationToken struct {
	ID        string
	TokenHash string
	Type      TokenType
	UserID    *string // set for email_verification and password_reset
	GroupID   *string // set for group_invitation
	Email     *string // set for group_invitation (the invited address)
	InvitedBy *string // set for group_invitation
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its TTL at the given instant.
func (t VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
