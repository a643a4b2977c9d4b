package store

import (
	"context"
	"errors"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	Credentials() Credentials
	Groups() Groups
	Members() Members
	Invitations() Invitations
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction. If fn returns an
	// error the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and duplicate-registration checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile mutates username/description/profile_url and bumps updated_at.
	UpdateProfile(ctx context.Context, userID, username, description, profileURL string) error

	// SetActive flips is_active. Soft delete and email verification both land here.
	SetActive(ctx context.Context, userID string, active bool) error

	// SetGroupOwner marks the user as owning at least one group.
	SetGroupOwner(ctx context.Context, userID string, owner bool) error

	// SearchUsers matches email or username by substring, excluding one user id.
	SearchUsers(ctx context.Context, query, excludeUserID string, limit int) ([]domain.User, error)

	// GetPassword returns the password row for a user.
	GetPassword(ctx context.Context, userID string) (domain.UserPassword, error)

	// CreatePassword inserts the initial password row at registration.
	CreatePassword(ctx context.Context, p domain.UserPassword) error

	// UpdatePassword replaces the hash, shifting the old one into previous_hash.
	UpdatePassword(ctx context.Context, p domain.UserPassword) error

	// AppendLoginRecord writes a login history row. Callers treat failures
	// as non-fatal.
	AppendLoginRecord(ctx context.Context, rec domain.LoginRecord) error

	// ListLoginRecords returns login history newest first.
	ListLoginRecords(ctx context.Context, userID string, limit int) ([]domain.LoginRecord, error)
}

type Credentials interface {
	CreateCredential(ctx context.Context, c domain.Credential) error

	GetCredentialByID(ctx context.Context, id string) (domain.Credential, error)

	// ListCredentialsByOwner returns the owner's credentials, most recently
	// updated first. Inactive rows are included.
	ListCredentialsByOwner(ctx context.Context, ownerID string) ([]domain.Credential, error)

	// UpdateCredential rewrites vendor and ciphertext, bumping updated_at.
	UpdateCredential(ctx context.Context, id string, vendor domain.Vendor, encryptedKey string) error

	SetCredentialActive(ctx context.Context, id string, active bool) error

	// DeleteCredential removes the row. Hard delete.
	DeleteCredential(ctx context.Context, id string) error
}

type Groups interface {
	CreateGroup(ctx context.Context, g domain.Group) error

	GetGroupByID(ctx context.Context, id string) (domain.Group, error)

	// ListGroupsByOwner returns active groups owned by the user.
	ListGroupsByOwner(ctx context.Context, ownerID string) ([]domain.Group, error)

	// ListGroupsByMember returns active groups where the user holds an active
	// membership. includePending keeps not-yet-accepted memberships in.
	ListGroupsByMember(ctx context.Context, userID string, includePending bool) ([]domain.Group, error)

	// UpdateGroupName renames the group and bumps updated_at.
	UpdateGroupName(ctx context.Context, id, name string) error

	// UpdateGroupCredential repoints the group at another credential.
	UpdateGroupCredential(ctx context.Context, id, credentialID string) error

	// SetGroupActive flips is_active. Group deletion is a deactivation.
	SetGroupActive(ctx context.Context, id string, active bool) error

	// CountGroupsByCredential reports how many groups, active or not,
	// still reference the credential.
	CountGroupsByCredential(ctx context.Context, credentialID string) (int, error)
}

type Members interface {
	CreateMember(ctx context.Context, m domain.GroupMember) error

	GetMemberByID(ctx context.Context, id string) (domain.GroupMember, error)

	// GetMember returns the row for (group, user) regardless of flags, so
	// re-adds can reactivate the existing row instead of inserting.
	GetMember(ctx context.Context, groupID, userID string) (domain.GroupMember, error)

	// UpdateMember rewrites accepted/active/note, bumping updated_at.
	UpdateMember(ctx context.Context, m domain.GroupMember) error

	// ListMembers returns membership rows for a group. activeOnly drops
	// deactivated rows.
	ListMembers(ctx context.Context, groupID string, activeOnly bool) ([]domain.GroupMember, error)

	// ListPendingMembers returns active but not yet accepted rows.
	ListPendingMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error)

	// DeactivateMembersByGroup flips active=0 for every row in the group.
	DeactivateMembersByGroup(ctx context.Context, groupID string) error
}

type Invitations interface {
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	// GetPendingInvitation returns the pending row for (group, user) if any.
	GetPendingInvitation(ctx context.Context, groupID, userID string) (domain.Invitation, error)

	// ListInvitationsByUser returns invitations addressed to the user,
	// optionally filtered by status ("" means all).
	ListInvitationsByUser(ctx context.Context, userID string, status domain.InvitationStatus) ([]domain.Invitation, error)

	// ListInvitationsByGroup returns invitations for a group, optionally
	// filtered by status ("" means all).
	ListInvitationsByGroup(ctx context.Context, groupID string, status domain.InvitationStatus) ([]domain.Invitation, error)

	// UpdateInvitationStatus flips the status and bumps updated_at.
	UpdateInvitationStatus(ctx context.Context, id string, status domain.InvitationStatus) error
}

type Tokens interface {
	CreateToken(ctx context.Context, t domain.VerificationToken) error

	// GetTokenByHash returns the row whose token_hash matches the fingerprint.
	GetTokenByHash(ctx context.Context, hash string) (domain.VerificationToken, error)

	// GetTokenByEmailGroup returns the group_invitation row bound to
	// (email, group), used for overwrite-on-resend.
	GetTokenByEmailGroup(ctx context.Context, email, groupID string) (domain.VerificationToken, error)

	// DeleteToken removes a row. Redemption and lazy expiry both land here.
	DeleteToken(ctx context.Context, id string) error

	// DeleteTokensForUser removes all rows of one type for a user, so a
	// fresh reset or verification token invalidates its predecessors.
	DeleteTokensForUser(ctx context.Context, userID string, typ domain.TokenType) error

	// DeleteExpiredTokens is housekeeping; returns the number of rows removed.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
