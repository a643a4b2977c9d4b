package http

import (
	"errors"
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unmapped is a 500 with the detail logged, never leaked.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, desc := classify(err)
	if status == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
	}
	httpx.WriteError(w, status, code, desc)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "Token has expired"
	case errors.Is(err, service.ErrTokenNotFound):
		return http.StatusUnauthorized, "token_invalid", "Token is invalid or already used"
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive", "Account is not active"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, "email_taken", "Email is already registered"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "weak_password",
			"Password must be at most 20 characters and include an uppercase letter, a digit and a special character"
	case errors.Is(err, service.ErrPasswordReused):
		return http.StatusBadRequest, "password_reused", "New password was used recently"
	case errors.Is(err, service.ErrSearchTooShort):
		return http.StatusBadRequest, "query_too_short", "Search query must be at least 2 characters"
	case errors.Is(err, service.ErrUnknownVendor):
		return http.StatusBadRequest, "unknown_vendor", "Vendor is not supported"
	case errors.Is(err, service.ErrImplausibleKey):
		return http.StatusBadRequest, "invalid_key_format", "API key does not match the vendor's format"
	case errors.Is(err, service.ErrSelfInvite):
		return http.StatusBadRequest, "self_invite", "You cannot invite yourself"
	case errors.Is(err, service.ErrAlreadyMember):
		return http.StatusBadRequest, "already_member", "User is already an active member"
	case errors.Is(err, service.ErrInvitationClosed):
		return http.StatusBadRequest, "invitation_closed", "Invitation is already in a final state"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "User not found"
	case errors.Is(err, service.ErrCredentialNotFound):
		return http.StatusNotFound, "credential_not_found", "API key not found"
	case errors.Is(err, service.ErrGroupNotFound):
		return http.StatusNotFound, "group_not_found", "Group not found"
	case errors.Is(err, service.ErrMemberNotFound):
		return http.StatusNotFound, "member_not_found", "Member not found"
	case errors.Is(err, service.ErrInvitationNotFound):
		return http.StatusNotFound, "invitation_not_found", "Invitation not found"
	case errors.Is(err, service.ErrNotCredentialOwner):
		return http.StatusForbidden, "forbidden", "Only the key owner may do that"
	case errors.Is(err, service.ErrNotGroupOwner):
		return http.StatusForbidden, "forbidden", "Only the group owner may do that"
	case errors.Is(err, service.ErrNotGroupMember):
		return http.StatusForbidden, "forbidden", "Only group members may do that"
	case errors.Is(err, service.ErrOwnerImmutable):
		return http.StatusBadRequest, "owner_immutable", "The group owner cannot be removed"
	case errors.Is(err, service.ErrMemberForbidden),
		errors.Is(err, service.ErrInvitationForbidden):
		return http.StatusForbidden, "forbidden", "You are not allowed to perform this action"
	case errors.Is(err, service.ErrInviteEmailMismatch):
		return http.StatusForbidden, "email_mismatch", "Invitation was issued for a different email address"
	case errors.Is(err, service.ErrCredentialInUse):
		return http.StatusConflict, "credential_in_use", "API key is still referenced by a group"
	}
	return http.StatusInternalServerError, "server_error", "Something went wrong"
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", desc)
}

func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
}
