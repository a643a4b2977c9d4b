package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// InvitationsHandler covers both invitation paths: in-app invitations to
// registered users and mailed invitation links keyed by email.
type InvitationsHandler struct {
	Invitations *service.InvitationService
	EmailInvite *service.EmailInviteService
}

// InviteUser creates (or returns the existing) pending invitation for a
// registered user.
func (h *InvitationsHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeBadRequest(w, "user_id is required")
		return
	}

	res, err := h.Invitations.Invite(r.Context(), userID, r.PathValue("id"), req.UserID, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, renderInvitation(res.Invitation))
}

// InviteEmail mails an invitation link to an address that may not have an
// account yet.
func (h *InvitationsHandler) InviteEmail(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	emailStatus, err := h.EmailInvite.Invite(r.Context(), userID, r.PathValue("id"), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"email_status": emailStatus})
}

// VerifyToken previews a mailed invitation token without consuming it.
// Runs before login so the landing page can show what the link is for.
func (h *InvitationsHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	invite, err := h.EmailInvite.Verify(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":      invite.Email,
		"group_id":   invite.GroupID,
		"group_name": invite.GroupName,
		"invited_by": invite.InvitedBy,
		"expires_at": invite.ExpiresAt,
	})
}

// AcceptToken redeems a mailed invitation token for the authenticated user.
func (h *InvitationsHandler) AcceptToken(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	member, err := h.EmailInvite.Accept(r.Context(), userID, req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderMember(member))
}

// ListForGroup returns a group's invitations, owner only. An optional status
// query narrows the result.
func (h *InvitationsHandler) ListForGroup(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	invs, err := h.Invitations.ListByGroup(r.Context(), userID, r.PathValue("id"),
		domain.InvitationStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"invitations": renderInvitations(invs)})
}

// ListMine returns the invitations addressed to the caller.
func (h *InvitationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	invs, err := h.Invitations.ListByUser(r.Context(), userID,
		domain.InvitationStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"invitations": renderInvitations(invs)})
}

func (h *InvitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Invitations.Accept)
}

func (h *InvitationsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Invitations.Decline)
}

func (h *InvitationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Invitations.Cancel)
}

func (h *InvitationsHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, callerID, invitationID string) (domain.Invitation, error),
) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	inv, err := fn(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderInvitation(inv))
}
