package http

import (
	"encoding/json"
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// MembersHandler manages the membership roster inside a group.
type MembersHandler struct {
	Groups *service.GroupService
}

func (h *MembersHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	member, err := h.Groups.AddMember(r.Context(), userID, r.PathValue("id"), req.UserID, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, renderMember(member))
}

func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Accepted bool   `json:"accepted"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Malformed JSON body")
		return
	}

	member, err := h.Groups.UpdateMember(r.Context(), userID, r.PathValue("id"), r.PathValue("memberID"), req.Accepted, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderMember(member))
}

func (h *MembersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	if err := h.Groups.RemoveMember(r.Context(), userID, r.PathValue("id"), r.PathValue("memberID")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *MembersHandler) Pending(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	views, err := h.Groups.PendingMembers(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"members": renderMemberViews(views)})
}

func (h *MembersHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	changed, err := h.Groups.ApproveMember(r.Context(), userID, r.PathValue("id"), r.PathValue("memberID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"approved": true, "changed": changed})
}
