package http

import (
	"encoding/json"
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// GroupsHandler manages sharing groups built around a single vendor key.
type GroupsHandler struct {
	Groups *service.GroupService
}

func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Name         string `json:"name"`
		CredentialID string `json:"credential_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.CredentialID == "" {
		writeBadRequest(w, "name and credential_id are required")
		return
	}

	group, err := h.Groups.Create(r.Context(), userID, req.Name, req.CredentialID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, renderGroup(group))
}

func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	includePending := r.URL.Query().Get("include_pending") == "true"

	views, err := h.Groups.List(r.Context(), userID, includePending)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	groups := make([]groupViewPayload, 0, len(views))
	for _, v := range views {
		groups = append(groups, renderGroupView(v))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	detail, err := h.Groups.Detail(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"group":        renderGroup(detail.Group),
		"members":      renderMemberViews(detail.Members),
		"member_count": detail.MemberCount,
		"api_key_info": map[string]any{
			"credential_id": detail.Key.CredentialID,
			"vendor":        string(detail.Key.Vendor),
			"is_active":     detail.Key.IsActive,
		},
		"owner_info": map[string]any{
			"user_id":  detail.Owner.UserID,
			"username": detail.Owner.Username,
			"email":    detail.Owner.Email,
		},
	})
}

func (h *GroupsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Name         string `json:"name"`
		CredentialID string `json:"credential_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Name == "" && req.CredentialID == "") {
		writeBadRequest(w, "name or credential_id is required")
		return
	}

	group, err := h.Groups.Update(r.Context(), userID, r.PathValue("id"), req.Name, req.CredentialID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderGroup(group))
}

func (h *GroupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	if err := h.Groups.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
