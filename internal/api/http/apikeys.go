package http

import (
	"encoding/json"
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// APIKeysHandler manages the caller's encrypted vendor keys. Listings are
// always masked; only the single-key fetch returns plaintext.
type APIKeysHandler struct {
	Credentials *service.CredentialService
}

func (h *APIKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Vendor string `json:"vendor"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Vendor == "" || req.Key == "" {
		writeBadRequest(w, "vendor and key are required")
		return
	}

	view, err := h.Credentials.Create(r.Context(), userID, domain.Vendor(req.Vendor), req.Key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, renderCredential(view))
}

func (h *APIKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	views, err := h.Credentials.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	keys := make([]credentialPayload, 0, len(views))
	for _, v := range views {
		keys = append(keys, renderCredential(v))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

func (h *APIKeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	view, err := h.Credentials.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderCredential(view))
}

func (h *APIKeysHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Vendor   string `json:"vendor"`
		Key      string `json:"key"`
		IsActive *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Malformed JSON body")
		return
	}

	view, err := h.Credentials.Update(r.Context(), userID, r.PathValue("id"), domain.Vendor(req.Vendor), req.Key, req.IsActive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, renderCredential(view))
}

func (h *APIKeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	if err := h.Credentials.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Verify checks a key's shape against a vendor without storing anything.
func (h *APIKeysHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if httpx.UserIDFromContext(r.Context()) == "" {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Vendor string `json:"vendor"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Vendor == "" || req.Key == "" {
		writeBadRequest(w, "vendor and key are required")
		return
	}

	if err := h.Credentials.Verify(r.Context(), domain.Vendor(req.Vendor), req.Key); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"valid": true})
}
