package http

import (
	"net/http"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// LoginHandler exchanges form credentials for a session token. The token is
// returned in the body and mirrored in an HttpOnly cookie so both API and
// browser clients work.
type LoginHandler struct {
	Identity     *service.IdentityService
	CookieSecure bool
	CookieMaxAge int
}

type loginResponse struct {
	AccessToken            string      `json:"access_token"`
	TokenType              string      `json:"token_type"`
	User                   userPayload `json:"user"`
	PasswordAgeDays        int         `json:"password_age_days"`
	PasswordChangeRequired bool        `json:"password_change_required"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Malformed form body")
		return
	}

	// The form field is named username for OAuth2 password-grant client
	// compatibility but carries the account email.
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	res, err := h.Identity.Login(r.Context(), email, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "Bearer " + res.Token,
		Path:     "/",
		MaxAge:   h.CookieMaxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:            res.Token,
		TokenType:              "Bearer",
		User:                   renderUser(res.User),
		PasswordAgeDays:        res.PasswordAgeDays,
		PasswordChangeRequired: res.PasswordChangeRequired,
	})
}

// LogoutHandler clears the session cookie. Tokens are stateless so there is
// nothing to revoke server side.
type LogoutHandler struct {
	CookieSecure bool
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
