package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/internal/api/store/drivers/sqlite"
	"github.com/haneul-labs/keyshare/pkg/cryptox"
	"github.com/haneul-labs/keyshare/pkg/sessionx"
)

const testPassword = "Sup3r$ecret"

type sentMail struct {
	kind  string
	to    string
	token string
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *mailRecorder) record(kind, to, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, to: to, token: token})
}

func (m *mailRecorder) SendVerification(_ context.Context, to, token string) error {
	m.record("verification", to, token)
	return nil
}

func (m *mailRecorder) SendPasswordReset(_ context.Context, to, token string) error {
	m.record("reset", to, token)
	return nil
}

func (m *mailRecorder) SendGroupInvitation(_ context.Context, to, _, _, token string) error {
	m.record("invitation", to, token)
	return nil
}

func (m *mailRecorder) last(t *testing.T, kind string) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail recorded", kind)
	return sentMail{}
}

type testRouter struct {
	router *Router
	mailer *mailRecorder

	// Each router instance gets its own client IP so rate limit buckets
	// never bleed between tests.
	clientIP string
}

var ipCounter int
var ipMu sync.Mutex

func nextClientIP() string {
	ipMu.Lock()
	defer ipMu.Unlock()
	ipCounter++
	return fmt.Sprintf("203.0.113.%d", ipCounter%250+1)
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := sessionx.NewSigner("test-signing-secret", "keyshare-test", time.Hour)
	require.NoError(t, err)

	vault, err := cryptox.NewVault("test-secret", "test-salt")
	require.NoError(t, err)

	mailer := &mailRecorder{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter("test", false, st, logger)
	r.IdentityService = &service.IdentityService{Store: st, Signer: signer, Mailer: mailer}
	r.CredentialService = &service.CredentialService{Store: st, Vault: vault}
	r.GroupService = &service.GroupService{Store: st}
	r.InvitationService = &service.InvitationService{Store: st}
	r.EmailInviteService = &service.EmailInviteService{Store: st, Mailer: mailer}
	r.ApplyRoutes()

	return &testRouter{router: r, mailer: mailer, clientIP: nextClientIP()}
}

// doJSON performs a JSON request against the router. token may be empty for
// anonymous requests.
func (tr *testRouter) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Forwarded-For", tr.clientIP)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	tr.router.ServeHTTP(rec, req)
	return rec
}

// doJSONWithCookie performs a request authenticated only by the session
// cookie.
func (tr *testRouter) doJSONWithCookie(t *testing.T, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", tr.clientIP)
	req.AddCookie(cookie)

	rec := httptest.NewRecorder()
	tr.router.ServeHTTP(rec, req)
	return rec
}

// doForm performs a form-encoded POST against the router.
func (tr *testRouter) doForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("X-Forwarded-For", tr.clientIP)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	tr.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// signup registers, verifies and logs a user in, returning a session token.
func (tr *testRouter) signup(t *testing.T, email string) string {
	t.Helper()

	rec := tr.doJSON(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	verification := tr.mailer.last(t, "verification")
	rec = tr.doJSON(t, http.MethodPost, "/api/users/verify-email", "", map[string]string{
		"token": verification.token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return tr.login(t, email)
}

func (tr *testRouter) login(t *testing.T, email string) string {
	t.Helper()

	rec := tr.doForm(t, "/api/auth/login", url.Values{
		"username": {email},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}
