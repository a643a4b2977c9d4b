package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/store/drivers/sqlite"
	"github.com/haneul-labs/keyshare/pkg/cryptox"
	"github.com/haneul-labs/keyshare/pkg/sessionx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestSigner(t *testing.T) *sessionx.Signer {
	t.Helper()
	signer, err := sessionx.NewSigner("test-signing-secret", "keyshare-test", time.Hour)
	require.NoError(t, err)
	return signer
}

func newTestVault(t *testing.T) *cryptox.Vault {
	t.Helper()
	vault, err := cryptox.NewVault("test-secret", "test-salt")
	require.NoError(t, err)
	return vault
}

type sentMail struct {
	kind  string
	to    string
	token string
}

// mailRecorder captures outgoing mail so tests can follow token flows.
type mailRecorder struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

func (m *mailRecorder) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (m *mailRecorder) SendVerification(_ context.Context, to, token string) error {
	return m.record("verification", to, token)
}

func (m *mailRecorder) SendPasswordReset(_ context.Context, to, token string) error {
	return m.record("reset", to, token)
}

func (m *mailRecorder) SendGroupInvitation(_ context.Context, to, _, _, token string) error {
	return m.record("invitation", to, token)
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
	t.Fatalf("no %q mail recorded", kind)
	return sentMail{}
}

// testEnv wires every service against one in-memory store.
type testEnv struct {
	identity    *IdentityService
	credentials *CredentialService
	groups      *GroupService
	invitations *InvitationService
	emailInvite *EmailInviteService
	mailer      *mailRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newTestStore(t)
	mailer := &mailRecorder{}
	return &testEnv{
		identity:    &IdentityService{Store: st, Signer: newTestSigner(t), Mailer: mailer},
		credentials: &CredentialService{Store: st, Vault: newTestVault(t)},
		groups:      &GroupService{Store: st},
		invitations: &InvitationService{Store: st},
		emailInvite: &EmailInviteService{Store: st, Mailer: mailer},
		mailer:      mailer,
	}
}

const testPassword = "Sup3r$ecret"

// activeUser registers and verifies an account in one step.
func (e *testEnv) activeUser(t *testing.T, email string) domain.User {
	t.Helper()
	ctx := context.Background()

	user, status, err := e.identity.Register(ctx, email, "", testPassword)
	require.NoError(t, err)
	require.Equal(t, EmailSent, status)

	require.NoError(t, e.identity.VerifyEmail(ctx, e.mailer.last(t, "verification").token))

	user, err = e.identity.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, user.IsActive)
	return user
}

// groupFor creates a credential and a group around it for the given owner.
func (e *testEnv) groupFor(t *testing.T, ownerID, name string) domain.Group {
	t.Helper()
	ctx := context.Background()

	cred, err := e.credentials.Create(ctx, ownerID, domain.VendorOpenAI, "sk-proj-0123456789abcdefghij")
	require.NoError(t, err)

	group, err := e.groups.Create(ctx, ownerID, name, cred.ID)
	require.NoError(t, err)
	return group
}
