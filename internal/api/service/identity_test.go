package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/keyshare/pkg/idx"
)

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, status, err := env.identity.Register(ctx, "Alice@Example.com", "", testPassword)
	require.NoError(t, err)
	require.Equal(t, EmailSent, status)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "alice", user.Username)
	require.False(t, user.IsActive)

	// Login is impossible until the email is verified.
	_, err = env.identity.Login(ctx, "alice@example.com", testPassword)
	require.ErrorIs(t, err, ErrAccountInactive)
}

func TestRegisterReportsFailedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true

	_, status, err := env.identity.Register(context.Background(), "bob@example.com", "bob", testPassword)
	require.NoError(t, err)
	require.Equal(t, EmailFailed, status)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.identity.Register(ctx, "carol@example.com", "carol", testPassword)
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, _, err := env.identity.Register(ctx, "carol@example.com", "other", testPassword)
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("policy violations", func(t *testing.T) {
		for _, pw := range []string{
			"",
			"alllowercase1!",             // no uppercase
			"NOUPPERDIGIT!A",             // no digit
			"NoSpecial123",               // no special
			"Way2Long!" + "aaaaaaaaaaaa", // over 20 chars
		} {
			_, _, err := env.identity.Register(ctx, "dave@example.com", "dave", pw)
			require.ErrorIs(t, err, ErrWeakPassword, "password %q", pw)
		}
	})
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.identity.Register(ctx, "erin@example.com", "erin", testPassword)
	require.NoError(t, err)
	token := env.mailer.last(t, "verification").token

	require.NoError(t, env.identity.VerifyEmail(ctx, token))
	require.ErrorIs(t, env.identity.VerifyEmail(ctx, token), ErrTokenNotFound)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "frank@example.com")

	t.Run("success mints a verifiable session", func(t *testing.T) {
		result, err := env.identity.Login(ctx, "frank@example.com", testPassword)
		require.NoError(t, err)
		require.Equal(t, user.ID, result.User.ID)
		require.False(t, result.PasswordChangeRequired)
		require.Equal(t, 0, result.PasswordAgeDays)

		resolved, claims, err := env.identity.ResolveSession(ctx, result.Token)
		require.NoError(t, err)
		require.Equal(t, user.ID, resolved.ID)
		require.Equal(t, user.Email, claims.Email)
	})

	t.Run("records login history", func(t *testing.T) {
		records, err := env.identity.Store.Users().ListLoginRecords(ctx, user.ID, 10)
		require.NoError(t, err)
		require.NotEmpty(t, records)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.identity.Login(ctx, "frank@example.com", "Wr0ng$password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email looks like wrong password", func(t *testing.T) {
		_, err := env.identity.Login(ctx, "nobody@example.com", testPassword)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestResolveSessionRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "grace@example.com")

	result, err := env.identity.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	require.NoError(t, env.identity.Deactivate(ctx, user.ID))

	// The token is still cryptographically valid, but the live account check fails.
	_, _, err = env.identity.ResolveSession(ctx, result.Token)
	require.ErrorIs(t, err, ErrAccountInactive)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "heidi@example.com")

	t.Run("requires the current password", func(t *testing.T) {
		err := env.identity.ChangePassword(ctx, user.ID, "Wr0ng$password", "N3w$ecret")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("rejects reusing the current password", func(t *testing.T) {
		err := env.identity.ChangePassword(ctx, user.ID, testPassword, testPassword)
		require.ErrorIs(t, err, ErrPasswordReused)
	})

	t.Run("rotates and rejects the previous password afterwards", func(t *testing.T) {
		require.NoError(t, env.identity.ChangePassword(ctx, user.ID, testPassword, "N3w$ecret"))

		_, err := env.identity.Login(ctx, user.Email, "N3w$ecret")
		require.NoError(t, err)

		// The pre-rotation password is now the previous hash and cannot come back.
		err = env.identity.ChangePassword(ctx, user.ID, "N3w$ecret", testPassword)
		require.ErrorIs(t, err, ErrPasswordReused)
	})
}

func TestPasswordAgeBoundary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	age, required := passwordAge(now.AddDate(0, 0, -179), now)
	require.Equal(t, 179, age)
	require.False(t, required)

	// Day 180 itself already requires a change.
	age, required = passwordAge(now.AddDate(0, 0, -180), now)
	require.Equal(t, 180, age)
	require.True(t, required)

	age, required = passwordAge(now.AddDate(0, 0, -400), now)
	require.Equal(t, 400, age)
	require.True(t, required)
}

func TestPasswordChangeRequiredClaimOnLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "ivan@example.com")

	// Backdate the password change beyond the limit.
	stale := time.Now().UTC().AddDate(0, 0, -200)
	pw, err := env.identity.Store.Users().GetPassword(ctx, user.ID)
	require.NoError(t, err)
	pw.ChangedAt = stale
	require.NoError(t, env.identity.Store.Users().UpdatePassword(ctx, pw))

	result, err := env.identity.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	require.True(t, result.PasswordChangeRequired)
	require.GreaterOrEqual(t, result.PasswordAgeDays, 200)

	_, claims, err := env.identity.ResolveSession(ctx, result.Token)
	require.NoError(t, err)
	require.True(t, claims.PasswordChangeRequired)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "judy@example.com")

	t.Run("unknown email still succeeds", func(t *testing.T) {
		require.NoError(t, env.identity.RequestPasswordReset(ctx, "nobody@example.com"))
	})

	t.Run("token resets the password once", func(t *testing.T) {
		require.NoError(t, env.identity.RequestPasswordReset(ctx, user.Email))
		token := env.mailer.last(t, "reset").token

		require.NoError(t, env.identity.ResetPassword(ctx, token, "N3w$ecret"))

		_, err := env.identity.Login(ctx, user.Email, "N3w$ecret")
		require.NoError(t, err)

		// Single use.
		err = env.identity.ResetPassword(ctx, token, "An0ther$ecret")
		require.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("a new request invalidates the previous token", func(t *testing.T) {
		require.NoError(t, env.identity.RequestPasswordReset(ctx, user.Email))
		first := env.mailer.last(t, "reset").token
		require.NoError(t, env.identity.RequestPasswordReset(ctx, user.Email))
		second := env.mailer.last(t, "reset").token

		require.ErrorIs(t, env.identity.ResetPassword(ctx, first, "An0ther$ecret"), ErrTokenNotFound)
		require.NoError(t, env.identity.ResetPassword(ctx, second, "An0ther$ecret"))
	})
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "kim@example.com")

	updated, err := env.identity.UpdateProfile(ctx, user.ID, "kimmy", "hello", "https://example.com/kim.png")
	require.NoError(t, err)
	require.Equal(t, "kimmy", updated.Username)
	require.Equal(t, "hello", updated.Description)
	require.Equal(t, "https://example.com/kim.png", updated.ProfileURL)

	_, err = env.identity.UpdateProfile(ctx, idx.New().String(), "x", "", "")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caller := env.activeUser(t, "searcher@example.com")
	env.activeUser(t, "match-one@example.com")
	env.activeUser(t, "match-two@example.com")

	t.Run("minimum query length", func(t *testing.T) {
		_, err := env.identity.SearchUsers(ctx, caller.ID, "m", 10)
		require.ErrorIs(t, err, ErrSearchTooShort)
	})

	t.Run("excludes the caller", func(t *testing.T) {
		results, err := env.identity.SearchUsers(ctx, caller.ID, "example.com", 50)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, u := range results {
			require.NotEqual(t, caller.ID, u.ID)
		}
	})

	t.Run("clamps the limit", func(t *testing.T) {
		results, err := env.identity.SearchUsers(ctx, caller.ID, "match", 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
	})
}
