package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/cryptox"
	"github.com/haneul-labs/keyshare/pkg/idx"
	"github.com/haneul-labs/keyshare/pkg/sessionx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountInactive    = errors.New("account_inactive")
	ErrEmailTaken         = errors.New("email_already_registered")
	ErrWeakPassword       = errors.New("password_policy_violation")
	ErrPasswordReused     = errors.New("password_recently_used")
	ErrTokenNotFound      = errors.New("token_invalid")
	ErrTokenExpired       = errors.New("token_expired")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrSearchTooShort     = errors.New("search_query_too_short")
)

const (
	// EmailSent and EmailFailed describe the best-effort delivery outcome
	// reported back to the caller.
	EmailSent   = "sent"
	EmailFailed = "failed"

	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour

	// passwordMaxAgeDays is the boundary at which a change becomes required.
	// Day 180 itself already requires a change.
	passwordMaxAgeDays = 180

	searchLimitMax = 50
)

// Mailer is the delivery side of verification, reset and invitation emails.
// Every send is best-effort from the caller's point of view.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendGroupInvitation(ctx context.Context, to, groupName, inviterEmail, token string) error
}

// IdentityService owns accounts, passwords and sessions.
type IdentityService struct {
	Store  store.Store
	Signer *sessionx.Signer
	Mailer Mailer
}

// LoginResult is everything the login endpoint reports back.
type LoginResult struct {
	Token                  string
	User                   domain.User
	PasswordAgeDays        int
	PasswordChangeRequired bool
}

// Register creates an inactive account, issues a 24h verification token and
// mails it out. The returned email status is sent or failed; a failed send
// never fails registration.
func (s *IdentityService) Register(ctx context.Context, email, username, password string) (domain.User, string, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate input.
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}
	if err := ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}

	// 2. Reject duplicate registrations.
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		log.Warn("registration attempted with taken email", slog.String("email", email))
		return domain.User{}, "", ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check email availability", slog.Any("error", err))
		return domain.User{}, "", err
	}

	// 3. Hash the password using Argon2id.
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, "", err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		Username:  username,
		IsActive:  false, // activation happens via email verification
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 4. Create the account and its password row atomically.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.Users().CreatePassword(ctx, domain.UserPassword{
			UserID:       user.ID,
			PasswordHash: hash,
			ChangedAt:    now,
		})
	})
	if err != nil {
		log.Error("failed to create user", slog.String("email", email), slog.Any("error", err))
		return domain.User{}, "", err
	}

	// 5. Issue the verification token and send the mail best-effort.
	emailStatus := EmailFailed
	token, err := s.issueToken(ctx, domain.TokenEmailVerification, user.ID, verificationTokenTTL)
	if err != nil {
		log.Error("failed to issue verification token",
			slog.String("user_id", user.ID), slog.Any("error", err))
	} else if err := s.Mailer.SendVerification(ctx, user.Email, token); err == nil {
		emailStatus = EmailSent
	}

	log.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("email_status", emailStatus),
	)
	return user, emailStatus, nil
}

// VerifyEmail redeems a verification token and activates the account.
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) error {
	log := slogx.FromContext(ctx)

	tok, err := s.redeemableToken(ctx, token, domain.TokenEmailVerification)
	if err != nil {
		return err
	}

	// Activation and token burn happen together; the token is single-use.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetActive(ctx, *tok.UserID, true); err != nil {
			return err
		}
		return tx.Tokens().DeleteToken(ctx, tok.ID)
	})
	if err != nil {
		log.Error("failed to verify email", slog.String("user_id", *tok.UserID), slog.Any("error", err))
		return err
	}

	log.Info("email verified", slog.String("user_id", *tok.UserID))
	return nil
}

// Login authenticates form credentials and mints a session token. A login
// history row is appended fire-and-forget.
func (s *IdentityService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Resolve the account. Unknown email and bad password are the same error.
	user, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("failed to fetch user", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 2. Inactive accounts cannot log in, even with valid credentials.
	if !user.IsActive {
		log.Warn("login attempted on inactive account", slog.String("user_id", user.ID))
		return LoginResult{}, ErrAccountInactive
	}

	// 3. Verify the password.
	pw, err := s.Store.Users().GetPassword(ctx, user.ID)
	if err != nil {
		log.Error("failed to fetch password row", slog.String("user_id", user.ID), slog.Any("error", err))
		return LoginResult{}, err
	}
	if err := cryptox.VerifyPassword(password, pw.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("password verification failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return LoginResult{}, err
	}

	// 4. Compute password age and stamp the change-required claim.
	ageDays, changeRequired := passwordAge(pw.ChangedAt, time.Now().UTC())

	token, err := s.Signer.Sign(user.ID, user.Email, changeRequired)
	if err != nil {
		log.Error("failed to sign session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return LoginResult{}, err
	}

	// 5. Append login history. Failures are logged and swallowed.
	if err := s.Store.Users().AppendLoginRecord(ctx, domain.LoginRecord{
		ID:         idx.New().String(),
		UserID:     user.ID,
		LoggedInAt: time.Now().UTC(),
	}); err != nil {
		log.Warn("failed to append login record", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	log.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Int("password_age_days", ageDays),
		slog.Bool("password_change_required", changeRequired),
	)
	return LoginResult{
		Token:                  token,
		User:                   user,
		PasswordAgeDays:        ageDays,
		PasswordChangeRequired: changeRequired,
	}, nil
}

// ResolveSession verifies a session token and re-resolves the live account
// row, so deactivations take effect immediately regardless of token expiry.
func (s *IdentityService) ResolveSession(ctx context.Context, raw string) (domain.User, *sessionx.Claims, error) {
	claims, err := s.Signer.Verify(raw)
	if err != nil {
		if errors.Is(err, sessionx.ErrTokenExpired) {
			return domain.User{}, nil, ErrTokenExpired
		}
		return domain.User{}, nil, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, nil, ErrInvalidCredentials
		}
		return domain.User{}, nil, err
	}
	if !user.IsActive {
		return domain.User{}, nil, ErrAccountInactive
	}
	return user, claims, nil
}

// ChangePassword rotates the password. The new password must satisfy the
// policy and must not verify against the current or previous hash.
func (s *IdentityService) ChangePassword(ctx context.Context, userID, current, next string) error {
	log := slogx.FromContext(ctx)

	// 1. The caller must prove knowledge of the current password.
	pw, err := s.Store.Users().GetPassword(ctx, userID)
	if err != nil {
		return mapUserNotFound(err)
	}
	if err := cryptox.VerifyPassword(current, pw.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	// 2. Policy and reuse checks.
	if err := ValidatePassword(next); err != nil {
		return err
	}
	if err := checkReuse(next, pw); err != nil {
		return err
	}

	// 3. Hash and rotate, shifting the old hash into previous_hash.
	hash, err := cryptox.HashPassword(next)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	old := pw.PasswordHash
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().UpdatePassword(ctx, domain.UserPassword{
			UserID:       userID,
			PasswordHash: hash,
			PreviousHash: &old,
			ChangedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		log.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	log.Info("password changed", slog.String("user_id", userID))
	return nil
}

// PasswordStatus reports the password age in days and whether a change is
// required.
func (s *IdentityService) PasswordStatus(ctx context.Context, userID string) (int, bool, error) {
	pw, err := s.Store.Users().GetPassword(ctx, userID)
	if err != nil {
		return 0, false, mapUserNotFound(err)
	}
	age, required := passwordAge(pw.ChangedAt, time.Now().UTC())
	return age, required, nil
}

// RequestPasswordReset issues a 1h reset token and mails it. The response is
// uniform whether or not the email is registered, to avoid user enumeration.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	// A fresh token invalidates any earlier reset tokens.
	if err := s.Store.Tokens().DeleteTokensForUser(ctx, user.ID, domain.TokenPasswordReset); err != nil {
		log.Warn("failed to clear previous reset tokens", slog.Any("error", err))
	}

	token, err := s.issueToken(ctx, domain.TokenPasswordReset, user.ID, resetTokenTTL)
	if err != nil {
		log.Error("failed to issue reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}
	if err := s.Mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		log.Warn("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password.
func (s *IdentityService) ResetPassword(ctx context.Context, token, next string) error {
	log := slogx.FromContext(ctx)

	tok, err := s.redeemableToken(ctx, token, domain.TokenPasswordReset)
	if err != nil {
		return err
	}

	if err := ValidatePassword(next); err != nil {
		return err
	}

	pw, err := s.Store.Users().GetPassword(ctx, *tok.UserID)
	if err != nil {
		return mapUserNotFound(err)
	}
	if err := checkReuse(next, pw); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	old := pw.PasswordHash
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePassword(ctx, domain.UserPassword{
			UserID:       *tok.UserID,
			PasswordHash: hash,
			PreviousHash: &old,
			ChangedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.Tokens().DeleteToken(ctx, tok.ID)
	})
	if err != nil {
		log.Error("failed to reset password", slog.String("user_id", *tok.UserID), slog.Any("error", err))
		return err
	}

	log.Info("password reset", slog.String("user_id", *tok.UserID))
	return nil
}

// GetUser fetches a user by id.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, mapUserNotFound(err)
	}
	return user, nil
}

// UpdateProfile mutates username, description and profile url.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID, username, description, profileURL string) (domain.User, error) {
	if err := s.Store.Users().UpdateProfile(ctx, userID, username, description, profileURL); err != nil {
		return domain.User{}, mapUserNotFound(err)
	}
	return s.GetUser(ctx, userID)
}

// Deactivate soft-deletes the account. Existing sessions die on the next
// request because ResolveSession re-checks is_active.
func (s *IdentityService) Deactivate(ctx context.Context, userID string) error {
	if err := s.Store.Users().SetActive(ctx, userID, false); err != nil {
		return mapUserNotFound(err)
	}
	slogx.FromContext(ctx).Info("account deactivated", slog.String("user_id", userID))
	return nil
}

// SearchUsers matches active users by email or username substring. The
// caller is always excluded from results.
func (s *IdentityService) SearchUsers(ctx context.Context, callerID, query string, limit int) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, ErrSearchTooShort
	}
	if limit < 1 {
		limit = 1
	}
	if limit > searchLimitMax {
		limit = searchLimitMax
	}
	return s.Store.Users().SearchUsers(ctx, query, callerID, limit)
}

// issueToken mints an opaque token, stores its fingerprint and returns the
// plaintext for delivery.
func (s *IdentityService) issueToken(ctx context.Context, typ domain.TokenType, userID string, ttl time.Duration) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.Store.Tokens().CreateToken(ctx, domain.VerificationToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(token),
		Type:      typ,
		UserID:    &userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// redeemableToken fingerprints and resolves a token of the expected type.
// Expired tokens are evicted on sight.
func (s *IdentityService) redeemableToken(ctx context.Context, token string, typ domain.TokenType) (domain.VerificationToken, error) {
	log := slogx.FromContext(ctx)

	tok, err := s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.VerificationToken{}, ErrTokenNotFound
		}
		return domain.VerificationToken{}, err
	}
	if tok.Type != typ || tok.UserID == nil {
		return domain.VerificationToken{}, ErrTokenNotFound
	}
	if tok.Expired(time.Now().UTC()) {
		if err := s.Store.Tokens().DeleteToken(ctx, tok.ID); err != nil {
			log.Warn("failed to evict expired token", slog.Any("error", err))
		}
		return domain.VerificationToken{}, ErrTokenExpired
	}
	return tok, nil
}

// ValidatePassword enforces the password policy: at most 20 characters with
// at least one uppercase letter, one digit and one special character.
func ValidatePassword(password string) error {
	if password == "" || len(password) > 20 {
		return ErrWeakPassword
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			special = true
		}
	}
	if !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

func checkReuse(next string, pw domain.UserPassword) error {
	if cryptox.VerifyPassword(next, pw.PasswordHash) == nil {
		return ErrPasswordReused
	}
	if pw.PreviousHash != nil && cryptox.VerifyPassword(next, *pw.PreviousHash) == nil {
		return ErrPasswordReused
	}
	return nil
}

// passwordAge returns whole days since the last change and whether a change
// is required. The boundary day counts as overdue.
func passwordAge(changedAt, now time.Time) (int, bool) {
	days := int(now.Sub(changedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, days >= passwordMaxAgeDays
}

func mapUserNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
