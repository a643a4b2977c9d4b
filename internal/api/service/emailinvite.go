package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/cryptox"
	"github.com/haneul-labs/keyshare/pkg/idx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

var (
	ErrInviteEmailMismatch = errors.New("invitation_bound_to_other_email")
)

const inviteTokenTTL = 7 * 24 * time.Hour

// EmailInviteService runs the token-based invitation flow for addresses that
// may not have an account yet. One live token exists per (email, group);
// re-inviting the same address overwrites the previous token.
type EmailInviteService struct {
	Store  store.Store
	Mailer Mailer
}

// EmailInvite describes a live token-backed invitation.
type EmailInvite struct {
	Email     string
	GroupID   string
	GroupName string
	InvitedBy string
	ExpiresAt time.Time
}

// Invite issues (or reissues) a 7-day invitation token for an email address
// and mails the link. Owner only. Returns the email delivery status.
func (s *EmailInviteService) Invite(ctx context.Context, inviterID, groupID, email string) (string, error) {
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidCredentials
	}

	// 1. Only the group owner can invite.
	group, err := s.Store.Groups().GetGroupByID(ctx, groupID)
	if err != nil {
		return "", mapGroupNotFound(err)
	}
	if !group.IsActive {
		return "", ErrGroupNotFound
	}
	if group.OwnerID != inviterID {
		return "", ErrNotGroupOwner
	}

	inviter, err := s.Store.Users().GetUserByID(ctx, inviterID)
	if err != nil {
		return "", mapUserNotFound(err)
	}

	// 2. Mint the token; a previous token for (email, group) is replaced.
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return "", err
	}

	now := time.Now().UTC()
	row := domain.VerificationToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(token),
		Type:      domain.TokenGroupInvitation,
		GroupID:   &groupID,
		Email:     &email,
		InvitedBy: &inviterID,
		ExpiresAt: now.Add(inviteTokenTTL),
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if old, err := tx.Tokens().GetTokenByEmailGroup(ctx, email, groupID); err == nil {
			if err := tx.Tokens().DeleteToken(ctx, old.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Tokens().CreateToken(ctx, row)
	})
	if err != nil {
		log.Error("failed to store invitation token", slog.String("group_id", groupID), slog.Any("error", err))
		return "", err
	}

	// 3. Deliver best-effort.
	emailStatus := EmailSent
	if err := s.Mailer.SendGroupInvitation(ctx, email, group.Name, inviter.Email, token); err != nil {
		emailStatus = EmailFailed
	}

	log.Info("email invitation issued",
		slog.String("group_id", groupID),
		slog.String("email", email),
		slog.String("email_status", emailStatus),
	)
	return emailStatus, nil
}

// Verify resolves a token to its invitation details without consuming it.
// Expired tokens are evicted on sight.
func (s *EmailInviteService) Verify(ctx context.Context, token string) (EmailInvite, error) {
	row, err := s.liveToken(ctx, token)
	if err != nil {
		return EmailInvite{}, err
	}

	invite := EmailInvite{
		Email:     *row.Email,
		GroupID:   *row.GroupID,
		ExpiresAt: row.ExpiresAt,
	}
	if row.InvitedBy != nil {
		invite.InvitedBy = *row.InvitedBy
	}
	if group, err := s.Store.Groups().GetGroupByID(ctx, *row.GroupID); err == nil {
		invite.GroupName = group.Name
	}
	return invite, nil
}

// Accept consumes a token on behalf of a logged-in account. The account's
// email must match the address the token was issued for; a mismatch is a
// hard authorization failure. Membership upsert and token burn are atomic.
func (s *EmailInviteService) Accept(ctx context.Context, callerID, token string) (domain.GroupMember, error) {
	log := slogx.FromContext(ctx)

	row, err := s.liveToken(ctx, token)
	if err != nil {
		return domain.GroupMember{}, err
	}

	caller, err := s.Store.Users().GetUserByID(ctx, callerID)
	if err != nil {
		return domain.GroupMember{}, mapUserNotFound(err)
	}
	if !strings.EqualFold(caller.Email, *row.Email) {
		log.Warn("invitation accept attempted with mismatched email",
			slog.String("user_id", callerID),
			slog.String("group_id", *row.GroupID),
		)
		return domain.GroupMember{}, ErrInviteEmailMismatch
	}

	group, err := s.Store.Groups().GetGroupByID(ctx, *row.GroupID)
	if err != nil {
		return domain.GroupMember{}, mapGroupNotFound(err)
	}
	if !group.IsActive {
		return domain.GroupMember{}, ErrGroupNotFound
	}

	var member domain.GroupMember
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		member, err = upsertMember(ctx, tx, group.ID, callerID, "")
		if err != nil {
			return err
		}
		return tx.Tokens().DeleteToken(ctx, row.ID)
	})
	if err != nil {
		log.Error("failed to accept email invitation", slog.String("group_id", group.ID), slog.Any("error", err))
		return domain.GroupMember{}, err
	}

	log.Info("email invitation accepted",
		slog.String("group_id", group.ID),
		slog.String("user_id", callerID),
	)
	return member, nil
}

func (s *EmailInviteService) liveToken(ctx context.Context, token string) (domain.VerificationToken, error) {
	log := slogx.FromContext(ctx)

	row, err := s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.VerificationToken{}, ErrTokenNotFound
		}
		return domain.VerificationToken{}, err
	}
	if row.Type != domain.TokenGroupInvitation || row.Email == nil || row.GroupID == nil {
		return domain.VerificationToken{}, ErrTokenNotFound
	}
	if row.Expired(time.Now().UTC()) {
		if err := s.Store.Tokens().DeleteToken(ctx, row.ID); err != nil {
			log.Warn("failed to evict expired invitation token", slog.Any("error", err))
		}
		return domain.VerificationToken{}, ErrTokenExpired
	}
	return row, nil
}
