package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/idx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

var (
	ErrInvitationNotFound  = errors.New("invitation_not_found")
	ErrInvitationForbidden = errors.New("invitation_action_forbidden")
	ErrInvitationClosed    = errors.New("invitation_already_closed")
	ErrSelfInvite          = errors.New("cannot_invite_self")
	ErrAlreadyMember       = errors.New("already_a_member")
)

// InvitationService runs the row-based invitation flow for registered users.
// Pending rows transition exactly once; accepted, declined and canceled are
// terminal. Repeating the action that produced the current terminal state is
// an idempotent no-op; any other action on a closed invitation is rejected.
type InvitationService struct {
	Store store.Store
}

// InviteResult reports the invitation plus whether this call created it.
// Created=false means a pending invitation already existed.
type InviteResult struct {
	Invitation domain.Invitation
	Created    bool
}

// Invite creates a pending invitation from the group owner to a registered
// user.
func (s *InvitationService) Invite(ctx context.Context, inviterID, groupID, userID, note string) (InviteResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Only the group owner can invite.
	group, err := s.Store.Groups().GetGroupByID(ctx, groupID)
	if err != nil {
		return InviteResult{}, mapGroupNotFound(err)
	}
	if !group.IsActive {
		return InviteResult{}, ErrGroupNotFound
	}
	if group.OwnerID != inviterID {
		return InviteResult{}, ErrNotGroupOwner
	}

	// 2. The target must exist and must not be the inviter.
	if userID == inviterID {
		return InviteResult{}, ErrSelfInvite
	}
	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		return InviteResult{}, mapUserNotFound(err)
	}

	// 3. An active accepted member needs no invitation.
	if m, err := s.Store.Members().GetMember(ctx, groupID, userID); err == nil {
		if m.Active && m.Accepted {
			return InviteResult{}, ErrAlreadyMember
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return InviteResult{}, err
	}

	// 4. A duplicate pending invitation is returned, not recreated.
	if existing, err := s.Store.Invitations().GetPendingInvitation(ctx, groupID, userID); err == nil {
		return InviteResult{Invitation: existing, Created: false}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return InviteResult{}, err
	}

	now := time.Now().UTC()
	inv := domain.Invitation{
		ID:        idx.New().String(),
		GroupID:   groupID,
		UserID:    userID,
		InvitedBy: inviterID,
		Note:      note,
		Status:    domain.InvitationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		log.Error("failed to create invitation", slog.String("group_id", groupID), slog.Any("error", err))
		return InviteResult{}, err
	}

	log.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
		slog.String("invited_by", inviterID),
	)
	return InviteResult{Invitation: inv, Created: true}, nil
}

// Accept flips a pending invitation to accepted and upserts the membership
// row, both in one transaction. Only the invited user may accept. A second
// accept is a no-op; accepting a declined or canceled invitation is rejected.
func (s *InvitationService) Accept(ctx context.Context, callerID, invitationID string) (domain.Invitation, error) {
	log := slogx.FromContext(ctx)

	inv, err := s.invitationFor(ctx, callerID, invitationID, false)
	if err != nil {
		return domain.Invitation{}, err
	}
	if inv.Status == domain.InvitationAccepted {
		return inv, nil
	}
	if inv.Status.Terminal() {
		return domain.Invitation{}, ErrInvitationClosed
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Invitations().UpdateInvitationStatus(ctx, inv.ID, domain.InvitationAccepted); err != nil {
			return err
		}
		_, err := upsertMember(ctx, tx, inv.GroupID, inv.UserID, inv.Note)
		return err
	})
	if err != nil {
		log.Error("failed to accept invitation", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return domain.Invitation{}, err
	}

	inv.Status = domain.InvitationAccepted
	log.Info("invitation accepted",
		slog.String("invitation_id", inv.ID),
		slog.String("group_id", inv.GroupID),
		slog.String("user_id", inv.UserID),
	)
	return inv, nil
}

// Decline flips a pending invitation to declined. Only the invited user may
// decline; a second decline is a no-op.
func (s *InvitationService) Decline(ctx context.Context, callerID, invitationID string) (domain.Invitation, error) {
	return s.close(ctx, callerID, invitationID, domain.InvitationDeclined, false)
}

// Cancel flips a pending invitation to canceled. Only the inviter may
// cancel; a second cancel is a no-op.
func (s *InvitationService) Cancel(ctx context.Context, callerID, invitationID string) (domain.Invitation, error) {
	return s.close(ctx, callerID, invitationID, domain.InvitationCanceled, true)
}

// ListByUser returns invitations addressed to the caller, optionally
// filtered by status.
func (s *InvitationService) ListByUser(ctx context.Context, userID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	return s.Store.Invitations().ListInvitationsByUser(ctx, userID, status)
}

// ListByGroup returns a group's invitations. Owner only.
func (s *InvitationService) ListByGroup(ctx context.Context, callerID, groupID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	group, err := s.Store.Groups().GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, mapGroupNotFound(err)
	}
	if group.OwnerID != callerID {
		return nil, ErrNotGroupOwner
	}
	return s.Store.Invitations().ListInvitationsByGroup(ctx, groupID, status)
}

func (s *InvitationService) close(ctx context.Context, callerID, invitationID string, to domain.InvitationStatus, byInviter bool) (domain.Invitation, error) {
	log := slogx.FromContext(ctx)

	inv, err := s.invitationFor(ctx, callerID, invitationID, byInviter)
	if err != nil {
		return domain.Invitation{}, err
	}
	if inv.Status == to {
		return inv, nil
	}
	if inv.Status.Terminal() {
		return domain.Invitation{}, ErrInvitationClosed
	}

	if err := s.Store.Invitations().UpdateInvitationStatus(ctx, inv.ID, to); err != nil {
		log.Error("failed to update invitation", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return domain.Invitation{}, err
	}

	inv.Status = to
	log.Info("invitation closed",
		slog.String("invitation_id", inv.ID),
		slog.String("status", string(to)),
		slog.String("by", callerID),
	)
	return inv, nil
}

// invitationFor resolves an invitation and checks the caller's standing:
// the invited user for accept/decline, the inviter for cancel.
func (s *InvitationService) invitationFor(ctx context.Context, callerID, invitationID string, byInviter bool) (domain.Invitation, error) {
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrInvitationNotFound
		}
		return domain.Invitation{}, err
	}

	if byInviter {
		if callerID != inv.InvitedBy {
			return domain.Invitation{}, ErrInvitationForbidden
		}
		return inv, nil
	}

	if inv.UserID != callerID {
		return domain.Invitation{}, ErrInvitationForbidden
	}
	return inv, nil
}
