package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")
	outsider := env.activeUser(t, "outsider@example.com")

	group := env.groupFor(t, owner.ID, "research")

	t.Run("only the owner invites", func(t *testing.T) {
		_, err := env.invitations.Invite(ctx, outsider.ID, group.ID, member.ID, "")
		require.ErrorIs(t, err, ErrNotGroupOwner)
	})

	t.Run("self-invite rejected", func(t *testing.T) {
		_, err := env.invitations.Invite(ctx, owner.ID, group.ID, owner.ID, "")
		require.ErrorIs(t, err, ErrSelfInvite)
	})

	t.Run("active member rejected", func(t *testing.T) {
		_, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "")
		require.NoError(t, err)
		_, err = env.invitations.Invite(ctx, owner.ID, group.ID, member.ID, "")
		require.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("duplicate pending invitation is returned, not recreated", func(t *testing.T) {
		first, err := env.invitations.Invite(ctx, owner.ID, group.ID, outsider.ID, "join us")
		require.NoError(t, err)
		require.True(t, first.Created)

		second, err := env.invitations.Invite(ctx, owner.ID, group.ID, outsider.ID, "join us again")
		require.NoError(t, err)
		require.False(t, second.Created)
		require.Equal(t, first.Invitation.ID, second.Invitation.ID)
	})
}

func TestInvitationAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	invitee := env.activeUser(t, "invitee@example.com")
	outsider := env.activeUser(t, "outsider@example.com")

	group := env.groupFor(t, owner.ID, "research")
	res, err := env.invitations.Invite(ctx, owner.ID, group.ID, invitee.ID, "welcome")
	require.NoError(t, err)

	t.Run("only the invited user may accept", func(t *testing.T) {
		_, err := env.invitations.Accept(ctx, outsider.ID, res.Invitation.ID)
		require.ErrorIs(t, err, ErrInvitationForbidden)
	})

	t.Run("accept flips status and creates the membership atomically", func(t *testing.T) {
		inv, err := env.invitations.Accept(ctx, invitee.ID, res.Invitation.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationAccepted, inv.Status)

		m, err := env.invitations.Store.Members().GetMember(ctx, group.ID, invitee.ID)
		require.NoError(t, err)
		require.True(t, m.Accepted)
		require.True(t, m.Active)
	})

	t.Run("double accept is an idempotent no-op", func(t *testing.T) {
		inv, err := env.invitations.Accept(ctx, invitee.ID, res.Invitation.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationAccepted, inv.Status)

		members, err := env.invitations.Store.Members().ListMembers(ctx, group.ID, false)
		require.NoError(t, err)
		require.Len(t, members, 2) // owner + invitee
	})

	t.Run("declining after accept is rejected", func(t *testing.T) {
		_, err := env.invitations.Decline(ctx, invitee.ID, res.Invitation.ID)
		require.ErrorIs(t, err, ErrInvitationClosed)
	})
}

func TestInvitationDeclineAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	invitee := env.activeUser(t, "invitee@example.com")
	outsider := env.activeUser(t, "outsider@example.com")

	group := env.groupFor(t, owner.ID, "research")

	t.Run("decline", func(t *testing.T) {
		res, err := env.invitations.Invite(ctx, owner.ID, group.ID, invitee.ID, "")
		require.NoError(t, err)

		inv, err := env.invitations.Decline(ctx, invitee.ID, res.Invitation.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationDeclined, inv.Status)

		// A repeated decline is a no-op.
		inv, err = env.invitations.Decline(ctx, invitee.ID, res.Invitation.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationDeclined, inv.Status)

		// No membership row appears from a decline.
		_, err = env.invitations.Store.Members().GetMember(ctx, group.ID, invitee.ID)
		require.Error(t, err)
	})

	t.Run("cancel is inviter only", func(t *testing.T) {
		res, err := env.invitations.Invite(ctx, owner.ID, group.ID, outsider.ID, "")
		require.NoError(t, err)

		// Neither the invited user nor an unrelated account may cancel.
		_, err = env.invitations.Cancel(ctx, outsider.ID, res.Invitation.ID)
		require.ErrorIs(t, err, ErrInvitationForbidden)
		_, err = env.invitations.Cancel(ctx, invitee.ID, res.Invitation.ID)
		require.ErrorIs(t, err, ErrInvitationForbidden)

		inv, err := env.invitations.Cancel(ctx, owner.ID, res.Invitation.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationCanceled, inv.Status)
	})
}

func TestInvitationListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	invitee := env.activeUser(t, "invitee@example.com")
	other := env.activeUser(t, "other@example.com")

	group := env.groupFor(t, owner.ID, "research")

	resA, err := env.invitations.Invite(ctx, owner.ID, group.ID, invitee.ID, "")
	require.NoError(t, err)
	_, err = env.invitations.Invite(ctx, owner.ID, group.ID, other.ID, "")
	require.NoError(t, err)
	_, err = env.invitations.Decline(ctx, invitee.ID, resA.Invitation.ID)
	require.NoError(t, err)

	t.Run("by user with status filter", func(t *testing.T) {
		all, err := env.invitations.ListByUser(ctx, invitee.ID, "")
		require.NoError(t, err)
		require.Len(t, all, 1)

		pending, err := env.invitations.ListByUser(ctx, invitee.ID, domain.InvitationPending)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("by group is owner-only", func(t *testing.T) {
		_, err := env.invitations.ListByGroup(ctx, invitee.ID, group.ID, "")
		require.ErrorIs(t, err, ErrNotGroupOwner)

		all, err := env.invitations.ListByGroup(ctx, owner.ID, group.ID, "")
		require.NoError(t, err)
		require.Len(t, all, 2)

		pending, err := env.invitations.ListByGroup(ctx, owner.ID, group.ID, domain.InvitationPending)
		require.NoError(t, err)
		require.Len(t, pending, 1)
	})
}
