package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

func TestGroupCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")

	group := env.groupFor(t, owner.ID, "research")

	t.Run("owner gets an accepted membership row", func(t *testing.T) {
		m, err := env.groups.Store.Members().GetMember(ctx, group.ID, owner.ID)
		require.NoError(t, err)
		require.True(t, m.Accepted)
		require.True(t, m.Active)
	})

	t.Run("owner flag is set", func(t *testing.T) {
		u, err := env.identity.GetUser(ctx, owner.ID)
		require.NoError(t, err)
		require.True(t, u.IsGroupOwner)
	})

	t.Run("credential must belong to the caller", func(t *testing.T) {
		other := env.activeUser(t, "other@example.com")
		_, err := env.groups.Create(ctx, other.ID, "stolen", group.CredentialID)
		require.ErrorIs(t, err, ErrNotCredentialOwner)
	})
}

func TestGroupList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")

	owned := env.groupFor(t, owner.ID, "owned")
	joined := env.groupFor(t, member.ID, "joined")
	_, err := env.groups.AddMember(ctx, member.ID, joined.ID, owner.ID, "")
	require.NoError(t, err)

	views, err := env.groups.List(ctx, owner.ID, false)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]GroupView{}
	for _, v := range views {
		byID[v.Group.ID] = v
	}
	require.True(t, byID[owned.ID].Membership.IsOwner)
	require.False(t, byID[joined.ID].Membership.IsOwner)
	require.True(t, byID[joined.ID].Membership.Accepted)
}

func TestGroupDetailGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")
	outsider := env.activeUser(t, "outsider@example.com")

	group := env.groupFor(t, owner.ID, "research")
	gm, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "welcome")
	require.NoError(t, err)

	detail, err := env.groups.Detail(ctx, owner.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, 2, detail.MemberCount)
	require.Equal(t, domain.VendorOpenAI, detail.Key.Vendor)
	require.Equal(t, group.CredentialID, detail.Key.CredentialID)
	require.Equal(t, "owner@example.com", detail.Owner.Email)

	_, err = env.groups.Detail(ctx, member.ID, group.ID)
	require.NoError(t, err)

	_, err = env.groups.Detail(ctx, outsider.ID, group.ID)
	require.ErrorIs(t, err, ErrNotGroupMember)

	// A member whose acceptance has been revoked is pending again and
	// cannot read the roster.
	_, err = env.groups.UpdateMember(ctx, owner.ID, group.ID, gm.ID, false, "")
	require.NoError(t, err)
	_, err = env.groups.Detail(ctx, member.ID, group.ID)
	require.ErrorIs(t, err, ErrNotGroupMember)
}

func TestGroupUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")

	group := env.groupFor(t, owner.ID, "before")
	_, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "")
	require.NoError(t, err)

	t.Run("rename is owner-only", func(t *testing.T) {
		_, err := env.groups.Update(ctx, member.ID, group.ID, "nope", "")
		require.ErrorIs(t, err, ErrNotGroupOwner)

		renamed, err := env.groups.Update(ctx, owner.ID, group.ID, "after", "")
		require.NoError(t, err)
		require.Equal(t, "after", renamed.Name)
	})

	t.Run("credential swap must stay with the owner", func(t *testing.T) {
		theirs, err := env.credentials.Create(ctx, member.ID, domain.VendorAnthropic, "api-key-0123456789abcdefghij")
		require.NoError(t, err)

		_, err = env.groups.Update(ctx, owner.ID, group.ID, "", theirs.ID)
		require.ErrorIs(t, err, ErrNotCredentialOwner)

		mine, err := env.credentials.Create(ctx, owner.ID, domain.VendorAnthropic, "api-key-0123456789abcdefghij")
		require.NoError(t, err)

		updated, err := env.groups.Update(ctx, owner.ID, group.ID, "", mine.ID)
		require.NoError(t, err)
		require.Equal(t, mine.ID, updated.CredentialID)
	})

	t.Run("delete deactivates group and memberships together", func(t *testing.T) {
		require.ErrorIs(t, env.groups.Delete(ctx, member.ID, group.ID), ErrNotGroupOwner)
		require.NoError(t, env.groups.Delete(ctx, owner.ID, group.ID))

		_, err := env.groups.Detail(ctx, owner.ID, group.ID)
		require.ErrorIs(t, err, ErrGroupNotFound)

		m, err := env.groups.Store.Members().GetMember(ctx, group.ID, member.ID)
		require.NoError(t, err)
		require.False(t, m.Active)
	})
}

func TestAddMemberIsIdempotentUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")

	group := env.groupFor(t, owner.ID, "research")

	first, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "hi")
	require.NoError(t, err)

	// An accepted and active member cannot be added twice.
	_, err = env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "hi")
	require.ErrorIs(t, err, ErrAlreadyMember)

	// Remove, then re-add. The original row comes back instead of a duplicate.
	require.NoError(t, env.groups.RemoveMember(ctx, owner.ID, group.ID, first.ID))

	second, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "again")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.Active)
	require.True(t, second.Accepted)

	members, err := env.groups.Store.Members().ListMembers(ctx, group.ID, false)
	require.NoError(t, err)
	require.Len(t, members, 2) // owner + member, no duplicate rows
}

func TestRemoveMemberRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")
	outsider := env.activeUser(t, "outsider@example.com")

	group := env.groupFor(t, owner.ID, "research")
	m, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "")
	require.NoError(t, err)

	t.Run("the owner row cannot be removed", func(t *testing.T) {
		ownerRow, err := env.groups.Store.Members().GetMember(ctx, group.ID, owner.ID)
		require.NoError(t, err)
		require.ErrorIs(t, env.groups.RemoveMember(ctx, owner.ID, group.ID, ownerRow.ID), ErrOwnerImmutable)
	})

	t.Run("strangers cannot remove members", func(t *testing.T) {
		require.ErrorIs(t, env.groups.RemoveMember(ctx, outsider.ID, group.ID, m.ID), ErrMemberForbidden)
	})

	t.Run("members can remove themselves", func(t *testing.T) {
		require.NoError(t, env.groups.RemoveMember(ctx, member.ID, group.ID, m.ID))
		row, err := env.groups.Store.Members().GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		require.False(t, row.Active)
	})
}

func TestPendingMembersAndApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.activeUser(t, "owner@example.com")
	member := env.activeUser(t, "member@example.com")

	group := env.groupFor(t, owner.ID, "research")

	// Put the member into a pending state via an owner edit.
	m, err := env.groups.AddMember(ctx, owner.ID, group.ID, member.ID, "")
	require.NoError(t, err)
	_, err = env.groups.UpdateMember(ctx, owner.ID, group.ID, m.ID, false, "awaiting review")
	require.NoError(t, err)

	pending, err := env.groups.PendingMembers(ctx, owner.ID, group.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, member.ID, pending[0].User.ID)

	_, err = env.groups.PendingMembers(ctx, member.ID, group.ID)
	require.ErrorIs(t, err, ErrNotGroupOwner)

	changed, err := env.groups.ApproveMember(ctx, owner.ID, group.ID, m.ID)
	require.NoError(t, err)
	require.True(t, changed)

	// Approving again is a friendly no-op.
	changed, err = env.groups.ApproveMember(ctx, owner.ID, group.ID, m.ID)
	require.NoError(t, err)
	require.False(t, changed)
}
