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
	ErrGroupNotFound   = errors.New("group_not_found")
	ErrNotGroupOwner   = errors.New("not_group_owner")
	ErrNotGroupMember  = errors.New("not_group_member")
	ErrMemberNotFound  = errors.New("member_not_found")
	ErrOwnerImmutable  = errors.New("owner_cannot_be_removed")
	ErrMemberForbidden = errors.New("member_action_forbidden")
)

// GroupService owns groups and their membership rows.
type GroupService struct {
	Store store.Store
}

// Membership annotates a group with the caller's relationship to it.
type Membership struct {
	Accepted bool
	Active   bool
	IsOwner  bool
}

// GroupView is a group with the caller's membership annotation.
type GroupView struct {
	Group      domain.Group
	Membership Membership
}

// MemberView joins a membership row with the member's public user info.
type MemberView struct {
	Member domain.GroupMember
	User   domain.User
}

// KeyInfo describes the shared credential without exposing key material.
type KeyInfo struct {
	CredentialID string
	Vendor       domain.Vendor
	IsActive     bool
}

// OwnerInfo is the group owner's public identity.
type OwnerInfo struct {
	UserID   string
	Username string
	Email    string
}

// GroupDetail is the full group page: the group, its members, the shared
// key's metadata and the owner.
type GroupDetail struct {
	Group       domain.Group
	Members     []MemberView
	MemberCount int
	Key         KeyInfo
	Owner       OwnerInfo
}

// Create makes a new group around one of the caller's credentials. The group
// row, the owner's auto-accepted membership and the owner flag land in one
// transaction.
func (s *GroupService) Create(ctx context.Context, ownerID, name, credentialID string) (domain.Group, error) {
	log := slogx.FromContext(ctx)

	// 1. The shared credential must exist and belong to the caller.
	cred, err := s.Store.Credentials().GetCredentialByID(ctx, credentialID)
	if err != nil {
		return domain.Group{}, mapCredentialNotFound(err)
	}
	if cred.OwnerID != ownerID {
		return domain.Group{}, ErrNotCredentialOwner
	}

	now := time.Now().UTC()
	group := domain.Group{
		ID:           idx.New().String(),
		OwnerID:      ownerID,
		CredentialID: credentialID,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 2. Group, owner membership and owner flag are atomic.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Groups().CreateGroup(ctx, group); err != nil {
			return err
		}
		if err := tx.Members().CreateMember(ctx, domain.GroupMember{
			ID:        idx.New().String(),
			GroupID:   group.ID,
			UserID:    ownerID,
			Accepted:  true,
			Active:    true,
			Note:      "owner",
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return tx.Users().SetGroupOwner(ctx, ownerID, true)
	})
	if err != nil {
		log.Error("failed to create group", slog.String("owner_id", ownerID), slog.Any("error", err))
		return domain.Group{}, err
	}

	log.Info("group created",
		slog.String("group_id", group.ID),
		slog.String("owner_id", ownerID),
		slog.String("credential_id", credentialID),
	)
	return group, nil
}

// List returns the union of groups the caller owns and groups the caller is
// a member of, deduplicated, each annotated with the caller's membership.
func (s *GroupService) List(ctx context.Context, callerID string, includePending bool) ([]GroupView, error) {
	owned, err := s.Store.Groups().ListGroupsByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	joined, err := s.Store.Groups().ListGroupsByMember(ctx, callerID, includePending)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(owned)+len(joined))
	views := make([]GroupView, 0, len(owned)+len(joined))
	for _, g := range append(owned, joined...) {
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}

		view := GroupView{Group: g, Membership: Membership{IsOwner: g.OwnerID == callerID}}
		if m, err := s.Store.Members().GetMember(ctx, g.ID, callerID); err == nil {
			view.Membership.Accepted = m.Accepted
			view.Membership.Active = m.Active
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Detail returns the group page. Only the owner or an accepted active
// member may see it; a pending invitee cannot read the roster yet.
func (s *GroupService) Detail(ctx context.Context, callerID, groupID string) (GroupDetail, error) {
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return GroupDetail{}, err
	}

	if group.OwnerID != callerID {
		m, err := s.Store.Members().GetMember(ctx, groupID, callerID)
		if err != nil || !m.Accepted || !m.Active {
			return GroupDetail{}, ErrNotGroupMember
		}
	}

	members, err := s.Store.Members().ListMembers(ctx, groupID, true)
	if err != nil {
		return GroupDetail{}, err
	}

	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		user, err := s.Store.Users().GetUserByID(ctx, m.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return GroupDetail{}, err
		}
		views = append(views, MemberView{Member: m, User: user})
	}

	detail := GroupDetail{Group: group, Members: views, MemberCount: len(views)}

	// Key metadata only; the plaintext never leaves the owner's own
	// credential endpoints.
	if cred, err := s.Store.Credentials().GetCredentialByID(ctx, group.CredentialID); err == nil {
		detail.Key = KeyInfo{CredentialID: cred.ID, Vendor: cred.Vendor, IsActive: cred.IsActive}
	}
	if owner, err := s.Store.Users().GetUserByID(ctx, group.OwnerID); err == nil {
		detail.Owner = OwnerInfo{UserID: owner.ID, Username: owner.Username, Email: owner.Email}
	}

	return detail, nil
}

// Update applies a partial update: a new name, a different shared
// credential, or both. Owner only; a replacement credential must also
// belong to the owner.
func (s *GroupService) Update(ctx context.Context, callerID, groupID, name, credentialID string) (domain.Group, error) {
	group, err := s.ownedGroup(ctx, callerID, groupID)
	if err != nil {
		return domain.Group{}, err
	}

	if credentialID != "" && credentialID != group.CredentialID {
		cred, err := s.Store.Credentials().GetCredentialByID(ctx, credentialID)
		if err != nil {
			return domain.Group{}, mapCredentialNotFound(err)
		}
		if cred.OwnerID != callerID {
			return domain.Group{}, ErrNotCredentialOwner
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if name != "" && name != group.Name {
			if err := tx.Groups().UpdateGroupName(ctx, groupID, name); err != nil {
				return err
			}
		}
		if credentialID != "" && credentialID != group.CredentialID {
			if err := tx.Groups().UpdateGroupCredential(ctx, groupID, credentialID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Group{}, mapGroupNotFound(err)
	}
	return s.Store.Groups().GetGroupByID(ctx, groupID)
}

// Delete deactivates the group and every membership row in one transaction.
// Owner only.
func (s *GroupService) Delete(ctx context.Context, callerID, groupID string) error {
	log := slogx.FromContext(ctx)

	if _, err := s.ownedGroup(ctx, callerID, groupID); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Groups().SetGroupActive(ctx, groupID, false); err != nil {
			return err
		}
		return tx.Members().DeactivateMembersByGroup(ctx, groupID)
	})
	if err != nil {
		log.Error("failed to delete group", slog.String("group_id", groupID), slog.Any("error", err))
		return err
	}

	log.Info("group deleted", slog.String("group_id", groupID), slog.String("owner_id", callerID))
	return nil
}

// AddMember adds a user directly, auto-accepted. Owner only. An accepted and
// active member cannot be added twice; re-adding a removed or pending user
// reactivates that same row instead of inserting a duplicate.
func (s *GroupService) AddMember(ctx context.Context, callerID, groupID, userID, note string) (domain.GroupMember, error) {
	log := slogx.FromContext(ctx)

	if _, err := s.ownedGroup(ctx, callerID, groupID); err != nil {
		return domain.GroupMember{}, err
	}
	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		return domain.GroupMember{}, mapUserNotFound(err)
	}

	if m, err := s.Store.Members().GetMember(ctx, groupID, userID); err == nil {
		if m.Accepted && m.Active {
			return domain.GroupMember{}, ErrAlreadyMember
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.GroupMember{}, err
	}

	member, err := upsertMember(ctx, s.Store, groupID, userID, note)
	if err != nil {
		log.Error("failed to add member", slog.String("group_id", groupID), slog.Any("error", err))
		return domain.GroupMember{}, err
	}

	log.Info("member added",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
		slog.String("member_id", member.ID),
	)
	return member, nil
}

// UpdateMember rewrites a member's note and accepted flag. Owner only.
func (s *GroupService) UpdateMember(ctx context.Context, callerID, groupID, memberID string, accepted bool, note string) (domain.GroupMember, error) {
	if _, err := s.ownedGroup(ctx, callerID, groupID); err != nil {
		return domain.GroupMember{}, err
	}

	member, err := s.groupMember(ctx, groupID, memberID)
	if err != nil {
		return domain.GroupMember{}, err
	}

	member.Accepted = accepted
	member.Note = note
	if err := s.Store.Members().UpdateMember(ctx, member); err != nil {
		return domain.GroupMember{}, mapMemberNotFound(err)
	}
	return s.Store.Members().GetMemberByID(ctx, member.ID)
}

// RemoveMember deactivates a membership row. The owner can remove anyone but
// themselves; a member can remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, callerID, groupID, memberID string) error {
	log := slogx.FromContext(ctx)

	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	member, err := s.groupMember(ctx, groupID, memberID)
	if err != nil {
		return err
	}

	// The owner's membership row is permanent.
	if member.UserID == group.OwnerID {
		return ErrOwnerImmutable
	}
	if callerID != group.OwnerID && callerID != member.UserID {
		return ErrMemberForbidden
	}

	member.Active = false
	if err := s.Store.Members().UpdateMember(ctx, member); err != nil {
		return mapMemberNotFound(err)
	}

	log.Info("member removed",
		slog.String("group_id", groupID),
		slog.String("member_id", memberID),
		slog.String("removed_by", callerID),
	)
	return nil
}

// PendingMembers lists active but not yet accepted members. Owner only.
func (s *GroupService) PendingMembers(ctx context.Context, callerID, groupID string) ([]MemberView, error) {
	if _, err := s.ownedGroup(ctx, callerID, groupID); err != nil {
		return nil, err
	}

	members, err := s.Store.Members().ListPendingMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		user, err := s.Store.Users().GetUserByID(ctx, m.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		views = append(views, MemberView{Member: m, User: user})
	}
	return views, nil
}

// ApproveMember flips a pending member to accepted. Owner only. Approving an
// already-accepted member is a friendly no-op; the returned bool reports
// whether anything changed.
func (s *GroupService) ApproveMember(ctx context.Context, callerID, groupID, memberID string) (bool, error) {
	if _, err := s.ownedGroup(ctx, callerID, groupID); err != nil {
		return false, err
	}

	member, err := s.groupMember(ctx, groupID, memberID)
	if err != nil {
		return false, err
	}
	if member.Accepted {
		return false, nil
	}

	member.Accepted = true
	if err := s.Store.Members().UpdateMember(ctx, member); err != nil {
		return false, mapMemberNotFound(err)
	}

	slogx.FromContext(ctx).Info("member approved",
		slog.String("group_id", groupID),
		slog.String("member_id", memberID),
	)
	return true, nil
}

func (s *GroupService) activeGroup(ctx context.Context, groupID string) (domain.Group, error) {
	group, err := s.Store.Groups().GetGroupByID(ctx, groupID)
	if err != nil {
		return domain.Group{}, mapGroupNotFound(err)
	}
	if !group.IsActive {
		return domain.Group{}, ErrGroupNotFound
	}
	return group, nil
}

func (s *GroupService) ownedGroup(ctx context.Context, callerID, groupID string) (domain.Group, error) {
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if group.OwnerID != callerID {
		return domain.Group{}, ErrNotGroupOwner
	}
	return group, nil
}

func (s *GroupService) groupMember(ctx context.Context, groupID, memberID string) (domain.GroupMember, error) {
	member, err := s.Store.Members().GetMemberByID(ctx, memberID)
	if err != nil {
		return domain.GroupMember{}, mapMemberNotFound(err)
	}
	if member.GroupID != groupID {
		return domain.GroupMember{}, ErrMemberNotFound
	}
	return member, nil
}

// upsertMember is the idempotent membership write shared by direct adds and
// invitation acceptance: an existing (group, user) row is reactivated and
// accepted in place, keeping its id.
func upsertMember(ctx context.Context, st store.Store, groupID, userID, note string) (domain.GroupMember, error) {
	existing, err := st.Members().GetMember(ctx, groupID, userID)
	if err == nil {
		existing.Accepted = true
		existing.Active = true
		if note != "" {
			existing.Note = note
		}
		if err := st.Members().UpdateMember(ctx, existing); err != nil {
			return domain.GroupMember{}, err
		}
		return st.Members().GetMember(ctx, groupID, userID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.GroupMember{}, err
	}

	now := time.Now().UTC()
	member := domain.GroupMember{
		ID:        idx.New().String(),
		GroupID:   groupID,
		UserID:    userID,
		Accepted:  true,
		Active:    true,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.Members().CreateMember(ctx, member); err != nil {
		return domain.GroupMember{}, err
	}
	return member, nil
}

func mapGroupNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrGroupNotFound
	}
	return err
}

func mapMemberNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrMemberNotFound
	}
	return err
}
