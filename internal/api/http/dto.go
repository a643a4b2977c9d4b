package http

import (
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/service"
)

// Response payloads shared by the resource handlers. Services return domain
// structs; these decide what crosses the wire.

type userPayload struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Description  string    `json:"description,omitempty"`
	ProfileURL   string    `json:"profile_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsAdmin      bool      `json:"is_admin"`
	IsGroupOwner bool      `json:"is_group_owner"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func renderUser(u domain.User) userPayload {
	return userPayload{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		Description:  u.Description,
		ProfileURL:   u.ProfileURL,
		IsActive:     u.IsActive,
		IsAdmin:      u.IsAdmin,
		IsGroupOwner: u.IsGroupOwner,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func renderUsers(users []domain.User) []userPayload {
	out := make([]userPayload, 0, len(users))
	for _, u := range users {
		out = append(out, renderUser(u))
	}
	return out
}

type credentialPayload struct {
	ID        string    `json:"id"`
	Vendor    string    `json:"vendor"`
	Key       string    `json:"key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func renderCredential(v service.CredentialView) credentialPayload {
	return credentialPayload{
		ID:        v.ID,
		Vendor:    string(v.Vendor),
		Key:       v.Key,
		IsActive:  v.IsActive,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

type groupPayload struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	CredentialID string    `json:"credential_id"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func renderGroup(g domain.Group) groupPayload {
	return groupPayload{
		ID:           g.ID,
		OwnerID:      g.OwnerID,
		CredentialID: g.CredentialID,
		Name:         g.Name,
		IsActive:     g.IsActive,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

type groupViewPayload struct {
	groupPayload
	Accepted bool `json:"accepted"`
	Active   bool `json:"active"`
	IsOwner  bool `json:"is_owner"`
}

func renderGroupView(v service.GroupView) groupViewPayload {
	return groupViewPayload{
		groupPayload: renderGroup(v.Group),
		Accepted:     v.Membership.Accepted,
		Active:       v.Membership.Active,
		IsOwner:      v.Membership.IsOwner,
	}
}

type memberPayload struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Accepted  bool      `json:"accepted"`
	Active    bool      `json:"active"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func renderMember(m domain.GroupMember) memberPayload {
	return memberPayload{
		ID:        m.ID,
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		Accepted:  m.Accepted,
		Active:    m.Active,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type memberViewPayload struct {
	memberPayload
	Email    string `json:"email"`
	Username string `json:"username"`
}

func renderMemberViews(views []service.MemberView) []memberViewPayload {
	out := make([]memberViewPayload, 0, len(views))
	for _, v := range views {
		out = append(out, memberViewPayload{
			memberPayload: renderMember(v.Member),
			Email:         v.User.Email,
			Username:      v.User.Username,
		})
	}
	return out
}

type invitationPayload struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	InvitedBy string    `json:"invited_by"`
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func renderInvitation(inv domain.Invitation) invitationPayload {
	return invitationPayload{
		ID:        inv.ID,
		GroupID:   inv.GroupID,
		UserID:    inv.UserID,
		InvitedBy: inv.InvitedBy,
		Note:      inv.Note,
		Status:    string(inv.Status),
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

func renderInvitations(invs []domain.Invitation) []invitationPayload {
	out := make([]invitationPayload, 0, len(invs))
	for _, inv := range invs {
		out = append(out, renderInvitation(inv))
	}
	return out
}
