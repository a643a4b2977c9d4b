package sqlite

import (
	"context"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type invitationsRepo struct {
	q querier
}

const invitationColumns = `id, group_id, user_id, invited_by, note, status, created_at, updated_at`

func scanInvitation(row interface{ Scan(...any) error }) (domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.ID, &inv.GroupID, &inv.UserID, &inv.InvitedBy, &inv.Note,
		&inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO invitations (id, group_id, user_id, invited_by, note, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.GroupID, inv.UserID, inv.InvitedBy, inv.Note, inv.Status,
		inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) GetPendingInvitation(ctx context.Context, groupID, userID string) (domain.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE group_id = ? AND user_id = ? AND status = 'pending'`,
		groupID, userID))
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) ListInvitationsByUser(ctx context.Context, userID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	return r.list(ctx, `user_id`, userID, status)
}

func (r *invitationsRepo) ListInvitationsByGroup(ctx context.Context, groupID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	return r.list(ctx, `group_id`, groupID, status)
}

func (r *invitationsRepo) list(ctx context.Context, column, value string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE ` + column + ` = ?`
	args := []any{value}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *invitationsRepo) UpdateInvitationStatus(ctx context.Context, id string, status domain.InvitationStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}
