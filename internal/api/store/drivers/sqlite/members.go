package sqlite

import (
	"context"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type membersRepo struct {
	q querier
}

const memberColumns = `id, group_id, user_id, accepted, active, note, created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }) (domain.GroupMember, error) {
	var m domain.GroupMember
	err := row.Scan(
		&m.ID, &m.GroupID, &m.UserID, &m.Accepted, &m.Active, &m.Note,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (r *membersRepo) CreateMember(ctx context.Context, m domain.GroupMember) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, user_id, accepted, active, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.GroupID, m.UserID, m.Accepted, m.Active, m.Note, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *membersRepo) GetMemberByID(ctx context.Context, id string) (domain.GroupMember, error) {
	m, err := scanMember(r.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE id = ?`, id))
	if err != nil {
		return domain.GroupMember{}, mapNotFound(err)
	}
	return m, nil
}

func (r *membersRepo) GetMember(ctx context.Context, groupID, userID string) (domain.GroupMember, error) {
	m, err := scanMember(r.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID))
	if err != nil {
		return domain.GroupMember{}, mapNotFound(err)
	}
	return m, nil
}

func (r *membersRepo) UpdateMember(ctx context.Context, m domain.GroupMember) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE group_members
		SET accepted = ?, active = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		m.Accepted, m.Active, m.Note, time.Now().UTC(), m.ID,
	)
	return requireRow(res, err)
}

func (r *membersRepo) ListMembers(ctx context.Context, groupID string, activeOnly bool) ([]domain.GroupMember, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members WHERE group_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := r.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (r *membersRepo) ListPendingMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM group_members
		WHERE group_id = ? AND active = 1 AND accepted = 0
		ORDER BY created_at`, groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (r *membersRepo) DeactivateMembersByGroup(ctx context.Context, groupID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE group_members SET active = 0, updated_at = ? WHERE group_id = ?`,
		time.Now().UTC(), groupID,
	)
	return err
}

func collectMembers(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.GroupMember, error) {
	var members []domain.GroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
