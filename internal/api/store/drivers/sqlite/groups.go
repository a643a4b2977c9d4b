package sqlite

import (
	"context"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type groupsRepo struct {
	q querier
}

const groupColumns = `id, owner_id, credential_id, name, is_active, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID, &g.OwnerID, &g.CredentialID, &g.Name, &g.IsActive,
		&g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

func (r *groupsRepo) CreateGroup(ctx context.Context, g domain.Group) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO groups (id, owner_id, credential_id, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.CredentialID, g.Name, g.IsActive, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *groupsRepo) GetGroupByID(ctx context.Context, id string) (domain.Group, error) {
	g, err := scanGroup(r.q.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id))
	if err != nil {
		return domain.Group{}, mapNotFound(err)
	}
	return g, nil
}

func (r *groupsRepo) ListGroupsByOwner(ctx context.Context, ownerID string) ([]domain.Group, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE owner_id = ? AND is_active = 1
		ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (r *groupsRepo) ListGroupsByMember(ctx context.Context, userID string, includePending bool) ([]domain.Group, error) {
	query := `
		SELECT g.id, g.owner_id, g.credential_id, g.name, g.is_active, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ? AND m.active = 1 AND g.is_active = 1`
	if !includePending {
		query += ` AND m.accepted = 1`
	}
	query += ` ORDER BY g.created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (r *groupsRepo) UpdateGroupName(ctx context.Context, id, name string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE groups SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}

func (r *groupsRepo) UpdateGroupCredential(ctx context.Context, id, credentialID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE groups SET credential_id = ?, updated_at = ? WHERE id = ?`,
		credentialID, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}

func (r *groupsRepo) SetGroupActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE groups SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}

func (r *groupsRepo) CountGroupsByCredential(ctx context.Context, credentialID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups WHERE credential_id = ?`, credentialID,
	).Scan(&n)
	return n, err
}

func collectGroups(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.Group, error) {
	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
