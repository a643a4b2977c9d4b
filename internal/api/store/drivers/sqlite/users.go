package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, username, description, profile_url,
	is_active, is_admin, is_group_owner, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.Description, &u.ProfileURL,
		&u.IsActive, &u.IsAdmin, &u.IsGroupOwner, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, email, username, description, profile_url,
			is_active, is_admin, is_group_owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.Description, u.ProfileURL,
		u.IsActive, u.IsAdmin, u.IsGroupOwner, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *usersRepo) UpdateProfile(ctx context.Context, userID, username, description, profileURL string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET username = ?, description = ?, profile_url = ?, updated_at = ?
		WHERE id = ?`,
		username, description, profileURL, time.Now().UTC(), userID,
	)
	return requireRow(res, err)
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), userID,
	)
	return requireRow(res, err)
}

func (r *usersRepo) SetGroupOwner(ctx context.Context, userID string, owner bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET is_group_owner = ?, updated_at = ? WHERE id = ?`,
		owner, time.Now().UTC(), userID,
	)
	return requireRow(res, err)
}

func (r *usersRepo) SearchUsers(ctx context.Context, query, excludeUserID string, limit int) ([]domain.User, error) {
	pattern := "%" + query + "%"
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_active = 1
		  AND id != ?
		  AND (email LIKE ? OR username LIKE ?)
		ORDER BY email
		LIMIT ?`,
		excludeUserID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) GetPassword(ctx context.Context, userID string) (domain.UserPassword, error) {
	var p domain.UserPassword
	var prev sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, password_hash, previous_hash, changed_at
		FROM user_passwords WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.PasswordHash, &prev, &p.ChangedAt)
	if err != nil {
		return domain.UserPassword{}, mapNotFound(err)
	}
	p.PreviousHash = mapNullStringPtr(prev)
	return p, nil
}

func (r *usersRepo) CreatePassword(ctx context.Context, p domain.UserPassword) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_passwords (user_id, password_hash, previous_hash, changed_at)
		VALUES (?, ?, ?, ?)`,
		p.UserID, p.PasswordHash, mapOptionalString(p.PreviousHash), p.ChangedAt,
	)
	return err
}

func (r *usersRepo) UpdatePassword(ctx context.Context, p domain.UserPassword) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE user_passwords
		SET password_hash = ?, previous_hash = ?, changed_at = ?
		WHERE user_id = ?`,
		p.PasswordHash, mapOptionalString(p.PreviousHash), p.ChangedAt, p.UserID,
	)
	return requireRow(res, err)
}

func (r *usersRepo) AppendLoginRecord(ctx context.Context, rec domain.LoginRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_history (id, user_id, logged_in_at)
		VALUES (?, ?, ?)`,
		rec.ID, rec.UserID, rec.LoggedInAt,
	)
	return err
}

func (r *usersRepo) ListLoginRecords(ctx context.Context, userID string, limit int) ([]domain.LoginRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, logged_in_at
		FROM login_history
		WHERE user_id = ?
		ORDER BY logged_in_at DESC
		LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.LoginRecord
	for rows.Next() {
		var rec domain.LoginRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.LoggedInAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
