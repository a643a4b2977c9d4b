package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type tokensRepo struct {
	q querier
}

const tokenColumns = `id, token_hash, token_type, user_id, group_id, email, invited_by, expires_at, created_at`

func scanToken(row interface{ Scan(...any) error }) (domain.VerificationToken, error) {
	var t domain.VerificationToken
	var userID, groupID, email, invitedBy sql.NullString
	err := row.Scan(
		&t.ID, &t.TokenHash, &t.Type, &userID, &groupID, &email, &invitedBy,
		&t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return domain.VerificationToken{}, err
	}
	t.UserID = mapNullStringPtr(userID)
	t.GroupID = mapNullStringPtr(groupID)
	t.Email = mapNullStringPtr(email)
	t.InvitedBy = mapNullStringPtr(invitedBy)
	return t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.VerificationToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO verification_tokens (id, token_hash, token_type, user_id, group_id, email, invited_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.Type,
		mapOptionalString(t.UserID), mapOptionalString(t.GroupID),
		mapOptionalString(t.Email), mapOptionalString(t.InvitedBy),
		t.ExpiresAt, t.CreatedAt,
	)
	return err
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (domain.VerificationToken, error) {
	t, err := scanToken(r.q.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM verification_tokens WHERE token_hash = ?`, hash))
	if err != nil {
		return domain.VerificationToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) GetTokenByEmailGroup(ctx context.Context, email, groupID string) (domain.VerificationToken, error) {
	t, err := scanToken(r.q.QueryRowContext(ctx, `
		SELECT `+tokenColumns+`
		FROM verification_tokens
		WHERE token_type = 'group_invitation' AND email = ? AND group_id = ?`,
		email, groupID))
	if err != nil {
		return domain.VerificationToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM verification_tokens WHERE id = ?`, id)
	return requireRow(res, err)
}

func (r *tokensRepo) DeleteTokensForUser(ctx context.Context, userID string, typ domain.TokenType) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE user_id = ? AND token_type = ?`,
		userID, typ,
	)
	return err
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE expires_at < ?`, now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
