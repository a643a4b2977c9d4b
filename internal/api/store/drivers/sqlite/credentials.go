package sqlite

import (
	"context"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
)

type credentialsRepo struct {
	q querier
}

const credentialColumns = `id, owner_id, vendor, encrypted_key, is_active, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Vendor, &c.EncryptedKey, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO credentials (id, owner_id, vendor, encrypted_key, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Vendor, c.EncryptedKey, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *credentialsRepo) GetCredentialByID(ctx context.Context, id string) (domain.Credential, error) {
	c, err := scanCredential(r.q.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id))
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *credentialsRepo) ListCredentialsByOwner(ctx context.Context, ownerID string) ([]domain.Credential, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE owner_id = ?
		ORDER BY updated_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *credentialsRepo) UpdateCredential(ctx context.Context, id string, vendor domain.Vendor, encryptedKey string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE credentials
		SET vendor = ?, encrypted_key = ?, updated_at = ?
		WHERE id = ?`,
		vendor, encryptedKey, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}

func (r *credentialsRepo) SetCredentialActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE credentials SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	return requireRow(res, err)
}

func (r *credentialsRepo) DeleteCredential(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	return requireRow(res, err)
}
