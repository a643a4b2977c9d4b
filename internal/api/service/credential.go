package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/domain"
	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/cryptox"
	"github.com/haneul-labs/keyshare/pkg/idx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

var (
	ErrUnknownVendor      = errors.New("unknown_vendor")
	ErrImplausibleKey     = errors.New("implausible_key_format")
	ErrCredentialNotFound = errors.New("credential_not_found")
	ErrNotCredentialOwner = errors.New("not_credential_owner")
	ErrCredentialInUse    = errors.New("credential_in_use")
)

// CredentialService holds vendor API keys in custody. Plaintext exists only
// in transit: the store sees ciphertext, listings see masks.
type CredentialService struct {
	Store store.Store
	Vault *cryptox.Vault
}

// CredentialView is a credential as exposed to its owner. Key carries the
// masked form in listings and the plaintext only on the owner detail path.
type CredentialView struct {
	ID        string
	Vendor    domain.Vendor
	Key       string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Create validates and encrypts a new vendor key.
func (s *CredentialService) Create(ctx context.Context, ownerID string, vendor domain.Vendor, key string) (CredentialView, error) {
	log := slogx.FromContext(ctx)

	// 1. Vendor allow-list, then per-vendor shape check.
	if !domain.ValidVendor(vendor) {
		return CredentialView{}, ErrUnknownVendor
	}
	if !domain.PlausibleKey(vendor, key) {
		return CredentialView{}, ErrImplausibleKey
	}

	// 2. Encrypt before anything touches the store.
	ciphertext, err := s.Vault.Encrypt(key)
	if err != nil {
		log.Error("failed to encrypt credential", slog.Any("error", err))
		return CredentialView{}, err
	}

	now := time.Now().UTC()
	cred := domain.Credential{
		ID:           idx.New().String(),
		OwnerID:      ownerID,
		Vendor:       vendor,
		EncryptedKey: ciphertext,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Credentials().CreateCredential(ctx, cred); err != nil {
		log.Error("failed to store credential", slog.Any("error", err))
		return CredentialView{}, err
	}

	log.Info("credential created",
		slog.String("credential_id", cred.ID),
		slog.String("owner_id", ownerID),
		slog.String("vendor", string(vendor)),
	)
	return CredentialView{
		ID:        cred.ID,
		Vendor:    cred.Vendor,
		Key:       domain.MaskKey(key),
		IsActive:  cred.IsActive,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}, nil
}

// List returns the owner's credentials with masked keys. A row whose
// ciphertext no longer decrypts is listed with an empty key rather than
// failing the whole listing.
func (s *CredentialService) List(ctx context.Context, ownerID string) ([]CredentialView, error) {
	log := slogx.FromContext(ctx)

	creds, err := s.Store.Credentials().ListCredentialsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, CredentialView{
			ID:        c.ID,
			Vendor:    c.Vendor,
			Key:       domain.MaskKey(s.decryptLenient(log, c)),
			IsActive:  c.IsActive,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return views, nil
}

// Get returns the decrypted credential. Owner only.
func (s *CredentialService) Get(ctx context.Context, callerID, id string) (CredentialView, error) {
	cred, err := s.ownedCredential(ctx, callerID, id)
	if err != nil {
		return CredentialView{}, err
	}

	plaintext, err := s.Vault.Decrypt(cred.EncryptedKey)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to decrypt credential",
			slog.String("credential_id", cred.ID), slog.Any("error", err))
		return CredentialView{}, err
	}

	return CredentialView{
		ID:        cred.ID,
		Vendor:    cred.Vendor,
		Key:       plaintext,
		IsActive:  cred.IsActive,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}, nil
}

// Update replaces any subset of vendor, key and active flag. When the vendor
// is omitted the stored one applies; a new key is re-validated against that
// vendor.
func (s *CredentialService) Update(ctx context.Context, callerID, id string, vendor domain.Vendor, key string, active *bool) (CredentialView, error) {
	log := slogx.FromContext(ctx)

	cred, err := s.ownedCredential(ctx, callerID, id)
	if err != nil {
		return CredentialView{}, err
	}

	if vendor == "" {
		vendor = cred.Vendor
	}
	if !domain.ValidVendor(vendor) {
		return CredentialView{}, ErrUnknownVendor
	}

	ciphertext := cred.EncryptedKey
	masked := ""
	if key != "" {
		if !domain.PlausibleKey(vendor, key) {
			return CredentialView{}, ErrImplausibleKey
		}
		if ciphertext, err = s.Vault.Encrypt(key); err != nil {
			log.Error("failed to encrypt credential", slog.Any("error", err))
			return CredentialView{}, err
		}
		masked = domain.MaskKey(key)
	} else {
		masked = domain.MaskKey(s.decryptLenient(log, cred))
	}

	isActive := cred.IsActive
	if active != nil {
		isActive = *active
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Credentials().UpdateCredential(ctx, id, vendor, ciphertext); err != nil {
			return err
		}
		if active != nil && *active != cred.IsActive {
			return tx.Credentials().SetCredentialActive(ctx, id, *active)
		}
		return nil
	})
	if err != nil {
		return CredentialView{}, mapCredentialNotFound(err)
	}

	log.Info("credential updated",
		slog.String("credential_id", id),
		slog.String("vendor", string(vendor)),
		slog.Bool("key_rotated", key != ""),
		slog.Bool("is_active", isActive),
	)
	return CredentialView{
		ID:        cred.ID,
		Vendor:    vendor,
		Key:       masked,
		IsActive:  isActive,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Delete removes the credential row entirely. Owner only. A credential
// still referenced by a group, even a deactivated one, cannot be removed;
// the group must be repointed first.
func (s *CredentialService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.ownedCredential(ctx, callerID, id); err != nil {
		return err
	}
	if n, err := s.Store.Groups().CountGroupsByCredential(ctx, id); err != nil {
		return err
	} else if n > 0 {
		return ErrCredentialInUse
	}
	if err := s.Store.Credentials().DeleteCredential(ctx, id); err != nil {
		return mapCredentialNotFound(err)
	}
	slogx.FromContext(ctx).Info("credential deleted", slog.String("credential_id", id))
	return nil
}

// Verify applies the vendor allow-list and shape check to a candidate key
// without storing anything.
func (s *CredentialService) Verify(ctx context.Context, vendor domain.Vendor, key string) error {
	if !domain.ValidVendor(vendor) {
		return ErrUnknownVendor
	}
	if !domain.PlausibleKey(vendor, key) {
		return ErrImplausibleKey
	}
	return nil
}

func (s *CredentialService) ownedCredential(ctx context.Context, callerID, id string) (domain.Credential, error) {
	cred, err := s.Store.Credentials().GetCredentialByID(ctx, id)
	if err != nil {
		return domain.Credential{}, mapCredentialNotFound(err)
	}
	if cred.OwnerID != callerID {
		return domain.Credential{}, ErrNotCredentialOwner
	}
	return cred, nil
}

// decryptLenient is the fail-closed read used by listings: decryption
// failures produce an empty plaintext and a log line, never an error.
func (s *CredentialService) decryptLenient(log *slog.Logger, c domain.Credential) string {
	plaintext, err := s.Vault.Decrypt(c.EncryptedKey)
	if err != nil {
		log.Error("failed to decrypt credential, masking as empty",
			slog.String("credential_id", c.ID), slog.Any("error", err))
		return ""
	}
	return plaintext
}

func mapCredentialNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCredentialNotFound
	}
	return err
}
