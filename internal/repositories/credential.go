package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/shared"
)

// CredentialRepository persists one encrypted [models.Credential] per user.
//
// Token values are encrypted with the injected [shared.Encryptor] before they
// touch the database and are only decrypted inside a live client session.
// Writes are last-writer-wins; see the package documentation for the
// multi-instance caveat.
type CredentialRepository struct {
	db  *sql.DB
	enc *shared.Encryptor
}

// NewCredentialRepository creates a new [CredentialRepository] with the given
// database connection and encryptor.
func NewCredentialRepository(db *sql.DB, enc *shared.Encryptor) *CredentialRepository {
	return &CredentialRepository{db: db, enc: enc}
}

// GetByUserID retrieves the credential for a user. Returns (nil, nil) when the
// user has no stored credential; absence is not an error.
func (r *CredentialRepository) GetByUserID(userID string) (*models.Credential, error) {
	query := `
		SELECT id, sequence, user_id, encrypted_access_token, encrypted_refresh_token, expires_at, scope, created_at, updated_at
		FROM credentials
		WHERE user_id = ?
	`

	var (
		id               string
		sequence         int
		uid              string
		encAccess        string
		encRefresh       string
		expiresAt        time.Time
		scope            string
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := r.db.QueryRow(query, userID).Scan(&id, &sequence, &uid, &encAccess, &encRefresh, &expiresAt, &scope, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	cred := models.NewCredential(sequence, uid, encAccess, encRefresh, expiresAt, scope)
	cred.SetID(id)
	cred.SetCreatedAt(createdAt)
	cred.SetUpdatedAt(updatedAt)
	return cred, nil
}

// CreateOrUpdate stores token material for a user, creating the credential row
// on first authorization and updating it in place afterwards.
//
// On create a missing refresh token is fatal: the very first authorization
// must always include one. On update the refresh token is replaced only when
// the payload carries a new one; access token, expiry, and scope always
// replace the prior values.
func (r *CredentialRepository) CreateOrUpdate(userID string, payload models.TokenPayload) (*models.Credential, error) {
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrInvalidCredentials)
	}

	expiresAt := time.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
	encAccess, err := r.enc.Encrypt(payload.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	existing, err := r.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.SetEncryptedAccessToken(encAccess)
		if payload.RefreshToken != "" {
			encRefresh, err := r.enc.Encrypt(payload.RefreshToken)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
			}
			existing.SetEncryptedRefreshToken(encRefresh)
		}
		existing.SetExpiresAt(expiresAt)
		existing.SetScope(payload.Scope)

		if err := r.save(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if payload.RefreshToken == "" {
		return nil, shared.ErrMissingRefreshToken
	}

	encRefresh, err := r.enc.Encrypt(payload.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	sequence, err := NextSequence(r.db, "credentials")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	cred := models.NewCredential(sequence, userID, encAccess, encRefresh, expiresAt, payload.Scope)
	cred.SetID(shared.GenerateID())

	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO credentials (id, sequence, user_id, encrypted_access_token, encrypted_refresh_token, expires_at, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, cred.ID(), sequence, userID, encAccess, encRefresh, expiresAt, payload.Scope, cred.CreatedAt(), cred.UpdatedAt())
	if err != nil {
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	return cred, nil
}

// UpdateAccessToken stores a refreshed access token when the provider issued
// no new refresh token. The stored refresh token is left untouched.
func (r *CredentialRepository) UpdateAccessToken(cred *models.Credential, newAccessToken string, newExpiresAt time.Time) error {
	encAccess, err := r.enc.Encrypt(newAccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	cred.SetEncryptedAccessToken(encAccess)
	cred.SetExpiresAt(newExpiresAt)
	return r.save(cred)
}

// UpdateTokens stores a refreshed access token together with a newly issued
// refresh token and scope.
func (r *CredentialRepository) UpdateTokens(cred *models.Credential, newAccessToken, newRefreshToken string, newExpiresAt time.Time, scope string) error {
	encAccess, err := r.enc.Encrypt(newAccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := r.enc.Encrypt(newRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	cred.SetEncryptedAccessToken(encAccess)
	cred.SetEncryptedRefreshToken(encRefresh)
	cred.SetExpiresAt(newExpiresAt)
	cred.SetScope(scope)
	return r.save(cred)
}

// Delete hard-deletes a user's credential. Used exclusively when the provider
// reports the refresh token as revoked; the user must re-authorize.
func (r *CredentialRepository) Delete(userID string) error {
	result, err := r.db.Exec("DELETE FROM credentials WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrCredentialNotFound, userID)
	}

	return nil
}

// DecryptTokens returns the credential's plaintext access and refresh tokens.
// Called once at client session construction; plaintext never re-enters storage.
func (r *CredentialRepository) DecryptTokens(cred *models.Credential) (accessToken, refreshToken string, err error) {
	accessToken, err = r.enc.Decrypt(cred.EncryptedAccessToken())
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err = r.enc.Decrypt(cred.EncryptedRefreshToken())
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (r *CredentialRepository) save(cred *models.Credential) error {
	now := time.Now().UTC()
	cred.SetUpdatedAt(now)

	query := `
		UPDATE credentials
		SET encrypted_access_token = ?, encrypted_refresh_token = ?, expires_at = ?, scope = ?, updated_at = ?
		WHERE user_id = ?
	`

	result, err := r.db.Exec(query, cred.EncryptedAccessToken(), cred.EncryptedRefreshToken(), cred.ExpiresAt(), cred.Scope(), now, cred.UserID())
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrCredentialNotFound, cred.UserID())
	}

	return nil
}
