package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contact-verifier/internal/resolver"
	"github.com/jackc/pgx/v5"
)

// CredentialRepository stores per-caller messaging-network session credentials.
// The engine treats the credential as inert data; it is produced by the
// account-linking flow outside this service.
type CredentialRepository struct {
	db *PostgresDB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *PostgresDB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Credential retrieves the stored credential for a caller
func (r *CredentialRepository) Credential(ctx context.Context, ownerID string) (resolver.Credential, error) {
	query := `
		SELECT session_string, api_id, api_hash
		FROM network_credentials
		WHERE owner_id = $1
	`

	var cred resolver.Credential
	err := r.db.Pool().QueryRow(ctx, query, ownerID).Scan(
		&cred.SessionString,
		&cred.APIID,
		&cred.APIHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resolver.Credential{}, resolver.ErrNoCredential
		}
		return resolver.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// Upsert stores or replaces the credential for a caller
func (r *CredentialRepository) Upsert(ctx context.Context, ownerID string, cred resolver.Credential) error {
	query := `
		INSERT INTO network_credentials (owner_id, session_string, api_id, api_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE
		SET session_string = EXCLUDED.session_string,
			api_id = EXCLUDED.api_id,
			api_hash = EXCLUDED.api_hash,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		ownerID,
		cred.SessionString,
		cred.APIID,
		cred.APIHash,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}
