package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

var _ CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo handles the per-project, per-service credential bags
type CredentialRepo struct {
	db *DB
}

func NewCredentialRepository(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

func (r *CredentialRepo) GetActiveCredential(projectID int64, service string) (*APICredential, error) {
	var cred APICredential
	var rawValues string
	err := r.db.QueryRow(`
		SELECT id, project_id, service, credentials, is_active, last_used_at, created_at, updated_at
		FROM api_credentials
		WHERE project_id = ? AND service = ? AND is_active = 1
	`, projectID, service).Scan(
		&cred.ID, &cred.ProjectID, &cred.Service, &rawValues,
		&cred.IsActive, &cred.LastUsedAt, &cred.CreatedAt, &cred.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active credential: %w", err)
	}

	if err := json.Unmarshal([]byte(rawValues), &cred.Values); err != nil {
		return nil, fmt.Errorf("failed to decode credential values: %w", err)
	}

	return &cred, nil
}

// UpsertCredential installs the values as the single active credential for
// (project, service). The previous active row is deactivated in the same
// transaction, keeping the partial unique index satisfied.
func (r *CredentialRepo) UpsertCredential(projectID int64, service string, values map[string]string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode credential values: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		UPDATE api_credentials
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE project_id = ? AND service = ? AND is_active = 1
	`, projectID, service)
	if err != nil {
		return fmt.Errorf("failed to deactivate previous credential: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO api_credentials (project_id, service, credentials, is_active)
		VALUES (?, ?, ?, 1)
	`, projectID, service, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential upsert: %w", err)
	}

	return nil
}

func (r *CredentialRepo) TouchCredential(id int64) error {
	_, err := r.db.Exec(`
		UPDATE api_credentials
		SET last_used_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)

	if err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}

	return nil
}
