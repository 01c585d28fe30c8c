package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PhoneRecordRepository handles phone record persistence
type PhoneRecordRepository struct {
	db *PostgresDB
}

// NewPhoneRecordRepository creates a new phone record repository
func NewPhoneRecordRepository(db *PostgresDB) *PhoneRecordRepository {
	return &PhoneRecordRepository{db: db}
}

const phoneRecordColumns = `id, owner_id, phone, checked, is_found, username, first_name, last_name, error, created_at, updated_at`

// BatchCreate inserts new phone records for a caller in a single transaction.
// Duplicate phones for the same owner are skipped, not errors; the returned
// slice contains only the records that were actually inserted.
func (r *PhoneRecordRepository) BatchCreate(ctx context.Context, ownerID string, phones []string) ([]*models.PhoneRecord, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO phone_records (id, owner_id, phone, checked, is_found, created_at, updated_at)
		VALUES ($1, $2, $3, false, false, $4, $4)
		ON CONFLICT (owner_id, phone) DO NOTHING
		RETURNING id
	`

	now := time.Now()
	created := make([]*models.PhoneRecord, 0, len(phones))
	for _, phone := range phones {
		record := &models.PhoneRecord{
			ID:        uuid.New().String(),
			OwnerID:   ownerID,
			Phone:     phone,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var insertedID string
		err := tx.QueryRow(ctx, query, record.ID, ownerID, phone, now).Scan(&insertedID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // duplicate phone for this owner
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert phone record: %w", err)
		}
		created = append(created, record)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit phone records: %w", err)
	}

	return created, nil
}

// GetByID retrieves a phone record by ID
func (r *PhoneRecordRepository) GetByID(ctx context.Context, id string) (*models.PhoneRecord, error) {
	query := `SELECT ` + phoneRecordColumns + ` FROM phone_records WHERE id = $1`

	record, err := scanPhoneRecord(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phone record not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get phone record: %w", err)
	}

	return record, nil
}

// ListByOwner retrieves all phone records for a caller, newest first
func (r *PhoneRecordRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.PhoneRecord, error) {
	query := `
		SELECT ` + phoneRecordColumns + `
		FROM phone_records
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone records: %w", err)
	}
	defer rows.Close()

	return collectPhoneRecords(rows)
}

// CountUnchecked returns the size of a caller's verification backlog
func (r *PhoneRecordRepository) CountUnchecked(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM phone_records WHERE owner_id = $1 AND checked = false`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unchecked records: %w", err)
	}

	return count, nil
}

// FetchUnchecked returns up to limit unchecked records for a caller, oldest first
func (r *PhoneRecordRepository) FetchUnchecked(ctx context.Context, ownerID string, limit int) ([]*models.PhoneRecord, error) {
	query := `
		SELECT ` + phoneRecordColumns + `
		FROM phone_records
		WHERE owner_id = $1 AND checked = false
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unchecked records: %w", err)
	}
	defer rows.Close()

	return collectPhoneRecords(rows)
}

// WriteOutcome persists a resolution outcome onto a phone record
func (r *PhoneRecordRepository) WriteOutcome(ctx context.Context, recordID string, outcome types.Outcome) error {
	query := `
		UPDATE phone_records
		SET checked = true, is_found = $2, username = $3, first_name = $4,
			last_name = $5, error = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		recordID,
		outcome.Found,
		nullable(outcome.Username),
		nullable(outcome.FirstName),
		nullable(outcome.LastName),
		nullable(outcome.Error),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("phone record not found: %s", recordID)
	}

	return nil
}

// Delete removes a phone record owned by the caller
func (r *PhoneRecordRepository) Delete(ctx context.Context, ownerID, id string) error {
	query := `DELETE FROM phone_records WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Pool().Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete phone record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("phone record", id)
	}

	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoneRecord(row rowScanner) (*models.PhoneRecord, error) {
	var record models.PhoneRecord
	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Phone,
		&record.Checked,
		&record.IsFound,
		&record.Username,
		&record.FirstName,
		&record.LastName,
		&record.Error,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func collectPhoneRecords(rows pgx.Rows) ([]*models.PhoneRecord, error) {
	var records []*models.PhoneRecord
	for rows.Next() {
		record, err := scanPhoneRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phone record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read phone records: %w", err)
	}

	return records, nil
}
