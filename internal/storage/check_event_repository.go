package storage

import (
	"context"
	"fmt"

	"github.com/contact-verifier/internal/models"
)

// CheckEventRepository appends resolution outcomes to the ClickHouse audit log
type CheckEventRepository struct {
	db *ClickHouseDB
}

// NewCheckEventRepository creates a new check event repository
func NewCheckEventRepository(db *ClickHouseDB) *CheckEventRepository {
	return &CheckEventRepository{db: db}
}

// EnsureSchema creates the check_events table if it does not exist
func (r *CheckEventRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS check_events (
			event_id String,
			owner_id String,
			phone String,
			found UInt8,
			error String,
			source String,
			checked_at DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(checked_at)
		ORDER BY (owner_id, checked_at)
	`
	if err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create check_events table: %w", err)
	}
	return nil
}

// BatchInsert appends a batch of check events
func (r *CheckEventRepository) BatchInsert(ctx context.Context, events []*models.CheckEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO check_events (event_id, owner_id, phone, found, error, source, checked_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare check_events batch: %w", err)
	}

	for _, event := range events {
		found := uint8(0)
		if event.Found {
			found = 1
		}
		if err := batch.Append(
			event.EventID,
			event.OwnerID,
			event.Phone,
			found,
			event.Error,
			string(event.Source),
			event.CheckedAt,
		); err != nil {
			return fmt.Errorf("failed to append check event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert check events: %w", err)
	}

	return nil
}

// CountByOwner returns the number of audited checks for a caller
func (r *CheckEventRepository) CountByOwner(ctx context.Context, ownerID string) (uint64, error) {
	query := `SELECT COUNT(*) FROM check_events WHERE owner_id = ?`

	var count uint64
	if err := r.db.Conn().QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count check events: %w", err)
	}

	return count, nil
}
