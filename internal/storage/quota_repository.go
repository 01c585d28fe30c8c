package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/contact-verifier/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis key prefix and hash fields for quota counters.
const (
	quotaKeyPrefix = "quota:"

	fieldDailyChecks   = "daily_checks"
	fieldLastCheckMS   = "last_check_ms"
	fieldLastResetDate = "last_reset_date"

	// Counters are rewritten on every accepted check; the TTL only reaps
	// counters of callers that stopped checking entirely.
	quotaKeyTTL = 48 * time.Hour
)

// QuotaRepository persists per-caller daily check counters in Redis
type QuotaRepository struct {
	client redis.Cmdable
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(client redis.Cmdable) *QuotaRepository {
	return &QuotaRepository{client: client}
}

// ReadCounter retrieves the counter for a caller, or nil if none exists yet
func (r *QuotaRepository) ReadCounter(ctx context.Context, ownerID string) (*models.QuotaCounter, error) {
	values, err := r.client.HGetAll(ctx, quotaKeyPrefix+ownerID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read quota counter: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	counter := &models.QuotaCounter{
		OwnerID:       ownerID,
		LastResetDate: values[fieldLastResetDate],
	}

	if raw, ok := values[fieldDailyChecks]; ok {
		checks, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt daily_checks for %s: %w", ownerID, err)
		}
		counter.DailyChecks = checks
	}

	if raw, ok := values[fieldLastCheckMS]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_check_ms for %s: %w", ownerID, err)
		}
		counter.LastCheckTime = time.UnixMilli(ms)
	}

	return counter, nil
}

// UpsertCounter writes the counter for a caller, creating it on first use
func (r *QuotaRepository) UpsertCounter(ctx context.Context, ownerID string, counter *models.QuotaCounter) error {
	key := quotaKeyPrefix + ownerID

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldDailyChecks, counter.DailyChecks,
		fieldLastCheckMS, counter.LastCheckTime.UnixMilli(),
		fieldLastResetDate, counter.LastResetDate,
	)
	pipe.Expire(ctx, key, quotaKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert quota counter: %w", err)
	}

	return nil
}
