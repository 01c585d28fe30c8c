// Package ratelimit gates both the background verification engine and the
// synchronous check endpoint against per-caller quotas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/contact-verifier/internal/models"
)

// Fixed ceilings for contact checks. These are contract constants, not tunables.
const (
	// MaxBatchSize is the largest batch accepted per check.
	MaxBatchSize = 50
	// DailyLimit is the number of checks a caller may run per calendar day.
	DailyLimit = 100
	// MinCheckInterval is the minimum spacing between two accepted checks.
	MinCheckInterval = 2000 * time.Millisecond
)

// Verdict is the structured decision for a quota check. Rejections are
// informational, not errors; only storage failures surface as errors.
type Verdict struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	WaitMillis int64  `json:"waitMillis,omitempty"`
}

// BatchVerdict is the structured decision for a batch-size check.
type BatchVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CounterStore persists per-caller quota counters.
type CounterStore interface {
	ReadCounter(ctx context.Context, ownerID string) (*models.QuotaCounter, error)
	UpsertCounter(ctx context.Context, ownerID string, counter *models.QuotaCounter) error
}

// Limiter applies the fixed daily-quota and spacing rules over stored counters.
// Decision logic is pure over the counter; the clock is injectable for tests.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

// NewLimiter creates a new rate limiter over a counter store
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the limiter's clock. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// ValidateBatchSize checks a requested batch size against the fixed ceiling
func (l *Limiter) ValidateBatchSize(size int) BatchVerdict {
	if size <= 0 {
		return BatchVerdict{Reason: "batch must contain at least one phone number"}
	}
	if size > MaxBatchSize {
		return BatchVerdict{
			Reason: fmt.Sprintf("batch size %d exceeds the maximum of %d", size, MaxBatchSize),
		}
	}
	return BatchVerdict{Valid: true}
}

// CanCheck decides whether a caller may run a check right now.
// It never mutates the stored counter.
func (l *Limiter) CanCheck(ctx context.Context, ownerID string) (Verdict, error) {
	counter, err := l.store.ReadCounter(ctx, ownerID)
	if err != nil {
		return Verdict{}, err
	}
	if counter == nil {
		return Verdict{Allowed: true}, nil
	}

	now := l.now()

	// A stale reset date means the daily count belongs to a previous day.
	dailyChecks := counter.DailyChecks
	if counter.LastResetDate != now.Format(models.DateLayout) {
		dailyChecks = 0
	}

	if dailyChecks >= DailyLimit {
		return Verdict{
			Reason:     fmt.Sprintf("daily limit of %d checks reached", DailyLimit),
			WaitMillis: millisUntilNextMidnight(now),
		}, nil
	}

	if since := now.Sub(counter.LastCheckTime); since < MinCheckInterval {
		return Verdict{
			Reason:     "too soon since the previous check",
			WaitMillis: (MinCheckInterval - since).Milliseconds(),
		}, nil
	}

	return Verdict{Allowed: true}, nil
}

// RecordCheck registers an accepted check: it applies any pending calendar-day
// reset, increments the daily count and stamps the check time, creating the
// counter row on first use.
func (l *Limiter) RecordCheck(ctx context.Context, ownerID string) error {
	counter, err := l.store.ReadCounter(ctx, ownerID)
	if err != nil {
		return err
	}

	now := l.now()
	today := now.Format(models.DateLayout)

	if counter == nil {
		counter = &models.QuotaCounter{OwnerID: ownerID, LastResetDate: today}
	} else if counter.LastResetDate != today {
		counter.DailyChecks = 0
		counter.LastResetDate = today
	}

	counter.DailyChecks++
	counter.LastCheckTime = now

	return l.store.UpsertCounter(ctx, ownerID, counter)
}

// millisUntilNextMidnight returns the wait until the next local calendar-day
// boundary, which is when the daily count resets.
func millisUntilNextMidnight(now time.Time) int64 {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now).Milliseconds()
}
