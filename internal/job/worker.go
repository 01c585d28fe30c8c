package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contact-verifier/internal/batch"
	"github.com/contact-verifier/internal/logging"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/resolver"
	"github.com/contact-verifier/internal/types"
	"github.com/google/uuid"
)

// RecordStore is the slice of the phone-record store the engine needs.
type RecordStore interface {
	CountUnchecked(ctx context.Context, ownerID string) (int, error)
	FetchUnchecked(ctx context.Context, ownerID string, limit int) ([]*models.PhoneRecord, error)
	WriteOutcome(ctx context.Context, recordID string, outcome types.Outcome) error
}

// AuditLog records resolution outcomes best-effort. May be backed by the
// ClickHouse check-event repository or absent entirely.
type AuditLog interface {
	BatchInsert(ctx context.Context, events []*models.CheckEvent) error
}

// worker drains one caller's verification backlog batch by batch.
type worker struct {
	ownerID      string
	registry     *Registry
	records      RecordStore
	quota        QuotaKeeper
	audit        AuditLog // may be nil
	client       resolver.Client
	cred         resolver.Credential
	total        int
	batchSize    int
	delay        time.Duration
	pollInterval time.Duration
	logger       *logging.Logger

	processed int // cumulative records written by this worker
}

// run is the worker loop. It exits when the backlog snapshot is drained,
// the registry entry disappears or is flagged stopped, or the context is
// cancelled. A session-open failure is the only fatal error; per-iteration
// errors are logged and the loop carries on.
func (w *worker) run(ctx context.Context) error {
	sess, err := w.client.Open(ctx, w.cred)
	if err != nil {
		return fmt.Errorf("failed to open network session: %w", err)
	}

	if !w.registry.AttachSession(w.ownerID, sess) {
		// Stopped before the session came up; the entry is gone, so the
		// session is ours to close.
		_ = sess.Close()
		return nil
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil || !w.registry.Running(w.ownerID) {
			return nil
		}

		// Honor the inter-batch delay without consuming backlog.
		if next, ok := w.registry.NextBatchTime(w.ownerID); ok && next != nil && time.Until(*next) > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}

		done, err := w.iterate(ctx, sess)
		if err != nil {
			// Soft-fail: a flaky storage or network call must not kill a
			// multi-hour job. Skip this iteration and try again.
			w.logger.WithError(err).Warn("Verification iteration failed, continuing")
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}
		if done {
			return nil
		}
	}
}

// iterate processes one batch: fetch, resolve, persist, account.
// It returns done=true once the backlog snapshot taken at start is drained.
func (w *worker) iterate(ctx context.Context, sess resolver.Session) (bool, error) {
	limit := w.batchSize
	if remaining := w.total - w.processed; remaining < limit {
		if remaining <= 0 {
			return true, nil
		}
		limit = remaining
	}

	records, err := w.records.FetchUnchecked(ctx, w.ownerID, limit)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return true, nil
	}

	phones := make([]string, len(records))
	for i, rec := range records {
		phones[i] = rec.Phone
	}

	outcomes := batch.Run(ctx, sess, phones)

	// Writes for a batch are issued concurrently; a single failed write is
	// logged and swallowed so one bad record cannot stall the job.
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(recordID string, outcome types.Outcome) {
			defer wg.Done()
			if err := w.records.WriteOutcome(ctx, recordID, outcome); err != nil {
				w.logger.WithError(err).WithField("recordId", recordID).Warn("Failed to persist outcome")
			}
		}(rec.ID, outcomes[i])
	}
	wg.Wait()

	if err := w.quota.RecordCheck(ctx, w.ownerID); err != nil {
		w.logger.WithError(err).Warn("Failed to record quota consumption")
	}

	w.auditOutcomes(ctx, outcomes)

	w.processed += len(records)

	var next *time.Time
	if w.processed < w.total && w.delay > 0 {
		t := time.Now().Add(w.delay)
		next = &t
	}
	w.registry.RecordProgress(w.ownerID, len(records), batch.CountFound(outcomes), next)

	return false, nil
}

// auditOutcomes appends the batch to the check audit log, best-effort.
func (w *worker) auditOutcomes(ctx context.Context, outcomes []types.Outcome) {
	if w.audit == nil {
		return
	}

	now := time.Now()
	events := make([]*models.CheckEvent, len(outcomes))
	for i, oc := range outcomes {
		events[i] = &models.CheckEvent{
			EventID:   uuid.New().String(),
			OwnerID:   w.ownerID,
			Phone:     oc.Phone,
			Found:     oc.Found,
			Error:     oc.Error,
			Source:    types.SourceBackground,
			CheckedAt: now,
		}
	}

	if err := w.audit.BatchInsert(ctx, events); err != nil {
		w.logger.WithError(err).Warn("Failed to append check events")
	}
}
