// Package service holds the request-scoped verification flows.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/contact-verifier/internal/batch"
	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/contact-verifier/internal/job"
	"github.com/contact-verifier/internal/logging"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/ratelimit"
	"github.com/contact-verifier/internal/resolver"
	"github.com/contact-verifier/internal/types"
)

// InteractiveChecker resolves an ad-hoc list of phone numbers within a single
// request, under the same quota rules as the background engine. It refuses
// while the caller's background job is running so the two never share or
// contend for the network session.
type InteractiveChecker struct {
	registry *job.Registry
	quota    job.QuotaKeeper
	creds    job.CredentialSource
	client   resolver.Client
	audit    job.AuditLog // may be nil
	logger   *logging.Logger
}

// NewInteractiveChecker creates a new interactive checker
func NewInteractiveChecker(registry *job.Registry, quota job.QuotaKeeper, creds job.CredentialSource, client resolver.Client, audit job.AuditLog) *InteractiveChecker {
	return &InteractiveChecker{
		registry: registry,
		quota:    quota,
		creds:    creds,
		client:   client,
		audit:    audit,
		logger:   logging.GetGlobalLogger().WithField("component", "interactive"),
	}
}

// Check resolves the given phone numbers and returns one outcome per input,
// in input order.
func (c *InteractiveChecker) Check(ctx context.Context, ownerID string, phones []string) ([]types.Outcome, error) {
	if len(phones) == 0 {
		return nil, apperrors.NewInvalidInputError("phones list cannot be empty")
	}
	if verdict := c.quota.ValidateBatchSize(len(phones)); !verdict.Valid {
		return nil, apperrors.NewBatchTooLargeError(len(phones), ratelimit.MaxBatchSize)
	}

	if c.registry.Running(ownerID) {
		return nil, apperrors.NewJobRunningError(ownerID)
	}

	verdict, err := c.quota.CanCheck(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("quota check", err)
	}
	if !verdict.Allowed {
		return nil, apperrors.NewQuotaExceededError(verdict.Reason, verdict.WaitMillis)
	}

	cred, err := c.creds.Credential(ctx, ownerID)
	if err != nil {
		if errors.Is(err, resolver.ErrNoCredential) {
			return nil, apperrors.NewSessionMissingError(ownerID)
		}
		return nil, apperrors.NewDatabaseError("credential lookup", err)
	}

	sess, err := c.client.Open(ctx, cred)
	if err != nil {
		return nil, apperrors.NewProviderError("open session", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			c.logger.WithError(cerr).WithField("ownerId", ownerID).Warn("Failed to close network session")
		}
	}()

	outcomes := batch.Run(ctx, sess, phones)

	if err := c.quota.RecordCheck(ctx, ownerID); err != nil {
		c.logger.WithError(err).WithField("ownerId", ownerID).Warn("Failed to record quota usage")
	}

	c.auditOutcomes(ctx, ownerID, outcomes)

	return outcomes, nil
}

// auditOutcomes writes check events on a best-effort basis.
func (c *InteractiveChecker) auditOutcomes(ctx context.Context, ownerID string, outcomes []types.Outcome) {
	if c.audit == nil {
		return
	}

	events := make([]*models.CheckEvent, 0, len(outcomes))
	now := time.Now()
	for _, outcome := range outcomes {
		events = append(events, &models.CheckEvent{
			EventID:   uuid.New().String(),
			OwnerID:   ownerID,
			Phone:     outcome.Phone,
			Found:     outcome.Found,
			Error:     outcome.Error,
			Source:    types.SourceInteractive,
			CheckedAt: now,
		})
	}

	if err := c.audit.BatchInsert(ctx, events); err != nil {
		c.logger.WithError(err).WithField("ownerId", ownerID).Warn("Failed to write check events")
	}
}
