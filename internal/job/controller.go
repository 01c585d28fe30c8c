package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/contact-verifier/internal/logging"
	"github.com/contact-verifier/internal/ratelimit"
	"github.com/contact-verifier/internal/resolver"
)

// QuotaKeeper is the rate-limit surface the engine consumes.
type QuotaKeeper interface {
	CanCheck(ctx context.Context, ownerID string) (ratelimit.Verdict, error)
	RecordCheck(ctx context.Context, ownerID string) error
	ValidateBatchSize(size int) ratelimit.BatchVerdict
}

// CredentialSource yields the caller's stored messaging-network credential.
// A missing credential is reported with resolver.ErrNoCredential.
type CredentialSource interface {
	Credential(ctx context.Context, ownerID string) (resolver.Credential, error)
}

// Controller is the request-facing control surface of the verification
// engine. It validates start/stop preconditions, owns registry entries and
// supervises the detached worker per caller.
type Controller struct {
	registry     *Registry
	records      RecordStore
	quota        QuotaKeeper
	creds        CredentialSource
	client       resolver.Client
	audit        AuditLog // may be nil
	batchSize    int
	delaySeconds int
	pollInterval time.Duration
	logger       *logging.Logger
}

// ControllerConfig holds configuration for the job controller
type ControllerConfig struct {
	Registry            *Registry
	Records             RecordStore
	Quota               QuotaKeeper
	Credentials         CredentialSource
	Client              resolver.Client
	Audit               AuditLog // optional
	DefaultBatchSize    int
	DefaultDelaySeconds int
	PollInterval        time.Duration
}

// NewController creates a new job controller
func NewController(cfg *ControllerConfig) (*Controller, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}
	if cfg.Quota == nil {
		return nil, fmt.Errorf("quota keeper cannot be nil")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential source cannot be nil")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("resolver client cannot be nil")
	}

	batchSize := cfg.DefaultBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	delaySeconds := cfg.DefaultDelaySeconds
	if delaySeconds < 0 {
		delaySeconds = 30
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Controller{
		registry:     cfg.Registry,
		records:      cfg.Records,
		quota:        cfg.Quota,
		creds:        cfg.Credentials,
		client:       cfg.Client,
		audit:        cfg.Audit,
		batchSize:    batchSize,
		delaySeconds: delaySeconds,
		pollInterval: pollInterval,
		logger:       logging.GetGlobalLogger().WithField("component", "verification"),
	}, nil
}

// Start launches a background verification job for the caller and returns
// the backlog size it will work through. The worker runs detached; a fatal
// failure after this call returns is observable only via Status.
func (c *Controller) Start(ctx context.Context, ownerID string, batchSize, delaySeconds int) (int, error) {
	if batchSize <= 0 {
		batchSize = c.batchSize
	}
	if delaySeconds < 0 {
		delaySeconds = c.delaySeconds
	}

	if verdict := c.quota.ValidateBatchSize(batchSize); !verdict.Valid {
		return 0, apperrors.NewBatchTooLargeError(batchSize, ratelimit.MaxBatchSize)
	}

	if c.registry.Exists(ownerID) {
		return 0, apperrors.NewAlreadyRunningError(ownerID)
	}

	verdict, err := c.quota.CanCheck(ctx, ownerID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("quota check", err)
	}
	if !verdict.Allowed {
		return 0, apperrors.NewQuotaExceededError(verdict.Reason, verdict.WaitMillis)
	}

	total, err := c.records.CountUnchecked(ctx, ownerID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("backlog count", err)
	}
	if total == 0 {
		return 0, apperrors.NewNoBacklogError()
	}

	cred, err := c.creds.Credential(ctx, ownerID)
	if err != nil {
		if errors.Is(err, resolver.ErrNoCredential) {
			return 0, apperrors.NewSessionMissingError(ownerID)
		}
		return 0, apperrors.NewDatabaseError("credential lookup", err)
	}

	// The job context is detached from the request: the worker outlives
	// this call and is cancelled only at process shutdown.
	jobCtx, cancel := context.WithCancel(context.Background())

	entry := &Job{
		OwnerID:    ownerID,
		IsRunning:  true,
		Total:      total,
		LastUpdate: time.Now(),
		BatchSize:  batchSize,
		Delay:      time.Duration(delaySeconds) * time.Second,
		cancel:     cancel,
	}
	if err := c.registry.Create(entry); err != nil {
		cancel()
		return 0, apperrors.NewAlreadyRunningError(ownerID)
	}

	w := &worker{
		ownerID:      ownerID,
		registry:     c.registry,
		records:      c.records,
		quota:        c.quota,
		audit:        c.audit,
		client:       c.client,
		cred:         cred,
		total:        total,
		batchSize:    batchSize,
		delay:        entry.Delay,
		pollInterval: c.pollInterval,
		logger:       c.logger.WithField("ownerId", ownerID),
	}

	go c.supervise(jobCtx, cancel, w)

	c.logger.WithFields(map[string]interface{}{
		"ownerId":   ownerID,
		"total":     total,
		"batchSize": batchSize,
		"delay":     entry.Delay.String(),
	}).Info("Verification job started")

	return total, nil
}

// supervise waits for the worker to finish and performs teardown: close the
// session if still open, remove the registry entry. The explicit-stop path
// does the same; Remove arbitrates so it happens exactly once.
func (c *Controller) supervise(ctx context.Context, cancel context.CancelFunc, w *worker) {
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- w.run(ctx)
	}()

	err := <-result

	if entry, ok := c.registry.Remove(w.ownerID); ok {
		if entry.session != nil {
			_ = entry.session.Close()
		}
	}

	if err != nil {
		// Not reported to any caller; a subsequent status call shows the
		// job gone.
		c.logger.WithError(err).WithField("ownerId", w.ownerID).Error("Verification job terminated")
		return
	}

	c.logger.WithField("ownerId", w.ownerID).Info("Verification job finished")
}

// Stop halts the caller's running job. The batch in flight still completes
// and writes its outcomes; only the next backlog pull is prevented.
func (c *Controller) Stop(ctx context.Context, ownerID string) error {
	entry, ok := c.registry.Remove(ownerID)
	if !ok {
		return apperrors.NewNotRunningError(ownerID)
	}

	entry.IsRunning = false
	if entry.session != nil {
		_ = entry.session.Close()
	}

	c.logger.WithField("ownerId", ownerID).Info("Verification job stopped")
	return nil
}

// Status returns the caller's job snapshot; an absent job reads as not running.
func (c *Controller) Status(ownerID string) Status {
	status, ok := c.registry.Snapshot(ownerID, time.Now())
	if !ok {
		return Status{IsRunning: false}
	}
	return status
}

// Shutdown stops every running job, cancelling workers outright. In-flight
// batches may be abandoned; job state is volatile by contract.
func (c *Controller) Shutdown() {
	for _, owner := range c.registry.Owners() {
		if entry, ok := c.registry.Remove(owner); ok {
			entry.IsRunning = false
			if entry.cancel != nil {
				entry.cancel()
			}
			if entry.session != nil {
				_ = entry.session.Close()
			}
		}
	}
}
