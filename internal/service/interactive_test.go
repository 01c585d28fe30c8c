package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/contact-verifier/internal/job"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/ratelimit"
	"github.com/contact-verifier/internal/resolver"
)

type fakeQuota struct {
	mu          sync.Mutex
	verdict     ratelimit.Verdict
	recordCalls int
}

func (q *fakeQuota) CanCheck(ctx context.Context, ownerID string) (ratelimit.Verdict, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.verdict, nil
}

func (q *fakeQuota) RecordCheck(ctx context.Context, ownerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recordCalls++
	return nil
}

func (q *fakeQuota) ValidateBatchSize(size int) ratelimit.BatchVerdict {
	if size <= 0 || size > ratelimit.MaxBatchSize {
		return ratelimit.BatchVerdict{Reason: "batch size out of range"}
	}
	return ratelimit.BatchVerdict{Valid: true}
}

type fakeCredentials struct {
	cred resolver.Credential
	err  error
}

func (c *fakeCredentials) Credential(ctx context.Context, ownerID string) (resolver.Credential, error) {
	return c.cred, c.err
}

type fakeClient struct {
	openErr error
	session *fakeSession
}

func (c *fakeClient) Open(ctx context.Context, cred resolver.Credential) (resolver.Session, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.session = &fakeSession{found: map[string]bool{"+15550001": true}}
	return c.session, nil
}

type fakeSession struct {
	mu     sync.Mutex
	found  map[string]bool
	closed bool
}

func (s *fakeSession) Resolve(ctx context.Context, phone string) (*resolver.Resolution, error) {
	if s.found[phone] {
		return &resolver.Resolution{Found: true, Username: "alice"}, nil
	}
	return nil, resolver.ErrNotRegistered
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*models.CheckEvent
}

func (a *recordingAudit) BatchInsert(ctx context.Context, events []*models.CheckEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, events...)
	return nil
}

func newChecker(quota *fakeQuota, client *fakeClient, audit job.AuditLog) (*InteractiveChecker, *job.Registry) {
	registry := job.NewRegistry()
	creds := &fakeCredentials{cred: resolver.Credential{SessionString: "s", APIID: 1, APIHash: "h"}}
	return NewInteractiveChecker(registry, quota, creds, client, audit), registry
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	return catErr.Code
}

func TestCheckResolvesAndAccounts(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	client := &fakeClient{}
	audit := &recordingAudit{}
	checker, _ := newChecker(quota, client, audit)

	outcomes, err := checker.Check(context.Background(), "user-1", []string{"+15550001", "+15550002"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.True(t, outcomes[0].Found)
	assert.Equal(t, "alice", outcomes[0].Username)
	assert.False(t, outcomes[1].Found)
	assert.NotEmpty(t, outcomes[1].Error)

	// One quota consumption for the whole batch, session closed, audit written.
	assert.Equal(t, 1, quota.recordCalls)
	assert.True(t, client.session.closed)
	assert.Len(t, audit.events, 2)
}

func TestCheckRejectsWhileJobRunning(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	checker, registry := newChecker(quota, &fakeClient{}, nil)
	require.NoError(t, registry.Create(&job.Job{OwnerID: "user-1", IsRunning: true}))

	_, err := checker.Check(context.Background(), "user-1", []string{"+15550001"})
	assert.Equal(t, "JOB_RUNNING", errorCode(t, err))
	assert.Zero(t, quota.recordCalls)
}

func TestCheckRejectsOverQuota(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Reason: "too soon since the previous check", WaitMillis: 1500}}
	checker, _ := newChecker(quota, &fakeClient{}, nil)

	_, err := checker.Check(context.Background(), "user-1", []string{"+15550001"})
	assert.Equal(t, "QUOTA_EXCEEDED", errorCode(t, err))
}

func TestCheckRejectsOversizedBatch(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	checker, _ := newChecker(quota, &fakeClient{}, nil)

	phones := make([]string, ratelimit.MaxBatchSize+1)
	for i := range phones {
		phones[i] = "+1555000"
	}

	_, err := checker.Check(context.Background(), "user-1", phones)
	assert.Equal(t, "BATCH_TOO_LARGE", errorCode(t, err))
}

func TestCheckRejectsEmptyBatch(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	checker, _ := newChecker(quota, &fakeClient{}, nil)

	_, err := checker.Check(context.Background(), "user-1", nil)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, err))
}

func TestCheckWithoutCredential(t *testing.T) {
	registry := job.NewRegistry()
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	creds := &fakeCredentials{err: resolver.ErrNoCredential}
	checker := NewInteractiveChecker(registry, quota, creds, &fakeClient{}, nil)

	_, err := checker.Check(context.Background(), "user-1", []string{"+15550001"})
	assert.Equal(t, "SESSION_MISSING", errorCode(t, err))
}

func TestCheckConnectionFailure(t *testing.T) {
	quota := &fakeQuota{verdict: ratelimit.Verdict{Allowed: true}}
	client := &fakeClient{openErr: &resolver.ConnectionError{Cause: context.DeadlineExceeded}}
	checker, _ := newChecker(quota, client, nil)

	_, err := checker.Check(context.Background(), "user-1", []string{"+15550001"})
	assert.Equal(t, "PROVIDER_ERROR", errorCode(t, err))

	// The failed connection consumed no quota.
	assert.Zero(t, quota.recordCalls)
}
