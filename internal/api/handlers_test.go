package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/contact-verifier/internal/job"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/types"
)

// stubEngine scripts the verification engine behind the handlers.
type stubEngine struct {
	startTotal   int
	startErr     error
	stopErr      error
	status       job.Status
	gotBatchSize int
	gotDelay     int
}

func (e *stubEngine) Start(ctx context.Context, ownerID string, batchSize, delaySeconds int) (int, error) {
	e.gotBatchSize = batchSize
	e.gotDelay = delaySeconds
	return e.startTotal, e.startErr
}

func (e *stubEngine) Stop(ctx context.Context, ownerID string) error {
	return e.stopErr
}

func (e *stubEngine) Status(ownerID string) job.Status {
	return e.status
}

type stubChecker struct {
	results []types.Outcome
	err     error
}

func (c *stubChecker) Check(ctx context.Context, ownerID string, phones []string) ([]types.Outcome, error) {
	return c.results, c.err
}

type stubContacts struct {
	records   []*models.PhoneRecord
	deleteErr error
}

func (c *stubContacts) BatchCreate(ctx context.Context, ownerID string, phones []string) ([]*models.PhoneRecord, error) {
	return c.records, nil
}

func (c *stubContacts) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.PhoneRecord, error) {
	return c.records, nil
}

func (c *stubContacts) Delete(ctx context.Context, ownerID, id string) error {
	return c.deleteErr
}

func createTestServer(engine *stubEngine, checker *stubChecker, contacts *stubContacts) *Server {
	if engine == nil {
		engine = &stubEngine{}
	}
	if checker == nil {
		checker = &stubChecker{}
	}
	if contacts == nil {
		contacts = &stubContacts{}
	}
	return NewServer(&ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RequestsPerSec: 1000,
		Burst:          1000,
	}, engine, checker, contacts)
}

func doRequest(server *Server, method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestMissingUserIDIsRejectedEverywhere(t *testing.T) {
	server := createTestServer(nil, nil, nil)

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/api/verification/start"},
		{"POST", "/api/verification/stop"},
		{"POST", "/api/verification/status"},
		{"POST", "/api/verification/check"},
		{"POST", "/api/contacts"},
		{"GET", "/api/contacts"},
		{"DELETE", "/api/contacts/some-id"},
	}

	for _, tt := range paths {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(server, tt.method, tt.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, ErrCodeUnauthorized, decodeError(t, w).Error.Code)
		})
	}
}

func TestStartVerification(t *testing.T) {
	t.Run("returns the backlog total", func(t *testing.T) {
		engine := &stubEngine{startTotal: 120}
		server := createTestServer(engine, nil, nil)

		w := doRequest(server, "POST", "/api/verification/start", map[string]int{"batchSize": 30, "delaySeconds": 10}, "user-1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]int
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 120, resp["total"])
		assert.Equal(t, 30, engine.gotBatchSize)
		assert.Equal(t, 10, engine.gotDelay)
	})

	t.Run("empty body uses engine defaults", func(t *testing.T) {
		engine := &stubEngine{startTotal: 5}
		server := createTestServer(engine, nil, nil)

		w := doRequest(server, "POST", "/api/verification/start", nil, "user-1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, engine.gotBatchSize)
		assert.Equal(t, -1, engine.gotDelay)
	})

	t.Run("explicit zero delay passes through", func(t *testing.T) {
		engine := &stubEngine{startTotal: 5}
		server := createTestServer(engine, nil, nil)

		zero := 0
		w := doRequest(server, "POST", "/api/verification/start", map[string]*int{"delaySeconds": &zero}, "user-1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, engine.gotDelay)
	})

	t.Run("rejects negative delay", func(t *testing.T) {
		engine := &stubEngine{gotDelay: -99}
		server := createTestServer(engine, nil, nil)

		neg := -5
		w := doRequest(server, "POST", "/api/verification/start", map[string]*int{"delaySeconds": &neg}, "user-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Error.Code)
		assert.Equal(t, -99, engine.gotDelay)
	})

	t.Run("maps already running to conflict", func(t *testing.T) {
		engine := &stubEngine{startErr: apperrors.NewAlreadyRunningError("user-1")}
		server := createTestServer(engine, nil, nil)

		w := doRequest(server, "POST", "/api/verification/start", nil, "user-1")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_RUNNING", decodeError(t, w).Error.Code)
	})

	t.Run("maps quota exhaustion with wait hint", func(t *testing.T) {
		engine := &stubEngine{startErr: apperrors.NewQuotaExceededError("daily limit of 100 checks reached", 3600000)}
		server := createTestServer(engine, nil, nil)

		w := doRequest(server, "POST", "/api/verification/start", nil, "user-1")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
		assert.EqualValues(t, 3600000, resp.Error.Details["waitMillis"])
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		server := createTestServer(nil, nil, nil)

		req := httptest.NewRequest("POST", "/api/verification/start", bytes.NewReader([]byte("not json")))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStopVerification(t *testing.T) {
	t.Run("stops a running job", func(t *testing.T) {
		server := createTestServer(&stubEngine{}, nil, nil)

		w := doRequest(server, "POST", "/api/verification/stop", nil, "user-1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]bool
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["ok"])
	})

	t.Run("maps not running", func(t *testing.T) {
		engine := &stubEngine{stopErr: apperrors.NewNotRunningError("user-1")}
		server := createTestServer(engine, nil, nil)

		w := doRequest(server, "POST", "/api/verification/stop", nil, "user-1")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_RUNNING", decodeError(t, w).Error.Code)
	})
}

func TestVerificationStatusAlwaysOK(t *testing.T) {
	engine := &stubEngine{status: job.Status{IsRunning: true, Total: 120, Checked: 60, Found: 9, TimeUntilNextBatch: 12000}}
	server := createTestServer(engine, nil, nil)

	w := doRequest(server, "POST", "/api/verification/status", nil, "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var status job.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsRunning)
	assert.Equal(t, 120, status.Total)
	assert.Equal(t, 60, status.Checked)
	assert.Equal(t, int64(12000), status.TimeUntilNextBatch)
}

func TestInteractiveCheck(t *testing.T) {
	t.Run("returns one result per phone", func(t *testing.T) {
		checker := &stubChecker{results: []types.Outcome{
			{Phone: "+15550001", Found: true, Username: "alice"},
			{Phone: "+15550002", Error: "phone number is not registered on the network"},
		}}
		server := createTestServer(nil, checker, nil)

		w := doRequest(server, "POST", "/api/verification/check", map[string][]string{"phones": {"+15550001", "+15550002"}}, "user-1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Results []types.Outcome `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 2)
		assert.True(t, resp.Results[0].Found)
		assert.False(t, resp.Results[1].Found)
	})

	t.Run("maps a running job to conflict", func(t *testing.T) {
		checker := &stubChecker{err: apperrors.NewJobRunningError("user-1")}
		server := createTestServer(nil, checker, nil)

		w := doRequest(server, "POST", "/api/verification/check", map[string][]string{"phones": {"+15550001"}}, "user-1")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "JOB_RUNNING", decodeError(t, w).Error.Code)
	})
}

func TestContacts(t *testing.T) {
	t.Run("add contacts", func(t *testing.T) {
		contacts := &stubContacts{records: []*models.PhoneRecord{{ID: "rec-1", Phone: "+15550001"}}}
		server := createTestServer(nil, nil, contacts)

		w := doRequest(server, "POST", "/api/contacts", map[string][]string{"phones": {"+15550001", "  "}}, "user-1")
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Created int `json:"created"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Created)
	})

	t.Run("rejects an all-blank phone list", func(t *testing.T) {
		server := createTestServer(nil, nil, nil)

		w := doRequest(server, "POST", "/api/contacts", map[string][]string{"phones": {"  ", ""}}, "user-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete missing record maps to 404", func(t *testing.T) {
		contacts := &stubContacts{deleteErr: apperrors.NewNotFoundError("phone record", "rec-404")}
		server := createTestServer(nil, nil, contacts)

		w := doRequest(server, "DELETE", "/api/contacts/rec-404", nil, "user-1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(nil, nil, nil)

	w := doRequest(server, "GET", "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
