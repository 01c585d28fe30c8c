package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/contact-verifier/internal/logging"
	"golang.org/x/time/rate"
)

// Provider error codes returned by the gateway.
const (
	codePhoneNotRegistered = "PHONE_NOT_REGISTERED"
)

// GatewayClient talks JSON/HTTP to the messaging-network gateway that fronts
// the real network protocol. All calls share one pacing limiter so concurrent
// jobs cannot exceed the gateway's account-level request budget.
type GatewayClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// GatewayClientConfig holds configuration for the gateway client
type GatewayClientConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
}

// NewGatewayClient creates a new gateway client
func NewGatewayClient(cfg *GatewayClientConfig) *GatewayClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GatewayClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logging.GetGlobalLogger().WithField("component", "resolver"),
	}
}

type openSessionRequest struct {
	SessionString string `json:"sessionString"`
	APIID         int    `json:"apiId"`
	APIHash       string `json:"apiHash"`
}

type openSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type resolveRequest struct {
	Phone string `json:"phone"`
}

type resolveResponse struct {
	Found     bool   `json:"found"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type gatewayError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Open establishes a network session from a stored credential.
// Transport and auth failures are reported as *ConnectionError.
func (c *GatewayClient) Open(ctx context.Context, cred Credential) (Session, error) {
	body := openSessionRequest{
		SessionString: cred.SessionString,
		APIID:         cred.APIID,
		APIHash:       cred.APIHash,
	}

	var resp openSessionResponse
	if err := c.post(ctx, "/v1/sessions", body, &resp); err != nil {
		return nil, &ConnectionError{Cause: err}
	}
	if resp.SessionID == "" {
		return nil, &ConnectionError{Cause: fmt.Errorf("gateway returned empty session id")}
	}

	c.logger.WithField("sessionId", resp.SessionID).Debug("Network session opened")

	return &gatewaySession{client: c, id: resp.SessionID}, nil
}

// post sends a JSON request and decodes the JSON response, translating the
// gateway's error envelope into Go errors.
func (c *GatewayClient) post(ctx context.Context, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var gwErr gatewayError
		if err := json.Unmarshal(raw, &gwErr); err == nil && gwErr.Error.Code != "" {
			if gwErr.Error.Code == codePhoneNotRegistered {
				return ErrNotRegistered
			}
			return fmt.Errorf("%s: %s", gwErr.Error.Code, gwErr.Error.Message)
		}
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}

	return nil
}

func (c *GatewayClient) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 404 means the session is already gone; Close must stay idempotent.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// gatewaySession is one open session on the gateway
type gatewaySession struct {
	client *GatewayClient
	id     string

	mu     sync.Mutex
	closed bool
}

// Resolve resolves one phone number through the open session
func (s *gatewaySession) Resolve(ctx context.Context, phone string) (*Resolution, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is closed")
	}
	s.mu.Unlock()

	var resp resolveResponse
	err := s.client.post(ctx, "/v1/sessions/"+s.id+"/resolve", resolveRequest{Phone: phone}, &resp)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Found:     resp.Found,
		Username:  resp.Username,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
	}, nil
}

// Close tears down the session on the gateway. Safe to call more than once.
func (s *gatewaySession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.delete(ctx, "/v1/sessions/"+s.id); err != nil {
		s.client.logger.WithError(err).Warn("Failed to close network session")
		return err
	}

	return nil
}
