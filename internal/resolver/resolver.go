// Package resolver wraps the external messaging network's contact-resolution API.
package resolver

import (
	"context"
	"errors"
	"fmt"
)

// Credential is the opaque per-caller identity for the messaging network:
// an exported session string plus the API identity it was issued under.
type Credential struct {
	SessionString string `json:"sessionString"`
	APIID         int    `json:"apiId"`
	APIHash       string `json:"apiHash"`
}

// Resolution is what the network reports for a single phone number.
type Resolution struct {
	Found     bool
	Username  string
	FirstName string
	LastName  string
}

// ErrNotRegistered marks the network's "phone not registered" signal.
// It is a normal not-found outcome for a batch, not a failure.
var ErrNotRegistered = errors.New("phone number is not registered on the network")

// ErrNoCredential is returned by credential sources when the caller has
// never linked a network session.
var ErrNoCredential = errors.New("network credential not found")

// ConnectionError indicates the session could not be opened (transport or auth).
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to the messaging network: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Session is one open connection to the messaging network.
// A session belongs to exactly one running job (or one interactive request)
// and must be closed exactly once; Close is idempotent.
type Session interface {
	Resolve(ctx context.Context, phone string) (*Resolution, error)
	Close() error
}

// Client opens network sessions from stored credentials.
type Client interface {
	Open(ctx context.Context, cred Credential) (Session, error)
}
