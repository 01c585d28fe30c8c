// Package types provides shared types for the contact verifier system.
package types

import "fmt"

// CheckSource identifies which path produced a resolution outcome.
type CheckSource string

const (
	// SourceInteractive marks outcomes produced by the synchronous check endpoint.
	SourceInteractive CheckSource = "interactive"
	// SourceBackground marks outcomes produced by the background verification loop.
	SourceBackground CheckSource = "background"
)

// Outcome is the per-phone result of a resolution attempt.
// Exactly one of the following holds: Found is true and the identity fields
// are populated, or Found is false and Error carries the reason.
type Outcome struct {
	Phone     string `json:"phone"`
	Found     bool   `json:"found"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServiceError represents a structured error from the service layer
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
