package errors

import (
	"fmt"
	"net/http"

	"github.com/contact-verifier/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryPrecondition represents control-surface precondition failures (4xx)
	CategoryPrecondition ErrorCategory = "precondition"
	// CategoryValidation represents request validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryRateLimit represents quota and spacing errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryProvider represents messaging-network provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents storage errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Stable error codes exposed on the control surface.
const (
	CodeAlreadyRunning = "ALREADY_RUNNING"
	CodeNotRunning     = "NOT_RUNNING"
	CodeNoBacklog      = "NO_BACKLOG"
	CodeBatchTooLarge  = "BATCH_TOO_LARGE"
	CodeQuotaExceeded  = "QUOTA_EXCEEDED"
	CodeSessionMissing = "SESSION_MISSING"
	CodeJobRunning     = "JOB_RUNNING"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeProviderError  = "PROVIDER_ERROR"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError shape
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewAlreadyRunningError reports that a verification job already exists for the caller
func NewAlreadyRunningError(ownerID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPrecondition,
		StatusCode: http.StatusConflict,
		Code:       CodeAlreadyRunning,
		Message:    "a verification job is already running for this user",
		Details: map[string]interface{}{
			"ownerId": ownerID,
		},
	}
}

// NewNotRunningError reports that no verification job exists for the caller
func NewNotRunningError(ownerID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPrecondition,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotRunning,
		Message:    "no verification job is running for this user",
		Details: map[string]interface{}{
			"ownerId": ownerID,
		},
	}
}

// NewNoBacklogError reports an empty verification backlog
func NewNoBacklogError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPrecondition,
		StatusCode: http.StatusBadRequest,
		Code:       CodeNoBacklog,
		Message:    "no unchecked phone numbers to verify",
	}
}

// NewBatchTooLargeError reports a batch above the fixed ceiling
func NewBatchTooLargeError(size, limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeBatchTooLarge,
		Message:    fmt.Sprintf("batch size %d exceeds the maximum of %d", size, limit),
		Details: map[string]interface{}{
			"size":  size,
			"limit": limit,
		},
	}
}

// NewQuotaExceededError reports a rate-limit rejection with the wait hint
func NewQuotaExceededError(reason string, waitMillis int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeQuotaExceeded,
		Message:    reason,
		Details: map[string]interface{}{
			"waitMillis": waitMillis,
		},
	}
}

// NewSessionMissingError reports that no network credential is stored for the caller
func NewSessionMissingError(ownerID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPrecondition,
		StatusCode: http.StatusBadRequest,
		Code:       CodeSessionMissing,
		Message:    "no messaging-network session is configured for this user",
		Details: map[string]interface{}{
			"ownerId": ownerID,
		},
	}
}

// NewJobRunningError reports that the interactive path refused while a background job is active
func NewJobRunningError(ownerID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPrecondition,
		StatusCode: http.StatusConflict,
		Code:       CodeJobRunning,
		Message:    "interactive checks are unavailable while a background verification job is running",
		Details: map[string]interface{}{
			"ownerId": ownerID,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    message,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInvalidInputError creates a request validation error
func NewInvalidInputError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidInput,
		Message:    message,
	}
}

// NewProviderError creates a messaging-network provider error
func NewProviderError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       CodeProviderError,
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a storage error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabaseError,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: statusForCode(svcErr.Code),
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

func statusForCode(code string) int {
	switch code {
	case CodeAlreadyRunning, CodeJobRunning:
		return http.StatusConflict
	case CodeNotRunning, CodeNotFound:
		return http.StatusNotFound
	case CodeNoBacklog, CodeBatchTooLarge, CodeSessionMissing, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
