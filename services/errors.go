package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// Error codes identify a specific failure within a type
const (
	CodeInvalidArgument       = "INVALID_ARGUMENT"
	CodeEmptyQuery            = "EMPTY_QUERY"
	CodePlanNotFound          = "PLAN_NOT_FOUND"
	CodeEmbeddingUnavailable  = "EMBEDDING_UNAVAILABLE"
	CodeCompletionUnavailable = "COMPLETION_UNAVAILABLE"
	CodeDimensionMismatch     = "DIMENSION_MISMATCH"
	CodeQueryFailed           = "QUERY_FAILED"
	CodeQueryTimeout          = "QUERY_TIMEOUT"
	CodeStoreFailure          = "STORE_FAILURE"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code when the target carries one, otherwise on type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, code, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is. Never mutate these; wrap them with the constructors below.
var (
	ErrInvalidArgument       = NewDomainError(ErrorTypeValidation, CodeInvalidArgument, "invalid argument", nil)
	ErrEmptyQuery            = NewDomainError(ErrorTypeValidation, CodeEmptyQuery, "query cannot be empty", nil)
	ErrPlanNotFound          = NewDomainError(ErrorTypeNotFound, CodePlanNotFound, "plan not found", nil)
	ErrEmbeddingUnavailable  = NewDomainError(ErrorTypeExternal, CodeEmbeddingUnavailable, "embedding provider unavailable", nil)
	ErrCompletionUnavailable = NewDomainError(ErrorTypeExternal, CodeCompletionUnavailable, "completion provider unavailable", nil)
	ErrDimensionMismatch     = NewDomainError(ErrorTypeInternal, CodeDimensionMismatch, "vector dimension mismatch", nil)
	ErrQueryFailed           = NewDomainError(ErrorTypeExternal, CodeQueryFailed, "failed to process query", nil)
	ErrQueryTimeout          = NewDomainError(ErrorTypeTimeout, CodeQueryTimeout, "query timed out", nil)
	ErrStoreFailure          = NewDomainError(ErrorTypeInternal, CodeStoreFailure, "plan store failure", nil)
)

// InvalidArgument builds a validation error for a rejected argument
func InvalidArgument(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, CodeInvalidArgument, message, nil)
}

// PlanNotFound builds a not-found error for the given plan id
func PlanNotFound(id string) *DomainError {
	return NewDomainError(ErrorTypeNotFound, CodePlanNotFound, "plan not found", nil).WithDetail("id", id)
}

// EmbeddingUnavailable wraps a failed embedding call
func EmbeddingUnavailable(err error) *DomainError {
	return NewDomainError(ErrorTypeExternal, CodeEmbeddingUnavailable, "embedding provider unavailable", err)
}

// CompletionUnavailable wraps a failed completion call
func CompletionUnavailable(err error) *DomainError {
	return NewDomainError(ErrorTypeExternal, CodeCompletionUnavailable, "completion provider unavailable", err)
}

// DimensionMismatch reports two vectors of different length
func DimensionMismatch(a, b int) *DomainError {
	return NewDomainError(ErrorTypeInternal, CodeDimensionMismatch,
		fmt.Sprintf("vector dimension mismatch: %d != %d", a, b), nil).
		WithDetail("left", a).
		WithDetail("right", b)
}

// StoreFailure wraps an error from the plan store
func StoreFailure(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeInternal, CodeStoreFailure, message, err)
}

// NewQueryFailed wraps a pipeline failure for the boundary. Deadline and
// cancellation causes become timeout errors; the session id is kept in Details.
func NewQueryFailed(sessionID string, cause error) *DomainError {
	var de *DomainError
	switch {
	case errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled):
		de = NewDomainError(ErrorTypeTimeout, CodeQueryTimeout, "query timed out", cause)
	case IsValidationError(cause) || IsInternalError(cause):
		de = NewDomainError(GetErrorType(cause), CodeQueryFailed, "failed to process query", cause)
	default:
		de = NewDomainError(ErrorTypeExternal, CodeQueryFailed, "failed to process query", cause)
	}
	return de.WithDetail("sessionId", sessionID)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return GetErrorType(err) == ErrorTypeTimeout
}

// GetErrorType returns the ErrorType of the outermost domain error, or empty string
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of the outermost domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// SessionIDFromError extracts the session id attached by NewQueryFailed
func SessionIDFromError(err error) string {
	if details := GetErrorDetails(err); details != nil {
		if id, ok := details["sessionId"].(string); ok {
			return id
		}
	}
	return ""
}
