package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Plan and policy errors
	ErrorCodeInvalidPlanType ErrorCode = "INVALID_PLAN_TYPE"

	// Payment gateway errors (GATEWAY_*)
	ErrorCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"

	// Webhook errors
	ErrorCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// Subscription errors
	ErrorCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrorCodeNoActiveSubscription ErrorCode = "NO_ACTIVE_SUBSCRIPTION"
	ErrorCodeActivationFailed     ErrorCode = "ACTIVATION_FAILED"
	ErrorCodeCancellationFailed   ErrorCode = "CANCELLATION_FAILED"

	// Authentication errors (AUTH_*)
	ErrorCodeUnauthenticated ErrorCode = "AUTH_MISSING"
	ErrorCodeForbidden       ErrorCode = "AUTH_ACCESS_DENIED"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so wrapped or
// detail-enriched copies still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error with an additional detail field.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func (e *DomainError) withValue(v string) *DomainError {
	return e.WithDetail("value", v)
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsRetryable reports whether the caller may safely retry the operation
func IsRetryable(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayUnavailable
}

var (
	ErrInvalidPlanType = NewDomainError(ErrorCodeInvalidPlanType, "invalid plan type")

	ErrGatewayUnavailable = NewDomainError(ErrorCodeGatewayUnavailable, "payment gateway unavailable")
	ErrInvalidRequest     = NewDomainError(ErrorCodeInvalidRequest, "invalid request")

	ErrInvalidSignature = NewDomainError(ErrorCodeInvalidSignature, "invalid webhook signature")

	ErrSubscriptionNotFound = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrNoActiveSubscription = NewDomainError(ErrorCodeNoActiveSubscription, "no active subscription")
	ErrActivationFailed     = NewDomainError(ErrorCodeActivationFailed, "payment succeeded but activation failed")
	ErrCancellationFailed   = NewDomainError(ErrorCodeCancellationFailed, "subscription cancellation failed")

	ErrUnauthenticated = NewDomainError(ErrorCodeUnauthenticated, "authentication required")
	ErrForbidden       = NewDomainError(ErrorCodeForbidden, "access denied")

	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
