// Package upstream holds the failure taxonomy and HTTP plumbing shared by the
// verification and issuance service clients.
package upstream

import (
	"context"
	"errors"
	"fmt"

	dErrors "proofbridge/pkg/domain-errors"
)

// Category is the normalized failure class for upstream service errors.
type Category string

const (
	CategoryTimeout        Category = "timeout"
	CategoryOutage         Category = "service_outage"
	CategoryBadData        Category = "bad_data"
	CategoryAuthentication Category = "authentication"
	CategoryNotFound       Category = "not_found"
	CategoryRateLimited    Category = "rate_limited"
	CategoryInternal       Category = "internal"
)

// ServiceError wraps an upstream failure with its category.
// Raw carries the offending response body for bad_data failures.
type ServiceError struct {
	Category   Category
	Service    string
	Message    string
	Underlying error
	Retryable  bool
	Raw        []byte
}

func (e *ServiceError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("service %s [%s]: %s: %v", e.Service, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("service %s [%s]: %s", e.Service, e.Category, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Underlying
}

// NewServiceError classifies timeouts, outages and rate limiting as retryable.
func NewServiceError(category Category, service, message string, underlying error) *ServiceError {
	return &ServiceError{
		Category:   category,
		Service:    service,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTimeout || category == CategoryOutage || category == CategoryRateLimited,
	}
}

// Malformed builds a bad_data error that keeps the raw payload for logging.
func Malformed(service, message string, raw []byte, underlying error) *ServiceError {
	err := NewServiceError(CategoryBadData, service, message, underlying)
	err.Raw = raw
	return err
}

// IsRetryable reports whether err is a transient upstream failure.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsMalformed reports whether err is a bad_data failure.
func IsMalformed(err error) bool {
	return CategoryOf(err) == CategoryBadData
}

// CategoryOf extracts the category, defaulting to internal.
func CategoryOf(err error) Category {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}

// RawPayload returns the raw response body attached to err, if any.
func RawPayload(err error) []byte {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Raw
	}
	return nil
}

// ToDomain translates an upstream failure into a domain error for transport layers.
func ToDomain(err error, message string) error {
	if err == nil {
		return nil
	}
	switch CategoryOf(err) {
	case CategoryTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	case CategoryBadData:
		return dErrors.Wrap(err, dErrors.CodeMalformedResponse, message)
	default:
		return dErrors.Wrap(err, dErrors.CodeUpstreamFailure, message)
	}
}
