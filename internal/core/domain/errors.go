package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects bad input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError signals a violated precondition: wrong status, an already
// created payment intent, a duplicate ship attempt. No state changes.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// NotFoundError signals that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// UpstreamError wraps a failed call to the payment gateway, carrier, address
// lookup or mailer. Transient failures (network errors, 5xx) may be retried
// by the caller; permanent ones (4xx rejections) may not.
type UpstreamError struct {
	Service   string
	Op        string
	Transient bool
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IntegrityError signals a detected partial write, e.g. an order row without
// its items. It must be surfaced loudly, never swallowed.
type IntegrityError struct {
	OrderID string
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("order %s: %s", e.OrderID, e.Reason)
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}
