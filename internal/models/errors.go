package models

import (
	"errors"
	"fmt"
	"strings"
)

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// ValidationError reports input rejected before any write reached the store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConsistencyError reports a store transaction aborted because state read
// inside the transaction no longer satisfied a precondition (e.g. a
// competing advance payment drained the invoice total). Retryable by the
// caller; the store applied nothing.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "consistency: " + e.Reason
}

// IsConsistency reports whether err is (or wraps) a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// StoreError wraps a failure surfaced by the store client itself
// (connectivity, permissions, malformed query). Not retryable by the core;
// surfaced verbatim to the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err looks like a store access-denied
// failure. Used only by the investment correction path's documented
// fallback behavior.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) {
		return IsPermissionDenied(se.Err)
	}
	return containsFold(err.Error(), "permission denied") || containsFold(err.Error(), "not allowed")
}
