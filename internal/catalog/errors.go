package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("book not found")

	// ErrPayloadTooLarge indicates the upload exceeded the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrPayloadMissing indicates a primary record whose payload can no
	// longer be read (on-disk file removed, or no payload column set).
	ErrPayloadMissing = errors.New("book payload missing")
)

// ValidationError describes a rejected upload field. Nothing has been
// written when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when no record set holds the requested id.
type NotFoundError struct {
	ID     int64
	Origin Origin
}

func (e *NotFoundError) Error() string {
	if e.Origin == OriginAny {
		return fmt.Sprintf("book %d not found", e.ID)
	}
	return fmt.Sprintf("%s book %d not found", e.Origin, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
