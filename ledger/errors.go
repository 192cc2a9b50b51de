/*
errors.go - Centralized error types for the billing ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; the HTTP layer maps these to
  status codes.

ERROR CATEGORIES:
  1. Validation errors - rejected at the service boundary, no state change
  2. Store errors - missing rows, write conflicts
  3. Collaborator errors - the patient-management subsystem is unreachable

SEE ALSO:
  - service.go: Rejects validation errors before any store mutation
  - api/handlers.go: HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a payment amount is not a positive
	// finite number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned when a payment date cannot be normalized to
	// a calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a (month, year) pair is malformed.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrRecordNotFound is returned when an operation addresses a period with
	// no monthly record and is not permitted to create one.
	ErrRecordNotFound = errors.New("monthly record not found")

	// ErrPatientNotFound is returned when a referenced patient doesn't exist.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrConcurrencyConflict is returned when a write to the same
	// (patient, period) key collided. The service retries once by re-reading
	// and recomputing from the payment ledger before surfacing this.
	ErrConcurrencyConflict = errors.New("concurrent write conflict")

	// ErrUpstreamUnavailable is returned when the fee-configuration
	// collaborator cannot be reached. New periods are never seeded with
	// guessed fee values.
	ErrUpstreamUnavailable = errors.New("patient-management subsystem unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError identifies which field of a request failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	switch e.Field {
	case "amount":
		return ErrInvalidAmount
	case "date":
		return ErrInvalidDate
	default:
		return ErrInvalidPeriod
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrPatientNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
