/*
store.go - Persistence interfaces for the billing ledger

PURPOSE:
  Defines the interface between the domain logic and storage. Two
  implementations exist and are selected explicitly by the caller at
  construction time - never switched silently inside a data-access
  function:
    - store/sqlite:  durable, the single source of truth
    - ledger/store:  in-memory, used offline and in tests

KEY INTERFACES:
  MonthlyRecordStore: One row per (patient, month, year), unique on that key
  PaymentLedgerStore: Append-only payment log; sums are authoritative
  Repository:         Both stores plus transactional composition
  FeeSource:          Read-only view of the patient-management subsystem

APPEND-ONLY CONTRACT:
  PaymentLedgerStore has no update or delete. Corrections are new
  offsetting entries. The MonthlyRecord AmountPaid field is a cached
  projection of SumForPeriod, not the source of truth.

CONCURRENCY:
  The (patient_id, month, year) unique constraint makes GetOrCreate
  idempotent under concurrent creators: the second caller observes the
  first caller's row rather than erroring. WithTx gives the service the
  atomic unit it needs for payment application.
*/
package ledger

import "context"

// =============================================================================
// MONTHLY RECORD STORE
// =============================================================================

type MonthlyRecordStore interface {
	// GetOrCreate returns the existing record for the period, or creates one
	// seeded from fees with zero carry-forward and zero paid. Idempotent
	// under the unique (patient_id, month, year) constraint.
	GetOrCreate(ctx context.Context, patientID string, period Period, fees FeeConfig) (MonthlyRecord, error)

	// Get returns the record for the period, or ErrRecordNotFound.
	Get(ctx context.Context, patientID string, period Period) (MonthlyRecord, error)

	// ApplyCarryForward sets carry_forward_from_previous on the target
	// period's record, creating it from fees if absent. Derived fields are
	// recomputed. Must be called only by the CarryForwardPropagator.
	ApplyCarryForward(ctx context.Context, patientID string, period Period, amount Money, fees FeeConfig) error

	// RecordPaymentTotals updates the cached paid amount (and last payment
	// method) for an existing record. Fails with ErrRecordNotFound if no row
	// exists; callers must GetOrCreate first.
	RecordPaymentTotals(ctx context.Context, patientID string, period Period, amountPaid Money, method string) error

	// ListPeriod returns every patient's record for the period, ordered by
	// patient ID.
	ListPeriod(ctx context.Context, period Period) ([]MonthlyRecord, error)

	// PatientsWithRecords returns the IDs of patients holding a record for
	// the period. Used by the batch carry-forward check.
	PatientsWithRecords(ctx context.Context, period Period) ([]string, error)
}

// =============================================================================
// PAYMENT LEDGER STORE - Append-only
// =============================================================================

type PaymentLedgerStore interface {
	// AppendPayment persists a payment event. The record is immutable once
	// written. Rejects non-positive amounts with ErrInvalidAmount.
	AppendPayment(ctx context.Context, p PaymentRecord) error

	// SumForPeriod returns the sum of all payments attributed to the period.
	// This is the authoritative source for a record's AmountPaid.
	SumForPeriod(ctx context.Context, patientID string, period Period) (Money, error)

	// History returns all payments for a patient, most recent first.
	History(ctx context.Context, patientID string) ([]PaymentRecord, error)
}

// =============================================================================
// REPOSITORY - Stores plus transactional composition
// =============================================================================

// Repository combines both stores with an atomic execution scope. The
// service runs ensure/append/recompute/propagate for one payment inside a
// single WithTx call.
type Repository interface {
	MonthlyRecordStore
	PaymentLedgerStore

	// WithTx executes fn atomically. If fn returns an error, every write
	// made through the passed Repository is rolled back.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// =============================================================================
// FEE SOURCE - The patient-management collaborator
// =============================================================================

// FeeSource exposes the reads the ledger needs from the patient-management
// subsystem. The ledger never writes through it.
type FeeSource interface {
	// FeeConfig returns the recurring fee configuration for a patient.
	// ErrPatientNotFound for unknown IDs; ErrUpstreamUnavailable when the
	// subsystem cannot be reached (fees are never guessed).
	FeeConfig(ctx context.Context, patientID string) (FeeConfig, error)

	// ActivePatients returns all patients currently billed.
	ActivePatients(ctx context.Context) ([]Patient, error)
}
