/*
service.go - Billing ledger orchestration

PURPOSE:
  The Service is the single entry point for every ledger mutation. It
  validates input at the boundary, resolves the target period, and runs
  the ensure/append/recompute/propagate sequence for a payment as one
  atomic unit against the Repository.

STATE MACHINE:
  Per (patient, period) the states are the payment statuses. Transitions
  are driven only by RecordPayment and period rollover (EnsurePeriod /
  CheckCarryForward), all idempotent with respect to identical inputs.

CONCURRENCY:
  The serialization domain is (patient_id, month, year). Two concurrent
  payments for the same key are safe because AmountPaid is recomputed from
  the payment ledger sum inside the transaction rather than incremented.
  On a write conflict the service retries the whole unit once before
  surfacing ErrConcurrencyConflict.

ERROR POLICY:
  Validation failures abort before any store mutation. A store failure
  inside the atomic unit rolls back the whole payment; callers never see a
  partially-applied payment.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	repo      Repository
	fees      FeeSource
	normalize DateNormalizer
	log       zerolog.Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithDateNormalizer replaces the default date normalizer.
func WithDateNormalizer(n DateNormalizer) Option {
	return func(s *Service) { s.normalize = n }
}

// WithLogger attaches a logger. The zero logger is silent.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock replaces the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the orchestration layer. The repository choice (durable
// vs offline) is made here by the caller and nowhere else.
func NewService(repo Repository, fees FeeSource, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		fees:      fees,
		normalize: NormalizeDate,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// PERIOD LIFECYCLE
// =============================================================================

// EnsurePeriod resolves the patient's fee configuration and returns the
// period's record, creating it if absent. Safe to call repeatedly.
func (s *Service) EnsurePeriod(ctx context.Context, patientID string, period Period) (MonthlyRecord, error) {
	fees, err := s.fees.FeeConfig(ctx, patientID)
	if err != nil {
		return MonthlyRecord{}, err
	}
	return s.repo.GetOrCreate(ctx, patientID, period, fees)
}

// MaterializePeriod creates the period's record for every active patient.
// Re-running changes nothing. Returns the number of patients processed.
func (s *Service) MaterializePeriod(ctx context.Context, period Period) (int, error) {
	patients, err := s.fees.ActivePatients(ctx)
	if err != nil {
		return 0, err
	}

	for _, p := range patients {
		if _, err := s.repo.GetOrCreate(ctx, p.ID, period, p.Fees); err != nil {
			return 0, err
		}
	}

	s.log.Info().Str("period", period.String()).Int("patients", len(patients)).
		Msg("materialized monthly records")
	return len(patients), nil
}

// =============================================================================
// PAYMENT APPLICATION
// =============================================================================

// PaymentRequest is the validated-once input for RecordPayment.
type PaymentRequest struct {
	PatientID string
	Amount    Money
	Method    string
	Notes     string

	// Date is the raw payment date; empty means "today".
	Date string

	// Month/Year explicitly attribute the payment to a period. When zero,
	// the period is resolved from the normalized date.
	Month int
	Year  int
}

// PaymentResult is what a successful RecordPayment returns: the appended
// payment and the period's record after recomputation.
type PaymentResult struct {
	Payment PaymentRecord
	Record  MonthlyRecord
}

// RecordPayment applies one payment:
//
//  1. Validate amount and date (no state change on failure)
//  2. Resolve the target period
//  3. Ensure the period's record exists
//  4. Append to the payment ledger
//  5. Recompute the record's paid total from the ledger sum
//  6. Propagate the new pending balance into the next period
//
// Steps 3-6 run inside one repository transaction, retried once on a write
// conflict.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	if req.PatientID == "" {
		return PaymentResult{}, &InvalidInputError{Field: "patient_id", Reason: "is required"}
	}
	if !req.Amount.IsPositive() {
		return PaymentResult{}, &InvalidInputError{Field: "amount", Reason: "must be positive"}
	}

	date := s.now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		var err error
		date, err = s.normalize(req.Date)
		if err != nil {
			return PaymentResult{}, err
		}
	}

	period := PeriodOf(date)
	if req.Month != 0 || req.Year != 0 {
		var err error
		period, err = NewPeriod(req.Month, req.Year)
		if err != nil {
			return PaymentResult{}, err
		}
	}

	fees, err := s.fees.FeeConfig(ctx, req.PatientID)
	if err != nil {
		return PaymentResult{}, err
	}

	payment := PaymentRecord{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		Date:      date,
		Period:    period,
		Amount:    req.Amount,
		Method:    req.Method,
		Notes:     req.Notes,
		CreatedAt: s.now().UTC(),
	}

	var result PaymentResult
	apply := func(repo Repository) error {
		if _, err := repo.GetOrCreate(ctx, req.PatientID, period, fees); err != nil {
			return err
		}
		if err := repo.AppendPayment(ctx, payment); err != nil {
			return err
		}

		paid, err := repo.SumForPeriod(ctx, req.PatientID, period)
		if err != nil {
			return err
		}
		if err := repo.RecordPaymentTotals(ctx, req.PatientID, period, paid, req.Method); err != nil {
			return err
		}

		propagator := NewCarryForwardPropagator(repo, s.fees)
		if err := propagator.Propagate(ctx, req.PatientID, period); err != nil {
			return err
		}

		rec, err := repo.Get(ctx, req.PatientID, period)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: payment, Record: rec}
		return nil
	}

	err = s.repo.WithTx(ctx, apply)
	if IsRetryable(err) {
		s.log.Warn().Str("patient", req.PatientID).Str("period", period.String()).
			Msg("payment write conflict, retrying")
		err = s.repo.WithTx(ctx, apply)
	}
	if err != nil {
		return PaymentResult{}, err
	}

	s.log.Info().Str("patient", req.PatientID).Str("period", period.String()).
		Str("amount", req.Amount.String()).Str("status", string(result.Record.PaymentStatus)).
		Msg("payment recorded")
	return result, nil
}

// History returns a patient's payments, most recent first.
func (s *Service) History(ctx context.Context, patientID string) ([]PaymentRecord, error) {
	if patientID == "" {
		return nil, &InvalidInputError{Field: "patient_id", Reason: "is required"}
	}
	return s.repo.History(ctx, patientID)
}

// =============================================================================
// PERIOD LISTING
// =============================================================================

// PeriodSummary is the paginated listing of a period plus aggregates.
type PeriodSummary struct {
	Period        Period
	Records       []MonthlyRecord
	TotalPatients int
	TotalDue      Money
	TotalPaid     Money
	TotalPending  Money
	StatusCounts  map[PaymentStatus]int
	Page          int
	PageSize      int
}

// ListPeriod returns every patient's record for the period with aggregate
// totals. For the current or a past period, records missing for active
// patients with due fees are created first so the listing is complete.
func (s *Service) ListPeriod(ctx context.Context, period Period, page, pageSize int) (PeriodSummary, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	if !PeriodOf(s.now().UTC()).Before(period) {
		patients, err := s.fees.ActivePatients(ctx)
		if err != nil {
			return PeriodSummary{}, err
		}
		for _, p := range patients {
			if !p.Fees.MonthlyFees.IsPositive() && !p.Fees.OtherFees.IsPositive() {
				continue
			}
			if _, err := s.repo.GetOrCreate(ctx, p.ID, period, p.Fees); err != nil {
				return PeriodSummary{}, err
			}
		}
	}

	records, err := s.repo.ListPeriod(ctx, period)
	if err != nil {
		return PeriodSummary{}, err
	}

	summary := PeriodSummary{
		Period:        period,
		TotalPatients: len(records),
		TotalDue:      Zero(),
		TotalPaid:     Zero(),
		TotalPending:  Zero(),
		StatusCounts:  make(map[PaymentStatus]int),
		Page:          page,
		PageSize:      pageSize,
	}
	for _, r := range records {
		summary.TotalDue = summary.TotalDue.Add(r.TotalAmount)
		summary.TotalPaid = summary.TotalPaid.Add(r.AmountPaid)
		summary.TotalPending = summary.TotalPending.Add(r.AmountPending)
		summary.StatusCounts[r.PaymentStatus]++
	}

	start := (page - 1) * pageSize
	if start >= len(records) {
		summary.Records = []MonthlyRecord{}
		return summary, nil
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	summary.Records = records[start:end]
	return summary, nil
}

// =============================================================================
// BATCH CARRY-FORWARD
// =============================================================================

// CheckCarryForward materializes a billing period in bulk: for every
// patient with a record in the previous period, the previous period's
// pending balance is propagated into the given one. Idempotent; each
// patient is its own atomic unit. Returns the number of patients
// propagated.
func (s *Service) CheckCarryForward(ctx context.Context, period Period) (int, error) {
	previous := period.Previous()

	patients, err := s.repo.PatientsWithRecords(ctx, previous)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, patientID := range patients {
		err := s.repo.WithTx(ctx, func(repo Repository) error {
			propagator := NewCarryForwardPropagator(repo, s.fees)
			return propagator.Propagate(ctx, patientID, previous)
		})
		if err != nil {
			return count, err
		}
		count++
	}

	s.log.Info().Str("period", period.String()).Int("patients", count).
		Msg("carry-forward check complete")
	return count, nil
}
