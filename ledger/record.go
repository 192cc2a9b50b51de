/*
record.go - The monthly billing record and its recomputation rules

PURPOSE:
  One MonthlyRecord exists per (patient, month, year). Its derived fields
  (total, pending, carry-forward-to-next, net balance, status) are never
  stored as independent facts: they are recomputed from the seed fields
  every time a record is loaded or mutated.

CRITICAL INVARIANTS:
  1. TotalAmount     == MonthlyFees + OtherFees + CarryForwardFromPrevious
  2. AmountPending   == TotalAmount - AmountPaid (may be negative: credit)
  3. CarryForwardToNext == AmountPending
  4. NetBalance      == AmountPending (display mirror, never diverges)
  5. PaymentStatus   == DeriveStatus(TotalAmount, AmountPaid)

WHY RECOMPUTE?
  The payment ledger is the source of truth for AmountPaid. Deriving the
  rest on every touch means a crashed or retried write can never leave a
  record whose parts disagree - re-reading heals it.

SEE ALSO:
  - status.go: DeriveStatus
  - propagator.go: Moves CarryForwardToNext into the next period
*/
package ledger

import "time"

// MonthlyRecord is the billing ledger row for one patient and one period.
type MonthlyRecord struct {
	PatientID string
	Period    Period

	// Seed fields, fixed when the period is created (fees) or written by the
	// propagator (carry-forward).
	MonthlyFees              Money
	OtherFees                Money
	CarryForwardFromPrevious Money // signed: positive = debt, negative = credit

	// Cached projection of the payment ledger's sum for this period.
	AmountPaid Money

	// Derived fields, recomputed via Recompute().
	TotalAmount        Money
	AmountPending      Money
	CarryForwardToNext Money
	NetBalance         Money
	PaymentStatus      PaymentStatus

	// Informational only: last payment method used in the period.
	PaymentMethod string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recompute re-derives every dependent field from the seed fields. Call
// after any mutation of fees, carry-forward, or paid amount.
func (r *MonthlyRecord) Recompute() {
	r.TotalAmount = r.MonthlyFees.Add(r.OtherFees).Add(r.CarryForwardFromPrevious)
	r.AmountPending = r.TotalAmount.Sub(r.AmountPaid)
	r.CarryForwardToNext = r.AmountPending
	r.NetBalance = r.AmountPending
	r.PaymentStatus = DeriveStatus(r.TotalAmount, r.AmountPaid)
}

// NewMonthlyRecord seeds a record for a period from the patient's fee
// configuration. Carry-forward starts at zero; the propagator fills it in
// when the previous period closes with a balance.
func NewMonthlyRecord(patientID string, period Period, fees FeeConfig) MonthlyRecord {
	now := time.Now().UTC()
	r := MonthlyRecord{
		PatientID:                patientID,
		Period:                   period,
		MonthlyFees:              fees.MonthlyFees,
		OtherFees:                fees.OtherFees,
		CarryForwardFromPrevious: Zero(),
		AmountPaid:               Zero(),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	r.Recompute()
	return r
}
