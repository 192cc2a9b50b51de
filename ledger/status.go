package ledger

// =============================================================================
// PAYMENT STATUS - Derived label for a period's paid-vs-due relationship
// =============================================================================

// PaymentStatus summarizes how much of a period's total has been paid.
// It is always derived from (total, paid); callers never set it directly.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"   // nothing paid, balance due
	StatusPartial   PaymentStatus = "partial"   // some paid, some due
	StatusCompleted PaymentStatus = "completed" // paid in full (or nothing owed)
	StatusOverpaid  PaymentStatus = "overpaid"  // paid more than due
)

// DeriveStatus maps (total due, amount paid) to a payment status.
//
// All comparisons use the currency epsilon so that floating-point noise on
// the boundary (paid == total) still reads as completed.
//
//	paid <= 0, total >  0  -> pending
//	0 < paid < total       -> partial
//	paid == total          -> completed
//	paid >  total          -> overpaid
//	total <= 0, paid <= 0  -> completed (nothing owed)
func DeriveStatus(total, paid Money) PaymentStatus {
	zero := Zero()

	if !total.IsPositive() {
		// Nothing owed this period. Any positive payment is an overpayment.
		if paid.IsPositive() {
			return StatusOverpaid
		}
		return StatusCompleted
	}

	switch {
	case !paid.GreaterThan(zero):
		return StatusPending
	case paid.Equal(total):
		return StatusCompleted
	case paid.GreaterThan(total):
		return StatusOverpaid
	default:
		return StatusPartial
	}
}
