/*
propagator.go - Carry-forward propagation between adjacent periods

PURPOSE:
  Pushes a period's pending balance (debt or credit) into the next calendar
  period's carry_forward_from_previous, and re-derives that period if it
  already exists.

ONE HOP ONLY:
  Propagation moves exactly one period forward per invocation. A balance
  reaches a third period only when the second period's own processing runs
  propagation again - the design recomputes lazily as each period is
  touched instead of eagerly cascading across the future.

IDEMPOTENCE:
  The target's carry-forward is SET, not incremented. Propagating twice
  with an unchanged pending balance leaves the next period byte-for-byte
  unchanged.
*/
package ledger

import "context"

// CarryForwardPropagator moves a period's remainder into the next period.
type CarryForwardPropagator struct {
	repo Repository
	fees FeeSource
}

func NewCarryForwardPropagator(repo Repository, fees FeeSource) *CarryForwardPropagator {
	return &CarryForwardPropagator{repo: repo, fees: fees}
}

// Propagate writes the source period's pending balance into the next
// period's carry_forward_from_previous. The pending balance is recomputed
// from the payment ledger sum, never trusted from the cached row.
func (cp *CarryForwardPropagator) Propagate(ctx context.Context, patientID string, period Period) error {
	rec, err := cp.repo.Get(ctx, patientID, period)
	if err != nil {
		// No record means the period was never billed or paid against;
		// there is nothing to carry.
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	paid, err := cp.repo.SumForPeriod(ctx, patientID, period)
	if err != nil {
		return err
	}
	rec.AmountPaid = paid
	rec.Recompute()

	// When the repository itself can serve fee reads (a transactional view
	// does), use it so the lookup shares the transaction.
	source := cp.fees
	if fs, ok := cp.repo.(FeeSource); ok {
		source = fs
	}
	fees, err := source.FeeConfig(ctx, patientID)
	if err != nil {
		return err
	}

	return cp.repo.ApplyCarryForward(ctx, patientID, period.Next(), rec.CarryForwardToNext, fees)
}
