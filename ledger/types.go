/*
Package ledger implements the patient monthly billing ledger.

PURPOSE:
  This package contains the domain types and algorithms for period-based
  patient billing: monthly records with recurring fees, an append-only
  payment log, carry-forward of unpaid (or overpaid) balances into the
  following month, and a derived payment status per period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - PaymentRecord: An immutable payment event
  - FeeConfig / Patient: Read-only billing configuration from the
    patient-management subsystem

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors;
     equality checks use a currency epsilon (0.01)
  2. Single parse point: amounts arriving over the wire (number or string)
     are parsed into Money exactly once at the boundary
  3. Immutability: PaymentRecords are never modified; corrections are
     offsetting entries, not edits
  4. Derived state: paid/pending/status on a monthly record are always
     recomputed from their inputs, never trusted from storage

SEE ALSO:
  - record.go: MonthlyRecord and its recomputation rules
  - status.go: Payment status derivation
  - store.go: Persistence interfaces
*/
package ledger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount with epsilon-aware comparison
// =============================================================================

// epsilon is the currency-scale tolerance for equality checks. Two amounts
// closer than one cent are considered equal.
var epsilon = decimal.NewFromFloat(0.01)

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func Zero() Money { return Money{Value: decimal.Zero} }

// ParseMoney parses a textual amount. Rejects anything that is not a finite
// decimal number.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a valid amount", ErrInvalidAmount, s)
	}
	return Money{Value: d}, nil
}

func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)} }

// Equal reports whether two amounts are the same within the currency epsilon.
func (m Money) Equal(o Money) bool { return m.Value.Sub(o.Value).Abs().LessThan(epsilon) }

// GreaterThan reports m > o by more than the currency epsilon.
func (m Money) GreaterThan(o Money) bool { return m.Value.Sub(o.Value).GreaterThanOrEqual(epsilon) }

// LessThan reports m < o by more than the currency epsilon.
func (m Money) LessThan(o Money) bool { return o.Value.Sub(m.Value).GreaterThanOrEqual(epsilon) }

func (m Money) IsZero() bool     { return m.Value.Abs().LessThan(epsilon) }
func (m Money) IsPositive() bool { return m.Value.GreaterThanOrEqual(epsilon) }
func (m Money) IsNegative() bool { return m.Value.LessThanOrEqual(epsilon.Neg()) }

func (m Money) Float64() float64 { return m.Value.InexactFloat64() }
func (m Money) String() string   { return m.Value.StringFixed(2) }

// UnmarshalJSON accepts the amount as either a JSON number or a JSON string.
// Dashboard clients historically sent both; the value is parsed here exactly
// once and every consumer downstream works with Money.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Value = decimal.Zero
		return nil
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	m.Value = parsed.Value
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Value.StringFixed(2)), nil
}

// =============================================================================
// PAYMENT RECORD - Append-only payment event
// =============================================================================

type PaymentRecord struct {
	ID        string
	PatientID string
	Date      time.Time // normalized payment date
	Period    Period    // period the payment is attributed to
	Amount    Money     // strictly positive
	Method    string
	Notes     string
	CreatedAt time.Time // immutable once written
}

// =============================================================================
// FEE CONFIGURATION - Owned by the patient-management subsystem
// =============================================================================

// FeeConfig is the recurring billing configuration for one patient. The
// ledger consumes it read-only when seeding a new period.
type FeeConfig struct {
	MonthlyFees Money
	OtherFees   Money
}

// Patient is the slice of the patient entity the billing subsystem needs.
type Patient struct {
	ID         string
	Name       string
	Fees       FeeConfig
	Active     bool
	AdmittedAt time.Time
}
