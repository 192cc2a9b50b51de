package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliniva/billing-engine/ledger"
	memstore "github.com/cliniva/billing-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*ledger.Service, *memstore.Memory) {
	t.Helper()
	repo := memstore.NewMemory()

	repo.SavePatient(ledger.Patient{
		ID:     "pat-1",
		Name:   "Amina Khalid",
		Fees:   ledger.FeeConfig{MonthlyFees: ledger.NewMoneyFromInt(100), OtherFees: ledger.NewMoneyFromInt(20)},
		Active: true,
	})
	repo.SavePatient(ledger.Patient{
		ID:     "pat-2",
		Name:   "Omar Said",
		Fees:   ledger.FeeConfig{MonthlyFees: ledger.NewMoneyFromInt(200), OtherFees: ledger.Zero()},
		Active: true,
	})
	repo.SavePatient(ledger.Patient{
		ID:     "pat-3",
		Name:   "Discharged Patient",
		Fees:   ledger.FeeConfig{MonthlyFees: ledger.NewMoneyFromInt(100), OtherFees: ledger.Zero()},
		Active: false,
	})

	fixedNow := time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)
	svc := ledger.NewService(repo, repo, ledger.WithClock(func() time.Time { return fixedNow }))
	return svc, repo
}

func mustPeriod(t *testing.T, month, year int) ledger.Period {
	t.Helper()
	p, err := ledger.NewPeriod(month, year)
	require.NoError(t, err)
	return p
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestRecordPayment_RejectsInvalidInput(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "", Amount: ledger.NewMoneyFromInt(50),
	})
	assert.True(t, ledger.IsClientError(err), "missing patient id is a client error")

	_, err = svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.Zero(),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(-50),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(50), Date: "not-a-date",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)

	// Nothing was written on any of the failures.
	history, err := repo.History(ctx, "pat-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordPayment_UnknownPatient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordPayment(context.Background(), ledger.PaymentRequest{
		PatientID: "pat-missing", Amount: ledger.NewMoneyFromInt(50),
	})
	assert.ErrorIs(t, err, ledger.ErrPatientNotFound)
}

// =============================================================================
// PAYMENT SCENARIOS
// =============================================================================

func TestRecordPayment_ExactPaymentCompletes(t *testing.T) {
	// GIVEN: A March record with 120 total due (100 monthly + 20 other)
	// WHEN: The patient pays exactly 120
	// THEN: Status is completed, pending is zero, nothing carries forward

	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1",
		Amount:    ledger.NewMoneyFromInt(120),
		Method:    "cash",
		Date:      "2025-03-10",
	})
	require.NoError(t, err)

	rec := result.Record
	assert.True(t, rec.TotalAmount.Equal(ledger.NewMoneyFromInt(120)))
	assert.True(t, rec.AmountPaid.Equal(ledger.NewMoneyFromInt(120)))
	assert.True(t, rec.AmountPending.IsZero())
	assert.True(t, rec.CarryForwardToNext.IsZero())
	assert.Equal(t, ledger.StatusCompleted, rec.PaymentStatus)
	assert.Equal(t, "cash", rec.PaymentMethod)
	assert.NotEmpty(t, result.Payment.ID)
}

func TestRecordPayment_PartialPaymentsAccumulate(t *testing.T) {
	// GIVEN: A March record with 120 total due
	// WHEN: The patient pays 50, then 70, in separate requests
	// THEN: Paid accumulates through the ledger sum; status moves
	//       partial -> completed

	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(50), Date: "2025-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartial, first.Record.PaymentStatus)
	assert.True(t, first.Record.AmountPending.Equal(ledger.NewMoneyFromInt(70)))

	second, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(70), Date: "2025-03-18",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, second.Record.PaymentStatus)
	assert.True(t, second.Record.AmountPaid.Equal(ledger.NewMoneyFromInt(120)))
	assert.True(t, second.Record.AmountPending.IsZero())

	history, err := repo.History(ctx, "pat-1")
	require.NoError(t, err)
	assert.Len(t, history, 2, "every payment is its own ledger entry")
}

func TestRecordPayment_UnpaidBalanceCarriesForward(t *testing.T) {
	// GIVEN: A March record with 120 due and only 70 paid
	// WHEN: The payment is recorded
	// THEN: April's record exists with carry_forward_from_previous = 50
	//       and its own fees on top

	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(70), Date: "2025-03-10",
	})
	require.NoError(t, err)

	april, err := repo.Get(ctx, "pat-1", mustPeriod(t, 4, 2025))
	require.NoError(t, err)

	assert.True(t, april.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(50)))
	assert.True(t, april.TotalAmount.Equal(ledger.NewMoneyFromInt(170)), "100+20 fees plus 50 debt")
	assert.Equal(t, ledger.StatusPending, april.PaymentStatus)
}

func TestRecordPayment_OverpaymentBecomesCredit(t *testing.T) {
	// GIVEN: A March record with 120 due
	// WHEN: The patient pays 150
	// THEN: March is overpaid with -30 pending; April's total is reduced
	//       by the credit

	svc, repo := newTestService(t)
	ctx := context.Background()

	result, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(150), Date: "2025-03-10",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusOverpaid, result.Record.PaymentStatus)
	assert.True(t, result.Record.AmountPending.Equal(ledger.NewMoneyFromInt(-30)))

	april, err := repo.Get(ctx, "pat-1", mustPeriod(t, 4, 2025))
	require.NoError(t, err)
	assert.True(t, april.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(-30)))
	assert.True(t, april.TotalAmount.Equal(ledger.NewMoneyFromInt(90)), "120 fees minus 30 credit")
}

func TestRecordPayment_ExplicitPeriodOverridesDate(t *testing.T) {
	// A payment dated in March but explicitly attributed to February lands
	// on the February record.

	svc, repo := newTestService(t)
	ctx := context.Background()

	result, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1",
		Amount:    ledger.NewMoneyFromInt(40),
		Date:      "2025-03-10",
		Month:     2,
		Year:      2025,
	})
	require.NoError(t, err)
	assert.True(t, result.Record.Period.Equal(mustPeriod(t, 2, 2025)))

	feb, err := repo.Get(ctx, "pat-1", mustPeriod(t, 2, 2025))
	require.NoError(t, err)
	assert.True(t, feb.AmountPaid.Equal(ledger.NewMoneyFromInt(40)))

	// The payment record keeps both the real date and the attribution.
	history, err := repo.History(ctx, "pat-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), history[0].Date)
	assert.True(t, history[0].Period.Equal(mustPeriod(t, 2, 2025)))
}

func TestRecordPayment_DefaultsToToday(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.RecordPayment(context.Background(), ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(10),
	})
	require.NoError(t, err)
	// The injected clock says March 2025.
	assert.True(t, result.Record.Period.Equal(mustPeriod(t, 3, 2025)))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRecordPayment_ConcurrentPaymentsBothCount(t *testing.T) {
	// GIVEN: Two callers paying the same patient and period at once
	// WHEN: Both payments are recorded concurrently
	// THEN: Both land in the payment ledger and the record's paid amount
	//       equals their sum - no lost update

	svc, repo := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	amounts := []int{50, 70}
	for i, amount := range amounts {
		wg.Add(1)
		go func(i, amount int) {
			defer wg.Done()
			_, errs[i] = svc.RecordPayment(ctx, ledger.PaymentRequest{
				PatientID: "pat-1",
				Amount:    ledger.NewMoneyFromInt(amount),
				Date:      "2025-03-10",
			})
		}(i, amount)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	rec, err := repo.Get(ctx, "pat-1", mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.True(t, rec.AmountPaid.Equal(ledger.NewMoneyFromInt(120)))
	assert.Equal(t, ledger.StatusCompleted, rec.PaymentStatus)

	history, err := repo.History(ctx, "pat-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// conflictRepo wraps a working Repository and fails the first N WithTx
// calls with a write conflict before letting the real transaction run.
type conflictRepo struct {
	ledger.Repository
	conflicts int
	calls     int
}

func (c *conflictRepo) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	c.calls++
	if c.calls <= c.conflicts {
		return ledger.ErrConcurrencyConflict
	}
	return c.Repository.WithTx(ctx, fn)
}

func TestRecordPayment_RetriesOnceOnConflict(t *testing.T) {
	// GIVEN: The first transaction attempt hits a write conflict
	// WHEN: The payment is recorded
	// THEN: The whole unit is retried once and the payment lands

	_, repo := newTestService(t)
	conflicting := &conflictRepo{Repository: repo, conflicts: 1}
	svc := ledger.NewService(conflicting, repo,
		ledger.WithClock(func() time.Time { return time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC) }))

	result, err := svc.RecordPayment(context.Background(), ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(120), Date: "2025-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, conflicting.calls, "one failed attempt plus one retry")
	assert.Equal(t, ledger.StatusCompleted, result.Record.PaymentStatus)

	history, err := repo.History(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "the payment is applied exactly once")
}

func TestRecordPayment_SecondConflictSurfaces(t *testing.T) {
	// GIVEN: Both the first attempt and the retry hit a write conflict
	// WHEN: The payment is recorded
	// THEN: The caller sees a single conflict error and nothing was written

	_, repo := newTestService(t)
	conflicting := &conflictRepo{Repository: repo, conflicts: 2}
	svc := ledger.NewService(conflicting, repo)

	_, err := svc.RecordPayment(context.Background(), ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(120), Date: "2025-03-10",
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.Equal(t, 2, conflicting.calls, "exactly one retry, not a loop")

	history, err := repo.History(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Empty(t, history, "no partial write on failure")

	_, err = repo.Get(context.Background(), "pat-1", mustPeriod(t, 3, 2025))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

// =============================================================================
// CARRY-FORWARD PROPAGATION
// =============================================================================

func TestPropagate_IsIdempotent(t *testing.T) {
	// Propagating an unchanged period twice leaves the next period's
	// carry-forward identical: it is set, never incremented.

	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(70), Date: "2025-03-10",
	})
	require.NoError(t, err)

	propagator := ledger.NewCarryForwardPropagator(repo, repo)
	require.NoError(t, propagator.Propagate(ctx, "pat-1", mustPeriod(t, 3, 2025)))
	require.NoError(t, propagator.Propagate(ctx, "pat-1", mustPeriod(t, 3, 2025)))

	april, err := repo.Get(ctx, "pat-1", mustPeriod(t, 4, 2025))
	require.NoError(t, err)
	assert.True(t, april.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(50)))
}

func TestPropagate_MissingSourcePeriodIsNoOp(t *testing.T) {
	svc, repo := newTestService(t)
	_ = svc

	propagator := ledger.NewCarryForwardPropagator(repo, repo)
	err := propagator.Propagate(context.Background(), "pat-1", mustPeriod(t, 1, 2025))
	assert.NoError(t, err, "a period never billed has nothing to carry")

	_, err = repo.Get(context.Background(), "pat-1", mustPeriod(t, 2, 2025))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound, "no target row is created")
}

func TestCheckCarryForward_PropagatesAllPatients(t *testing.T) {
	// GIVEN: Two patients with unpaid February records
	// WHEN: The March carry-forward check runs
	// THEN: Both March records carry the February debt; re-running changes
	//       nothing

	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(20), Date: "2025-02-10",
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-2", Amount: ledger.NewMoneyFromInt(150), Date: "2025-02-12",
	})
	require.NoError(t, err)

	count, err := svc.CheckCarryForward(ctx, mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mar1, err := repo.Get(ctx, "pat-1", mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.True(t, mar1.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(100)), "120 due minus 20 paid")

	mar2, err := repo.Get(ctx, "pat-2", mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.True(t, mar2.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(50)), "200 due minus 150 paid")

	again, err := svc.CheckCarryForward(ctx, mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.Equal(t, 2, again)

	mar1Again, err := repo.Get(ctx, "pat-1", mustPeriod(t, 3, 2025))
	require.NoError(t, err)
	assert.True(t, mar1Again.CarryForwardFromPrevious.Equal(mar1.CarryForwardFromPrevious))
}

// =============================================================================
// PERIOD LISTING AND MATERIALIZATION
// =============================================================================

func TestMaterializePeriod_CreatesRowsForActivePatients(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	march := mustPeriod(t, 3, 2025)

	count, err := svc.MaterializePeriod(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "inactive patients are skipped")

	records, err := repo.ListPeriod(ctx, march)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "pat-1", records[0].PatientID)
	assert.Equal(t, ledger.StatusPending, records[0].PaymentStatus)

	// Re-running is a no-op.
	count, err = svc.MaterializePeriod(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	records, err = repo.ListPeriod(ctx, march)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListPeriod_AggregatesAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	march := mustPeriod(t, 3, 2025)

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(120), Date: "2025-03-10",
	})
	require.NoError(t, err)

	summary, err := svc.ListPeriod(ctx, march, 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalPatients, "active patients are materialized for the listing")
	assert.True(t, summary.TotalDue.Equal(ledger.NewMoneyFromInt(320)), "120 + 200")
	assert.True(t, summary.TotalPaid.Equal(ledger.NewMoneyFromInt(120)))
	assert.True(t, summary.TotalPending.Equal(ledger.NewMoneyFromInt(200)))
	assert.Equal(t, 1, summary.StatusCounts[ledger.StatusCompleted])
	assert.Equal(t, 1, summary.StatusCounts[ledger.StatusPending])

	// Page past the end is empty but keeps the aggregates.
	page2, err := svc.ListPeriod(ctx, march, 2, 50)
	require.NoError(t, err)
	assert.Empty(t, page2.Records)
	assert.Equal(t, 2, page2.TotalPatients)

	// Page size 1 splits the listing.
	small, err := svc.ListPeriod(ctx, march, 1, 1)
	require.NoError(t, err)
	require.Len(t, small.Records, 1)
	assert.Equal(t, "pat-1", small.Records[0].PatientID)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_MostRecentFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(30), Date: "2025-03-05",
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, ledger.PaymentRequest{
		PatientID: "pat-1", Amount: ledger.NewMoneyFromInt(40), Date: "2025-03-15",
	})
	require.NoError(t, err)

	history, err := svc.History(ctx, "pat-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].CreatedAt.Before(history[1].CreatedAt))

	_, err = svc.History(ctx, "")
	assert.True(t, ledger.IsClientError(err))
}
