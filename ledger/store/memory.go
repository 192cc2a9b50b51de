// Package store provides in-memory Repository and FeeSource implementations,
// used when the durable store is unreachable (offline queue) and in tests.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cliniva/billing-engine/ledger"
)

// =============================================================================
// MEMORY REPOSITORY
// =============================================================================

type recordKey struct {
	PatientID string
	Period    ledger.Period
}

type Memory struct {
	mu       sync.RWMutex
	txMu     sync.Mutex // serializes whole transactions
	records  map[recordKey]ledger.MonthlyRecord
	payments map[string][]ledger.PaymentRecord // by patient, append order
	patients map[string]ledger.Patient
}

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[recordKey]ledger.MonthlyRecord),
		payments: make(map[string][]ledger.PaymentRecord),
		patients: make(map[string]ledger.Patient),
	}
}

// SavePatient seeds the roster. Only used by callers wiring the memory
// store as both Repository and FeeSource.
func (m *Memory) SavePatient(p ledger.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

// =============================================================================
// MONTHLY RECORD STORE
// =============================================================================

func (m *Memory) GetOrCreate(_ context.Context, patientID string, period ledger.Period, fees ledger.FeeConfig) (ledger.MonthlyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(patientID, period, fees), nil
}

func (m *Memory) getOrCreateLocked(patientID string, period ledger.Period, fees ledger.FeeConfig) ledger.MonthlyRecord {
	k := recordKey{PatientID: patientID, Period: period}
	if rec, ok := m.records[k]; ok {
		return rec
	}
	rec := ledger.NewMonthlyRecord(patientID, period, fees)
	m.records[k] = rec
	return rec
}

func (m *Memory) Get(_ context.Context, patientID string, period ledger.Period) (ledger.MonthlyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey{PatientID: patientID, Period: period}]
	if !ok {
		return ledger.MonthlyRecord{}, ledger.ErrRecordNotFound
	}
	return rec, nil
}

func (m *Memory) ApplyCarryForward(_ context.Context, patientID string, period ledger.Period, amount ledger.Money, fees ledger.FeeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.getOrCreateLocked(patientID, period, fees)
	rec.CarryForwardFromPrevious = amount
	rec.UpdatedAt = time.Now().UTC()
	rec.Recompute()
	m.records[recordKey{PatientID: patientID, Period: period}] = rec
	return nil
}

func (m *Memory) RecordPaymentTotals(_ context.Context, patientID string, period ledger.Period, amountPaid ledger.Money, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := recordKey{PatientID: patientID, Period: period}
	rec, ok := m.records[k]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	rec.AmountPaid = amountPaid
	if method != "" {
		rec.PaymentMethod = method
	}
	rec.UpdatedAt = time.Now().UTC()
	rec.Recompute()
	m.records[k] = rec
	return nil
}

func (m *Memory) ListPeriod(_ context.Context, period ledger.Period) ([]ledger.MonthlyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []ledger.MonthlyRecord
	for k, rec := range m.records {
		if k.Period.Equal(period) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PatientID < records[j].PatientID
	})
	return records, nil
}

func (m *Memory) PatientsWithRecords(_ context.Context, period ledger.Period) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for k := range m.records {
		if k.Period.Equal(period) {
			ids = append(ids, k.PatientID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// PAYMENT LEDGER STORE - Append-only
// =============================================================================

func (m *Memory) AppendPayment(_ context.Context, p ledger.PaymentRecord) error {
	if !p.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.PatientID] = append(m.payments[p.PatientID], p)
	return nil
}

func (m *Memory) SumForPeriod(_ context.Context, patientID string, period ledger.Period) (ledger.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := ledger.Zero()
	for _, p := range m.payments[patientID] {
		if p.Period.Equal(period) {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) History(_ context.Context, patientID string) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]ledger.PaymentRecord, len(m.payments[patientID]))
	copy(history, m.payments[patientID])
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	return history, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore
// =============================================================================

// WithTx simulates atomicity with a snapshot: on error every write made
// inside fn is rolled back. The mutex serializes transactions, which also
// gives the (patient, period) key its single-writer guarantee.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make(map[recordKey]ledger.MonthlyRecord, len(m.records))
	for k, v := range m.records {
		recs[k] = v
	}
	pays := make(map[string][]ledger.PaymentRecord, len(m.payments))
	for k, v := range m.payments {
		pays[k] = append([]ledger.PaymentRecord{}, v...)
	}
	return memorySnapshot{records: recs, payments: pays}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = s.records
	m.payments = s.payments
}

type memorySnapshot struct {
	records  map[recordKey]ledger.MonthlyRecord
	payments map[string][]ledger.PaymentRecord
}

// txView routes Repository calls back to the parent while a transaction
// holds txMu.
type txView struct {
	parent *Memory
}

func (tv *txView) GetOrCreate(ctx context.Context, patientID string, period ledger.Period, fees ledger.FeeConfig) (ledger.MonthlyRecord, error) {
	return tv.parent.GetOrCreate(ctx, patientID, period, fees)
}

func (tv *txView) Get(ctx context.Context, patientID string, period ledger.Period) (ledger.MonthlyRecord, error) {
	return tv.parent.Get(ctx, patientID, period)
}

func (tv *txView) ApplyCarryForward(ctx context.Context, patientID string, period ledger.Period, amount ledger.Money, fees ledger.FeeConfig) error {
	return tv.parent.ApplyCarryForward(ctx, patientID, period, amount, fees)
}

func (tv *txView) RecordPaymentTotals(ctx context.Context, patientID string, period ledger.Period, amountPaid ledger.Money, method string) error {
	return tv.parent.RecordPaymentTotals(ctx, patientID, period, amountPaid, method)
}

func (tv *txView) ListPeriod(ctx context.Context, period ledger.Period) ([]ledger.MonthlyRecord, error) {
	return tv.parent.ListPeriod(ctx, period)
}

func (tv *txView) PatientsWithRecords(ctx context.Context, period ledger.Period) ([]string, error) {
	return tv.parent.PatientsWithRecords(ctx, period)
}

func (tv *txView) AppendPayment(ctx context.Context, p ledger.PaymentRecord) error {
	return tv.parent.AppendPayment(ctx, p)
}

func (tv *txView) SumForPeriod(ctx context.Context, patientID string, period ledger.Period) (ledger.Money, error) {
	return tv.parent.SumForPeriod(ctx, patientID, period)
}

func (tv *txView) History(ctx context.Context, patientID string) ([]ledger.PaymentRecord, error) {
	return tv.parent.History(ctx, patientID)
}

func (tv *txView) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	// Already inside a transaction; run in place.
	return fn(tv)
}

// =============================================================================
// FEE SOURCE
// =============================================================================

func (m *Memory) FeeConfig(_ context.Context, patientID string) (ledger.FeeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[patientID]
	if !ok {
		return ledger.FeeConfig{}, ledger.ErrPatientNotFound
	}
	return p.Fees, nil
}

func (m *Memory) ActivePatients(_ context.Context) ([]ledger.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var patients []ledger.Patient
	for _, p := range m.patients {
		if p.Active {
			patients = append(patients, p)
		}
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].ID < patients[j].ID })
	return patients, nil
}
