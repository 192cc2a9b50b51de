/*
Package sqlite provides the durable Repository and FeeSource backed by SQLite.

PURPOSE:
  Implements ledger.Repository (monthly records + payment log) and
  ledger.FeeSource (patient roster reads). The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  monthly_records:  One row per (patient_id, month, year); the PRIMARY KEY on
                    that triple enforces single-row semantics. Only seed
                    fields are stored - total/pending/status are recomputed
                    on every read from their inputs, so stored state can
                    never disagree with itself.
  payments:         Append-only payment log, indexed by patient and date.
                    No UPDATE, no DELETE; corrections are offsetting entries.
  patients:         Fee configuration, consumed read-only by the ledger.

IDEMPOTENT CREATION:
  GetOrCreate uses INSERT ... ON CONFLICT DO NOTHING followed by a SELECT:
  concurrent creators race harmlessly and both observe the same row.

CONCURRENCY:
  SQLite is opened in WAL mode (readers don't block). A busy/locked error is
  surfaced as ErrConcurrencyConflict so the service can retry the unit.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cliniva/billing-engine/ledger"
)

// Store implements ledger.Repository and ledger.FeeSource using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		// A plain :memory: DSN gives every pooled connection its own empty
		// database; a named shared-cache database keeps them on one.
		dsn = fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Patient roster (fee configuration; owned by patient management)
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		monthly_fees TEXT NOT NULL DEFAULT '0',
		other_fees TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		admitted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_patients_active
		ON patients(active);

	-- Monthly ledger rows; the PRIMARY KEY is the serialization domain.
	-- Derived fields (total, pending, status) are intentionally absent.
	CREATE TABLE IF NOT EXISTS monthly_records (
		patient_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		monthly_fees TEXT NOT NULL DEFAULT '0',
		other_fees TEXT NOT NULL DEFAULT '0',
		carry_forward_from_previous TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		payment_method TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (patient_id, month, year)
	);

	CREATE INDEX IF NOT EXISTS idx_monthly_records_period
		ON monthly_records(year, month);

	-- Payments (append-only log). No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		paid_on TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		method TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_patient_date
		ON payments(patient_id, paid_on DESC);

	-- Period sum is the hot path for recomputation
	CREATE INDEX IF NOT EXISTS idx_payments_patient_period
		ON payments(patient_id, year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every operation can run
// standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// MONTHLY RECORD STORE (ledger.MonthlyRecordStore interface)
// =============================================================================

// GetOrCreate returns the period's record, creating it if absent.
func (s *Store) GetOrCreate(ctx context.Context, patientID string, period ledger.Period, fees ledger.FeeConfig) (ledger.MonthlyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(ctx, s.db, patientID, period, fees)
}

func (s *Store) getOrCreate(ctx context.Context, db dbtx, patientID string, period ledger.Period, fees ledger.FeeConfig) (ledger.MonthlyRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	// Idempotent create: a concurrent creator's row wins and is returned.
	_, err := db.ExecContext(ctx, `
		INSERT INTO monthly_records
			(patient_id, month, year, monthly_fees, other_fees, carry_forward_from_previous, amount_paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '0', '0', ?, ?)
		ON CONFLICT(patient_id, month, year) DO NOTHING`,
		patientID, int(period.Month), period.Year,
		fees.MonthlyFees.Value.String(), fees.OtherFees.Value.String(),
		now, now,
	)
	if err != nil {
		return ledger.MonthlyRecord{}, mapSQLiteErr(err)
	}

	return s.get(ctx, db, patientID, period)
}

// Get returns the record for the period, or ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, patientID string, period ledger.Period) (ledger.MonthlyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, patientID, period)
}

const recordColumns = `patient_id, month, year, monthly_fees, other_fees,
	carry_forward_from_previous, amount_paid, payment_method, created_at, updated_at`

func (s *Store) get(ctx context.Context, db dbtx, patientID string, period ledger.Period) (ledger.MonthlyRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM monthly_records
		WHERE patient_id = ? AND month = ? AND year = ?`,
		patientID, int(period.Month), period.Year,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.MonthlyRecord{}, ledger.ErrRecordNotFound
	}
	if err != nil {
		return ledger.MonthlyRecord{}, err
	}
	return rec, nil
}

// ApplyCarryForward sets the carry-forward seed on the target period,
// creating the row first if needed. Called only by the propagator.
func (s *Store) ApplyCarryForward(ctx context.Context, patientID string, period ledger.Period, amount ledger.Money, fees ledger.FeeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyCarryForward(ctx, s.db, patientID, period, amount, fees)
}

func (s *Store) applyCarryForward(ctx context.Context, db dbtx, patientID string, period ledger.Period, amount ledger.Money, fees ledger.FeeConfig) error {
	if _, err := s.getOrCreate(ctx, db, patientID, period, fees); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, `
		UPDATE monthly_records
		SET carry_forward_from_previous = ?, updated_at = ?
		WHERE patient_id = ? AND month = ? AND year = ?`,
		amount.Value.String(), time.Now().UTC().Format(time.RFC3339),
		patientID, int(period.Month), period.Year,
	)
	return mapSQLiteErr(err)
}

// RecordPaymentTotals updates the cached paid amount for an existing row.
func (s *Store) RecordPaymentTotals(ctx context.Context, patientID string, period ledger.Period, amountPaid ledger.Money, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordPaymentTotals(ctx, s.db, patientID, period, amountPaid, method)
}

func (s *Store) recordPaymentTotals(ctx context.Context, db dbtx, patientID string, period ledger.Period, amountPaid ledger.Money, method string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE monthly_records
		SET amount_paid = ?,
		    payment_method = CASE WHEN ? != '' THEN ? ELSE payment_method END,
		    updated_at = ?
		WHERE patient_id = ? AND month = ? AND year = ?`,
		amountPaid.Value.String(), method, method,
		time.Now().UTC().Format(time.RFC3339),
		patientID, int(period.Month), period.Year,
	)
	if err != nil {
		return mapSQLiteErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrRecordNotFound
	}
	return nil
}

// ListPeriod returns every record for the period, ordered by patient ID.
func (s *Store) ListPeriod(ctx context.Context, period ledger.Period) ([]ledger.MonthlyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPeriod(ctx, s.db, period)
}

func (s *Store) listPeriod(ctx context.Context, db dbtx, period ledger.Period) ([]ledger.MonthlyRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM monthly_records
		WHERE month = ? AND year = ?
		ORDER BY patient_id ASC`,
		int(period.Month), period.Year,
	)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var records []ledger.MonthlyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PatientsWithRecords returns patient IDs holding a record for the period.
func (s *Store) PatientsWithRecords(ctx context.Context, period ledger.Period) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patientsWithRecords(ctx, s.db, period)
}

func (s *Store) patientsWithRecords(ctx context.Context, db dbtx, period ledger.Period) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT patient_id FROM monthly_records
		WHERE month = ? AND year = ?
		ORDER BY patient_id ASC`,
		int(period.Month), period.Year,
	)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ledger.MonthlyRecord, error) {
	var (
		rec                      ledger.MonthlyRecord
		month, year              int
		monthlyFees, otherFees   string
		carryForward, amountPaid string
		method                   sql.NullString
		createdAt, updatedAt     string
	)

	err := row.Scan(&rec.PatientID, &month, &year, &monthlyFees, &otherFees,
		&carryForward, &amountPaid, &method, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}

	rec.Period = ledger.Period{Month: time.Month(month), Year: year}
	rec.MonthlyFees = parseMoney(monthlyFees)
	rec.OtherFees = parseMoney(otherFees)
	rec.CarryForwardFromPrevious = parseMoney(carryForward)
	rec.AmountPaid = parseMoney(amountPaid)
	rec.PaymentMethod = method.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	// Derived fields are never stored; heal them on every read.
	rec.Recompute()
	return rec, nil
}

// =============================================================================
// PAYMENT LEDGER STORE (ledger.PaymentLedgerStore interface)
// =============================================================================

// AppendPayment persists a payment event. Append-only: there is no update
// or delete path anywhere in this package.
func (s *Store) AppendPayment(ctx context.Context, p ledger.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendPayment(ctx, s.db, p)
}

func (s *Store) appendPayment(ctx context.Context, db dbtx, p ledger.PaymentRecord) error {
	if !p.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, patient_id, paid_on, month, year, amount, method, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PatientID,
		p.Date.Format(time.RFC3339),
		int(p.Period.Month), p.Period.Year,
		p.Amount.Value.String(), p.Method, p.Notes,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append payment: %w", mapSQLiteErr(err))
	}
	return nil
}

// SumForPeriod sums all payments attributed to the period.
func (s *Store) SumForPeriod(ctx context.Context, patientID string, period ledger.Period) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumForPeriod(ctx, s.db, patientID, period)
}

func (s *Store) sumForPeriod(ctx context.Context, db dbtx, patientID string, period ledger.Period) (ledger.Money, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT amount FROM payments
		WHERE patient_id = ? AND month = ? AND year = ?`,
		patientID, int(period.Month), period.Year,
	)
	if err != nil {
		return ledger.Money{}, mapSQLiteErr(err)
	}
	defer rows.Close()

	// Summed in decimal, not in SQL, so cents never drift.
	sum := ledger.Zero()
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return ledger.Money{}, err
		}
		sum = sum.Add(parseMoney(amount))
	}
	return sum, rows.Err()
}

// History returns a patient's payments, most recent first.
func (s *Store) History(ctx context.Context, patientID string) ([]ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history(ctx, s.db, patientID)
}

func (s *Store) history(ctx context.Context, db dbtx, patientID string) ([]ledger.PaymentRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, patient_id, paid_on, month, year, amount, method, notes, created_at
		FROM payments
		WHERE patient_id = ?
		ORDER BY paid_on DESC, created_at DESC`,
		patientID,
	)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var history []ledger.PaymentRecord
	for rows.Next() {
		var (
			p             ledger.PaymentRecord
			paidOn        string
			month, year   int
			amount        string
			method, notes sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&p.ID, &p.PatientID, &paidOn, &month, &year,
			&amount, &method, &notes, &createdAt); err != nil {
			return nil, err
		}
		p.Date, _ = time.Parse(time.RFC3339, paidOn)
		p.Period = ledger.Period{Month: time.Month(month), Year: year}
		p.Amount = parseMoney(amount)
		p.Method = method.String
		p.Notes = notes.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		history = append(history, p)
	}
	return history, rows.Err()
}

// =============================================================================
// TRANSACTIONS (ledger.Repository interface)
// =============================================================================

// WithTx executes fn within one database transaction. If fn returns an
// error the transaction is rolled back. The store mutex is deliberately
// not held here: fn runs caller code, and transaction isolation is the
// database's job.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapSQLiteErr(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txRepo{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// txRepo routes Repository calls through an open *sql.Tx.
type txRepo struct {
	tx     *sql.Tx
	parent *Store
}

func (tr *txRepo) GetOrCreate(ctx context.Context, patientID string, period ledger.Period, fees ledger.FeeConfig) (ledger.MonthlyRecord, error) {
	return tr.parent.getOrCreate(ctx, tr.tx, patientID, period, fees)
}

func (tr *txRepo) Get(ctx context.Context, patientID string, period ledger.Period) (ledger.MonthlyRecord, error) {
	return tr.parent.get(ctx, tr.tx, patientID, period)
}

func (tr *txRepo) ApplyCarryForward(ctx context.Context, patientID string, period ledger.Period, amount ledger.Money, fees ledger.FeeConfig) error {
	return tr.parent.applyCarryForward(ctx, tr.tx, patientID, period, amount, fees)
}

func (tr *txRepo) RecordPaymentTotals(ctx context.Context, patientID string, period ledger.Period, amountPaid ledger.Money, method string) error {
	return tr.parent.recordPaymentTotals(ctx, tr.tx, patientID, period, amountPaid, method)
}

func (tr *txRepo) ListPeriod(ctx context.Context, period ledger.Period) ([]ledger.MonthlyRecord, error) {
	return tr.parent.listPeriod(ctx, tr.tx, period)
}

func (tr *txRepo) PatientsWithRecords(ctx context.Context, period ledger.Period) ([]string, error) {
	return tr.parent.patientsWithRecords(ctx, tr.tx, period)
}

func (tr *txRepo) AppendPayment(ctx context.Context, p ledger.PaymentRecord) error {
	return tr.parent.appendPayment(ctx, tr.tx, p)
}

func (tr *txRepo) SumForPeriod(ctx context.Context, patientID string, period ledger.Period) (ledger.Money, error) {
	return tr.parent.sumForPeriod(ctx, tr.tx, patientID, period)
}

func (tr *txRepo) History(ctx context.Context, patientID string) ([]ledger.PaymentRecord, error) {
	return tr.parent.history(ctx, tr.tx, patientID)
}

func (tr *txRepo) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	// Already inside a transaction; run in place.
	return fn(tr)
}

// txRepo also satisfies ledger.FeeSource so fee reads made inside a
// transaction go through the same connection.
func (tr *txRepo) FeeConfig(ctx context.Context, patientID string) (ledger.FeeConfig, error) {
	return tr.parent.feeConfig(ctx, tr.tx, patientID)
}

func (tr *txRepo) ActivePatients(ctx context.Context) ([]ledger.Patient, error) {
	return tr.parent.activePatients(ctx, tr.tx)
}

// =============================================================================
// FEE SOURCE (ledger.FeeSource interface)
// =============================================================================

// SavePatient upserts a patient's billing configuration. This is the write
// side owned by patient management; the ledger itself only reads.
func (s *Store) SavePatient(ctx context.Context, p ledger.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var admittedAt *string
	if !p.AdmittedAt.IsZero() {
		t := p.AdmittedAt.Format(time.RFC3339)
		admittedAt = &t
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, monthly_fees, other_fees, active, admitted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			monthly_fees = excluded.monthly_fees,
			other_fees = excluded.other_fees,
			active = excluded.active,
			admitted_at = excluded.admitted_at`,
		p.ID, p.Name,
		p.Fees.MonthlyFees.Value.String(), p.Fees.OtherFees.Value.String(),
		boolToInt(p.Active), admittedAt,
		time.Now().UTC().Format(time.RFC3339),
	)
	return mapSQLiteErr(err)
}

// FeeConfig returns the fee configuration for one patient.
func (s *Store) FeeConfig(ctx context.Context, patientID string) (ledger.FeeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feeConfig(ctx, s.db, patientID)
}

func (s *Store) feeConfig(ctx context.Context, db dbtx, patientID string) (ledger.FeeConfig, error) {
	var monthlyFees, otherFees string
	err := db.QueryRowContext(ctx,
		"SELECT monthly_fees, other_fees FROM patients WHERE id = ?",
		patientID,
	).Scan(&monthlyFees, &otherFees)

	if errors.Is(err, sql.ErrNoRows) {
		return ledger.FeeConfig{}, ledger.ErrPatientNotFound
	}
	if err != nil {
		return ledger.FeeConfig{}, fmt.Errorf("%w: %v", ledger.ErrUpstreamUnavailable, err)
	}

	return ledger.FeeConfig{
		MonthlyFees: parseMoney(monthlyFees),
		OtherFees:   parseMoney(otherFees),
	}, nil
}

// ActivePatients returns all patients currently billed.
func (s *Store) ActivePatients(ctx context.Context) ([]ledger.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePatients(ctx, s.db)
}

func (s *Store) activePatients(ctx context.Context, db dbtx) ([]ledger.Patient, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, monthly_fees, other_fees, active, admitted_at
		FROM patients
		WHERE active = 1
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	var patients []ledger.Patient
	for rows.Next() {
		var (
			p                      ledger.Patient
			monthlyFees, otherFees string
			active                 int
			admittedAt             sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &monthlyFees, &otherFees, &active, &admittedAt); err != nil {
			return nil, err
		}
		p.Fees = ledger.FeeConfig{
			MonthlyFees: parseMoney(monthlyFees),
			OtherFees:   parseMoney(otherFees),
		}
		p.Active = active != 0
		if admittedAt.Valid {
			p.AdmittedAt, _ = time.Parse(time.RFC3339, admittedAt.String)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(s string) ledger.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ledger.Zero()
	}
	return ledger.Money{Value: d}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mapSQLiteErr translates driver-level contention into the domain conflict
// error so the service's retry path engages.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
	}
	return err
}
