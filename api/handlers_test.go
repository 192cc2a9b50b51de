package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliniva/billing-engine/api"
	"github.com/cliniva/billing-engine/ledger"
	memstore "github.com/cliniva/billing-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
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
		Fees:   ledger.FeeConfig{MonthlyFees: ledger.NewMoneyFromInt(200)},
		Active: true,
	})

	fixedNow := time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)
	svc := ledger.NewService(repo, repo, ledger.WithClock(func() time.Time { return fixedNow }))

	server := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

func TestAPI_RecordPayment_Success(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id":     "pat-1",
		"amount":         120,
		"payment_method": "cash",
		"payment_date":   "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result api.RecordPaymentResponse
	decodeBody(t, resp, &result)

	assert.Equal(t, "pat-1", result.Payment.PatientID)
	assert.Equal(t, "2025-03-10", result.Payment.PaymentDate)
	assert.Equal(t, 3, result.Record.Month)
	assert.Equal(t, 2025, result.Record.Year)
	assert.Equal(t, "completed", result.Record.PaymentStatus)
	assert.True(t, result.Record.AmountPending.IsZero())
}

func TestAPI_RecordPayment_AmountAsString(t *testing.T) {
	// Clients send amounts as numbers or strings; both are accepted.
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id":   "pat-1",
		"amount":       "50.00",
		"payment_date": "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result api.RecordPaymentResponse
	decodeBody(t, resp, &result)
	assert.Equal(t, string(ledger.StatusPartial), result.Record.PaymentStatus)
}

func TestAPI_RecordPayment_ValidationErrors(t *testing.T) {
	server := newTestServer(t)
	url := server.URL + "/patient-payments/record-payment"

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing patient", map[string]any{"amount": 50}},
		{"zero amount", map[string]any{"patient_id": "pat-1", "amount": 0}},
		{"negative amount", map[string]any{"patient_id": "pat-1", "amount": -10}},
		{"bad amount string", map[string]any{"patient_id": "pat-1", "amount": "abc"}},
		{"bad date", map[string]any{"patient_id": "pat-1", "amount": 50, "payment_date": "soon"}},
		{"bad month", map[string]any{"patient_id": "pat-1", "amount": 50, "month": 13, "year": 2025}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, url, tt.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAPI_RecordPayment_UnknownPatientIs404(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id": "pat-missing",
		"amount":     50,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PERIOD LISTING
// =============================================================================

func TestAPI_ListPeriod(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id":   "pat-1",
		"amount":       70,
		"payment_date": "2025-03-10",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(server.URL + "/patient-payments/all?month=3&year=2025")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary api.PeriodSummaryDTO
	decodeBody(t, resp, &summary)

	assert.Equal(t, 3, summary.Month)
	assert.Equal(t, 2025, summary.Year)
	assert.Equal(t, 2, summary.TotalPatients)
	assert.True(t, summary.TotalDue.Equal(ledger.NewMoneyFromInt(320)))
	assert.True(t, summary.TotalPaid.Equal(ledger.NewMoneyFromInt(70)))
	assert.Equal(t, 1, summary.StatusCounts[string(ledger.StatusPartial)])
	assert.Equal(t, 1, summary.StatusCounts[string(ledger.StatusPending)])
}

func TestAPI_ListPeriod_BadPeriod(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/patient-payments/all?month=13&year=2025")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestAPI_History(t *testing.T) {
	server := newTestServer(t)

	for _, amount := range []int{30, 40} {
		resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
			"patient_id":   "pat-1",
			"amount":       amount,
			"payment_date": "2025-03-10",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/patient-payments/history/pat-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []api.PaymentDTO
	decodeBody(t, resp, &history)
	assert.Len(t, history, 2)

	// Unknown patient has an empty history, not an error.
	resp, err = http.Get(server.URL + "/patient-payments/history/pat-missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &history)
	assert.Empty(t, history)
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

func TestAPI_SaveMonthlyRecords(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/patient-payments/save-monthly-records", map[string]any{
		"month": 3,
		"year":  2025,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.BatchResultDTO
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Patients)

	resp = postJSON(t, server.URL+"/patient-payments/save-monthly-records", map[string]any{
		"month": 0,
		"year":  2025,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CheckCarryForward(t *testing.T) {
	server := newTestServer(t)

	// An unpaid February balance, then a carry-forward check into March.
	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id":   "pat-1",
		"amount":       20,
		"payment_date": "2025-02-10",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, server.URL+"/check-carry-forward", map[string]any{
		"month": 3,
		"year":  2025,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.BatchResultDTO
	decodeBody(t, resp, &result)
	assert.Equal(t, 1, result.Patients)

	// March now carries February's 100 debt on top of its own 120 fees.
	listResp, err := http.Get(server.URL + "/patient-payments/all?month=3&year=2025")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var summary api.PeriodSummaryDTO
	decodeBody(t, listResp, &summary)
	var pat1 *api.MonthlyRecordDTO
	for i := range summary.Records {
		if summary.Records[i].PatientID == "pat-1" {
			pat1 = &summary.Records[i]
		}
	}
	require.NotNil(t, pat1)
	assert.True(t, pat1.CarryForwardFromPrevious.Equal(ledger.NewMoneyFromInt(100)))
	assert.True(t, pat1.TotalAmount.Equal(ledger.NewMoneyFromInt(220)))
}

// =============================================================================
// UPSTREAM FAILURES
// =============================================================================

// downFeeSource simulates the patient-management subsystem being
// unreachable.
type downFeeSource struct{}

func (downFeeSource) FeeConfig(context.Context, string) (ledger.FeeConfig, error) {
	return ledger.FeeConfig{}, ledger.ErrUpstreamUnavailable
}

func (downFeeSource) ActivePatients(context.Context) ([]ledger.Patient, error) {
	return nil, ledger.ErrUpstreamUnavailable
}

func TestAPI_UpstreamUnavailableIs502(t *testing.T) {
	// Fees are never guessed: when the fee source is down, payment
	// recording and period materialization both answer 502.

	repo := memstore.NewMemory()
	svc := ledger.NewService(repo, downFeeSource{})
	server := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(server.Close)

	resp := postJSON(t, server.URL+"/patient-payments/record-payment", map[string]any{
		"patient_id": "pat-1",
		"amount":     50,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	saveResp := postJSON(t, server.URL+"/patient-payments/save-monthly-records", map[string]any{
		"month": 3,
		"year":  2025,
	})
	defer saveResp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, saveResp.StatusCode)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Healthz(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/healthz", server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
