/*
handlers.go - HTTP API handlers for the patient billing ledger

PURPOSE:
  Exposes the billing ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger service.

ENDPOINTS:
  GET    /patient-payments/all                   Period listing with aggregates
  POST   /patient-payments/record-payment        Record one payment
  POST   /patient-payments/save-monthly-records  Materialize a period in bulk
  GET    /patient-payments/history/{patient_id}  Payment history
  POST   /check-carry-forward                    Propagate previous period balances

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the ledger service (all validation lives there)
  3. Serialize response
  4. Map domain errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Patient or record not found
  - 409: Write conflict after retry
  - 502: Patient-management subsystem unreachable
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/service.go: The orchestration these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cliniva/billing-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// PERIOD LISTING
// =============================================================================

// ListPeriod returns every patient's record for a period with aggregates.
// GET /patient-payments/all?month=3&year=2025&page=1&limit=50
// Month and year default to the current period.
func (h *Handler) ListPeriod(w http.ResponseWriter, r *http.Request) {
	period := ledger.CurrentPeriod()
	q := r.URL.Query()

	if q.Get("month") != "" || q.Get("year") != "" {
		month, _ := strconv.Atoi(q.Get("month"))
		year, _ := strconv.Atoi(q.Get("year"))
		var err error
		period, err = ledger.NewPeriod(month, year)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))

	summary, err := h.Service.ListPeriod(r.Context(), period, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPeriodSummaryDTO(summary))
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment applies one payment to a patient's period.
// POST /patient-payments/record-payment
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.RecordPayment(r.Context(), ledger.PaymentRequest{
		PatientID: req.PatientID,
		Amount:    req.Amount,
		Method:    req.Method,
		Notes:     req.Notes,
		Date:      req.Date,
		Month:     req.Month,
		Year:      req.Year,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment: toPaymentDTO(result.Payment),
		Record:  toMonthlyRecordDTO(result.Record),
	})
}

// History returns a patient's payments, most recent first.
// GET /patient-payments/history/{patient_id}
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")

	history, err := h.Service.History(r.Context(), patientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTOs(history))
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

// SaveMonthlyRecords creates the period's record for every active patient.
// POST /patient-payments/save-monthly-records
func (h *Handler) SaveMonthlyRecords(w http.ResponseWriter, r *http.Request) {
	var req SaveMonthlyRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := ledger.NewPeriod(req.Month, req.Year)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	count, err := h.Service.MaterializePeriod(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BatchResultDTO{
		Month:    int(period.Month),
		Year:     period.Year,
		Patients: count,
	})
}

// CheckCarryForward propagates every previous-period balance into the
// given period. POST /check-carry-forward
func (h *Handler) CheckCarryForward(w http.ResponseWriter, r *http.Request) {
	period := ledger.CurrentPeriod()

	// Body is optional; an empty body targets the current period.
	var req CheckCarryForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && (req.Month != 0 || req.Year != 0) {
		period, err = ledger.NewPeriod(req.Month, req.Year)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	count, err := h.Service.CheckCarryForward(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BatchResultDTO{
		Month:    int(period.Month),
		Year:     period.Year,
		Patients: count,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "Write conflict, please retry", err)
	case errors.Is(err, ledger.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "Patient management unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
