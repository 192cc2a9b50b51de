/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNT FIELDS:
  Payment amounts arrive as JSON numbers or strings ("150.00" and 150 are
  both accepted); ledger.Money handles both at unmarshal time, so amounts
  are parsed exactly once at this boundary.

VALIDATION:
  Validation is done in the service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Money JSON semantics
*/
package api

import (
	"time"

	"github.com/cliniva/billing-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RecordPaymentRequest is the request to record one payment.
type RecordPaymentRequest struct {
	PatientID string       `json:"patient_id"`
	Amount    ledger.Money `json:"amount"`
	Method    string       `json:"payment_method,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Date      string       `json:"payment_date,omitempty"`
	Month     int          `json:"month,omitempty"`
	Year      int          `json:"year,omitempty"`
}

// RecordPaymentResponse returns the appended payment and the updated
// monthly record.
type RecordPaymentResponse struct {
	Payment PaymentDTO       `json:"payment"`
	Record  MonthlyRecordDTO `json:"record"`
}

// MonthlyRecordDTO represents one patient's billing row for a period.
type MonthlyRecordDTO struct {
	PatientID                string       `json:"patient_id"`
	Month                    int          `json:"month"`
	Year                     int          `json:"year"`
	MonthlyFees              ledger.Money `json:"monthly_fees"`
	OtherFees                ledger.Money `json:"other_fees"`
	CarryForwardFromPrevious ledger.Money `json:"carry_forward_from_previous"`
	TotalAmount              ledger.Money `json:"total_amount"`
	AmountPaid               ledger.Money `json:"amount_paid"`
	AmountPending            ledger.Money `json:"amount_pending"`
	CarryForwardToNext       ledger.Money `json:"carry_forward_to_next"`
	NetBalance               ledger.Money `json:"net_balance"`
	PaymentStatus            string       `json:"payment_status"`
	PaymentMethod            string       `json:"payment_method,omitempty"`
	CreatedAt                string       `json:"created_at,omitempty"`
	UpdatedAt                string       `json:"updated_at,omitempty"`
}

// PaymentDTO represents a single payment ledger entry.
type PaymentDTO struct {
	ID          string       `json:"id"`
	PatientID   string       `json:"patient_id"`
	PaymentDate string       `json:"payment_date"`
	Month       int          `json:"month"`
	Year        int          `json:"year"`
	Amount      ledger.Money `json:"amount"`
	Method      string       `json:"payment_method,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   string       `json:"created_at,omitempty"`
}

// PeriodSummaryDTO is the paginated period listing with aggregates.
type PeriodSummaryDTO struct {
	Month         int                `json:"month"`
	Year          int                `json:"year"`
	Records       []MonthlyRecordDTO `json:"records"`
	TotalPatients int                `json:"total_patients"`
	TotalDue      ledger.Money       `json:"total_due"`
	TotalPaid     ledger.Money       `json:"total_paid"`
	TotalPending  ledger.Money       `json:"total_pending"`
	StatusCounts  map[string]int     `json:"status_counts"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
}

// SaveMonthlyRecordsRequest materializes the period for all active patients.
type SaveMonthlyRecordsRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// CheckCarryForwardRequest triggers carry-forward propagation into the
// given period from its predecessor. Zero month/year means the current
// period.
type CheckCarryForwardRequest struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// BatchResultDTO reports how many patients a bulk operation touched.
type BatchResultDTO struct {
	Month    int `json:"month"`
	Year     int `json:"year"`
	Patients int `json:"patients"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMonthlyRecordDTO(r ledger.MonthlyRecord) MonthlyRecordDTO {
	return MonthlyRecordDTO{
		PatientID:                r.PatientID,
		Month:                    int(r.Period.Month),
		Year:                     r.Period.Year,
		MonthlyFees:              r.MonthlyFees,
		OtherFees:                r.OtherFees,
		CarryForwardFromPrevious: r.CarryForwardFromPrevious,
		TotalAmount:              r.TotalAmount,
		AmountPaid:               r.AmountPaid,
		AmountPending:            r.AmountPending,
		CarryForwardToNext:       r.CarryForwardToNext,
		NetBalance:               r.NetBalance,
		PaymentStatus:            string(r.PaymentStatus),
		PaymentMethod:            r.PaymentMethod,
		CreatedAt:                r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                r.UpdatedAt.Format(time.RFC3339),
	}
}

func toMonthlyRecordDTOs(records []ledger.MonthlyRecord) []MonthlyRecordDTO {
	dtos := make([]MonthlyRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toMonthlyRecordDTO(r)
	}
	return dtos
}

func toPaymentDTO(p ledger.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:          p.ID,
		PatientID:   p.PatientID,
		PaymentDate: p.Date.Format("2006-01-02"),
		Month:       int(p.Period.Month),
		Year:        p.Period.Year,
		Amount:      p.Amount,
		Method:      p.Method,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(payments []ledger.PaymentRecord) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toPeriodSummaryDTO(s ledger.PeriodSummary) PeriodSummaryDTO {
	counts := make(map[string]int, len(s.StatusCounts))
	for status, n := range s.StatusCounts {
		counts[string(status)] = n
	}
	return PeriodSummaryDTO{
		Month:         int(s.Period.Month),
		Year:          s.Period.Year,
		Records:       toMonthlyRecordDTOs(s.Records),
		TotalPatients: s.TotalPatients,
		TotalDue:      s.TotalDue,
		TotalPaid:     s.TotalPaid,
		TotalPending:  s.TotalPending,
		StatusCounts:  counts,
		Page:          s.Page,
		PageSize:      s.PageSize,
	}
}
