package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/service"
)

const dateLayout = "2006-01-02"

// CreateEntryRequest represents a request to create a single fee or salary entry
type CreateEntryRequest struct {
	SubjectID   string          `json:"subject_id" binding:"required"`
	SubjectName string          `json:"subject_name" binding:"required"`
	ClassID     string          `json:"class_id"`
	ClassName   string          `json:"class_name"`
	RollNumber  string          `json:"roll_number"`
	Amount      decimal.Decimal `json:"amount"`
	Month       string          `json:"month"`
	DueDate     string          `json:"due_date"`
	Remarks     string          `json:"remarks"`
}

// UpdateEntryRequest is a partial update; absent fields are left untouched
type UpdateEntryRequest struct {
	Status      *string `json:"status"`
	PaymentDate *string `json:"payment_date"`
	Remarks     *string `json:"remarks"`
}

type DiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BulkStatusRequest changes the status of many entries at once
type BulkStatusRequest struct {
	IDs         []string `json:"ids" binding:"required,min=1"`
	Status      string   `json:"status" binding:"required"`
	PaymentDate *string  `json:"payment_date"`
}

// GenerateChallansRequest creates one fee challan per active student of each class
type GenerateChallansRequest struct {
	ClassIDs []string        `json:"class_ids" binding:"required,min=1"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  string          `json:"due_date" binding:"required"`
	Month    string          `json:"month" binding:"required"`
	Remarks  string          `json:"remarks"`
}

// ListParams are the query parameters shared by list and export endpoints
type ListParams struct {
	Month   string `form:"month"`
	Status  string `form:"status"`
	Search  string `form:"search"`
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=50" binding:"min=1,max=500"`
}

// EntryResponse represents an entry in API responses. Status is resolved on read.
type EntryResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	SubjectID      string `json:"subject_id"`
	SubjectName    string `json:"subject_name"`
	ClassID        string `json:"class_id,omitempty"`
	ClassName      string `json:"class_name,omitempty"`
	RollNumber     string `json:"roll_number,omitempty"`
	Amount         string `json:"amount"`
	OriginalAmount string `json:"original_amount"`
	Month          string `json:"month"`
	Bucket         string `json:"bucket,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	Status         string `json:"status"`
	StoredStatus   string `json:"stored_status"`
	PaymentDate    string `json:"payment_date,omitempty"`
	Remarks        string `json:"remarks,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type BulkFailureResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkStatusResponse struct {
	Updated []EntryResponse       `json:"updated"`
	Failed  []BulkFailureResponse `json:"failed"`
}

type ClassResultResponse struct {
	ClassID string `json:"class_id"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

type GenerationResponse struct {
	RunID      string                `json:"run_id"`
	Month      string                `json:"month"`
	Created    int                   `json:"created"`
	Skipped    int                   `json:"skipped"`
	ClassCount int                   `json:"class_count"`
	Failed     int                   `json:"failed"`
	Message    string                `json:"message"`
	Classes    []ClassResultResponse `json:"classes"`
}

// SummaryResponse carries amounts as fixed two-decimal strings
type SummaryResponse struct {
	TotalCount     int    `json:"total_count"`
	PaidCount      int    `json:"paid_count"`
	UnpaidCount    int    `json:"unpaid_count"`
	OverdueCount   int    `json:"overdue_count"`
	PendingCount   int    `json:"pending_count"`
	TotalAmount    string `json:"total_amount"`
	PaidAmount     string `json:"paid_amount"`
	UnpaidAmount   string `json:"unpaid_amount"`
	CollectionRate string `json:"collection_rate"`
	Unresolved     int    `json:"unresolved"`
}

type MonthSummaryResponse struct {
	Month string `json:"month"`
	SummaryResponse
}

type MonthlySummaryResponse struct {
	Months     []MonthSummaryResponse `json:"months"`
	Unresolved int                    `json:"unresolved"`
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// parseDate reads an optional YYYY-MM-DD field.
func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, ledger.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

func mapEntryToResponse(e *ledger.Entry, today time.Time) EntryResponse {
	resp := EntryResponse{
		ID:             e.ID.String(),
		Kind:           string(e.Kind),
		SubjectID:      e.Subject.ID,
		SubjectName:    e.Subject.Name,
		ClassID:        e.Subject.ClassID,
		ClassName:      e.Subject.ClassName,
		RollNumber:     e.Subject.RollNumber,
		Amount:         e.Amount.StringFixed(2),
		OriginalAmount: e.OriginalAmount.StringFixed(2),
		Month:          e.Month,
		DueDate:        formatDate(e.DueDate),
		Status:         string(ledger.Resolve(e, today)),
		StoredStatus:   string(e.StoredStatus),
		PaymentDate:    formatDate(e.PaymentDate),
		Remarks:        e.Remarks,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
	if key, ok := e.Bucket(); ok {
		resp.Bucket = key.String()
	}
	return resp
}

func mapEntriesToResponse(entries []*ledger.Entry, today time.Time) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = mapEntryToResponse(e, today)
	}
	return out
}

func mapSummaryToResponse(s ledger.Summary) SummaryResponse {
	return SummaryResponse{
		TotalCount:     s.TotalCount,
		PaidCount:      s.PaidCount,
		UnpaidCount:    s.UnpaidCount,
		OverdueCount:   s.OverdueCount,
		PendingCount:   s.PendingCount,
		TotalAmount:    s.TotalAmount.StringFixed(2),
		PaidAmount:     s.PaidAmount.StringFixed(2),
		UnpaidAmount:   s.UnpaidAmount.StringFixed(2),
		CollectionRate: s.CollectionRate.StringFixed(1),
		Unresolved:     s.Unresolved,
	}
}

func mapMonthlyToResponse(r ledger.MonthlyReport) MonthlySummaryResponse {
	resp := MonthlySummaryResponse{
		Months:     make([]MonthSummaryResponse, len(r.Months)),
		Unresolved: r.Unresolved,
	}
	for i, m := range r.Months {
		resp.Months[i] = MonthSummaryResponse{Month: m.Month.String(), SummaryResponse: mapSummaryToResponse(m.Summary)}
	}
	return resp
}

func mapGenerationToResponse(r *service.GenerationReport) GenerationResponse {
	resp := GenerationResponse{
		RunID:      r.RunID.String(),
		Month:      r.Month,
		Created:    r.Created,
		Skipped:    r.Skipped,
		ClassCount: r.ClassCount,
		Failed:     r.Failed,
		Message:    r.Message(),
		Classes:    make([]ClassResultResponse, len(r.Classes)),
	}
	for i, c := range r.Classes {
		resp.Classes[i] = ClassResultResponse{ClassID: c.ClassID, Created: c.Created, Skipped: c.Skipped, Error: c.Error}
	}
	return resp
}

func mapBulkToResponse(r *service.BulkStatusResult, today time.Time) BulkStatusResponse {
	resp := BulkStatusResponse{
		Updated: mapEntriesToResponse(r.Updated, today),
		Failed:  make([]BulkFailureResponse, len(r.Failed)),
	}
	for i, f := range r.Failed {
		resp.Failed[i] = BulkFailureResponse{ID: f.ID.String(), Error: f.Error}
	}
	return resp
}
