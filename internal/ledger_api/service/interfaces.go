package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

// EntryService defines single-entry and bulk mutations of the ledger.
// Every mutation returns the entries it changed so callers decide what to refresh.
type EntryService interface {
	// CreateEntry records a single Unpaid fee or salary obligation
	CreateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input CreateEntryInput) (*ledger.Entry, error)

	// GetEntry returns NotFoundError when the id does not resolve inside the caller's scope
	GetEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) (*ledger.Entry, error)

	// ListEntries returns the filtered entries of a kind, newest first
	ListEntries(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) ([]*ledger.Entry, error)

	UpdateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, input UpdateEntryInput) (*ledger.Entry, error)
	ApplyDiscount(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, newAmount decimal.Decimal) (*ledger.Entry, error)
	DeleteEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) error

	// BulkUpdateStatus applies one status to many entries. Each entry is
	// updated independently; failures are reported per id and never roll
	// back entries that were already updated.
	BulkUpdateStatus(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input BulkStatusInput) (*BulkStatusResult, error)
}

// GenerationService expands a class selection into fee challans
type GenerationService interface {
	GenerateChallans(ctx context.Context, caller ledger.Caller, classIDs []string, template ledger.ChallanTemplate) (*GenerationReport, error)
}

// ReportService computes read-only views over the ledger
type ReportService interface {
	Summary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.Summary, error)
	MonthlySummary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.MonthlyReport, error)
	ExportCSV(ctx context.Context, caller ledger.Caller, kind ledger.Kind, req ExportRequest) (*Export, error)
}

// CreateEntryInput carries the caller-supplied fields of a single create
type CreateEntryInput struct {
	Subject ledger.Subject
	Amount  decimal.Decimal
	Month   string
	DueDate *time.Time
	Remarks string
}

// UpdateEntryInput is a partial update; nil fields are left untouched
type UpdateEntryInput struct {
	Status      *string
	PaymentDate *time.Time
	Remarks     *string
}

// BulkStatusInput selects the entries of a batch status change
type BulkStatusInput struct {
	IDs         []uuid.UUID
	Status      string
	PaymentDate *time.Time
}

// BulkFailure describes one entry a batch operation could not update
type BulkFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
	Err   error     `json:"-"`
}

// BulkStatusResult lists what a batch status change did
type BulkStatusResult struct {
	Updated []*ledger.Entry `json:"updated"`
	Failed  []BulkFailure   `json:"failed"`
}

// ExportRequest selects the entries of a CSV export. When IDs is set only
// those entries are exported and the file is named as a selection.
type ExportRequest struct {
	Filter ledger.Filter
	IDs    []uuid.UUID
}

// Export is a rendered CSV document
type Export struct {
	Filename string
	Content  string
	Rows     int
}
