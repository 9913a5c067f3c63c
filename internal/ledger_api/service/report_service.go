package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/export/csvexport"
)

// ReportServiceImpl implements the ReportService interface
type ReportServiceImpl struct {
	entryRepo ledger.Repository
	clock     ledger.Clock
	calls     callPolicy
	logger    *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(logger *slog.Logger, entryRepo ledger.Repository, clock ledger.Clock, requestTimeout time.Duration) ReportService {
	return &ReportServiceImpl{
		entryRepo: entryRepo,
		clock:     clock,
		calls:     callPolicy{timeout: requestTimeout, logger: logger},
		logger:    logger,
	}
}

func (s *ReportServiceImpl) Summary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.Summary, error) {
	entries, err := s.load(ctx, caller, ledger.ListFilter{Scope: caller.Scope, Kind: kind})
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Summarize(entries, filter, s.clock.Today()), nil
}

func (s *ReportServiceImpl) MonthlySummary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.MonthlyReport, error) {
	entries, err := s.load(ctx, caller, ledger.ListFilter{Scope: caller.Scope, Kind: kind})
	if err != nil {
		return ledger.MonthlyReport{}, err
	}
	return ledger.SummarizeByMonth(entries, filter, s.clock.Today()), nil
}

// ExportCSV renders the filtered entries with the default column schema. The
// file is named after the filtered month, or the current month without one.
func (s *ReportServiceImpl) ExportCSV(ctx context.Context, caller ledger.Caller, kind ledger.Kind, req ExportRequest) (*Export, error) {
	selected := len(req.IDs) > 0
	listFilter := ledger.ListFilter{Scope: caller.Scope, Kind: kind}
	if selected {
		listFilter.IDs = uniqueIDs(req.IDs)
	}

	entries, err := s.load(ctx, caller, listFilter)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	entries = ledger.ApplyFilter(entries, req.Filter, today)

	month := ledger.MonthKey{Month: int(today.Month()), Year: today.Year()}
	if req.Filter.Month != nil {
		month = *req.Filter.Month
	}

	export := &Export{
		Filename: csvexport.Filename(kind, selected, month),
		Content:  csvexport.ToCSV(entries, csvexport.DefaultColumns(kind, today)),
		Rows:     len(entries),
	}
	s.logger.Info("Ledger exported",
		"school_id", caller.Scope,
		"user_id", caller.UserID,
		"kind", kind,
		"rows", export.Rows,
		"filename", export.Filename,
	)
	return export, nil
}

func (s *ReportServiceImpl) load(ctx context.Context, caller ledger.Caller, filter ledger.ListFilter) ([]*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	return read(ctx, s.calls, "list entries", func(ctx context.Context) ([]*ledger.Entry, error) {
		return s.entryRepo.List(ctx, filter)
	})
}
