package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/outbox"
	"github.com/school-fee-ledger/internal/platform/persistence"
)

// EntryServiceImpl implements the EntryService interface. Every write
// stores the entry and its outbox event in one transaction.
type EntryServiceImpl struct {
	db         persistence.TxRunner
	entryRepo  ledger.Repository
	outboxRepo outbox.Repository
	pool       *BatchPool
	clock      ledger.Clock
	calls      callPolicy
	maxBulkIDs int
	logger     *slog.Logger
}

// EntryServiceDeps groups the collaborators of the entry service
type EntryServiceDeps struct {
	DB             persistence.TxRunner
	EntryRepo      ledger.Repository
	OutboxRepo     outbox.Repository
	Pool           *BatchPool
	Clock          ledger.Clock
	RequestTimeout time.Duration
	MaxBulkIDs     int
}

// NewEntryService creates a new entry service
func NewEntryService(logger *slog.Logger, deps EntryServiceDeps) EntryService {
	return &EntryServiceImpl{
		db:         deps.DB,
		entryRepo:  deps.EntryRepo,
		outboxRepo: deps.OutboxRepo,
		pool:       deps.Pool,
		clock:      deps.Clock,
		calls:      callPolicy{timeout: deps.RequestTimeout, logger: logger},
		maxBulkIDs: deps.MaxBulkIDs,
		logger:     logger,
	}
}

func (s *EntryServiceImpl) CreateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input CreateEntryInput) (*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(ledger.NewEntryParams{
		Kind:    kind,
		Scope:   caller.Scope,
		Subject: input.Subject,
		Amount:  input.Amount.Round(2),
		Month:   input.Month,
		DueDate: input.DueDate,
		Remarks: input.Remarks,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(entries ledger.Repository, events outbox.Repository) error {
		if err := entries.Create(ctx, entry); err != nil {
			return err
		}
		return s.recordEvent(ctx, events, outbox.EventEntryCreated, entry)
	})
	if err != nil {
		s.logger.Error("Failed to create ledger entry", "school_id", caller.Scope, "kind", kind, "error", err)
		return nil, err
	}

	s.logger.Info("Ledger entry created",
		"school_id", caller.Scope,
		"user_id", caller.UserID,
		"entry_id", entry.ID.String(),
		"kind", kind,
	)
	return entry, nil
}

func (s *EntryServiceImpl) GetEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) (*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	return read(ctx, s.calls, "get entry", func(ctx context.Context) (*ledger.Entry, error) {
		return s.entryRepo.GetByID(ctx, caller.Scope, kind, id)
	})
}

func (s *EntryServiceImpl) ListEntries(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) ([]*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	entries, err := read(ctx, s.calls, "list entries", func(ctx context.Context) ([]*ledger.Entry, error) {
		return s.entryRepo.List(ctx, ledger.ListFilter{Scope: caller.Scope, Kind: kind})
	})
	if err != nil {
		return nil, err
	}
	return ledger.ApplyFilter(entries, filter, s.clock.Today()), nil
}

func (s *EntryServiceImpl) UpdateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, input UpdateEntryInput) (*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if input.PaymentDate != nil && input.Status == nil {
		return nil, ledger.NewValidationError("payment_date", "can only be set together with status Paid")
	}
	if input.Status == nil && input.Remarks == nil {
		return nil, ledger.NewValidationError("status", "nothing to update")
	}

	var updated *ledger.Entry
	err := s.inTx(ctx, func(entries ledger.Repository, events outbox.Repository) error {
		entry, err := entries.GetByID(ctx, caller.Scope, kind, id)
		if err != nil {
			return err
		}
		if err := applyUpdate(entry, input, s.clock.Now()); err != nil {
			return err
		}
		if err := entries.Update(ctx, entry); err != nil {
			return err
		}
		updated = entry
		return s.recordEvent(ctx, events, outbox.EventEntryUpdated, entry)
	})
	if err != nil {
		s.logger.Warn("Failed to update ledger entry", "school_id", caller.Scope, "entry_id", id.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Ledger entry updated",
		"school_id", caller.Scope,
		"user_id", caller.UserID,
		"entry_id", id.String(),
		"stored_status", updated.StoredStatus,
	)
	return updated, nil
}

// applyUpdate validates the whole patch before touching entry.
func applyUpdate(entry *ledger.Entry, input UpdateEntryInput, now time.Time) error {
	var status ledger.StoredStatus
	if input.Status != nil {
		var err error
		if status, err = ledger.ValidateTransition(entry, *input.Status); err != nil {
			return err
		}
		if input.PaymentDate != nil && status != ledger.StoredPaid {
			return ledger.NewValidationError("payment_date", "can only be set together with status Paid")
		}
	}

	if input.Status != nil {
		if err := entry.SetStatus(status, input.PaymentDate, now); err != nil {
			return err
		}
	}
	if input.Remarks != nil {
		entry.Remarks = *input.Remarks
		entry.UpdatedAt = now
	}
	return nil
}

func (s *EntryServiceImpl) ApplyDiscount(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, newAmount decimal.Decimal) (*ledger.Entry, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var discounted *ledger.Entry
	err := s.inTx(ctx, func(entries ledger.Repository, events outbox.Repository) error {
		entry, err := entries.GetByID(ctx, caller.Scope, kind, id)
		if err != nil {
			return err
		}
		previous := entry.Amount
		if err := ledger.ApplyDiscount(entry, newAmount); err != nil {
			return err
		}
		entry.UpdatedAt = s.clock.Now()
		if err := entries.Update(ctx, entry); err != nil {
			return err
		}
		s.logger.Info("Discount applied",
			"school_id", caller.Scope,
			"user_id", caller.UserID,
			"entry_id", id.String(),
			"previous_amount", previous.StringFixed(2),
			"amount", entry.Amount.StringFixed(2),
		)
		discounted = entry
		return s.recordEvent(ctx, events, outbox.EventEntryDiscounted, entry)
	})
	if err != nil {
		s.logger.Warn("Failed to apply discount", "school_id", caller.Scope, "entry_id", id.String(), "error", err)
		return nil, err
	}
	return discounted, nil
}

func (s *EntryServiceImpl) DeleteEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) error {
	if err := caller.Validate(); err != nil {
		return err
	}

	err := s.inTx(ctx, func(entries ledger.Repository, events outbox.Repository) error {
		entry, err := entries.GetByID(ctx, caller.Scope, kind, id)
		if err != nil {
			return err
		}
		if err := entries.Delete(ctx, caller.Scope, kind, id); err != nil {
			return err
		}
		return s.recordEvent(ctx, events, outbox.EventEntryDeleted, entry)
	})
	if err != nil {
		s.logger.Warn("Failed to delete ledger entry", "school_id", caller.Scope, "entry_id", id.String(), "error", err)
		return err
	}

	s.logger.Info("Ledger entry deleted", "school_id", caller.Scope, "user_id", caller.UserID, "entry_id", id.String())
	return nil
}

func (s *EntryServiceImpl) BulkUpdateStatus(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input BulkStatusInput) (*BulkStatusResult, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	ids := uniqueIDs(input.IDs)
	if len(ids) == 0 {
		return nil, ledger.NewValidationError("ids", "at least one entry id is required")
	}
	if s.maxBulkIDs > 0 && len(ids) > s.maxBulkIDs {
		return nil, ledger.NewValidationError("ids", fmt.Sprintf("at most %d entries can be updated at once", s.maxBulkIDs))
	}
	// Reject an invalid status once, before any entry is touched.
	if _, err := ledger.ParseStoredStatus(kind, input.Status); err != nil {
		return nil, err
	}

	status := input.Status
	patch := UpdateEntryInput{Status: &status, PaymentDate: input.PaymentDate}
	updated := make([]*ledger.Entry, len(ids))

	errs := s.pool.Run(ctx, len(ids), func(ctx context.Context, i int) error {
		entry, err := s.UpdateEntry(ctx, caller, kind, ids[i], patch)
		updated[i] = entry
		return err
	})

	result := &BulkStatusResult{Updated: make([]*ledger.Entry, 0, len(ids)), Failed: make([]BulkFailure, 0)}
	for i, err := range errs {
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: ids[i], Error: err.Error(), Err: err})
			continue
		}
		result.Updated = append(result.Updated, updated[i])
	}

	s.logger.Info("Bulk status change finished",
		"school_id", caller.Scope,
		"user_id", caller.UserID,
		"status", input.Status,
		"updated", len(result.Updated),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *EntryServiceImpl) inTx(ctx context.Context, fn func(entries ledger.Repository, events outbox.Repository) error) error {
	return s.calls.write(ctx, func(ctx context.Context) error {
		return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			return fn(s.entryRepo.WithTx(tx), s.outboxRepo.WithTx(tx))
		})
	})
}

func (s *EntryServiceImpl) recordEvent(ctx context.Context, events outbox.Repository, eventType outbox.EventType, entry *ledger.Entry) error {
	msg, err := outbox.NewEntryMessage(eventType, entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s event for entry %s: %w", eventType, entry.ID, err)
	}
	return events.Create(ctx, msg)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
