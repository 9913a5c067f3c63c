// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations for fee and salary ledger entries and the
// transactional outbox.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const entryColumns = `id, kind, school_id, subject_id, subject_name, class_id, class_name, roll_number,
		amount::text, original_amount::text, month_label, due_date, stored_status, payment_date, remarks,
		created_at, updated_at`

const (
	insertEntryQuery = `
		INSERT INTO ledger_entries (id, kind, school_id, subject_id, subject_name, class_id, class_name, roll_number,
			amount, original_amount, month_label, bucket_month, bucket_year, due_date, stored_status, payment_date,
			remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	getEntryQuery = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE id = $1 AND school_id = $2 AND kind = $3
	`
	listEntriesQuery = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE school_id = $1 AND kind = $2
		ORDER BY created_at DESC, id
	`
	listEntriesByIDsQuery = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE school_id = $1 AND kind = $2 AND id = ANY($3)
		ORDER BY created_at DESC, id
	`
	existingSubjectsQuery = `
		SELECT DISTINCT subject_id
		FROM ledger_entries
		WHERE school_id = $1 AND kind = $2 AND bucket_year = $3 AND bucket_month = $4 AND subject_id = ANY($5)
	`
	updateEntryQuery = `
		UPDATE ledger_entries
		SET amount = $1, stored_status = $2, payment_date = $3, remarks = $4, updated_at = $5
		WHERE id = $6 AND school_id = $7 AND kind = $8
	`
	deleteEntryQuery = `
		DELETE FROM ledger_entries
		WHERE id = $1 AND school_id = $2 AND kind = $3
	`
)

var copyEntryColumns = []string{
	"id", "kind", "school_id", "subject_id", "subject_name", "class_id", "class_name", "roll_number",
	"amount", "original_amount", "month_label", "bucket_month", "bucket_year", "due_date", "stored_status",
	"payment_date", "remarks", "created_at", "updated_at",
}

// EntryRepository implements the ledger.Repository interface for PostgreSQL
type EntryRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewEntryRepository creates a new PostgreSQL ledger entry repository.
func NewEntryRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &EntryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx so that entry writes commit or roll
// back together with their outbox messages.
func (r *EntryRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &EntryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a single entry.
func (r *EntryRepository) Create(ctx context.Context, e *ledger.Entry) error {
	_, err := r.querier.Exec(ctx, insertEntryQuery, entryValues(e)...)
	if err != nil {
		r.logger.Error("Failed to create ledger entry", "entry_id", e.ID.String(), "error", err)
		return persistence.Classify("create ledger entry", err)
	}
	return nil
}

// CreateBatch stores entries with a single COPY.
func (r *EntryRepository) CreateBatch(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryValues(e))
	}

	copied, err := r.querier.CopyFrom(ctx, pgx.Identifier{"ledger_entries"}, copyEntryColumns, pgx.CopyFromRows(rows))
	if err != nil {
		r.logger.Error("Failed to copy ledger entries", "count", len(entries), "error", err)
		return persistence.Classify("create ledger entries", err)
	}
	if copied != int64(len(entries)) {
		return fmt.Errorf("failed to create ledger entries: copied %d of %d rows", copied, len(entries))
	}
	return nil
}

// GetByID retrieves an entry within the caller's scope.
func (r *EntryRepository) GetByID(ctx context.Context, scope string, kind ledger.Kind, id uuid.UUID) (*ledger.Entry, error) {
	e, err := scanEntry(r.querier.QueryRow(ctx, getEntryQuery, id, scope, string(kind)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.NotFoundError{Resource: "entry", ID: id.String()}
		}
		r.logger.Error("Failed to get ledger entry", "entry_id", id.String(), "error", err)
		return nil, persistence.Classify("get ledger entry", err)
	}
	return e, nil
}

// List returns every entry of a kind in a scope, newest first, optionally
// restricted to filter.IDs.
func (r *EntryRepository) List(ctx context.Context, filter ledger.ListFilter) ([]*ledger.Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(filter.IDs) > 0 {
		rows, err = r.querier.Query(ctx, listEntriesByIDsQuery, filter.Scope, string(filter.Kind), filter.IDs)
	} else {
		rows, err = r.querier.Query(ctx, listEntriesQuery, filter.Scope, string(filter.Kind))
	}
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "scope", filter.Scope, "kind", filter.Kind, "error", err)
		return nil, persistence.Classify("list ledger entries", err)
	}
	defer rows.Close()

	entries := make([]*ledger.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, persistence.Classify("iterate ledger entries", err)
	}
	return entries, nil
}

// ExistingSubjects reports which of subjectIDs already hold an entry in the bucket.
func (r *EntryRepository) ExistingSubjects(ctx context.Context, scope string, kind ledger.Kind, key ledger.MonthKey, subjectIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(subjectIDs) == 0 {
		return existing, nil
	}

	rows, err := r.querier.Query(ctx, existingSubjectsQuery, scope, string(kind), key.Year, key.Month, subjectIDs)
	if err != nil {
		r.logger.Error("Failed to look up existing entries", "scope", scope, "month", key.String(), "error", err)
		return nil, persistence.Classify("look up existing entries", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subjectID string
		if err := rows.Scan(&subjectID); err != nil {
			return nil, fmt.Errorf("failed to scan subject id: %w", err)
		}
		existing[subjectID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.Classify("iterate existing entries", err)
	}
	return existing, nil
}

// Update persists the mutable fields of an entry: amount, status, payment date
// and remarks. Scope, subject, month and due date never change.
func (r *EntryRepository) Update(ctx context.Context, e *ledger.Entry) error {
	result, err := r.querier.Exec(ctx, updateEntryQuery,
		numeric(e.Amount),
		string(e.StoredStatus),
		e.PaymentDate,
		e.Remarks,
		e.UpdatedAt,
		e.ID,
		e.Scope,
		string(e.Kind),
	)
	if err != nil {
		r.logger.Error("Failed to update ledger entry", "entry_id", e.ID.String(), "error", err)
		return persistence.Classify("update ledger entry", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.NotFoundError{Resource: "entry", ID: e.ID.String()}
	}
	return nil
}

// Delete hard-deletes an entry.
func (r *EntryRepository) Delete(ctx context.Context, scope string, kind ledger.Kind, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, deleteEntryQuery, id, scope, string(kind))
	if err != nil {
		r.logger.Error("Failed to delete ledger entry", "entry_id", id.String(), "error", err)
		return persistence.Classify("delete ledger entry", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.NotFoundError{Resource: "entry", ID: id.String()}
	}
	return nil
}

// entryValues orders e's fields like insertEntryQuery and copyEntryColumns.
func entryValues(e *ledger.Entry) []any {
	var bucketMonth, bucketYear *int
	if key, ok := e.Bucket(); ok {
		bucketMonth, bucketYear = &key.Month, &key.Year
	}
	return []any{
		e.ID,
		string(e.Kind),
		e.Scope,
		e.Subject.ID,
		e.Subject.Name,
		e.Subject.ClassID,
		e.Subject.ClassName,
		e.Subject.RollNumber,
		numeric(e.Amount),
		numeric(e.OriginalAmount),
		e.Month,
		bucketMonth,
		bucketYear,
		e.DueDate,
		string(e.StoredStatus),
		e.PaymentDate,
		e.Remarks,
		e.CreatedAt,
		e.UpdatedAt,
	}
}

// numeric converts an amount to its exact pgtype representation.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		e                      ledger.Entry
		kind, status           string
		amount, originalAmount string
		dueDate, paymentDate   *time.Time
	)
	err := row.Scan(
		&e.ID,
		&kind,
		&e.Scope,
		&e.Subject.ID,
		&e.Subject.Name,
		&e.Subject.ClassID,
		&e.Subject.ClassName,
		&e.Subject.RollNumber,
		&amount,
		&originalAmount,
		&e.Month,
		&dueDate,
		&status,
		&paymentDate,
		&e.Remarks,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if e.OriginalAmount, err = decimal.NewFromString(originalAmount); err != nil {
		return nil, fmt.Errorf("invalid original amount %q: %w", originalAmount, err)
	}
	e.Kind = ledger.Kind(kind)
	e.StoredStatus = ledger.StoredStatus(status)
	e.DueDate = dueDate
	e.PaymentDate = paymentDate
	return &e, nil
}
