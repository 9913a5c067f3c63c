package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListFilter selects the stored columns a repository can filter on.
// Month, status and search are derived values and are applied by ApplyFilter.
type ListFilter struct {
	Scope string
	Kind  Kind
	IDs   []uuid.UUID // optional, restricts the result to these ids
}

// Repository defines ledger entry persistence operations
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	CreateBatch(ctx context.Context, entries []*Entry) error
	GetByID(ctx context.Context, scope string, kind Kind, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, filter ListFilter) ([]*Entry, error)

	// ExistingSubjects returns the subject ids among subjectIDs that already
	// hold an entry of kind in the given month bucket.
	ExistingSubjects(ctx context.Context, scope string, kind Kind, key MonthKey, subjectIDs []string) (map[string]bool, error)

	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, scope string, kind Kind, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}
