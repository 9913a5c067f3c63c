package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes student fee obligations from teacher salary obligations.
// Both share the same record shape.
type Kind string

const (
	KindFee    Kind = "fee"
	KindSalary Kind = "salary"
)

// ParseKind accepts the singular and plural path forms ("fee", "fees").
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fee", "fees":
		return KindFee, nil
	case "salary", "salaries":
		return KindSalary, nil
	}
	return "", NewValidationError("kind", "must be one of fee, salary")
}

// Plural is used in export file names.
func (k Kind) Plural() string {
	if k == KindSalary {
		return "salaries"
	}
	return "fees"
}

// StoredStatus is the only persisted status. Overdue is never stored.
type StoredStatus string

const (
	StoredUnpaid  StoredStatus = "Unpaid"
	StoredPaid    StoredStatus = "Paid"
	StoredPending StoredStatus = "Pending" // salaries only
)

// ParseStoredStatus validates a status supplied by a caller for the given kind.
func ParseStoredStatus(kind Kind, raw string) (StoredStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "unpaid":
		return StoredUnpaid, nil
	case "paid":
		return StoredPaid, nil
	case "pending":
		if kind == KindSalary {
			return StoredPending, nil
		}
		return "", NewValidationError("status", "pending is only valid for salaries")
	case "overdue":
		return "", NewValidationError("status", "overdue is derived from the due date and cannot be set")
	}
	return "", NewValidationError("status", "unknown status "+raw)
}

// Subject references the obligated party. The roster or staff directory owns
// the record; the ledger keeps the id plus display fields cached at creation.
type Subject struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClassID    string `json:"class_id,omitempty"`
	ClassName  string `json:"class_name,omitempty"`
	RollNumber string `json:"roll_number,omitempty"` // employee id for salaries
}

// Entry is a single fee or salary obligation.
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	Kind           Kind            `json:"kind"`
	Scope          string          `json:"scope"`
	Subject        Subject         `json:"subject"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Month          string          `json:"month"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	StoredStatus   StoredStatus    `json:"stored_status"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	Remarks        string          `json:"remarks,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewEntryParams carries the caller-supplied fields of a single create.
type NewEntryParams struct {
	Kind    Kind
	Scope   string
	Subject Subject
	Amount  decimal.Decimal
	Month   string
	DueDate *time.Time
	Remarks string
}

// NewEntry validates params and returns an Unpaid entry.
func NewEntry(p NewEntryParams, now time.Time) (*Entry, error) {
	if p.Kind != KindFee && p.Kind != KindSalary {
		return nil, NewValidationError("kind", "must be one of fee, salary")
	}
	if strings.TrimSpace(p.Scope) == "" {
		return nil, NewValidationError("scope", "school scope is required")
	}
	if strings.TrimSpace(p.Subject.ID) == "" {
		return nil, NewValidationError("subject.id", "subject reference is required")
	}
	if p.Amount.IsNegative() {
		return nil, NewValidationError("amount", "must not be negative")
	}
	if strings.TrimSpace(p.Month) == "" && p.DueDate == nil {
		return nil, NewValidationError("month", "month label or due date is required")
	}

	var due *time.Time
	if p.DueDate != nil {
		d := DateOnly(*p.DueDate)
		due = &d
	}

	return &Entry{
		ID:             uuid.New(),
		Kind:           p.Kind,
		Scope:          p.Scope,
		Subject:        p.Subject,
		Amount:         p.Amount,
		OriginalAmount: p.Amount,
		Month:          strings.TrimSpace(p.Month),
		DueDate:        due,
		StoredStatus:   StoredUnpaid,
		Remarks:        p.Remarks,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SetStatus applies a manual status transition, keeping PaymentDate set if
// and only if the entry is Paid. paidOn defaults to today when nil, except
// for an entry that is already Paid, which keeps its recorded date.
func (e *Entry) SetStatus(status StoredStatus, paidOn *time.Time, now time.Time) error {
	switch status {
	case StoredPaid:
		if paidOn == nil && e.StoredStatus == StoredPaid && e.PaymentDate != nil {
			break
		}
		d := DateOnly(now)
		if paidOn != nil {
			d = DateOnly(*paidOn)
		}
		e.PaymentDate = &d
	case StoredUnpaid:
		e.PaymentDate = nil
	case StoredPending:
		if e.Kind != KindSalary {
			return NewValidationError("status", "pending is only valid for salaries")
		}
		e.PaymentDate = nil
	default:
		return NewValidationError("status", "unknown status "+string(status))
	}
	e.StoredStatus = status
	e.UpdatedAt = now
	return nil
}

// Bucket returns the canonical month bucket of the entry.
func (e *Entry) Bucket() (MonthKey, bool) {
	return BucketOf(e.Month, e.DueDate)
}

// Matches reports whether the subject name or roll number contains search,
// case-insensitively. An empty search matches everything.
func (e *Entry) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Subject.Name), search) ||
		strings.Contains(strings.ToLower(e.Subject.RollNumber), search)
}
