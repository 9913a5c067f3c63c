package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChallanTemplate is the shared shape of every fee entry produced by one
// bulk generation run.
type ChallanTemplate struct {
	Amount  decimal.Decimal
	DueDate *time.Time
	Month   string
	Remarks string
}

// Validate checks the template before any roster lookup or write happens.
func (t ChallanTemplate) Validate() error {
	// checked in cents, the precision entries are stored with
	if !t.Amount.Round(2).IsPositive() {
		return NewValidationError("amount", "must be at least 0.01")
	}
	if t.DueDate == nil {
		return NewValidationError("due_date", "is required")
	}
	if strings.TrimSpace(t.Month) == "" {
		return NewValidationError("month", "is required")
	}
	if !HasMonthName(t.Month) {
		return NewValidationError("month", "must name a calendar month")
	}
	return nil
}

// Bucket is the month bucket every generated entry will fall into.
func (t ChallanTemplate) Bucket() MonthKey {
	key, _ := BucketOf(t.Month, t.DueDate)
	return key
}

// EntryFor builds the Unpaid fee entry of one student.
func (t ChallanTemplate) EntryFor(scope string, subject Subject, now time.Time) (*Entry, error) {
	return NewEntry(NewEntryParams{
		Kind:    KindFee,
		Scope:   scope,
		Subject: subject,
		Amount:  t.Amount.Round(2),
		Month:   t.Month,
		DueDate: t.DueDate,
		Remarks: t.Remarks,
	}, now)
}
