package ledger

import "github.com/shopspring/decimal"

// ApplyDiscount lowers the amount of an unpaid entry. It never raises an
// amount and never touches status, due date or payment date. newAmount is
// rounded to cents before it is checked.
func ApplyDiscount(e *Entry, newAmount decimal.Decimal) error {
	if e.StoredStatus == StoredPaid {
		return NewValidationError("status", "cannot discount a paid entry")
	}
	newAmount = newAmount.Round(2)
	if !newAmount.IsPositive() {
		return NewValidationError("amount", "discounted amount must be greater than 0")
	}
	if newAmount.GreaterThan(e.Amount) {
		return NewValidationError("amount", "discounted amount cannot exceed the current amount")
	}
	e.Amount = newAmount
	return nil
}
