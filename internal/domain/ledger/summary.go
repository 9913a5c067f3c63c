package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Filter narrows an entry set. Nil fields are not applied.
type Filter struct {
	Month  *MonthKey
	Status *ResolvedStatus
	Search string
}

// ApplyFilter keeps entries matching f. The month filter runs first, then the
// text search, then the status filter on the resolved status. Unresolved
// entries never match a month filter.
func ApplyFilter(entries []*Entry, f Filter, today time.Time) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if f.Month != nil {
			key, ok := e.Bucket()
			if !ok || key != *f.Month {
				continue
			}
		}
		if !e.Matches(f.Search) {
			continue
		}
		if f.Status != nil && Resolve(e, today) != *f.Status {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Summary holds the folded figures of a filtered entry set.
type Summary struct {
	TotalCount     int             `json:"total_count"`
	PaidCount      int             `json:"paid_count"`
	UnpaidCount    int             `json:"unpaid_count"`
	OverdueCount   int             `json:"overdue_count"`
	PendingCount   int             `json:"pending_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	UnpaidAmount   decimal.Decimal `json:"unpaid_amount"`
	CollectionRate decimal.Decimal `json:"collection_rate"` // percent, one decimal
	Unresolved     int             `json:"unresolved"`      // entries without a month bucket
}

// Summarize filters entries and folds them into a Summary. TotalAmount covers
// every filtered entry regardless of status.
func Summarize(entries []*Entry, f Filter, today time.Time) Summary {
	s := fold(ApplyFilter(entries, f, today), today)
	for _, e := range entries {
		if _, ok := e.Bucket(); !ok {
			s.Unresolved++
		}
	}
	return s
}

func fold(entries []*Entry, today time.Time) Summary {
	s := Summary{
		TotalAmount:  decimal.Zero,
		PaidAmount:   decimal.Zero,
		UnpaidAmount: decimal.Zero,
	}
	for _, e := range entries {
		s.TotalCount++
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		switch Resolve(e, today) {
		case StatusPaid:
			s.PaidCount++
			s.PaidAmount = s.PaidAmount.Add(e.Amount)
		case StatusOverdue:
			s.OverdueCount++
			s.UnpaidAmount = s.UnpaidAmount.Add(e.Amount)
		case StatusPending:
			s.PendingCount++
			s.UnpaidAmount = s.UnpaidAmount.Add(e.Amount)
		default:
			s.UnpaidCount++
			s.UnpaidAmount = s.UnpaidAmount.Add(e.Amount)
		}
	}
	s.CollectionRate = Percent(s.PaidAmount, s.TotalAmount)
	return s
}

// Percent returns part/whole*100 rounded to one decimal place, or 0 when whole is 0.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(1)
}

// MonthlySummary is the summary of one month bucket.
type MonthlySummary struct {
	Month MonthKey `json:"month"`
	Summary
}

// MonthlyReport groups a filtered entry set by month bucket.
type MonthlyReport struct {
	Months     []MonthlySummary `json:"months"`
	Unresolved int              `json:"unresolved"`
}

// SummarizeByMonth applies the search and status parts of f, then returns one
// summary per month bucket in chronological order. f.Month is ignored.
func SummarizeByMonth(entries []*Entry, f Filter, today time.Time) MonthlyReport {
	f.Month = nil
	filtered := ApplyFilter(entries, f, today)

	groups := make(map[MonthKey][]*Entry)
	report := MonthlyReport{Months: []MonthlySummary{}}
	for _, e := range filtered {
		key, ok := e.Bucket()
		if !ok {
			report.Unresolved++
			continue
		}
		groups[key] = append(groups[key], e)
	}

	for key, group := range groups {
		report.Months = append(report.Months, MonthlySummary{Month: key, Summary: fold(group, today)})
	}
	sort.Slice(report.Months, func(i, j int) bool {
		return report.Months[i].Month.Before(report.Months[j].Month)
	})
	return report
}
