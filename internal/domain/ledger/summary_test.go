package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feeEntry(name string, amount int64, month string, due *time.Time, status StoredStatus) *Entry {
	e := &Entry{
		Kind:           KindFee,
		Scope:          "school-1",
		Subject:        Subject{ID: name, Name: name, RollNumber: "R-" + name},
		Amount:         decimal.NewFromInt(amount),
		OriginalAmount: decimal.NewFromInt(amount),
		Month:          month,
		DueDate:        due,
		StoredStatus:   status,
	}
	if status == StoredPaid {
		e.PaymentDate = due
	}
	return e
}

func TestSummarize_TenEntries(t *testing.T) {
	today := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	var entries []*Entry
	for i := 0; i < 6; i++ {
		entries = append(entries, feeEntry(fmt.Sprintf("paid-%d", i), 1000, "March 2026", date(2026, 3, 10), StoredPaid))
	}
	// two overdue, two still within their due date
	entries = append(entries,
		feeEntry("late-1", 1000, "March 2026", date(2026, 3, 10), StoredUnpaid),
		feeEntry("late-2", 1000, "March 2026", date(2026, 3, 10), StoredUnpaid),
		feeEntry("open-1", 1000, "March 2026", date(2026, 3, 31), StoredUnpaid),
		feeEntry("open-2", 1000, "March 2026", date(2026, 3, 31), StoredUnpaid),
	)

	s := Summarize(entries, Filter{}, today)

	assert.Equal(t, 10, s.TotalCount)
	assert.Equal(t, 6, s.PaidCount)
	assert.Equal(t, 2, s.OverdueCount)
	assert.Equal(t, 2, s.UnpaidCount)
	assert.True(t, s.TotalAmount.Equal(decimal.NewFromInt(10000)), s.TotalAmount.String())
	assert.True(t, s.PaidAmount.Equal(decimal.NewFromInt(6000)), s.PaidAmount.String())
	assert.True(t, s.UnpaidAmount.Equal(decimal.NewFromInt(4000)), s.UnpaidAmount.String())
	assert.Equal(t, "60", s.CollectionRate.String())
}

func TestSummarize_DecimalSums(t *testing.T) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Amount: decimal.RequireFromString("0.10"), Month: "March 2026", StoredStatus: StoredPaid},
		{Amount: decimal.RequireFromString("0.20"), Month: "March 2026", StoredStatus: StoredUnpaid},
	}

	s := Summarize(entries, Filter{}, today)
	assert.Equal(t, "0.3", s.TotalAmount.String())
	assert.Equal(t, "33.3", s.CollectionRate.String())
}

func TestSummarize_EmptySet(t *testing.T) {
	s := Summarize(nil, Filter{}, time.Now())
	assert.Equal(t, 0, s.TotalCount)
	assert.True(t, s.TotalAmount.IsZero())
	assert.True(t, s.CollectionRate.IsZero(), "no division by zero")
}

func TestApplyFilter(t *testing.T) {
	today := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	march := MonthKey{3, 2026}
	overdue := StatusOverdue
	paid := StatusPaid

	entries := []*Entry{
		feeEntry("Ayesha", 1000, "March 2026", date(2026, 3, 10), StoredUnpaid),
		feeEntry("Bilal", 1000, "March 2026", date(2026, 3, 10), StoredPaid),
		feeEntry("Ayaan", 1000, "", date(2026, 3, 31), StoredUnpaid),
		feeEntry("Ayesha Noor", 1000, "February 2026", date(2026, 2, 10), StoredUnpaid),
		feeEntry("Nameless", 1000, "misc", nil, StoredUnpaid),
	}

	t.Run("MonthFilterUsesBucket", func(t *testing.T) {
		got := ApplyFilter(entries, Filter{Month: &march}, today)
		require.Len(t, got, 3)
		assert.Equal(t, "Ayesha", got[0].Subject.Name)
		assert.Equal(t, "Bilal", got[1].Subject.Name)
		assert.Equal(t, "Ayaan", got[2].Subject.Name)
	})

	t.Run("StatusFilterUsesResolvedStatus", func(t *testing.T) {
		got := ApplyFilter(entries, Filter{Status: &overdue}, today)
		require.Len(t, got, 2)
		assert.Equal(t, "Ayesha", got[0].Subject.Name)
		assert.Equal(t, "Ayesha Noor", got[1].Subject.Name)
	})

	t.Run("CombinedFilters", func(t *testing.T) {
		got := ApplyFilter(entries, Filter{Month: &march, Status: &overdue, Search: "aye"}, today)
		require.Len(t, got, 1)
		assert.Equal(t, "Ayesha", got[0].Subject.Name)

		got = ApplyFilter(entries, Filter{Month: &march, Status: &paid, Search: "aye"}, today)
		assert.Empty(t, got)
	})

	t.Run("UnresolvedExcludedFromMonthButCounted", func(t *testing.T) {
		s := Summarize(entries, Filter{Month: &march}, today)
		assert.Equal(t, 3, s.TotalCount)
		assert.Equal(t, 1, s.Unresolved)

		all := Summarize(entries, Filter{}, today)
		assert.Equal(t, 5, all.TotalCount, "unresolved entries stay in totals")
	})
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole string
		want        string
	}{
		{"1", "3", "33.3"},
		{"2", "3", "66.7"},
		{"5", "0", "0"},
		{"0", "10", "0"},
		{"10", "10", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.part+"_of_"+tt.whole, func(t *testing.T) {
			got := Percent(decimal.RequireFromString(tt.part), decimal.RequireFromString(tt.whole))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSummarizeByMonth(t *testing.T) {
	today := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	entries := []*Entry{
		feeEntry("a", 1000, "March 2026", date(2026, 3, 10), StoredPaid),
		feeEntry("b", 500, "March 2026", date(2026, 3, 10), StoredUnpaid),
		feeEntry("c", 700, "January 2026", date(2026, 1, 10), StoredUnpaid),
		feeEntry("d", 900, "December 2025", date(2025, 12, 10), StoredPaid),
		feeEntry("e", 100, "misc", nil, StoredUnpaid),
	}

	report := SummarizeByMonth(entries, Filter{}, today)

	require.Len(t, report.Months, 3)
	assert.Equal(t, MonthKey{12, 2025}, report.Months[0].Month)
	assert.Equal(t, MonthKey{1, 2026}, report.Months[1].Month)
	assert.Equal(t, MonthKey{3, 2026}, report.Months[2].Month)
	assert.Equal(t, 1, report.Unresolved)

	march := report.Months[2]
	assert.Equal(t, 2, march.TotalCount)
	assert.Equal(t, 1, march.PaidCount)
	assert.Equal(t, 1, march.OverdueCount)
	assert.Equal(t, "1500", march.TotalAmount.String())
	assert.Equal(t, "66.7", march.CollectionRate.String())
}
