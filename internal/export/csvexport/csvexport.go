// Package csvexport renders ledger entries as spreadsheet-friendly CSV text.
//
// The output always starts with a UTF-8 byte order mark, uses CRLF line
// endings and quotes every field, so that spreadsheet tools open it with the
// right encoding and never reinterpret numeric-looking text.
package csvexport

import (
	"fmt"
	"strings"
	"time"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

const bom = "\uFEFF"

// Column is one exported column. Value must return already formatted text.
type Column struct {
	Header string
	Value  func(e *ledger.Entry) string
}

// ToCSV joins the header row and one row per entry.
func ToCSV(entries []*ledger.Entry, columns []Column) string {
	var b strings.Builder
	b.WriteString(bom)

	for i, col := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		writeField(&b, col.Header)
	}
	b.WriteString("\r\n")

	for _, e := range entries {
		for i, col := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			writeField(&b, col.Value(e))
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

func writeField(b *strings.Builder, value string) {
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(collapseNewlines(value), `"`, `""`))
	b.WriteByte('"')
}

// collapseNewlines replaces every run of CR and LF characters with one space.
func collapseNewlines(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inBreak := false
	for _, r := range s {
		if r == '\r' || r == '\n' {
			if !inBreak {
				b.WriteByte(' ')
				inBreak = true
			}
			continue
		}
		inBreak = false
		b.WriteRune(r)
	}
	return b.String()
}

// Filename follows the {all|selected}_{fees|salaries}_{MM-YYYY}.csv convention.
func Filename(kind ledger.Kind, selected bool, month ledger.MonthKey) string {
	prefix := "all"
	if selected {
		prefix = "selected"
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, kind.Plural(), month)
}

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// DefaultColumns is the stable export schema for a ledger kind. Status is the
// resolved status on today.
func DefaultColumns(kind ledger.Kind, today time.Time) []Column {
	subjectHeader, numberHeader := "Student", "Roll No"
	if kind == ledger.KindSalary {
		subjectHeader, numberHeader = "Teacher", "Employee ID"
	}

	return []Column{
		{Header: "ID", Value: func(e *ledger.Entry) string { return e.ID.String() }},
		{Header: subjectHeader, Value: func(e *ledger.Entry) string { return e.Subject.Name }},
		{Header: numberHeader, Value: func(e *ledger.Entry) string { return e.Subject.RollNumber }},
		{Header: "Class", Value: func(e *ledger.Entry) string { return e.Subject.ClassName }},
		{Header: "Month", Value: func(e *ledger.Entry) string { return e.Month }},
		{Header: "Amount", Value: func(e *ledger.Entry) string { return e.Amount.StringFixed(2) }},
		{Header: "Original Amount", Value: func(e *ledger.Entry) string { return e.OriginalAmount.StringFixed(2) }},
		{Header: "Due Date", Value: func(e *ledger.Entry) string { return formatDate(e.DueDate) }},
		{Header: "Status", Value: func(e *ledger.Entry) string { return string(ledger.Resolve(e, today)) }},
		{Header: "Payment Date", Value: func(e *ledger.Entry) string { return formatDate(e.PaymentDate) }},
		{Header: "Remarks", Value: func(e *ledger.Entry) string { return e.Remarks }},
	}
}
