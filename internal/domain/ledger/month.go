package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MonthKey is the canonical (month, year) bucket of an entry.
type MonthKey struct {
	Month int `json:"month"` // 1-12
	Year  int `json:"year"`
}

// String renders the key as MM-YYYY, the form used in export file names.
func (k MonthKey) String() string {
	return fmt.Sprintf("%02d-%04d", k.Month, k.Year)
}

// Before orders keys chronologically.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var (
	yearPattern    = regexp.MustCompile(`(?:^|\D)(20\d{2})(?:\D|$)`)
	numericMonthYY = regexp.MustCompile(`^(\d{1,2})[-/](\d{4})$`)
	numericYYMonth = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})$`)
)

// BucketOf resolves a free-form month label and an optional due date into a
// MonthKey. Resolution order is fixed:
//  1. month name (or 3-letter abbreviation) found in the label
//  2. a 20xx year found in the label
//  3. missing year taken from the due date
//  4. no month name: month and year taken from the due date
//
// The second return value is false when nothing could be resolved.
func BucketOf(label string, due *time.Time) (MonthKey, bool) {
	month := monthInLabel(label)
	year := yearInLabel(label)

	if month > 0 {
		if year == 0 {
			if due == nil {
				return MonthKey{}, false
			}
			year = due.Year()
		}
		return MonthKey{Month: month, Year: year}, true
	}

	if due != nil {
		return MonthKey{Month: int(due.Month()), Year: due.Year()}, true
	}
	return MonthKey{}, false
}

// monthInLabel returns the month of the earliest month name in label, or 0.
// A match must start at a word boundary so that "summary" does not read as March.
// At the same position full names win over abbreviations.
func monthInLabel(label string) int {
	s := strings.ToLower(label)
	for i := 0; i < len(s); i++ {
		if i > 0 && isLetter(s[i-1]) {
			continue
		}
		rest := s[i:]
		for m, name := range monthNames {
			if strings.HasPrefix(rest, name) {
				return m + 1
			}
		}
		for m, name := range monthNames {
			if strings.HasPrefix(rest, name[:3]) {
				return m + 1
			}
		}
	}
	return 0
}

func yearInLabel(label string) int {
	match := yearPattern.FindStringSubmatch(label)
	if match == nil {
		return 0
	}
	year, _ := strconv.Atoi(match[1])
	return year
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// HasMonthName reports whether label names a calendar month.
func HasMonthName(label string) bool {
	return monthInLabel(label) > 0
}

// ParseMonthKey parses a month filter. Accepted forms are "3-2026", "03-2026",
// "2026-03" and natural labels such as "March 2026".
func ParseMonthKey(raw string) (MonthKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MonthKey{}, NewValidationError("month", "is required")
	}

	var month, year int
	if m := numericMonthYY.FindStringSubmatch(raw); m != nil {
		month, _ = strconv.Atoi(m[1])
		year, _ = strconv.Atoi(m[2])
	} else if m := numericYYMonth.FindStringSubmatch(raw); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
	} else {
		month = monthInLabel(raw)
		year = yearInLabel(raw)
		if month == 0 || year == 0 {
			return MonthKey{}, NewValidationError("month", "must look like MM-YYYY or \"March 2026\"")
		}
	}

	if month < 1 || month > 12 {
		return MonthKey{}, NewValidationError("month", "month number must be between 1 and 12")
	}
	return MonthKey{Month: month, Year: year}, nil
}
