// Package period resolves how an uploaded spreadsheet maps onto a target
// reporting quarter: directly, as a cumulative running total, or as one
// section of a multi-period sheet.
package period

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is a reporting quarter with a total ordering. The zero value is
// invalid.
type Period int

const (
	Q1 Period = iota + 1
	Q2
	Q3
	Q4
)

// ParsePeriod accepts the forms "Q1", "q1", "quarter 1", and "1".
func ParsePeriod(s string) (Period, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, "quarter")
	t = strings.TrimPrefix(t, "q")
	t = strings.TrimSpace(t)
	n, err := strconv.Atoi(t)
	if err != nil || n < 1 || n > 4 {
		return 0, fmt.Errorf("invalid period: %q (expected Q1-Q4)", s)
	}
	return Period(n), nil
}

func (p Period) String() string {
	return fmt.Sprintf("Q%d", int(p))
}

// Label returns the long form used in spreadsheet section headings.
func (p Period) Label() string {
	return fmt.Sprintf("Quarter %d", int(p))
}

// IsFirst reports whether p is the first chronological period of the cycle.
func (p Period) IsFirst() bool {
	return p == Q1
}

// Prior returns all strictly earlier periods in chronological order.
func (p Period) Prior() []Period {
	var out []Period
	for q := Q1; q < p; q++ {
		out = append(out, q)
	}
	return out
}

// Valid reports whether p is one of Q1-Q4.
func (p Period) Valid() bool {
	return p >= Q1 && p <= Q4
}
