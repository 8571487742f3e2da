package category

import "github.com/shopspring/decimal"

// Totals maps category codes to money amounts. A quarterly totals map is
// complete over the schema's non-capital vocabulary: every code is present,
// defaulting to zero, so consumers never have to distinguish "absent" from
// "no activity".
type Totals map[Code]decimal.Decimal

// NewTotals returns a Totals map with every non-capital code of the schema
// initialized to zero.
func NewTotals(s *Schema) Totals {
	t := make(Totals, len(s.kinds))
	for _, c := range s.NonCapital() {
		t[c] = decimal.Zero
	}
	return t
}

// Add accumulates amount into the code's running total.
func (t Totals) Add(code Code, amount decimal.Decimal) {
	t[code] = t[code].Add(amount)
}

// Get returns the total for code, zero if absent.
func (t Totals) Get(code Code) decimal.Decimal {
	return t[code]
}

// Round returns a copy with every entry rounded to 2 decimal places. Rounding
// happens once, as the final aggregation step, never mid-computation.
func (t Totals) Round() Totals {
	out := make(Totals, len(t))
	for c, v := range t {
		out[c] = v.Round(2)
	}
	return out
}

// Clone returns a shallow copy.
func (t Totals) Clone() Totals {
	out := make(Totals, len(t))
	for c, v := range t {
		out[c] = v
	}
	return out
}

// Sum returns the sum of the totals for the given codes.
func (t Totals) Sum(codes []Code) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range codes {
		sum = sum.Add(t[c])
	}
	return sum
}
