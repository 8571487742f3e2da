package period

import (
	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// Difference computes the current period's true contribution from cumulative
// figures: for every category in either map, max(0, current - prior).
//
// Negative raw differences are clamped to zero, never propagated: a period
// cannot contribute negative income or expense under this model. They usually
// signal a data-entry error in an earlier period's figures, so the offending
// codes are returned for the caller to log as data-quality warnings.
// Categories absent from current but present in prior count as zero.
//
// The function is deterministic and side-effect-free.
func Difference(current, prior category.Totals) (category.Totals, []category.Code) {
	result := make(category.Totals, len(current))
	var negatives []category.Code

	seen := make(map[category.Code]bool, len(current)+len(prior))
	for c := range current {
		seen[c] = true
	}
	for c := range prior {
		seen[c] = true
	}

	for c := range seen {
		diff := current.Get(c).Sub(prior.Get(c))
		if diff.IsNegative() {
			negatives = append(negatives, c)
			diff = decimal.Zero
		}
		result[c] = diff
	}
	return result, negatives
}
