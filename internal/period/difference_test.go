package period

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDifference_Subtracts(t *testing.T) {
	current := category.Totals{
		category.Turnover:    dec("1500.00"),
		category.TravelCosts: dec("120.00"),
	}
	prior := category.Totals{
		category.Turnover:    dec("1000.00"),
		category.TravelCosts: dec("120.00"),
	}

	got, negatives := Difference(current, prior)
	if len(negatives) != 0 {
		t.Errorf("unexpected negative codes: %v", negatives)
	}
	if !got[category.Turnover].Equal(dec("500.00")) {
		t.Errorf("turnover difference = %s, want 500.00", got[category.Turnover])
	}
	if !got[category.TravelCosts].Equal(decimal.Zero) {
		t.Errorf("unchanged category should difference to zero, got %s", got[category.TravelCosts])
	}
}

func TestDifference_ClampsNegativesToZero(t *testing.T) {
	current := category.Totals{category.AdminCosts: dec("80.00")}
	prior := category.Totals{category.AdminCosts: dec("100.00")}

	got, negatives := Difference(current, prior)
	if !got[category.AdminCosts].Equal(decimal.Zero) {
		t.Errorf("negative difference must clamp to zero, got %s", got[category.AdminCosts])
	}
	if len(negatives) != 1 || negatives[0] != category.AdminCosts {
		t.Errorf("clamped code should be reported, got %v", negatives)
	}
}

func TestDifference_AbsentKeysTreatedAsZero(t *testing.T) {
	current := category.Totals{category.Turnover: dec("200.00")}
	prior := category.Totals{category.ProfessionalFees: dec("50.00")}

	got, negatives := Difference(current, prior)
	if !got[category.Turnover].Equal(dec("200.00")) {
		t.Errorf("code absent from prior should pass through, got %s", got[category.Turnover])
	}
	// Present only in prior: current counts as zero, so 0 - 50 clamps.
	if !got[category.ProfessionalFees].Equal(decimal.Zero) {
		t.Errorf("prior-only code must clamp to zero, got %s", got[category.ProfessionalFees])
	}
	if len(negatives) != 1 || negatives[0] != category.ProfessionalFees {
		t.Errorf("expected professionalFees reported negative, got %v", negatives)
	}
}

func TestDifference_NoNegativeOutputsEver(t *testing.T) {
	current := category.Totals{
		category.Turnover:   dec("10.00"),
		category.AdminCosts: dec("0.00"),
	}
	prior := category.Totals{
		category.Turnover:    dec("999.99"),
		category.AdminCosts:  dec("5.00"),
		category.TravelCosts: dec("1.00"),
	}
	got, _ := Difference(current, prior)
	for code, v := range got {
		if v.IsNegative() {
			t.Errorf("negative output for %s: %s", code, v)
		}
	}
}
