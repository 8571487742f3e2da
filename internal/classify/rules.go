package classify

import (
	"context"
	"strings"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// RuleClassifier resolves transactions from merchant and keyword tables
// alone, with no remote calls. It backs the CLI's dry-run mode and works as
// an offline fallback; anything the tables cannot settle goes to manual
// review rather than guessing.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule-only classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// personalMerchants are merchants that are almost certainly personal spend.
var personalMerchants = map[string]bool{
	"mcdonalds": true, "mcdonald's": true, "starbucks": true, "subway": true,
	"kfc": true, "burger king": true, "dominos": true, "pizza hut": true,
	"uber eats": true, "just eat": true, "deliveroo": true,
	"netflix": true, "spotify": true, "disney+": true, "amazon prime": true,
	"argos": true, "ikea": true, "b&q": true, "currys": true,
}

// ruleMerchants maps merchant name fragments to category codes.
var ruleMerchants = map[string]category.Code{
	// Professional services
	"accountant":      category.ProfessionalFees,
	"solicitor":       category.ProfessionalFees,
	"hmrc agent":      category.ProfessionalFees,
	"companies house": category.ProfessionalFees,
	"xero":            category.AdminCosts,
	"quickbooks":      category.AdminCosts,
	"freeagent":       category.AdminCosts,
	"sage":            category.AdminCosts,

	// Travel
	"trainline":     category.TravelCosts,
	"national rail": category.TravelCosts,
	"premier inn":   category.TravelCosts,
	"travelodge":    category.TravelCosts,
	"uber":          category.TravelCosts,

	// Advertising
	"google ads":   category.AdvertisingCosts,
	"facebook ads": category.AdvertisingCosts,
	"linkedin ads": category.AdvertisingCosts,
	"mailchimp":    category.AdvertisingCosts,

	// Premises
	"british gas":    category.PremisesRunningCosts,
	"edf energy":     category.PremisesRunningCosts,
	"octopus energy": category.PremisesRunningCosts,
	"thames water":   category.PremisesRunningCosts,
}

// ruleKeywords maps description keywords to category codes, checked after the
// merchant table.
var ruleKeywords = map[string]category.Code{
	"invoice":        category.Turnover,
	"sales receipt":  category.Turnover,
	"client payment": category.Turnover,

	"accountancy": category.ProfessionalFees,
	"legal fees":  category.ProfessionalFees,
	"bookkeeping": category.ProfessionalFees,

	"hotel":   category.TravelCosts,
	"train":   category.TravelCosts,
	"mileage": category.TravelCosts,
	"parking": category.TravelCosts,
	"flight":  category.TravelCosts,

	"rent":        category.PremisesRunningCosts,
	"electricity": category.PremisesRunningCosts,
	"utilities":   category.PremisesRunningCosts,

	"stationery":      category.AdminCosts,
	"office supplies": category.AdminCosts,
	"postage":         category.AdminCosts,
	"software":        category.AdminCosts,
	"subscription":    category.AdminCosts,

	"advertising": category.AdvertisingCosts,
	"marketing":   category.AdvertisingCosts,
	"flyer":       category.AdvertisingCosts,

	"wages":   category.WagesAndStaffCosts,
	"payroll": category.WagesAndStaffCosts,

	"repair":      category.MaintenanceCosts,
	"maintenance": category.MaintenanceCosts,

	"loan interest": category.InterestOnLoans,
	"bank charges":  category.InterestOnLoans,

	"stock purchase": category.CostOfGoods,
	"wholesale":      category.CostOfGoods,
	"materials":      category.CostOfGoods,
}

// Classify settles a row from the tables, most specific tier first. The
// returned string goes through the same gateway parsing as a remote response,
// so codes outside the caller's schema still land in manual review.
func (RuleClassifier) Classify(ctx context.Context, req Request) (string, error) {
	desc := strings.ToLower(req.Row.Description)

	for merchant := range personalMerchants {
		if strings.Contains(desc, merchant) {
			return SentinelPersonal, nil
		}
	}

	for pattern, code := range ruleMerchants {
		if strings.Contains(desc, pattern) {
			return string(code), nil
		}
	}

	for keyword, code := range ruleKeywords {
		if strings.Contains(desc, keyword) {
			return string(code), nil
		}
	}

	// Income-direction rows with no better match are sales.
	if req.Row.Direction == DirectionIncome {
		return string(category.Turnover), nil
	}

	return SentinelManualReview, nil
}
