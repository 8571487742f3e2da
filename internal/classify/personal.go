package classify

import (
	"strings"

	"github.com/shopspring/decimal"
)

// personalIndicators is the fixed vocabulary of personal-spending terms. A
// match short-circuits the pipeline before any remote call is made, which is
// both a cost optimization and a privacy boundary: matched rows never leave
// the process.
var personalIndicators = []string{
	// Grocery chains
	"tesco", "sainsbury", "asda", "morrisons", "aldi", "lidl", "waitrose",
	"iceland foods", "co-op food", "ocado",
	// Food delivery and fast food
	"deliveroo", "just eat", "uber eats", "mcdonald", "kfc", "nando",
	"greggs", "domino",
	// Entertainment subscriptions
	"netflix", "spotify", "disney+", "amazon prime", "now tv", "sky tv",
	"youtube premium", "playstation", "xbox", "nintendo",
	// Personal care
	"hairdresser", "barber", "beauty salon", "nail bar", "gym membership",
	"puregym", "david lloyd",
	// Family and household
	"nursery fees", "childcare", "school dinner", "school trip", "babysit",
	"pocket money", "vet bill", "pet insurance",
	// Personal retail
	"primark", "next retail", "h&m", "zara", "sports direct", "argos",
	"b&m retail", "home bargains",
	// Personal travel and leisure
	"holiday booking", "center parcs", "cinema", "odeon", "vue cinema",
	"national lottery",
}

// PersonalMatch is the personal-transaction filter verdict for one row.
type PersonalMatch struct {
	IsPersonal   bool
	MatchedTerms []string
	Confidence   float64
}

// CheckPersonal applies the personal-spending heuristic to a description and
// amount. Confidence scales with the number of matched terms, capped at 0.9;
// it never reaches 1.0 because the vocabulary is a heuristic, not ground
// truth.
func CheckPersonal(description string, amount decimal.Decimal) PersonalMatch {
	desc := strings.ToLower(description)

	var matched []string
	for _, term := range personalIndicators {
		if strings.Contains(desc, term) {
			matched = append(matched, term)
		}
	}
	if len(matched) == 0 {
		return PersonalMatch{}
	}

	confidence := 0.6 + 0.1*float64(len(matched))
	if confidence > 0.9 {
		confidence = 0.9
	}
	return PersonalMatch{
		IsPersonal:   true,
		MatchedTerms: matched,
		Confidence:   confidence,
	}
}
