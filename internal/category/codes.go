// Package category defines the official category schemas used for quarterly
// business summaries: one vocabulary per business type, partitioned into
// income, expense, and capital subsets.
package category

import "fmt"

// Code is an official classification label for a line item, e.g. "travelCosts".
type Code string

// Kind identifies which subset of the vocabulary a code belongs to.
type Kind int

const (
	KindIncome Kind = iota
	KindExpense
	KindCapital
)

// BusinessType selects the active category vocabulary.
type BusinessType string

const (
	SelfEmployment BusinessType = "self-employment"
	UKProperty     BusinessType = "uk-property"
)

// Self-employment codes.
const (
	Turnover             Code = "turnover"
	OtherIncome          Code = "otherIncome"
	CostOfGoods          Code = "costOfGoods"
	WagesAndStaffCosts   Code = "wagesAndStaffCosts"
	TravelCosts          Code = "travelCosts"
	PremisesRunningCosts Code = "premisesRunningCosts"
	MaintenanceCosts     Code = "maintenanceCosts"
	AdminCosts           Code = "adminCosts"
	AdvertisingCosts     Code = "advertisingCosts"
	InterestOnLoans      Code = "interestOnLoans"
	ProfessionalFees     Code = "professionalFees"
	OtherExpenses        Code = "otherExpenses"
	PlantAndMachinery    Code = "plantAndMachinery"
	MotorVehicles        Code = "motorVehicles"
)

// UK property codes. ProfessionalFees and TravelCosts are shared with the
// self-employment schema.
const (
	RentIncome            Code = "rentIncome"
	PremiumsOfLeaseGrant  Code = "premiumsOfLeaseGrant"
	OtherPropertyIncome   Code = "otherPropertyIncome"
	RatesAndInsurance     Code = "ratesAndInsurance"
	RepairsAndMaintenance Code = "repairsAndMaintenance"
	FinancialCosts        Code = "financialCosts"
	CostOfServices        Code = "costOfServices"
	OtherPropertyExpenses Code = "otherPropertyExpenses"
	PropertyImprovements  Code = "propertyImprovements"
)

// Schema is the category vocabulary for one business type. The three subsets
// are disjoint and together cover every code in the schema.
type Schema struct {
	BusinessType BusinessType
	kinds        map[Code]Kind
	income       []Code
	expense      []Code
	capital      []Code
}

var selfEmploymentSchema = newSchema(SelfEmployment,
	[]Code{Turnover, OtherIncome},
	[]Code{CostOfGoods, WagesAndStaffCosts, TravelCosts, PremisesRunningCosts,
		MaintenanceCosts, AdminCosts, AdvertisingCosts, InterestOnLoans,
		ProfessionalFees, OtherExpenses},
	[]Code{PlantAndMachinery, MotorVehicles},
)

var ukPropertySchema = newSchema(UKProperty,
	[]Code{RentIncome, PremiumsOfLeaseGrant, OtherPropertyIncome},
	[]Code{RatesAndInsurance, RepairsAndMaintenance, FinancialCosts,
		ProfessionalFees, CostOfServices, TravelCosts, OtherPropertyExpenses},
	[]Code{PropertyImprovements},
)

func newSchema(bt BusinessType, income, expense, capital []Code) *Schema {
	s := &Schema{
		BusinessType: bt,
		kinds:        make(map[Code]Kind),
		income:       income,
		expense:      expense,
		capital:      capital,
	}
	for _, c := range income {
		s.kinds[c] = KindIncome
	}
	for _, c := range expense {
		s.kinds[c] = KindExpense
	}
	for _, c := range capital {
		s.kinds[c] = KindCapital
	}
	return s
}

// SchemaFor returns the schema for a business type.
func SchemaFor(bt BusinessType) (*Schema, error) {
	switch bt {
	case SelfEmployment:
		return selfEmploymentSchema, nil
	case UKProperty:
		return ukPropertySchema, nil
	default:
		return nil, fmt.Errorf("unknown business type: %q", bt)
	}
}

// Contains reports whether code belongs to this schema.
func (s *Schema) Contains(code Code) bool {
	_, ok := s.kinds[code]
	return ok
}

// KindOf returns the subset a code belongs to. The second return is false for
// codes outside the schema.
func (s *Schema) KindOf(code Code) (Kind, bool) {
	k, ok := s.kinds[code]
	return k, ok
}

// IsCapital reports whether code is a capital-allowance code, reported only
// in the annual cycle and excluded from quarterly totals.
func (s *Schema) IsCapital(code Code) bool {
	k, ok := s.kinds[code]
	return ok && k == KindCapital
}

// Income returns the income subset.
func (s *Schema) Income() []Code { return s.income }

// Expense returns the expense subset.
func (s *Schema) Expense() []Code { return s.expense }

// Capital returns the capital subset.
func (s *Schema) Capital() []Code { return s.capital }

// NonCapital returns the income and expense codes, the keys a quarterly
// totals map must carry.
func (s *Schema) NonCapital() []Code {
	out := make([]Code, 0, len(s.income)+len(s.expense))
	out = append(out, s.income...)
	out = append(out, s.expense...)
	return out
}

// Vocabulary returns every code in the schema, used to build classifier
// prompts.
func (s *Schema) Vocabulary() []Code {
	out := s.NonCapital()
	return append(out, s.capital...)
}
