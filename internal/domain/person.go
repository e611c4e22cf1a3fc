package domain

import "github.com/shopspring/decimal"

// Person owns budgets, budget periods, transactions and recurring series.
// BudgetStartDay is the day of month (1-31) the person's budget cycle rolls
// over on; days past the end of a short month clamp to its last day.
type Person struct {
	ID             string
	Name           string
	BudgetStartDay int
}

// PeriodKind selects which period sequence a budget is measured over.
// All budgets of a person currently share the person's monthly cycle.
type PeriodKind string

const (
	PeriodKindMonthly PeriodKind = "monthly"
)

// Budget is a spending target over a set of categories, measured per budget
// period. Periods are person-scoped and shared across all of a person's
// budgets.
type Budget struct {
	ID          string
	PersonID    string
	Description string
	Amount      decimal.Decimal
	Categories  []string
	PeriodKind  PeriodKind
}

// CoversCategory reports whether the budget tracks the given category.
// A budget with no categories tracks everything.
func (b *Budget) CoversCategory(category string) bool {
	if len(b.Categories) == 0 {
		return true
	}
	for _, c := range b.Categories {
		if c == category {
			return true
		}
	}
	return false
}
