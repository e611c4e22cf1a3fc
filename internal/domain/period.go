package domain

import "cloud.google.com/go/civil"

// BudgetPeriod is one bounded date range of a person's budget cycle.
// EndDate is nil while the period is open. Invariant: a person has at most
// one open period at any time; the stores enforce this atomically.
type BudgetPeriod struct {
	ID       string
	PersonID string

	StartDate civil.Date
	EndDate   *civil.Date
	IsActive  bool
}

// IsOpen reports whether the period has no end date yet.
func (p *BudgetPeriod) IsOpen() bool {
	return p.EndDate == nil
}

// Contains reports whether d falls inside the period. Open periods contain
// every date on or after their start.
func (p *BudgetPeriod) Contains(d civil.Date) bool {
	if d.Before(p.StartDate) {
		return false
	}
	if p.EndDate == nil {
		return true
	}
	return !d.After(*p.EndDate)
}
