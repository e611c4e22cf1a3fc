package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring series emits a transaction.
type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringSeries is a template that periodically emits concrete transactions.
// The series tracks its own schedule and execution health independently of the
// transactions it produced; deleting a series orphans its transactions rather
// than cascading.
type RecurringSeries struct {
	ID       string
	PersonID string

	// Template fields copied into each emitted transaction.
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Category    string
	AccountID   string
	ToAccountID string

	Frequency   Frequency
	StartDate   civil.Date
	EndDate     *civil.Date
	NextDueDate civil.Date

	// DayOfMonth (monthly/yearly) and MonthOfYear (yearly) pin the preferred
	// schedule anchor so that advancing past a short month does not drift:
	// a day-31 series clamps to Feb 28 and returns to the 31st in March.
	// Zero means "use whatever NextDueDate carries".
	DayOfMonth  int
	MonthOfYear time.Month

	// IsActive is cleared when the user deactivates the series; terminal,
	// never auto-resumed. IsPaused is the user-set orthogonal pause flag
	// with an optional automatic resume date.
	IsActive   bool
	IsPaused   bool
	PauseUntil *civil.Date

	// AutoExecute opts the series into unattended due passes. A pass run
	// with ForceExecute ignores it.
	AutoExecute bool

	LastExecutedDate    *civil.Date
	TotalExecutions     int
	FailedExecutions    int
	ConsecutiveFailures int

	CreatedTS time.Time
	UpdatedTS *time.Time
}

// PausedOn reports whether the series is paused as of the given date,
// honouring PauseUntil: a series whose pause window has lapsed counts as
// resumed even before a user or pass clears the flag.
func (s *RecurringSeries) PausedOn(d civil.Date) bool {
	if !s.IsPaused {
		return false
	}
	if s.PauseUntil != nil && d.After(*s.PauseUntil) {
		return false
	}
	return true
}

// Ended reports whether the series' optional end date has passed.
func (s *RecurringSeries) Ended(d civil.Date) bool {
	return s.EndDate != nil && d.After(*s.EndDate)
}
