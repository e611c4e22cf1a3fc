// Package clock provides the injectable time source used by the period
// manager and the scheduler so that date-sensitive logic is deterministic
// under test.
package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock supplies the current instant. Implemented by System (production)
// and Fixed (tests).
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. The zero value returns the zero
// time; prefer NewFixed.
type Fixed struct {
	Instant time.Time
}

// NewFixed creates a fixed clock pinned to UTC midnight of the given date.
func NewFixed(d civil.Date) Fixed {
	return Fixed{Instant: d.In(time.UTC)}
}

func (f Fixed) Now() time.Time {
	return f.Instant
}

// Today returns the date-only value of the clock's current instant in UTC.
// All period and due-date comparisons go through this so the server timezone
// never leaks into date math.
func Today(c Clock) civil.Date {
	return civil.DateOf(c.Now().UTC())
}
