// Package period owns the lifecycle of a person's budget periods: finding or
// synthesizing the current one, closing, opening and rolling over, all on top
// of the calendar arithmetic in internal/calendar.
package period

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/calendar"
	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/keylock"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Manager creates and closes a person's budget periods. All mutations for one
// person run under that person's lock so close-then-open sequences are atomic
// against concurrent callers.
type Manager struct {
	periods store.PeriodStore
	clk     clock.Clock
	locks   *keylock.Table
	log     zerolog.Logger
}

// NewManager creates a period manager.
func NewManager(periods store.PeriodStore, clk clock.Clock, log zerolog.Logger) *Manager {
	return &Manager{
		periods: periods,
		clk:     clk,
		locks:   keylock.NewTable(),
		log:     log,
	}
}

// GetCurrentPeriod returns the person's period covering today. The stored
// open period wins while it is still temporally valid; otherwise a fresh one
// is synthesized from the person's budget start day, persisted, and returned.
// A store reporting two open periods is surfaced as the invariant violation
// it is, never repaired silently.
func (m *Manager) GetCurrentPeriod(ctx context.Context, person *domain.Person) (*domain.BudgetPeriod, error) {
	m.locks.Lock(person.ID)
	defer m.locks.Unlock(person.ID)

	today := clock.Today(m.clk)

	open, err := m.periods.GetOpenPeriod(ctx, person.ID)
	switch {
	case err == nil:
		if !today.Before(open.StartDate) {
			return open, nil
		}
		// Open period starts in the future: bad data, refuse to guess.
		return nil, &domain.InvariantViolation{
			Entity: "budget period",
			ID:     open.ID,
			Reason: fmt.Sprintf("open period starts %s, after today %s", open.StartDate, today),
		}
	case domain.IsNotFound(err):
		return m.synthesize(ctx, person, today)
	default:
		return nil, fmt.Errorf("GetCurrentPeriod: %w", err)
	}
}

// synthesize creates and persists the period containing today. Caller holds
// the person lock.
func (m *Manager) synthesize(ctx context.Context, person *domain.Person, today civil.Date) (*domain.BudgetPeriod, error) {
	start, _ := calendar.PeriodBounds(today, person.BudgetStartDay)
	p := &domain.BudgetPeriod{
		ID:        uuid.New().String(),
		PersonID:  person.ID,
		StartDate: start,
		IsActive:  true,
	}
	if err := m.periods.CreatePeriod(ctx, p); err != nil {
		return nil, fmt.Errorf("GetCurrentPeriod: creating period: %w", err)
	}

	m.log.Info().
		Str("person_id", person.ID).
		Str("period_id", p.ID).
		Str("start_date", start.String()).
		Msg("Synthesized current budget period")

	return p, nil
}

// CompletePeriod closes the person's open period at endDate and returns the
// full, updated period history. Fails with a validation error when no period
// is open or when endDate precedes the period start.
func (m *Manager) CompletePeriod(ctx context.Context, person *domain.Person, endDate civil.Date) ([]*domain.BudgetPeriod, error) {
	m.locks.Lock(person.ID)
	defer m.locks.Unlock(person.ID)

	if _, err := m.completeLocked(ctx, person, endDate); err != nil {
		return nil, err
	}
	return m.periods.ListPeriods(ctx, person.ID)
}

func (m *Manager) completeLocked(ctx context.Context, person *domain.Person, endDate civil.Date) (*domain.BudgetPeriod, error) {
	open, err := m.periods.GetOpenPeriod(ctx, person.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewValidationError("person %s has no open period to complete", person.ID)
		}
		return nil, fmt.Errorf("CompletePeriod: %w", err)
	}
	if endDate.Before(open.StartDate) {
		return nil, domain.NewValidationError("end date %s is before period start %s", endDate, open.StartDate)
	}
	if err := m.periods.ClosePeriod(ctx, open.ID, endDate); err != nil {
		return nil, fmt.Errorf("CompletePeriod: closing %s: %w", open.ID, err)
	}

	m.log.Info().
		Str("person_id", person.ID).
		Str("period_id", open.ID).
		Str("end_date", endDate.String()).
		Msg("Completed budget period")

	return open, nil
}

// StartNewPeriod appends a new open period starting at startDate and returns
// the updated history. Fails with a validation error when one is already
// open; callers wanting close-then-open use RolloverPeriod.
func (m *Manager) StartNewPeriod(ctx context.Context, person *domain.Person, startDate civil.Date) ([]*domain.BudgetPeriod, error) {
	m.locks.Lock(person.ID)
	defer m.locks.Unlock(person.ID)

	if err := m.startLocked(ctx, person, startDate); err != nil {
		return nil, err
	}
	return m.periods.ListPeriods(ctx, person.ID)
}

func (m *Manager) startLocked(ctx context.Context, person *domain.Person, startDate civil.Date) error {
	p := &domain.BudgetPeriod{
		ID:        uuid.New().String(),
		PersonID:  person.ID,
		StartDate: startDate,
		IsActive:  true,
	}
	if err := m.periods.CreatePeriod(ctx, p); err != nil {
		if domain.IsValidation(err) {
			return err
		}
		return fmt.Errorf("StartNewPeriod: %w", err)
	}

	m.log.Info().
		Str("person_id", person.ID).
		Str("period_id", p.ID).
		Str("start_date", startDate.String()).
		Msg("Started budget period")

	return nil
}

// RolloverPeriod closes the open period the day before asOf's cycle boundary
// and opens the next one, atomically under the person lock. The new period's
// bounds come from the person's budget start day anchored to asOf.
func (m *Manager) RolloverPeriod(ctx context.Context, person *domain.Person, asOf civil.Date) ([]*domain.BudgetPeriod, error) {
	m.locks.Lock(person.ID)
	defer m.locks.Unlock(person.ID)

	start, _ := calendar.PeriodBounds(asOf, person.BudgetStartDay)

	open, err := m.periods.GetOpenPeriod(ctx, person.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewValidationError("person %s has no open period to roll over", person.ID)
		}
		return nil, fmt.Errorf("RolloverPeriod: %w", err)
	}
	if !open.StartDate.Before(start) {
		return nil, domain.NewValidationError(
			"rollover as of %s does not advance past the open period started %s", asOf, open.StartDate)
	}
	if _, err := m.completeLocked(ctx, person, start.AddDays(-1)); err != nil {
		return nil, err
	}
	if err := m.startLocked(ctx, person, start); err != nil {
		return nil, err
	}
	return m.periods.ListPeriods(ctx, person.ID)
}

// FormatPeriodLabel renders a period for display, distinguishing open from
// closed ones.
func FormatPeriodLabel(p *domain.BudgetPeriod) string {
	const layout = "Jan 2, 2006"
	start := p.StartDate.In(time.UTC).Format(layout)
	if p.EndDate == nil {
		return fmt.Sprintf("%s – present", start)
	}
	return fmt.Sprintf("%s – %s", start, p.EndDate.In(time.UTC).Format(layout))
}
