// Package schedule computes when recurring series are due, executes them into
// concrete transactions, and tracks their execution health. Execution of a
// single series is a critical section: the scheduler re-reads state under the
// series lock and advances the due date with a compare-and-swap so two
// concurrent passes can never fire the same cycle twice.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/calendar"
	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/keylock"
	"github.com/dvloznov/budget-tracker/internal/store"
)

const (
	// DefaultMaxDaysOverdue bounds how far behind a series may fall and
	// still fire in a due pass. Series beyond the window go to the missed
	// report instead of bulk-firing back-dated transactions.
	DefaultMaxDaysOverdue = 7

	// DefaultAutoPauseThreshold pauses a series after this many consecutive
	// failed executions so a permanently broken series stops churning every
	// pass. Zero disables the safeguard.
	DefaultAutoPauseThreshold = 5

	// DefaultWorkers bounds the fan-out of a due pass.
	DefaultWorkers = 4
)

// Options tunes a Scheduler. Zero values take the defaults above.
type Options struct {
	MaxDaysOverdue     int
	AutoPauseThreshold int
	Workers            int
}

func (o Options) withDefaults() Options {
	if o.MaxDaysOverdue == 0 {
		o.MaxDaysOverdue = DefaultMaxDaysOverdue
	}
	if o.AutoPauseThreshold == 0 {
		o.AutoPauseThreshold = DefaultAutoPauseThreshold
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Scheduler is the recurring series scheduler and executor.
type Scheduler struct {
	series store.SeriesStore
	txs    store.TransactionStore
	clk    clock.Clock
	locks  *keylock.Table
	log    zerolog.Logger
	opts   Options
}

// NewScheduler creates a scheduler over the given stores.
func NewScheduler(series store.SeriesStore, txs store.TransactionStore, clk clock.Clock, log zerolog.Logger, opts Options) *Scheduler {
	return &Scheduler{
		series: series,
		txs:    txs,
		clk:    clk,
		locks:  keylock.NewTable(),
		log:    log,
		opts:   opts.withDefaults(),
	}
}

// IsDue reports whether the series' next due date has arrived and is still
// inside the overdue window. Pause and active state are checked separately
// by the pass selection; IsDue is pure date arithmetic.
func IsDue(s *domain.RecurringSeries, asOf civil.Date, maxDaysOverdue int) bool {
	if s.NextDueDate.After(asOf) {
		return false
	}
	return calendar.DaysBetween(s.NextDueDate, asOf) <= maxDaysOverdue
}

// NextAfter returns the due date following due for the series' frequency.
// Monthly and yearly steps aim for the series' preferred day (and month),
// clamping in short months; a day-31 series visits Feb 28 and returns to
// Mar 31. Once-only series have no next date and get due back unchanged.
func NextAfter(s *domain.RecurringSeries, due civil.Date) civil.Date {
	switch s.Frequency {
	case domain.FrequencyWeekly:
		return due.AddDays(7)
	case domain.FrequencyBiweekly:
		return due.AddDays(14)
	case domain.FrequencyMonthly:
		return calendar.AddMonths(due, 1, s.DayOfMonth)
	case domain.FrequencyYearly:
		return calendar.AddYears(due, 1, s.MonthOfYear, s.DayOfMonth)
	}
	return due
}

// Execute fires one series as of today: emits the transaction, advances the
// due date, updates the counters. See executeAt for the mechanics.
func (s *Scheduler) Execute(ctx context.Context, seriesID string) (*domain.Transaction, error) {
	return s.executeAt(ctx, seriesID, clock.Today(s.clk))
}

// errSkipped marks a series that turned out not to be executable once its
// fresh state was read under the lock. Not a failure.
var errSkipped = errors.New("schedule: series skipped")

// executeAt is the per-series critical section. State is re-read under the
// series lock, preconditions are re-checked, the transaction is written, and
// the due-date advance is a compare-and-swap against the due date just read.
// A downstream write failure is recoverable: counters are bumped, the due
// date stays put, and the series retries next pass.
func (s *Scheduler) executeAt(ctx context.Context, seriesID string, asOf civil.Date) (*domain.Transaction, error) {
	s.locks.Lock(seriesID)
	defer s.locks.Unlock(seriesID)

	series, err := s.series.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !series.IsActive {
		return nil, domain.NewValidationError("series %s is inactive", seriesID)
	}
	if series.PausedOn(asOf) {
		return nil, domain.NewValidationError("series %s is paused", seriesID)
	}

	tx := s.buildTransaction(series, asOf)
	if err := s.txs.CreateTransaction(ctx, tx); err != nil {
		return nil, s.recordFailure(ctx, series, fmt.Errorf("creating transaction: %w", err))
	}

	next := NextAfter(series, series.NextDueDate)
	err = s.series.RecordExecution(ctx, seriesID, series.NextDueDate, next, asOf)
	switch {
	case errors.Is(err, store.ErrDueDateConflict):
		// Another pass fired this cycle first. Take back our emission and
		// report a skip rather than a duplicate.
		if delErr := s.txs.DeleteTransaction(ctx, tx.ID); delErr != nil {
			s.log.Error().
				Err(delErr).
				Str("series_id", seriesID).
				Str("transaction_id", tx.ID).
				Msg("Failed to remove duplicate emission after due-date conflict")
		}
		return nil, errSkipped
	case err != nil:
		return nil, s.recordFailure(ctx, series, fmt.Errorf("advancing due date: %w", err))
	}

	if series.Frequency == domain.FrequencyOnce {
		if err := s.series.SetActive(ctx, seriesID, false); err != nil {
			s.log.Error().
				Err(err).
				Str("series_id", seriesID).
				Msg("Failed to deactivate one-shot series after execution")
		}
	}

	s.log.Info().
		Str("series_id", seriesID).
		Str("transaction_id", tx.ID).
		Str("due_date", series.NextDueDate.String()).
		Str("next_due_date", next.String()).
		Msg("Executed recurring series")

	return tx, nil
}

func (s *Scheduler) buildTransaction(series *domain.RecurringSeries, asOf civil.Date) *domain.Transaction {
	return &domain.Transaction{
		ID:                uuid.New().String(),
		PersonID:          series.PersonID,
		Description:       series.Description,
		Amount:            series.Amount,
		Type:              series.Type,
		Category:          series.Category,
		Date:              asOf,
		AccountID:         series.AccountID,
		ToAccountID:       series.ToAccountID,
		RecurringSeriesID: series.ID,
	}
}

// recordFailure bumps the failure counters, applies the auto-pause safeguard
// and wraps err as recoverable so the pass carries on with other series.
func (s *Scheduler) recordFailure(ctx context.Context, series *domain.RecurringSeries, err error) error {
	consecutive, recErr := s.series.RecordFailure(ctx, series.ID)
	if recErr != nil {
		s.log.Error().
			Err(recErr).
			Str("series_id", series.ID).
			Msg("Failed to record execution failure")
	}

	s.log.Warn().
		Err(err).
		Str("series_id", series.ID).
		Int("consecutive_failures", consecutive).
		Msg("Series execution failed")

	if s.opts.AutoPauseThreshold > 0 && consecutive >= s.opts.AutoPauseThreshold {
		if pauseErr := s.series.SetPaused(ctx, series.ID, true, nil); pauseErr != nil {
			s.log.Error().
				Err(pauseErr).
				Str("series_id", series.ID).
				Msg("Failed to auto-pause series")
		} else {
			s.log.Warn().
				Str("series_id", series.ID).
				Int("consecutive_failures", consecutive).
				Msg("Auto-paused series after repeated failures")
		}
	}

	return &domain.RecoverableExecutionError{SeriesID: series.ID, Err: err}
}

// Pause suspends a series, optionally until a date after which it counts as
// resumed. The next due date is never touched: on resume an overdue series is
// simply due again on the next pass, subject to the normal overdue window.
func (s *Scheduler) Pause(ctx context.Context, seriesID string, until *civil.Date) error {
	s.locks.Lock(seriesID)
	defer s.locks.Unlock(seriesID)

	if err := s.series.SetPaused(ctx, seriesID, true, until); err != nil {
		return err
	}
	s.log.Info().Str("series_id", seriesID).Msg("Paused series")
	return nil
}

// Resume clears the pause flag and any pause-until date.
func (s *Scheduler) Resume(ctx context.Context, seriesID string) error {
	s.locks.Lock(seriesID)
	defer s.locks.Unlock(seriesID)

	if err := s.series.SetPaused(ctx, seriesID, false, nil); err != nil {
		return err
	}
	s.log.Info().Str("series_id", seriesID).Msg("Resumed series")
	return nil
}
