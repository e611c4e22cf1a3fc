package schedule

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/calendar"
	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// MissedSeries is one entry of the missed-execution report: a series whose
// due date slipped past the overdue window, so due passes no longer fire it.
type MissedSeries struct {
	SeriesID    string     `json:"series_id"`
	Description string     `json:"description"`
	NextDueDate civil.Date `json:"next_due_date"`
	DaysOverdue int        `json:"days_overdue"`
	IsPaused    bool       `json:"is_paused"`
}

// MissedExecutions reports active series overdue beyond the window. These
// are deliberately excluded from due passes, since a long-forgotten series
// must not bulk-fire years of back-dated transactions, so this report is the
// only place they surface.
func (s *Scheduler) MissedExecutions(ctx context.Context, personID string, maxDaysOverdue int) ([]MissedSeries, error) {
	if maxDaysOverdue <= 0 {
		maxDaysOverdue = s.opts.MaxDaysOverdue
	}
	asOf := clock.Today(s.clk)

	all, err := s.series.ListSeries(ctx, personID)
	if err != nil {
		return nil, err
	}

	var missed []MissedSeries
	for _, series := range all {
		if !series.IsActive || series.Ended(asOf) {
			continue
		}
		overdue := calendar.DaysBetween(series.NextDueDate, asOf)
		if overdue <= maxDaysOverdue {
			continue
		}
		missed = append(missed, MissedSeries{
			SeriesID:    series.ID,
			Description: series.Description,
			NextDueDate: series.NextDueDate,
			DaysOverdue: overdue,
			IsPaused:    series.PausedOn(asOf),
		})
	}
	sort.Slice(missed, func(i, j int) bool {
		return missed[i].SeriesID < missed[j].SeriesID
	})
	return missed, nil
}

// Health cross-checks a series' counters against the transactions actually
// bearing its id, catching drift such as a generated transaction later
// deleted by the user.
type Health struct {
	SeriesID string `json:"series_id"`

	// ExpectedExecutions counts schedule occurrences from the series start
	// up to today (bounded by the series end date).
	ExpectedExecutions int `json:"expected_executions"`

	// ActualExecutions counts transactions in the store carrying the
	// series id; RecordedExecutions is the series' own counter.
	ActualExecutions   int `json:"actual_executions"`
	RecordedExecutions int `json:"recorded_executions"`

	// MissedPayments is expected minus actual, never negative.
	MissedPayments int `json:"missed_payments"`

	TotalPaid     decimal.Decimal `json:"total_paid"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`

	// SuccessRate is actual over expected, 1 when nothing was expected.
	SuccessRate float64 `json:"success_rate"`
}

// ReconcileSeriesHealth computes the health report for one series.
func (s *Scheduler) ReconcileSeriesHealth(ctx context.Context, seriesID string) (*Health, error) {
	series, err := s.series.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	asOf := clock.Today(s.clk)

	txs, err := s.txs.ListTransactions(ctx, store.TransactionFilter{SeriesID: seriesID})
	if err != nil {
		return nil, err
	}

	h := &Health{
		SeriesID:           seriesID,
		ExpectedExecutions: expectedExecutions(series, asOf),
		ActualExecutions:   len(txs),
		RecordedExecutions: series.TotalExecutions,
	}

	h.TotalPaid = decimal.Zero
	for _, tx := range txs {
		h.TotalPaid = h.TotalPaid.Add(tx.Amount)
	}
	h.ExpectedTotal = series.Amount.Mul(decimal.NewFromInt(int64(h.ExpectedExecutions)))

	if missed := h.ExpectedExecutions - h.ActualExecutions; missed > 0 {
		h.MissedPayments = missed
	}

	if h.ExpectedExecutions == 0 {
		h.SuccessRate = 1
	} else {
		rate := float64(h.ActualExecutions) / float64(h.ExpectedExecutions)
		if rate > 1 {
			rate = 1
		}
		h.SuccessRate = rate
	}

	if h.RecordedExecutions != h.ActualExecutions {
		s.log.Warn().
			Str("series_id", seriesID).
			Int("recorded", h.RecordedExecutions).
			Int("actual", h.ActualExecutions).
			Msg("Series execution counter drifted from stored transactions")
	}

	return h, nil
}

// expectedExecutions walks the schedule from the series start date to asOf.
// The walk is bounded: per-user data is modest and the step is at least a
// week for every repeating frequency.
func expectedExecutions(series *domain.RecurringSeries, asOf civil.Date) int {
	end := asOf
	if series.EndDate != nil && series.EndDate.Before(end) {
		end = *series.EndDate
	}
	if end.Before(series.StartDate) {
		return 0
	}
	if series.Frequency == domain.FrequencyOnce {
		return 1
	}

	count := 0
	for d := series.StartDate; !d.After(end); {
		count++
		next := NextAfter(series, d)
		if !next.After(d) {
			// Unknown frequency; refuse to loop.
			break
		}
		d = next
	}
	return count
}
