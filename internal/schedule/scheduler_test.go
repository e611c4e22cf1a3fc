package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/inmemory"
)

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func newTestScheduler(t *testing.T, today string, opts Options) (*Scheduler, *inmemory.Store) {
	t.Helper()
	clk := clock.NewFixed(mustDate(t, today))
	st := inmemory.NewStore(clk)
	return NewScheduler(st, st, clk, logger.Nop(), opts), st
}

func seedSeries(ctx context.Context, t *testing.T, st store.SeriesStore, s *domain.RecurringSeries) {
	t.Helper()
	if s.Amount.IsZero() {
		s.Amount = decimal.RequireFromString("50")
	}
	if s.Type == "" {
		s.Type = domain.TransactionTypeExpense
	}
	if s.PersonID == "" {
		s.PersonID = "p1"
	}
	if err := st.CreateSeries(ctx, s); err != nil {
		t.Fatalf("CreateSeries(%s): %v", s.ID, err)
	}
}

func TestNextAfter(t *testing.T) {
	tests := []struct {
		name   string
		series domain.RecurringSeries
		due    string
		want   string
	}{
		{
			name:   "weekly",
			series: domain.RecurringSeries{Frequency: domain.FrequencyWeekly},
			due:    "2024-01-01",
			want:   "2024-01-08",
		},
		{
			name:   "biweekly",
			series: domain.RecurringSeries{Frequency: domain.FrequencyBiweekly},
			due:    "2024-01-01",
			want:   "2024-01-15",
		},
		{
			name:   "monthly plain",
			series: domain.RecurringSeries{Frequency: domain.FrequencyMonthly, DayOfMonth: 15},
			due:    "2024-01-15",
			want:   "2024-02-15",
		},
		{
			name:   "monthly day 31 clamps into february",
			series: domain.RecurringSeries{Frequency: domain.FrequencyMonthly, DayOfMonth: 31},
			due:    "2024-01-31",
			want:   "2024-02-29",
		},
		{
			name:   "monthly day 31 recovers after february",
			series: domain.RecurringSeries{Frequency: domain.FrequencyMonthly, DayOfMonth: 31},
			due:    "2024-02-29",
			want:   "2024-03-31",
		},
		{
			name:   "yearly leap day",
			series: domain.RecurringSeries{Frequency: domain.FrequencyYearly, MonthOfYear: time.February, DayOfMonth: 29},
			due:    "2024-02-29",
			want:   "2025-02-28",
		},
		{
			name:   "once unchanged",
			series: domain.RecurringSeries{Frequency: domain.FrequencyOnce},
			due:    "2024-01-01",
			want:   "2024-01-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextAfter(&tt.series, mustDate(t, tt.due))
			if got != mustDate(t, tt.want) {
				t.Errorf("NextAfter(%s) = %s, want %s", tt.due, got, tt.want)
			}
		})
	}
}

func TestIsDue(t *testing.T) {
	tests := []struct {
		name    string
		nextDue string
		asOf    string
		window  int
		want    bool
	}{
		{name: "due today", nextDue: "2024-01-10", asOf: "2024-01-10", window: 7, want: true},
		{name: "due tomorrow", nextDue: "2024-01-11", asOf: "2024-01-10", window: 7, want: false},
		{name: "overdue inside window", nextDue: "2024-01-05", asOf: "2024-01-10", window: 7, want: true},
		{name: "overdue at window edge", nextDue: "2024-01-03", asOf: "2024-01-10", window: 7, want: true},
		{name: "overdue beyond window", nextDue: "2023-12-31", asOf: "2024-01-10", window: 7, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &domain.RecurringSeries{NextDueDate: mustDate(t, tt.nextDue)}
			if got := IsDue(s, mustDate(t, tt.asOf), tt.window); got != tt.want {
				t.Errorf("IsDue(%s as of %s, window %d) = %v, want %v",
					tt.nextDue, tt.asOf, tt.window, got, tt.want)
			}
		})
	}
}

func TestExecuteAdvancesDueDate(t *testing.T) {
	ctx := context.Background()
	sched, st := newTestScheduler(t, "2024-01-01", Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "rent",
		Description: "Monthly rent",
		Frequency:   domain.FrequencyWeekly,
		StartDate:   mustDate(t, "2024-01-01"),
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
		AutoExecute: true,
	})

	tx, err := sched.Execute(ctx, "rent")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tx.RecurringSeriesID != "rent" {
		t.Errorf("transaction series id = %q, want rent", tx.RecurringSeriesID)
	}
	if tx.Date != mustDate(t, "2024-01-01") {
		t.Errorf("transaction date = %s, want 2024-01-01", tx.Date)
	}

	series, err := st.GetSeries(ctx, "rent")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if want := mustDate(t, "2024-01-08"); series.NextDueDate != want {
		t.Errorf("NextDueDate = %s, want %s", series.NextDueDate, want)
	}
	if series.TotalExecutions != 1 {
		t.Errorf("TotalExecutions = %d, want 1", series.TotalExecutions)
	}
	if series.LastExecutedDate == nil || *series.LastExecutedDate != mustDate(t, "2024-01-01") {
		t.Errorf("LastExecutedDate = %v, want 2024-01-01", series.LastExecutedDate)
	}

	stored, err := st.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !stored.Amount.Equal(decimal.RequireFromString("50")) {
		t.Errorf("stored amount = %s, want 50", stored.Amount)
	}
}

func TestExecutePreconditions(t *testing.T) {
	ctx := context.Background()
	sched, st := newTestScheduler(t, "2024-01-01", Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "inactive",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    false,
	})
	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "paused",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
		IsPaused:    true,
	})

	if _, err := sched.Execute(ctx, "inactive"); !domain.IsValidation(err) {
		t.Errorf("Execute(inactive) = %v, want validation error", err)
	}
	if _, err := sched.Execute(ctx, "paused"); !domain.IsValidation(err) {
		t.Errorf("Execute(paused) = %v, want validation error", err)
	}
	if _, err := sched.Execute(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("Execute(missing) = %v, want not-found", err)
	}
}

func TestExecutePauseUntilLapsed(t *testing.T) {
	ctx := context.Background()
	sched, st := newTestScheduler(t, "2024-02-01", Options{})

	until := mustDate(t, "2024-01-15")
	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "lapsed",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-02-01"),
		IsActive:    true,
		IsPaused:    true,
		PauseUntil:  &until,
	})

	// The pause window is over, so the series executes even though the flag
	// was never cleared.
	if _, err := sched.Execute(ctx, "lapsed"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteOnceDeactivates(t *testing.T) {
	ctx := context.Background()
	sched, st := newTestScheduler(t, "2024-01-01", Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "oneshot",
		Frequency:   domain.FrequencyOnce,
		StartDate:   mustDate(t, "2024-01-01"),
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
	})

	if _, err := sched.Execute(ctx, "oneshot"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	series, err := st.GetSeries(ctx, "oneshot")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.IsActive {
		t.Error("one-shot series still active after execution")
	}
}

// conflictSeriesStore simulates another process winning the due-date advance.
type conflictSeriesStore struct {
	store.SeriesStore
}

func (c *conflictSeriesStore) RecordExecution(ctx context.Context, id string, expectedDue, nextDue, executedOn civil.Date) error {
	return store.ErrDueDateConflict
}

func TestExecuteDueDateConflict(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(mustDate(t, "2024-01-01"))
	st := inmemory.NewStore(clk)
	sched := NewScheduler(&conflictSeriesStore{SeriesStore: st}, st, clk, logger.Nop(), Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "contested",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
	})

	_, err := sched.Execute(ctx, "contested")
	if !errors.Is(err, errSkipped) {
		t.Fatalf("Execute = %v, want skip", err)
	}

	// The losing side must take back its emission.
	txs, err := st.ListTransactions(ctx, store.TransactionFilter{SeriesID: "contested"})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("found %d transactions after conflict, want 0", len(txs))
	}
}

// flakyTxStore fails transaction creation for chosen series ids.
type flakyTxStore struct {
	store.TransactionStore
	failSeries map[string]bool
}

func (f *flakyTxStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if f.failSeries[tx.RecurringSeriesID] {
		return errors.New("backend unavailable")
	}
	return f.TransactionStore.CreateTransaction(ctx, tx)
}

func TestExecuteFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(mustDate(t, "2024-01-01"))
	st := inmemory.NewStore(clk)
	txs := &flakyTxStore{TransactionStore: st, failSeries: map[string]bool{"broken": true}}
	sched := NewScheduler(st, txs, clk, logger.Nop(), Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "broken",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
	})

	_, err := sched.Execute(ctx, "broken")
	if !domain.IsRecoverable(err) {
		t.Fatalf("Execute = %v, want recoverable execution error", err)
	}

	series, err := st.GetSeries(ctx, "broken")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	// Failure leaves the schedule where it was so the next pass retries.
	if want := mustDate(t, "2024-01-01"); series.NextDueDate != want {
		t.Errorf("NextDueDate = %s, want %s unchanged", series.NextDueDate, want)
	}
	if series.FailedExecutions != 1 || series.ConsecutiveFailures != 1 {
		t.Errorf("failure counters = %d/%d, want 1/1", series.FailedExecutions, series.ConsecutiveFailures)
	}
}

func TestAutoPauseAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(mustDate(t, "2024-01-01"))
	st := inmemory.NewStore(clk)
	txs := &flakyTxStore{TransactionStore: st, failSeries: map[string]bool{"broken": true}}
	sched := NewScheduler(st, txs, clk, logger.Nop(), Options{AutoPauseThreshold: 2})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "broken",
		Frequency:   domain.FrequencyWeekly,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
	})

	if _, err := sched.Execute(ctx, "broken"); !domain.IsRecoverable(err) {
		t.Fatalf("first Execute = %v, want recoverable", err)
	}
	series, err := st.GetSeries(ctx, "broken")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.IsPaused {
		t.Fatal("series paused before reaching the threshold")
	}

	if _, err := sched.Execute(ctx, "broken"); !domain.IsRecoverable(err) {
		t.Fatalf("second Execute = %v, want recoverable", err)
	}
	series, err = st.GetSeries(ctx, "broken")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if !series.IsPaused {
		t.Error("series not auto-paused after hitting the threshold")
	}
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	sched, st := newTestScheduler(t, "2024-01-01", Options{})

	seedSeries(ctx, t, st, &domain.RecurringSeries{
		ID:          "sub",
		Frequency:   domain.FrequencyMonthly,
		DayOfMonth:  1,
		NextDueDate: mustDate(t, "2024-01-01"),
		IsActive:    true,
	})

	until := mustDate(t, "2024-03-01")
	if err := sched.Pause(ctx, "sub", &until); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	series, err := st.GetSeries(ctx, "sub")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if !series.IsPaused || series.PauseUntil == nil || *series.PauseUntil != until {
		t.Errorf("pause state = %v until %v, want paused until %s", series.IsPaused, series.PauseUntil, until)
	}
	// Pausing never rewrites the schedule.
	if want := mustDate(t, "2024-01-01"); series.NextDueDate != want {
		t.Errorf("NextDueDate = %s, want %s unchanged", series.NextDueDate, want)
	}

	if err := sched.Resume(ctx, "sub"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	series, err = st.GetSeries(ctx, "sub")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.IsPaused || series.PauseUntil != nil {
		t.Errorf("resume left pause state %v until %v", series.IsPaused, series.PauseUntil)
	}
}
