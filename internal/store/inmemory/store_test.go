package inmemory

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func TestTransactionFilters(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	txs := []*domain.Transaction{
		{ID: "t1", PersonID: "p1", Category: "groceries", Date: mustDate(t, "2024-03-01"), Amount: decimal.New(10, 0), Type: domain.TransactionTypeExpense},
		{ID: "t2", PersonID: "p1", Category: "housing", Date: mustDate(t, "2024-03-15"), Amount: decimal.New(20, 0), Type: domain.TransactionTypeExpense, RecurringSeriesID: "s1"},
		{ID: "t3", PersonID: "p2", Category: "groceries", Date: mustDate(t, "2024-03-20"), Amount: decimal.New(30, 0), Type: domain.TransactionTypeExpense, ParentTransactionID: "t1"},
	}
	for _, tx := range txs {
		if err := st.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction(%s): %v", tx.ID, err)
		}
	}

	from := mustDate(t, "2024-03-10")
	to := mustDate(t, "2024-03-16")
	tests := []struct {
		name   string
		filter store.TransactionFilter
		want   []string
	}{
		{name: "by person", filter: store.TransactionFilter{PersonID: "p1"}, want: []string{"t1", "t2"}},
		{name: "by series", filter: store.TransactionFilter{SeriesID: "s1"}, want: []string{"t2"}},
		{name: "by parent", filter: store.TransactionFilter{ParentID: "t1"}, want: []string{"t3"}},
		{name: "by category", filter: store.TransactionFilter{Category: "groceries"}, want: []string{"t1", "t3"}},
		{name: "by range", filter: store.TransactionFilter{From: &from, To: &to}, want: []string{"t2"}},
		{name: "no match", filter: store.TransactionFilter{PersonID: "nobody"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			ids := make(map[string]bool, len(got))
			for _, tx := range got {
				ids[tx.ID] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.want))
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("missing %s in result", id)
				}
			}
		})
	}
}

func TestRecordExecutionCAS(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	series := &domain.RecurringSeries{
		ID:                  "s1",
		PersonID:            "p1",
		Frequency:           domain.FrequencyWeekly,
		NextDueDate:         mustDate(t, "2024-01-01"),
		IsActive:            true,
		ConsecutiveFailures: 3,
	}
	if err := st.CreateSeries(ctx, series); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	// Wrong expectation: somebody else already advanced the schedule.
	err := st.RecordExecution(ctx, "s1", mustDate(t, "2023-12-25"), mustDate(t, "2024-01-01"), mustDate(t, "2024-01-01"))
	if !errors.Is(err, store.ErrDueDateConflict) {
		t.Fatalf("stale RecordExecution = %v, want ErrDueDateConflict", err)
	}

	// Matching expectation advances and resets the failure streak.
	err = st.RecordExecution(ctx, "s1", mustDate(t, "2024-01-01"), mustDate(t, "2024-01-08"), mustDate(t, "2024-01-01"))
	if err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	got, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if got.NextDueDate != mustDate(t, "2024-01-08") {
		t.Errorf("NextDueDate = %s, want 2024-01-08", got.NextDueDate)
	}
	if got.TotalExecutions != 1 {
		t.Errorf("TotalExecutions = %d, want 1", got.TotalExecutions)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want reset to 0", got.ConsecutiveFailures)
	}
	if got.LastExecutedDate == nil || *got.LastExecutedDate != mustDate(t, "2024-01-01") {
		t.Errorf("LastExecutedDate = %v, want 2024-01-01", got.LastExecutedDate)
	}
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	if err := st.CreateSeries(ctx, &domain.RecurringSeries{ID: "s1", NextDueDate: mustDate(t, "2024-01-01")}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := st.RecordFailure(ctx, "s1")
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if got != want {
			t.Errorf("consecutive failures = %d, want %d", got, want)
		}
	}

	series, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.FailedExecutions != 3 {
		t.Errorf("FailedExecutions = %d, want 3", series.FailedExecutions)
	}
}

func TestSetPausedClearsUntilOnResume(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	if err := st.CreateSeries(ctx, &domain.RecurringSeries{ID: "s1"}); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	until := mustDate(t, "2024-06-01")
	if err := st.SetPaused(ctx, "s1", true, &until); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if err := st.SetPaused(ctx, "s1", false, nil); err != nil {
		t.Fatalf("SetPaused (resume): %v", err)
	}

	series, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.IsPaused || series.PauseUntil != nil {
		t.Errorf("resume state = paused %v until %v", series.IsPaused, series.PauseUntil)
	}
}

func TestCreatePeriodSingleOpen(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	first := &domain.BudgetPeriod{ID: "per1", PersonID: "p1", StartDate: mustDate(t, "2024-01-01"), IsActive: true}
	if err := st.CreatePeriod(ctx, first); err != nil {
		t.Fatalf("CreatePeriod: %v", err)
	}

	second := &domain.BudgetPeriod{ID: "per2", PersonID: "p1", StartDate: mustDate(t, "2024-02-01"), IsActive: true}
	if err := st.CreatePeriod(ctx, second); !domain.IsValidation(err) {
		t.Errorf("second open period = %v, want validation error", err)
	}

	// A different person is unaffected.
	other := &domain.BudgetPeriod{ID: "per3", PersonID: "p2", StartDate: mustDate(t, "2024-02-01"), IsActive: true}
	if err := st.CreatePeriod(ctx, other); err != nil {
		t.Fatalf("CreatePeriod for other person: %v", err)
	}

	// Closing makes room for the next one.
	if err := st.ClosePeriod(ctx, "per1", mustDate(t, "2024-01-31")); err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}
	if err := st.CreatePeriod(ctx, second); err != nil {
		t.Fatalf("CreatePeriod after close: %v", err)
	}

	open, err := st.GetOpenPeriod(ctx, "p1")
	if err != nil {
		t.Fatalf("GetOpenPeriod: %v", err)
	}
	if open.ID != "per2" {
		t.Errorf("open period = %s, want per2", open.ID)
	}
}

func TestGetOpenPeriodNotFound(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	if _, err := st.GetOpenPeriod(ctx, "p1"); !domain.IsNotFound(err) {
		t.Errorf("GetOpenPeriod on empty store = %v, want not-found", err)
	}
}

func TestCopySemantics(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	end := mustDate(t, "2024-12-31")
	series := &domain.RecurringSeries{
		ID:          "s1",
		NextDueDate: mustDate(t, "2024-01-01"),
		EndDate:     &end,
	}
	if err := st.CreateSeries(ctx, series); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	// Mutating what the store handed back must not leak into stored state.
	got, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	got.NextDueDate = mustDate(t, "2030-01-01")
	*got.EndDate = mustDate(t, "2030-12-31")

	fresh, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if fresh.NextDueDate != mustDate(t, "2024-01-01") {
		t.Errorf("stored NextDueDate mutated to %s", fresh.NextDueDate)
	}
	if *fresh.EndDate != mustDate(t, "2024-12-31") {
		t.Errorf("stored EndDate mutated to %s", *fresh.EndDate)
	}

	// Same for the caller's own value after Create.
	series.NextDueDate = mustDate(t, "2031-01-01")
	fresh, err = st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if fresh.NextDueDate != mustDate(t, "2024-01-01") {
		t.Errorf("stored NextDueDate tracks caller's value: %s", fresh.NextDueDate)
	}
}

func TestNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)

	if _, err := st.GetTransaction(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetTransaction = %v, want not-found", err)
	}
	if _, err := st.GetSeries(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetSeries = %v, want not-found", err)
	}
	if _, err := st.GetPeriod(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetPeriod = %v, want not-found", err)
	}
	if _, err := st.GetPerson(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetPerson = %v, want not-found", err)
	}
	if _, err := st.GetBudget(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetBudget = %v, want not-found", err)
	}
	if err := st.DeleteTransaction(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("DeleteTransaction = %v, want not-found", err)
	}
	if err := st.DeleteSeries(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("DeleteSeries = %v, want not-found", err)
	}
}
