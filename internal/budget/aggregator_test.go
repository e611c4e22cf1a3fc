package budget

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/period"
	"github.com/dvloznov/budget-tracker/internal/reconcile"
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

type fixtureEnv struct {
	agg    *Aggregator
	st     *inmemory.Store
	engine *reconcile.Engine
	person *domain.Person
}

func newFixtureEnv(t *testing.T, today string) *fixtureEnv {
	t.Helper()
	clk := clock.NewFixed(mustDate(t, today))
	st := inmemory.NewStore(clk)
	periods := period.NewManager(st, clk, logger.Nop())
	engine := reconcile.NewEngine(st, logger.Nop())
	return &fixtureEnv{
		agg:    NewAggregator(periods, engine, st, logger.Nop()),
		st:     st,
		engine: engine,
		person: &domain.Person{ID: "p1", Name: "Dima", BudgetStartDay: 1},
	}
}

func (e *fixtureEnv) addTx(ctx context.Context, t *testing.T, id string, typ domain.TransactionType, category, amount, date string) {
	t.Helper()
	tx := &domain.Transaction{
		ID:       id,
		PersonID: e.person.ID,
		Amount:   decimal.RequireFromString(amount),
		Type:     typ,
		Category: category,
		Date:     mustDate(t, date),
	}
	if err := e.st.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction(%s): %v", id, err)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, "2024-03-10")

	// Period is Mar 1 – present (day 1, Mar 1 2024 is a Friday).
	env.addTx(ctx, t, "groceries-1", domain.TransactionTypeExpense, "groceries", "80", "2024-03-02")
	env.addTx(ctx, t, "groceries-2", domain.TransactionTypeExpense, "groceries", "40", "2024-03-08")
	env.addTx(ctx, t, "rent", domain.TransactionTypeExpense, "housing", "900", "2024-03-01")
	env.addTx(ctx, t, "salary", domain.TransactionTypeIncome, "salary", "3000", "2024-03-01")
	env.addTx(ctx, t, "savings", domain.TransactionTypeTransfer, "groceries", "500", "2024-03-05")
	env.addTx(ctx, t, "old", domain.TransactionTypeExpense, "groceries", "999", "2024-02-15")

	b := &domain.Budget{
		ID:         "b1",
		PersonID:   "p1",
		Amount:     decimal.RequireFromString("200"),
		Categories: []string{"groceries"},
	}

	s, err := env.agg.Summarize(ctx, env.person, b)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	// Income, transfers, other categories and out-of-period spend all stay
	// out of the total.
	if want := decimal.RequireFromString("120"); !s.Spent.Equal(want) {
		t.Errorf("Spent = %s, want %s", s.Spent, want)
	}
	if want := decimal.RequireFromString("80"); !s.Remaining.Equal(want) {
		t.Errorf("Remaining = %s, want %s", s.Remaining, want)
	}
	if s.PercentUsed != 60 {
		t.Errorf("PercentUsed = %v, want 60", s.PercentUsed)
	}
	if s.PeriodLabel == "" {
		t.Error("empty period label")
	}
}

func TestSummarizeCountsEffectiveAmounts(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, "2024-03-10")

	// A 100 expense refunded for 40: only the 60 remainder counts, and the
	// refund itself contributes nothing.
	env.addTx(ctx, t, "purchase", domain.TransactionTypeExpense, "groceries", "100", "2024-03-02")
	env.addTx(ctx, t, "refund", domain.TransactionTypeIncome, "groceries", "40", "2024-03-05")
	if _, _, err := env.engine.Link(ctx, "purchase", "refund"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	b := &domain.Budget{ID: "b1", PersonID: "p1", Amount: decimal.RequireFromString("200")}
	s, err := env.agg.Summarize(ctx, env.person, b)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if want := decimal.RequireFromString("60"); !s.Spent.Equal(want) {
		t.Errorf("Spent = %s, want %s", s.Spent, want)
	}
}

func TestSummarizeEmptyCategoriesCoverEverything(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, "2024-03-10")

	env.addTx(ctx, t, "a", domain.TransactionTypeExpense, "groceries", "30", "2024-03-02")
	env.addTx(ctx, t, "b", domain.TransactionTypeExpense, "housing", "70", "2024-03-03")

	b := &domain.Budget{ID: "b1", PersonID: "p1", Amount: decimal.RequireFromString("500")}
	s, err := env.agg.Summarize(ctx, env.person, b)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if want := decimal.RequireFromString("100"); !s.Spent.Equal(want) {
		t.Errorf("Spent = %s, want %s", s.Spent, want)
	}
}

func TestSummarizeAll(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t, "2024-03-10")

	env.addTx(ctx, t, "a", domain.TransactionTypeExpense, "groceries", "30", "2024-03-02")

	budgets := []*domain.Budget{
		{ID: "b1", PersonID: "p1", Amount: decimal.RequireFromString("200"), Categories: []string{"groceries"}},
		{ID: "b2", PersonID: "p1", Amount: decimal.RequireFromString("100"), Categories: []string{"housing"}},
	}
	summaries, err := env.agg.SummarizeAll(ctx, env.person, budgets)
	if err != nil {
		t.Fatalf("SummarizeAll: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if !summaries[0].Spent.Equal(decimal.RequireFromString("30")) {
		t.Errorf("b1 Spent = %s, want 30", summaries[0].Spent)
	}
	if !summaries[1].Spent.IsZero() {
		t.Errorf("b2 Spent = %s, want 0", summaries[1].Spent)
	}
}
