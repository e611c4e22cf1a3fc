// Package budget composes the period manager, the reconciliation engine and
// raw transactions into the spend/remaining figures a display layer shows.
package budget

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/period"
	"github.com/dvloznov/budget-tracker/internal/reconcile"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Aggregator computes budget state for display. It owns no state of its own.
type Aggregator struct {
	periods *period.Manager
	engine  *reconcile.Engine
	txs     store.TransactionStore
	log     zerolog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(periods *period.Manager, engine *reconcile.Engine, txs store.TransactionStore, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		periods: periods,
		engine:  engine,
		txs:     txs,
		log:     log,
	}
}

// Summary is one budget's state over the person's current period.
type Summary struct {
	BudgetID    string          `json:"budget_id"`
	PersonID    string          `json:"person_id"`
	PeriodLabel string          `json:"period_label"`
	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed float64         `json:"percent_used"`
}

// Summarize computes the budget's spend over the person's current period.
// Spend counts effective amounts (the reconciliation remainder for linked
// parents, zero for children) of in-period, in-category expenses. Transfers
// never count.
func (a *Aggregator) Summarize(ctx context.Context, person *domain.Person, b *domain.Budget) (*Summary, error) {
	current, err := a.periods.GetCurrentPeriod(ctx, person)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}

	txs, err := a.txs.ListTransactions(ctx, store.TransactionFilter{
		PersonID: person.ID,
		From:     &current.StartDate,
		To:       current.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("Summarize: listing transactions: %w", err)
	}

	spent := decimal.Zero
	for _, tx := range txs {
		if tx.Type != domain.TransactionTypeExpense {
			continue
		}
		if !b.CoversCategory(tx.Category) {
			continue
		}
		effective, err := a.engine.EffectiveAmount(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("Summarize: effective amount of %s: %w", tx.ID, err)
		}
		spent = spent.Add(effective)
	}

	s := &Summary{
		BudgetID:    b.ID,
		PersonID:    person.ID,
		PeriodLabel: period.FormatPeriodLabel(current),
		Amount:      b.Amount,
		Spent:       spent,
		Remaining:   b.Amount.Sub(spent),
	}
	if b.Amount.IsPositive() {
		used, _ := spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Float64()
		s.PercentUsed = used
	}
	return s, nil
}

// SummarizeAll computes summaries for every budget of the person.
func (a *Aggregator) SummarizeAll(ctx context.Context, person *domain.Person, budgets []*domain.Budget) ([]*Summary, error) {
	result := make([]*Summary, 0, len(budgets))
	for _, b := range budgets {
		s, err := a.Summarize(ctx, person, b)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}
