// Package fixture loads a JSON seed file into an in-memory store, so the CLI
// and the scheduler can run locally without a BigQuery project.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store/inmemory"
)

// File is the on-disk fixture shape. Dates are "YYYY-MM-DD" strings and
// amounts are decimal strings, matching how the entities serialize.
type File struct {
	Persons      []Person      `json:"persons"`
	Budgets      []Budget      `json:"budgets"`
	Series       []Series      `json:"series"`
	Transactions []Transaction `json:"transactions"`
}

type Person struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	BudgetStartDay int    `json:"budget_start_day"`
}

type Budget struct {
	ID          string   `json:"id"`
	PersonID    string   `json:"person_id"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	Categories  []string `json:"categories"`
}

type Series struct {
	ID          string `json:"id"`
	PersonID    string `json:"person_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	AccountID   string `json:"account_id"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	NextDueDate string `json:"next_due_date"`
	DayOfMonth  int    `json:"day_of_month"`
	AutoExecute bool   `json:"auto_execute"`
	IsPaused    bool   `json:"is_paused"`
}

type Transaction struct {
	ID          string `json:"id"`
	PersonID    string `json:"person_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	AccountID   string `json:"account_id"`
}

// Load reads path and seeds the store with its contents.
func Load(ctx context.Context, path string, st *inmemory.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Load: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("Load: parsing %s: %w", path, err)
	}

	for _, p := range f.Persons {
		if err := st.CreatePerson(ctx, &domain.Person{
			ID:             p.ID,
			Name:           p.Name,
			BudgetStartDay: p.BudgetStartDay,
		}); err != nil {
			return fmt.Errorf("Load: person %s: %w", p.ID, err)
		}
	}

	for _, b := range f.Budgets {
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return fmt.Errorf("Load: budget %s amount: %w", b.ID, err)
		}
		if err := st.CreateBudget(ctx, &domain.Budget{
			ID:          b.ID,
			PersonID:    b.PersonID,
			Description: b.Description,
			Amount:      amount,
			Categories:  b.Categories,
			PeriodKind:  domain.PeriodKindMonthly,
		}); err != nil {
			return fmt.Errorf("Load: budget %s: %w", b.ID, err)
		}
	}

	for _, s := range f.Series {
		series, err := toSeries(s)
		if err != nil {
			return fmt.Errorf("Load: series %s: %w", s.ID, err)
		}
		if err := st.CreateSeries(ctx, series); err != nil {
			return fmt.Errorf("Load: series %s: %w", s.ID, err)
		}
	}

	for _, t := range f.Transactions {
		tx, err := toTransaction(t)
		if err != nil {
			return fmt.Errorf("Load: transaction %s: %w", t.ID, err)
		}
		if err := st.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("Load: transaction %s: %w", t.ID, err)
		}
	}

	return nil
}

func toSeries(s Series) (*domain.RecurringSeries, error) {
	amount, err := decimal.NewFromString(s.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	start, err := civil.ParseDate(s.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	nextDue := start
	if s.NextDueDate != "" {
		nextDue, err = civil.ParseDate(s.NextDueDate)
		if err != nil {
			return nil, fmt.Errorf("next_due_date: %w", err)
		}
	}

	frequency := domain.Frequency(s.Frequency)
	if !frequency.Valid() {
		return nil, fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	txType := domain.TransactionType(s.Type)
	if !txType.Valid() {
		return nil, fmt.Errorf("unknown type %q", s.Type)
	}

	return &domain.RecurringSeries{
		ID:          s.ID,
		PersonID:    s.PersonID,
		Description: s.Description,
		Amount:      amount,
		Type:        txType,
		Category:    s.Category,
		AccountID:   s.AccountID,
		Frequency:   frequency,
		StartDate:   start,
		NextDueDate: nextDue,
		DayOfMonth:  s.DayOfMonth,
		IsActive:    true,
		IsPaused:    s.IsPaused,
		AutoExecute: s.AutoExecute,
	}, nil
}

func toTransaction(t Transaction) (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	date, err := civil.ParseDate(t.Date)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	txType := domain.TransactionType(t.Type)
	if !txType.Valid() {
		return nil, fmt.Errorf("unknown type %q", t.Type)
	}

	return &domain.Transaction{
		ID:          t.ID,
		PersonID:    t.PersonID,
		Description: t.Description,
		Amount:      amount,
		Type:        txType,
		Category:    t.Category,
		Date:        date,
		AccountID:   t.AccountID,
	}, nil
}
