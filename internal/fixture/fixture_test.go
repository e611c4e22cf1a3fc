package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/inmemory"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, `{
		"persons": [{"id": "p1", "name": "Dima", "budget_start_day": 25}],
		"budgets": [{"id": "b1", "person_id": "p1", "amount": "200", "categories": ["groceries"]}],
		"series": [{
			"id": "s1", "person_id": "p1", "description": "Rent",
			"amount": "900", "type": "expense", "category": "housing",
			"frequency": "monthly", "start_date": "2024-01-01", "day_of_month": 1,
			"auto_execute": true
		}],
		"transactions": [{
			"id": "t1", "person_id": "p1", "amount": "42.50",
			"type": "expense", "category": "groceries", "date": "2024-03-05"
		}]
	}`)

	st := inmemory.NewStore(nil)
	if err := Load(ctx, path, st); err != nil {
		t.Fatalf("Load: %v", err)
	}

	person, err := st.GetPerson(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if person.BudgetStartDay != 25 {
		t.Errorf("BudgetStartDay = %d, want 25", person.BudgetStartDay)
	}

	series, err := st.GetSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if !series.IsActive {
		t.Error("loaded series should be active")
	}
	// NextDueDate defaults to the start date when omitted.
	if series.NextDueDate != series.StartDate {
		t.Errorf("NextDueDate = %s, want %s", series.NextDueDate, series.StartDate)
	}

	txs, err := st.ListTransactions(ctx, store.TransactionFilter{PersonID: "p1"})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("transactions = %+v, want one of 42.50", txs)
	}
}

func TestLoadRejectsBadData(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "malformed json",
			contents: `{`,
		},
		{
			name: "bad amount",
			contents: `{"transactions": [{
				"id": "t1", "person_id": "p1", "amount": "lots",
				"type": "expense", "date": "2024-03-05"
			}]}`,
		},
		{
			name: "unknown frequency",
			contents: `{"series": [{
				"id": "s1", "person_id": "p1", "amount": "10",
				"type": "expense", "frequency": "fortnightly", "start_date": "2024-01-01"
			}]}`,
		},
		{
			name: "unknown type",
			contents: `{"transactions": [{
				"id": "t1", "person_id": "p1", "amount": "10",
				"type": "loan", "date": "2024-03-05"
			}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, tt.contents)
			if err := Load(ctx, path, inmemory.NewStore(nil)); err == nil {
				t.Error("Load accepted bad data")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(context.Background(), "/nonexistent/fixture.json", inmemory.NewStore(nil)); err == nil {
		t.Error("Load accepted a missing file")
	}
}
