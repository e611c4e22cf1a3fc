package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// InsertPersonWithClient inserts one person row.
func InsertPersonWithClient(ctx context.Context, client *bigquery.Client, p *domain.Person) error {
	table := client.DatasetInProject(projectID, datasetID).Table(personsTable)
	if err := table.Inserter().Put(ctx, personRow(p)); err != nil {
		return fmt.Errorf("InsertPerson: inserting row: %w", err)
	}
	return nil
}

// GetPersonWithClient fetches one person by id.
func GetPersonWithClient(ctx context.Context, client *bigquery.Client, id string) (*domain.Person, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT person_id, name, budget_start_day
		FROM %s.%s
		WHERE person_id = @person_id
	`, datasetID, personsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "person_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetPerson: query read: %w", err)
	}

	var row PersonRow
	switch err := it.Next(&row); err {
	case nil:
		return row.toDomain(), nil
	case iterator.Done:
		return nil, &domain.NotFoundError{Kind: "person", ID: id}
	default:
		return nil, fmt.Errorf("GetPerson: iterating: %w", err)
	}
}

// ListPersonsWithClient lists all persons.
func ListPersonsWithClient(ctx context.Context, client *bigquery.Client) ([]*domain.Person, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT person_id, name, budget_start_day
		FROM %s.%s
		ORDER BY name
	`, datasetID, personsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPersons: query read: %w", err)
	}

	var result []*domain.Person
	for {
		var row PersonRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListPersons: iterating: %w", err)
		}
		result = append(result, row.toDomain())
	}
	return result, nil
}

// InsertBudgetWithClient inserts one budget row.
func InsertBudgetWithClient(ctx context.Context, client *bigquery.Client, b *domain.Budget) error {
	table := client.DatasetInProject(projectID, datasetID).Table(budgetsTable)
	if err := table.Inserter().Put(ctx, budgetRow(b)); err != nil {
		return fmt.Errorf("InsertBudget: inserting row: %w", err)
	}
	return nil
}

// GetBudgetWithClient fetches one budget by id.
func GetBudgetWithClient(ctx context.Context, client *bigquery.Client, id string) (*domain.Budget, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT budget_id, person_id, description, amount, categories, period_kind
		FROM %s.%s
		WHERE budget_id = @budget_id
	`, datasetID, budgetsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "budget_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBudget: query read: %w", err)
	}

	var row BudgetRow
	switch err := it.Next(&row); err {
	case nil:
		return row.toDomain(), nil
	case iterator.Done:
		return nil, &domain.NotFoundError{Kind: "budget", ID: id}
	default:
		return nil, fmt.Errorf("GetBudget: iterating: %w", err)
	}
}

// ListBudgetsWithClient lists budgets, optionally narrowed to one person.
func ListBudgetsWithClient(ctx context.Context, client *bigquery.Client, personID string) ([]*domain.Budget, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT budget_id, person_id, description, amount, categories, period_kind
		FROM %s.%s
		WHERE (@person_id = "" OR person_id = @person_id)
		ORDER BY description
	`, datasetID, budgetsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "person_id", Value: personID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: query read: %w", err)
	}

	var result []*domain.Budget
	for {
		var row BudgetRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBudgets: iterating: %w", err)
		}
		result = append(result, row.toDomain())
	}
	return result, nil
}
