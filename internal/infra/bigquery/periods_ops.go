package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const periodColumns = `
	period_id,
	person_id,
	start_date,
	end_date,
	is_active`

// InsertPeriodWithClient inserts a budget period. For open periods the
// insert is guarded by a NOT EXISTS subquery so the single-open-period
// invariant holds even across concurrent writers: zero affected rows means
// another open period already exists.
func InsertPeriodWithClient(ctx context.Context, client *bigquery.Client, p *domain.BudgetPeriod) error {
	if p.EndDate != nil {
		row := periodRow(p)
		table := client.DatasetInProject(projectID, datasetID).Table(periodsTable)
		if err := table.Inserter().Put(ctx, row); err != nil {
			return fmt.Errorf("InsertPeriod: inserting row: %w", err)
		}
		return nil
	}

	affected, err := runDML(ctx, client, fmt.Sprintf(`
		INSERT %s.%s (period_id, person_id, start_date, end_date, is_active)
		SELECT @period_id, @person_id, @start_date, NULL, @is_active
		FROM (SELECT 1)
		WHERE NOT EXISTS (
			SELECT 1 FROM %s.%s
			WHERE person_id = @person_id AND end_date IS NULL
		)
	`, datasetID, periodsTable, datasetID, periodsTable), []bigquery.QueryParameter{
		{Name: "period_id", Value: p.ID},
		{Name: "person_id", Value: p.PersonID},
		{Name: "start_date", Value: p.StartDate.String()},
		{Name: "is_active", Value: p.IsActive},
	})
	if err != nil {
		return fmt.Errorf("InsertPeriod: %w", err)
	}
	if affected == 0 {
		return domain.NewValidationError("person %s already has an open period", p.PersonID)
	}
	return nil
}

// GetPeriodWithClient fetches one period by id.
func GetPeriodWithClient(ctx context.Context, client *bigquery.Client, id string) (*domain.BudgetPeriod, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE period_id = @period_id
	`, periodColumns, datasetID, periodsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "period_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetPeriod: query read: %w", err)
	}

	var row PeriodRow
	switch err := it.Next(&row); err {
	case nil:
		return row.toDomain(), nil
	case iterator.Done:
		return nil, &domain.NotFoundError{Kind: "budget period", ID: id}
	default:
		return nil, fmt.Errorf("GetPeriod: iterating: %w", err)
	}
}

// ListPeriodsWithClient lists a person's periods, newest first.
func ListPeriodsWithClient(ctx context.Context, client *bigquery.Client, personID string) ([]*domain.BudgetPeriod, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE (@person_id = "" OR person_id = @person_id)
		ORDER BY start_date DESC
	`, periodColumns, datasetID, periodsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "person_id", Value: personID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPeriods: query read: %w", err)
	}

	var result []*domain.BudgetPeriod
	for {
		var row PeriodRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListPeriods: iterating: %w", err)
		}
		result = append(result, row.toDomain())
	}
	return result, nil
}

// GetOpenPeriodWithClient returns the person's single open period. Two open
// rows is data corruption and surfaces as an invariant violation, not a
// silent pick.
func GetOpenPeriodWithClient(ctx context.Context, client *bigquery.Client, personID string) (*domain.BudgetPeriod, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE person_id = @person_id AND end_date IS NULL
	`, periodColumns, datasetID, periodsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "person_id", Value: personID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetOpenPeriod: query read: %w", err)
	}

	var open []*domain.BudgetPeriod
	for {
		var row PeriodRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetOpenPeriod: iterating: %w", err)
		}
		open = append(open, row.toDomain())
	}

	switch len(open) {
	case 0:
		return nil, &domain.NotFoundError{Kind: "open budget period", ID: personID}
	case 1:
		return open[0], nil
	default:
		return nil, &domain.InvariantViolation{
			Entity: "person",
			ID:     personID,
			Reason: fmt.Sprintf("%d open budget periods", len(open)),
		}
	}
}

// ClosePeriodWithClient sets the end date and clears the active flag.
func ClosePeriodWithClient(ctx context.Context, client *bigquery.Client, id string, endDate civil.Date) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET end_date = @end_date,
		    is_active = FALSE
		WHERE period_id = @period_id
	`, datasetID, periodsTable), []bigquery.QueryParameter{
		{Name: "end_date", Value: endDate.String()},
		{Name: "period_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("ClosePeriod: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "budget period", ID: id}
	}
	return nil
}
