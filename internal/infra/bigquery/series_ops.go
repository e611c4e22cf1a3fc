package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

const seriesColumns = `
	series_id,
	person_id,
	description,
	amount,
	transaction_type,
	category,
	account_id,
	to_account_id,
	frequency,
	start_date,
	end_date,
	next_due_date,
	day_of_month,
	month_of_year,
	is_active,
	is_paused,
	pause_until,
	auto_execute,
	last_executed_date,
	total_executions,
	failed_executions,
	consecutive_failures,
	created_ts,
	updated_ts`

// InsertSeriesWithClient inserts one recurring series row.
func InsertSeriesWithClient(ctx context.Context, client *bigquery.Client, s *domain.RecurringSeries) error {
	row := seriesRow(s)
	row.CreatedTS = time.Now().UTC()

	table := client.DatasetInProject(projectID, datasetID).Table(seriesTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertSeries: inserting row: %w", err)
	}
	return nil
}

// GetSeriesWithClient fetches one series by id.
func GetSeriesWithClient(ctx context.Context, client *bigquery.Client, id string) (*domain.RecurringSeries, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE series_id = @series_id
	`, seriesColumns, datasetID, seriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "series_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetSeries: query read: %w", err)
	}

	var row SeriesRow
	switch err := it.Next(&row); err {
	case nil:
		return row.toDomain(), nil
	case iterator.Done:
		return nil, &domain.NotFoundError{Kind: "recurring series", ID: id}
	default:
		return nil, fmt.Errorf("GetSeries: iterating: %w", err)
	}
}

// ListSeriesWithClient lists series, optionally narrowed to one person.
func ListSeriesWithClient(ctx context.Context, client *bigquery.Client, personID string) ([]*domain.RecurringSeries, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE (@person_id = "" OR person_id = @person_id)
		ORDER BY created_ts
	`, seriesColumns, datasetID, seriesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "person_id", Value: personID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSeries: query read: %w", err)
	}

	var result []*domain.RecurringSeries
	for {
		var row SeriesRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSeries: iterating: %w", err)
		}
		result = append(result, row.toDomain())
	}
	return result, nil
}

// RecordExecutionWithClient advances the schedule after an emission. The
// next_due_date guard in the WHERE clause is the compare-and-swap: zero
// affected rows with the series still present means a concurrent pass
// already advanced the date, reported as store.ErrDueDateConflict.
func RecordExecutionWithClient(ctx context.Context, client *bigquery.Client, id string, expectedDue, nextDue, executedOn civil.Date) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET next_due_date = @next_due,
		    total_executions = total_executions + 1,
		    consecutive_failures = 0,
		    last_executed_date = @executed_on,
		    updated_ts = @updated_ts
		WHERE series_id = @series_id
		  AND next_due_date = @expected_due
	`, datasetID, seriesTable), []bigquery.QueryParameter{
		{Name: "next_due", Value: nextDue.String()},
		{Name: "executed_on", Value: executedOn.String()},
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "series_id", Value: id},
		{Name: "expected_due", Value: expectedDue.String()},
	})
	if err != nil {
		return fmt.Errorf("RecordExecution: %w", err)
	}
	if affected == 0 {
		if _, getErr := GetSeriesWithClient(ctx, client, id); getErr != nil {
			return getErr
		}
		return store.ErrDueDateConflict
	}
	return nil
}

// RecordFailureWithClient bumps the failure counters and returns the new
// consecutive-failure count.
func RecordFailureWithClient(ctx context.Context, client *bigquery.Client, id string) (int, error) {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET failed_executions = failed_executions + 1,
		    consecutive_failures = consecutive_failures + 1,
		    updated_ts = @updated_ts
		WHERE series_id = @series_id
	`, datasetID, seriesTable), []bigquery.QueryParameter{
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "series_id", Value: id},
	})
	if err != nil {
		return 0, fmt.Errorf("RecordFailure: %w", err)
	}
	if affected == 0 {
		return 0, &domain.NotFoundError{Kind: "recurring series", ID: id}
	}

	series, err := GetSeriesWithClient(ctx, client, id)
	if err != nil {
		return 0, err
	}
	return series.ConsecutiveFailures, nil
}

// SetPausedWithClient flips the pause flag and its optional resume date.
func SetPausedWithClient(ctx context.Context, client *bigquery.Client, id string, paused bool, until *civil.Date) error {
	// A nil until must still go over the wire as a typed NULL. An untyped
	// nil parameter is rejected by the client before the query runs.
	var pauseUntil *civil.Date
	if paused {
		pauseUntil = until
	}

	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET is_paused = @is_paused,
		    pause_until = @pause_until,
		    updated_ts = @updated_ts
		WHERE series_id = @series_id
	`, datasetID, seriesTable), []bigquery.QueryParameter{
		{Name: "is_paused", Value: paused},
		{Name: "pause_until", Value: nullDate(pauseUntil)},
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "series_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("SetPaused: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	return nil
}

// SetActiveWithClient flips the active flag.
func SetActiveWithClient(ctx context.Context, client *bigquery.Client, id string, active bool) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET is_active = @is_active,
		    updated_ts = @updated_ts
		WHERE series_id = @series_id
	`, datasetID, seriesTable), []bigquery.QueryParameter{
		{Name: "is_active", Value: active},
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "series_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("SetActive: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	return nil
}

// DeleteSeriesWithClient removes a series. Emitted transactions keep their
// weak series reference.
func DeleteSeriesWithClient(ctx context.Context, client *bigquery.Client, id string) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE series_id = @series_id
	`, datasetID, seriesTable), []bigquery.QueryParameter{
		{Name: "series_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("DeleteSeries: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	return nil
}
