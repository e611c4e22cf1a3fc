// Package bigquery implements the store interfaces on BigQuery. Row structs
// mirror the dataset schema; each operation exists both standalone (creating
// its own client) and as a ...WithClient variant for callers holding a shared
// client. Amounts are NUMERIC (*big.Rat at the API boundary) and all
// date-only values are DATE (civil.Date).
package bigquery

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
)

const (
	defaultProjectID = "studious-union-470122-v7"
	defaultDatasetID = "budget"

	personsTable      = "persons"
	budgetsTable      = "budgets"
	periodsTable      = "budget_periods"
	transactionsTable = "transactions"
	seriesTable       = "recurring_series"
)

var (
	projectID = envOr("BUDGET_BQ_PROJECT", defaultProjectID)
	datasetID = envOr("BUDGET_BQ_DATASET", defaultDatasetID)
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// runDML runs a parameterized DML statement and returns the number of
// affected rows. The row count is what lets the series ops turn an UPDATE
// with a guard clause into a compare-and-swap.
func runDML(ctx context.Context, client *bigquery.Client, query string, params []bigquery.QueryParameter) (int64, error) {
	q := client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}
