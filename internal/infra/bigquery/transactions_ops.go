package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// InsertTransaction inserts a single transaction row.
func InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertTransaction: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertTransactionWithClient(ctx, client, tx)
}

// InsertTransactionWithClient inserts a single transaction row using the
// provided BigQuery client. CreatedTS is stamped server-side here.
func InsertTransactionWithClient(ctx context.Context, client *bigquery.Client, tx *domain.Transaction) error {
	row := transactionRow(tx)
	row.CreatedTS = time.Now().UTC()

	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertTransaction: inserting row: %w", err)
	}
	return nil
}

const transactionColumns = `
	transaction_id,
	person_id,
	description,
	amount,
	transaction_type,
	category,
	transaction_date,
	account_id,
	to_account_id,
	is_reconciled,
	parent_transaction_id,
	recurring_series_id,
	created_ts,
	updated_ts`

// GetTransactionWithClient fetches one transaction by id.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, id string) (*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE transaction_id = @transaction_id
	`, transactionColumns, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query read: %w", err)
	}

	var row TransactionRow
	switch err := it.Next(&row); err {
	case nil:
		return row.toDomain(), nil
	case iterator.Done:
		return nil, &domain.NotFoundError{Kind: "transaction", ID: id}
	default:
		return nil, fmt.Errorf("GetTransaction: iterating: %w", err)
	}
}

// QueryTransactionsWithClient lists transactions matching the filter,
// ordered by date then creation time.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	where := []string{"TRUE"}
	var params []bigquery.QueryParameter

	if filter.PersonID != "" {
		where = append(where, "person_id = @person_id")
		params = append(params, bigquery.QueryParameter{Name: "person_id", Value: filter.PersonID})
	}
	if filter.SeriesID != "" {
		where = append(where, "recurring_series_id = @series_id")
		params = append(params, bigquery.QueryParameter{Name: "series_id", Value: filter.SeriesID})
	}
	if filter.ParentID != "" {
		where = append(where, "parent_transaction_id = @parent_id")
		params = append(params, bigquery.QueryParameter{Name: "parent_id", Value: filter.ParentID})
	}
	if filter.Category != "" {
		where = append(where, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: filter.Category})
	}
	if filter.From != nil {
		where = append(where, "transaction_date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: filter.From.String()})
	}
	if filter.To != nil {
		where = append(where, "transaction_date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: filter.To.String()})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE %s
		ORDER BY transaction_date, created_ts
	`, transactionColumns, datasetID, transactionsTable, strings.Join(where, " AND ")))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var result []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iterating: %w", err)
		}
		result = append(result, row.toDomain())
	}
	return result, nil
}

// UpdateReconciliationWithClient sets the reconciliation pair state of one
// transaction.
func UpdateReconciliationWithClient(ctx context.Context, client *bigquery.Client, id string, isReconciled bool, parentID string) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s.%s
		SET is_reconciled = @is_reconciled,
		    parent_transaction_id = @parent_transaction_id,
		    updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
	`, datasetID, transactionsTable), []bigquery.QueryParameter{
		{Name: "is_reconciled", Value: isReconciled},
		{Name: "parent_transaction_id", Value: parentID},
		{Name: "updated_ts", Value: time.Now().UTC()},
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("UpdateReconciliation: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return nil
}

// DeleteTransactionWithClient removes one transaction.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, id string) error {
	affected, err := runDML(ctx, client, fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE transaction_id = @transaction_id
	`, datasetID, transactionsTable), []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return nil
}
