package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Repository implements store.Store over a shared BigQuery client so that
// callers do not open a new connection for each operation.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// CreatePerson delegates to InsertPersonWithClient.
func (r *Repository) CreatePerson(ctx context.Context, p *domain.Person) error {
	return InsertPersonWithClient(ctx, r.client, p)
}

// GetPerson delegates to GetPersonWithClient.
func (r *Repository) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	return GetPersonWithClient(ctx, r.client, id)
}

// ListPersons delegates to ListPersonsWithClient.
func (r *Repository) ListPersons(ctx context.Context) ([]*domain.Person, error) {
	return ListPersonsWithClient(ctx, r.client)
}

// CreateTransaction delegates to InsertTransactionWithClient.
func (r *Repository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return InsertTransactionWithClient(ctx, r.client, tx)
}

// GetTransaction delegates to GetTransactionWithClient.
func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return GetTransactionWithClient(ctx, r.client, id)
}

// ListTransactions delegates to QueryTransactionsWithClient.
func (r *Repository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	return QueryTransactionsWithClient(ctx, r.client, filter)
}

// UpdateReconciliation delegates to UpdateReconciliationWithClient.
func (r *Repository) UpdateReconciliation(ctx context.Context, id string, isReconciled bool, parentID string) error {
	return UpdateReconciliationWithClient(ctx, r.client, id, isReconciled, parentID)
}

// DeleteTransaction delegates to DeleteTransactionWithClient.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return DeleteTransactionWithClient(ctx, r.client, id)
}

// CreateSeries delegates to InsertSeriesWithClient.
func (r *Repository) CreateSeries(ctx context.Context, s *domain.RecurringSeries) error {
	return InsertSeriesWithClient(ctx, r.client, s)
}

// GetSeries delegates to GetSeriesWithClient.
func (r *Repository) GetSeries(ctx context.Context, id string) (*domain.RecurringSeries, error) {
	return GetSeriesWithClient(ctx, r.client, id)
}

// ListSeries delegates to ListSeriesWithClient.
func (r *Repository) ListSeries(ctx context.Context, personID string) ([]*domain.RecurringSeries, error) {
	return ListSeriesWithClient(ctx, r.client, personID)
}

// RecordExecution delegates to RecordExecutionWithClient.
func (r *Repository) RecordExecution(ctx context.Context, id string, expectedDue, nextDue, executedOn civil.Date) error {
	return RecordExecutionWithClient(ctx, r.client, id, expectedDue, nextDue, executedOn)
}

// RecordFailure delegates to RecordFailureWithClient.
func (r *Repository) RecordFailure(ctx context.Context, id string) (int, error) {
	return RecordFailureWithClient(ctx, r.client, id)
}

// SetPaused delegates to SetPausedWithClient.
func (r *Repository) SetPaused(ctx context.Context, id string, paused bool, until *civil.Date) error {
	return SetPausedWithClient(ctx, r.client, id, paused, until)
}

// SetActive delegates to SetActiveWithClient.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return SetActiveWithClient(ctx, r.client, id, active)
}

// DeleteSeries delegates to DeleteSeriesWithClient.
func (r *Repository) DeleteSeries(ctx context.Context, id string) error {
	return DeleteSeriesWithClient(ctx, r.client, id)
}

// CreatePeriod delegates to InsertPeriodWithClient.
func (r *Repository) CreatePeriod(ctx context.Context, p *domain.BudgetPeriod) error {
	return InsertPeriodWithClient(ctx, r.client, p)
}

// GetPeriod delegates to GetPeriodWithClient.
func (r *Repository) GetPeriod(ctx context.Context, id string) (*domain.BudgetPeriod, error) {
	return GetPeriodWithClient(ctx, r.client, id)
}

// ListPeriods delegates to ListPeriodsWithClient.
func (r *Repository) ListPeriods(ctx context.Context, personID string) ([]*domain.BudgetPeriod, error) {
	return ListPeriodsWithClient(ctx, r.client, personID)
}

// GetOpenPeriod delegates to GetOpenPeriodWithClient.
func (r *Repository) GetOpenPeriod(ctx context.Context, personID string) (*domain.BudgetPeriod, error) {
	return GetOpenPeriodWithClient(ctx, r.client, personID)
}

// ClosePeriod delegates to ClosePeriodWithClient.
func (r *Repository) ClosePeriod(ctx context.Context, id string, endDate civil.Date) error {
	return ClosePeriodWithClient(ctx, r.client, id, endDate)
}

// CreateBudget delegates to InsertBudgetWithClient.
func (r *Repository) CreateBudget(ctx context.Context, b *domain.Budget) error {
	return InsertBudgetWithClient(ctx, r.client, b)
}

// GetBudget delegates to GetBudgetWithClient.
func (r *Repository) GetBudget(ctx context.Context, id string) (*domain.Budget, error) {
	return GetBudgetWithClient(ctx, r.client, id)
}

// ListBudgets delegates to ListBudgetsWithClient.
func (r *Repository) ListBudgets(ctx context.Context, personID string) ([]*domain.Budget, error) {
	return ListBudgetsWithClient(ctx, r.client, personID)
}

// Ensure Repository implements the full store interface.
var _ store.Store = (*Repository)(nil)
