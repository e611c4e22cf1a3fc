// Package store defines the persistence collaborator interfaces the core
// engines depend on. Implementations exist in-memory (internal/store/inmemory,
// used by tests and single-instance deployments) and on BigQuery
// (internal/infra/bigquery).
//
// Stores own server timestamps: Create sets CreatedTS, every mutation sets
// UpdatedTS. Mutating operations are narrow and named rather than generic
// read-modify-write so that each store can enforce its invariants atomically.
package store

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// ErrDueDateConflict is returned by SeriesStore.RecordExecution when the
// series' next due date no longer matches the caller's expectation, meaning
// a concurrent pass already fired this cycle. Callers treat it as
// "already executed" and skip, never as a failure.
var ErrDueDateConflict = errors.New("store: next due date changed concurrently")

// PersonStore is CRUD for persons.
type PersonStore interface {
	CreatePerson(ctx context.Context, p *domain.Person) error
	GetPerson(ctx context.Context, id string) (*domain.Person, error)
	ListPersons(ctx context.Context) ([]*domain.Person, error)
}

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	PersonID string
	SeriesID string
	ParentID string
	Category string
	From     *civil.Date
	To       *civil.Date
}

// TransactionStore is CRUD for transactions plus the narrow reconciliation
// update the reconcile engine needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)

	// UpdateReconciliation sets the reconciliation pair state of one
	// transaction. parentID is empty for the parent side of a link and for
	// unlinking.
	UpdateReconciliation(ctx context.Context, id string, isReconciled bool, parentID string) error

	DeleteTransaction(ctx context.Context, id string) error
}

// SeriesStore is CRUD for recurring series plus the scheduler's mutations.
type SeriesStore interface {
	CreateSeries(ctx context.Context, s *domain.RecurringSeries) error
	GetSeries(ctx context.Context, id string) (*domain.RecurringSeries, error)
	ListSeries(ctx context.Context, personID string) ([]*domain.RecurringSeries, error)

	// RecordExecution advances the schedule after a successful emission:
	// NextDueDate moves from expectedDue to nextDue, TotalExecutions is
	// incremented, ConsecutiveFailures resets, LastExecutedDate is set.
	// Returns ErrDueDateConflict when the stored NextDueDate is no longer
	// expectedDue (a concurrent pass won the cycle).
	RecordExecution(ctx context.Context, id string, expectedDue, nextDue, executedOn civil.Date) error

	// RecordFailure increments FailedExecutions and ConsecutiveFailures,
	// leaving NextDueDate untouched, and returns the new consecutive count.
	RecordFailure(ctx context.Context, id string) (int, error)

	// SetPaused flips the pause flag; until may be nil for an open-ended
	// pause and is cleared together with the flag on resume.
	SetPaused(ctx context.Context, id string, paused bool, until *civil.Date) error

	// SetActive flips the active flag. Deactivation is terminal from the
	// scheduler's point of view: inactive series never auto-resume.
	SetActive(ctx context.Context, id string, active bool) error

	DeleteSeries(ctx context.Context, id string) error
}

// PeriodStore is CRUD for budget periods. Implementations must enforce the
// single-open-period invariant atomically: CreatePeriod fails with a
// domain.ValidationError when an open period already exists for the person.
type PeriodStore interface {
	CreatePeriod(ctx context.Context, p *domain.BudgetPeriod) error
	GetPeriod(ctx context.Context, id string) (*domain.BudgetPeriod, error)
	ListPeriods(ctx context.Context, personID string) ([]*domain.BudgetPeriod, error)

	// GetOpenPeriod returns the person's single open period, a
	// domain.NotFoundError when there is none, and a
	// domain.InvariantViolation when more than one is open.
	GetOpenPeriod(ctx context.Context, personID string) (*domain.BudgetPeriod, error)

	// ClosePeriod sets the end date and clears IsActive.
	ClosePeriod(ctx context.Context, id string, endDate civil.Date) error
}

// BudgetStore is CRUD for budgets.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b *domain.Budget) error
	GetBudget(ctx context.Context, id string) (*domain.Budget, error)
	ListBudgets(ctx context.Context, personID string) ([]*domain.Budget, error)
}

// Store aggregates the per-entity interfaces; both backends implement it.
type Store interface {
	PersonStore
	TransactionStore
	SeriesStore
	PeriodStore
	BudgetStore
}
