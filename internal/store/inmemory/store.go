// Package inmemory implements store.Store with in-process maps.
// It is safe for concurrent use and backs both the test suite and
// single-instance deployments without a BigQuery project. Data is lost on
// restart.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Store keeps every entity in a map keyed by id. Values are copied on the way
// in and out so callers can never mutate shared state.
type Store struct {
	mu           sync.RWMutex
	persons      map[string]*domain.Person
	transactions map[string]*domain.Transaction
	series       map[string]*domain.RecurringSeries
	periods      map[string]*domain.BudgetPeriod
	budgets      map[string]*domain.Budget
	clk          clock.Clock
}

// NewStore creates an empty in-memory store stamping server timestamps from
// the given clock.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{
		persons:      make(map[string]*domain.Person),
		transactions: make(map[string]*domain.Transaction),
		series:       make(map[string]*domain.RecurringSeries),
		periods:      make(map[string]*domain.BudgetPeriod),
		budgets:      make(map[string]*domain.Budget),
		clk:          clk,
	}
}

func copyDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	c.UpdatedTS = copyTime(tx.UpdatedTS)
	return &c
}

func copySeries(s *domain.RecurringSeries) *domain.RecurringSeries {
	c := *s
	c.EndDate = copyDate(s.EndDate)
	c.PauseUntil = copyDate(s.PauseUntil)
	c.LastExecutedDate = copyDate(s.LastExecutedDate)
	c.UpdatedTS = copyTime(s.UpdatedTS)
	return &c
}

func copyPeriod(p *domain.BudgetPeriod) *domain.BudgetPeriod {
	c := *p
	c.EndDate = copyDate(p.EndDate)
	return &c
}

func copyBudget(b *domain.Budget) *domain.Budget {
	c := *b
	c.Categories = append([]string(nil), b.Categories...)
	return &c
}

// CreatePerson implements store.PersonStore.
func (s *Store) CreatePerson(ctx context.Context, p *domain.Person) error {
	if p.ID == "" {
		return fmt.Errorf("CreatePerson: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pc := *p
	s.persons[p.ID] = &pc
	return nil
}

// GetPerson implements store.PersonStore.
func (s *Store) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "person", ID: id}
	}
	pc := *p
	return &pc, nil
}

// ListPersons implements store.PersonStore.
func (s *Store) ListPersons(ctx context.Context) ([]*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Person, 0, len(s.persons))
	for _, p := range s.persons {
		pc := *p
		result = append(result, &pc)
	}
	return result, nil
}

// CreateTransaction implements store.TransactionStore.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("CreateTransaction: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyTransaction(tx)
	c.CreatedTS = s.clk.Now()
	s.transactions[tx.ID] = c
	return nil
}

// GetTransaction implements store.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return copyTransaction(tx), nil
}

// ListTransactions implements store.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.transactions {
		if filter.PersonID != "" && tx.PersonID != filter.PersonID {
			continue
		}
		if filter.SeriesID != "" && tx.RecurringSeriesID != filter.SeriesID {
			continue
		}
		if filter.ParentID != "" && tx.ParentTransactionID != filter.ParentID {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.Date.After(*filter.To) {
			continue
		}
		result = append(result, copyTransaction(tx))
	}
	return result, nil
}

// UpdateReconciliation implements store.TransactionStore.
func (s *Store) UpdateReconciliation(ctx context.Context, id string, isReconciled bool, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	tx.IsReconciled = isReconciled
	tx.ParentTransactionID = parentID
	now := s.clk.Now()
	tx.UpdatedTS = &now
	return nil
}

// DeleteTransaction implements store.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	delete(s.transactions, id)
	return nil
}

// CreateSeries implements store.SeriesStore.
func (s *Store) CreateSeries(ctx context.Context, series *domain.RecurringSeries) error {
	if series.ID == "" {
		return fmt.Errorf("CreateSeries: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copySeries(series)
	c.CreatedTS = s.clk.Now()
	s.series[series.ID] = c
	return nil
}

// GetSeries implements store.SeriesStore.
func (s *Store) GetSeries(ctx context.Context, id string) (*domain.RecurringSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	return copySeries(series), nil
}

// ListSeries implements store.SeriesStore.
func (s *Store) ListSeries(ctx context.Context, personID string) ([]*domain.RecurringSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RecurringSeries
	for _, series := range s.series {
		if personID != "" && series.PersonID != personID {
			continue
		}
		result = append(result, copySeries(series))
	}
	return result, nil
}

// RecordExecution implements store.SeriesStore. The compare against
// expectedDue makes the advance a compare-and-swap: a concurrent pass that
// already fired this cycle leaves the due date moved, and the second caller
// gets ErrDueDateConflict instead of double-firing.
func (s *Store) RecordExecution(ctx context.Context, id string, expectedDue, nextDue, executedOn civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[id]
	if !ok {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	if series.NextDueDate != expectedDue {
		return store.ErrDueDateConflict
	}
	series.NextDueDate = nextDue
	series.TotalExecutions++
	series.ConsecutiveFailures = 0
	executed := executedOn
	series.LastExecutedDate = &executed
	now := s.clk.Now()
	series.UpdatedTS = &now
	return nil
}

// RecordFailure implements store.SeriesStore.
func (s *Store) RecordFailure(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[id]
	if !ok {
		return 0, &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	series.FailedExecutions++
	series.ConsecutiveFailures++
	now := s.clk.Now()
	series.UpdatedTS = &now
	return series.ConsecutiveFailures, nil
}

// SetPaused implements store.SeriesStore.
func (s *Store) SetPaused(ctx context.Context, id string, paused bool, until *civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[id]
	if !ok {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	series.IsPaused = paused
	series.PauseUntil = copyDate(until)
	if !paused {
		series.PauseUntil = nil
	}
	now := s.clk.Now()
	series.UpdatedTS = &now
	return nil
}

// SetActive implements store.SeriesStore.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[id]
	if !ok {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	series.IsActive = active
	now := s.clk.Now()
	series.UpdatedTS = &now
	return nil
}

// DeleteSeries implements store.SeriesStore. Generated transactions keep
// their weak series reference and are not touched.
func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[id]; !ok {
		return &domain.NotFoundError{Kind: "recurring series", ID: id}
	}
	delete(s.series, id)
	return nil
}

// CreatePeriod implements store.PeriodStore. The single-open-period check and
// the insert happen under one lock so two concurrent opens cannot both pass.
func (s *Store) CreatePeriod(ctx context.Context, p *domain.BudgetPeriod) error {
	if p.ID == "" {
		return fmt.Errorf("CreatePeriod: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.EndDate == nil {
		for _, existing := range s.periods {
			if existing.PersonID == p.PersonID && existing.EndDate == nil {
				return domain.NewValidationError("person %s already has an open period (%s)", p.PersonID, existing.ID)
			}
		}
	}
	s.periods[p.ID] = copyPeriod(p)
	return nil
}

// GetPeriod implements store.PeriodStore.
func (s *Store) GetPeriod(ctx context.Context, id string) (*domain.BudgetPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "budget period", ID: id}
	}
	return copyPeriod(p), nil
}

// ListPeriods implements store.PeriodStore.
func (s *Store) ListPeriods(ctx context.Context, personID string) ([]*domain.BudgetPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BudgetPeriod
	for _, p := range s.periods {
		if personID != "" && p.PersonID != personID {
			continue
		}
		result = append(result, copyPeriod(p))
	}
	return result, nil
}

// GetOpenPeriod implements store.PeriodStore.
func (s *Store) GetOpenPeriod(ctx context.Context, personID string) (*domain.BudgetPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open *domain.BudgetPeriod
	for _, p := range s.periods {
		if p.PersonID != personID || p.EndDate != nil {
			continue
		}
		if open != nil {
			return nil, &domain.InvariantViolation{
				Entity: "person",
				ID:     personID,
				Reason: "more than one open budget period",
			}
		}
		open = p
	}
	if open == nil {
		return nil, &domain.NotFoundError{Kind: "open budget period", ID: personID}
	}
	return copyPeriod(open), nil
}

// ClosePeriod implements store.PeriodStore.
func (s *Store) ClosePeriod(ctx context.Context, id string, endDate civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.periods[id]
	if !ok {
		return &domain.NotFoundError{Kind: "budget period", ID: id}
	}
	end := endDate
	p.EndDate = &end
	p.IsActive = false
	return nil
}

// CreateBudget implements store.BudgetStore.
func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBudget: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgets[b.ID] = copyBudget(b)
	return nil
}

// GetBudget implements store.BudgetStore.
func (s *Store) GetBudget(ctx context.Context, id string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "budget", ID: id}
	}
	return copyBudget(b), nil
}

// ListBudgets implements store.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, personID string) ([]*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Budget
	for _, b := range s.budgets {
		if personID != "" && b.PersonID != personID {
			continue
		}
		result = append(result, copyBudget(b))
	}
	return result, nil
}

// Ensure Store implements the full interface.
var _ store.Store = (*Store)(nil)
