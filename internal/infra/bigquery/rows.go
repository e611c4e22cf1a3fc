package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// moneyScale is the NUMERIC scale amounts round-trip through.
const moneyScale = 2

func ratFromDecimal(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, moneyScale)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullDate(d *civil.Date) bigquery.NullDate {
	if d == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: *d, Valid: true}
}

func datePtr(d bigquery.NullDate) *civil.Date {
	if !d.Valid {
		return nil
	}
	date := d.Date
	return &date
}

func nullTimestamp(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: *t, Valid: true}
}

func timePtr(t bigquery.NullTimestamp) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Timestamp
	return &ts
}

// PersonRow mirrors budget.persons.
type PersonRow struct {
	PersonID       string `bigquery:"person_id"`
	Name           string `bigquery:"name"`
	BudgetStartDay int64  `bigquery:"budget_start_day"`
}

func personRow(p *domain.Person) *PersonRow {
	return &PersonRow{
		PersonID:       p.ID,
		Name:           p.Name,
		BudgetStartDay: int64(p.BudgetStartDay),
	}
}

func (r *PersonRow) toDomain() *domain.Person {
	return &domain.Person{
		ID:             r.PersonID,
		Name:           r.Name,
		BudgetStartDay: int(r.BudgetStartDay),
	}
}

// BudgetRow mirrors budget.budgets.
type BudgetRow struct {
	BudgetID    string   `bigquery:"budget_id"`
	PersonID    string   `bigquery:"person_id"`
	Description string   `bigquery:"description"`
	Amount      *big.Rat `bigquery:"amount"`
	Categories  []string `bigquery:"categories"`
	PeriodKind  string   `bigquery:"period_kind"`
}

func budgetRow(b *domain.Budget) *BudgetRow {
	return &BudgetRow{
		BudgetID:    b.ID,
		PersonID:    b.PersonID,
		Description: b.Description,
		Amount:      ratFromDecimal(b.Amount),
		Categories:  b.Categories,
		PeriodKind:  string(b.PeriodKind),
	}
}

func (r *BudgetRow) toDomain() *domain.Budget {
	return &domain.Budget{
		ID:          r.BudgetID,
		PersonID:    r.PersonID,
		Description: r.Description,
		Amount:      decimalFromRat(r.Amount),
		Categories:  r.Categories,
		PeriodKind:  domain.PeriodKind(r.PeriodKind),
	}
}

// PeriodRow mirrors budget.budget_periods.
type PeriodRow struct {
	PeriodID  string            `bigquery:"period_id"`
	PersonID  string            `bigquery:"person_id"`
	StartDate civil.Date        `bigquery:"start_date"`
	EndDate   bigquery.NullDate `bigquery:"end_date"`
	IsActive  bool              `bigquery:"is_active"`
}

func periodRow(p *domain.BudgetPeriod) *PeriodRow {
	return &PeriodRow{
		PeriodID:  p.ID,
		PersonID:  p.PersonID,
		StartDate: p.StartDate,
		EndDate:   nullDate(p.EndDate),
		IsActive:  p.IsActive,
	}
}

func (r *PeriodRow) toDomain() *domain.BudgetPeriod {
	return &domain.BudgetPeriod{
		ID:        r.PeriodID,
		PersonID:  r.PersonID,
		StartDate: r.StartDate,
		EndDate:   datePtr(r.EndDate),
		IsActive:  r.IsActive,
	}
}

// TransactionRow mirrors budget.transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	PersonID    string              `bigquery:"person_id"`
	Description string              `bigquery:"description"`
	Amount      *big.Rat            `bigquery:"amount"` // REQUIRED NUMERIC
	Type        string              `bigquery:"transaction_type"`
	Category    bigquery.NullString `bigquery:"category"`

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED DATE

	AccountID   bigquery.NullString `bigquery:"account_id"`
	ToAccountID bigquery.NullString `bigquery:"to_account_id"` // transfers only

	IsReconciled        bool                `bigquery:"is_reconciled"`
	ParentTransactionID bigquery.NullString `bigquery:"parent_transaction_id"`
	RecurringSeriesID   bigquery.NullString `bigquery:"recurring_series_id"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func transactionRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:       tx.ID,
		PersonID:            tx.PersonID,
		Description:         tx.Description,
		Amount:              ratFromDecimal(tx.Amount),
		Type:                string(tx.Type),
		Category:            nullString(tx.Category),
		TransactionDate:     tx.Date,
		AccountID:           nullString(tx.AccountID),
		ToAccountID:         nullString(tx.ToAccountID),
		IsReconciled:        tx.IsReconciled,
		ParentTransactionID: nullString(tx.ParentTransactionID),
		RecurringSeriesID:   nullString(tx.RecurringSeriesID),
		CreatedTS:           tx.CreatedTS,
		UpdatedTS:           nullTimestamp(tx.UpdatedTS),
	}
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:                  r.TransactionID,
		PersonID:            r.PersonID,
		Description:         r.Description,
		Amount:              decimalFromRat(r.Amount),
		Type:                domain.TransactionType(r.Type),
		Category:            r.Category.StringVal,
		Date:                r.TransactionDate,
		AccountID:           r.AccountID.StringVal,
		ToAccountID:         r.ToAccountID.StringVal,
		IsReconciled:        r.IsReconciled,
		ParentTransactionID: r.ParentTransactionID.StringVal,
		RecurringSeriesID:   r.RecurringSeriesID.StringVal,
		CreatedTS:           r.CreatedTS,
		UpdatedTS:           timePtr(r.UpdatedTS),
	}
}

// SeriesRow mirrors budget.recurring_series.
type SeriesRow struct {
	SeriesID string `bigquery:"series_id"` // REQUIRED

	PersonID    string              `bigquery:"person_id"`
	Description string              `bigquery:"description"`
	Amount      *big.Rat            `bigquery:"amount"`
	Type        string              `bigquery:"transaction_type"`
	Category    bigquery.NullString `bigquery:"category"`
	AccountID   bigquery.NullString `bigquery:"account_id"`
	ToAccountID bigquery.NullString `bigquery:"to_account_id"`

	Frequency   string            `bigquery:"frequency"`
	StartDate   civil.Date        `bigquery:"start_date"`
	EndDate     bigquery.NullDate `bigquery:"end_date"`
	NextDueDate civil.Date        `bigquery:"next_due_date"`
	DayOfMonth  int64             `bigquery:"day_of_month"`
	MonthOfYear int64             `bigquery:"month_of_year"`

	IsActive    bool              `bigquery:"is_active"`
	IsPaused    bool              `bigquery:"is_paused"`
	PauseUntil  bigquery.NullDate `bigquery:"pause_until"`
	AutoExecute bool              `bigquery:"auto_execute"`

	LastExecutedDate    bigquery.NullDate `bigquery:"last_executed_date"`
	TotalExecutions     int64             `bigquery:"total_executions"`
	FailedExecutions    int64             `bigquery:"failed_executions"`
	ConsecutiveFailures int64             `bigquery:"consecutive_failures"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func seriesRow(s *domain.RecurringSeries) *SeriesRow {
	return &SeriesRow{
		SeriesID:            s.ID,
		PersonID:            s.PersonID,
		Description:         s.Description,
		Amount:              ratFromDecimal(s.Amount),
		Type:                string(s.Type),
		Category:            nullString(s.Category),
		AccountID:           nullString(s.AccountID),
		ToAccountID:         nullString(s.ToAccountID),
		Frequency:           string(s.Frequency),
		StartDate:           s.StartDate,
		EndDate:             nullDate(s.EndDate),
		NextDueDate:         s.NextDueDate,
		DayOfMonth:          int64(s.DayOfMonth),
		MonthOfYear:         int64(s.MonthOfYear),
		IsActive:            s.IsActive,
		IsPaused:            s.IsPaused,
		PauseUntil:          nullDate(s.PauseUntil),
		AutoExecute:         s.AutoExecute,
		LastExecutedDate:    nullDate(s.LastExecutedDate),
		TotalExecutions:     int64(s.TotalExecutions),
		FailedExecutions:    int64(s.FailedExecutions),
		ConsecutiveFailures: int64(s.ConsecutiveFailures),
		CreatedTS:           s.CreatedTS,
		UpdatedTS:           nullTimestamp(s.UpdatedTS),
	}
}

func (r *SeriesRow) toDomain() *domain.RecurringSeries {
	return &domain.RecurringSeries{
		ID:                  r.SeriesID,
		PersonID:            r.PersonID,
		Description:         r.Description,
		Amount:              decimalFromRat(r.Amount),
		Type:                domain.TransactionType(r.Type),
		Category:            r.Category.StringVal,
		AccountID:           r.AccountID.StringVal,
		ToAccountID:         r.ToAccountID.StringVal,
		Frequency:           domain.Frequency(r.Frequency),
		StartDate:           r.StartDate,
		EndDate:             datePtr(r.EndDate),
		NextDueDate:         r.NextDueDate,
		DayOfMonth:          int(r.DayOfMonth),
		MonthOfYear:         time.Month(r.MonthOfYear),
		IsActive:            r.IsActive,
		IsPaused:            r.IsPaused,
		PauseUntil:          datePtr(r.PauseUntil),
		AutoExecute:         r.AutoExecute,
		LastExecutedDate:    datePtr(r.LastExecutedDate),
		TotalExecutions:     int(r.TotalExecutions),
		FailedExecutions:    int(r.FailedExecutions),
		ConsecutiveFailures: int(r.ConsecutiveFailures),
		CreatedTS:           r.CreatedTS,
		UpdatedTS:           timePtr(r.UpdatedTS),
	}
}
