package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction. Transfers move money between the
// person's own accounts and never count toward budget spend.
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Opposite returns the offsetting type for reconciliation purposes.
// Transfers have no opposite and return "".
func (t TransactionType) Opposite() TransactionType {
	switch t {
	case TransactionTypeIncome:
		return TransactionTypeExpense
	case TransactionTypeExpense:
		return TransactionTypeIncome
	}
	return ""
}

// Transaction is one money movement. Amount is always a positive magnitude;
// Type carries the direction. Dates are date-only (no clock component) so that
// period membership does not depend on the server timezone.
type Transaction struct {
	ID          string
	PersonID    string
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Category    string
	Date        civil.Date
	AccountID   string

	// ToAccountID is set only for transfers.
	ToAccountID string

	// Reconciliation state. ParentTransactionID is a weak back-reference to
	// the transaction this one was linked under; empty for parents and for
	// unlinked transactions.
	IsReconciled        bool
	ParentTransactionID string

	// RecurringSeriesID is a weak back-reference to the series that emitted
	// this transaction; empty for manually entered ones. Deleting the series
	// does not touch this field.
	RecurringSeriesID string

	CreatedTS time.Time
	UpdatedTS *time.Time
}

// IsTransfer reports whether the transaction moves money between own accounts.
func (t *Transaction) IsTransfer() bool {
	return t.Type == TransactionTypeTransfer
}
