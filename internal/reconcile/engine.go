// Package reconcile links transactions pairwise: an expense later offset by a
// refund, or an income consumed by an expense. The link is directional (the
// caller names the parent) and the parent keeps an unreconciled remainder
// equal to its amount minus everything its children cover. The remainder is
// what budget aggregation counts, which is how double counting between the
// two sides is avoided.
package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/keylock"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Engine performs reconciliation linking over a transaction store. The
// parent/child relation is stored as a flat parent pointer on the child and
// read back as an adjacency set, so one parent can settle against several
// children.
type Engine struct {
	txs   store.TransactionStore
	locks *keylock.Table
	log   zerolog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(txs store.TransactionStore, log zerolog.Logger) *Engine {
	return &Engine{
		txs:   txs,
		locks: keylock.NewTable(),
		log:   log,
	}
}

// Link reconciles child against parent. Which side is the parent is the
// caller's explicit choice, not an accident of argument order: the parent is
// the transaction whose remainder keeps counting toward budgets.
//
// Preconditions: both transactions exist, neither is a transfer, the two are
// of opposite types, and neither is already reconciled. Both sides are
// updated atomically under the pair lock; a failure on the second write
// unwinds the first.
func (e *Engine) Link(ctx context.Context, parentID, childID string) (*domain.Transaction, *domain.Transaction, error) {
	if parentID == childID {
		return nil, nil, domain.NewValidationError("cannot link transaction %s to itself", parentID)
	}

	e.locks.LockPair(parentID, childID)
	defer e.locks.UnlockPair(parentID, childID)

	parent, err := e.txs.GetTransaction(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	child, err := e.txs.GetTransaction(ctx, childID)
	if err != nil {
		return nil, nil, err
	}

	if err := validateLink(parent, child); err != nil {
		return nil, nil, err
	}

	if err := e.txs.UpdateReconciliation(ctx, child.ID, true, parent.ID); err != nil {
		return nil, nil, fmt.Errorf("Link: updating child %s: %w", child.ID, err)
	}
	if err := e.txs.UpdateReconciliation(ctx, parent.ID, true, ""); err != nil {
		// Unwind so we never leave a half-linked pair behind.
		if rbErr := e.txs.UpdateReconciliation(ctx, child.ID, false, ""); rbErr != nil {
			e.log.Error().
				Err(rbErr).
				Str("transaction_id", child.ID).
				Msg("Failed to unwind child after parent update failure")
		}
		return nil, nil, fmt.Errorf("Link: updating parent %s: %w", parent.ID, err)
	}

	e.log.Info().
		Str("parent_id", parent.ID).
		Str("child_id", child.ID).
		Msg("Linked transactions")

	parent, err = e.txs.GetTransaction(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	child, err = e.txs.GetTransaction(ctx, childID)
	if err != nil {
		return nil, nil, err
	}
	return parent, child, nil
}

func validateLink(parent, child *domain.Transaction) error {
	if parent.IsTransfer() || child.IsTransfer() {
		return domain.NewValidationError("transfers cannot be reconciled")
	}
	if parent.Type == child.Type {
		return domain.NewValidationError("cannot link two %s transactions; types must be opposite", parent.Type)
	}
	if parent.IsReconciled {
		return domain.NewValidationError("transaction %s is already reconciled", parent.ID)
	}
	if child.IsReconciled {
		return domain.NewValidationError("transaction %s is already reconciled", child.ID)
	}
	return nil
}

// Unlink dissolves the pairing tx belongs to, from either end. Unlinking a
// parent releases all of its children. Required before a linked transaction
// can be deleted.
func (e *Engine) Unlink(ctx context.Context, txID string) error {
	tx, err := e.txs.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if !tx.IsReconciled {
		return domain.NewValidationError("transaction %s is not reconciled", tx.ID)
	}

	parentID := tx.ParentTransactionID
	if parentID == "" {
		parentID = tx.ID
	}

	e.locks.Lock(parentID)
	defer e.locks.Unlock(parentID)

	// The adjacency snapshot must be read under the lock, or a concurrent
	// Link against the same parent could attach a child this unlink never
	// sees and leave it orphaned as reconciled.
	children, err := e.children(ctx, parentID)
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := e.txs.UpdateReconciliation(ctx, c.ID, false, ""); err != nil {
			return fmt.Errorf("Unlink: releasing child %s: %w", c.ID, err)
		}
	}
	if err := e.txs.UpdateReconciliation(ctx, parentID, false, ""); err != nil {
		return fmt.Errorf("Unlink: releasing parent %s: %w", parentID, err)
	}

	e.log.Info().
		Str("parent_id", parentID).
		Int("children", len(children)).
		Msg("Unlinked transactions")

	return nil
}

func (e *Engine) children(ctx context.Context, parentID string) ([]*domain.Transaction, error) {
	return e.txs.ListTransactions(ctx, store.TransactionFilter{ParentID: parentID})
}

// IsParentTransaction reports whether other transactions point at tx. A
// transaction that itself points elsewhere, or is unlinked, is not a parent.
func (e *Engine) IsParentTransaction(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx.ParentTransactionID != "" {
		return false, nil
	}
	children, err := e.children(ctx, tx.ID)
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

// RemainingAmount returns the unreconciled remainder of a transaction:
// the full amount when unlinked, zero for a child, and amount minus the sum
// of children for a parent. A parent overdrawn below zero is data corruption
// and comes back as an InvariantViolation.
func (e *Engine) RemainingAmount(ctx context.Context, tx *domain.Transaction) (decimal.Decimal, error) {
	if tx.ParentTransactionID != "" {
		return decimal.Zero, nil
	}
	children, err := e.children(ctx, tx.ID)
	if err != nil {
		return decimal.Zero, err
	}
	consumed := decimal.Zero
	for _, c := range children {
		consumed = consumed.Add(c.Amount)
	}
	remaining := tx.Amount.Sub(consumed)
	if remaining.IsNegative() {
		e.log.Error().
			Str("transaction_id", tx.ID).
			Str("amount", tx.Amount.String()).
			Str("consumed", consumed.String()).
			Msg("Children exceed parent amount")
		return decimal.Zero, &domain.InvariantViolation{
			Entity: "transaction",
			ID:     tx.ID,
			Reason: fmt.Sprintf("children total %s exceeds amount %s", consumed, tx.Amount),
		}
	}
	return remaining, nil
}

// HasAvailableAmount reports whether tx is a parent with remainder left to
// settle further children against.
func (e *Engine) HasAvailableAmount(ctx context.Context, tx *domain.Transaction) (bool, error) {
	isParent, err := e.IsParentTransaction(ctx, tx)
	if err != nil || !isParent {
		return false, err
	}
	remaining, err := e.RemainingAmount(ctx, tx)
	if err != nil {
		return false, err
	}
	return remaining.IsPositive(), nil
}

// IsFaded is the single source of the display de-emphasis rule: a reconciled
// transaction renders faded when it is a child, or a parent whose remainder
// is fully consumed. Presentation surfaces call this instead of re-deriving
// it.
func (e *Engine) IsFaded(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if !tx.IsReconciled {
		return false, nil
	}
	if tx.ParentTransactionID != "" {
		return true, nil
	}
	remaining, err := e.RemainingAmount(ctx, tx)
	if err != nil {
		return false, err
	}
	return remaining.IsZero(), nil
}

// EffectiveAmount is what budget aggregation counts for tx: children
// contribute zero (their amount is already reflected in the parent's reduced
// remainder), reconciled parents contribute their remainder, everything else
// contributes its full amount. Counting a child as well as the parent's
// reduction would double count the settlement.
func (e *Engine) EffectiveAmount(ctx context.Context, tx *domain.Transaction) (decimal.Decimal, error) {
	if tx.ParentTransactionID != "" {
		return decimal.Zero, nil
	}
	if !tx.IsReconciled {
		return tx.Amount, nil
	}
	return e.RemainingAmount(ctx, tx)
}
