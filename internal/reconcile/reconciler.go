// Package reconcile folds pending bank transactions and fee accrual into
// member account balances. Each member is reconciled in its own pass;
// the commit is a compare-and-swap on the member's cursor, so re-running
// a pass after a partial failure never applies a transaction twice.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/duesbook/duesbook/internal/fees"
	"github.com/duesbook/duesbook/internal/match"
	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

// Status classifies the outcome of one member pass.
type Status string

const (
	// StatusCommitted means the pass applied a balance delta.
	StatusCommitted Status = "committed"
	// StatusAborted means the pass failed and left the member untouched.
	StatusAborted Status = "aborted"
	// StatusSkipped means there was no pending work.
	StatusSkipped Status = "skipped"
)

// DefaultRetries bounds how often a pass is retried after losing the
// optimistic commit before the conflict is surfaced.
const DefaultRetries = 3

// Outcome is the result of one member pass.
type Outcome struct {
	MemberID int64
	Status   Status
	Delta    money.Money
	Err      error

	// Failed is set when a matcher conflict aborted the pass; it is the
	// transaction needing manual resolution.
	Failed *model.Transaction
}

// Reconciler runs reconciliation passes against a store.
type Reconciler struct {
	store   store.Store
	sched   *fees.Scheduler
	retries int
}

// New creates a Reconciler. retries <= 0 selects DefaultRetries.
func New(st store.Store, sched *fees.Scheduler, retries int) *Reconciler {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Reconciler{store: st, sched: sched, retries: retries}
}

// ReconcileMember runs one pass for a member: fold pending transactions,
// accrue the fee increment through asOf, and commit atomically. A lost
// optimistic commit is retried with fresh reads up to the retry bound.
func (r *Reconciler) ReconcileMember(ctx context.Context, memberID int64, asOf time.Time) Outcome {
	var out Outcome
	for attempt := 0; attempt <= r.retries; attempt++ {
		out = r.pass(ctx, memberID, asOf)
		if out.Status == StatusAborted && errors.Is(out.Err, store.ErrConcurrentModification) {
			retriesTotal.Inc()
			continue
		}
		break
	}
	passesTotal.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (r *Reconciler) pass(ctx context.Context, memberID int64, asOf time.Time) Outcome {
	timer := time.Now()
	defer func() { passDuration.Observe(time.Since(timer).Seconds()) }()

	out := Outcome{MemberID: memberID, Delta: money.Zero}

	member, err := r.store.Member(ctx, memberID)
	if err != nil {
		return aborted(out, fmt.Errorf("reading member: %w", err))
	}

	pending, err := r.store.PendingTransactions(ctx, memberID, member.Cursor)
	if err != nil {
		return aborted(out, fmt.Errorf("reading pending transactions: %w", err))
	}

	// account_calculated_at only moves forward; an asOf behind the last
	// calculation folds transactions but accrues no further fees.
	calculatedAt := asOf
	if member.AccountCalculatedAt.After(calculatedAt) {
		calculatedAt = member.AccountCalculatedAt
	}

	delta := money.Zero
	cursor := member.Cursor
	for _, tx := range pending {
		failed, err := r.fold(ctx, member, tx, &delta)
		if err != nil {
			out.Failed = failed
			return aborted(out, err)
		}
		// Even an unmatched transaction is seen, not pending retry.
		cursor = tx.Cursor()
	}

	increment, err := r.feeIncrement(member, calculatedAt)
	if err != nil {
		return aborted(out, err)
	}
	delta = delta.Sub(increment)

	if cursor.Equal(member.Cursor) && calculatedAt.Equal(member.AccountCalculatedAt) {
		out.Status = StatusSkipped
		return out
	}

	err = r.store.CommitAccount(ctx, store.AccountUpdate{
		MemberID:         member.ID,
		PrevCursor:       member.Cursor,
		PrevCalculatedAt: member.AccountCalculatedAt,
		Account:          member.Account.Add(delta),
		CalculatedAt:     calculatedAt,
		Cursor:           cursor,
	})
	if err != nil {
		return aborted(out, fmt.Errorf("committing account: %w", err))
	}

	out.Status = StatusCommitted
	out.Delta = delta
	return out
}

// fold attributes one transaction and adds this member's share to delta.
func (r *Reconciler) fold(ctx context.Context, member model.Member, tx model.Transaction, delta *money.Money) (*model.Transaction, error) {
	bindings, err := r.store.BindingsForIdentifier(ctx, tx.Identifier)
	if err != nil {
		return nil, fmt.Errorf("reading bindings: %w", err)
	}

	attrs, err := match.Attribute(tx, bindings)
	if err != nil {
		failed := tx
		return &failed, err
	}

	for _, a := range attrs {
		if a.MemberID == member.ID {
			*delta = delta.Add(a.Amount)
		}
	}

	// Record an unambiguous single-member attribution. This is safe to
	// repeat: the store never overwrites an attribution.
	if tx.MemberID == 0 && len(attrs) == 1 {
		if err := r.store.AttributeTransaction(ctx, tx.ID, attrs[0].MemberID); err != nil {
			return nil, fmt.Errorf("recording attribution: %w", err)
		}
	}
	return nil, nil
}

// feeIncrement returns the fees newly due between the member's last
// calculation date and through.
func (r *Reconciler) feeIncrement(member model.Member, through time.Time) (money.Money, error) {
	already, err := r.sched.AmountDueThrough(member, member.AccountCalculatedAt)
	if err != nil {
		return money.Zero, err
	}
	due, err := r.sched.AmountDueThrough(member, through)
	if err != nil {
		return money.Zero, err
	}
	return due.Sub(already), nil
}

func aborted(out Outcome, err error) Outcome {
	out.Status = StatusAborted
	out.Err = err
	return out
}
