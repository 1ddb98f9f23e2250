// Package match resolves bank transactions to members. Attribution is a
// pure function of the transaction and the bindings for its identifier;
// all mutation happens in the reconciler.
package match

import (
	"errors"
	"fmt"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
)

var (
	// ErrAmbiguousMatch means two or more bindings claim the remainder of
	// a transaction and nothing tells them apart.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrAmbiguousSplit means several fixed split amounts do not sum to
	// the transaction amount: either they exceed it, or they leave a
	// remainder no binding can absorb.
	ErrAmbiguousSplit = errors.New("ambiguous split")
)

// Error reports a conflict for one transaction so it can be surfaced for
// manual resolution.
type Error struct {
	Transaction model.Transaction
	Reason      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transaction %d (%s): %v", e.Transaction.ID, e.Transaction.Date.Format("2006-01-02"), e.Reason)
}

func (e *Error) Unwrap() error { return e.Reason }

// Attribution assigns part of a transaction's amount to one member.
type Attribution struct {
	MemberID int64
	Amount   money.Money
}

// Attribute resolves a transaction against the bindings for its
// identifier. It returns zero attributions when nothing matches
// (the transaction is unmatched, not an error), one per member when a
// split applies, and an *Error wrapping ErrAmbiguousMatch or
// ErrAmbiguousSplit when the bindings conflict.
//
// Bindings must all carry the transaction's identifier token; their
// order decides who absorbs rounding remainders and overflow, so
// callers pass them in a stable order.
func Attribute(tx model.Transaction, bindings []model.IdentifierBinding) ([]Attribution, error) {
	applicable := applicableBindings(tx, bindings)
	if len(applicable) == 0 {
		return nil, nil
	}

	var splits, open []model.IdentifierBinding
	for _, b := range applicable {
		if b.SplitAmount != nil {
			splits = append(splits, b)
		} else {
			open = append(open, b)
		}
	}

	if len(open) > 1 {
		// Nothing defines how the remainder divides between them.
		return nil, &Error{Transaction: tx, Reason: ErrAmbiguousMatch}
	}

	// Fixed carve-outs first. A declared share larger than what is left
	// can only be clamped when it is the sole split; with several splits
	// the shortfall must surface instead of short-changing one member.
	remaining := tx.Amount
	var out []Attribution
	for _, b := range splits {
		amount := *b.SplitAmount
		if amount.Cmp(remaining) > 0 {
			if len(splits) > 1 {
				return nil, &Error{Transaction: tx, Reason: ErrAmbiguousSplit}
			}
			amount = remaining
		}
		out = append(out, Attribution{MemberID: b.MemberID, Amount: amount})
		remaining = remaining.Sub(amount)
	}

	switch {
	case len(open) == 1:
		out = append(out, Attribution{MemberID: open[0].MemberID, Amount: remaining})
	case remaining.IsZero():
		// Splits consumed the full amount.
	case len(splits) == 1:
		// A lone split binding absorbs its own overflow rather than
		// dropping funds.
		out[0].Amount = out[0].Amount.Add(remaining)
	default:
		return nil, &Error{Transaction: tx, Reason: ErrAmbiguousSplit}
	}

	return merge(out), nil
}

// applicableBindings narrows the identifier matches by subject: bindings
// whose pattern occurs in the description win; catch-alls apply only
// when no pattern-specific binding matched.
func applicableBindings(tx model.Transaction, bindings []model.IdentifierBinding) []model.IdentifierBinding {
	var subjectMatched, catchAll []model.IdentifierBinding
	for _, b := range bindings {
		if b.Identifier != tx.Identifier {
			continue
		}
		if b.HasSubject() {
			if b.SubjectMatches(tx.Description) {
				subjectMatched = append(subjectMatched, b)
			}
			continue
		}
		catchAll = append(catchAll, b)
	}
	if len(subjectMatched) > 0 {
		return subjectMatched
	}
	return catchAll
}

// merge collapses multiple attributions for the same member into one,
// preserving first-seen order.
func merge(attrs []Attribution) []Attribution {
	if len(attrs) < 2 {
		return attrs
	}
	index := make(map[int64]int, len(attrs))
	var out []Attribution
	for _, a := range attrs {
		if i, ok := index[a.MemberID]; ok {
			out[i].Amount = out[i].Amount.Add(a.Amount)
			continue
		}
		index[a.MemberID] = len(out)
		out = append(out, a)
	}
	return out
}

// SuggestMember proposes a binding candidate for an unbound statement
// account: exactly one member whose name equals the account holder.
// Used for triage output only; automatic attribution goes through
// bindings.
func SuggestMember(holder string, members []model.Member) (model.Member, bool) {
	var found model.Member
	var hits int
	for _, m := range members {
		if m.Name == holder {
			found = m
			hits++
		}
	}
	return found, hits == 1
}
