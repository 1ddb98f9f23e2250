// Package store defines the persistence boundary of the dues ledger and
// an in-memory implementation of it. The engine only ever talks to the
// Store interface; the postgres subpackage provides the durable variant.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
)

var (
	// ErrNotFound is returned when a member or binding does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when an account commit loses
	// the optimistic check: another pass advanced the member's cursor or
	// calculation date since it was read.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// MemberFilter narrows Members listings. Zero values match everything.
type MemberFilter struct {
	Name  string // substring, case-insensitive
	Email string // exact
}

// AccountUpdate is the atomic commit of one reconciliation pass: the new
// balance, the date it is valid through, and the new cursor, guarded by
// the state the pass started from.
type AccountUpdate struct {
	MemberID int64

	// Guard: the cursor and calculation date read before the pass. The
	// commit fails with ErrConcurrentModification unless they still hold.
	PrevCursor       model.Cursor
	PrevCalculatedAt time.Time

	Account      money.Money
	CalculatedAt time.Time
	Cursor       model.Cursor
}

// Store is the transactional persistence boundary. Implementations must
// make CommitAccount an indivisible compare-and-swap and assign strictly
// increasing transaction IDs.
type Store interface {
	CreateMember(ctx context.Context, m model.Member) (model.Member, error)
	Member(ctx context.Context, id int64) (model.Member, error)
	Members(ctx context.Context, f MemberFilter) ([]model.Member, error)
	UpdateMember(ctx context.Context, m model.Member) error
	DeleteMember(ctx context.Context, id int64) error
	CommitAccount(ctx context.Context, u AccountUpdate) error

	CreateBinding(ctx context.Context, b model.IdentifierBinding) error
	BindingsForIdentifier(ctx context.Context, identifier string) ([]model.IdentifierBinding, error)
	BindingsForMember(ctx context.Context, memberID int64) ([]model.IdentifierBinding, error)
	DeleteBinding(ctx context.Context, memberID int64, identifier string) error

	// InsertTransaction appends a transaction and returns it with its
	// assigned ordinal. Transactions are never updated or deleted except
	// through cascading member deletion.
	InsertTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)

	// TransactionsForIdentifier returns every transaction carrying the
	// identifier token, in (date, id) order. Importers use it to skip
	// statement rows a previous run already ingested.
	TransactionsForIdentifier(ctx context.Context, identifier string) ([]model.Transaction, error)

	// PendingTransactions returns the member's unfolded transactions:
	// those past the cursor that are attributed to the member or carry
	// an identifier bound to the member, ordered by (date, id).
	PendingTransactions(ctx context.Context, memberID int64, after model.Cursor) ([]model.Transaction, error)

	// AttributeTransaction records a resolved single-member attribution.
	// Recording the same member twice is a no-op; attributions are never
	// overwritten.
	AttributeTransaction(ctx context.Context, txID, memberID int64) error

	UnattributedTransactions(ctx context.Context) ([]model.Transaction, error)
}
