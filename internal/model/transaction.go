package model

import (
	"time"

	"github.com/duesbook/duesbook/internal/money"
)

// Transaction is one observed bank ledger entry. Once inserted it is an
// immutable fact; only the attribution (MemberID) may be recorded after
// the matcher resolves it.
type Transaction struct {
	// ID is a strictly increasing ordinal assigned by the store. It
	// doubles as the tie-break for same-date transactions.
	ID int64

	// MemberID is the resolved attribution; 0 = unattributed. Split
	// transactions stay unattributed because a single column cannot
	// carry a multi-member result.
	MemberID int64

	Date        time.Time
	AccountName string
	Identifier  string
	Amount      money.Money // positive = incoming payment
	Description string
}

// Cursor returns the transaction's position in the ledger's total order.
func (t Transaction) Cursor() Cursor {
	return Cursor{At: t.Date, Number: t.ID}
}

// BankRecord is a raw statement row as produced by an importer, before
// the store assigns it an ordinal.
type BankRecord struct {
	Date        time.Time
	AccountName string
	Identifier  string
	Amount      money.Money
	Subject     string
}
