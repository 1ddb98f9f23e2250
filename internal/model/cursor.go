package model

import (
	"fmt"
	"time"
)

// Cursor identifies the last bank transaction already folded into a
// member's account. Bank timestamps are not unique, so the transaction
// ordinal breaks ties; together they form a total order over the ledger.
type Cursor struct {
	At     time.Time
	Number int64
}

// Less reports whether c sorts strictly before other.
func (c Cursor) Less(other Cursor) bool {
	if !c.At.Equal(other.At) {
		return c.At.Before(other.At)
	}
	return c.Number < other.Number
}

// Equal reports whether both cursors point at the same transaction.
func (c Cursor) Equal(other Cursor) bool {
	return c.At.Equal(other.At) && c.Number == other.Number
}

// IsZero reports whether the cursor has never advanced.
func (c Cursor) IsZero() bool {
	return c.At.IsZero() && c.Number == 0
}

func (c Cursor) String() string {
	return fmt.Sprintf("%s/%d", c.At.Format("2006-01-02"), c.Number)
}
