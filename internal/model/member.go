package model

import (
	"time"

	"github.com/duesbook/duesbook/internal/money"
)

// Member is a dues-paying member: identity plus fee contract plus the
// running account state the reconciler maintains.
type Member struct {
	ID    int64
	Name  string
	Email string
	Notes string

	// Membership is a half-open date interval. A zero MembershipEnd
	// means the membership is open-ended.
	MembershipStart time.Time
	MembershipEnd   time.Time

	// Fee is charged once per Interval periods (months by default).
	Fee      money.Money
	Interval int

	// Account is the running balance: positive = credit, negative = owed.
	// It is valid through AccountCalculatedAt and includes every
	// transaction up to and including Cursor.
	Account             money.Money
	AccountCalculatedAt time.Time
	Cursor              Cursor
}

// Active reports whether the membership covers the given date.
func (m Member) Active(date time.Time) bool {
	if date.Before(m.MembershipStart) {
		return false
	}
	if !m.MembershipEnd.IsZero() && date.After(m.MembershipEnd) {
		return false
	}
	return true
}
