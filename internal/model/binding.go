package model

import (
	"strings"

	"github.com/duesbook/duesbook/internal/money"
)

// IdentifierBinding maps a bank account identifier to a member. The
// identifier is an opaque token (hashed or raw); the matcher never
// inspects its format. The same token may bind several members when the
// bindings are told apart by MatchSubject or SplitAmount.
type IdentifierBinding struct {
	MemberID   int64
	Identifier string

	// MatchSubject scopes the binding to transactions whose description
	// contains this text (case-insensitive). Empty = catch-all.
	MatchSubject string

	// SplitAmount carves a fixed amount out of a shared transaction for
	// this member. Nil = no split, receive the remainder.
	SplitAmount *money.Money
}

// HasSubject reports whether the binding is scoped by a subject pattern.
func (b IdentifierBinding) HasSubject() bool {
	return b.MatchSubject != ""
}

// SubjectMatches reports whether the binding's pattern occurs in the
// transaction description. Always true for catch-all bindings.
func (b IdentifierBinding) SubjectMatches(description string) bool {
	if !b.HasSubject() {
		return true
	}
	return strings.Contains(strings.ToLower(description), strings.ToLower(b.MatchSubject))
}
