package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/duesbook/duesbook/internal/model"
)

// Memory is a Store held entirely in process memory. It backs tests and
// single-process use; semantics mirror the postgres implementation,
// including the compare-and-swap commit.
type Memory struct {
	mu           sync.Mutex
	members      map[int64]model.Member
	bindings     []model.IdentifierBinding
	transactions []model.Transaction
	nextMemberID int64
	nextTxID     int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		members:      make(map[int64]model.Member),
		nextMemberID: 1,
		nextTxID:     1,
	}
}

// CreateMember assigns an ID and stores the member.
func (s *Memory) CreateMember(_ context.Context, m model.Member) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextMemberID
	s.nextMemberID++
	s.members[m.ID] = m
	return m, nil
}

// Member returns a member by ID.
func (s *Memory) Member(_ context.Context, id int64) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return model.Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return m, nil
}

// Members lists members matching the filter, ordered by ID.
func (s *Memory) Members(_ context.Context, f MemberFilter) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Member
	for _, m := range s.members {
		if f.Name != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Email != "" && m.Email != f.Email {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateMember replaces a member's identity and fee-contract fields.
// Account state is only written through CommitAccount.
func (s *Memory) UpdateMember(_ context.Context, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.members[m.ID]
	if !ok {
		return fmt.Errorf("member %d: %w", m.ID, ErrNotFound)
	}
	cur.Name = m.Name
	cur.Email = m.Email
	cur.Notes = m.Notes
	cur.MembershipStart = m.MembershipStart
	cur.MembershipEnd = m.MembershipEnd
	cur.Fee = m.Fee
	cur.Interval = m.Interval
	s.members[m.ID] = cur
	return nil
}

// DeleteMember removes a member and cascades to its bindings and
// transactions.
func (s *Memory) DeleteMember(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	delete(s.members, id)

	kept := s.bindings[:0]
	for _, b := range s.bindings {
		if b.MemberID != id {
			kept = append(kept, b)
		}
	}
	s.bindings = kept

	keptTx := s.transactions[:0]
	for _, t := range s.transactions {
		if t.MemberID != id {
			keptTx = append(keptTx, t)
		}
	}
	s.transactions = keptTx
	return nil
}

// CommitAccount applies a reconciliation result if and only if the
// member's cursor and calculation date are still what the pass read.
func (s *Memory) CommitAccount(_ context.Context, u AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[u.MemberID]
	if !ok {
		return fmt.Errorf("member %d: %w", u.MemberID, ErrNotFound)
	}
	if !m.Cursor.Equal(u.PrevCursor) || !m.AccountCalculatedAt.Equal(u.PrevCalculatedAt) {
		return fmt.Errorf("member %d: %w", u.MemberID, ErrConcurrentModification)
	}
	m.Account = u.Account
	m.AccountCalculatedAt = u.CalculatedAt
	m.Cursor = u.Cursor
	s.members[u.MemberID] = m
	return nil
}

// CreateBinding stores an identifier binding. The (member, identifier)
// pair is the composite key.
func (s *Memory) CreateBinding(_ context.Context, b model.IdentifierBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[b.MemberID]; !ok {
		return fmt.Errorf("member %d: %w", b.MemberID, ErrNotFound)
	}
	for _, existing := range s.bindings {
		if existing.MemberID == b.MemberID && existing.Identifier == b.Identifier {
			return fmt.Errorf("binding (%d, %s) already exists", b.MemberID, b.Identifier)
		}
	}
	s.bindings = append(s.bindings, b)
	return nil
}

// BindingsForIdentifier returns all bindings for a token, ordered by
// member ID so matcher remainder assignment is deterministic.
func (s *Memory) BindingsForIdentifier(_ context.Context, identifier string) ([]model.IdentifierBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.IdentifierBinding
	for _, b := range s.bindings {
		if b.Identifier == identifier {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

// BindingsForMember returns a member's bindings.
func (s *Memory) BindingsForMember(_ context.Context, memberID int64) ([]model.IdentifierBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.IdentifierBinding
	for _, b := range s.bindings {
		if b.MemberID == memberID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// DeleteBinding removes one binding.
func (s *Memory) DeleteBinding(_ context.Context, memberID int64, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.bindings {
		if b.MemberID == memberID && b.Identifier == identifier {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("binding (%d, %s): %w", memberID, identifier, ErrNotFound)
}

// InsertTransaction appends a transaction with the next ordinal.
func (s *Memory) InsertTransaction(_ context.Context, tx model.Transaction) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.nextTxID
	s.nextTxID++
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

// TransactionsForIdentifier returns every transaction carrying the
// token, in (date, id) order.
func (s *Memory) TransactionsForIdentifier(_ context.Context, identifier string) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, t := range s.transactions {
		if t.Identifier == identifier {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cursor().Less(out[j].Cursor()) })
	return out, nil
}

// PendingTransactions returns the member's unfolded transactions in
// (date, id) order.
func (s *Memory) PendingTransactions(_ context.Context, memberID int64, after model.Cursor) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bound := make(map[string]bool)
	for _, b := range s.bindings {
		if b.MemberID == memberID {
			bound[b.Identifier] = true
		}
	}

	var out []model.Transaction
	for _, t := range s.transactions {
		if !after.Less(t.Cursor()) {
			continue
		}
		if t.MemberID == memberID || (t.MemberID == 0 && bound[t.Identifier]) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cursor().Less(out[j].Cursor()) })
	return out, nil
}

// AttributeTransaction records a single-member attribution once.
func (s *Memory) AttributeTransaction(_ context.Context, txID, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.transactions {
		if t.ID != txID {
			continue
		}
		if t.MemberID == 0 {
			s.transactions[i].MemberID = memberID
		}
		return nil
	}
	return fmt.Errorf("transaction %d: %w", txID, ErrNotFound)
}

// UnattributedTransactions lists transactions awaiting manual triage.
func (s *Memory) UnattributedTransactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, t := range s.transactions {
		if t.MemberID == 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cursor().Less(out[j].Cursor()) })
	return out, nil
}

var _ Store = (*Memory)(nil)
