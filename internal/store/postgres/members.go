package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

const memberColumns = `id, name, email, notes, membership_start, membership_end,
	fee_cents, fee_interval, account_cents, account_calculated_at,
	last_bank_transaction_at, last_bank_transaction_number`

func scanMember(row interface{ Scan(...any) error }) (model.Member, error) {
	var (
		m            model.Member
		end          sql.NullTime
		feeCents     int64
		accountCents int64
		calculatedAt sql.NullTime
		cursorAt     sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.Name, &m.Email, &m.Notes, &m.MembershipStart, &end,
		&feeCents, &m.Interval, &accountCents, &calculatedAt,
		&cursorAt, &m.Cursor.Number,
	)
	if err != nil {
		return model.Member{}, err
	}
	if end.Valid {
		m.MembershipEnd = end.Time
	}
	if calculatedAt.Valid {
		m.AccountCalculatedAt = calculatedAt.Time
	}
	if cursorAt.Valid {
		m.Cursor.At = cursorAt.Time
	}
	m.Fee = money.FromCents(feeCents)
	m.Account = money.FromCents(accountCents)
	return m, nil
}

func dateOrNull(m model.Member, which string) sql.NullTime {
	switch which {
	case "end":
		return sql.NullTime{Time: m.MembershipEnd, Valid: !m.MembershipEnd.IsZero()}
	case "calculated":
		return sql.NullTime{Time: m.AccountCalculatedAt, Valid: !m.AccountCalculatedAt.IsZero()}
	default:
		return sql.NullTime{Time: m.Cursor.At, Valid: !m.Cursor.At.IsZero()}
	}
}

// CreateMember inserts a member and returns it with its assigned ID.
func (s *Store) CreateMember(ctx context.Context, m model.Member) (model.Member, error) {
	query := `INSERT INTO members (name, email, notes, membership_start, membership_end,
			fee_cents, fee_interval, account_cents, account_calculated_at,
			last_bank_transaction_at, last_bank_transaction_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query,
		m.Name, m.Email, m.Notes, m.MembershipStart, dateOrNull(m, "end"),
		m.Fee.Cents(), m.Interval, m.Account.Cents(), dateOrNull(m, "calculated"),
		dateOrNull(m, "cursor"), m.Cursor.Number,
	).Scan(&m.ID)
	if err != nil {
		return model.Member{}, fmt.Errorf("failed to create member: %w", err)
	}
	return m, nil
}

// Member returns a member by ID.
func (s *Store) Member(ctx context.Context, id int64) (model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return model.Member{}, fmt.Errorf("member %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// Members lists members matching the filter, ordered by ID.
func (s *Store) Members(ctx context.Context, f store.MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE 1=1`
	var args []any
	if f.Name != "" {
		args = append(args, "%"+f.Name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		query += fmt.Sprintf(" AND email = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMember writes a member's identity and fee-contract fields.
// Account state is only written through CommitAccount.
func (s *Store) UpdateMember(ctx context.Context, m model.Member) error {
	query := `UPDATE members
		SET name = $2, email = $3, notes = $4, membership_start = $5,
			membership_end = $6, fee_cents = $7, fee_interval = $8
		WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Email, m.Notes, m.MembershipStart,
		dateOrNull(m, "end"), m.Fee.Cents(), m.Interval,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("member %d: %w", m.ID, store.ErrNotFound)
	}
	return nil
}

// DeleteMember removes a member; bindings and transactions cascade.
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("member %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// CommitAccount applies one reconciliation result with a compare-and-swap
// against the cursor and calculation date the pass started from.
func (s *Store) CommitAccount(ctx context.Context, u store.AccountUpdate) error {
	query := `UPDATE members
		SET account_cents = $2,
			account_calculated_at = $3,
			last_bank_transaction_at = $4,
			last_bank_transaction_number = $5
		WHERE id = $1
		  AND last_bank_transaction_number = $6
		  AND last_bank_transaction_at IS NOT DISTINCT FROM $7
		  AND account_calculated_at IS NOT DISTINCT FROM $8`

	cursorAt := sql.NullTime{Time: u.Cursor.At, Valid: !u.Cursor.At.IsZero()}
	prevCursorAt := sql.NullTime{Time: u.PrevCursor.At, Valid: !u.PrevCursor.At.IsZero()}
	prevCalculated := sql.NullTime{Time: u.PrevCalculatedAt, Valid: !u.PrevCalculatedAt.IsZero()}

	result, err := s.db.ExecContext(ctx, query,
		u.MemberID, u.Account.Cents(), u.CalculatedAt, cursorAt, u.Cursor.Number,
		u.PrevCursor.Number, prevCursorAt, prevCalculated,
	)
	if err != nil {
		return fmt.Errorf("failed to commit account: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 1 {
		return nil
	}

	// Distinguish a lost optimistic check from a missing member.
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, u.MemberID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to verify member: %w", err)
	}
	if !exists {
		return fmt.Errorf("member %d: %w", u.MemberID, store.ErrNotFound)
	}
	return fmt.Errorf("member %d: %w", u.MemberID, store.ErrConcurrentModification)
}
