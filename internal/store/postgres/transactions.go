package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

// InsertTransaction appends a transaction; the serial primary key is the
// strictly increasing ordinal the cursor ordering relies on.
func (s *Store) InsertTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	var memberID sql.NullInt64
	if tx.MemberID != 0 {
		memberID = sql.NullInt64{Int64: tx.MemberID, Valid: true}
	}

	query := `INSERT INTO transactions (member_id, date, account_name, identifier, amount_cents, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query,
		memberID, tx.Date, tx.AccountName, tx.Identifier, tx.Amount.Cents(), tx.Description,
	).Scan(&tx.ID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

// TransactionsForIdentifier returns every transaction carrying the
// token, in (date, id) order.
func (s *Store) TransactionsForIdentifier(ctx context.Context, identifier string) ([]model.Transaction, error) {
	query := `SELECT id, member_id, date, account_name, identifier, amount_cents, description
		FROM transactions WHERE identifier = $1 ORDER BY date, id`
	rows, err := s.db.QueryContext(ctx, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for identifier: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// PendingTransactions returns the member's unfolded transactions: rows
// past the cursor that are attributed to the member or carry an
// identifier the member is bound to, in (date, id) order.
func (s *Store) PendingTransactions(ctx context.Context, memberID int64, after model.Cursor) ([]model.Transaction, error) {
	query := `SELECT id, member_id, date, account_name, identifier, amount_cents, description
		FROM transactions
		WHERE (date, id) > ($2::date, $3::bigint)
		  AND (member_id = $1
		       OR (member_id IS NULL AND identifier IN (
		           SELECT identifier FROM member_identifiers WHERE member_id = $1)))
		ORDER BY date, id`

	// The zero cursor predates every real transaction.
	cursorAt := after.At
	if cursorAt.IsZero() {
		cursorAt = minDate
	}

	rows, err := s.db.QueryContext(ctx, query, memberID, cursorAt, after.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// AttributeTransaction records a single-member attribution; an existing
// attribution is never overwritten.
func (s *Store) AttributeTransaction(ctx context.Context, txID, memberID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET member_id = $2 WHERE id = $1 AND member_id IS NULL`,
		txID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to attribute transaction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, txID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to verify transaction: %w", err)
	}
	if !exists {
		return fmt.Errorf("transaction %d: %w", txID, store.ErrNotFound)
	}
	return nil // already attributed
}

// UnattributedTransactions lists transactions awaiting manual triage.
func (s *Store) UnattributedTransactions(ctx context.Context) ([]model.Transaction, error) {
	query := `SELECT id, member_id, date, account_name, identifier, amount_cents, description
		FROM transactions WHERE member_id IS NULL ORDER BY date, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unattributed transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		var (
			t        model.Transaction
			memberID sql.NullInt64
			cents    int64
		)
		if err := rows.Scan(&t.ID, &memberID, &t.Date, &t.AccountName, &t.Identifier, &cents, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if memberID.Valid {
			t.MemberID = memberID.Int64
		}
		t.Amount = money.FromCents(cents)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
