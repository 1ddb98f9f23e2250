package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

// CreateBinding inserts an identifier binding.
func (s *Store) CreateBinding(ctx context.Context, b model.IdentifierBinding) error {
	var subject sql.NullString
	if b.MatchSubject != "" {
		subject = sql.NullString{String: b.MatchSubject, Valid: true}
	}
	var split sql.NullInt64
	if b.SplitAmount != nil {
		split = sql.NullInt64{Int64: b.SplitAmount.Cents(), Valid: true}
	}

	query := `INSERT INTO member_identifiers (member_id, identifier, match_subject, split_amount_cents)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, b.MemberID, b.Identifier, subject, split); err != nil {
		return fmt.Errorf("failed to create binding: %w", err)
	}
	return nil
}

// BindingsForIdentifier returns all bindings for a token, ordered by
// member ID so remainder assignment is deterministic.
func (s *Store) BindingsForIdentifier(ctx context.Context, identifier string) ([]model.IdentifierBinding, error) {
	query := `SELECT member_id, identifier, match_subject, split_amount_cents
		FROM member_identifiers WHERE identifier = $1 ORDER BY member_id`
	return s.queryBindings(ctx, query, identifier)
}

// BindingsForMember returns a member's bindings.
func (s *Store) BindingsForMember(ctx context.Context, memberID int64) ([]model.IdentifierBinding, error) {
	query := `SELECT member_id, identifier, match_subject, split_amount_cents
		FROM member_identifiers WHERE member_id = $1 ORDER BY identifier`
	return s.queryBindings(ctx, query, memberID)
}

func (s *Store) queryBindings(ctx context.Context, query string, arg any) ([]model.IdentifierBinding, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}
	defer rows.Close()

	var bindings []model.IdentifierBinding
	for rows.Next() {
		var (
			b       model.IdentifierBinding
			subject sql.NullString
			split   sql.NullInt64
		)
		if err := rows.Scan(&b.MemberID, &b.Identifier, &subject, &split); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		if subject.Valid {
			b.MatchSubject = subject.String
		}
		if split.Valid {
			amount := money.FromCents(split.Int64)
			b.SplitAmount = &amount
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// DeleteBinding removes one binding by its composite key.
func (s *Store) DeleteBinding(ctx context.Context, memberID int64, identifier string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM member_identifiers WHERE member_id = $1 AND identifier = $2`,
		memberID, identifier,
	)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("binding (%d, %s): %w", memberID, identifier, store.ErrNotFound)
	}
	return nil
}
