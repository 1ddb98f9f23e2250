package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duesbook/duesbook/internal/fees"
	"github.com/duesbook/duesbook/internal/match"
	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newReconciler(st store.Store) *Reconciler {
	return New(st, fees.NewScheduler(fees.UnitMonths), 0)
}

func addMember(t *testing.T, st *store.Memory, name, fee string) model.Member {
	t.Helper()
	m, err := st.CreateMember(context.Background(), model.Member{
		Name:            name,
		MembershipStart: date(2024, 1, 1),
		Fee:             money.MustFromString(fee),
		Interval:        1,
	})
	require.NoError(t, err)
	return m
}

func bind(t *testing.T, st *store.Memory, memberID int64, token, subject string, splitAmount string) {
	t.Helper()
	b := model.IdentifierBinding{MemberID: memberID, Identifier: token, MatchSubject: subject}
	if splitAmount != "" {
		amount := money.MustFromString(splitAmount)
		b.SplitAmount = &amount
	}
	require.NoError(t, st.CreateBinding(context.Background(), b))
}

func deposit(t *testing.T, st *store.Memory, day int, token, amount, description string) model.Transaction {
	t.Helper()
	tx, err := st.InsertTransaction(context.Background(), model.Transaction{
		Date:        date(2024, 1, day),
		Identifier:  token,
		Amount:      money.MustFromString(amount),
		Description: description,
	})
	require.NoError(t, err)
	return tx
}

func TestReconcileMember_FoldsPaymentsAndFees(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, st, "Ada Lovelace", "10.00")
	bind(t, st, m.ID, "tok-a", "", "")
	deposit(t, st, 15, "tok-a", "20.00", "dues")

	out := newReconciler(st).ReconcileMember(ctx, m.ID, date(2024, 4, 1))
	require.NoError(t, out.Err)
	assert.Equal(t, StatusCommitted, out.Status)
	// 20.00 paid minus 30.00 due (three complete months).
	assert.Equal(t, "-10.00", out.Delta.String())

	got, err := st.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "-10.00", got.Account.String())
	assert.True(t, got.AccountCalculatedAt.Equal(date(2024, 4, 1)))
	assert.True(t, got.Cursor.Equal(model.Cursor{At: date(2024, 1, 15), Number: 1}))

	// The unambiguous match was recorded on the transaction.
	unattributed, err := st.UnattributedTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, unattributed)
}

func TestReconcileMember_Idempotent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, st, "Ada Lovelace", "10.00")
	bind(t, st, m.ID, "tok-a", "", "")
	deposit(t, st, 15, "tok-a", "20.00", "dues")

	rec := newReconciler(st)
	first := rec.ReconcileMember(ctx, m.ID, date(2024, 4, 1))
	require.Equal(t, StatusCommitted, first.Status)
	after, err := st.Member(ctx, m.ID)
	require.NoError(t, err)

	second := rec.ReconcileMember(ctx, m.ID, date(2024, 4, 1))
	assert.Equal(t, StatusSkipped, second.Status)

	again, err := st.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, after.Account.String(), again.Account.String())
	assert.True(t, after.Cursor.Equal(again.Cursor))
	assert.True(t, after.AccountCalculatedAt.Equal(again.AccountCalculatedAt))
}

func TestReconcileMember_UnmatchedAdvancesCursor(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, st, "Ada Lovelace", "10.00")
	bind(t, st, m.ID, "tok-a", "", "")

	// Attributed to the member directly but carrying a token nobody is
	// bound to: the matcher finds nothing, yet the cursor must move on.
	tx, err := st.InsertTransaction(ctx, model.Transaction{
		MemberID:    m.ID,
		Date:        date(2024, 1, 10),
		Identifier:  "tok-unknown",
		Amount:      money.MustFromString("5.00"),
		Description: "mystery payment",
	})
	require.NoError(t, err)

	out := newReconciler(st).ReconcileMember(ctx, m.ID, date(2024, 2, 1))
	require.NoError(t, out.Err)
	assert.Equal(t, StatusCommitted, out.Status)
	// Only the January fee, not the unmatched amount.
	assert.Equal(t, "-10.00", out.Delta.String())

	got, err := st.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Cursor.Equal(tx.Cursor()), "cursor advances past unmatched transactions")
}

func TestReconcileMember_SplitAcrossMembers(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	john := addMember(t, st, "John Doe", "10.00")
	jane := addMember(t, st, "Jane Doe", "10.00")
	bind(t, st, john.ID, "tok-joint", "JohnDoe", "20.00")
	bind(t, st, jane.ID, "tok-joint", "JaneDoe", "")
	deposit(t, st, 20, "tok-joint", "50.00", "Dues JohnDoe JaneDoe")

	rec := newReconciler(st)
	asOf := date(2024, 2, 1)

	outJohn := rec.ReconcileMember(ctx, john.ID, asOf)
	require.NoError(t, outJohn.Err)
	outJane := rec.ReconcileMember(ctx, jane.ID, asOf)
	require.NoError(t, outJane.Err)

	// One January fee each; 20.00 and 30.00 attributed respectively.
	gotJohn, err := st.Member(ctx, john.ID)
	require.NoError(t, err)
	gotJane, err := st.Member(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", gotJohn.Account.String())
	assert.Equal(t, "20.00", gotJane.Account.String())

	// Both passes saw the same transaction; attributed sum is intact.
	total := gotJohn.Account.Add(gotJane.Account)
	assert.Equal(t, "30.00", total.String())
}

func TestReconcileMember_AmbiguousMatchAborts(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	a := addMember(t, st, "Ada Lovelace", "10.00")
	b := addMember(t, st, "Grace Hopper", "10.00")
	bind(t, st, a.ID, "tok-shared", "", "")
	bind(t, st, b.ID, "tok-shared", "", "")
	tx := deposit(t, st, 10, "tok-shared", "50.00", "dues")

	out := newReconciler(st).ReconcileMember(ctx, a.ID, date(2024, 2, 1))
	assert.Equal(t, StatusAborted, out.Status)
	require.ErrorIs(t, out.Err, match.ErrAmbiguousMatch)
	require.NotNil(t, out.Failed)
	assert.Equal(t, tx.ID, out.Failed.ID)

	// Cursor and balance untouched.
	got, err := st.Member(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Cursor.IsZero())
	assert.True(t, got.Account.IsZero())
	assert.True(t, got.AccountCalculatedAt.IsZero())
}

func TestReconcileMember_NoFeesBeforeMembershipStart(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, st, "Ada Lovelace", "10.00")

	out := newReconciler(st).ReconcileMember(ctx, m.ID, date(2023, 6, 1))
	require.NoError(t, out.Err)
	// Calculation date still advances, but nothing accrues.
	assert.Equal(t, StatusCommitted, out.Status)
	assert.True(t, out.Delta.IsZero())
}

func TestReconcileMember_CalculationDateNeverMovesBack(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, st, "Ada Lovelace", "10.00")
	bind(t, st, m.ID, "tok-a", "", "")

	rec := newReconciler(st)
	first := rec.ReconcileMember(ctx, m.ID, date(2024, 4, 1))
	require.Equal(t, StatusCommitted, first.Status)

	// A later pass with an earlier asOf still folds new transactions but
	// must not rewind the calculation date or refund fees.
	deposit(t, st, 25, "tok-a", "10.00", "dues")
	second := rec.ReconcileMember(ctx, m.ID, date(2024, 2, 1))
	require.NoError(t, second.Err)
	assert.Equal(t, StatusCommitted, second.Status)
	assert.Equal(t, "10.00", second.Delta.String())

	got, err := st.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.AccountCalculatedAt.Equal(date(2024, 4, 1)))
	assert.Equal(t, "-20.00", got.Account.String())
}

// conflictingStore makes the first commit lose to a simulated concurrent
// pass that applies the same update.
type conflictingStore struct {
	*store.Memory
	remaining int
	commits   int
}

func (s *conflictingStore) CommitAccount(ctx context.Context, u store.AccountUpdate) error {
	if s.remaining > 0 {
		s.remaining--
		// The "other" pass wins with exactly this update.
		if err := s.Memory.CommitAccount(ctx, u); err != nil {
			return err
		}
		return store.ErrConcurrentModification
	}
	s.commits++
	return s.Memory.CommitAccount(ctx, u)
}

func TestReconcileMember_RetriesAfterConflictAndConverges(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, mem, "Ada Lovelace", "10.00")
	bind(t, mem, m.ID, "tok-a", "", "")
	deposit(t, mem, 15, "tok-a", "20.00", "dues")

	st := &conflictingStore{Memory: mem, remaining: 1}
	out := New(st, fees.NewScheduler(fees.UnitMonths), 3).ReconcileMember(ctx, m.ID, date(2024, 2, 1))

	// The retry reads fresh state, finds the work already applied, and
	// converges without a second commit.
	assert.Equal(t, StatusSkipped, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, 0, st.commits)

	got, err := mem.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Account.String(), "delta applied exactly once")
}

// stuckStore loses every optimistic commit.
type stuckStore struct {
	*store.Memory
	attempts int
}

func (s *stuckStore) CommitAccount(_ context.Context, _ store.AccountUpdate) error {
	s.attempts++
	return store.ErrConcurrentModification
}

func TestReconcileMember_BoundedRetries(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	m := addMember(t, mem, "Ada Lovelace", "10.00")
	bind(t, mem, m.ID, "tok-a", "", "")
	deposit(t, mem, 15, "tok-a", "20.00", "dues")

	st := &stuckStore{Memory: mem}
	out := New(st, fees.NewScheduler(fees.UnitMonths), 2).ReconcileMember(ctx, m.ID, date(2024, 2, 1))

	assert.Equal(t, StatusAborted, out.Status)
	require.ErrorIs(t, out.Err, store.ErrConcurrentModification)
	assert.Equal(t, 3, st.attempts, "initial attempt plus two retries")
}
