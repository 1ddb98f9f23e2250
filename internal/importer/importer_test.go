package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duesbook/duesbook/internal/ident"
	"github.com/duesbook/duesbook/internal/store"
)

const sepaSample = `Konto;DE99 1234 0000 5678;;;
Buchungstag;Name;IBAN;Verwendungszweck;Betrag
15.01.2024;Ada Lovelace;DE12345678901234567890;Mitgliedsbeitrag Januar;10,00
20.01.2024;Grace Hopper;DE00000000000000000001;Beitrag;1.234,56
31.01.2024;Ada Lovelace;DE12345678901234567890;Rueckbuchung;-5,00
Kontostand;;;;9.999,99
`

func TestSepaParse(t *testing.T) {
	p := &SepaParser{}
	records, err := p.Parse(strings.NewReader(sepaSample))
	require.NoError(t, err)
	require.Len(t, records, 3, "header and footer rows are skipped")

	assert.Equal(t, "Ada Lovelace", records[0].AccountName)
	assert.Equal(t, "DE12345678901234567890", records[0].Identifier)
	assert.Equal(t, "Mitgliedsbeitrag Januar", records[0].Subject)
	assert.Equal(t, "10.00", records[0].Amount.String())

	assert.Equal(t, "1234.56", records[1].Amount.String())
	assert.Equal(t, "-5.00", records[2].Amount.String())
	assert.Equal(t, 15, records[0].Date.Day())
}

func TestSepaParse_BadAmount(t *testing.T) {
	p := &SepaParser{}
	_, err := p.Parse(strings.NewReader("15.01.2024;Name;DE1;subject;abc\n"))
	require.Error(t, err)
}

func TestIngest_TokenizesIdentifiers(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	p := &SepaParser{}
	records, err := p.Parse(strings.NewReader(sepaSample))
	require.NoError(t, err)

	res, err := Ingest(ctx, st, records)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 3)
	assert.Zero(t, res.Skipped)

	wantToken := ident.Token("DE12345678901234567890", "Ada Lovelace")
	assert.Equal(t, wantToken, res.Inserted[0].Identifier, "plaintext IBAN never reaches the store")
	assert.NotEqual(t, "DE12345678901234567890", res.Inserted[0].Identifier)
	assert.Equal(t, int64(1), res.Inserted[0].ID)
	assert.Equal(t, int64(3), res.Inserted[2].ID, "ordinals are strictly increasing")

	unattributed, err := st.UnattributedTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, unattributed, 3)
}

func TestIngest_SkipsReimportedRows(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	p := &SepaParser{}
	records, err := p.Parse(strings.NewReader(sepaSample))
	require.NoError(t, err)

	first, err := Ingest(ctx, st, records)
	require.NoError(t, err)
	require.Len(t, first.Inserted, 3)

	// The same statement again: nothing new may reach the ledger.
	second, err := Ingest(ctx, st, records)
	require.NoError(t, err)
	assert.Empty(t, second.Inserted)
	assert.Equal(t, 3, second.Skipped)

	token := ident.Token("DE12345678901234567890", "Ada Lovelace")
	txs, err := st.TransactionsForIdentifier(ctx, token)
	require.NoError(t, err)
	assert.Len(t, txs, 2, "Ada's two rows exist exactly once")
}

func TestIngest_KeepsRepeatedPaymentsInOneStatement(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	// Two identical same-day payments in a single new statement are
	// both genuine.
	doubled := `15.01.2024;Ada Lovelace;DE12345678901234567890;Beitrag;10,00
15.01.2024;Ada Lovelace;DE12345678901234567890;Beitrag;10,00
`
	p := &SepaParser{}
	records, err := p.Parse(strings.NewReader(doubled))
	require.NoError(t, err)

	res, err := Ingest(ctx, st, records)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 2)
	assert.Zero(t, res.Skipped)

	// Re-importing that statement skips both.
	res, err = Ingest(ctx, st, records)
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("sepa"))
	assert.NotNil(t, r.Get("SEPA"))
	assert.Nil(t, r.Get("unknown"))

	assert.Panics(t, func() { r.Register(&SepaParser{}) })
}

func TestScanAndMarkProcessed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "import"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "import", "jan.csv"), []byte(sepaSample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "import", "notes.txt"), []byte("x"), 0o644))

	files, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "jan.csv", files[0].Name)

	require.NoError(t, MarkProcessed(root, "jan.csv"))
	files, err = Scan(root)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = os.Stat(filepath.Join(root, "import", "processed", "jan.csv"))
	require.NoError(t, err)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}
