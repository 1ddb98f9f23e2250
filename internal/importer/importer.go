// Package importer turns bank statement exports into BankRecords. It is
// a producer only: records are persisted as transactions before a
// reconciliation pass runs, and the engine never fetches data itself.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/duesbook/duesbook/internal/ident"
	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/store"
)

// Parser converts a bank statement export into BankRecords.
type Parser interface {
	Parse(r io.Reader) ([]model.BankRecord, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&SepaParser{})
	return r
}

const importDir = "import"

const processedDir = "import/processed"

// Scan returns statement CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// IngestResult reports one ingestion run.
type IngestResult struct {
	Inserted []model.Transaction
	Skipped  int
}

// rowKey identifies a statement row for duplicate detection. Two rows
// with the same key are the same payment as far as a bank export can
// tell.
type rowKey struct {
	date        string
	identifier  string
	cents       int64
	description string
}

func keyOf(t model.Transaction) rowKey {
	return rowKey{
		date:        t.Date.Format("2006-01-02"),
		identifier:  t.Identifier,
		cents:       t.Amount.Cents(),
		description: t.Description,
	}
}

// Ingest persists bank records as transactions. Identifiers are hashed
// into opaque tokens before they touch the store; the plaintext never
// leaves this function.
//
// The ledger is append-only and the reconciler folds every row exactly
// once, so a statement imported twice would double every payment. Rows
// already present in the ledger are therefore skipped, counted per
// identical row so repeated same-day payments within one new statement
// still get through.
func Ingest(ctx context.Context, st store.Store, records []model.BankRecord) (IngestResult, error) {
	var res IngestResult
	fetched := make(map[string]bool)
	existing := make(map[rowKey]int)

	for i, rec := range records {
		tx := model.Transaction{
			Date:        rec.Date,
			AccountName: rec.AccountName,
			Identifier:  ident.Token(rec.Identifier, rec.AccountName),
			Amount:      rec.Amount,
			Description: rec.Subject,
		}

		if !fetched[tx.Identifier] {
			fetched[tx.Identifier] = true
			prior, err := st.TransactionsForIdentifier(ctx, tx.Identifier)
			if err != nil {
				return res, fmt.Errorf("record %d: %w", i+1, err)
			}
			for _, p := range prior {
				existing[keyOf(p)]++
			}
		}

		key := keyOf(tx)
		if existing[key] > 0 {
			existing[key]--
			res.Skipped++
			continue
		}

		inserted, err := st.InsertTransaction(ctx, tx)
		if err != nil {
			return res, fmt.Errorf("record %d: %w", i+1, err)
		}
		res.Inserted = append(res.Inserted, inserted)
	}
	return res, nil
}
