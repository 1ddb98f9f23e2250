package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
)

// SepaParser parses semicolon-delimited SEPA account exports as produced
// by most European banks: booking date, holder name, IBAN, subject and a
// comma-decimal amount. Only incoming payments carry dues, but outgoing
// rows are kept too; their negative amounts fold like any other.
type SepaParser struct{}

const (
	sepaDateFormat = "02.01.2006"
	sepaNumFields  = 5
	sepaColDate    = 0
	sepaColName    = 1
	sepaColIBAN    = 2
	sepaColSubject = 3
	sepaColAmount  = 4
)

// Format returns the parser name.
func (p *SepaParser) Format() string { return "sepa" }

// Parse reads a SEPA export and returns BankRecords. Rows that do not
// start with a date (headers, balance footers) are skipped.
func (p *SepaParser) Parse(r io.Reader) ([]model.BankRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sepa CSV: %w", err)
	}

	var out []model.BankRecord
	for i, rec := range records {
		if len(rec) < sepaNumFields {
			continue
		}
		date, err := time.Parse(sepaDateFormat, rec[sepaColDate])
		if err != nil {
			// Not a booking row.
			continue
		}

		amount, err := parseSepaAmount(rec[sepaColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		out = append(out, model.BankRecord{
			Date:        date,
			AccountName: strings.TrimSpace(rec[sepaColName]),
			Identifier:  strings.TrimSpace(rec[sepaColIBAN]),
			Subject:     strings.TrimSpace(rec[sepaColSubject]),
			Amount:      amount,
		})
	}
	return out, nil
}

// parseSepaAmount converts "1.234,56" to exact money.
func parseSepaAmount(s string) (money.Money, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	m, err := money.FromString(s)
	if err != nil {
		return money.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return m, nil
}
