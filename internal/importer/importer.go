// Package importer reads bank-export CSV files (Finanzguru layout by default)
// into typed rows.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"financeangle/internal/core"
)

// Columns names the header of each field in the export.
type Columns struct {
	Date         string `yaml:"date"`
	Account      string `yaml:"account"`
	AccountState string `yaml:"accountState"`
	Amount       string `yaml:"amount"`
	Description  string `yaml:"description"`
	Category     string `yaml:"category"`
}

// Options controls how an export is read.
type Options struct {
	Delimiter    rune
	DecimalComma bool
	// DatePattern uses day/month/year letters, e.g. "dd.MM.yyyy".
	DatePattern string
	Columns     Columns
}

// DefaultOptions matches a Finanzguru export.
func DefaultOptions() Options {
	return Options{
		Delimiter:   ';',
		DatePattern: "dd.MM.yyyy",
		Columns: Columns{
			Date:         "Buchungstag",
			Account:      "Konto",
			AccountState: "Kontostand",
			Amount:       "Betrag",
			Description:  "Verwendungszweck",
			Category:     "Kategorie",
		},
	}
}

// Row is one raw CSV line, keyed by field rather than header text.
type Row struct {
	Date         string `csv:"date"`
	Account      string `csv:"account"`
	AccountState string `csv:"accountState"`
	Amount       string `csv:"amount"`
	Description  string `csv:"description"`
	Category     string `csv:"category"`
}

// Record is a converted row.
type Record struct {
	Date          core.Date
	Amount        decimal.Decimal
	AccountState  *decimal.Decimal
	Description   string
	Category      *string
	AccountNumber *string
}

// Read parses every data row of the export.
func Read(r io.Reader, opts Options) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Row
	if err := gocsv.UnmarshalCSV(&headerMapper{r: cr, names: opts.Columns.byHeader()}, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// Convert turns a raw row into a Record. The account state column is checked
// only when present.
func (o Options) Convert(row Row) (Record, error) {
	date, err := ParseDate(row.Date, o.DatePattern)
	if err != nil {
		return Record{}, err
	}
	amount, err := core.ParseAmount(row.Amount, o.DecimalComma)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Date:          date,
		Amount:        amount,
		Description:   strings.TrimSpace(row.Description),
		Category:      core.StringPtr(row.Category),
		AccountNumber: core.StringPtr(row.Account),
	}
	if strings.TrimSpace(row.AccountState) != "" {
		state, err := core.ParseAmount(row.AccountState, o.DecimalComma)
		if err != nil {
			return Record{}, err
		}
		rec.AccountState = &state
	}
	return rec, nil
}

// ParseDate reads raw with pattern, falling back to ISO YYYY-MM-DD.
func ParseDate(raw, pattern string) (core.Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return core.Date{}, core.NewValidationError("date", "Missing date")
	}
	if pattern != "" {
		if t, err := time.Parse(Layout(pattern), s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.NewValidationError("date", "Invalid date '%s'", raw)
	}
	return d, nil
}

var layoutReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"M", "1",
	"dd", "02",
	"d", "2",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// Layout converts a "dd.MM.yyyy" style pattern into a time layout.
func Layout(pattern string) string {
	return layoutReplacer.Replace(pattern)
}

func (c Columns) byHeader() map[string]string {
	m := make(map[string]string, 6)
	for field, header := range map[string]string{
		"date":         c.Date,
		"account":      c.Account,
		"accountState": c.AccountState,
		"amount":       c.Amount,
		"description":  c.Description,
		"category":     c.Category,
	} {
		if h := strings.TrimSpace(header); h != "" {
			m[h] = field
		}
	}
	return m
}

// headerMapper renames the header row from export column names to Row's
// csv tags; data rows pass through.
type headerMapper struct {
	r       *csv.Reader
	names   map[string]string
	started bool
}

func (h *headerMapper) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil {
		return nil, err
	}
	if !h.started {
		h.started = true
		return h.rename(rec), nil
	}
	return rec, nil
}

func (h *headerMapper) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := h.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (h *headerMapper) rename(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if field, ok := h.names[col]; ok {
			out[i] = field
		} else {
			out[i] = "_" + col
		}
	}
	return out
}
