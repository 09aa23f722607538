package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"financeangle/internal/core"
	"financeangle/internal/importer"
)

// ImportResult reports how a bank export was taken in. Errors are
// "Row N: message", N counting data rows from 1.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ImportFinanzguru stores every convertible row of the export as a book
// entry. Rows that fail are reported and skipped; the rest are kept.
func (s *DashboardService) ImportFinanzguru(ctx context.Context, r io.Reader, opts importer.Options) (ImportResult, error) {
	rows, err := importer.Read(r, opts)
	if err != nil {
		return ImportResult{}, core.NewValidationError("file", "%v", err)
	}

	res := ImportResult{Errors: []string{}}
	for i, row := range rows {
		if err := s.importRow(ctx, opts, row); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", i+1, err.Error()))
			continue
		}
		res.Imported++
	}
	res.Skipped = len(rows) - res.Imported

	if res.Imported > 0 {
		s.changed()
	}
	slog.InfoContext(ctx, "Finanzguru import finished",
		"imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func (s *DashboardService) importRow(ctx context.Context, opts importer.Options, row importer.Row) error {
	rec, err := opts.Convert(row)
	if err != nil {
		return err
	}
	_, err = s.insertEntry(ctx, core.BookEntry{
		Date:        rec.Date,
		Description: rec.Description,
		Category:    rec.Category,
		Amount:      rec.Amount,
		Origin:      core.OriginManual,
	}, rec.AccountNumber)
	return err
}
