package storage

import (
	"context"
	"database/sql"
	"fmt"

	"financeangle/internal/core"
)

const entrySelect = `SELECT e.id, e.date, e.description, e.category, e.amount, a.name, e.origin
	FROM book_entries e LEFT JOIN accounts a ON a.id = e.account_id`

func scanEntry(s scanner) (core.BookEntry, error) {
	var (
		e                 core.BookEntry
		date, amount      string
		category, account sql.NullString
	)
	if err := s.Scan(&e.ID, &date, &e.Description, &category, &amount, &account, &e.Origin); err != nil {
		return core.BookEntry{}, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return core.BookEntry{}, err
	}
	if e.Amount, err = parseDecimal(amount); err != nil {
		return core.BookEntry{}, err
	}
	e.Category = stringPtr(category)
	e.Account = stringPtr(account)
	return e, nil
}

// InsertBookEntry stores an entry linked to the account with the given key,
// if any.
func (r *SQLiteRepository) InsertBookEntry(ctx context.Context, e core.BookEntry, accountKey *int64) (core.BookEntry, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO book_entries (date, description, category, amount, account_id, origin) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Date.String(), e.Description, nullableString(e.Category), e.Amount.String(), nullableInt(accountKey), e.Origin)
	if err != nil {
		return core.BookEntry{}, fmt.Errorf("insert book entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BookEntry{}, fmt.Errorf("book entry id: %w", err)
	}
	return scanEntry(r.db.QueryRowContext(ctx, entrySelect+` WHERE e.id = ?`, id))
}

// ListBookEntries returns every entry, oldest first.
func (r *SQLiteRepository) ListBookEntries(ctx context.Context) ([]core.BookEntry, error) {
	return r.queryEntries(ctx, entrySelect+` ORDER BY e.date, e.id`)
}

// BookEntriesBetween returns entries dated from..to, both inclusive.
func (r *SQLiteRepository) BookEntriesBetween(ctx context.Context, from, to core.Date) ([]core.BookEntry, error) {
	return r.queryEntries(ctx, entrySelect+` WHERE e.date >= ? AND e.date <= ? ORDER BY e.date, e.id`,
		from.String(), to.String())
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]core.BookEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query book entries: %w", err)
	}
	defer rows.Close()

	var out []core.BookEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteAllBookEntries wipes the entries table and reports how many rows went.
func (r *SQLiteRepository) DeleteAllBookEntries(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM book_entries`)
	if err != nil {
		return 0, fmt.Errorf("delete book entries: %w", err)
	}
	return res.RowsAffected()
}
