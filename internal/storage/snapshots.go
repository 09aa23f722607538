package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financeangle/internal/core"
)

const snapshotSelect = `SELECT s.id, s.date, s.balance_eur, s.original_amount, s.original_currency,
	s.fx_from, s.fx_to, s.fx_rate, s.fx_date, s.fx_source, s.type, s.kind, s.note,
	a.id, a.external_id, a.name
	FROM balance_snapshots s LEFT JOIN accounts a ON a.id = s.account_id`

func scanSnapshot(s scanner) (core.BalanceSnapshot, error) {
	var (
		snap                            core.BalanceSnapshot
		date, balance, original, origCC string
		fxFrom, fxTo, fxRate, fxDate    sql.NullString
		fxSource, note                  sql.NullString
		typ, kind                       string
		accKey                          sql.NullInt64
		accExt, accName                 sql.NullString
	)
	err := s.Scan(&snap.ID, &date, &balance, &original, &origCC,
		&fxFrom, &fxTo, &fxRate, &fxDate, &fxSource, &typ, &kind, &note,
		&accKey, &accExt, &accName)
	if err != nil {
		return core.BalanceSnapshot{}, err
	}

	if snap.Date, err = parseDate(date); err != nil {
		return core.BalanceSnapshot{}, err
	}
	bal, err := parseDecimal(balance)
	if err != nil {
		return core.BalanceSnapshot{}, err
	}
	orig, err := parseDecimal(original)
	if err != nil {
		return core.BalanceSnapshot{}, err
	}
	snap.Balance = core.NewMoney(bal, core.EUR)
	snap.Original = core.NewMoney(orig, origCC)

	if fxRate.Valid {
		rate, err := parseDecimal(fxRate.String)
		if err != nil {
			return core.BalanceSnapshot{}, err
		}
		fx := &core.FXRate{
			FromCurrency: fxFrom.String,
			ToCurrency:   fxTo.String,
			Rate:         rate,
			Source:       stringPtr(fxSource),
		}
		if fxDate.Valid {
			if fx.RateDate, err = parseDate(fxDate.String); err != nil {
				return core.BalanceSnapshot{}, err
			}
		}
		snap.FXToEUR = fx
	}

	snap.Type = core.BalanceType(typ)
	snap.Kind = core.AccountKind(kind)
	snap.Note = stringPtr(note)
	snap.Account = stringPtr(accName)
	if accKey.Valid {
		key := accountID(accKey.Int64, accExt)
		snap.AccountKey = &key
	}
	return snap, nil
}

// InsertBalanceSnapshot stores a snapshot whose EUR balance has already been
// computed.
func (r *SQLiteRepository) InsertBalanceSnapshot(ctx context.Context, s core.BalanceSnapshot, accountKey *int64) (core.BalanceSnapshot, error) {
	var fxFrom, fxTo, fxRate, fxDate, fxSource sql.NullString
	if s.FXToEUR != nil {
		fxFrom = sql.NullString{String: s.FXToEUR.FromCurrency, Valid: true}
		fxTo = sql.NullString{String: s.FXToEUR.ToCurrency, Valid: true}
		fxRate = sql.NullString{String: s.FXToEUR.Rate.String(), Valid: true}
		if !s.FXToEUR.RateDate.IsZero() {
			fxDate = sql.NullString{String: s.FXToEUR.RateDate.String(), Valid: true}
		}
		fxSource = nullableString(s.FXToEUR.Source)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO balance_snapshots
		   (date, balance_eur, original_amount, original_currency, fx_from, fx_to, fx_rate, fx_date, fx_source, type, kind, account_id, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Date.String(), s.Balance.Amount.String(), s.Original.Amount.String(), s.Original.Currency,
		fxFrom, fxTo, fxRate, fxDate, fxSource, string(s.Type), string(s.Kind), nullableInt(accountKey), nullableString(s.Note))
	if err != nil {
		return core.BalanceSnapshot{}, fmt.Errorf("insert balance snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BalanceSnapshot{}, fmt.Errorf("balance snapshot id: %w", err)
	}
	return r.BalanceSnapshot(ctx, id)
}

func (r *SQLiteRepository) BalanceSnapshot(ctx context.Context, id int64) (core.BalanceSnapshot, error) {
	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, snapshotSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BalanceSnapshot{}, core.ErrNotFound
	}
	if err != nil {
		return core.BalanceSnapshot{}, fmt.Errorf("get balance snapshot %d: %w", id, err)
	}
	return snap, nil
}

func (r *SQLiteRepository) DeleteBalanceSnapshot(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM balance_snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete balance snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListBalanceSnapshots returns every snapshot, oldest first.
func (r *SQLiteRepository) ListBalanceSnapshots(ctx context.Context) ([]core.BalanceSnapshot, error) {
	return r.querySnapshots(ctx, snapshotSelect+` ORDER BY s.date, s.id`)
}

// SnapshotsUpTo returns snapshots dated on or before asOf, newest first.
func (r *SQLiteRepository) SnapshotsUpTo(ctx context.Context, asOf core.Date) ([]core.BalanceSnapshot, error) {
	return r.querySnapshots(ctx, snapshotSelect+` WHERE s.date <= ? ORDER BY s.date DESC, s.id DESC`, asOf.String())
}

func (r *SQLiteRepository) querySnapshots(ctx context.Context, query string, args ...any) ([]core.BalanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query balance snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.BalanceSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
