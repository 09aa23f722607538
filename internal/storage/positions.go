package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financeangle/internal/core"
)

const positionColumns = `id, month, snapshot_date, currency, savings_budget,
	total_debit, total_shared_debit, total_credit, total_loans, net_position`

// ReplacePosition stores p as the only position for its month.
func (r *SQLiteRepository) ReplacePosition(ctx context.Context, p core.AccountPosition) (core.AccountPosition, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	month := p.Month.String()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM account_position_lines WHERE position_id IN (SELECT id FROM account_positions WHERE month = ?)`, month); err != nil {
		return core.AccountPosition{}, fmt.Errorf("delete position lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM account_positions WHERE month = ?`, month); err != nil {
		return core.AccountPosition{}, fmt.Errorf("delete position: %w", err)
	}

	t := p.Totals
	res, err := tx.ExecContext(ctx,
		`INSERT INTO account_positions (month, snapshot_date, currency, savings_budget,
		   total_debit, total_shared_debit, total_credit, total_loans, net_position, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		month, p.Month.FirstDay().String(), p.SavingsBudget.Currency, p.SavingsBudget.Amount.String(),
		t.TotalDebit.Amount.String(), t.TotalSharedDebit.Amount.String(), t.TotalCredit.Amount.String(),
		t.TotalLoans.Amount.String(), t.NetPosition.Amount.String(), formatTime(r.now()))
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("insert position: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("position id: %w", err)
	}

	for i, a := range p.Accounts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO account_position_lines (position_id, line_no, account_id, account_ref, debit, credit, loans, shared_debit)
			 VALUES (?, ?, ?, (SELECT id FROM accounts WHERE external_id = ? OR CAST(id AS TEXT) = ? ORDER BY id LIMIT 1), ?, ?, ?, ?)`,
			id, i, a.AccountID, a.AccountID,
			bucketValue(a.Debit), bucketValue(a.Credit), bucketValue(a.Loans), bucketValue(a.SharedDebit))
		if err != nil {
			return core.AccountPosition{}, fmt.Errorf("insert position line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.AccountPosition{}, fmt.Errorf("commit position: %w", err)
	}
	p.ID = id
	return p, nil
}

// PositionForMonth returns the stored position of month.
func (r *SQLiteRepository) PositionForMonth(ctx context.Context, month core.Month) (core.AccountPosition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM account_positions WHERE month = ?`, month.String())
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AccountPosition{}, core.ErrNotFound
	}
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("get position %s: %w", month, err)
	}
	if p.Accounts, err = r.positionLines(ctx, p.ID, p.SavingsBudget.Currency); err != nil {
		return core.AccountPosition{}, err
	}
	return p, nil
}

// ListPositions returns every stored position, newest month first.
func (r *SQLiteRepository) ListPositions(ctx context.Context) ([]core.AccountPosition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM account_positions ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	var out []core.AccountPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Accounts, err = r.positionLines(ctx, out[i].ID, out[i].SavingsBudget.Currency); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanPosition(s scanner) (core.AccountPosition, error) {
	var (
		p                                                  core.AccountPosition
		month, snapshotDate, currency, savings             string
		debit, sharedDebit, credit, loans, netPositionText string
	)
	if err := s.Scan(&p.ID, &month, &snapshotDate, &currency, &savings,
		&debit, &sharedDebit, &credit, &loans, &netPositionText); err != nil {
		return core.AccountPosition{}, err
	}

	var err error
	if p.Month, err = core.ParseMonth(month); err != nil {
		return core.AccountPosition{}, err
	}
	if p.SnapshotDate, err = parseDate(snapshotDate); err != nil {
		return core.AccountPosition{}, err
	}

	amounts := make([]core.MoneyAmount, 6)
	for i, raw := range []string{savings, debit, sharedDebit, credit, loans, netPositionText} {
		d, err := parseDecimal(raw)
		if err != nil {
			return core.AccountPosition{}, err
		}
		amounts[i] = core.NewMoney(d, currency)
	}
	p.SavingsBudget = amounts[0]
	p.Totals = core.PositionTotals{
		SavingsBudget:    amounts[0],
		TotalDebit:       amounts[1],
		TotalSharedDebit: amounts[2],
		TotalCredit:      amounts[3],
		TotalLoans:       amounts[4],
		NetPosition:      amounts[5],
	}
	return p, nil
}

func (r *SQLiteRepository) positionLines(ctx context.Context, positionID int64, currency string) ([]core.AccountBuckets, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, debit, credit, loans, shared_debit FROM account_position_lines
		 WHERE position_id = ? ORDER BY line_no`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query position lines: %w", err)
	}
	defer rows.Close()

	var out []core.AccountBuckets
	for rows.Next() {
		var (
			b                                 core.AccountBuckets
			debit, credit, loans, sharedDebit sql.NullString
		)
		if err := rows.Scan(&b.AccountID, &debit, &credit, &loans, &sharedDebit); err != nil {
			return nil, fmt.Errorf("scan position line: %w", err)
		}
		for _, f := range []struct {
			src sql.NullString
			dst **core.MoneyAmount
		}{{debit, &b.Debit}, {credit, &b.Credit}, {loans, &b.Loans}, {sharedDebit, &b.SharedDebit}} {
			if !f.src.Valid {
				continue
			}
			d, err := parseDecimal(f.src.String)
			if err != nil {
				return nil, err
			}
			m := core.NewMoney(d, currency)
			*f.dst = &m
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func bucketValue(m *core.MoneyAmount) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Amount.String(), Valid: true}
}
