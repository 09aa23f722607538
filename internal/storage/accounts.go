package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financeangle/internal/core"
)

const accountColumns = "id, external_id, name, account_number, provider, currency"

func scanAccount(s scanner) (core.Account, error) {
	var (
		a                     core.Account
		ext, number, provider sql.NullString
	)
	if err := s.Scan(&a.Key, &ext, &a.Name, &number, &provider, &a.Currency); err != nil {
		return core.Account{}, err
	}
	a.ExternalID = stringPtr(ext)
	a.AccountID = accountID(a.Key, ext)
	a.AccountNumber = stringPtr(number)
	a.Provider = stringPtr(provider)
	return a, nil
}

func (r *SQLiteRepository) findAccount(ctx context.Context, where string, arg any) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+` ORDER BY id LIMIT 1`, arg)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) AccountByExternalID(ctx context.Context, externalID string) (core.Account, error) {
	return r.findAccount(ctx, "external_id = ?", externalID)
}

func (r *SQLiteRepository) AccountByKey(ctx context.Context, key int64) (core.Account, error) {
	return r.findAccount(ctx, "id = ?", key)
}

func (r *SQLiteRepository) AccountByName(ctx context.Context, name string) (core.Account, error) {
	return r.findAccount(ctx, "name = ?", name)
}

func (r *SQLiteRepository) AccountByNumber(ctx context.Context, number string) (core.Account, error) {
	return r.findAccount(ctx, "account_number = ?", number)
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (external_id, name, account_number, provider, currency) VALUES (?, ?, ?, ?, ?)`,
		nullableString(a.ExternalID), a.Name, nullableString(a.AccountNumber), nullableString(a.Provider), a.Currency)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	key, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return r.AccountByKey(ctx, key)
}

// UpdateAccount overwrites every column of the account identified by a.Key.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET external_id = ?, name = ?, account_number = ?, provider = ?, currency = ? WHERE id = ?`,
		nullableString(a.ExternalID), a.Name, nullableString(a.AccountNumber), nullableString(a.Provider), a.Currency, a.Key)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Account{}, core.ErrNotFound
	}
	return r.AccountByKey(ctx, a.Key)
}

// DeleteAccount removes an account and clears every reference to it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, key int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`UPDATE book_entries SET account_id = NULL WHERE account_id = ?`,
		`UPDATE balance_snapshots SET account_id = NULL WHERE account_id = ?`,
		`UPDATE account_position_lines SET account_ref = NULL WHERE account_ref = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, key); err != nil {
			return fmt.Errorf("clear account references: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, key)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return tx.Commit()
}

// ListAccounts returns every account ordered by name.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
