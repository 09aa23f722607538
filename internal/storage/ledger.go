package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"financeangle/internal/core"
)

const transactionColumns = "id, amount, category, occurred_at, notes, source_type, receipt_reference, created_at, updated_at"

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                             core.Transaction
		amount, occurred, created, upd string
		notes, receipt                 sql.NullString
		category, source               string
	)
	if err := s.Scan(&tx.ID, &amount, &category, &occurred, &notes, &source, &receipt, &created, &upd); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.OccurredAt, err = parseTime(occurred); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(upd); err != nil {
		return core.Transaction{}, err
	}
	tx.Category = core.Category(category)
	tx.SourceType = core.SourceType(source)
	tx.Notes = stringPtr(notes)
	tx.ReceiptReference = stringPtr(receipt)
	return tx, nil
}

// CreateTransaction stores a ledger transaction and returns it with its id
// and audit timestamps.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, category, occurred_at, notes, source_type, receipt_reference, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Amount.String(), string(tx.Category), formatTime(tx.OccurredAt), nullableString(tx.Notes),
		string(tx.SourceType), nullableString(tx.ReceiptReference), formatTime(now), formatTime(now))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// TransactionsBetween returns transactions with start <= occurredAt < end.
func (r *SQLiteRepository) TransactionsBetween(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at, id`,
		formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const receiptColumns = "id, external_id, receipt_uri, status, metadata, created_at, updated_at"

func scanReceipt(s scanner) (core.ReceiptIngestion, error) {
	var (
		rc           core.ReceiptIngestion
		uri, meta    sql.NullString
		status       string
		created, upd string
	)
	if err := s.Scan(&rc.ID, &rc.ExternalID, &uri, &status, &meta, &created, &upd); err != nil {
		return core.ReceiptIngestion{}, err
	}
	var err error
	if rc.CreatedAt, err = parseTime(created); err != nil {
		return core.ReceiptIngestion{}, err
	}
	if rc.UpdatedAt, err = parseTime(upd); err != nil {
		return core.ReceiptIngestion{}, err
	}
	rc.ReceiptURI = stringPtr(uri)
	rc.Metadata = stringPtr(meta)
	rc.Status = core.ReceiptStatus(status)
	return rc, nil
}

// UpsertReceipt records an ingestion keyed by external id. An existing row
// keeps its id and creation time.
func (r *SQLiteRepository) UpsertReceipt(ctx context.Context, rc core.ReceiptIngestion) (core.ReceiptIngestion, error) {
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO receipt_ingestions (external_id, receipt_uri, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
		   receipt_uri = excluded.receipt_uri,
		   status = excluded.status,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		rc.ExternalID, nullableString(rc.ReceiptURI), string(rc.Status), nullableString(rc.Metadata), now, now)
	if err != nil {
		return core.ReceiptIngestion{}, fmt.Errorf("upsert receipt: %w", err)
	}
	return r.ReceiptByExternalID(ctx, rc.ExternalID)
}

func (r *SQLiteRepository) ReceiptByExternalID(ctx context.Context, externalID string) (core.ReceiptIngestion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipt_ingestions WHERE external_id = ?`, externalID)
	rc, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ReceiptIngestion{}, core.ErrNotFound
	}
	if err != nil {
		return core.ReceiptIngestion{}, fmt.Errorf("get receipt %s: %w", externalID, err)
	}
	return rc, nil
}

const savingsColumns = "id, amount, captured_at, notes, created_at"

func scanSavings(s scanner) (core.SavingsSnapshot, error) {
	var (
		ss                       core.SavingsSnapshot
		amount, captured, create string
		notes                    sql.NullString
	)
	if err := s.Scan(&ss.ID, &amount, &captured, &notes, &create); err != nil {
		return core.SavingsSnapshot{}, err
	}
	var err error
	if ss.Amount, err = parseDecimal(amount); err != nil {
		return core.SavingsSnapshot{}, err
	}
	if ss.CapturedAt, err = parseTime(captured); err != nil {
		return core.SavingsSnapshot{}, err
	}
	if ss.CreatedAt, err = parseTime(create); err != nil {
		return core.SavingsSnapshot{}, err
	}
	ss.Notes = stringPtr(notes)
	return ss, nil
}

func (r *SQLiteRepository) CreateSavingsSnapshot(ctx context.Context, ss core.SavingsSnapshot) (core.SavingsSnapshot, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_snapshots (amount, captured_at, notes, created_at) VALUES (?, ?, ?, ?)`,
		ss.Amount.String(), formatTime(ss.CapturedAt), nullableString(ss.Notes), formatTime(r.now()))
	if err != nil {
		return core.SavingsSnapshot{}, fmt.Errorf("insert savings snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.SavingsSnapshot{}, fmt.Errorf("savings snapshot id: %w", err)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+savingsColumns+` FROM savings_snapshots WHERE id = ?`, id)
	return scanSavings(row)
}

// LatestSavingsSnapshot returns the snapshot with the greatest capturedAt.
func (r *SQLiteRepository) LatestSavingsSnapshot(ctx context.Context) (core.SavingsSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+savingsColumns+` FROM savings_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`)
	ss, err := scanSavings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsSnapshot{}, core.ErrNotFound
	}
	if err != nil {
		return core.SavingsSnapshot{}, fmt.Errorf("latest savings snapshot: %w", err)
	}
	return ss, nil
}
