package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financeangle/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finance.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finance.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}

func TestTransactionsBetweenIsHalfOpen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{start, end.Add(-time.Nanosecond), end, start.Add(-time.Second)} {
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			Amount:     decimal.RequireFromString("10.50"),
			Category:   core.CategoryFood,
			OccurredAt: at,
			SourceType: core.SourceManual,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.TransactionsBetween(ctx, start, end)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions inside the window, got %d", len(got))
	}
	if !got[0].OccurredAt.Equal(start) || got[0].ID == 0 || got[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected first transaction %+v", got[0])
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected amount %s", got[0].Amount)
	}
}

func TestTransactionTimesSortAcrossZones(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	berlin := time.FixedZone("CET", 3600)

	// 00:30 CET is 23:30 UTC on the previous day.
	at := time.Date(2025, 3, 1, 0, 30, 0, 0, berlin)
	if _, err := repo.CreateTransaction(ctx, core.Transaction{Amount: decimal.NewFromInt(1), Category: core.CategoryOther, OccurredAt: at, SourceType: core.SourceManual}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.TransactionsBetween(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected the CET transaction to fall on the previous UTC day")
	}
}

func TestUpsertReceiptKeepsIdentity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertReceipt(ctx, core.ReceiptIngestion{ExternalID: "r-1", Status: core.ReceiptPending})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	uri := "s3://receipts/r-1.jpg"
	second, err := repo.UpsertReceipt(ctx, core.ReceiptIngestion{ExternalID: "r-1", Status: core.ReceiptCompleted, ReceiptURI: &uri})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert must keep id and createdAt: %+v vs %+v", first, second)
	}
	if second.Status != core.ReceiptCompleted || second.ReceiptURI == nil || *second.ReceiptURI != uri {
		t.Fatalf("upsert did not update fields: %+v", second)
	}

	if _, err := repo.ReceiptByExternalID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestSavingsSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestSavingsSnapshot(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, amount := range []string{"100", "300", "200"} {
		captured := base.AddDate(0, i, 0)
		if i == 2 {
			captured = base.AddDate(0, -1, 0) // older snapshot inserted last
		}
		if _, err := repo.CreateSavingsSnapshot(ctx, core.SavingsSnapshot{Amount: decimal.RequireFromString(amount), CapturedAt: captured}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	latest, err := repo.LatestSavingsSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected the snapshot with the greatest capturedAt, got %s", latest.Amount)
	}
}

func TestDeleteAccountClearsReferences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ext := "acc-ext"
	acc, err := repo.InsertAccount(ctx, core.Account{Name: "Main", ExternalID: &ext, Currency: core.EUR})
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
	if acc.AccountID != ext {
		t.Fatalf("expected external id as account id, got %s", acc.AccountID)
	}

	entry, err := repo.InsertBookEntry(ctx, core.BookEntry{Date: core.NewDate(2025, 1, 2), Description: "Coffee", Amount: decimal.NewFromInt(-3), Origin: core.OriginManual}, &acc.Key)
	if err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	if entry.Account == nil || *entry.Account != "Main" {
		t.Fatalf("entry should show the account name, got %v", entry.Account)
	}

	snap, err := repo.InsertBalanceSnapshot(ctx, core.BalanceSnapshot{
		Date:     core.NewDate(2025, 1, 31),
		Balance:  core.NewMoney(decimal.NewFromInt(100), core.EUR),
		Original: core.NewMoney(decimal.NewFromInt(100), core.EUR),
		Type:     core.BalanceDebit,
		Kind:     core.KindChecking,
	}, &acc.Key)
	if err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}
	if snap.AccountKey == nil || *snap.AccountKey != ext {
		t.Fatalf("snapshot should carry the account id, got %v", snap.AccountKey)
	}

	if err := repo.DeleteAccount(ctx, acc.Key); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	entries, err := repo.ListBookEntries(ctx)
	if err != nil || len(entries) != 1 || entries[0].Account != nil {
		t.Fatalf("entry should survive without account: %+v (err=%v)", entries, err)
	}
	after, err := repo.BalanceSnapshot(ctx, snap.ID)
	if err != nil || after.AccountKey != nil {
		t.Fatalf("snapshot should survive without account: %+v (err=%v)", after, err)
	}
	if err := repo.DeleteAccount(ctx, acc.Key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestBalanceSnapshotFXRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	source := "ECB"
	in := core.BalanceSnapshot{
		Date:     core.NewDate(2025, 2, 1),
		Balance:  core.NewMoney(decimal.RequireFromString("92.34567"), core.EUR),
		Original: core.NewMoney(decimal.NewFromInt(100), "USD"),
		FXToEUR: &core.FXRate{
			FromCurrency: "USD", ToCurrency: core.EUR,
			Rate: decimal.RequireFromString("0.923456789"), RateDate: core.NewDate(2025, 1, 31), Source: &source,
		},
		Type: core.BalanceInvestment,
		Kind: core.KindBroker,
	}
	out, err := repo.InsertBalanceSnapshot(ctx, in, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if out.FXToEUR == nil || !out.FXToEUR.Rate.Equal(in.FXToEUR.Rate) || out.FXToEUR.RateDate.String() != "2025-01-31" {
		t.Fatalf("fx not stored: %+v", out.FXToEUR)
	}
	if out.Original.Currency != "USD" || out.Balance.Currency != core.EUR {
		t.Fatalf("currencies not stored: %+v", out)
	}

	upTo, err := repo.SnapshotsUpTo(ctx, core.NewDate(2025, 1, 31))
	if err != nil || len(upTo) != 0 {
		t.Fatalf("snapshot after cut-off must be excluded: %v (err=%v)", upTo, err)
	}
}

func TestReplacePosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	month := core.Month{Year: 2025, Month: time.January}

	debit := core.NewMoney(decimal.NewFromInt(500), core.EUR)
	pos, err := core.ComputeAccountPosition(month, nil, core.Zero(core.EUR), nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	pos.Accounts = []core.AccountBuckets{{AccountID: "1", Debit: &debit}}
	pos.Totals.TotalDebit = debit
	pos.Totals.NetPosition = debit

	if _, err := repo.ReplacePosition(ctx, pos); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	saved, err := repo.ReplacePosition(ctx, pos)
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}

	all, err := repo.ListPositions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != saved.ID {
		t.Fatalf("expected exactly one position for the month, got %+v", all)
	}

	got, err := repo.PositionForMonth(ctx, month)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Accounts) != 1 || got.Accounts[0].Debit == nil || !got.Accounts[0].Debit.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("lines not stored: %+v", got.Accounts)
	}
	if got.Accounts[0].Credit != nil {
		t.Fatalf("absent buckets must stay nil")
	}
	if got.SnapshotDate.String() != "2025-01-01" || !got.Totals.NetPosition.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected position %+v", got)
	}
}
