package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financeangle/internal/core"
	"financeangle/internal/importer"
	"financeangle/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finance.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type recordedPublish struct {
	month  core.Month
	reason string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []recordedPublish
	err   error
}

func (f *fakePublisher) PublishPositionRecompute(_ context.Context, month core.Month, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedPublish{month: month, reason: reason})
	return f.err
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordTransactionDefaults(t *testing.T) {
	svc := NewLedgerService(newTestRepo(t), nil)
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	svc.now = fixedNow(now)
	ctx := context.Background()

	tx, err := svc.RecordTransaction(ctx, NewTransaction{Amount: dec("42.50")})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if tx.Category != core.CategoryOther || tx.SourceType != core.SourceManual {
		t.Errorf("defaults = %s/%s, want OTHER/MANUAL", tx.Category, tx.SourceType)
	}
	if !tx.OccurredAt.Equal(now) {
		t.Errorf("occurredAt = %v, want %v", tx.OccurredAt, now)
	}

	tx, err = svc.RecordTransaction(ctx, NewTransaction{Amount: dec("5"), ReceiptReference: str("r-1")})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if tx.SourceType != core.SourcePhoto {
		t.Errorf("sourceType with receipt = %s, want PHOTO", tx.SourceType)
	}

	_, err = svc.RecordTransaction(ctx, NewTransaction{})
	if !core.IsValidation(err) || err.Error() != "Amount is required" {
		t.Errorf("missing amount error = %v", err)
	}
	_, err = svc.RecordTransaction(ctx, NewTransaction{Amount: dec("1"), Category: "GROCERIES"})
	if !core.IsValidation(err) {
		t.Errorf("unknown category error = %v", err)
	}
}

func TestGenerateSummary(t *testing.T) {
	svc := NewLedgerService(newTestRepo(t), nil)
	svc.loc = time.UTC
	svc.now = fixedNow(time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, in := range []NewTransaction{
		{Amount: dec("10.00"), Category: "FOOD", OccurredAt: timePtr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))},
		{Amount: dec("2.50"), Category: "FOOD", OccurredAt: timePtr(time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC))},
		{Amount: dec("30"), Category: "TRANSPORT", OccurredAt: timePtr(time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC))},
		{Amount: dec("99"), Category: "FOOD", OccurredAt: timePtr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
	} {
		if _, err := svc.RecordTransaction(ctx, in); err != nil {
			t.Fatalf("RecordTransaction: %v", err)
		}
	}

	s, err := svc.GenerateSummary(ctx, "", nil)
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if got := s.TotalAmount.String(); got != "42.5" {
		t.Errorf("total = %s, want 42.5", got)
	}
	if len(s.TotalsByCategory) != 2 {
		t.Errorf("categories = %v, want FOOD and TRANSPORT", s.TotalsByCategory)
	}
	totals := s.SortedTotals()
	if totals[0].Category != core.CategoryTransport {
		t.Errorf("largest category = %s, want TRANSPORT", totals[0].Category)
	}
	if want := time.Date(2025, 2, 28, 23, 59, 59, 999999999, time.UTC); !s.PeriodEnd.Equal(want) {
		t.Errorf("periodEnd = %v, want %v", s.PeriodEnd, want)
	}

	if _, err := svc.GenerateSummary(ctx, "DECADE", nil); !core.IsValidation(err) {
		t.Errorf("invalid period error = %v", err)
	}
}

func TestReceiptsAndSavings(t *testing.T) {
	svc := NewLedgerService(newTestRepo(t), nil)
	ctx := context.Background()

	rc, err := svc.RecordIngestion(ctx, NewIngestion{ExternalID: " r-1 "})
	if err != nil {
		t.Fatalf("RecordIngestion: %v", err)
	}
	if rc.Status != core.ReceiptPending || rc.ExternalID != "r-1" {
		t.Errorf("ingestion = %+v", rc)
	}
	if _, err := svc.RecordIngestion(ctx, NewIngestion{ExternalID: "r-1", Status: "completed"}); err != nil {
		t.Fatalf("update ingestion: %v", err)
	}
	got, err := svc.FetchReceipt(ctx, "r-1")
	if err != nil || got.Status != core.ReceiptCompleted || got.ID != rc.ID {
		t.Errorf("FetchReceipt = %+v, %v", got, err)
	}

	_, err = svc.FetchReceipt(ctx, "missing")
	if !errors.Is(err, core.ErrNotFound) || err.Error() != "Receipt missing not found" {
		t.Errorf("missing receipt error = %v", err)
	}
	if _, err := svc.RecordIngestion(ctx, NewIngestion{}); !core.IsValidation(err) {
		t.Errorf("blank external id error = %v", err)
	}

	if _, err := svc.LatestSavings(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LatestSavings on empty db = %v", err)
	}
	_, lines, err := svc.Recommendations(ctx, "MONTH")
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "Capture a savings snapshot") {
		t.Errorf("recommendations without savings = %v", lines)
	}

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.RecordSavings(ctx, NewSavings{Amount: dec("900"), CapturedAt: &newer}); err != nil {
		t.Fatalf("RecordSavings: %v", err)
	}
	if _, err := svc.RecordSavings(ctx, NewSavings{Amount: dec("100"), CapturedAt: &older}); err != nil {
		t.Fatalf("RecordSavings: %v", err)
	}
	latest, err := svc.LatestSavings(ctx)
	if err != nil || latest.Amount.String() != "900" {
		t.Errorf("LatestSavings = %+v, %v", latest, err)
	}
	_, lines, _ = svc.Recommendations(ctx, "MONTH")
	if lines[2] != "Latest savings snapshot: 900." {
		t.Errorf("savings line = %q", lines[2])
	}
}

func TestAccountUpsertAndDelete(t *testing.T) {
	svc := NewDashboardService(newTestRepo(t), nil, nil)
	ctx := context.Background()
	writes := 0
	svc.OnWrite(func() { writes++ })

	created, err := svc.AddAccount(ctx, AccountInput{AccountID: str("ing-1"), Name: " Girokonto ", Currency: "eur"})
	if err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if created.AccountID != "ing-1" || created.Name != "Girokonto" || created.Currency != "EUR" {
		t.Errorf("created = %+v", created)
	}

	updated, err := svc.AddAccount(ctx, AccountInput{AccountID: str("ing-1"), Name: "Giro", Provider: str("ING")})
	if err != nil {
		t.Fatalf("AddAccount upsert: %v", err)
	}
	if updated.Key != created.Key || updated.Name != "Giro" || *updated.Provider != "ING" {
		t.Errorf("upsert = %+v", updated)
	}

	byName, err := svc.AddAccount(ctx, AccountInput{Name: "Giro", AccountNumber: str("DE01")})
	if err != nil || byName.Key != created.Key {
		t.Errorf("upsert by name = %+v, %v", byName, err)
	}

	if _, err := svc.UpdateAccount(ctx, "nope", AccountInput{Name: "x"}); err == nil || err.Error() != "Account not found" {
		t.Errorf("update unknown account error = %v", err)
	}
	if _, err := svc.AddAccount(ctx, AccountInput{Name: "  "}); !core.IsValidation(err) {
		t.Errorf("blank name error = %v", err)
	}

	if _, err := svc.AddEntry(ctx, EntryInput{
		Date: core.NewDate(2025, 1, 5), Description: "Rent", Amount: dec("-800"), AccountNumber: str("DE01"),
	}); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	deleted, err := svc.DeleteAccount(ctx, "Giro")
	if err != nil || deleted.Key != created.Key {
		t.Fatalf("DeleteAccount = %+v, %v", deleted, err)
	}
	entries, _ := svc.ListEntries(ctx)
	if len(entries) != 1 || entries[0].Account != nil {
		t.Errorf("entry should survive unlinked: %+v", entries)
	}
	if writes != 5 {
		t.Errorf("write hooks = %d, want 5", writes)
	}
}

func TestAddEntryCreatesAccountByNumber(t *testing.T) {
	svc := NewDashboardService(newTestRepo(t), nil, nil)
	ctx := context.Background()

	e, err := svc.AddEntry(ctx, EntryInput{
		Date: core.NewDate(2025, 1, 5), Description: "Coffee", Category: str(" "), Amount: dec("-3.20"), AccountNumber: str("DE99"),
	})
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if e.Origin != core.OriginManual || e.Category != nil {
		t.Errorf("entry = %+v", e)
	}
	accounts, _ := svc.ListAccounts(ctx)
	if len(accounts) != 1 || accounts[0].Name != "DE99" {
		t.Errorf("accounts = %+v", accounts)
	}

	if _, err := svc.AddEntry(ctx, EntryInput{Date: core.NewDate(2025, 1, 5), Description: "x"}); !core.IsValidation(err) {
		t.Errorf("missing amount error = %v", err)
	}

	if _, err := svc.ResetEntries(ctx, false); !core.IsValidation(err) {
		t.Errorf("reset without confirm = %v", err)
	}
	n, err := svc.ResetEntries(ctx, true)
	if err != nil || n != 1 {
		t.Errorf("ResetEntries = %d, %v", n, err)
	}
}

func TestSnapshotsPublishRecompute(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewDashboardService(newTestRepo(t), pub, nil)
	ctx := context.Background()

	snap, err := svc.AddSnapshot(ctx, SnapshotInput{
		Date:     core.NewDate(2025, 2, 20),
		Original: core.NewMoney(decimal.RequireFromString("100"), "usd"),
		FXToEUR:  &core.FXRate{FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.923456")},
		Account:  str("Broker"),
	})
	if err != nil {
		t.Fatalf("AddSnapshot should succeed when publishing fails: %v", err)
	}
	if snap.Balance.Amount.String() != "92.3456" || snap.Type != core.BalanceDebit || snap.Kind != core.KindChecking {
		t.Errorf("snapshot = %+v", snap)
	}

	_, err = svc.AddSnapshot(ctx, SnapshotInput{Date: core.NewDate(2025, 2, 20), Original: core.NewMoney(decimal.NewFromInt(1), "CHF")})
	if !errors.Is(err, core.ErrFXRateRequired) && !core.IsValidation(err) {
		t.Errorf("missing FX error = %v", err)
	}

	if _, err := svc.DeleteSnapshot(ctx, "abc"); err == nil || err.Error() != "Invalid snapshot id" {
		t.Errorf("invalid id error = %v", err)
	}
	if _, err := svc.DeleteSnapshot(ctx, "999"); !errors.Is(err, core.ErrNotFound) || err.Error() != "Snapshot not found" {
		t.Errorf("missing snapshot error = %v", err)
	}
	deleted, err := svc.DeleteSnapshot(ctx, "1")
	if err != nil || deleted.ID != snap.ID {
		t.Fatalf("DeleteSnapshot = %+v, %v", deleted, err)
	}

	want := []recordedPublish{
		{month: core.Month{Year: 2025, Month: time.February}, reason: "snapshot_created"},
		{month: core.Month{Year: 2025, Month: time.February}, reason: "snapshot_deleted"},
	}
	if len(pub.calls) != len(want) {
		t.Fatalf("publishes = %+v", pub.calls)
	}
	for i := range want {
		if pub.calls[i] != want[i] {
			t.Errorf("publish %d = %+v, want %+v", i, pub.calls[i], want[i])
		}
	}
}

func TestMonthlyPosition(t *testing.T) {
	svc := NewDashboardService(newTestRepo(t), nil, nil)
	ctx := context.Background()
	march := core.Month{Year: 2025, Month: time.March}

	add := func(date core.Date, amount, typ, account string) {
		t.Helper()
		_, err := svc.AddSnapshot(ctx, SnapshotInput{
			Date: date, Original: core.NewMoney(decimal.RequireFromString(amount), "EUR"), Type: typ, Account: str(account),
		})
		if err != nil {
			t.Fatalf("AddSnapshot: %v", err)
		}
	}
	add(core.NewDate(2025, 2, 1), "1000", "DEBIT", "Giro")
	add(core.NewDate(2025, 3, 10), "1500", "DEBIT", "Giro")
	add(core.NewDate(2025, 3, 12), "300", "CREDIT", "Card")
	add(core.NewDate(2025, 4, 1), "9999", "DEBIT", "Giro")

	pos, err := svc.RecomputeMonthlyPosition(ctx, PositionInput{
		Month:         &march,
		SavingsBudget: &core.MoneyAmount{Amount: decimal.NewFromInt(200), Currency: "EUR"},
		SharedDebits:  map[string]core.MoneyAmount{"partner": core.NewMoney(decimal.NewFromInt(50), "EUR")},
	})
	if err != nil {
		t.Fatalf("RecomputeMonthlyPosition: %v", err)
	}
	// 1500 + 50 + 200 - 300
	if got := pos.Totals.NetPosition.Amount.String(); got != "1450" {
		t.Errorf("net position = %s, want 1450", got)
	}

	if _, err := svc.RecomputeMonthlyPosition(ctx, PositionInput{
		Month: &march, SavingsBudget: &core.MoneyAmount{Amount: decimal.NewFromInt(1), Currency: "USD"},
	}); !core.IsValidation(err) {
		t.Errorf("non-EUR savings error = %v", err)
	}

	add(core.NewDate(2025, 3, 20), "100", "LOAN", "Car")
	pos, err = svc.RecomputeStored(ctx, march)
	if err != nil {
		t.Fatalf("RecomputeStored: %v", err)
	}
	if got := pos.Totals.NetPosition.Amount.String(); got != "1350" {
		t.Errorf("recomputed net position = %s, want 1350 (budget and shared debit kept)", got)
	}

	positions, err := svc.ListPositions(ctx)
	if err != nil || len(positions) != 1 {
		t.Errorf("ListPositions = %d, %v", len(positions), err)
	}
}

func TestSpendingSummary(t *testing.T) {
	svc := NewDashboardService(newTestRepo(t), nil, []string{"Umbuchung"})
	svc.now = fixedNow(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, in := range []EntryInput{
		{Date: core.NewDate(2024, 12, 30), Description: "old", Amount: dec("-1")},
		{Date: core.NewDate(2025, 2, 3), Description: "REWE", Category: str("Food"), Amount: dec("-20")},
		{Date: core.NewDate(2025, 2, 9), Description: "Umbuchung Sparkonto", Category: str("Food"), Amount: dec("-500")},
		{Date: core.NewDate(2025, 3, 1), Description: "Kiosk", Amount: dec("-4")},
	} {
		if _, err := svc.AddEntry(ctx, in); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}

	months := 2
	points, err := svc.SpendingSummary(ctx, &months)
	if err != nil {
		t.Fatalf("SpendingSummary: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %+v", points)
	}
	if points[0].Category != "Food" || points[0].Total.String() != "-20" {
		t.Errorf("february = %+v", points[0])
	}
	if points[1].Category != core.Uncategorised {
		t.Errorf("march category = %s", points[1].Category)
	}

	all, err := svc.SpendingSummary(ctx, nil)
	if err != nil || len(all) != 3 {
		t.Errorf("all-time summary = %+v, %v", all, err)
	}

	zero := 0
	if _, err := svc.SpendingSummary(ctx, &zero); err == nil || err.Error() != "monthsBack must be positive" {
		t.Errorf("monthsBack=0 error = %v", err)
	}
}

func TestImportFinanzguru(t *testing.T) {
	svc := NewDashboardService(newTestRepo(t), nil, nil)
	ctx := context.Background()
	csv := "Buchungstag;Konto;Kontostand;Betrag;Verwendungszweck;Kategorie\n" +
		"03.02.2025;DE001;1.000,00;-12,30;REWE;Lebensmittel\n" +
		";DE001;;-1,00;kein Datum;\n" +
		"04.02.2025;DE001;abc;-2,00;bad state;\n" +
		"05.02.2025;DE002;;-7,50;;\n"

	opts := importer.DefaultOptions()
	opts.DecimalComma = true
	res, err := svc.ImportFinanzguru(ctx, strings.NewReader(csv), opts)
	if err != nil {
		t.Fatalf("ImportFinanzguru: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 2 || res.Errors[0] != "Row 2: Missing date" || !strings.HasPrefix(res.Errors[1], "Row 3: ") {
		t.Errorf("errors = %q", res.Errors)
	}

	accounts, _ := svc.ListAccounts(ctx)
	if len(accounts) != 2 {
		t.Errorf("accounts created = %+v", accounts)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
