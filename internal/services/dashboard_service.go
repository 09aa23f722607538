package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financeangle/internal/amqp"
	"financeangle/internal/core"
	"financeangle/internal/storage"
)

// PositionPublisher announces that a month's account position is stale.
type PositionPublisher interface {
	PublishPositionRecompute(ctx context.Context, month core.Month, reason string) error
}

type AccountInput struct {
	AccountID     *string
	Name          string
	AccountNumber *string
	Provider      *string
	Currency      string
}

type EntryInput struct {
	Date          core.Date
	Description   string
	Category      *string
	Amount        *decimal.Decimal
	AccountNumber *string
}

type SnapshotInput struct {
	Date     core.Date
	Original core.MoneyAmount
	FXToEUR  *core.FXRate
	Type     string
	Kind     string
	Account  *string
	Note     *string
}

// PositionInput drives a monthly position computation. Month defaults to the
// current month and the savings budget to 0 EUR.
type PositionInput struct {
	Month         *core.Month
	SavingsBudget *core.MoneyAmount
	SharedDebits  map[string]core.MoneyAmount
}

// DashboardService orchestrates dashboard records across SQLite and AMQP.
type DashboardService struct {
	storage         *storage.SQLiteRepository
	publisher       PositionPublisher
	excludePatterns []string
	onWrite         []func()
	now             func() time.Time
}

// NewDashboardService wires the service. publisher may be nil when messaging
// is disabled.
func NewDashboardService(repo *storage.SQLiteRepository, publisher PositionPublisher, excludePatterns []string) *DashboardService {
	return &DashboardService{
		storage:         repo,
		publisher:       publisher,
		excludePatterns: excludePatterns,
		now:             time.Now,
	}
}

// OnWrite registers a callback run after every successful write.
func (s *DashboardService) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *DashboardService) changed() {
	for _, fn := range s.onWrite {
		fn()
	}
}

// AddAccount creates an account or updates the one it matches. A given
// accountId is looked up as external id, then numeric id, then name;
// otherwise the name alone is used.
func (s *DashboardService) AddAccount(ctx context.Context, in AccountInput) (core.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Account{}, core.NewValidationError("name", "Account name is required")
	}
	currency, err := accountCurrency(in.Currency)
	if err != nil {
		return core.Account{}, err
	}

	var existing core.Account
	if in.AccountID != nil && strings.TrimSpace(*in.AccountID) != "" {
		existing, err = s.resolveAccount(ctx, strings.TrimSpace(*in.AccountID), name)
	} else {
		existing, err = s.storage.AccountByName(ctx, name)
	}
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Account{}, err
	}

	ext := externalID(in.AccountID)
	var out core.Account
	if err == nil {
		existing.Name = name
		existing.Provider = core.StringPtr(deref(in.Provider))
		existing.Currency = currency
		existing.AccountNumber = core.StringPtr(deref(in.AccountNumber))
		if ext != nil && *ext != strconv.FormatInt(existing.Key, 10) {
			existing.ExternalID = ext
		}
		out, err = s.storage.UpdateAccount(ctx, existing)
	} else {
		out, err = s.storage.InsertAccount(ctx, core.Account{
			ExternalID:    ext,
			Name:          name,
			AccountNumber: core.StringPtr(deref(in.AccountNumber)),
			Provider:      core.StringPtr(deref(in.Provider)),
			Currency:      currency,
		})
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	s.changed()
	return out, nil
}

// UpdateAccount overwrites the account identified by id.
func (s *DashboardService) UpdateAccount(ctx context.Context, id string, in AccountInput) (core.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Account{}, core.NewValidationError("name", "Account name is required")
	}
	currency, err := accountCurrency(in.Currency)
	if err != nil {
		return core.Account{}, err
	}
	acc, err := s.resolveAccount(ctx, id, id)
	if err != nil {
		return core.Account{}, err
	}

	acc.Name = name
	acc.AccountNumber = core.StringPtr(deref(in.AccountNumber))
	acc.Provider = core.StringPtr(deref(in.Provider))
	acc.Currency = currency
	out, err := s.storage.UpdateAccount(ctx, acc)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	s.changed()
	return out, nil
}

// DeleteAccount removes the account identified by id and returns it. Entries,
// snapshots and position lines that referenced it are kept, unlinked.
func (s *DashboardService) DeleteAccount(ctx context.Context, id string) (core.Account, error) {
	acc, err := s.resolveAccount(ctx, id, id)
	if err != nil {
		return core.Account{}, err
	}
	if err := s.storage.DeleteAccount(ctx, acc.Key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Account{}, core.NewNotFound("Account not found")
		}
		return core.Account{}, fmt.Errorf("delete account: %w", err)
	}
	s.changed()
	return acc, nil
}

func (s *DashboardService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.storage.ListAccounts(ctx)
}

// resolveAccount looks an account up by external id, numeric id and name.
func (s *DashboardService) resolveAccount(ctx context.Context, id, name string) (core.Account, error) {
	acc, err := s.storage.AccountByExternalID(ctx, id)
	if !errors.Is(err, core.ErrNotFound) {
		return acc, err
	}
	if key, perr := strconv.ParseInt(id, 10, 64); perr == nil {
		acc, err = s.storage.AccountByKey(ctx, key)
		if !errors.Is(err, core.ErrNotFound) {
			return acc, err
		}
	}
	acc, err = s.storage.AccountByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, core.NewNotFound("Account not found")
	}
	return acc, err
}

// AddEntry stores a dashboard transaction, creating the account named by its
// account number when it does not exist yet.
func (s *DashboardService) AddEntry(ctx context.Context, in EntryInput) (core.BookEntry, error) {
	if in.Amount == nil {
		return core.BookEntry{}, core.NewValidationError("amount", "Amount is required")
	}
	e := core.BookEntry{
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		Category:    core.StringPtr(deref(in.Category)),
		Amount:      *in.Amount,
		Origin:      core.OriginManual,
	}
	if err := e.Validate(); err != nil {
		return core.BookEntry{}, err
	}
	out, err := s.insertEntry(ctx, e, in.AccountNumber)
	if err != nil {
		return core.BookEntry{}, err
	}
	s.changed()
	return out, nil
}

func (s *DashboardService) insertEntry(ctx context.Context, e core.BookEntry, accountNumber *string) (core.BookEntry, error) {
	key, err := s.accountByNumber(ctx, accountNumber)
	if err != nil {
		return core.BookEntry{}, err
	}
	out, err := s.storage.InsertBookEntry(ctx, e, key)
	if err != nil {
		return core.BookEntry{}, fmt.Errorf("add entry: %w", err)
	}
	return out, nil
}

func (s *DashboardService) accountByNumber(ctx context.Context, number *string) (*int64, error) {
	n := core.StringPtr(deref(number))
	if n == nil {
		return nil, nil
	}
	acc, err := s.storage.AccountByNumber(ctx, *n)
	if errors.Is(err, core.ErrNotFound) {
		acc, err = s.storage.InsertAccount(ctx, core.Account{Name: *n, AccountNumber: n, Currency: core.EUR})
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %s: %w", *n, err)
	}
	return &acc.Key, nil
}

func (s *DashboardService) accountByName(ctx context.Context, name *string) (*int64, error) {
	n := core.StringPtr(deref(name))
	if n == nil {
		return nil, nil
	}
	acc, err := s.storage.AccountByName(ctx, *n)
	if errors.Is(err, core.ErrNotFound) {
		acc, err = s.storage.InsertAccount(ctx, core.Account{Name: *n, Currency: core.EUR})
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %s: %w", *n, err)
	}
	return &acc.Key, nil
}

func (s *DashboardService) ListEntries(ctx context.Context) ([]core.BookEntry, error) {
	return s.storage.ListBookEntries(ctx)
}

// ResetEntries wipes every book entry. confirm must be true.
func (s *DashboardService) ResetEntries(ctx context.Context, confirm bool) (int64, error) {
	if !confirm {
		return 0, core.NewValidationError("confirm", "Reset requires confirm=true")
	}
	n, err := s.storage.DeleteAllBookEntries(ctx)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Book entries reset", "deleted", n)
	s.changed()
	return n, nil
}

// AddSnapshot normalizes the balance to EUR, stores it and asks for the
// snapshot's month to be recomputed.
func (s *DashboardService) AddSnapshot(ctx context.Context, in SnapshotInput) (core.BalanceSnapshot, error) {
	if in.Date.IsZero() {
		return core.BalanceSnapshot{}, core.NewValidationError("date", "date is required")
	}
	original := core.NewMoney(in.Original.Amount, in.Original.Currency)
	if err := original.Validate(); err != nil {
		return core.BalanceSnapshot{}, err
	}
	typ := core.BalanceDebit
	if strings.TrimSpace(in.Type) != "" {
		t, err := core.ParseBalanceType(in.Type)
		if err != nil {
			return core.BalanceSnapshot{}, err
		}
		typ = t
	}
	kind := core.KindChecking
	if strings.TrimSpace(in.Kind) != "" {
		k, err := core.ParseAccountKind(in.Kind)
		if err != nil {
			return core.BalanceSnapshot{}, err
		}
		kind = k
	}

	balance, err := core.BalanceInEUR(original, in.FXToEUR)
	if err != nil {
		return core.BalanceSnapshot{}, err
	}
	key, err := s.accountByName(ctx, in.Account)
	if err != nil {
		return core.BalanceSnapshot{}, err
	}

	snap, err := s.storage.InsertBalanceSnapshot(ctx, core.BalanceSnapshot{
		Date:     in.Date,
		Balance:  core.NewMoney(balance, core.EUR),
		Original: original,
		FXToEUR:  in.FXToEUR,
		Type:     typ,
		Kind:     kind,
		Note:     core.StringPtr(deref(in.Note)),
	}, key)
	if err != nil {
		return core.BalanceSnapshot{}, fmt.Errorf("add snapshot: %w", err)
	}

	s.publishRecompute(ctx, core.MonthOf(snap.Date.Time), amqp.ReasonSnapshotCreated)
	s.changed()
	return snap, nil
}

// DeleteSnapshot removes the snapshot with the given id and returns it.
func (s *DashboardService) DeleteSnapshot(ctx context.Context, rawID string) (core.BalanceSnapshot, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return core.BalanceSnapshot{}, core.NewValidationError("id", "Invalid snapshot id")
	}
	snap, err := s.storage.BalanceSnapshot(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.BalanceSnapshot{}, core.NewNotFound("Snapshot not found")
	}
	if err != nil {
		return core.BalanceSnapshot{}, err
	}
	if err := s.storage.DeleteBalanceSnapshot(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.BalanceSnapshot{}, core.NewNotFound("Snapshot not found")
		}
		return core.BalanceSnapshot{}, fmt.Errorf("delete snapshot: %w", err)
	}

	s.publishRecompute(ctx, core.MonthOf(snap.Date.Time), amqp.ReasonSnapshotDeleted)
	s.changed()
	return snap, nil
}

func (s *DashboardService) ListSnapshots(ctx context.Context) ([]core.BalanceSnapshot, error) {
	return s.storage.ListBalanceSnapshots(ctx)
}

// RecomputeMonthlyPosition computes and stores the position of a month,
// replacing any position already stored for it.
func (s *DashboardService) RecomputeMonthlyPosition(ctx context.Context, in PositionInput) (core.AccountPosition, error) {
	month := core.MonthOf(s.now())
	if in.Month != nil {
		month = *in.Month
	}
	savings := core.Zero(core.EUR)
	if in.SavingsBudget != nil {
		savings = core.NewMoney(in.SavingsBudget.Amount, in.SavingsBudget.Currency)
		if !savings.IsEUR() {
			return core.AccountPosition{}, core.NewValidationError("savingsBudget", "savingsBudget must be in EUR")
		}
	}
	shared := make(map[string]core.MoneyAmount, len(in.SharedDebits))
	for id, m := range in.SharedDebits {
		m = core.NewMoney(m.Amount, m.Currency)
		if !m.IsEUR() {
			return core.AccountPosition{}, core.NewValidationError("sharedDebits", "shared debit for %s must be in EUR", id)
		}
		shared[id] = m
	}
	return s.storePosition(ctx, month, savings, shared)
}

// RecomputeStored refreshes a month's position from the current snapshots,
// keeping the savings budget and shared debits already stored for it.
func (s *DashboardService) RecomputeStored(ctx context.Context, month core.Month) (core.AccountPosition, error) {
	savings := core.Zero(core.EUR)
	shared := make(map[string]core.MoneyAmount)

	stored, err := s.storage.PositionForMonth(ctx, month)
	switch {
	case err == nil:
		savings = stored.SavingsBudget
		for _, a := range stored.Accounts {
			if a.SharedDebit != nil {
				shared[a.AccountID] = *a.SharedDebit
			}
		}
	case !errors.Is(err, core.ErrNotFound):
		return core.AccountPosition{}, fmt.Errorf("load stored position: %w", err)
	}
	return s.storePosition(ctx, month, savings, shared)
}

func (s *DashboardService) storePosition(ctx context.Context, month core.Month, savings core.MoneyAmount, shared map[string]core.MoneyAmount) (core.AccountPosition, error) {
	snapshots, err := s.storage.SnapshotsUpTo(ctx, month.LastDay())
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("load snapshots: %w", err)
	}
	pos, err := core.ComputeAccountPosition(month, snapshots, savings, shared)
	if err != nil {
		return core.AccountPosition{}, core.NewValidationError("position", "compute position: %v", err)
	}
	out, err := s.storage.ReplacePosition(ctx, pos)
	if err != nil {
		return core.AccountPosition{}, fmt.Errorf("store position: %w", err)
	}
	slog.InfoContext(ctx, "Account position computed",
		"month", month.String(), "net_position", out.Totals.NetPosition.String())
	s.changed()
	return out, nil
}

func (s *DashboardService) ListPositions(ctx context.Context) ([]core.AccountPosition, error) {
	return s.storage.ListPositions(ctx)
}

// SpendingSummary groups book entries by month and category. With monthsBack
// the window runs from the first day of the month monthsBack-1 months ago to
// today; without it all entries count.
func (s *DashboardService) SpendingSummary(ctx context.Context, monthsBack *int) ([]core.SpendingPoint, error) {
	var (
		entries []core.BookEntry
		err     error
	)
	if monthsBack != nil {
		if *monthsBack <= 0 {
			return nil, core.NewValidationError("monthsBack", "monthsBack must be positive")
		}
		now := s.now()
		from := core.MonthOf(now).AddMonths(-(*monthsBack - 1)).FirstDay()
		to := core.NewDate(now.Year(), int(now.Month()), now.Day())
		entries, err = s.storage.BookEntriesBetween(ctx, from, to)
	} else {
		entries, err = s.storage.ListBookEntries(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	kept := entries[:0]
	for _, e := range entries {
		if !core.MatchesAny(e.Description, s.excludePatterns) {
			kept = append(kept, e)
		}
	}
	return core.MonthlyCategorySummary(kept), nil
}

func (s *DashboardService) publishRecompute(ctx context.Context, month core.Month, reason string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping position recompute", "month", month.String())
		return
	}
	if err := s.publisher.PublishPositionRecompute(ctx, month, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish position recompute", "month", month.String(), "error", err)
	}
}

// Close closes storage and the publisher when it holds a connection.
func (s *DashboardService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close dashboard service: %w", errors.Join(errs...))
	}
	return nil
}

func accountCurrency(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return core.EUR, nil
	}
	m := core.Zero(raw)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m.Currency, nil
}

func externalID(id *string) *string {
	return core.StringPtr(deref(id))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
