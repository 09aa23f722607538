package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financeangle/internal/advisor"
	"financeangle/internal/core"
	"financeangle/internal/storage"
)

// NewTransaction is the input of RecordTransaction. Nil fields take defaults.
type NewTransaction struct {
	Amount           *decimal.Decimal
	Category         string
	OccurredAt       *time.Time
	Notes            *string
	SourceType       string
	ReceiptReference *string
}

type NewIngestion struct {
	ExternalID string
	ReceiptURI *string
	Metadata   *string
	Status     string
}

type NewSavings struct {
	Amount     *decimal.Decimal
	CapturedAt *time.Time
	Notes      *string
}

// LedgerService backs the agent-facing API: transactions, receipts, savings
// snapshots, summaries and recommendations.
type LedgerService struct {
	storage *storage.SQLiteRepository
	advisor advisor.Advisor
	loc     *time.Location
	now     func() time.Time
}

func NewLedgerService(repo *storage.SQLiteRepository, adv advisor.Advisor) *LedgerService {
	if adv == nil {
		adv = advisor.NoOp{}
	}
	return &LedgerService{
		storage: repo,
		advisor: adv,
		loc:     time.Local,
		now:     time.Now,
	}
}

// RecordTransaction stores a transaction. Category defaults to OTHER and
// occurredAt to now; without a source type, entries carrying a receipt
// reference are PHOTO and the rest MANUAL.
func (s *LedgerService) RecordTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	if in.Amount == nil {
		return core.Transaction{}, core.NewValidationError("amount", "Amount is required")
	}

	category := core.CategoryOther
	if strings.TrimSpace(in.Category) != "" {
		c, err := core.ParseCategory(in.Category)
		if err != nil {
			return core.Transaction{}, err
		}
		category = c
	}

	source := core.SourceManual
	if strings.TrimSpace(in.SourceType) != "" {
		st, err := core.ParseSourceType(in.SourceType)
		if err != nil {
			return core.Transaction{}, err
		}
		source = st
	} else if in.ReceiptReference != nil {
		source = core.SourcePhoto
	}

	occurred := s.now()
	if in.OccurredAt != nil {
		occurred = *in.OccurredAt
	}

	tx, err := s.storage.CreateTransaction(ctx, core.Transaction{
		Amount:           in.Amount.Round(core.AmountScale),
		Category:         category,
		OccurredAt:       occurred,
		Notes:            in.Notes,
		SourceType:       source,
		ReceiptReference: in.ReceiptReference,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction recorded", "id", tx.ID, "amount", tx.Amount.String(), "category", tx.Category)
	return tx, nil
}

// GenerateSummary totals the period of the given kind containing reference
// (now when nil).
func (s *LedgerService) GenerateSummary(ctx context.Context, period string, reference *time.Time) (core.TransactionSummary, error) {
	p, err := core.ParsePeriod(period)
	if err != nil {
		return core.TransactionSummary{}, err
	}
	ref := s.now()
	if reference != nil {
		ref = *reference
	}
	r, err := core.ResolvePeriod(p, ref, s.loc)
	if err != nil {
		return core.TransactionSummary{}, err
	}

	txs, err := s.storage.TransactionsBetween(ctx, r.Start, r.EndExclusive)
	if err != nil {
		return core.TransactionSummary{}, fmt.Errorf("load transactions: %w", err)
	}
	return core.Summarize(p, r, txs), nil
}

// RecordIngestion upserts a receipt ingestion by external id.
func (s *LedgerService) RecordIngestion(ctx context.Context, in NewIngestion) (core.ReceiptIngestion, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return core.ReceiptIngestion{}, core.NewValidationError("externalId", "External id is required")
	}
	status := core.ReceiptPending
	if strings.TrimSpace(in.Status) != "" {
		st, err := core.ParseReceiptStatus(in.Status)
		if err != nil {
			return core.ReceiptIngestion{}, err
		}
		status = st
	}

	rc, err := s.storage.UpsertReceipt(ctx, core.ReceiptIngestion{
		ExternalID: externalID,
		ReceiptURI: in.ReceiptURI,
		Status:     status,
		Metadata:   in.Metadata,
	})
	if err != nil {
		return core.ReceiptIngestion{}, fmt.Errorf("record ingestion: %w", err)
	}
	return rc, nil
}

func (s *LedgerService) FetchReceipt(ctx context.Context, externalID string) (core.ReceiptIngestion, error) {
	rc, err := s.storage.ReceiptByExternalID(ctx, externalID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ReceiptIngestion{}, core.NewNotFound("Receipt %s not found", externalID)
	}
	return rc, err
}

func (s *LedgerService) RecordSavings(ctx context.Context, in NewSavings) (core.SavingsSnapshot, error) {
	if in.Amount == nil {
		return core.SavingsSnapshot{}, core.NewValidationError("amount", "Amount is required")
	}
	captured := s.now()
	if in.CapturedAt != nil {
		captured = *in.CapturedAt
	}
	ss, err := s.storage.CreateSavingsSnapshot(ctx, core.SavingsSnapshot{
		Amount:     in.Amount.Round(core.AmountScale),
		CapturedAt: captured,
		Notes:      in.Notes,
	})
	if err != nil {
		return core.SavingsSnapshot{}, fmt.Errorf("record savings snapshot: %w", err)
	}
	return ss, nil
}

func (s *LedgerService) LatestSavings(ctx context.Context) (core.SavingsSnapshot, error) {
	ss, err := s.storage.LatestSavingsSnapshot(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return core.SavingsSnapshot{}, core.NewNotFound("No savings snapshot recorded yet")
	}
	return ss, err
}

// Recommendations feeds the current period summary and the latest savings
// amount to the advisor.
func (s *LedgerService) Recommendations(ctx context.Context, period string) (core.Period, []string, error) {
	summary, err := s.GenerateSummary(ctx, period, nil)
	if err != nil {
		return "", nil, err
	}

	in := advisor.Insight{Summary: summary}
	latest, err := s.storage.LatestSavingsSnapshot(ctx)
	switch {
	case err == nil:
		in.LatestSavings = &latest.Amount
	case !errors.Is(err, core.ErrNotFound):
		return "", nil, fmt.Errorf("load latest savings: %w", err)
	}

	lines, err := s.advisor.Recommend(ctx, in)
	if err != nil {
		return "", nil, fmt.Errorf("recommendations: %w", err)
	}
	return summary.Period, lines, nil
}
