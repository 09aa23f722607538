package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Uncategorised is the bucket used for book entries without a category.
const Uncategorised = "Uncategorised"

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// CategoryTotal is the amount aggregated for one category.
type CategoryTotal struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// TransactionSummary aggregates the ledger over one period. TotalAmount is
// always the sum of TotalsByCategory, and only categories with at least one
// transaction appear.
type TransactionSummary struct {
	Period           Period
	PeriodStart      time.Time
	PeriodEnd        time.Time
	TotalAmount      decimal.Decimal
	TotalsByCategory map[Category]decimal.Decimal
}

// Summarize totals the transactions that fall inside r.
func Summarize(p Period, r PeriodRange, txs []Transaction) TransactionSummary {
	s := TransactionSummary{
		Period:           p,
		PeriodStart:      r.Start,
		PeriodEnd:        r.End,
		TotalAmount:      decimal.Zero,
		TotalsByCategory: make(map[Category]decimal.Decimal),
	}
	for _, tx := range txs {
		if !r.Contains(tx.OccurredAt) {
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(tx.Amount)
		s.TotalsByCategory[tx.Category] = s.TotalsByCategory[tx.Category].Add(tx.Amount)
	}
	return s
}

// SortedTotals returns the category totals, largest amount first.
func (s TransactionSummary) SortedTotals() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(s.TotalsByCategory))
	for c, a := range s.TotalsByCategory {
		out = append(out, CategoryTotal{Category: c, Amount: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SpendingPoint is one month+category cell of the spending summary.
type SpendingPoint struct {
	Month    Month           `json:"month"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// MonthlyCategorySummary groups book entries by month and category, ordered
// by month and then category name.
func MonthlyCategorySummary(entries []BookEntry) []SpendingPoint {
	type key struct {
		month    Month
		category string
	}
	totals := make(map[key]decimal.Decimal)
	for _, e := range entries {
		cat := Uncategorised
		if e.Category != nil && strings.TrimSpace(*e.Category) != "" {
			cat = *e.Category
		}
		k := key{month: MonthOf(e.Date.Time), category: cat}
		totals[k] = totals[k].Add(e.Amount)
	}

	out := make([]SpendingPoint, 0, len(totals))
	for k, v := range totals {
		out = append(out, SpendingPoint{Month: k.month, Category: k.category, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MatchesAny reports whether description contains any of the patterns.
func MatchesAny(description string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(description, p) {
			return true
		}
	}
	return false
}
