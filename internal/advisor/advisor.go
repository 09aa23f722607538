// Package advisor turns a period summary into short spending recommendations.
package advisor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"financeangle/internal/core"
)

// Insight is what an Advisor gets to reason about.
type Insight struct {
	Summary       core.TransactionSummary
	LatestSavings *decimal.Decimal
}

// Advisor produces recommendation lines for an Insight.
type Advisor interface {
	Recommend(ctx context.Context, in Insight) ([]string, error)
}

// NoOp answers with a fixed status report. It is used when no model is
// configured and as the fallback when the model fails.
type NoOp struct{}

func (NoOp) Recommend(_ context.Context, in Insight) ([]string, error) {
	return noOpLines(in), nil
}

func noOpLines(in Insight) []string {
	savings := "Capture a savings snapshot to start tracking your safety buffer."
	if in.LatestSavings != nil {
		savings = fmt.Sprintf("Latest savings snapshot: %s.", in.LatestSavings.String())
	}
	return []string{
		"AI integration not configured. Add your Gemini credentials to unlock personalized guidance.",
		fmt.Sprintf("Recent period total: %s across %d categories.",
			in.Summary.TotalAmount.String(), len(in.Summary.TotalsByCategory)),
		savings,
	}
}
