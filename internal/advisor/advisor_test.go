package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeangle/internal/core"
)

func sampleInsight(savings *decimal.Decimal) Insight {
	return Insight{
		Summary: core.TransactionSummary{
			Period:      core.PeriodMonth,
			PeriodStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
			TotalAmount: decimal.RequireFromString("120.50"),
			TotalsByCategory: map[core.Category]decimal.Decimal{
				core.CategoryFood:      decimal.RequireFromString("80.50"),
				core.CategoryTransport: decimal.NewFromInt(40),
			},
		},
		LatestSavings: savings,
	}
}

func TestNoOpRecommend(t *testing.T) {
	lines, err := NoOp{}.Recommend(context.Background(), sampleInsight(nil))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "Recent period total: 120.5 across 2 categories.", lines[1])
	assert.Equal(t, "Capture a savings snapshot to start tracking your safety buffer.", lines[2])

	savings := decimal.NewFromInt(5000)
	lines, err = NoOp{}.Recommend(context.Background(), sampleInsight(&savings))
	require.NoError(t, err)
	assert.Equal(t, "Latest savings snapshot: 5000.", lines[2])
}

type fakeModel struct {
	resp   *genai.GenerateContentResponse
	err    error
	prompt string
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if txt, ok := parts[0].(genai.Text); ok {
			f.prompt = string(txt)
		}
	}
	return f.resp, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGeminiRecommendSplitsLines(t *testing.T) {
	model := &fakeModel{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("- Cook at home twice a week\n\n* Cap taxi rides\nMove 50 EUR to savings")}},
	}}}}
	g := &Gemini{model: model, logger: quietLogger()}

	lines, err := g.Recommend(context.Background(), sampleInsight(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Cook at home twice a week", "Cap taxi rides", "Move 50 EUR to savings"}, lines)
	assert.Contains(t, model.prompt, "- FOOD: 80.5")
	assert.Contains(t, model.prompt, "No savings snapshot has been recorded.")
}

func TestGeminiFallsBackOnError(t *testing.T) {
	g := &Gemini{model: &fakeModel{err: errors.New("quota exceeded")}, logger: quietLogger()}

	lines, err := g.Recommend(context.Background(), sampleInsight(nil))
	require.NoError(t, err)
	assert.Equal(t, noOpLines(sampleInsight(nil)), lines)
}

func TestGeminiFallsBackOnEmptyAnswer(t *testing.T) {
	g := &Gemini{model: &fakeModel{resp: &genai.GenerateContentResponse{}}, logger: quietLogger()}

	lines, err := g.Recommend(context.Background(), sampleInsight(nil))
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-1.5-flash", nil)
	assert.Error(t, err)
}
