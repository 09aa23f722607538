package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// contentGenerator is the slice of *genai.GenerativeModel the advisor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for recommendations and falls back to the NoOp
// report when the call fails or returns nothing.
type Gemini struct {
	client *genai.Client
	model  contentGenerator
	logger *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{client: client, model: client.GenerativeModel(model), logger: logger}, nil
}

func (g *Gemini) Recommend(ctx context.Context, in Insight) ([]string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(in)))
	if err != nil {
		g.logger.WarnContext(ctx, "Gemini request failed, using fallback", "error", err)
		return noOpLines(in), nil
	}

	lines := responseLines(resp)
	if len(lines) == 0 {
		g.logger.WarnContext(ctx, "Gemini returned no recommendations, using fallback")
		return noOpLines(in), nil
	}
	return lines, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func buildPrompt(in Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal finance coach. Spending for the %s from %s to %s totals %s.\n",
		strings.ToLower(string(in.Summary.Period)),
		in.Summary.PeriodStart.Format("2006-01-02"),
		in.Summary.PeriodEnd.Format("2006-01-02"),
		in.Summary.TotalAmount.String())
	for _, ct := range in.Summary.SortedTotals() {
		fmt.Fprintf(&b, "- %s: %s\n", ct.Category, ct.Amount.String())
	}
	if in.LatestSavings != nil {
		fmt.Fprintf(&b, "The latest savings snapshot is %s.\n", in.LatestSavings.String())
	} else {
		b.WriteString("No savings snapshot has been recorded.\n")
	}
	b.WriteString("Give three short, concrete recommendations, one per line, without numbering.")
	return b.String()
}

func responseLines(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var lines []string
	for _, part := range resp.Candidates[0].Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			continue
		}
		for _, line := range strings.Split(string(text), "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
