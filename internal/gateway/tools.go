package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tools holds the handlers for the built-in Finance Angle tools.
type Tools struct {
	backend *Backend
	now     func() time.Time
}

func NewTools(backend *Backend) *Tools {
	return &Tools{backend: backend, now: time.Now}
}

// All returns the six built-in tools in advertised order.
func (t *Tools) All() []Tool {
	return []Tool{
		{Definition: createTransactionTool(), Handler: t.createTransaction},
		{Definition: registerReceiptTool(), Handler: t.registerReceipt},
		{Definition: getReceiptStatusTool(), Handler: t.getReceiptStatus},
		{Definition: createSavingsSnapshotTool(), Handler: t.createSavingsSnapshot},
		{Definition: getLatestSavingsTool(), Handler: t.getLatestSavings},
		{Definition: getTransactionSummaryTool(), Handler: t.getTransactionSummary},
	}
}

// DefaultRegistry builds the registry of built-in tools against backend.
func DefaultRegistry(backend *Backend) (*Registry, error) {
	return NewRegistry(NewTools(backend).All()...)
}

func (t *Tools) timestamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}

type transactionPayload struct {
	Amount           json.Number `json:"amount"`
	Category         string      `json:"category"`
	OccurredAt       string      `json:"occurredAt"`
	Notes            *string     `json:"notes"`
	ReceiptReference *string     `json:"receiptReference"`
	SourceType       string      `json:"sourceType"`
}

type receiptPayload struct {
	ExternalID string  `json:"externalId"`
	ReceiptURI *string `json:"receiptUri"`
	Metadata   *string `json:"metadata"`
	Status     string  `json:"status"`
}

type savingsPayload struct {
	Amount     json.Number `json:"amount"`
	CapturedAt string      `json:"capturedAt"`
	Notes      *string     `json:"notes"`
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func backendFailure(op string, resp HTTPJSONResponse) error {
	return NewToolError(CodeServerError, "%s failed (%d): %s", op, resp.Status, resp.Text)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// rawBody is the backend payload as returned, or {} when it was empty or
// not JSON.
func rawBody(resp HTTPJSONResponse) string {
	text := strings.TrimSpace(resp.Text)
	if text == "" || !json.Valid([]byte(text)) {
		return "{}"
	}
	return text
}

func (t *Tools) createTransaction(ctx context.Context, args Args) (*mcp.CallToolResult, error) {
	amount, err := args.RequiredNumber("amount")
	if err != nil {
		return nil, err
	}
	payload := transactionPayload{
		Amount:           amount,
		Category:         args.StringOr("category", "OTHER"),
		OccurredAt:       args.StringOr("occurredAt", t.timestamp()),
		Notes:            args.Text("notes"),
		ReceiptReference: args.Text("receiptReference"),
		SourceType:       args.StringOr("sourceType", "CHATGPT"),
	}

	resp, err := t.backend.PostJSON(ctx, "/api/transactions", payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backendFailure("Transaction creation", resp)
	}
	return textResult("Transaction %s recorded for amount %s",
		orDefault(resp.Field("id"), "created"),
		orDefault(resp.Field("amount"), amount.String())), nil
}

func (t *Tools) registerReceipt(ctx context.Context, args Args) (*mcp.CallToolResult, error) {
	externalID, err := args.RequiredText("externalId")
	if err != nil {
		return nil, err
	}
	payload := receiptPayload{
		ExternalID: externalID,
		ReceiptURI: args.Text("receiptUri"),
		Metadata:   args.Text("metadata"),
		Status:     args.StringOr("status", "PENDING"),
	}

	resp, err := t.backend.PostJSON(ctx, "/api/receipts/ingest", payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backendFailure("Receipt registration", resp)
	}
	return textResult("Registered receipt %s with status %s",
		externalID, orDefault(resp.Field("status"), payload.Status)), nil
}

func (t *Tools) getReceiptStatus(ctx context.Context, args Args) (*mcp.CallToolResult, error) {
	externalID, err := args.RequiredText("externalId")
	if err != nil {
		return nil, err
	}

	resp, err := t.backend.GetJSON(ctx, "/api/receipts/"+url.PathEscape(externalID))
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case http.StatusOK:
		return textResult("Receipt %s is %s", externalID, orDefault(resp.Field("status"), "UNKNOWN")), nil
	case http.StatusNotFound:
		return textResult("Receipt %s not found", externalID), nil
	}
	return nil, backendFailure("Receipt status request", resp)
}

func (t *Tools) createSavingsSnapshot(ctx context.Context, args Args) (*mcp.CallToolResult, error) {
	amount, err := args.RequiredNumber("amount")
	if err != nil {
		return nil, err
	}
	payload := savingsPayload{
		Amount:     amount,
		CapturedAt: args.StringOr("capturedAt", t.timestamp()),
		Notes:      args.Text("notes"),
	}

	resp, err := t.backend.PostJSON(ctx, "/api/savings/snapshots", payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backendFailure("Savings snapshot", resp)
	}
	return textResult("Logged savings snapshot %s for amount %s",
		orDefault(resp.Field("id"), "created"),
		orDefault(resp.Field("amount"), amount.String())), nil
}

func (t *Tools) getLatestSavings(ctx context.Context, _ Args) (*mcp.CallToolResult, error) {
	resp, err := t.backend.GetJSON(ctx, "/api/savings/snapshots/latest")
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case http.StatusOK:
		return textResult("%s", rawBody(resp)), nil
	case http.StatusNotFound:
		return textResult("No savings snapshot recorded yet"), nil
	}
	return nil, backendFailure("Latest savings request", resp)
}

func (t *Tools) getTransactionSummary(ctx context.Context, args Args) (*mcp.CallToolResult, error) {
	q := url.Values{}
	if p := args.Text("period"); p != nil {
		q.Set("period", *p)
	}
	if ref := args.Text("reference"); ref != nil {
		q.Set("reference", *ref)
	}
	path := "/api/transactions/summary"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := t.backend.GetJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backendFailure("Summary request", resp)
	}
	return textResult("%s", rawBody(resp)), nil
}
