package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"financeangle/internal/core"
	"financeangle/internal/log"
	"financeangle/internal/services"
)

type transactionRequest struct {
	Amount           *decimal.Decimal `json:"amount"`
	Category         string           `json:"category"`
	OccurredAt       *time.Time       `json:"occurredAt"`
	Notes            *string          `json:"notes"`
	SourceType       string           `json:"sourceType"`
	ReceiptReference *string          `json:"receiptReference"`
}

type transactionResponse struct {
	ID               int64           `json:"id"`
	Amount           json.Number     `json:"amount"`
	Category         core.Category   `json:"category"`
	OccurredAt       time.Time       `json:"occurredAt"`
	Notes            *string         `json:"notes"`
	SourceType       core.SourceType `json:"sourceType"`
	ReceiptReference *string         `json:"receiptReference"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type categoryTotalResponse struct {
	Category core.Category `json:"category"`
	Amount   json.Number   `json:"amount"`
}

type summaryResponse struct {
	Period         core.Period             `json:"period"`
	PeriodStart    time.Time               `json:"periodStart"`
	PeriodEnd      time.Time               `json:"periodEnd"`
	TotalAmount    json.Number             `json:"totalAmount"`
	CategoryTotals []categoryTotalResponse `json:"categoryTotals"`
}

type receiptRequest struct {
	ExternalID string  `json:"externalId"`
	ReceiptURI *string `json:"receiptUri"`
	Metadata   *string `json:"metadata"`
	Status     string  `json:"status"`
}

type savingsRequest struct {
	Amount     *decimal.Decimal `json:"amount"`
	CapturedAt *time.Time       `json:"capturedAt"`
	Notes      *string          `json:"notes"`
}

type savingsResponse struct {
	ID         int64       `json:"id"`
	Amount     json.Number `json:"amount"`
	CapturedAt time.Time   `json:"capturedAt"`
	Notes      *string     `json:"notes"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type recommendationsResponse struct {
	Period          core.Period `json:"period"`
	Recommendations []string    `json:"recommendations"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:               tx.ID,
		Amount:           amount(tx.Amount),
		Category:         tx.Category,
		OccurredAt:       tx.OccurredAt,
		Notes:            tx.Notes,
		SourceType:       tx.SourceType,
		ReceiptReference: tx.ReceiptReference,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}
}

func toSavingsResponse(ss core.SavingsSnapshot) savingsResponse {
	return savingsResponse{
		ID:         ss.ID,
		Amount:     amount(ss.Amount),
		CapturedAt: ss.CapturedAt,
		Notes:      ss.Notes,
		CreatedAt:  ss.CreatedAt,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.RecordTransaction(r.Context(), services.NewTransaction{
		Amount:           req.Amount,
		Category:         req.Category,
		OccurredAt:       req.OccurredAt,
		Notes:            req.Notes,
		SourceType:       req.SourceType,
		ReceiptReference: req.ReceiptReference,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	atomic.AddInt64(&s.metrics.transactions, 1)
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogTransactionRecorded(r.Context(), tx.ID, tx.Amount.StringFixed(2), string(tx.Category))
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	var reference *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("reference")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, r, core.NewValidationError("reference", "invalid reference '%s'", raw))
			return
		}
		reference = &t
	}

	summary, err := s.ledger.GenerateSummary(r.Context(), r.URL.Query().Get("period"), reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	totals := summary.SortedTotals()
	resp := summaryResponse{
		Period:         summary.Period,
		PeriodStart:    summary.PeriodStart,
		PeriodEnd:      summary.PeriodEnd,
		TotalAmount:    amount(summary.TotalAmount),
		CategoryTotals: make([]categoryTotalResponse, 0, len(totals)),
	}
	for _, t := range totals {
		resp.CategoryTotals = append(resp.CategoryTotals, categoryTotalResponse{Category: t.Category, Amount: amount(t.Amount)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rc, err := s.ledger.RecordIngestion(r.Context(), services.NewIngestion{
		ExternalID: req.ExternalID,
		ReceiptURI: req.ReceiptURI,
		Metadata:   req.Metadata,
		Status:     req.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleReceiptStatus(w http.ResponseWriter, r *http.Request) {
	rc, err := s.ledger.FetchReceipt(r.Context(), r.PathValue("externalId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleCreateSavings(w http.ResponseWriter, r *http.Request) {
	var req savingsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ss, err := s.ledger.RecordSavings(r.Context(), services.NewSavings{
		Amount:     req.Amount,
		CapturedAt: req.CapturedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSavingsResponse(ss))
}

func (s *Server) handleLatestSavings(w http.ResponseWriter, r *http.Request) {
	ss, err := s.ledger.LatestSavings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSavingsResponse(ss))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	period, lines, err := s.ledger.Recommendations(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{Period: period, Recommendations: lines})
}
