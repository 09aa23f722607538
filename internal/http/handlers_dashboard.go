package http

import (
	"net/http"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"financeangle/internal/core"
	"financeangle/internal/importer"
	"financeangle/internal/services"
)

// maxImportBytes bounds an uploaded bank export.
const maxImportBytes = 20 << 20

type accountRequest struct {
	AccountID     *string `json:"accountId"`
	Name          string  `json:"name"`
	AccountNumber *string `json:"accountNumber"`
	Provider      *string `json:"provider"`
	Currency      string  `json:"currency"`
}

func (a accountRequest) input() services.AccountInput {
	return services.AccountInput{
		AccountID:     a.AccountID,
		Name:          a.Name,
		AccountNumber: a.AccountNumber,
		Provider:      a.Provider,
		Currency:      a.Currency,
	}
}

type entryRequest struct {
	Date          core.Date        `json:"date"`
	Description   string           `json:"description"`
	Category      *string          `json:"category"`
	Amount        *decimal.Decimal `json:"amount"`
	AccountNumber *string          `json:"accountNumber"`
}

type snapshotRequest struct {
	Date     core.Date         `json:"date"`
	Original *core.MoneyAmount `json:"original"`
	FXToEUR  *core.FXRate      `json:"fxToEur"`
	Type     string            `json:"type"`
	Kind     string            `json:"kind"`
	Account  *string           `json:"account"`
	Note     *string           `json:"note"`
}

type positionRequest struct {
	Month         *string                     `json:"month"`
	SavingsBudget *core.MoneyAmount           `json:"savingsBudget"`
	SharedDebits  map[string]core.MoneyAmount `json:"sharedDebits"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.dashboard.AddAccount(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.dashboard.UpdateAccount(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.dashboard.DeleteAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.dashboard.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(accounts))
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.dashboard.AddEntry(r.Context(), services.EntryInput{
		Date:          req.Date,
		Description:   req.Description,
		Category:      req.Category,
		Amount:        req.Amount,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dashboard.ListEntries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleResetEntries(w http.ResponseWriter, r *http.Request) {
	confirm, _ := queryBool(r, "confirm", false)
	if !confirm {
		writeJSON(w, http.StatusBadRequest, deletedResponse{Deleted: 0})
		return
	}
	n, err := s.dashboard.ResetEntries(r.Context(), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

func (s *Server) handleAddSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Original == nil {
		s.writeError(w, r, core.NewValidationError("original", "original is required"))
		return
	}
	snap, err := s.dashboard.AddSnapshot(r.Context(), services.SnapshotInput{
		Date:     req.Date,
		Original: *req.Original,
		FXToEUR:  req.FXToEUR,
		Type:     req.Type,
		Kind:     req.Kind,
		Account:  req.Account,
		Note:     req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard.DeleteSnapshot(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.dashboard.ListSnapshots(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(snaps))
}

func (s *Server) handleMonthlyPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := services.PositionInput{SavingsBudget: req.SavingsBudget, SharedDebits: req.SharedDebits}
	if req.Month != nil && strings.TrimSpace(*req.Month) != "" {
		m, err := core.ParseMonth(*req.Month)
		if err != nil {
			s.writeError(w, r, core.NewValidationError("month", "invalid month '%s'", *req.Month))
			return
		}
		in.Month = &m
	}

	pos, err := s.dashboard.RecomputeMonthlyPosition(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.dashboard.ListPositions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(positions))
}

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request) {
	monthsBack, err := queryInt(r, "monthsBack")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.dashboard.SpendingSummary(r.Context(), monthsBack)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(points))
}

func (s *Server) handleImportFinanzguru(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		s.writeError(w, r, core.NewValidationError("file", "Invalid multipart upload: %v", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, core.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	opts, err := s.importOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.dashboard.ImportFinanzguru(r.Context(), file, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.imports, 1)
	writeJSON(w, http.StatusOK, res)
}

// importOptions starts from the Finanzguru defaults, applies the named
// profile and then any explicit query parameters.
func (s *Server) importOptions(r *http.Request) (importer.Options, error) {
	q := r.URL.Query()
	opts := importer.DefaultOptions()

	if name := strings.TrimSpace(q.Get("profile")); name != "" {
		p, ok := s.profiles[name]
		if !ok {
			return opts, core.NewValidationError("profile", "unknown import profile '%s'", name)
		}
		opts = p.Apply(opts)
	}

	if d := q.Get("delimiter"); d != "" {
		if utf8.RuneCountInString(d) != 1 {
			return opts, core.NewValidationError("delimiter", "delimiter must be a single character")
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	if q.Get("decimalComma") != "" {
		dc, err := queryBool(r, "decimalComma", false)
		if err != nil {
			return opts, err
		}
		opts.DecimalComma = dc
	}
	if p := strings.TrimSpace(q.Get("datePattern")); p != "" {
		opts.DatePattern = p
	}
	opts.Columns = opts.Columns.Merge(importer.Columns{
		Date:         q.Get("dateColumn"),
		Account:      q.Get("accountColumn"),
		AccountState: q.Get("accountStateColumn"),
		Amount:       q.Get("amountColumn"),
		Description:  q.Get("descriptionColumn"),
		Category:     q.Get("categoryColumn"),
	})
	return opts, nil
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
