package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

type transactionRequest struct {
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	Category        string `json:"category"`
	Date            string `json:"date"`
	OwnerUserID     string `json:"ownerUserId"`
	BusinessID      string `json:"businessId"`
	BusinessExpense bool   `json:"businessExpense"`
}

type transactionResponse struct {
	ID              string `json:"id"`
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	Category        string `json:"category"`
	Date            string `json:"date"`
	OwnerUserID     string `json:"ownerUserId"`
	BusinessID      string `json:"businessId,omitempty"`
	BusinessExpense bool   `json:"businessExpense,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		Amount:          t.Amount.StringFixed(2),
		Type:            string(t.Type),
		Category:        t.Category,
		Date:            t.Date.Format("2006-01-02"),
		OwnerUserID:     t.OwnerUserID,
		BusinessID:      t.BusinessID,
		BusinessExpense: t.BusinessExpense,
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.recordTransaction(w, r)
	case http.MethodGet:
		s.listTransactions(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) recordTransaction(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, r, core.ErrInvalidAmount)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	owner := req.OwnerUserID
	if owner == "" {
		owner = scope.UserID
	}

	// Administrators and accountants book against their selected business
	// unless the request names one explicitly.
	businessID := req.BusinessID
	if businessID == "" && scope.Role != core.RoleUser {
		businessID = scope.BusinessID
	}

	t := core.Transaction{
		Amount:          amount,
		Type:            core.TxType(req.Type),
		Category:        req.Category,
		Date:            date,
		OwnerUserID:     owner,
		BusinessID:      businessID,
		BusinessExpense: req.BusinessExpense,
	}

	created, err := s.transactions.Record(r.Context(), t, scope.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// New entries change every insight, so the whole cache goes.
	s.insightCache.Purge()

	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.insights.Transactions(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseDate(value string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", value); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, value)
}
