package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

type targetRequest struct {
	Month    string `json:"month"`
	Category string `json:"category"`
	Limit    string `json:"limit"`
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.setTarget(w, r)
	case http.MethodGet:
		s.listTargets(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	limit, err := decimal.NewFromString(req.Limit)
	if err != nil {
		writeError(w, r, core.ErrInvalidTarget)
		return
	}

	target := core.CategoryTarget{
		UserID:   scope.UserID,
		Month:    req.Month,
		Category: req.Category,
		Limit:    limit,
	}
	if err := s.targets.Set(r.Context(), target); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, target)
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	targets, err := s.targets.List(r.Context(), scope.UserID, monthParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if targets == nil {
		targets = []core.CategoryTarget{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	statuses, err := s.targets.Status(r.Context(), scope.UserID, monthParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// monthParam reads the month query parameter, defaulting to the current
// calendar month.
func monthParam(r *http.Request) string {
	if m := r.URL.Query().Get("month"); m != "" {
		return m
	}
	return time.Now().Format("2006-01")
}
