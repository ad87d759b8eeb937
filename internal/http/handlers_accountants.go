package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

type associateRequest struct {
	AccountantUserID string `json:"accountantUserId"`
	BusinessID       string `json:"businessId"`
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req associateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Callers associating themselves can omit the accountant id.
	accountantID := req.AccountantUserID
	if accountantID == "" {
		accountantID = scope.UserID
	}

	if err := s.accountants.Associate(r.Context(), accountantID, req.BusinessID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAccountantBusinesses serves GET /api/accountants/{id}/businesses.
func (s *Server) handleAccountantBusinesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/accountants/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "businesses" || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	businesses, err := s.accountants.Businesses(r.Context(), parts[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, businesses)
}
