package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bugetar/internal/analytics"
	"bugetar/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	groupBy := analytics.GroupBy(r.URL.Query().Get("groupBy"))
	switch groupBy {
	case "":
		groupBy = analytics.GroupByCategory
	case analytics.GroupByCategory, analytics.GroupByMonth, analytics.GroupByCategoryAndMonth:
	default:
		http.Error(w, "Invalid groupBy, expected category, month or categoryAndMonth", http.StatusBadRequest)
		return
	}

	report, err := s.insights.Summary(r.Context(), scope, groupBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	trends, err := s.insights.Trends(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.insights.Forecasts(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var threshold float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid threshold, expected a positive number", http.StatusBadRequest)
			return
		}
		threshold = parsed
	}

	anomalies, err := s.insights.Anomalies(r.Context(), scope, threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (s *Server) handleBehavior(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.insights.Behavior(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	patterns, err := s.insights.Patterns(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req services.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, err := s.insights.Optimize(r.Context(), scope, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
