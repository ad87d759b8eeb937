package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bugetar/internal/core"
	applog "bugetar/internal/log"
	"bugetar/internal/services"
	"bugetar/internal/storage"
)

// scopeFromRequest builds the caller's scope from identity headers. The
// gateway in front of this service authenticates callers and forwards the
// resolved identity; the service trusts the headers as given.
func scopeFromRequest(r *http.Request) (core.Scope, error) {
	scope := core.Scope{
		UserID:     strings.TrimSpace(r.Header.Get("X-User-ID")),
		Role:       core.Role(strings.TrimSpace(r.Header.Get("X-User-Role"))),
		BusinessID: strings.TrimSpace(r.Header.Get("X-Business-ID")),
	}
	if scope.Role == "" {
		scope.Role = core.RoleUser
	}
	if !scope.Role.Valid() {
		return core.Scope{}, core.ErrAccessDenied
	}
	if scope.UserID == "" {
		return core.Scope{}, core.ErrMissingOwner
	}
	return scope, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Default(applog.ComponentHTTP).Error("Failed to encode response", applog.FieldError, err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes. Unrecognized errors
// become opaque 500s so storage details never leak to callers.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrSelectionRequired):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrUnknownBusiness), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrMissingOwner),
		errors.Is(err, core.ErrMissingBusiness),
		errors.Is(err, core.ErrPersonalBusiness),
		errors.Is(err, core.ErrInvalidTarget):
		status = http.StatusUnprocessableEntity
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// cached serves insight responses from the LRU cache, keyed by URL and
// caller identity. Only successful responses are stored.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := cacheKey(r)

		if body, ok := s.insightCache.Get(key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		if rec.statusCode == http.StatusOK && rec.body.Len() > 0 {
			s.insightCache.Set(key, append([]byte(nil), rec.body.Bytes()...))
		}
	}
}

func cacheKey(r *http.Request) string {
	var b strings.Builder
	b.WriteString(r.URL.Path)
	b.WriteByte('?')
	b.WriteString(r.URL.RawQuery)
	b.WriteByte('|')
	b.WriteString(r.Header.Get("X-User-ID"))
	b.WriteByte('|')
	b.WriteString(r.Header.Get("X-User-Role"))
	b.WriteByte('|')
	b.WriteString(r.Header.Get("X-Business-ID"))
	return b.String()
}

// recordingWriter captures the response body so it can be cached after the
// handler runs.
type recordingWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.body.Write(p)
	return rw.ResponseWriter.Write(p)
}
