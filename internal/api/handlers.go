package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/health"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps a classified error onto a status and code.
// Unclassified errors never leak their text.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("request failed", "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	switch {
	case errors.Is(e, apperr.ErrNotFound), errors.Is(e, apperr.ErrNoLevelsDefined):
		respondError(w, http.StatusNotFound, e.Code, e.Message)
	case errors.Is(e, apperr.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, e.Code, e.Message)
	default:
		if s.production {
			slog.Error("request failed", "error", err, "code", e.Code, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		slog.Warn("request failed", "error", err, "code", e.Code, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, e.Code, e.Error())
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.InvalidInput("invalid_request", "invalid JSON body")
	}
	return nil
}

// queryInt reads a non-negative integer query parameter, falling back to def
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.InvalidInput("invalid_query", "%s must be a non-negative integer", key)
	}
	return n, nil
}

// queryDate reads a YYYY-MM-DD query parameter, falling back to def
func queryDate(r *http.Request, key string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("invalid_date", "%s %q is not a date", key, raw)
	}
	return t, nil
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type dependencyStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	results := s.health.CheckAll(r.Context())
	deps := make([]dependencyStatus, 0, len(results))
	for name, err := range results {
		dep := dependencyStatus{Name: name, Ready: err == nil}
		if err != nil {
			dep.Error = err.Error()
			slog.Warn("dependency not ready", "dependency", name, "error", err)
		}
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	if !health.Ready(results) {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"dependencies": deps,
	})
}
