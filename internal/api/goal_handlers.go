package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleUserGoalLevels(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	levels, err := s.goals.UserGoalLevels(r.Context(), UserFromContext(r.Context()), limit)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"goals": levels,
		"total": len(levels),
	})
}

func (s *Server) handleCheckGoalLevel(w http.ResponseWriter, r *http.Request) {
	result, err := s.goals.CheckGoalLevel(r.Context(), chi.URLParam(r, "toolkitID"), UserFromContext(r.Context()))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
