package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	userID := UserFromContext(r.Context())
	toolkitID := chi.URLParam(r, "toolkitID")

	g, ok := models.ParseGranularity(r.URL.Query().Get("range"))
	if !ok {
		s.respondDomainError(w, r, apperr.InvalidInput("invalid_graph_range", "range must be one of DAY, WEEK, MONTH, YEAR"))
		return
	}

	anchor, err := queryDate(r, "date", time.Now().UTC())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	toolkit, err := s.answers.Toolkit(r.Context(), toolkitID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	data, err := s.graphs.Graph(r.Context(), userID, *toolkit, anchor, g)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (s *Server) handleAnswerHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	answers, err := s.answers.History(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "toolkitID"), limit, offset)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"answers": answers,
		"total":   len(answers),
	})
}

func (s *Server) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.SaveAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	resp, err := s.answers.Save(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "toolkitID"), req)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	answer, err := s.answers.Get(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "toolkitID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleAudioProgress(w http.ResponseWriter, r *http.Request) {
	var req models.AudioProgressRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	played, err := s.answers.UpdateAudioConsumedDuration(
		r.Context(),
		UserFromContext(r.Context()),
		chi.URLParam(r, "scheduleID"),
		chi.URLParam(r, "sessionID"),
		chi.URLParam(r, "audioFileID"),
		req,
	)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, played)
}

func (s *Server) handleScheduleProgress(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC()
	start, err := queryDate(r, "start", today)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	end, err := queryDate(r, "end", start)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	progress, err := s.answers.ScheduleProgress(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "scheduleID"), start, end)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}
