package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/toolkit-engine/internal/config"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// AnswerService is the answer surface the API exposes
type AnswerService interface {
	Toolkit(ctx context.Context, toolkitID string) (*models.Toolkit, error)
	Save(ctx context.Context, userID, toolkitID string, req models.SaveAnswerRequest) (*models.SaveAnswerResponse, error)
	Get(ctx context.Context, userID, toolkitID, sessionID string) (*models.ResolvedAnswer, error)
	History(ctx context.Context, userID, toolkitID string, limit, offset int) ([]models.Answer, error)
	UpdateAudioConsumedDuration(ctx context.Context, userID, scheduleID, sessionID, audioFileID string, req models.AudioProgressRequest) (*models.PlayedAudio, error)
	ScheduleProgress(ctx context.Context, userID, scheduleID string, start, end time.Time) (*models.ScheduleProgress, error)
}

// GraphService builds toolkit graphs
type GraphService interface {
	Graph(ctx context.Context, userID string, toolkit models.Toolkit, anchor time.Time, g models.Granularity) (*models.GraphData, error)
}

// GoalService reports and advances goal levels
type GoalService interface {
	UserGoalLevels(ctx context.Context, userID string, limit int) ([]models.GoalProgress, error)
	CheckGoalLevel(ctx context.Context, toolkitID, userID string) (*models.CheckGoalLevelResult, error)
}

// UnlockFeed hands out per-user streams of level unlocks
type UnlockFeed interface {
	Subscribe(userID string) (<-chan models.LevelUnlockedEvent, func())
}

// ReadinessChecker probes the service's dependencies
type ReadinessChecker interface {
	CheckAll(ctx context.Context) map[string]error
}

// Services bundles the domain services behind the HTTP surface
type Services struct {
	Answers AnswerService
	Graphs  GraphService
	Goals   GoalService
	Feed    UnlockFeed
	Health  ReadinessChecker
}

// Server represents the HTTP API server
type Server struct {
	config     config.ServerConfig
	production bool
	router     *chi.Mux
	answers    AnswerService
	graphs     GraphService
	goals      GoalService
	feed       UnlockFeed
	health     ReadinessChecker
}

// NewServer creates a new API server. In production, unsupported-operation
// and configuration errors are reported to clients as internal_error.
func NewServer(cfg config.ServerConfig, production bool, svc Services) *Server {
	s := &Server{
		config:     cfg,
		production: production,
		answers:    svc.Answers,
		graphs:     svc.Graphs,
		goals:      svc.Goals,
		feed:       svc.Feed,
		health:     svc.Health,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", userHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireUser)

		// Long-lived, so kept outside the request timeout
		r.Get("/goal-levels/stream", s.handleUnlockStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/goal-levels", s.handleUserGoalLevels)

			r.Route("/toolkits/{toolkitID}", func(r chi.Router) {
				r.Get("/graph", s.handleGraph)
				r.Get("/answers", s.handleAnswerHistory)
				r.Post("/answers", s.handleSaveAnswer)
				r.Get("/answers/{sessionID}", s.handleGetAnswer)
				r.Post("/goal-level/check", s.handleCheckGoalLevel)
			})

			r.Route("/schedules/{scheduleID}", func(r chi.Router) {
				r.Get("/progress", s.handleScheduleProgress)
				r.Put("/sessions/{sessionID}/audio/{audioFileID}", s.handleAudioProgress)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"user_id", r.Header.Get(userHeader),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
