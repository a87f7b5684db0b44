// Package answers handles toolkit answer submission and retrieval: decoding
// the type-specific payload, carrying streaks forward, resolving stored
// answers with their reference data, and reporting schedule progress.
package answers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/metrics"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Store is the answer persistence the service needs
type Store interface {
	SessionReader
	InsertAnswer(ctx context.Context, def models.ToolkitDefinition, answer models.Answer) (models.Answer, error)
	LatestAnswerForSchedule(ctx context.Context, def models.ToolkitDefinition, scheduleID string) (models.Answer, error)
	AnswerHistory(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, limit, offset int) ([]models.Answer, error)
	CountAnswersInRange(ctx context.Context, def models.ToolkitDefinition, userID, scheduleID string, start, end time.Time) (int64, error)
	SumValueFieldInRange(ctx context.Context, def models.ToolkitDefinition, field, userID, scheduleID string, start, end time.Time) (float64, error)
	SelectedTarget(ctx context.Context, def models.ToolkitDefinition, scheduleID string) (float64, bool, error)
	UpsertPlayedAudio(ctx context.Context, audio models.PlayedAudio) (*models.PlayedAudio, error)
}

// Catalog resolves toolkits and schedules
type Catalog interface {
	GetToolkit(ctx context.Context, id string) (*models.Toolkit, error)
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
}

// GoalChecker re-evaluates goal levels after a submission
type GoalChecker interface {
	CheckGoalLevel(ctx context.Context, toolkitID, userID string) (*models.CheckGoalLevelResult, error)
}

// Service implements answer submission and retrieval
type Service struct {
	defs     Definitions
	store    Store
	catalog  Catalog
	resolver *Resolver
	goals    GoalChecker
	logger   *slog.Logger
}

// NewService creates an answer service. goals may be nil to skip level checks.
func NewService(defs Definitions, store Store, catalog Catalog, resolver *Resolver, goals GoalChecker) *Service {
	return &Service{
		defs:     defs,
		store:    store,
		catalog:  catalog,
		resolver: resolver,
		goals:    goals,
		logger:   slog.Default().With("component", "answers"),
	}
}

// Toolkit returns a toolkit by id or NotFound
func (s *Service) Toolkit(ctx context.Context, toolkitID string) (*models.Toolkit, error) {
	toolkit, err := s.catalog.GetToolkit(ctx, toolkitID)
	if err != nil {
		return nil, err
	}
	if toolkit == nil {
		return nil, apperr.NotFound("toolkit_not_found", "toolkit %s not found", toolkitID)
	}
	return toolkit, nil
}

// schedule returns a schedule owned by userID, or NotFound
func (s *Service) schedule(ctx context.Context, userID, scheduleID string) (*models.Schedule, error) {
	schedule, err := s.catalog.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil || schedule.UserID != userID {
		return nil, apperr.NotFound("schedule_not_found", "schedule %s not found", scheduleID)
	}
	return schedule, nil
}

// Save validates and persists one session answer, then checks the toolkit's goal
func (s *Service) Save(ctx context.Context, userID, toolkitID string, req models.SaveAnswerRequest) (*models.SaveAnswerResponse, error) {
	if err := validateStruct("invalid_answer_payload", req); err != nil {
		return nil, err
	}

	toolkit, err := s.Toolkit(ctx, toolkitID)
	if err != nil {
		return nil, err
	}

	schedule, err := s.schedule(ctx, userID, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.ToolkitID != toolkit.ID {
		return nil, apperr.NotFound("schedule_not_found", "schedule %s does not belong to toolkit %s", req.ScheduleID, toolkitID)
	}

	def, err := s.defs.DefinitionFor(toolkit.Type)
	if err != nil {
		return nil, err
	}

	answer, err := decodePayload(toolkit.Type, req.Answer)
	if err != nil {
		return nil, err
	}

	sessionDate, err := time.Parse("2006-01-02", req.SessionDate)
	if err != nil {
		return nil, apperr.InvalidInput("invalid_date", "session_date %q is not a date", req.SessionDate)
	}

	base := answer.Base()
	*base = models.AnswerBase{
		UserID:          userID,
		ToolkitID:       toolkit.ID,
		ScheduleID:      schedule.ID,
		SessionID:       req.SessionID,
		SessionDate:     sessionDate,
		SessionTime:     req.SessionTime,
		Feeling:         req.Feeling,
		Note:            req.Note,
		HLPPointsEarned: toolkit.HLPRewardPoints,
	}

	if err := validateStruct("invalid_answer_payload", answer); err != nil {
		return nil, err
	}

	if streak, ok := answer.(models.StreakAnswer); ok && def.Supports(models.CapabilityStreak) {
		if err := s.carryStreak(ctx, def, schedule.ID, streak); err != nil {
			return nil, err
		}
	}

	saved, err := s.store.InsertAnswer(ctx, def, answer)
	if err != nil {
		return nil, err
	}
	metrics.RecordAnswerSaved(string(toolkit.Type))

	s.logger.Info("toolkit answer saved",
		"answer_id", saved.Base().ID,
		"toolkit_type", toolkit.Type,
		"schedule_id", schedule.ID,
		"user_id", userID,
	)

	if s.goals != nil && toolkit.GoalID != "" {
		if _, err := s.goals.CheckGoalLevel(ctx, toolkit.ID, userID); err != nil {
			s.logger.Error("goal level check failed", "toolkit_id", toolkit.ID, "user_id", userID, "error", err)
		}
	}

	return &models.SaveAnswerResponse{ID: saved.Base().ID, ScheduleID: schedule.ID}, nil
}

// carryStreak sets the streak to the previous answer's value plus one, or 0 on the first answer
func (s *Service) carryStreak(ctx context.Context, def models.ToolkitDefinition, scheduleID string, answer models.StreakAnswer) error {
	prev, err := s.store.LatestAnswerForSchedule(ctx, def, scheduleID)
	if err != nil {
		return err
	}
	previous, ok := prev.(models.StreakAnswer)
	if !ok {
		answer.SetStreak(0)
		return nil
	}
	answer.SetStreak(previous.Streak() + 1)
	return nil
}

func decodePayload(t models.ToolkitType, raw json.RawMessage) (models.Answer, error) {
	answer, err := models.NewAnswer(t)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, apperr.InvalidInput("invalid_answer_payload", "answer payload for %s is required", t)
	}
	if err := json.Unmarshal(trimmed, answer); err != nil {
		return nil, apperr.InvalidInput("invalid_answer_payload", "answer payload for %s is malformed: %v", t, err)
	}
	return answer, nil
}

// Get resolves the user's answer of a toolkit session
func (s *Service) Get(ctx context.Context, userID, toolkitID, sessionID string) (*models.ResolvedAnswer, error) {
	toolkit, err := s.Toolkit(ctx, toolkitID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, sessionID, toolkit.Type, userID)
}

// History lists the user's answers of a toolkit, newest first
func (s *Service) History(ctx context.Context, userID, toolkitID string, limit, offset int) ([]models.Answer, error) {
	toolkit, err := s.Toolkit(ctx, toolkitID)
	if err != nil {
		return nil, err
	}

	def, err := s.defs.Require(toolkit.Type, models.CapabilityHistory)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.AnswerHistory(ctx, def, userID, toolkit.ID, limit, offset)
}

// UpdateAudioConsumedDuration records how much of an audio file the user played in a session
func (s *Service) UpdateAudioConsumedDuration(ctx context.Context, userID, scheduleID, sessionID, audioFileID string, req models.AudioProgressRequest) (*models.PlayedAudio, error) {
	if err := validateStruct("invalid_audio_progress", req); err != nil {
		return nil, err
	}

	schedule, err := s.schedule(ctx, userID, scheduleID)
	if err != nil {
		return nil, err
	}

	toolkit, err := s.Toolkit(ctx, schedule.ToolkitID)
	if err != nil {
		return nil, err
	}
	if toolkit.Type != models.ToolkitAudio {
		return nil, apperr.InvalidInput("schedule_not_audio", "schedule %s is a %s schedule", scheduleID, toolkit.Type)
	}

	return s.store.UpsertPlayedAudio(ctx, models.PlayedAudio{
		ScheduleID:       schedule.ID,
		SessionID:        sessionID,
		AudioFileID:      audioFileID,
		ConsumedDuration: req.ConsumedDuration,
	})
}

// ScheduleProgress reports how much of a schedule was completed between two
// dates inclusive. With a selected target option the value field is summed
// against the daily target; otherwise answers are counted against repeatPerDay.
func (s *Service) ScheduleProgress(ctx context.Context, userID, scheduleID string, start, end time.Time) (*models.ScheduleProgress, error) {
	if end.Before(start) {
		return nil, apperr.InvalidInput("invalid_date_range", "end %s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	schedule, err := s.schedule(ctx, userID, scheduleID)
	if err != nil {
		return nil, err
	}
	toolkit, err := s.Toolkit(ctx, schedule.ToolkitID)
	if err != nil {
		return nil, err
	}
	def, err := s.defs.DefinitionFor(toolkit.Type)
	if err != nil {
		return nil, err
	}

	days := float64(dayCount(start, end))
	progress := &models.ScheduleProgress{ScheduleID: schedule.ID, ToolkitType: toolkit.Type}

	target, hasTarget, err := s.store.SelectedTarget(ctx, def, schedule.ID)
	if err != nil {
		return nil, err
	}

	if hasTarget && def.Supports(models.CapabilityValue) {
		sum, err := s.store.SumValueFieldInRange(ctx, def, def.ValueField, userID, schedule.ID, start, end)
		if err != nil {
			return nil, err
		}
		progress.Achieved = sum
		progress.Target = target * days
	} else {
		count, err := s.store.CountAnswersInRange(ctx, def, userID, schedule.ID, start, end)
		if err != nil {
			return nil, err
		}
		perDay := schedule.RepeatPerDay
		if perDay <= 0 {
			perDay = 1
		}
		progress.Achieved = float64(count)
		progress.Target = float64(perDay) * days
	}

	progress.ProgressPercent = percent(progress.Achieved, progress.Target)
	return progress, nil
}

func dayCount(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

func percent(achieved, target float64) int {
	if target <= 0 {
		return 100
	}
	if achieved <= 0 {
		return 0
	}
	return int(math.Min(100, math.Ceil(100*achieved/target)))
}
