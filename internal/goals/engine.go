// Package goals implements goal-level progression: where a user stands within
// a goal's ordered point thresholds, and the at-most-once unlock of the next level.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/metrics"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// Store is the goal persistence the engine needs
type Store interface {
	GetGoal(ctx context.Context, goalID string) (*models.Goal, error)
	ListUserGoals(ctx context.Context, userID string, limit int) ([]models.Goal, error)
	LevelsForGoal(ctx context.Context, goalID string) ([]models.GoalLevel, error)
	UnlockedLevelIDs(ctx context.Context, userID, goalID string) (map[string]bool, error)
	InsertUnlock(ctx context.Context, unlock models.UserGoalLevelUnlock) (bool, error)
	EarnedPoints(ctx context.Context, userID, goalID string) (int, error)
}

// Toolkits resolves the goal a toolkit contributes to
type Toolkits interface {
	GetToolkit(ctx context.Context, id string) (*models.Toolkit, error)
}

// Publisher delivers unlock events to downstream consumers
type Publisher interface {
	PublishLevelUnlocked(ctx context.Context, event models.LevelUnlockedEvent) error
}

const maxParallelGoals = 8

// Engine computes goal progress and unlocks levels
type Engine struct {
	store     Store
	toolkits  Toolkits
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine creates a goal level engine
func NewEngine(store Store, toolkits Toolkits, publisher Publisher) *Engine {
	return &Engine{
		store:     store,
		toolkits:  toolkits,
		publisher: publisher,
		logger:    slog.Default().With("component", "goals"),
		now:       time.Now,
	}
}

// Levels loads and validates a goal's levels
func (e *Engine) Levels(ctx context.Context, goalID string) ([]models.GoalLevel, error) {
	levels, err := e.store.LevelsForGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if err := ValidateLevels(goalID, levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// Progress computes a user's progress within one goal
func (e *Engine) Progress(ctx context.Context, userID string, goal models.Goal) (models.GoalProgress, error) {
	levels, err := e.Levels(ctx, goal.ID)
	if err != nil {
		return models.GoalProgress{}, err
	}

	unlocked, err := e.store.UnlockedLevelIDs(ctx, userID, goal.ID)
	if err != nil {
		return models.GoalProgress{}, err
	}

	earned, err := e.store.EarnedPoints(ctx, userID, goal.ID)
	if err != nil {
		return models.GoalProgress{}, err
	}

	progress, err := ComputeProgress(levels, unlocked, earned)
	if err != nil {
		return models.GoalProgress{}, err
	}
	progress.GoalID = goal.ID
	progress.GoalTitle = goal.Title
	return progress, nil
}

// UserGoalLevels returns the progress of every goal the user follows, in goal order.
// Goals without configured levels are left out.
func (e *Engine) UserGoalLevels(ctx context.Context, userID string, limit int) ([]models.GoalProgress, error) {
	goals, err := e.store.ListUserGoals(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*models.GoalProgress, len(goals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGoals)
	for i, goal := range goals {
		g.Go(func() error {
			progress, err := e.Progress(gctx, userID, goal)
			if errors.Is(err, apperr.ErrNoLevelsDefined) {
				e.logger.Debug("goal has no levels", "goal_id", goal.ID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("goal %s: %w", goal.ID, err)
			}
			results[i] = &progress
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.GoalProgress, 0, len(results))
	for _, p := range results {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// TryUnlockLevel unlocks the next level of a goal when the user's points reach
// its cumulative threshold. It returns the level only when this call created
// the unlock row; a concurrent or repeated call gets nil.
func (e *Engine) TryUnlockLevel(ctx context.Context, userID, goalID string, levels []models.GoalLevel, earned int) (*models.GoalLevel, error) {
	if len(levels) == 0 {
		return nil, apperr.NoLevels(goalID)
	}

	unlocked, err := e.store.UnlockedLevelIDs(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	next, required := nextThreshold(levels, unlocked)
	if next == nil || earned < required {
		return nil, nil
	}

	unlockedAt := e.now().UTC()
	created, err := e.store.InsertUnlock(ctx, models.UserGoalLevelUnlock{
		UserID:      userID,
		GoalID:      goalID,
		GoalLevelID: next.ID,
		UnlockedAt:  unlockedAt,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordUnlock(created)
	if !created {
		return nil, nil
	}

	level := *next
	e.logger.Info("goal level unlocked",
		"user_id", userID,
		"goal_id", goalID,
		"goal_level_id", level.ID,
		"sequence_number", level.SequenceNumber,
	)

	if e.publisher != nil {
		event := models.LevelUnlockedEvent{
			UserID:         userID,
			GoalID:         goalID,
			GoalLevelID:    level.ID,
			Title:          level.Title,
			SequenceNumber: level.SequenceNumber,
			UnlockedAt:     unlockedAt,
		}
		if err := e.publisher.PublishLevelUnlocked(ctx, event); err != nil {
			e.logger.Error("failed to publish level unlock", "goal_level_id", level.ID, "error", err)
		}
	}

	return &level, nil
}

// CheckGoalLevel re-evaluates the goal of a toolkit for a user and unlocks the
// next level if it was reached
func (e *Engine) CheckGoalLevel(ctx context.Context, toolkitID, userID string) (*models.CheckGoalLevelResult, error) {
	toolkit, err := e.toolkits.GetToolkit(ctx, toolkitID)
	if err != nil {
		return nil, err
	}
	if toolkit == nil {
		return nil, apperr.NotFound("toolkit_not_found", "toolkit %s not found", toolkitID)
	}
	if toolkit.GoalID == "" {
		return nil, apperr.NotFound("goal_not_found", "toolkit %s is not linked to a goal", toolkitID)
	}

	goal, err := e.store.GetGoal(ctx, toolkit.GoalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, apperr.NotFound("goal_not_found", "goal %s not found", toolkit.GoalID)
	}

	levels, err := e.Levels(ctx, goal.ID)
	if err != nil {
		return nil, err
	}

	earned, err := e.store.EarnedPoints(ctx, userID, goal.ID)
	if err != nil {
		return nil, err
	}

	level, err := e.TryUnlockLevel(ctx, userID, goal.ID, levels, earned)
	if err != nil {
		return nil, err
	}

	if level == nil {
		return &models.CheckGoalLevelResult{Outcome: models.OutcomeNoNewLevel, GoalID: goal.ID}, nil
	}
	return &models.CheckGoalLevelResult{Outcome: models.OutcomeLevelUnlocked, GoalID: goal.ID, Level: level}, nil
}
