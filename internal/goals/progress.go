package goals

import (
	"errors"
	"fmt"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// ValidateLevels checks a goal's level list as loaded from storage: ordered by
// sequence number without duplicates, with non-negative thresholds that never
// decrease. An empty list is NoLevelsDefined.
func ValidateLevels(goalID string, levels []models.GoalLevel) error {
	if len(levels) == 0 {
		return apperr.NoLevels(goalID)
	}

	var problems []error
	for i, level := range levels {
		if level.PointsRequiredToComplete < 0 {
			problems = append(problems, fmt.Errorf("level %d has negative threshold %d", level.SequenceNumber, level.PointsRequiredToComplete))
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1]
		switch {
		case level.SequenceNumber == prev.SequenceNumber:
			problems = append(problems, fmt.Errorf("duplicate sequence number %d", level.SequenceNumber))
		case level.SequenceNumber < prev.SequenceNumber:
			problems = append(problems, fmt.Errorf("level %d is out of order after %d", level.SequenceNumber, prev.SequenceNumber))
		}
		if level.PointsRequiredToComplete < prev.PointsRequiredToComplete {
			problems = append(problems, fmt.Errorf("level %d threshold %d is below level %d threshold %d",
				level.SequenceNumber, level.PointsRequiredToComplete, prev.SequenceNumber, prev.PointsRequiredToComplete))
		}
	}

	if len(problems) > 0 {
		return apperr.InvalidConfiguration("goal_levels_invalid",
			fmt.Errorf("goal %s: %w", goalID, errors.Join(problems...)))
	}
	return nil
}

// ComputeProgress places a user within a goal's levels. Completed levels are
// those with an unlock record; the current level is the first one without,
// or the last level once every level is unlocked.
func ComputeProgress(levels []models.GoalLevel, unlocked map[string]bool, earned int) (models.GoalProgress, error) {
	if len(levels) == 0 {
		return models.GoalProgress{}, apperr.NoLevels("")
	}

	progress := models.GoalProgress{
		EarnedPoints: earned,
		TotalLevels:  len(levels),
	}

	var current *models.GoalLevel
	for i := range levels {
		if unlocked[levels[i].ID] {
			progress.CompletedLevels++
			progress.RequiredPoints += levels[i].PointsRequiredToComplete
			continue
		}
		if current == nil {
			current = &levels[i]
		}
	}

	if current == nil {
		last := levels[len(levels)-1]
		current = &last
		progress.IsFullyCompleted = true
	} else {
		progress.RequiredPoints += current.PointsRequiredToComplete
	}

	level := *current
	progress.CurrentLevel = &level
	progress.GoalID = level.GoalID
	progress.ProgressPercent = Percent(earned, progress.RequiredPoints)

	return progress, nil
}

// Percent is min(100, ceil(100*earned/required)); a zero requirement is complete
func Percent(earned, required int) int {
	if required <= 0 {
		return 100
	}
	if earned <= 0 {
		return 0
	}
	pct := (100*earned + required - 1) / required
	if pct > 100 {
		return 100
	}
	return pct
}

// nextThreshold returns the first level without an unlock record and the
// cumulative points needed to unlock it
func nextThreshold(levels []models.GoalLevel, unlocked map[string]bool) (*models.GoalLevel, int) {
	required := 0
	var next *models.GoalLevel
	for i := range levels {
		if unlocked[levels[i].ID] {
			required += levels[i].PointsRequiredToComplete
			continue
		}
		if next == nil {
			next = &levels[i]
		}
	}
	if next == nil {
		return nil, required
	}
	return next, required + next.PointsRequiredToComplete
}
