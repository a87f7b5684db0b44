package models

import "time"

// Goal is a user objective composed of ordered levels
type Goal struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

// GoalLevel is one point threshold of a goal.
// PointsRequiredToComplete is the level's own increment; the cumulative
// requirement is the sum over all preceding levels plus this one.
type GoalLevel struct {
	ID                       string `db:"id" json:"id"`
	GoalID                   string `db:"goal_id" json:"goal_id"`
	SequenceNumber           int    `db:"sequence_number" json:"sequence_number"`
	PointsRequiredToComplete int    `db:"points_required_to_complete" json:"points_required_to_complete"`
	Title                    string `db:"title" json:"title"`
	Color                    string `db:"color" json:"color"`
}

// UserGoalLevelUnlock is created exactly once per (UserID, GoalLevelID)
type UserGoalLevelUnlock struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	GoalID      string    `db:"goal_id" json:"goal_id"`
	GoalLevelID string    `db:"goal_level_id" json:"goal_level_id"`
	UnlockedAt  time.Time `db:"unlocked_at" json:"unlocked_at"`
}

// GoalProgress is the computed position of a user within a goal's levels
type GoalProgress struct {
	GoalID           string     `json:"goal_id"`
	GoalTitle        string     `json:"goal_title,omitempty"`
	CurrentLevel     *GoalLevel `json:"current_level"`
	EarnedPoints     int        `json:"earned_points"`
	RequiredPoints   int        `json:"required_points"`
	ProgressPercent  int        `json:"progress_percent"`
	IsFullyCompleted bool       `json:"is_fully_completed"`
	CompletedLevels  int        `json:"completed_levels"`
	TotalLevels      int        `json:"total_levels"`
}

// CheckOutcome is the result of a level check after an answer submission
type CheckOutcome string

const (
	OutcomeLevelUnlocked CheckOutcome = "level_unlocked"
	OutcomeNoNewLevel    CheckOutcome = "no_new_level"
)

// CheckGoalLevelResult is returned by the check-goal-level command
type CheckGoalLevelResult struct {
	Outcome CheckOutcome `json:"outcome"`
	GoalID  string       `json:"goal_id"`
	Level   *GoalLevel   `json:"level,omitempty"`
}

// LevelUnlockedEvent is published once per created unlock row
type LevelUnlockedEvent struct {
	UserID         string    `json:"user_id"`
	GoalID         string    `json:"goal_id"`
	GoalLevelID    string    `json:"goal_level_id"`
	Title          string    `json:"title"`
	SequenceNumber int       `json:"sequence_number"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}
