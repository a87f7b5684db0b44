package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

// DefinitionSource resolves toolkit definitions; satisfied by *registry.Registry
type DefinitionSource interface {
	DefinitionFor(t models.ToolkitType) (models.ToolkitDefinition, error)
}

// GoalStore reads goals and levels and records level unlocks
type GoalStore struct {
	db   Executor
	defs DefinitionSource
}

// NewGoalStore creates a goal store
func NewGoalStore(db Executor, defs DefinitionSource) *GoalStore {
	return &GoalStore{db: db, defs: defs}
}

// GetGoal returns a goal by id, or nil
func (s *GoalStore) GetGoal(ctx context.Context, goalID string) (*models.Goal, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title FROM goals WHERE id = $1`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var goal models.Goal
	if err := decodeRow(rows[0], &goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

// ListUserGoals returns the goals a user has adopted, most recent first
func (s *GoalStore) ListUserGoals(ctx context.Context, userID string, limit int) ([]models.Goal, error) {
	query := `
		SELECT g.id, g.title
		FROM user_goals ug
		JOIN goals g ON g.id = ug.goal_id
		WHERE ug.user_id = $1
		ORDER BY ug.created_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user goals: %w", err)
	}

	goals := make([]models.Goal, 0, len(rows))
	for _, row := range rows {
		var goal models.Goal
		if err := decodeRow(row, &goal); err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// LevelsForGoal returns a goal's levels ordered by sequence number
func (s *GoalStore) LevelsForGoal(ctx context.Context, goalID string) ([]models.GoalLevel, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM goal_levels WHERE goal_id = $1 ORDER BY sequence_number`,
		selectList(models.GoalLevel{}),
	)

	rows, err := s.db.Query(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal levels: %w", err)
	}

	levels := make([]models.GoalLevel, 0, len(rows))
	for _, row := range rows {
		var level models.GoalLevel
		if err := decodeRow(row, &level); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// UnlockedLevelIDs returns the set of level ids the user has unlocked in a goal
func (s *GoalStore) UnlockedLevelIDs(ctx context.Context, userID, goalID string) (map[string]bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT goal_level_id FROM user_goal_levels WHERE user_id = $1 AND goal_id = $2`,
		userID, goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked levels: %w", err)
	}

	unlocked := make(map[string]bool, len(rows))
	for _, row := range rows {
		unlocked[asString(row["goal_level_id"])] = true
	}
	return unlocked, nil
}

// InsertUnlock records an unlock unless one already exists for (user, level).
// It reports whether this call created the row.
func (s *GoalStore) InsertUnlock(ctx context.Context, unlock models.UserGoalLevelUnlock) (bool, error) {
	if unlock.ID == "" {
		unlock.ID = uuid.NewString()
	}

	affected, err := s.db.Exec(ctx, `
		INSERT INTO user_goal_levels (id, user_id, goal_id, goal_level_id, unlocked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, goal_level_id) DO NOTHING
	`, unlock.ID, unlock.UserID, unlock.GoalID, unlock.GoalLevelID, unlock.UnlockedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert level unlock: %w", err)
	}

	return affected == 1, nil
}

// EarnedPoints sums the points a user earned on every toolkit linked to a goal.
// The answer tables are taken from the registry, one UNION ALL branch per type.
func (s *GoalStore) EarnedPoints(ctx context.Context, userID, goalID string) (int, error) {
	rows, err := s.db.Query(ctx, `SELECT id, tool_kit_type FROM tool_kits WHERE goal_id = $1`, goalID)
	if err != nil {
		return 0, fmt.Errorf("failed to list goal toolkits: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	idsByTable := make(map[string][]string)
	for _, row := range rows {
		def, err := s.defs.DefinitionFor(models.ToolkitType(asString(row["tool_kit_type"])))
		if err != nil {
			return 0, err
		}
		idsByTable[def.AnswerTable] = append(idsByTable[def.AnswerTable], asString(row["id"]))
	}

	tables := make([]string, 0, len(idsByTable))
	for table := range idsByTable {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	args := []any{userID}
	branches := make([]string, 0, len(tables))
	for _, table := range tables {
		args = append(args, idsByTable[table])
		branches = append(branches, fmt.Sprintf(
			`SELECT hlp_points_earned FROM %s WHERE user_id = $1 AND tool_kit_id = ANY($%d)`,
			table, len(args),
		))
	}

	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(hlp_points_earned), 0)::bigint AS points FROM (%s) AS earned`,
		strings.Join(branches, " UNION ALL "),
	)

	result, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sum earned points: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}

	points, err := asInt64(result[0]["points"])
	return int(points), err
}
