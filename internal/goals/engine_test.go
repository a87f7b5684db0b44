package goals

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// memoryStore enforces the (user, level) uniqueness the database constraint gives
type memoryStore struct {
	mu       sync.Mutex
	goals    map[string]models.Goal
	levels   map[string][]models.GoalLevel
	userGoal []models.Goal
	unlocks  map[string]models.UserGoalLevelUnlock
	points   map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		goals:   map[string]models.Goal{"g1": {ID: "g1", Title: "Move more"}},
		levels:  map[string][]models.GoalLevel{"g1": threeLevels()},
		unlocks: map[string]models.UserGoalLevelUnlock{},
		points:  map[string]int{},
	}
}

func (s *memoryStore) GetGoal(_ context.Context, goalID string) (*models.Goal, error) {
	goal, ok := s.goals[goalID]
	if !ok {
		return nil, nil
	}
	return &goal, nil
}

func (s *memoryStore) ListUserGoals(_ context.Context, _ string, limit int) ([]models.Goal, error) {
	if limit > 0 && limit < len(s.userGoal) {
		return s.userGoal[:limit], nil
	}
	return s.userGoal, nil
}

func (s *memoryStore) LevelsForGoal(_ context.Context, goalID string) ([]models.GoalLevel, error) {
	return append([]models.GoalLevel(nil), s.levels[goalID]...), nil
}

func (s *memoryStore) UnlockedLevelIDs(_ context.Context, userID, goalID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for _, u := range s.unlocks {
		if u.UserID == userID && u.GoalID == goalID {
			out[u.GoalLevelID] = true
		}
	}
	return out, nil
}

func (s *memoryStore) InsertUnlock(_ context.Context, unlock models.UserGoalLevelUnlock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := unlock.UserID + "/" + unlock.GoalLevelID
	if _, exists := s.unlocks[key]; exists {
		return false, nil
	}
	s.unlocks[key] = unlock
	return true, nil
}

func (s *memoryStore) EarnedPoints(_ context.Context, userID, goalID string) (int, error) {
	return s.points[userID+"/"+goalID], nil
}

func (s *memoryStore) GetToolkit(_ context.Context, id string) (*models.Toolkit, error) {
	switch id {
	case "tk-steps":
		return &models.Toolkit{ID: id, Type: models.ToolkitSteps, GoalID: "g1"}, nil
	case "tk-loose":
		return &models.Toolkit{ID: id, Type: models.ToolkitMood}, nil
	}
	return nil, nil
}

func (s *memoryStore) unlockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unlocks)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LevelUnlockedEvent
	err    error
}

func (p *recordingPublisher) PublishLevelUnlocked(_ context.Context, event models.LevelUnlockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestTryUnlockLevel_ConcurrentCallsUnlockOnce(t *testing.T) {
	store := newMemoryStore()
	pub := &recordingPublisher{}
	engine := NewEngine(store, store, pub)

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var unlocked []*models.GoalLevel

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := engine.TryUnlockLevel(context.Background(), "u1", "g1", threeLevels(), 120)
			assert.NoError(t, err)
			if level != nil {
				mu.Lock()
				unlocked = append(unlocked, level)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.unlockCount())
	assert.Equal(t, 1, pub.count())
	require.Len(t, unlocked, 1)
	assert.Equal(t, "l1", unlocked[0].ID)
	assert.Equal(t, "l1", pub.events[0].GoalLevelID)
	assert.Equal(t, 1, pub.events[0].SequenceNumber)
}

func TestTryUnlockLevel_BelowThreshold(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, store, &recordingPublisher{})

	level, err := engine.TryUnlockLevel(context.Background(), "u1", "g1", threeLevels(), 99)
	require.NoError(t, err)
	assert.Nil(t, level)
	assert.Zero(t, store.unlockCount())
}

func TestTryUnlockLevel_UsesCumulativeThreshold(t *testing.T) {
	store := newMemoryStore()
	store.unlocks["u1/l1"] = models.UserGoalLevelUnlock{UserID: "u1", GoalID: "g1", GoalLevelID: "l1"}
	engine := NewEngine(store, store, &recordingPublisher{})

	level, err := engine.TryUnlockLevel(context.Background(), "u1", "g1", threeLevels(), 349)
	require.NoError(t, err)
	assert.Nil(t, level)

	level, err = engine.TryUnlockLevel(context.Background(), "u1", "g1", threeLevels(), 350)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, "l2", level.ID)
}

func TestTryUnlockLevel_PublishFailureKeepsUnlock(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, store, &recordingPublisher{err: errors.New("redis down")})

	level, err := engine.TryUnlockLevel(context.Background(), "u1", "g1", threeLevels(), 100)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, 1, store.unlockCount())
}

func TestCheckGoalLevel_SecondCallFindsNoNewLevel(t *testing.T) {
	store := newMemoryStore()
	store.points["u1/g1"] = 150
	pub := &recordingPublisher{}
	engine := NewEngine(store, store, pub)

	first, err := engine.CheckGoalLevel(context.Background(), "tk-steps", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLevelUnlocked, first.Outcome)
	require.NotNil(t, first.Level)
	assert.Equal(t, "l1", first.Level.ID)

	second, err := engine.CheckGoalLevel(context.Background(), "tk-steps", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoNewLevel, second.Outcome)
	assert.Nil(t, second.Level)

	assert.Equal(t, 1, pub.count())
}

func TestCheckGoalLevel_Errors(t *testing.T) {
	store := newMemoryStore()
	store.goals["g-empty"] = models.Goal{ID: "g-empty"}
	engine := NewEngine(store, store, nil)

	_, err := engine.CheckGoalLevel(context.Background(), "missing", "u1")
	assert.Equal(t, "toolkit_not_found", apperr.CodeOf(err))

	_, err = engine.CheckGoalLevel(context.Background(), "tk-loose", "u1")
	assert.Equal(t, "goal_not_found", apperr.CodeOf(err))

	delete(store.levels, "g1")
	_, err = engine.CheckGoalLevel(context.Background(), "tk-steps", "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNoLevelsDefined))
	assert.Equal(t, "goal_levels_not_defined", apperr.CodeOf(err))
}

func TestUserGoalLevels(t *testing.T) {
	store := newMemoryStore()
	store.goals["g2"] = models.Goal{ID: "g2", Title: "Sleep better"}
	store.goals["g-empty"] = models.Goal{ID: "g-empty", Title: "Unconfigured"}
	store.levels["g2"] = []models.GoalLevel{{ID: "s1", GoalID: "g2", SequenceNumber: 1, PointsRequiredToComplete: 50}}
	store.userGoal = []models.Goal{store.goals["g1"], store.goals["g-empty"], store.goals["g2"]}
	store.unlocks["u1/l1"] = models.UserGoalLevelUnlock{UserID: "u1", GoalID: "g1", GoalLevelID: "l1"}
	store.points["u1/g1"] = 120
	store.points["u1/g2"] = 10

	engine := NewEngine(store, store, nil)
	progress, err := engine.UserGoalLevels(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, progress, 2)

	assert.Equal(t, "g1", progress[0].GoalID)
	assert.Equal(t, "Move more", progress[0].GoalTitle)
	assert.Equal(t, "l2", progress[0].CurrentLevel.ID)
	assert.Equal(t, 35, progress[0].ProgressPercent)

	assert.Equal(t, "g2", progress[1].GoalID)
	assert.Equal(t, 20, progress[1].ProgressPercent)
}

func TestUserGoalLevels_InvalidLevelsFail(t *testing.T) {
	store := newMemoryStore()
	store.levels["g1"] = []models.GoalLevel{
		{ID: "a", SequenceNumber: 1, PointsRequiredToComplete: 500},
		{ID: "b", SequenceNumber: 2, PointsRequiredToComplete: 100},
	}
	store.userGoal = []models.Goal{store.goals["g1"]}

	_, err := NewEngine(store, store, nil).UserGoalLevels(context.Background(), "u1", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidConfiguration))
}
