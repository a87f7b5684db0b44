package answers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
	"github.com/terra-clan/toolkit-engine/internal/registry"
)

type fakeStore struct {
	mu       sync.Mutex
	inserted []models.Answer
	sessions map[string]models.Answer
	audios   []models.PlayedAudio
	target   float64
	hasTgt   bool
	sum      float64
	count    int64
	limit    int
}

func (f *fakeStore) InsertAnswer(_ context.Context, _ models.ToolkitDefinition, answer models.Answer) (models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	answer.Base().ID = "ans-" + string(rune('a'+len(f.inserted)))
	f.inserted = append(f.inserted, answer)
	return answer, nil
}

func (f *fakeStore) LatestAnswerForSchedule(_ context.Context, _ models.ToolkitDefinition, scheduleID string) (models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.inserted) - 1; i >= 0; i-- {
		if f.inserted[i].Base().ScheduleID == scheduleID {
			return f.inserted[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) AnswerBySession(_ context.Context, _ models.ToolkitDefinition, _, sessionID string) (models.Answer, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeStore) PlayedAudios(_ context.Context, _, _ string) ([]models.PlayedAudio, error) {
	return f.audios, nil
}

func (f *fakeStore) AnswerHistory(_ context.Context, _ models.ToolkitDefinition, _, _ string, limit, _ int) ([]models.Answer, error) {
	f.limit = limit
	return f.inserted, nil
}

func (f *fakeStore) CountAnswersInRange(context.Context, models.ToolkitDefinition, string, string, time.Time, time.Time) (int64, error) {
	return f.count, nil
}

func (f *fakeStore) SumValueFieldInRange(context.Context, models.ToolkitDefinition, string, string, string, time.Time, time.Time) (float64, error) {
	return f.sum, nil
}

func (f *fakeStore) SelectedTarget(context.Context, models.ToolkitDefinition, string) (float64, bool, error) {
	return f.target, f.hasTgt, nil
}

func (f *fakeStore) UpsertPlayedAudio(_ context.Context, audio models.PlayedAudio) (*models.PlayedAudio, error) {
	audio.ID = "pa-1"
	return &audio, nil
}

type fakeCatalog struct {
	toolkits  map[string]models.Toolkit
	schedules map[string]models.Schedule
}

func (c *fakeCatalog) GetToolkit(_ context.Context, id string) (*models.Toolkit, error) {
	tk, ok := c.toolkits[id]
	if !ok {
		return nil, nil
	}
	return &tk, nil
}

func (c *fakeCatalog) GetSchedule(_ context.Context, id string) (*models.Schedule, error) {
	s, ok := c.schedules[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *fakeCatalog) GetActivity(_ context.Context, id string) (*models.Activity, error) {
	return &models.Activity{ID: id, Title: "Cycling"}, nil
}

func (c *fakeCatalog) GetIntensity(_ context.Context, id string) (*models.Intensity, error) {
	return &models.Intensity{ID: id, Title: "High"}, nil
}

func (c *fakeCatalog) GetAlcoholType(_ context.Context, id string) (*models.AlcoholType, error) {
	return &models.AlcoholType{ID: id, Title: "Wine"}, nil
}

func (c *fakeCatalog) GetMoodCategory(_ context.Context, id string) (*models.MoodCategory, error) {
	return &models.MoodCategory{ID: id, Title: "Happy"}, nil
}

func (c *fakeCatalog) MoodSubCategories(_ context.Context, categoryID string, ids []string) ([]models.MoodSubCategory, error) {
	var out []models.MoodSubCategory
	for _, id := range ids {
		if id != "foreign" {
			out = append(out, models.MoodSubCategory{ID: id, CategoryID: categoryID})
		}
	}
	return out, nil
}

type fakeGoals struct {
	calls int
	err   error
}

func (g *fakeGoals) CheckGoalLevel(context.Context, string, string) (*models.CheckGoalLevelResult, error) {
	g.calls++
	return &models.CheckGoalLevelResult{Outcome: models.OutcomeNoNewLevel}, g.err
}

type fixture struct {
	svc     *Service
	store   *fakeStore
	catalog *fakeCatalog
	goals   *fakeGoals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.LoadDefault()
	require.NoError(t, err)

	store := &fakeStore{sessions: map[string]models.Answer{}}
	catalog := &fakeCatalog{
		toolkits: map[string]models.Toolkit{
			"tk-steps":    {ID: "tk-steps", Type: models.ToolkitSteps, GoalID: "g1", HLPRewardPoints: 15},
			"tk-addict":   {ID: "tk-addict", Type: models.ToolkitAddictionLog, HLPRewardPoints: 5},
			"tk-audio":    {ID: "tk-audio", Type: models.ToolkitAudio},
			"tk-episodes": {ID: "tk-episodes", Type: models.ToolkitEpisodes},
			"tk-sport":    {ID: "tk-sport", Type: models.ToolkitSport},
			"tk-mood":     {ID: "tk-mood", Type: models.ToolkitMood},
		},
		schedules: map[string]models.Schedule{
			"s-steps":  {ID: "s-steps", UserID: "u1", ToolkitID: "tk-steps", RepeatPerDay: 2},
			"s-addict": {ID: "s-addict", UserID: "u1", ToolkitID: "tk-addict", RepeatPerDay: 1},
			"s-audio":  {ID: "s-audio", UserID: "u1", ToolkitID: "tk-audio", RepeatPerDay: 1},
			"s-other":  {ID: "s-other", UserID: "u2", ToolkitID: "tk-steps", RepeatPerDay: 1},
		},
	}
	goals := &fakeGoals{}
	resolver := NewResolver(reg, store, catalog)

	return &fixture{
		svc:     NewService(reg, store, catalog, resolver, goals),
		store:   store,
		catalog: catalog,
		goals:   goals,
	}
}

func stepsRequest(payload string) models.SaveAnswerRequest {
	return models.SaveAnswerRequest{
		ScheduleID:  "s-steps",
		SessionID:   "sess-1",
		SessionDate: "2024-03-06",
		SessionTime: "09:30",
		Answer:      json.RawMessage(payload),
	}
}

func TestSave_Steps(t *testing.T) {
	f := newFixture(t)
	feeling := 3
	req := stepsRequest(`{"steps": 8000, "user_id": "spoofed"}`)
	req.Feeling = &feeling

	resp, err := f.svc.Save(context.Background(), "u1", "tk-steps", req)
	require.NoError(t, err)
	assert.Equal(t, "s-steps", resp.ScheduleID)
	assert.NotEmpty(t, resp.ID)

	require.Len(t, f.store.inserted, 1)
	steps := f.store.inserted[0].(*models.StepsAnswer)
	assert.Equal(t, 8000, steps.Steps)
	assert.Equal(t, "u1", steps.UserID)
	assert.Equal(t, "tk-steps", steps.ToolkitID)
	assert.Equal(t, 15, steps.HLPPointsEarned)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), steps.SessionDate)
	assert.Equal(t, 3, *steps.Feeling)

	assert.Equal(t, 1, f.goals.calls)
}

func TestSave_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  func() models.SaveAnswerRequest
	}{
		{"negative steps", func() models.SaveAnswerRequest { return stepsRequest(`{"steps": -1}`) }},
		{"missing payload", func() models.SaveAnswerRequest { return stepsRequest(``) }},
		{"null payload", func() models.SaveAnswerRequest { return stepsRequest(`null`) }},
		{"malformed payload", func() models.SaveAnswerRequest { return stepsRequest(`{"steps": "many"}`) }},
		{"bad clock time", func() models.SaveAnswerRequest {
			r := stepsRequest(`{"steps": 1}`)
			r.SessionTime = "25:99"
			return r
		}},
		{"bad date", func() models.SaveAnswerRequest {
			r := stepsRequest(`{"steps": 1}`)
			r.SessionDate = "06/03/2024"
			return r
		}},
		{"feeling out of range", func() models.SaveAnswerRequest {
			r := stepsRequest(`{"steps": 1}`)
			bad := 9
			r.Feeling = &bad
			return r
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Save(context.Background(), "u1", "tk-steps", tt.req())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)
			assert.Equal(t, "invalid_answer_payload", apperr.CodeOf(err))
			assert.Empty(t, f.store.inserted)
		})
	}
}

func TestSave_ValidationNamesJSONFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Save(context.Background(), "u1", "tk-steps", stepsRequest(`{"steps": -5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps (gte)")
}

func TestSave_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Save(context.Background(), "u1", "tk-missing", stepsRequest(`{"steps": 1}`))
	assert.Equal(t, "toolkit_not_found", apperr.CodeOf(err))

	req := stepsRequest(`{"steps": 1}`)
	req.ScheduleID = "s-other"
	_, err = f.svc.Save(context.Background(), "u1", "tk-steps", req)
	assert.Equal(t, "schedule_not_found", apperr.CodeOf(err))

	req.ScheduleID = "s-addict"
	_, err = f.svc.Save(context.Background(), "u1", "tk-steps", req)
	assert.Equal(t, "schedule_not_found", apperr.CodeOf(err))
}

func TestSave_StreakCarriesForward(t *testing.T) {
	f := newFixture(t)
	req := models.SaveAnswerRequest{
		ScheduleID:  "s-addict",
		SessionDate: "2024-03-06",
		SessionTime: "21:00",
		Answer:      json.RawMessage(`{"days_without_addiction": 40}`),
	}

	for i, want := range []int{0, 1, 2} {
		req.SessionID = "sess-" + string(rune('0'+i))
		_, err := f.svc.Save(context.Background(), "u1", "tk-addict", req)
		require.NoError(t, err)
		got := f.store.inserted[i].(*models.AddictionLogAnswer)
		assert.Equal(t, want, got.DaysWithoutAddiction)
	}

	assert.Zero(t, f.goals.calls, "toolkit without goal is not checked")
}

func TestSave_GoalCheckFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.goals.err = errors.New("points query failed")

	resp, err := f.svc.Save(context.Background(), "u1", "tk-steps", stepsRequest(`{"steps": 10}`))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 1, f.goals.calls)
}

func TestGet_ResolvesReferenceData(t *testing.T) {
	f := newFixture(t)
	f.store.sessions["sport-1"] = &models.SportAnswer{ActivityID: "act-1", IntensityID: "int-3", Duration: 45}
	f.store.sessions["mood-1"] = &models.MoodAnswer{MoodCategoryID: "happy", MoodSubCategoryIDs: []string{"calm", "foreign"}}
	f.store.audios = []models.PlayedAudio{{ID: "pa", AudioFileID: "track-1", ConsumedDuration: 120}}
	f.store.sessions["audio-1"] = &models.AudioAnswer{AnswerBase: models.AnswerBase{ScheduleID: "s-audio", SessionID: "audio-1"}}

	sport, err := f.svc.Get(context.Background(), "u1", "tk-sport", "sport-1")
	require.NoError(t, err)
	assert.Equal(t, models.ToolkitSport, sport.ToolkitType)
	s := sport.Answer.(*models.SportAnswer)
	assert.Equal(t, "Cycling", s.Activity.Title)
	assert.Equal(t, "High", s.Intensity.Title)

	mood, err := f.svc.Get(context.Background(), "u1", "tk-mood", "mood-1")
	require.NoError(t, err)
	m := mood.Answer.(*models.MoodAnswer)
	assert.Equal(t, "Happy", m.MoodCategory.Title)
	require.Len(t, m.MoodSubCategories, 1)
	assert.Equal(t, "calm", m.MoodSubCategories[0].ID)

	audio, err := f.svc.Get(context.Background(), "u1", "tk-audio", "audio-1")
	require.NoError(t, err)
	assert.Len(t, audio.Answer.(*models.AudioAnswer).PlayedAudios, 1)

	_, err = f.svc.Get(context.Background(), "u1", "tk-sport", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "toolkit_answer_not_found", apperr.CodeOf(err))
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), "u1", "tk-steps", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultHistoryLimit, f.store.limit)

	_, err = f.svc.History(context.Background(), "u1", "tk-steps", 5000, 0)
	require.NoError(t, err)
	assert.Equal(t, maxHistoryLimit, f.store.limit)

	_, err = f.svc.History(context.Background(), "u1", "tk-episodes", 10, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedOperation))
	assert.Equal(t, "toolkit_history_unsupported", apperr.CodeOf(err))
}

func TestUpdateAudioConsumedDuration(t *testing.T) {
	f := newFixture(t)

	audio, err := f.svc.UpdateAudioConsumedDuration(context.Background(), "u1", "s-audio", "sess-1", "track-9",
		models.AudioProgressRequest{ConsumedDuration: 300})
	require.NoError(t, err)
	assert.Equal(t, "track-9", audio.AudioFileID)
	assert.Equal(t, 300, audio.ConsumedDuration)

	_, err = f.svc.UpdateAudioConsumedDuration(context.Background(), "u1", "s-steps", "sess-1", "track-9",
		models.AudioProgressRequest{ConsumedDuration: 300})
	assert.Equal(t, "schedule_not_audio", apperr.CodeOf(err))

	_, err = f.svc.UpdateAudioConsumedDuration(context.Background(), "u1", "s-audio", "sess-1", "track-9",
		models.AudioProgressRequest{ConsumedDuration: -1})
	assert.Equal(t, "invalid_audio_progress", apperr.CodeOf(err))
}

func TestScheduleProgress(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("against selected target", func(t *testing.T) {
		f := newFixture(t)
		f.store.target, f.store.hasTgt, f.store.sum = 10000, true, 35000

		p, err := f.svc.ScheduleProgress(context.Background(), "u1", "s-steps", start, end)
		require.NoError(t, err)
		assert.Equal(t, 70000.0, p.Target)
		assert.Equal(t, 50, p.ProgressPercent)
	})

	t.Run("against repeat per day", func(t *testing.T) {
		f := newFixture(t)
		f.store.count = 5

		p, err := f.svc.ScheduleProgress(context.Background(), "u1", "s-steps", start, end)
		require.NoError(t, err)
		assert.Equal(t, 14.0, p.Target)
		assert.Equal(t, 36, p.ProgressPercent)
	})

	t.Run("reversed range", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ScheduleProgress(context.Background(), "u1", "s-steps", end, start)
		assert.Equal(t, "invalid_date_range", apperr.CodeOf(err))
	})
}
