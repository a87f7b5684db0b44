package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// AnswerStore persists and reads toolkit answers. Table and column names come
// from registry definitions; every value is passed as a parameter.
type AnswerStore struct {
	db Executor
}

// NewAnswerStore creates an answer store on the primary executor
func NewAnswerStore(db Executor) *AnswerStore {
	return &AnswerStore{db: db}
}

// InsertAnswer writes one answer row and returns the persisted record
func (s *AnswerStore) InsertAnswer(ctx context.Context, def models.ToolkitDefinition, answer models.Answer) (models.Answer, error) {
	if answer.ToolkitType() != def.Type {
		return nil, fmt.Errorf("answer of type %s cannot be stored as %s", answer.ToolkitType(), def.Type)
	}

	base := answer.Base()
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	base.SessionDate = dateOnly(base.SessionDate)

	columns, values := insertValues(answer)
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		def.AnswerTable, strings.Join(columns, ", "), placeholders(1, len(values)), selectList(answer),
	)

	rows, err := s.db.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s answer: %w", def.Type, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert of %s answer returned no row", def.Type)
	}

	return decodeAnswer(def.Type, rows[0])
}

// LatestAnswerForSchedule returns the most recent answer of a schedule, or nil
func (s *AnswerStore) LatestAnswerForSchedule(ctx context.Context, def models.ToolkitDefinition, scheduleID string) (models.Answer, error) {
	return s.queryOne(ctx, def, `schedule_id = $1 ORDER BY created_at DESC LIMIT 1`, scheduleID)
}

// AnswerBySession returns the user's answer for one session, or nil
func (s *AnswerStore) AnswerBySession(ctx context.Context, def models.ToolkitDefinition, userID, sessionID string) (models.Answer, error) {
	return s.queryOne(ctx, def, `user_id = $1 AND session_id = $2 ORDER BY created_at DESC LIMIT 1`, userID, sessionID)
}

// AnswerHistory lists a user's answers for a toolkit, newest session first
func (s *AnswerStore) AnswerHistory(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, limit, offset int) ([]models.Answer, error) {
	probe, err := models.NewAnswer(def.Type)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s
		WHERE user_id = $1 AND tool_kit_id = $2
		ORDER BY session_date DESC, session_time DESC, created_at DESC
		LIMIT $3 OFFSET $4`,
		selectList(probe), def.AnswerTable,
	)

	rows, err := s.db.Query(ctx, query, userID, toolkitID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s answers: %w", def.Type, err)
	}

	answers := make([]models.Answer, 0, len(rows))
	for _, row := range rows {
		answer, err := decodeAnswer(def.Type, row)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

// CountAnswersInRange counts a user's answers of a schedule between two dates inclusive
func (s *AnswerStore) CountAnswersInRange(ctx context.Context, def models.ToolkitDefinition, userID, scheduleID string, start, end time.Time) (int64, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*)::bigint AS total FROM %s
		WHERE user_id = $1 AND schedule_id = $2 AND session_date BETWEEN $3 AND $4`,
		def.AnswerTable,
	)

	rows, err := s.db.Query(ctx, query, userID, scheduleID, dateOnly(start), dateOnly(end))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s answers: %w", def.Type, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asInt64(rows[0]["total"])
}

// SumValueFieldInRange sums one numeric field of a schedule's answers between two dates inclusive.
// The field must be declared by the definition.
func (s *AnswerStore) SumValueFieldInRange(ctx context.Context, def models.ToolkitDefinition, field, userID, scheduleID string, start, end time.Time) (float64, error) {
	if !declaresField(def, field) {
		return 0, apperr.Unsupported("toolkit_value_unsupported", "toolkit type %s has no numeric field %q", def.Type, field)
	}

	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(%s), 0)::float8 AS total FROM %s
		WHERE user_id = $1 AND schedule_id = $2 AND session_date BETWEEN $3 AND $4`,
		field, def.AnswerTable,
	)

	rows, err := s.db.Query(ctx, query, userID, scheduleID, dateOnly(start), dateOnly(end))
	if err != nil {
		return 0, fmt.Errorf("failed to sum %s.%s: %w", def.AnswerTable, field, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asFloat64(rows[0]["total"])
}

// SelectedTarget returns the target value of the option selected for a schedule
func (s *AnswerStore) SelectedTarget(ctx context.Context, def models.ToolkitDefinition, scheduleID string) (float64, bool, error) {
	if def.Options == nil {
		return 0, false, nil
	}
	opts := def.Options

	query := fmt.Sprintf(
		`SELECT o.%s::float8 AS target
		FROM %s s
		JOIN %s o ON o.id = s.%s
		WHERE s.schedule_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1`,
		opts.Field, opts.SelectedTable, opts.Table, opts.SelectedField,
	)

	rows, err := s.db.Query(ctx, query, scheduleID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get selected %s option: %w", def.Type, err)
	}
	if len(rows) == 0 || rows[0]["target"] == nil {
		return 0, false, nil
	}

	target, err := asFloat64(rows[0]["target"])
	if err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// PlayedAudios lists the played-audio sub-records of one session
func (s *AnswerStore) PlayedAudios(ctx context.Context, scheduleID, sessionID string) ([]models.PlayedAudio, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM audio_tool_kit_played_files
		WHERE schedule_id = $1 AND session_id = $2
		ORDER BY updated_at`,
		selectList(models.PlayedAudio{}),
	)

	rows, err := s.db.Query(ctx, query, scheduleID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list played audios: %w", err)
	}

	audios := make([]models.PlayedAudio, 0, len(rows))
	for _, row := range rows {
		var audio models.PlayedAudio
		if err := decodeRow(row, &audio); err != nil {
			return nil, err
		}
		audios = append(audios, audio)
	}
	return audios, nil
}

// UpsertPlayedAudio records the consumed duration of an audio file in a session.
// A second call for the same (schedule, session, file) overwrites the duration.
func (s *AnswerStore) UpsertPlayedAudio(ctx context.Context, audio models.PlayedAudio) (*models.PlayedAudio, error) {
	if audio.ID == "" {
		audio.ID = uuid.NewString()
	}

	query := fmt.Sprintf(
		`INSERT INTO audio_tool_kit_played_files (id, schedule_id, session_id, audio_file_id, consumed_duration)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (schedule_id, session_id, audio_file_id) DO UPDATE SET
			consumed_duration = EXCLUDED.consumed_duration,
			updated_at = NOW()
		RETURNING %s`,
		selectList(audio),
	)

	rows, err := s.db.Query(ctx, query, audio.ID, audio.ScheduleID, audio.SessionID, audio.AudioFileID, audio.ConsumedDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert played audio: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("upsert of played audio returned no row")
	}

	var saved models.PlayedAudio
	if err := decodeRow(rows[0], &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *AnswerStore) queryOne(ctx context.Context, def models.ToolkitDefinition, where string, args ...any) (models.Answer, error) {
	probe, err := models.NewAnswer(def.Type)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, selectList(probe), def.AnswerTable, where)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s answer: %w", def.Type, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return decodeAnswer(def.Type, rows[0])
}

func decodeAnswer(t models.ToolkitType, row Row) (models.Answer, error) {
	answer, err := models.NewAnswer(t)
	if err != nil {
		return nil, err
	}
	if err := decodeRow(row, answer); err != nil {
		return nil, fmt.Errorf("failed to decode %s answer: %w", t, err)
	}
	return answer, nil
}

// declaresField reports whether field is one of the numeric fields the definition names
func declaresField(def models.ToolkitDefinition, field string) bool {
	if field == "" {
		return false
	}
	if field == def.ValueField || field == def.StreakField {
		return true
	}
	if def.Graph != nil && (field == def.Graph.RangeMinField || field == def.Graph.RangeMaxField) {
		return true
	}
	for _, avg := range def.Averages {
		if avg.Field == field {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
