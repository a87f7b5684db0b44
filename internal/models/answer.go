package models

import (
	"encoding/json"
	"time"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
)

// AnswerBase holds the fields every toolkit answer row carries.
// A db tag with ",readonly" marks columns generated by the database.
type AnswerBase struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ToolkitID       string    `db:"tool_kit_id" json:"tool_kit_id"`
	ScheduleID      string    `db:"schedule_id" json:"schedule_id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	SessionDate     time.Time `db:"session_date" json:"session_date"`
	SessionTime     string    `db:"session_time" json:"session_time"`
	Feeling         *int      `db:"feeling" json:"feeling,omitempty"`
	Note            *string   `db:"note" json:"note,omitempty"`
	HLPPointsEarned int       `db:"hlp_points_earned" json:"hlp_points_earned"`
	CreatedAt       time.Time `db:"created_at,readonly" json:"created_at"`
}

// Base returns the common part of an answer
func (b *AnswerBase) Base() *AnswerBase { return b }

// Answer is the tagged union of toolkit answers. The tag is ToolkitType;
// each variant is a distinct struct embedding AnswerBase.
type Answer interface {
	ToolkitType() ToolkitType
	Base() *AnswerBase
}

type StepsAnswer struct {
	AnswerBase
	Steps int `db:"steps" json:"steps" validate:"gte=0"`
}

func (*StepsAnswer) ToolkitType() ToolkitType { return ToolkitSteps }

type SleepCheckAnswer struct {
	AnswerBase
	TotalSleepTime int  `db:"total_sleep_time" json:"total_sleep_time" validate:"gte=0,lte=1440"`
	DeepSleepTime  *int `db:"deep_sleep_time" json:"deep_sleep_time,omitempty" validate:"omitempty,gte=0,lte=1440"`
	LightSleepTime *int `db:"light_sleep_time" json:"light_sleep_time,omitempty" validate:"omitempty,gte=0,lte=1440"`
	SleepQuality   *int `db:"sleep_quality" json:"sleep_quality,omitempty" validate:"omitempty,gte=1,lte=10"`
}

func (*SleepCheckAnswer) ToolkitType() ToolkitType { return ToolkitSleepCheck }

type RunningAnswer struct {
	AnswerBase
	Distance float64 `db:"distance" json:"distance" validate:"gte=0"`
	Duration *int    `db:"duration" json:"duration,omitempty" validate:"omitempty,gte=0"`
}

func (*RunningAnswer) ToolkitType() ToolkitType { return ToolkitRunning }

type MedicationAnswer struct {
	AnswerBase
	DosesTaken   int     `db:"doses_taken" json:"doses_taken" validate:"gte=0"`
	MedicationID *string `db:"medication_id" json:"medication_id,omitempty"`
}

func (*MedicationAnswer) ToolkitType() ToolkitType { return ToolkitMedication }

type MoodAnswer struct {
	AnswerBase
	MoodCategoryID     string   `db:"mood_category_id" json:"mood_category_id" validate:"required"`
	MoodSubCategoryIDs []string `db:"mood_sub_category_ids" json:"mood_sub_category_ids" validate:"dive,required"`
	Intensity          *int     `db:"intensity" json:"intensity,omitempty" validate:"omitempty,gte=1,lte=10"`

	MoodCategory      *MoodCategory     `db:"-" json:"mood_category,omitempty"`
	MoodSubCategories []MoodSubCategory `db:"-" json:"mood_sub_categories,omitempty"`
}

func (*MoodAnswer) ToolkitType() ToolkitType { return ToolkitMood }

type SportAnswer struct {
	AnswerBase
	ActivityID  string `db:"activity_id" json:"activity_id" validate:"required"`
	IntensityID string `db:"intensity_id" json:"intensity_id" validate:"required"`
	Duration    int    `db:"duration" json:"duration" validate:"gte=0"`

	Activity  *Activity  `db:"-" json:"activity,omitempty"`
	Intensity *Intensity `db:"-" json:"intensity,omitempty"`
}

func (*SportAnswer) ToolkitType() ToolkitType { return ToolkitSport }

type AlcoholIntakeAnswer struct {
	AnswerBase
	AlcoholTypeID string `db:"alcohol_type_id" json:"alcohol_type_id" validate:"required"`
	Doses         int    `db:"doses" json:"doses" validate:"gte=0"`

	AlcoholType *AlcoholType `db:"-" json:"alcohol_type,omitempty"`
}

func (*AlcoholIntakeAnswer) ToolkitType() ToolkitType { return ToolkitAlcoholIntake }

type AudioAnswer struct {
	AnswerBase
	ConsumedDuration int `db:"consumed_duration" json:"consumed_duration" validate:"gte=0"`

	PlayedAudios []PlayedAudio `db:"-" json:"played_audios,omitempty"`
}

func (*AudioAnswer) ToolkitType() ToolkitType { return ToolkitAudio }

type AddictionLogAnswer struct {
	AnswerBase
	// Carried forward from the previous answer of the schedule
	DaysWithoutAddiction int `db:"days_without_addiction" json:"days_without_addiction"`
}

func (*AddictionLogAnswer) ToolkitType() ToolkitType { return ToolkitAddictionLog }

func (a *AddictionLogAnswer) Streak() int     { return a.DaysWithoutAddiction }
func (a *AddictionLogAnswer) SetStreak(n int) { a.DaysWithoutAddiction = n }

type DrinkWaterAnswer struct {
	AnswerBase
	Glasses int `db:"glasses" json:"glasses" validate:"gte=0"`
}

func (*DrinkWaterAnswer) ToolkitType() ToolkitType { return ToolkitDrinkWater }

type MeditationAnswer struct {
	AnswerBase
	MeditationTime int `db:"meditation_time" json:"meditation_time" validate:"gte=0"`
}

func (*MeditationAnswer) ToolkitType() ToolkitType { return ToolkitMeditation }

type WeightAnswer struct {
	AnswerBase
	Weight float64 `db:"weight" json:"weight" validate:"gt=0"`
}

func (*WeightAnswer) ToolkitType() ToolkitType { return ToolkitWeight }

type BloodPressureAnswer struct {
	AnswerBase
	LowestBP  int  `db:"lowest_bp" json:"lowest_bp" validate:"gt=0"`
	HighestBP int  `db:"highest_bp" json:"highest_bp" validate:"gt=0,gtefield=LowestBP"`
	Pulse     *int `db:"pulse" json:"pulse,omitempty" validate:"omitempty,gt=0"`
}

func (*BloodPressureAnswer) ToolkitType() ToolkitType { return ToolkitBloodPressure }

type HeartRateAnswer struct {
	AnswerBase
	HeartRate int `db:"heart_rate" json:"heart_rate" validate:"gt=0,lte=300"`
}

func (*HeartRateAnswer) ToolkitType() ToolkitType { return ToolkitHeartRate }

type AppointmentAnswer struct {
	AnswerBase
	AppointmentID string `db:"appointment_id" json:"appointment_id" validate:"required"`
	Attended      bool   `db:"attended" json:"attended"`
}

func (*AppointmentAnswer) ToolkitType() ToolkitType { return ToolkitAppointment }

type FormAnswer struct {
	AnswerBase
	FormID string `db:"form_id" json:"form_id" validate:"required"`
	Score  *int   `db:"score" json:"score,omitempty"`
}

func (*FormAnswer) ToolkitType() ToolkitType { return ToolkitForm }

type EpisodesAnswer struct {
	AnswerBase
	EpisodeID string `db:"episode_id" json:"episode_id" validate:"required"`
}

func (*EpisodesAnswer) ToolkitType() ToolkitType { return ToolkitEpisodes }

type HabitAnswer struct {
	AnswerBase
	HabitID   string `db:"habit_id" json:"habit_id" validate:"required"`
	Completed bool   `db:"completed" json:"completed"`
}

func (*HabitAnswer) ToolkitType() ToolkitType { return ToolkitHabit }

type VideoAnswer struct {
	AnswerBase
	VideoID          string `db:"video_id" json:"video_id" validate:"required"`
	ConsumedDuration int    `db:"consumed_duration" json:"consumed_duration" validate:"gte=0"`
}

func (*VideoAnswer) ToolkitType() ToolkitType { return ToolkitVideo }

// NewAnswer returns an empty variant for the given tag
func NewAnswer(t ToolkitType) (Answer, error) {
	switch t {
	case ToolkitSteps:
		return &StepsAnswer{}, nil
	case ToolkitSleepCheck:
		return &SleepCheckAnswer{}, nil
	case ToolkitRunning:
		return &RunningAnswer{}, nil
	case ToolkitMedication:
		return &MedicationAnswer{}, nil
	case ToolkitMood:
		return &MoodAnswer{}, nil
	case ToolkitSport:
		return &SportAnswer{}, nil
	case ToolkitAlcoholIntake:
		return &AlcoholIntakeAnswer{}, nil
	case ToolkitAudio:
		return &AudioAnswer{}, nil
	case ToolkitAddictionLog:
		return &AddictionLogAnswer{}, nil
	case ToolkitDrinkWater:
		return &DrinkWaterAnswer{}, nil
	case ToolkitMeditation:
		return &MeditationAnswer{}, nil
	case ToolkitWeight:
		return &WeightAnswer{}, nil
	case ToolkitBloodPressure:
		return &BloodPressureAnswer{}, nil
	case ToolkitHeartRate:
		return &HeartRateAnswer{}, nil
	case ToolkitAppointment:
		return &AppointmentAnswer{}, nil
	case ToolkitForm:
		return &FormAnswer{}, nil
	case ToolkitEpisodes:
		return &EpisodesAnswer{}, nil
	case ToolkitHabit:
		return &HabitAnswer{}, nil
	case ToolkitVideo:
		return &VideoAnswer{}, nil
	}
	return nil, apperr.NotFound("toolkit_type_not_found", "unknown toolkit type %q", t)
}

// StreakAnswer is implemented by variants whose counter is carried forward
// from the previous answer of the same schedule
type StreakAnswer interface {
	Answer
	Streak() int
	SetStreak(n int)
}

// ResolvedAnswer is an answer enriched with its joined reference data
type ResolvedAnswer struct {
	ToolkitType ToolkitType `json:"toolkit_type"`
	Answer      Answer      `json:"answer"`
}

// SaveAnswerRequest is the submission payload for one toolkit session.
// Answer is decoded once the toolkit type is known.
type SaveAnswerRequest struct {
	ScheduleID  string          `json:"schedule_id" validate:"required"`
	SessionID   string          `json:"session_id" validate:"required"`
	SessionDate string          `json:"session_date" validate:"required,datetime=2006-01-02"`
	SessionTime string          `json:"session_time" validate:"required,clocktime"`
	Feeling     *int            `json:"feeling,omitempty" validate:"omitempty,gte=1,lte=5"`
	Note        *string         `json:"note,omitempty" validate:"omitempty,max=2000"`
	Answer      json.RawMessage `json:"answer"`
}

// SaveAnswerResponse echoes the persisted answer identity
type SaveAnswerResponse struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id"`
}

// AudioProgressRequest updates the consumed duration of one played audio file
type AudioProgressRequest struct {
	ConsumedDuration int `json:"consumed_duration" validate:"gte=0"`
}

// ScheduleProgress reports completion of a schedule over a date range
type ScheduleProgress struct {
	ScheduleID      string      `json:"schedule_id"`
	ToolkitType     ToolkitType `json:"tool_kit_type"`
	Achieved        float64     `json:"achieved"`
	Target          float64     `json:"target"`
	ProgressPercent int         `json:"progress_percent"`
}
