package models

import "time"

// Reference rows joined onto answers by the resolver

type Activity struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

type Intensity struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

type AlcoholType struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

type MoodCategory struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

type MoodSubCategory struct {
	ID         string `db:"id" json:"id"`
	CategoryID string `db:"mood_category_id" json:"mood_category_id"`
	Title      string `db:"title" json:"title"`
}

// PlayedAudio records how much of one audio file was consumed in a session.
// It is the only answer sub-record that is updated after creation.
type PlayedAudio struct {
	ID               string    `db:"id" json:"id"`
	ScheduleID       string    `db:"schedule_id" json:"schedule_id"`
	SessionID        string    `db:"session_id" json:"session_id"`
	AudioFileID      string    `db:"audio_file_id" json:"audio_file_id"`
	ConsumedDuration int       `db:"consumed_duration" json:"consumed_duration"`
	UpdatedAt        time.Time `db:"updated_at,readonly" json:"updated_at"`
}
