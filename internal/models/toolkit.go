package models

// ToolkitType discriminates the loggable activity kinds
type ToolkitType string

const (
	ToolkitSteps         ToolkitType = "STEPS"
	ToolkitSleepCheck    ToolkitType = "SLEEP_CHECK"
	ToolkitRunning       ToolkitType = "RUNNING"
	ToolkitMedication    ToolkitType = "MEDICATION"
	ToolkitMood          ToolkitType = "MOOD"
	ToolkitSport         ToolkitType = "SPORT"
	ToolkitAlcoholIntake ToolkitType = "ALCOHOL_INTAKE"
	ToolkitAudio         ToolkitType = "AUDIO"
	ToolkitAddictionLog  ToolkitType = "ADDICTION_LOG"
	ToolkitDrinkWater    ToolkitType = "DRINK_WATER"
	ToolkitMeditation    ToolkitType = "MEDITATION"
	ToolkitWeight        ToolkitType = "WEIGHT"
	ToolkitBloodPressure ToolkitType = "BLOOD_PRESSURE"
	ToolkitHeartRate     ToolkitType = "HEART_RATE"
	ToolkitAppointment   ToolkitType = "APPOINTMENT"
	ToolkitForm          ToolkitType = "FORM"
	ToolkitEpisodes      ToolkitType = "EPISODES"
	ToolkitHabit         ToolkitType = "HABIT"
	ToolkitVideo         ToolkitType = "VIDEO"
)

// AllToolkitTypes is the declared enumeration, in a stable order
var AllToolkitTypes = []ToolkitType{
	ToolkitSteps,
	ToolkitSleepCheck,
	ToolkitRunning,
	ToolkitMedication,
	ToolkitMood,
	ToolkitSport,
	ToolkitAlcoholIntake,
	ToolkitAudio,
	ToolkitAddictionLog,
	ToolkitDrinkWater,
	ToolkitMeditation,
	ToolkitWeight,
	ToolkitBloodPressure,
	ToolkitHeartRate,
	ToolkitAppointment,
	ToolkitForm,
	ToolkitEpisodes,
	ToolkitHabit,
	ToolkitVideo,
}

// IsValid reports whether t is part of the declared enumeration
func (t ToolkitType) IsValid() bool {
	for _, known := range AllToolkitTypes {
		if t == known {
			return true
		}
	}
	return false
}

// GraphShape describes how a toolkit's answers are plotted
type GraphShape string

const (
	GraphBar       GraphShape = "BAR"
	GraphRange     GraphShape = "RANGE"
	GraphScattered GraphShape = "SCATTERED"
)

// Aggregate is the SQL aggregate applied to a value field
type Aggregate string

const (
	AggregateSum Aggregate = "SUM"
	AggregateAvg Aggregate = "AVG"
)

// GraphSpec holds the graphing metadata of a toolkit
type GraphSpec struct {
	Shape         GraphShape `yaml:"shape" json:"shape"`
	Aggregate     Aggregate  `yaml:"aggregate" json:"aggregate"`
	RangeMinField string     `yaml:"range_min_field" json:"range_min_field,omitempty"`
	RangeMaxField string     `yaml:"range_max_field" json:"range_max_field,omitempty"`
}

// AverageSpec names one average computed over a graph window
type AverageSpec struct {
	Name      string    `yaml:"name" json:"name"`
	Field     string    `yaml:"field" json:"field"`
	Aggregate Aggregate `yaml:"aggregate" json:"aggregate"`
}

// OptionSpec describes where selectable targets and the user's selection live
type OptionSpec struct {
	Table         string `yaml:"table" json:"table"`
	Field         string `yaml:"field" json:"field"`
	SelectedTable string `yaml:"selected_table" json:"selected_table"`
	SelectedField string `yaml:"selected_field" json:"selected_field"`
}

// ToolkitDefinition is the storage and aggregation contract of one toolkit type.
// Optional capabilities are nil/empty rather than absent from the registry.
type ToolkitDefinition struct {
	Type        ToolkitType   `yaml:"type" json:"type"`
	AnswerTable string        `yaml:"answer_table" json:"answer_table"`
	ValueField  string        `yaml:"value_field" json:"value_field,omitempty"`
	Options     *OptionSpec   `yaml:"options" json:"options,omitempty"`
	Graph       *GraphSpec    `yaml:"graph" json:"graph,omitempty"`
	Averages    []AverageSpec `yaml:"averages" json:"averages,omitempty"`
	History     bool          `yaml:"history" json:"history"`
	StreakField string        `yaml:"streak_field" json:"streak_field,omitempty"`
}

// Capability names an operation a toolkit type may or may not support
type Capability string

const (
	CapabilityGraph    Capability = "graph"
	CapabilityAverages Capability = "averages"
	CapabilityHistory  Capability = "history"
	CapabilityOptions  Capability = "options"
	CapabilityStreak   Capability = "streak"
	CapabilityValue    Capability = "value"
)

// Supports reports whether the definition carries the given capability
func (d *ToolkitDefinition) Supports(c Capability) bool {
	if d == nil {
		return false
	}
	switch c {
	case CapabilityGraph:
		return d.Graph != nil
	case CapabilityAverages:
		return len(d.Averages) > 0
	case CapabilityHistory:
		return d.History
	case CapabilityOptions:
		return d.Options != nil
	case CapabilityStreak:
		return d.StreakField != ""
	case CapabilityValue:
		return d.ValueField != ""
	}
	return false
}

// Toolkit is a catalog row mapping an API toolkit id to its type and goal
type Toolkit struct {
	ID              string      `db:"id" json:"id"`
	Type            ToolkitType `db:"tool_kit_type" json:"tool_kit_type"`
	Title           string      `db:"title" json:"title"`
	GoalID          string      `db:"goal_id" json:"goal_id,omitempty"`
	HLPRewardPoints int         `db:"hlp_reward_points" json:"hlp_reward_points"`
}

// Schedule is a user's recurring plan for a toolkit. Owned by the scheduling subsystem.
type Schedule struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"user_id"`
	ToolkitID    string `db:"tool_kit_id" json:"tool_kit_id"`
	RepeatPerDay int    `db:"repeat_per_day" json:"repeat_per_day"`
	ScheduleType string `db:"schedule_type" json:"schedule_type"`
}
