package models

import (
	"strings"
	"time"
)

// Granularity is the time range a graph covers
type Granularity string

const (
	GranularityDay   Granularity = "DAY"
	GranularityWeek  Granularity = "WEEK"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// ParseGranularity accepts the range names case-insensitively
func ParseGranularity(s string) (Granularity, bool) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(s)))
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return g, true
	}
	return "", false
}

// DateWindow is an inclusive range of calendar dates
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GraphPoint is one plotted point. Which fields are set depends on the shape:
// BAR uses Label/Value, RANGE uses Label/Start/End, SCATTERED uses X/Y.
type GraphPoint struct {
	Label string   `json:"label,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

// BarPoint builds a BAR point
func BarPoint(label string, value float64) GraphPoint {
	return GraphPoint{Label: label, Value: &value}
}

// RangePoint builds a RANGE point
func RangePoint(label string, start, end float64) GraphPoint {
	return GraphPoint{Label: label, Start: &start, End: &end}
}

// ScatterPoint builds a SCATTERED point
func ScatterPoint(x, y float64) GraphPoint {
	return GraphPoint{X: &x, Y: &y}
}

// AverageValue is one named average over the graph window
type AverageValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// GraphData is the response of a graph request
type GraphData struct {
	ToolkitType ToolkitType    `json:"tool_kit_type"`
	GraphType   GraphShape     `json:"graph_type"`
	GraphRange  Granularity    `json:"graph_range"`
	Window      DateWindow     `json:"window"`
	Data        []GraphPoint   `json:"data"`
	Labels      []string       `json:"labels"`
	Averages    []AverageValue `json:"averages"`
}
