package graph

import (
	"fmt"
	"strconv"
	"time"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

var weekdayKeys = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var monthKeys = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// dayLabelHours are the hours labelled on a DAY axis
var dayLabelHours = []int{1, 6, 12, 18}

// Window returns the calendar window containing anchor for a granularity.
// Weeks are ISO weeks, Monday through Sunday.
func Window(anchor time.Time, g models.Granularity) (models.DateWindow, error) {
	y, m, d := anchor.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch g {
	case models.GranularityDay:
		return models.DateWindow{Start: day, End: day}, nil
	case models.GranularityWeek:
		sinceMonday := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -sinceMonday)
		return models.DateWindow{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case models.GranularityMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return models.DateWindow{Start: start, End: start.AddDate(0, 1, -1)}, nil
	case models.GranularityYear:
		return models.DateWindow{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	return models.DateWindow{}, fmt.Errorf("unknown granularity %q", g)
}

// BucketKeys enumerates every bucket key of the window in order:
// hours 0..23, ISO weekdays 1..7, days 1..N of the month, months 1..12.
func BucketKeys(g models.Granularity, window models.DateWindow) []int {
	var first, last int
	switch g {
	case models.GranularityDay:
		first, last = 0, 23
	case models.GranularityWeek:
		first, last = 1, 7
	case models.GranularityMonth:
		first, last = 1, window.End.Day()
	case models.GranularityYear:
		first, last = 1, 12
	default:
		return nil
	}

	keys := make([]int, 0, last-first+1)
	for k := first; k <= last; k++ {
		keys = append(keys, k)
	}
	return keys
}

// LabelKey is the untranslated label of a bucket
func LabelKey(g models.Granularity, key int) string {
	switch g {
	case models.GranularityWeek:
		if key >= 1 && key <= 7 {
			return weekdayKeys[key-1]
		}
	case models.GranularityYear:
		if key >= 1 && key <= 12 {
			return monthKeys[key-1]
		}
	}
	return strconv.Itoa(key)
}

// axisKeys are the buckets that carry an axis label
func axisKeys(g models.Granularity, keys []int) []int {
	if g == models.GranularityDay {
		return dayLabelHours
	}
	return keys
}
