package tasks

import (
	"time"
)

// clockTime is a wall-clock trigger time in the configured local timezone.
type clockTime struct {
	Hour   int
	Minute int
}

// jobSchedule describes when a named job fires. A nil Weekday means every
// day; otherwise only on that weekday.
type jobSchedule struct {
	Name    string
	Times   []clockTime
	Weekday *time.Weekday
}

func weekdayPtr(d time.Weekday) *time.Weekday {
	return &d
}

// defaultSchedules is the fixed job calendar. Position checks run twice a
// day; the summary and the full pagespeed sweep are weekly.
var defaultSchedules = []jobSchedule{
	{Name: string(TaskTypeKeywordMetrics), Times: []clockTime{{5, 0}}},
	{Name: string(TaskTypeRankingSync), Times: []clockTime{{6, 0}}},
	{Name: "pagespeed_mobile", Times: []clockTime{{8, 0}}},
	{Name: string(TaskTypePositionCheck), Times: []clockTime{{9, 0}, {21, 0}}},
	{Name: "pagespeed_desktop", Times: []clockTime{{14, 0}}},
	{Name: string(TaskTypeWeeklySummary), Times: []clockTime{{9, 0}}, Weekday: weekdayPtr(time.Monday)},
	{Name: "pagespeed_full", Times: []clockTime{{10, 0}}, Weekday: weekdayPtr(time.Sunday)},
}

// nextRun returns the first trigger instant strictly after the given time.
func (s jobSchedule) nextRun(after time.Time) time.Time {
	next := time.Time{}

	for day := 0; day <= 7; day++ {
		date := after.AddDate(0, 0, day)
		if s.Weekday != nil && date.Weekday() != *s.Weekday {
			continue
		}

		for _, ct := range s.Times {
			candidate := time.Date(date.Year(), date.Month(), date.Day(), ct.Hour, ct.Minute, 0, 0, after.Location())
			if !candidate.After(after) {
				continue
			}
			if next.IsZero() || candidate.Before(next) {
				next = candidate
			}
		}

		if !next.IsZero() {
			return next
		}
	}

	return next
}
