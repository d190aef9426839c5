package tasks

import (
	"testing"
	"time"
)

func TestJobSchedule_NextRun_LaterToday(t *testing.T) {
	s := jobSchedule{Name: "ranking_sync", Times: []clockTime{{6, 0}}}

	// Monday 2026-03-02 04:30
	after := time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC)
	got := s.nextRun(after)

	want := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
}

func TestJobSchedule_NextRun_RollsToTomorrow(t *testing.T) {
	s := jobSchedule{Name: "ranking_sync", Times: []clockTime{{6, 0}}}

	after := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	got := s.nextRun(after)

	want := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
}

func TestJobSchedule_NextRun_ExactTriggerTimeIsNotDue(t *testing.T) {
	s := jobSchedule{Name: "ranking_sync", Times: []clockTime{{6, 0}}}

	// Strictly after: at 06:00 sharp the next run is tomorrow.
	after := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	got := s.nextRun(after)

	want := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
}

func TestJobSchedule_NextRun_PicksEarliestOfMultipleTimes(t *testing.T) {
	s := jobSchedule{Name: "position_check", Times: []clockTime{{9, 0}, {21, 0}}}

	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(morning), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(morning) = %v, want %v", got, want)
	}

	midday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(midday), time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(midday) = %v, want %v", got, want)
	}

	night := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(night), time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(night) = %v, want %v", got, want)
	}
}

func TestJobSchedule_NextRun_WeekdayConstraint(t *testing.T) {
	s := jobSchedule{Name: "weekly_summary", Times: []clockTime{{9, 0}}, Weekday: weekdayPtr(time.Monday)}

	// Tuesday 2026-03-03: next Monday is the 9th.
	tuesday := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(tuesday), time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(tuesday) = %v, want %v", got, want)
	}

	// Monday morning before the trigger fires the same day.
	monday := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(monday), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(monday) = %v, want %v", got, want)
	}

	// Monday after the trigger rolls a full week.
	mondayLate := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if got, want := s.nextRun(mondayLate), time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextRun(mondayLate) = %v, want %v", got, want)
	}
}

func TestJobSchedule_NextRun_HonorsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := jobSchedule{Name: "ranking_sync", Times: []clockTime{{6, 0}}}

	after := time.Date(2026, 3, 2, 4, 30, 0, 0, loc)
	got := s.nextRun(after)

	want := time.Date(2026, 3, 2, 6, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("nextRun should stay in the caller's location, got %v", got.Location())
	}
}

func TestDefaultSchedules_CoverAllJobs(t *testing.T) {
	want := map[string]bool{
		string(TaskTypeKeywordMetrics): false,
		string(TaskTypeRankingSync):    false,
		string(TaskTypePositionCheck):  false,
		string(TaskTypeWeeklySummary):  false,
		"pagespeed_mobile":             false,
		"pagespeed_desktop":            false,
		"pagespeed_full":               false,
	}

	for _, s := range defaultSchedules {
		if _, ok := want[s.Name]; !ok {
			t.Errorf("Unexpected job in default calendar: %s", s.Name)
			continue
		}
		want[s.Name] = true
		if len(s.Times) == 0 {
			t.Errorf("Job %s has no trigger times", s.Name)
		}
	}

	for name, seen := range want {
		if !seen {
			t.Errorf("Job %s missing from default calendar", name)
		}
	}
}
