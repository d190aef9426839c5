package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/serpwatch/serp-watch/app/ranking"
)

func intPtr(v int) *int {
	return &v
}

func TestFormatChange(t *testing.T) {
	cases := []struct {
		name     string
		previous *int
		current  int
		want     string
	}{
		{"new keyword", nil, 5, "NEW"},
		{"moved up", intPtr(10), 7, "+3 positions"},
		{"moved down", intPtr(7), 10, "-3 positions"},
		{"unchanged", intPtr(4), 4, "No change"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := FormatChange(c.previous, c.current); got != c.want {
				t.Errorf("FormatChange = %q, want %q", got, c.want)
			}
		})
	}
}

func TestRenderChange_SubjectAndBody(t *testing.T) {
	subject, body := renderChange(ranking.ChangeEvent{
		ProjectName:      "example",
		Keyword:          "coffee beans",
		Position:         2,
		PreviousPosition: intPtr(9),
		URL:              "https://example.com/beans",
		Category:         ranking.CategoryTop3,
	})

	if subject != "[example] Keyword entered the top 3: coffee beans" {
		t.Errorf("Unexpected subject: %q", subject)
	}
	for _, want := range []string{
		"Current position: 2",
		"Previous position: 9",
		"Change: +7 positions",
		"URL: https://example.com/beans",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderChange_UnknownCategoryGetsGenericSubject(t *testing.T) {
	subject, _ := renderChange(ranking.ChangeEvent{
		ProjectName: "example",
		Keyword:     "coffee beans",
		Position:    5,
	})

	if subject != "[example] Ranking change: coffee beans" {
		t.Errorf("Unexpected subject: %q", subject)
	}
}

func TestRenderSummary_ListsMoversAndOpportunities(t *testing.T) {
	weekEnd := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	subject, body := renderSummary(ranking.Summary{
		ProjectName:   "example",
		WeekStart:     weekEnd.AddDate(0, 0, -7),
		WeekEnd:       weekEnd,
		TotalKeywords: 3,
		TrackedCount:  3,
		AvgPosition:   9.333,
		Top10Count:    1,
		Top3Count:     1,
		Improvements: []ranking.Mover{
			{Keyword: "cold brew", Position: 12, PreviousPosition: 20, Change: 8},
		},
		Opportunities: []ranking.Opportunity{
			{Keyword: "cold brew", Position: 12},
			{Keyword: "espresso machine", Position: 14},
		},
	})

	if !strings.Contains(subject, "[example] Weekly ranking summary (Mar 2 - Mar 9)") {
		t.Errorf("Unexpected subject: %q", subject)
	}
	for _, want := range []string{
		"Tracked keywords: 3 (3 with rankings this week)",
		"Average position: 9.3",
		"cold brew: 20 -> 12 (+8 positions)",
		"espresso machine: position 14",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Declines:") {
		t.Error("Body should omit the declines section when there are none")
	}
}

func TestRenderSummary_CapsLongMoverLists(t *testing.T) {
	var movers []ranking.Mover
	for i := 0; i < 8; i++ {
		movers = append(movers, ranking.Mover{
			Keyword:          fmt.Sprintf("keyword-%d", i),
			Position:         10 + i,
			PreviousPosition: 20 + i,
			Change:           10,
		})
	}

	_, body := renderSummary(ranking.Summary{
		ProjectName:  "example",
		Improvements: movers,
	})

	if !strings.Contains(body, "... and 3 more") {
		t.Errorf("Expected the list to be capped with a remainder line:\n%s", body)
	}
	if strings.Contains(body, "keyword-6") {
		t.Errorf("Movers past the cap should not be listed:\n%s", body)
	}
}
