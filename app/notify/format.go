package notify

import (
	"fmt"
	"strings"

	"github.com/serpwatch/serp-watch/app/ranking"
)

// maxListedMovers caps how many movers/opportunities a weekly summary body
// lists before collapsing the rest into "and N more".
const maxListedMovers = 5

var changeSubjects = map[ranking.ChangeCategory]string{
	ranking.CategoryTop3:                   "Keyword entered the top 3",
	ranking.CategoryFirstPage:              "Keyword reached the first page",
	ranking.CategoryDroppedOut:             "Keyword dropped off the first page",
	ranking.CategorySignificantImprovement: "Significant ranking improvement",
	ranking.CategorySignificantDecline:     "Significant ranking decline",
}

// FormatChange renders the position delta for display. Positive deltas mean
// the keyword moved up (to a numerically smaller position).
func FormatChange(previous *int, current int) string {
	if previous == nil {
		return "NEW"
	}
	change := *previous - current
	switch {
	case change > 0:
		return fmt.Sprintf("+%d positions", change)
	case change < 0:
		return fmt.Sprintf("%d positions", change)
	default:
		return "No change"
	}
}

func renderChange(event ranking.ChangeEvent) (string, string) {
	subject := changeSubjects[event.Category]
	if subject == "" {
		subject = "Ranking change"
	}
	subject = fmt.Sprintf("[%s] %s: %s", event.ProjectName, subject, event.Keyword)

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", event.ProjectName)
	fmt.Fprintf(&b, "Keyword: %s\n", event.Keyword)
	fmt.Fprintf(&b, "Current position: %d\n", event.Position)
	if event.PreviousPosition != nil {
		fmt.Fprintf(&b, "Previous position: %d\n", *event.PreviousPosition)
	} else {
		b.WriteString("Previous position: -\n")
	}
	fmt.Fprintf(&b, "Change: %s\n", FormatChange(event.PreviousPosition, event.Position))
	if event.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", event.URL)
	}

	return subject, b.String()
}

func renderSummary(s ranking.Summary) (string, string) {
	subject := fmt.Sprintf("[%s] Weekly ranking summary (%s - %s)",
		s.ProjectName, s.WeekStart.Format("Jan 2"), s.WeekEnd.Format("Jan 2"))

	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary for %s\n\n", s.ProjectName)
	fmt.Fprintf(&b, "Tracked keywords: %d (%d with rankings this week)\n", s.TotalKeywords, s.TrackedCount)
	fmt.Fprintf(&b, "Average position: %.1f\n", s.AvgPosition)
	fmt.Fprintf(&b, "In top 10: %d\n", s.Top10Count)
	fmt.Fprintf(&b, "In top 3: %d\n\n", s.Top3Count)

	if len(s.Improvements) > 0 {
		b.WriteString("Improvements:\n")
		for i, m := range s.Improvements {
			if i == maxListedMovers {
				fmt.Fprintf(&b, "  ... and %d more\n", len(s.Improvements)-maxListedMovers)
				break
			}
			fmt.Fprintf(&b, "  %s: %d -> %d (%s)\n", m.Keyword, m.PreviousPosition, m.Position, FormatChange(&m.PreviousPosition, m.Position))
		}
		b.WriteString("\n")
	}

	if len(s.Declines) > 0 {
		b.WriteString("Declines:\n")
		for i, m := range s.Declines {
			if i == maxListedMovers {
				fmt.Fprintf(&b, "  ... and %d more\n", len(s.Declines)-maxListedMovers)
				break
			}
			fmt.Fprintf(&b, "  %s: %d -> %d (%s)\n", m.Keyword, m.PreviousPosition, m.Position, FormatChange(&m.PreviousPosition, m.Position))
		}
		b.WriteString("\n")
	}

	if len(s.Opportunities) > 0 {
		b.WriteString("Opportunities (positions 11-15):\n")
		for i, o := range s.Opportunities {
			if i == maxListedMovers {
				fmt.Fprintf(&b, "  ... and %d more\n", len(s.Opportunities)-maxListedMovers)
				break
			}
			fmt.Fprintf(&b, "  %s: position %d\n", o.Keyword, o.Position)
		}
	}

	return subject, b.String()
}
