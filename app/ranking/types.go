package ranking

import (
	"context"
	"time"
)

// Row is one performance row returned by the search-analytics source.
// Position is the fractional average reported for the date window.
type Row struct {
	Query       string
	Page        string
	Clicks      int
	Impressions int
	CTR         float64
	Position    float64
}

type ChangeCategory string

const (
	CategoryNone                   ChangeCategory = ""
	CategoryTop3                   ChangeCategory = "top3"
	CategoryFirstPage              ChangeCategory = "first_page"
	CategoryDroppedOut             ChangeCategory = "dropped_out"
	CategorySignificantImprovement ChangeCategory = "significant_improvement"
	CategorySignificantDecline     ChangeCategory = "significant_decline"
)

// ChangeEvent carries a classified position change to the notifier.
type ChangeEvent struct {
	ProjectID        int64
	ProjectName      string
	Keyword          string
	Position         int
	PreviousPosition *int
	URL              string
	Category         ChangeCategory
}

// Mover is one keyword in a weekly summary's improvements or declines list.
// Change is previous - current, so positive means moved up.
type Mover struct {
	Keyword          string
	Position         int
	PreviousPosition int
	Change           int
}

// Opportunity is a keyword sitting just below the first page (positions
// 11-15), where a small push gets it onto page one.
type Opportunity struct {
	Keyword  string
	Position int
}

type Summary struct {
	ProjectID     int64
	ProjectName   string
	WeekStart     time.Time
	WeekEnd       time.Time
	TotalKeywords int
	TrackedCount  int // keywords with at least one ranking this week
	AvgPosition   float64
	Top10Count    int
	Top3Count     int
	Improvements  []Mover
	Declines      []Mover
	Opportunities []Opportunity
}

// SearchAnalyticsSource is the external search-analytics adapter consumed by
// the importer.
type SearchAnalyticsSource interface {
	FetchRankings(ctx context.Context, creds map[string]string, siteURL string, from, to time.Time) ([]Row, error)
}

// Notifier receives classified changes and weekly summaries for delivery to
// the project's users.
type Notifier interface {
	NotifyChange(ctx context.Context, event ChangeEvent) error
	NotifySummary(ctx context.Context, summary Summary) error
}

// ImportResult reports one importer run over a single project.
type ImportResult struct {
	Imported   int
	Duplicates int
	Notified   int
	RowErrors  int
	Skipped    bool
	SkipReason string
}
