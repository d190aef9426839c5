package database

import (
	"time"
)

// Service names accepted by the api_credentials table.
const (
	ServiceSearchConsole  = "search_console"
	ServiceAnalytics      = "analytics"
	ServicePageSpeed      = "pagespeed"
	ServiceAds            = "ads"
	ServiceGemini         = "gemini"
	ServiceMobileFriendly = "mobile_friendly"
)

type Project struct {
	ID          int64
	Name        string // Configuration identifier derived from filename
	DisplayName string
	URL         string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

type Keyword struct {
	ID               int64
	ProjectID        int64
	Text             string
	Category         string
	Priority         string // high, medium, low
	Intent           string
	GeoTarget        string
	Language         string
	SearchVolume     *int
	Difficulty       *int
	CompetitionIndex *int
	LowBidMicros     *int64
	HighBidMicros    *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Ranking is one observed position of a keyword. PreviousPosition is a
// snapshot of the chronologically preceding row's position, taken at insert
// time; nil means the keyword was newly observed. Rows are never updated.
type Ranking struct {
	ID               int64
	KeywordID        int64
	Position         int
	PreviousPosition *int
	URL              string
	FeaturedSnippet  bool
	SerpFeatures     string // opaque JSON
	CheckedAt        time.Time
	CreatedAt        time.Time
}

// KeywordRanking is a ranking row joined with its keyword text, as consumed
// by the weekly aggregator and the API.
type KeywordRanking struct {
	KeywordID        int64
	Keyword          string
	Position         int
	PreviousPosition *int
	URL              string
	CheckedAt        time.Time
}

// SearchConsoleRanking keeps the fractional position average from the
// search-analytics source, one row per (query, page, device, country, date
// window) per fetch.
type SearchConsoleRanking struct {
	ID             int64
	ProjectID      int64
	Query          string
	Page           string
	Device         string
	Country        string
	Clicks         int
	Impressions    int
	CTR            float64
	Position       float64
	PositionChange *float64
	DateFrom       time.Time
	DateTo         time.Time
	FetchedAt      time.Time
}

type APICredential struct {
	ID         int64
	ProjectID  int64
	Service    string
	Values     map[string]string // opaque key-value bag, stored as JSON
	IsActive   bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PageSpeedResult struct {
	ID                 int64
	ProjectID          int64
	URL                string
	Strategy           string // mobile, desktop
	PerformanceScore   int
	AccessibilityScore int
	BestPracticesScore int
	SEOScore           int
	LCPMs              *float64
	FCPMs              *float64
	CLS                *float64
	SpeedIndexMs       *float64
	CheckedAt          time.Time
}

const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

type Notification struct {
	ID        string // UUID
	ProjectID int64
	UserID    int64
	UserEmail string // joined for delivery, not a column
	Category  string
	Subject   string
	Body      string
	Status    string
	Error     string
	CreatedAt time.Time
	SentAt    *time.Time
}

// KeywordMetrics is the per-keyword payload applied by the metrics update
// job. Nil fields leave the stored value untouched.
type KeywordMetrics struct {
	SearchVolume     *int
	CompetitionIndex *int
	LowBidMicros     *int64
	HighBidMicros    *int64
}
