package database

import (
	"time"
)

type ProjectRepository interface {
	GetProject(name string) (*Project, error)
	GetAllProjects() ([]Project, error)
	GetProjectCount() (int, error)

	UpsertProject(name, displayName, url, description string) (int64, error)
}

type KeywordRepository interface {
	GetKeyword(projectID int64, text string) (*Keyword, error)
	GetOrCreateKeyword(projectID int64, text string) (*Keyword, error)
	GetProjectKeywords(projectID int64) ([]Keyword, error)
	GetKeywordCount(projectID int64) (int, error)

	UpsertKeyword(projectID int64, kw Keyword) error
	UpdateKeywordMetrics(keywordID int64, metrics KeywordMetrics) error
}

type RankingRepository interface {
	// GetLatestRankingBefore returns the most recent ranking for the keyword
	// with checked_at strictly before the given instant, or nil.
	GetLatestRankingBefore(keywordID int64, before time.Time) (*Ranking, error)

	// InsertRanking inserts a ranking row. Returns false when the
	// (keyword_id, checked_at) pair already exists.
	InsertRanking(r Ranking) (bool, error)

	// GetLatestPerKeyword returns, for every keyword of the project with at
	// least one ranking in [from, to), the single most recent ranking in
	// that window, joined with the keyword text.
	GetLatestPerKeyword(projectID int64, from, to time.Time) ([]KeywordRanking, error)

	GetRankingHistory(projectID int64, since time.Time) ([]KeywordRanking, error)
	GetRankingCount(projectID int64) (int, error)
}

type SearchConsoleRepository interface {
	// GetLatestSnapshot returns the most recently fetched row for the same
	// (query, page, device, country) key regardless of date window, or nil.
	GetLatestSnapshot(projectID int64, query, page, device, country string) (*SearchConsoleRanking, error)

	UpsertSnapshot(row SearchConsoleRanking) error
}

type CredentialRepository interface {
	// GetActiveCredential returns the active credential for the service, or
	// nil when the project has none.
	GetActiveCredential(projectID int64, service string) (*APICredential, error)

	// UpsertCredential stores the credential as the single active one for
	// (project, service), deactivating any previous active row.
	UpsertCredential(projectID int64, service string, values map[string]string) error

	TouchCredential(id int64) error
}

type UserRepository interface {
	EnsureUser(email, name string) (int64, error)
	SetProjectUsers(projectID int64, userIDs []int64) error
	GetProjectUsers(projectID int64) ([]User, error)
}

type NotificationRepository interface {
	InsertNotification(n Notification) error
	MarkNotificationSent(id string) error
	MarkNotificationFailed(id string, errMsg string) error
	GetProjectNotifications(projectID int64, limit int) ([]Notification, error)
}

type PageSpeedRepository interface {
	InsertPageSpeedResult(r PageSpeedResult) error
	GetLatestPageSpeedResult(projectID int64, strategy string) (*PageSpeedResult, error)
}

type JobLockRepository interface {
	// AcquireJobLock takes the lease for the job name. Returns false when a
	// non-expired lease is already held.
	AcquireJobLock(jobName string, ttl time.Duration) (bool, error)
	ReleaseJobLock(jobName string) error
}
