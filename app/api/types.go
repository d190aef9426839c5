package api

import (
	"context"

	"github.com/serpwatch/serp-watch/app/clients"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/tasks"
)

// JobTaskBuilderInterface builds the batch task for a named job, optionally
// scoped to a single project.
type JobTaskBuilderInterface interface {
	NewJobTask(jobName, projectFilter string) (tasks.TaskInterface, error)
}

var _ JobTaskBuilderInterface = (*tasks.Scheduler)(nil)

type InsightSourceInterface interface {
	AnalyzeKeyword(ctx context.Context, creds map[string]string, keyword, siteURL string) (*clients.KeywordInsight, error)
}

var _ InsightSourceInterface = (*clients.InsightClient)(nil)

type Handler struct {
	configCache      *config.Cache
	projectRepo      database.ProjectRepository
	keywordRepo      database.KeywordRepository
	rankingRepo      database.RankingRepository
	userRepo         database.UserRepository
	credRepo         database.CredentialRepository
	notificationRepo database.NotificationRepository
	insightSource    InsightSourceInterface
	scheduler        tasks.TaskSchedulerInterface
	jobBuilder       JobTaskBuilderInterface
}
