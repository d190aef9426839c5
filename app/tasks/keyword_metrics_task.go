package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serpwatch/serp-watch/app/clients"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
)

// KeywordMetricsTask refreshes search volume, competition and bid estimates
// for every tracked keyword of every enabled project.
type KeywordMetricsTask struct {
	Task
	configCache *config.Cache
	projectRepo database.ProjectRepository
	keywordRepo database.KeywordRepository
	credRepo    database.CredentialRepository
	locks       database.JobLockRepository
	client      *clients.KeywordMetricsClient
}

func NewKeywordMetricsTask(projectName string, configCache *config.Cache,
	projectRepo database.ProjectRepository, keywordRepo database.KeywordRepository,
	credRepo database.CredentialRepository, locks database.JobLockRepository,
	client *clients.KeywordMetricsClient) *KeywordMetricsTask {
	task := NewTask(TaskTypeKeywordMetrics, projectName)
	task.MaxRetries = 0

	return &KeywordMetricsTask{
		Task:        task,
		configCache: configCache,
		projectRepo: projectRepo,
		keywordRepo: keywordRepo,
		credRepo:    credRepo,
		locks:       locks,
		client:      client,
	}
}

func (t *KeywordMetricsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	acquired, err := t.locks.AcquireJobLock(string(TaskTypeKeywordMetrics), jobLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		slog.Warn("Previous keyword metrics run still active, skipping", "task_id", t.GetID())
		return nil
	}
	defer func() {
		if err := t.locks.ReleaseJobLock(string(TaskTypeKeywordMetrics)); err != nil {
			slog.Error("Failed to release job lock", "job", TaskTypeKeywordMetrics, "error", err)
		}
	}()

	updated := 0
	skipped := 0
	failed := 0
	var failures []string

	for name := range t.configCache.GetEnabledConfigs() {
		if t.ProjectName != "" && name != t.ProjectName {
			continue
		}

		count, err := t.updateProject(ctx, name)
		if err != nil {
			slog.Error("Keyword metrics update failed", "project", name, "error", err)
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if count < 0 {
			skipped++
			continue
		}
		updated += count
	}

	slog.Info("Task completed",
		"type", "KeywordMetrics",
		"duration", t.GetDuration(),
		"updated", updated,
		"skipped", skipped,
		"failed", failed)

	if failed > 0 {
		return fmt.Errorf("keyword metrics run finished with %d failed projects: %v", failed, failures)
	}

	return nil
}

// updateProject returns the number of updated keywords, or -1 when the
// project was skipped.
func (t *KeywordMetricsTask) updateProject(ctx context.Context, name string) (int, error) {
	project, err := t.projectRepo.GetProject(name)
	if err != nil {
		return 0, err
	}
	if project == nil {
		slog.Warn("Project not registered in database, skipping", "project", name)
		return -1, nil
	}

	cred, err := t.credRepo.GetActiveCredential(project.ID, database.ServiceAds)
	if err != nil {
		return 0, err
	}
	if cred == nil {
		slog.Warn("Project skipped", "project", name, "reason", "no active ads credential")
		return -1, nil
	}

	keywords, err := t.keywordRepo.GetProjectKeywords(project.ID)
	if err != nil {
		return 0, err
	}
	if len(keywords) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(keywords))
	byText := make(map[string]int64, len(keywords))
	for _, kw := range keywords {
		texts = append(texts, kw.Text)
		byText[kw.Text] = kw.ID
	}

	metrics, err := t.client.FetchMetrics(ctx, cred.Values, texts)
	if err != nil {
		return 0, err
	}

	updated := 0
	for text, m := range metrics {
		keywordID, ok := byText[text]
		if !ok {
			continue
		}
		if err := t.keywordRepo.UpdateKeywordMetrics(keywordID, m); err != nil {
			slog.Warn("Failed to store keyword metrics", "project", name, "keyword", text, "error", err)
			continue
		}
		updated++
	}

	if err := t.credRepo.TouchCredential(cred.ID); err != nil {
		slog.Warn("Failed to update credential usage", "project", name, "error", err)
	}

	return updated, nil
}
