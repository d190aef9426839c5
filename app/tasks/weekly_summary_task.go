package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/ranking"
)

// WeeklySummaryTask aggregates the last seven days of rankings per project
// and mails the summary to the project's users.
type WeeklySummaryTask struct {
	Task
	configCache *config.Cache
	projectRepo database.ProjectRepository
	locks       database.JobLockRepository
	aggregator  *ranking.Aggregator
}

func NewWeeklySummaryTask(projectName string, configCache *config.Cache, projectRepo database.ProjectRepository,
	locks database.JobLockRepository, aggregator *ranking.Aggregator) *WeeklySummaryTask {
	task := NewTask(TaskTypeWeeklySummary, projectName)
	task.MaxRetries = 0

	return &WeeklySummaryTask{
		Task:        task,
		configCache: configCache,
		projectRepo: projectRepo,
		locks:       locks,
		aggregator:  aggregator,
	}
}

func (t *WeeklySummaryTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	acquired, err := t.locks.AcquireJobLock(string(TaskTypeWeeklySummary), jobLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		slog.Warn("Previous weekly summary still running, skipping", "task_id", t.GetID())
		return nil
	}
	defer func() {
		if err := t.locks.ReleaseJobLock(string(TaskTypeWeeklySummary)); err != nil {
			slog.Error("Failed to release job lock", "job", TaskTypeWeeklySummary, "error", err)
		}
	}()

	weekEnd := time.Now().UTC()
	weekStart := weekEnd.AddDate(0, 0, -7)

	notified := 0
	skipped := 0
	failed := 0
	var failures []string

	for name := range t.configCache.GetEnabledConfigs() {
		if t.ProjectName != "" && name != t.ProjectName {
			continue
		}

		project, err := t.projectRepo.GetProject(name)
		if err != nil {
			slog.Error("Failed to load project, skipping", "project", name, "error", err)
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if project == nil {
			slog.Warn("Project not registered in database, skipping", "project", name)
			skipped++
			continue
		}

		summary, err := t.aggregator.Run(ctx, *project, weekStart, weekEnd)
		if err != nil {
			slog.Error("Weekly summary failed", "project", name, "error", err)
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if summary == nil {
			skipped++
			continue
		}

		notified++
	}

	slog.Info("Task completed",
		"type", "WeeklySummary",
		"duration", t.GetDuration(),
		"notified", notified,
		"skipped", skipped,
		"failed", failed)

	if failed > 0 {
		return fmt.Errorf("weekly summary finished with %d failed projects: %v", failed, failures)
	}

	return nil
}
