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

// PositionCheckTask is the intra-day refresh. It re-imports the last three
// days of search-analytics data with the shared hourly import stamp, so
// late-arriving source data lands as a fresh ranking observation stamped
// after every earlier row while re-runs inside the same hour stay
// idempotent.
type PositionCheckTask struct {
	Task
	configCache *config.Cache
	projectRepo database.ProjectRepository
	locks       database.JobLockRepository
	importer    *ranking.Importer
}

func NewPositionCheckTask(projectName string, configCache *config.Cache, projectRepo database.ProjectRepository,
	locks database.JobLockRepository, importer *ranking.Importer) *PositionCheckTask {
	task := NewTask(TaskTypePositionCheck, projectName)
	task.MaxRetries = 0

	return &PositionCheckTask{
		Task:        task,
		configCache: configCache,
		projectRepo: projectRepo,
		locks:       locks,
		importer:    importer,
	}
}

func (t *PositionCheckTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	acquired, err := t.locks.AcquireJobLock(string(TaskTypePositionCheck), jobLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		slog.Warn("Previous position check still running, skipping", "task_id", t.GetID())
		return nil
	}
	defer func() {
		if err := t.locks.ReleaseJobLock(string(TaskTypePositionCheck)); err != nil {
			slog.Error("Failed to release job lock", "job", TaskTypePositionCheck, "error", err)
		}
	}()

	from, to, checkedAt := checkWindow(time.Now())
	summary := runImportBatch(ctx, t.configCache, t.projectRepo, t.importer, t.ProjectName, from, to, checkedAt)

	slog.Info("Task completed",
		"type", "PositionCheck",
		"duration", t.GetDuration(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"imported", summary.Imported,
		"notified", summary.Notified)

	if summary.Failed > 0 {
		return fmt.Errorf("position check finished with %d failed projects: %v", summary.Failed, summary.Failures)
	}

	return nil
}

// checkWindow covers the last three source days and uses the same import
// stamp as the daily sync.
func checkWindow(now time.Time) (from, to, checkedAt time.Time) {
	to = now.UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	return to.Add(-48 * time.Hour), to, importStamp(now)
}
