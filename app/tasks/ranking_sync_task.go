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

const jobLockTTL = 30 * time.Minute

// RankingSyncTask imports yesterday's search-analytics window for every
// enabled project (or a single one when ProjectName is set). One project's
// failure never aborts the batch; the end-of-run log reports succeeded and
// failed counts with reasons.
type RankingSyncTask struct {
	Task
	configCache *config.Cache
	projectRepo database.ProjectRepository
	locks       database.JobLockRepository
	importer    *ranking.Importer
}

func NewRankingSyncTask(projectName string, configCache *config.Cache, projectRepo database.ProjectRepository,
	locks database.JobLockRepository, importer *ranking.Importer) *RankingSyncTask {
	task := NewTask(TaskTypeRankingSync, projectName)
	task.MaxRetries = 0 // batch isolates failures internally, a rerun comes with the next trigger

	return &RankingSyncTask{
		Task:        task,
		configCache: configCache,
		projectRepo: projectRepo,
		locks:       locks,
		importer:    importer,
	}
}

func (t *RankingSyncTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	acquired, err := t.locks.AcquireJobLock(string(TaskTypeRankingSync), jobLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		slog.Warn("Previous ranking sync still running, skipping", "task_id", t.GetID())
		return nil
	}
	defer func() {
		if err := t.locks.ReleaseJobLock(string(TaskTypeRankingSync)); err != nil {
			slog.Error("Failed to release job lock", "job", TaskTypeRankingSync, "error", err)
		}
	}()

	from, to, checkedAt := syncWindow(time.Now())
	summary := runImportBatch(ctx, t.configCache, t.projectRepo, t.importer, t.ProjectName, from, to, checkedAt)

	slog.Info("Task completed",
		"type", "RankingSync",
		"duration", t.GetDuration(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"imported", summary.Imported,
		"notified", summary.Notified)

	if summary.Failed > 0 {
		return fmt.Errorf("ranking sync finished with %d failed projects: %v", summary.Failed, summary.Failures)
	}

	return nil
}

// syncWindow computes yesterday's one-day source window. All import jobs
// stamp checked_at with importStamp so ranking rows land in execution
// order regardless of which job wrote them.
func syncWindow(now time.Time) (from, to, checkedAt time.Time) {
	to = now.UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	return to, to, importStamp(now)
}

// importStamp is the shared checked_at for every ranking row an import job
// writes. Truncating to the hour keeps re-runs within the same hour
// idempotent under the (keyword, checked_at) unique key, while successive
// runs always stamp later than every earlier row.
func importStamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour)
}

// batchSummary aggregates one import run across projects.
type batchSummary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Imported  int
	Notified  int
	Failures  []string
}

// runImportBatch iterates the enabled projects and runs the importer for
// each, isolating per-project failures.
func runImportBatch(ctx context.Context, configCache *config.Cache, projectRepo database.ProjectRepository,
	importer *ranking.Importer, projectFilter string, from, to, checkedAt time.Time) batchSummary {
	var summary batchSummary

	for name, projectConfig := range configCache.GetEnabledConfigs() {
		if projectFilter != "" && name != projectFilter {
			continue
		}

		project, err := projectRepo.GetProject(name)
		if err != nil {
			slog.Error("Failed to load project, skipping", "project", name, "error", err)
			summary.Failed++
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if project == nil {
			slog.Warn("Project not registered in database, skipping", "project", name)
			summary.Skipped++
			continue
		}

		projectCtx, cancel := context.WithTimeout(ctx, time.Duration(projectConfig.Settings.Timeout)*time.Second)
		result, err := importer.Run(projectCtx, *project, from, to, checkedAt)
		cancel()
		if err != nil {
			slog.Error("Project import failed", "project", name, "error", err)
			summary.Failed++
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if result.Skipped {
			summary.Skipped++
			continue
		}

		summary.Succeeded++
		summary.Imported += result.Imported
		summary.Notified += result.Notified
	}

	return summary
}
