package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serpwatch/serp-watch/app/clients"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
)

// scoreDropAlert is the performance-score decrease that gets flagged in the
// run summary.
const scoreDropAlert = 10

// PageSpeedTask runs a page-performance analysis per project and stores the
// snapshot. JobName distinguishes the mobile, desktop and full (both
// strategies) cadences so their leases do not collide.
type PageSpeedTask struct {
	Task
	JobName       string
	Strategies    []string
	configCache   *config.Cache
	projectRepo   database.ProjectRepository
	credRepo      database.CredentialRepository
	pageSpeedRepo database.PageSpeedRepository
	locks         database.JobLockRepository
	client        *clients.PageSpeedClient
}

func NewPageSpeedTask(projectName, jobName string, strategies []string, configCache *config.Cache,
	projectRepo database.ProjectRepository, credRepo database.CredentialRepository,
	pageSpeedRepo database.PageSpeedRepository, locks database.JobLockRepository,
	client *clients.PageSpeedClient) *PageSpeedTask {
	task := NewTask(TaskTypePageSpeed, projectName)
	task.MaxRetries = 0

	return &PageSpeedTask{
		Task:          task,
		JobName:       jobName,
		Strategies:    strategies,
		configCache:   configCache,
		projectRepo:   projectRepo,
		credRepo:      credRepo,
		pageSpeedRepo: pageSpeedRepo,
		locks:         locks,
		client:        client,
	}
}

func (t *PageSpeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	acquired, err := t.locks.AcquireJobLock(t.JobName, jobLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		slog.Warn("Previous pagespeed run still active, skipping", "job", t.JobName)
		return nil
	}
	defer func() {
		if err := t.locks.ReleaseJobLock(t.JobName); err != nil {
			slog.Error("Failed to release job lock", "job", t.JobName, "error", err)
		}
	}()

	analyzed := 0
	skipped := 0
	failed := 0
	var failures []string

	for name := range t.configCache.GetEnabledConfigs() {
		if t.ProjectName != "" && name != t.ProjectName {
			continue
		}

		project, err := t.projectRepo.GetProject(name)
		if err != nil || project == nil {
			if err != nil {
				slog.Error("Failed to load project, skipping", "project", name, "error", err)
				failed++
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			} else {
				skipped++
			}
			continue
		}

		cred, err := t.credRepo.GetActiveCredential(project.ID, database.ServicePageSpeed)
		if err != nil {
			slog.Error("Failed to load pagespeed credential", "project", name, "error", err)
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if cred == nil {
			slog.Warn("Project skipped", "project", name, "reason", "no active pagespeed credential")
			skipped++
			continue
		}

		ok := true
		for _, strategy := range t.Strategies {
			if err := t.analyze(ctx, *project, cred.Values, strategy); err != nil {
				slog.Error("Pagespeed analysis failed", "project", name, "strategy", strategy, "error", err)
				failures = append(failures, fmt.Sprintf("%s/%s: %v", name, strategy, err))
				ok = false
			}
		}
		if ok {
			analyzed++
			if err := t.credRepo.TouchCredential(cred.ID); err != nil {
				slog.Warn("Failed to update credential usage", "project", name, "error", err)
			}
		} else {
			failed++
		}
	}

	slog.Info("Task completed",
		"type", "PageSpeed",
		"job", t.JobName,
		"duration", t.GetDuration(),
		"analyzed", analyzed,
		"skipped", skipped,
		"failed", failed)

	if failed > 0 {
		return fmt.Errorf("pagespeed run finished with %d failed projects: %v", failed, failures)
	}

	return nil
}

func (t *PageSpeedTask) analyze(ctx context.Context, project database.Project, creds map[string]string, strategy string) error {
	report, err := t.client.Analyze(ctx, creds, project.URL, strategy)
	if err != nil {
		return err
	}

	previous, err := t.pageSpeedRepo.GetLatestPageSpeedResult(project.ID, strategy)
	if err != nil {
		return err
	}

	err = t.pageSpeedRepo.InsertPageSpeedResult(database.PageSpeedResult{
		ProjectID:          project.ID,
		URL:                project.URL,
		Strategy:           strategy,
		PerformanceScore:   report.Scores.Performance,
		AccessibilityScore: report.Scores.Accessibility,
		BestPracticesScore: report.Scores.BestPractices,
		SEOScore:           report.Scores.SEO,
		LCPMs:              report.Vitals.LCPMs,
		FCPMs:              report.Vitals.FCPMs,
		CLS:                report.Vitals.CLS,
		SpeedIndexMs:       report.Vitals.SpeedIndexMs,
	})
	if err != nil {
		return err
	}

	if previous != nil && previous.PerformanceScore-report.Scores.Performance >= scoreDropAlert {
		slog.Warn("Performance score dropped",
			"project", project.Name,
			"strategy", strategy,
			"previous", previous.PerformanceScore,
			"current", report.Scores.Performance)
	}

	return nil
}
