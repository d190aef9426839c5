package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serpwatch/serp-watch/app/clients"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/ranking"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler owns the worker pool and the job calendar. A minute ticker
// checks which clock-based jobs are due and enqueues them; the job tasks
// themselves take the per-job database lease, so an overlapping trigger
// degrades to a logged skip.
type Scheduler struct {
	configCache   *config.Cache
	projectRepo   database.ProjectRepository
	keywordRepo   database.KeywordRepository
	userRepo      database.UserRepository
	credRepo      database.CredentialRepository
	pageSpeedRepo database.PageSpeedRepository
	locks         database.JobLockRepository

	importer        *ranking.Importer
	aggregator      *ranking.Aggregator
	metricsClient   *clients.KeywordMetricsClient
	pageSpeedClient *clients.PageSpeedClient

	schedules []jobSchedule
	nextRuns  map[string]time.Time

	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *config.Cache, projectRepo database.ProjectRepository,
	keywordRepo database.KeywordRepository, userRepo database.UserRepository,
	credRepo database.CredentialRepository, pageSpeedRepo database.PageSpeedRepository,
	locks database.JobLockRepository, importer *ranking.Importer, aggregator *ranking.Aggregator,
	metricsClient *clients.KeywordMetricsClient, pageSpeedClient *clients.PageSpeedClient,
	workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache:     configCache,
		projectRepo:     projectRepo,
		keywordRepo:     keywordRepo,
		userRepo:        userRepo,
		credRepo:        credRepo,
		pageSpeedRepo:   pageSpeedRepo,
		locks:           locks,
		importer:        importer,
		aggregator:      aggregator,
		metricsClient:   metricsClient,
		pageSpeedClient: pageSpeedClient,
		schedules:       defaultSchedules,
		nextRuns:        make(map[string]time.Time),
		workerCount:     workerCount,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	now := time.Now()
	for _, schedule := range s.schedules {
		s.nextRuns[schedule.Name] = schedule.nextRun(now)
		slog.Debug("Job scheduled", "job", schedule.Name, "next_run", s.nextRuns[schedule.Name])
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueJobs(time.Now())
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// NewJobTask builds the batch task for a job name with an optional
// single-project filter. Also used by the API's manual trigger endpoints.
func (s *Scheduler) NewJobTask(jobName, projectFilter string) (TaskInterface, error) {
	switch jobName {
	case string(TaskTypeRankingSync):
		return NewRankingSyncTask(projectFilter, s.configCache, s.projectRepo, s.locks, s.importer), nil
	case string(TaskTypePositionCheck):
		return NewPositionCheckTask(projectFilter, s.configCache, s.projectRepo, s.locks, s.importer), nil
	case string(TaskTypeWeeklySummary):
		return NewWeeklySummaryTask(projectFilter, s.configCache, s.projectRepo, s.locks, s.aggregator), nil
	case string(TaskTypeKeywordMetrics):
		return NewKeywordMetricsTask(projectFilter, s.configCache, s.projectRepo, s.keywordRepo, s.credRepo, s.locks, s.metricsClient), nil
	case "pagespeed_mobile":
		return NewPageSpeedTask(projectFilter, jobName, []string{"mobile"}, s.configCache, s.projectRepo, s.credRepo, s.pageSpeedRepo, s.locks, s.pageSpeedClient), nil
	case "pagespeed_desktop":
		return NewPageSpeedTask(projectFilter, jobName, []string{"desktop"}, s.configCache, s.projectRepo, s.credRepo, s.pageSpeedRepo, s.locks, s.pageSpeedClient), nil
	case "pagespeed_full":
		return NewPageSpeedTask(projectFilter, jobName, []string{"mobile", "desktop"}, s.configCache, s.projectRepo, s.credRepo, s.pageSpeedRepo, s.locks, s.pageSpeedClient), nil
	default:
		return nil, fmt.Errorf("unknown job name: %s", jobName)
	}
}

// enqueueStartupTasks registers every loaded project configuration in the
// database before the first scheduled job can fire.
func (s *Scheduler) enqueueStartupTasks() {
	projectConfigs := s.configCache.GetConfigs()
	if len(projectConfigs) == 0 {
		slog.Debug("No project configurations found")
		return
	}

	slog.Debug("Registering project configurations", "count", len(projectConfigs))

	for _, projectConfig := range projectConfigs {
		syncTask := NewSyncProjectConfigTask(projectConfig.Name, projectConfig,
			s.projectRepo, s.keywordRepo, s.userRepo, s.credRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncProjectConfigTask", "project", projectConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDueJobs(now time.Time) {
	for _, schedule := range s.schedules {
		next, ok := s.nextRuns[schedule.Name]
		if !ok || now.Before(next) {
			continue
		}

		task, err := s.NewJobTask(schedule.Name, "")
		if err != nil {
			slog.Error("Failed to build job task", "job", schedule.Name, "error", err)
			continue
		}

		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue job task", "job", schedule.Name, "error", err)
			continue
		}

		s.nextRuns[schedule.Name] = schedule.nextRun(now)
		slog.Debug("Job enqueued", "job", schedule.Name, "next_run", s.nextRuns[schedule.Name])
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
