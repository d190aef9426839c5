package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeSyncProjectConfig   TaskType = "sync_project_config"
	TaskTypeRankingSync         TaskType = "ranking_sync"
	TaskTypePositionCheck       TaskType = "position_check"
	TaskTypeWeeklySummary       TaskType = "weekly_summary"
	TaskTypePageSpeed           TaskType = "pagespeed"
	TaskTypeKeywordMetrics      TaskType = "keyword_metrics"
	TaskTypeDeliverNotification TaskType = "deliver_notification"
)

const (
	DefaultMaxRetries = 3
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetProjectName() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID          string
	Type        TaskType
	ProjectName string
	RetryCount  int
	MaxRetries  int
	StartedAt   *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetProjectName() string {
	return t.ProjectName
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, projectName string) Task {
	return Task{
		ID:          uuid.NewString(),
		Type:        taskType,
		ProjectName: projectName,
		RetryCount:  0,
		MaxRetries:  DefaultMaxRetries,
	}
}
