package tasks

// TaskSchedulerInterface defines the interface for task scheduling
// operations. Used by the main application and the API handlers to run
// background jobs.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
