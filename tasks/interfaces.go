package tasks

import (
	"context"

	"github.com/hibiken/asynq"

	"album-publisher/publish"
	"album-publisher/types"
)

// TaskEnqueuer defines the interface for enqueuing tasks.
// It's implemented by asynq.Client, and can be mocked for testing.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Registrar is implemented by asynq.Scheduler
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// Runner is the coordinator surface the handlers drive
type Runner interface {
	RunScheduled(ctx context.Context) (*types.RunState, error)
	RunBatch(ctx context.Context, contentType types.ContentType, mode publish.BatchMode) (*types.RunState, error)
}
