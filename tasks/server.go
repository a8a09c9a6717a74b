package tasks

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// NewServer creates the worker. Concurrency 1 keeps one coordinator run at a time.
func NewServer(redisAddr string) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
}

// NewScheduler creates a scheduler evaluating cron specs in loc
func NewScheduler(redisAddr string, loc *time.Location) *asynq.Scheduler {
	return asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddr},
		&asynq.SchedulerOpts{Location: loc},
	)
}

// RegisterDaily registers the scheduled publish on cronspec
func RegisterDaily(r Registrar, cronspec string) (string, error) {
	task, err := NewPublishAutoTask()
	if err != nil {
		return "", fmt.Errorf("could not create task: %w", err)
	}
	id, err := r.Register(cronspec, task, asynq.MaxRetry(0))
	if err != nil {
		return "", fmt.Errorf("could not register task: %w", err)
	}
	return id, nil
}
