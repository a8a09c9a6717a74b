package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"album-publisher/publish"
	"album-publisher/types"
)

const (
	TypePublishAuto  = "publish:auto"
	TypePublishBatch = "publish:batch"
)

type PublishBatchTaskPayload struct {
	Type types.ContentType `json:"type"`
	Mode publish.BatchMode `json:"mode"`
}

func NewPublishAutoTask() (*asynq.Task, error) {
	return asynq.NewTask(TypePublishAuto, nil), nil
}

func NewPublishBatchTask(contentType types.ContentType, mode publish.BatchMode) (*asynq.Task, error) {
	if !contentType.Valid() {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
	payload, err := json.Marshal(PublishBatchTaskPayload{Type: contentType, Mode: mode})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePublishBatch, payload), nil
}

// Enqueue queues task with a single attempt; uploads are not idempotent
func Enqueue(enq TaskEnqueuer, task *asynq.Task) (*asynq.TaskInfo, error) {
	info, err := enq.Enqueue(task, asynq.MaxRetry(0))
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}
