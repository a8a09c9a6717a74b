package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"album-publisher/logging"
	"album-publisher/types"
)

// TaskHandler runs queued publish tasks through the coordinator
type TaskHandler struct {
	runner Runner
	log    logrus.FieldLogger
}

func NewTaskHandler(runner Runner, log logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{runner: runner, log: logging.Component(log, "worker")}
}

// HandlePublishAutoTask runs the daily scheduled publish. Failures are not
// retried: a retry could upload the same video twice.
func (h *TaskHandler) HandlePublishAutoTask(ctx context.Context, t *asynq.Task) error {
	h.log.Info("Handling scheduled publish")
	run, err := h.runner.RunScheduled(ctx)
	h.logRun(run)
	if err != nil {
		return fmt.Errorf("scheduled publish: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (h *TaskHandler) HandlePublishBatchTask(ctx context.Context, t *asynq.Task) error {
	var p PublishBatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown content type %q: %w", p.Type, asynq.SkipRetry)
	}

	h.log.WithFields(logrus.Fields{"type": p.Type, "batch": p.Mode}).Info("Handling batch publish")
	run, err := h.runner.RunBatch(ctx, p.Type, p.Mode)
	h.logRun(run)
	if err != nil {
		return fmt.Errorf("batch publish: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (h *TaskHandler) logRun(run *types.RunState) {
	if run == nil {
		return
	}
	h.log.WithFields(logrus.Fields{
		"run_id":    run.RunID,
		"succeeded": len(run.Succeeded()),
		"failed":    len(run.Failed()),
	}).Info("Run finished")
}

// NewServeMux routes task types to the handler
func NewServeMux(h *TaskHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePublishAuto, h.HandlePublishAutoTask)
	mux.HandleFunc(TypePublishBatch, h.HandlePublishBatchTask)
	return mux
}
