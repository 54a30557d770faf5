// Package gojob schedules connector maintenance through a go-job queue.
// Maintenance sweeps expired OAuth state entries, so runs are cheap and
// duplicate runs are harmless.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-connectors/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const JobIDMaintenance = "connectors.maintenance"

// MaintenanceRunner is the slice of the connector service the worker needs.
type MaintenanceRunner interface {
	RunMaintenance(ctx context.Context) (core.MaintenanceResult, error)
}

// RetryPolicy bounds nack behavior so a failing maintenance run cannot
// requeue forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func (p RetryPolicy) Normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts && out.Disposition == queue.NackDispositionRetry {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	return out
}

// NewMaintenanceMessage builds the queue message for a maintenance sweep.
// Duplicate scheduled runs collapse through the drop dedup policy.
func NewMaintenanceMessage(idempotencyKey string) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDMaintenance,
		Parameters:     map[string]any{},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

func EnqueueMaintenance(ctx context.Context, enqueuer queue.Enqueuer, idempotencyKey string) (queue.EnqueueReceipt, error) {
	if enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is required")
	}
	receipt, err := enqueuer.Enqueue(ctx, NewMaintenanceMessage(idempotencyKey))
	if err != nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueue maintenance: %w", err)
	}
	return receipt, nil
}

// MaintenanceWorker consumes maintenance deliveries and runs the sweep.
type MaintenanceWorker struct {
	runner MaintenanceRunner
	policy RetryPolicy
	logger glog.Logger
}

func NewMaintenanceWorker(runner MaintenanceRunner, policy RetryPolicy, logger glog.Logger) *MaintenanceWorker {
	if logger == nil {
		logger = glog.Nop()
	}
	return &MaintenanceWorker{runner: runner, policy: policy, logger: logger}
}

// ProcessDelivery runs one maintenance sweep for a queue delivery. Success
// acks, failure nacks with the retry policy applied. Deliveries carrying an
// unknown job id are dead-lettered rather than requeued.
func (w *MaintenanceWorker) ProcessDelivery(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if w == nil || w.runner == nil {
		return fmt.Errorf("gojob: maintenance runner is required")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}

	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDMaintenance {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		w.logger.Error("unexpected job delivery", "job_id", jobID)
		return delivery.Nack(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      fmt.Sprintf("unexpected job id %q", jobID),
		})
	}

	result, err := w.runner.RunMaintenance(ctx)
	if err != nil {
		w.logger.Error("maintenance run failed", "attempt", attempt, "error", err.Error())
		opts := w.policy.Normalize(queue.NackOptions{
			Disposition: queue.NackDispositionRetry,
			Reason:      err.Error(),
		}, attempt)
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			return fmt.Errorf("gojob: nack maintenance delivery: %w", nackErr)
		}
		return err
	}

	w.logger.Info("maintenance run completed", "purged_states", result.PurgedStates)
	return delivery.Ack(ctx)
}

// Dequeue pulls the next delivery so callers can drive ProcessDelivery in
// their own loop.
func (w *MaintenanceWorker) Dequeue(ctx context.Context, dequeuer queue.Dequeuer) (queue.Delivery, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	return dequeuer.Dequeue(ctx)
}

// LoggingHook emits structured logs for worker lifecycle events.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	if logger == nil {
		logger = glog.Nop()
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("maintenance job started", eventArgs(event)...)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("maintenance job succeeded", eventArgs(event)...)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	args := eventArgs(event)
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	h.log(ctx).Error("maintenance job failed", args...)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("maintenance job retry scheduled", eventArgs(event)...)
}

func (h *LoggingHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	if ctx == nil {
		return h.logger
	}
	return h.logger.WithContext(ctx)
}

func eventArgs(event worker.Event) []any {
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	} else if event.Delivery != nil && event.Delivery.Message() != nil {
		jobID = event.Delivery.Message().JobID
	}
	return []any{
		"job_id", jobID,
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
}

var _ worker.Hook = (*LoggingHook)(nil)
