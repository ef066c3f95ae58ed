package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocmd "github.com/goliatone/go-command"
	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/google/uuid"
)

const JobIDApplyDesiredState = "entitlements.desired_state.apply"

const (
	ParamAgreementID = "agreement_id"
	ParamExecutionID = "execution_id"
)

// DedupDrop drops a job whose idempotency key is already queued.
const DedupDrop = job.DeduplicationPolicy("drop")

// RetryPolicy bounds queue retries for apply jobs.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ApplyJob asks a worker to converge one agreement to the desired state
// document found at StatePath.
type ApplyJob struct {
	AgreementID    string
	StatePath      string
	ExecutionID    string
	IdempotencyKey string
}

func (j ApplyJob) message() (*job.ExecutionMessage, error) {
	agreementID := strings.TrimSpace(j.AgreementID)
	if agreementID == "" {
		return nil, fmt.Errorf("gojob: agreement id is required")
	}
	statePath := strings.TrimSpace(j.StatePath)
	if statePath == "" {
		return nil, fmt.Errorf("gojob: desired state path is required")
	}
	key := strings.TrimSpace(j.IdempotencyKey)
	if key == "" {
		key = "apply:" + agreementID + ":" + j.ExecutionID
	}
	return &job.ExecutionMessage{
		JobID:      JobIDApplyDesiredState,
		ScriptPath: statePath,
		Parameters: map[string]any{
			ParamAgreementID: agreementID,
			ParamExecutionID: j.ExecutionID,
		},
		IdempotencyKey: key,
		DedupPolicy:    DedupDrop,
	}, nil
}

// ApplyJobFromMessage reads an ApplyJob back from a dequeued message.
func ApplyJobFromMessage(msg *job.ExecutionMessage) (ApplyJob, error) {
	if msg == nil {
		return ApplyJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDApplyDesiredState {
		return ApplyJob{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	return ApplyJob{
		AgreementID:    stringParam(msg.Parameters, ParamAgreementID),
		StatePath:      strings.TrimSpace(msg.ScriptPath),
		ExecutionID:    stringParam(msg.Parameters, ParamExecutionID),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}, nil
}

type ApplyJobEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewApplyJobEnqueuer(enqueuer queue.Enqueuer) *ApplyJobEnqueuer {
	return &ApplyJobEnqueuer{enqueuer: enqueuer}
}

// Enqueue submits the job and returns the execution id its records will carry.
func (e *ApplyJobEnqueuer) Enqueue(ctx context.Context, applyJob ApplyJob) (string, error) {
	if e == nil || e.enqueuer == nil {
		return "", fmt.Errorf("gojob: enqueuer is not configured")
	}
	applyJob.ExecutionID = strings.TrimSpace(applyJob.ExecutionID)
	if applyJob.ExecutionID == "" {
		applyJob.ExecutionID = uuid.NewString()
	}
	msg, err := applyJob.message()
	if err != nil {
		return "", err
	}
	if err := e.enqueuer.Enqueue(ctx, msg); err != nil {
		return "", err
	}
	return applyJob.ExecutionID, nil
}

// StateLoader reads the desired state document referenced by an apply job.
type StateLoader func(ctx context.Context, path string) (core.DesiredState, error)

// ApplyJobRunner executes dequeued apply jobs through the apply command.
type ApplyJobRunner struct {
	load  StateLoader
	apply gocmd.Commander[entcommand.ApplyDesiredStateMessage]
}

func NewApplyJobRunner(load StateLoader, apply gocmd.Commander[entcommand.ApplyDesiredStateMessage]) *ApplyJobRunner {
	return &ApplyJobRunner{load: load, apply: apply}
}

func (r *ApplyJobRunner) Run(ctx context.Context, msg *job.ExecutionMessage) error {
	if r == nil || r.load == nil || r.apply == nil {
		return fmt.Errorf("gojob: apply runner is not configured")
	}
	applyJob, err := ApplyJobFromMessage(msg)
	if err != nil {
		return err
	}
	state, err := r.load(ctx, applyJob.StatePath)
	if err != nil {
		return fmt.Errorf("gojob: load desired state %s: %w", applyJob.StatePath, err)
	}
	if state.Agreement.ID != applyJob.AgreementID {
		return fmt.Errorf("gojob: desired state is for agreement %q, job targets %q", state.Agreement.ID, applyJob.AgreementID)
	}
	return r.apply.Execute(ctx, entcommand.ApplyDesiredStateMessage{
		ExecutionID: applyJob.ExecutionID,
		State:       state,
	})
}

// RunDelivery runs one delivery and acks or nacks it under the retry policy.
func (r *ApplyJobRunner) RunDelivery(ctx context.Context, delivery queue.Delivery, attempt int, policy RetryPolicy) error {
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	runErr := r.Run(ctx, delivery.Message())
	if runErr == nil {
		return delivery.Ack(ctx)
	}
	nack := policy.NormalizeAttempt(queue.NackOptions{Requeue: true, Reason: runErr.Error()}, attempt)
	if err := delivery.Nack(ctx, nack); err != nil {
		return fmt.Errorf("gojob: nack after %v: %w", runErr, err)
	}
	return runErr
}

// ExecutionHook records worker lifecycle events for apply jobs as execution
// records under the job's execution id.
type ExecutionHook struct {
	sink core.ExecutionRecordSink

	mu     sync.Mutex
	errors []error
}

func NewExecutionHook(sink core.ExecutionRecordSink) *ExecutionHook {
	return &ExecutionHook{sink: sink}
}

// FlushErrors returns and clears sink failures seen by the hook.
func (h *ExecutionHook) FlushErrors() []error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.errors
	h.errors = nil
	return out
}

func (h *ExecutionHook) OnStart(ctx context.Context, event worker.Event) {
	h.record(ctx, event, func(exec *core.ExecutionContext, agreementID string) {
		exec.Info(core.DomainJob, core.ActionRun, core.StatusStarted, agreementID,
			fmt.Sprintf("apply job started, attempt %d", event.Attempt))
	})
}

func (h *ExecutionHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, event, func(exec *core.ExecutionContext, agreementID string) {
		exec.Info(core.DomainJob, core.ActionRun, core.StatusSucceeded, agreementID,
			fmt.Sprintf("apply job finished in %s", event.Duration))
	})
}

func (h *ExecutionHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, event, func(exec *core.ExecutionContext, agreementID string) {
		exec.Error(core.DomainJob, core.ActionRun, core.StatusFailed, agreementID,
			fmt.Sprintf("apply job failed on attempt %d", event.Attempt), event.Err)
	})
}

func (h *ExecutionHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, event, func(exec *core.ExecutionContext, agreementID string) {
		exec.Error(core.DomainJob, core.ActionRun, core.StatusRetrying, agreementID,
			fmt.Sprintf("apply job retrying in %s", event.Delay), event.Err)
	})
}

func (h *ExecutionHook) record(ctx context.Context, event worker.Event, write func(*core.ExecutionContext, string)) {
	if h == nil || h.sink == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	applyJob, err := ApplyJobFromMessage(message)
	if err != nil {
		return
	}
	exec := core.NewExecutionContext(entcommand.TaskApplyDesiredState, core.WithExecutionID(applyJob.ExecutionID))
	write(exec, applyJob.AgreementID)
	if err := exec.Flush(ctx, h.sink); err != nil {
		h.mu.Lock()
		h.errors = append(h.errors, err)
		h.mu.Unlock()
	}
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

var _ worker.Hook = (*ExecutionHook)(nil)
