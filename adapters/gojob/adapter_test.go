package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestApplyJobEnqueuer_BuildsMessage(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	executionID, err := NewApplyJobEnqueuer(enqueuer).Enqueue(context.Background(), ApplyJob{
		AgreementID: " A1 ",
		StatePath:   "states/a1.yaml",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if executionID == "" {
		t.Fatalf("expected generated execution id")
	}
	msg := enqueuer.last
	if msg == nil || msg.JobID != JobIDApplyDesiredState || msg.ScriptPath != "states/a1.yaml" {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if msg.Parameters[ParamAgreementID] != "A1" || msg.Parameters[ParamExecutionID] != executionID {
		t.Fatalf("unexpected parameters: %#v", msg.Parameters)
	}
	if msg.IdempotencyKey != "apply:A1:"+executionID || msg.DedupPolicy != DedupDrop {
		t.Fatalf("unexpected dedup fields: %q %q", msg.IdempotencyKey, msg.DedupPolicy)
	}

	roundTrip, err := ApplyJobFromMessage(msg)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if roundTrip.AgreementID != "A1" || roundTrip.ExecutionID != executionID {
		t.Fatalf("unexpected decoded job: %+v", roundTrip)
	}
}

func TestApplyJobEnqueuer_Validation(t *testing.T) {
	enqueuer := NewApplyJobEnqueuer(&stubQueueEnqueuer{})
	if _, err := enqueuer.Enqueue(context.Background(), ApplyJob{StatePath: "s.yaml"}); err == nil {
		t.Fatalf("expected missing agreement error")
	}
	if _, err := enqueuer.Enqueue(context.Background(), ApplyJob{AgreementID: "A1"}); err == nil {
		t.Fatalf("expected missing path error")
	}
	if _, err := NewApplyJobEnqueuer(nil).Enqueue(context.Background(), ApplyJob{AgreementID: "A1", StatePath: "s"}); err == nil {
		t.Fatalf("expected unconfigured enqueuer error")
	}
	if _, err := ApplyJobFromMessage(&job.ExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected unexpected job id error")
	}
}

func TestApplyJobRunner_RunDelivery(t *testing.T) {
	ctx := context.Background()
	apply := &stubApplyCommand{}
	runner := NewApplyJobRunner(func(_ context.Context, path string) (core.DesiredState, error) {
		if path != "states/a1.yaml" {
			t.Fatalf("unexpected path %q", path)
		}
		return core.DesiredState{Agreement: core.Agreement{ID: "A1"}}, nil
	}, apply)

	delivery := &stubQueueDelivery{msg: applyMessage("A1", "exec-1")}
	if err := runner.RunDelivery(ctx, delivery, 1, RetryPolicy{}); err != nil {
		t.Fatalf("run delivery: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected ack after successful apply")
	}
	if apply.last.ExecutionID != "exec-1" || apply.last.State.Agreement.ID != "A1" {
		t.Fatalf("unexpected apply message: %+v", apply.last)
	}
}

func TestApplyJobRunner_NacksWithBoundedRetry(t *testing.T) {
	ctx := context.Background()
	apply := &stubApplyCommand{err: errors.New("remote unavailable")}
	runner := NewApplyJobRunner(func(context.Context, string) (core.DesiredState, error) {
		return core.DesiredState{Agreement: core.Agreement{ID: "A1"}}, nil
	}, apply)
	policy := RetryPolicy{MaxAttempts: 3, DeadLetterOnMax: true}

	delivery := &stubQueueDelivery{msg: applyMessage("A1", "exec-1")}
	if err := runner.RunDelivery(ctx, delivery, 1, policy); err == nil {
		t.Fatalf("expected apply failure")
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.Reason != "remote unavailable" {
		t.Fatalf("expected requeue before max attempts, got %+v", delivery.nackOpts)
	}

	delivery = &stubQueueDelivery{msg: applyMessage("A1", "exec-1")}
	_ = runner.RunDelivery(ctx, delivery, 3, policy)
	if delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", delivery.nackOpts)
	}
}

func TestApplyJobRunner_RejectsAgreementMismatch(t *testing.T) {
	runner := NewApplyJobRunner(func(context.Context, string) (core.DesiredState, error) {
		return core.DesiredState{Agreement: core.Agreement{ID: "B2"}}, nil
	}, &stubApplyCommand{})
	if err := runner.Run(context.Background(), applyMessage("A1", "exec-1")); err == nil {
		t.Fatalf("expected agreement mismatch error")
	}
}

func TestRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second}
	out := policy.NormalizeAttempt(queue.NackOptions{Delay: 30 * time.Second, Requeue: true, Reason: " transient "}, 1)
	if out.Delay != 10*time.Second || !out.Requeue || out.Reason != "transient" {
		t.Fatalf("unexpected normalized options: %+v", out)
	}
	out = policy.NormalizeAttempt(queue.NackOptions{Delay: -time.Second}, 3)
	if out.Delay != 0 || !out.Requeue || out.DeadLetter {
		t.Fatalf("expected requeue without dead letter policy, got %+v", out)
	}
	out = policy.NormalizeAttempt(queue.NackOptions{DeadLetter: true, Requeue: true}, 1)
	if out.Requeue || !out.DeadLetter {
		t.Fatalf("expected explicit dead letter to win, got %+v", out)
	}
}

func TestExecutionHook_RecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	hook := NewExecutionHook(sink)
	msg := applyMessage("A1", "exec-9")

	hook.OnStart(ctx, worker.Event{Message: msg, Attempt: 1})
	hook.OnRetry(ctx, worker.Event{Delivery: &stubQueueDelivery{msg: msg}, Attempt: 1, Delay: 5 * time.Second, Err: errors.New("retry")})
	hook.OnFailure(ctx, worker.Event{Message: msg, Attempt: 2, Err: errors.New("boom")})
	hook.OnSuccess(ctx, worker.Event{Message: &job.ExecutionMessage{JobID: "unrelated"}})

	if len(sink.records) != 3 {
		t.Fatalf("expected 3 lifecycle records, got %d", len(sink.records))
	}
	for _, record := range sink.records {
		if record.ExecutionID != "exec-9" || record.ResourceID != "A1" || record.Domain != core.DomainJob {
			t.Fatalf("unexpected record: %+v", record)
		}
	}
	if sink.records[1].Status != core.StatusRetrying || sink.records[1].Error != "retry" {
		t.Fatalf("unexpected retry record: %+v", sink.records[1])
	}
	if sink.records[2].Level != core.ExecutionLevelError || sink.records[2].Status != core.StatusFailed {
		t.Fatalf("unexpected failure record: %+v", sink.records[2])
	}
	if errs := hook.FlushErrors(); len(errs) != 0 {
		t.Fatalf("unexpected sink errors: %v", errs)
	}
}

func TestExecutionHook_CollectsSinkErrors(t *testing.T) {
	hook := NewExecutionHook(&memorySink{err: errors.New("db down")})
	hook.OnStart(context.Background(), worker.Event{Message: applyMessage("A1", "exec-1")})
	if errs := hook.FlushErrors(); len(errs) != 1 {
		t.Fatalf("expected one sink error, got %v", errs)
	}
	if errs := hook.FlushErrors(); len(errs) != 0 {
		t.Fatalf("expected errors to be cleared, got %v", errs)
	}
}

func applyMessage(agreementID, executionID string) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:      JobIDApplyDesiredState,
		ScriptPath: "states/a1.yaml",
		Parameters: map[string]any{
			ParamAgreementID: agreementID,
			ParamExecutionID: executionID,
		},
	}
}

type stubApplyCommand struct {
	last entcommand.ApplyDesiredStateMessage
	err  error
}

func (s *stubApplyCommand) Execute(_ context.Context, msg entcommand.ApplyDesiredStateMessage) error {
	s.last = msg
	return s.err
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type memorySink struct {
	records []core.ExecutionRecord
	err     error
}

func (s *memorySink) Record(_ context.Context, record core.ExecutionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}
