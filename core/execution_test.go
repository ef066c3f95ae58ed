package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type memoryRecordSink struct {
	mu      sync.Mutex
	records []ExecutionRecord
	failAt  int
}

func (s *memoryRecordSink) Record(_ context.Context, record ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.records)+1 == s.failAt {
		s.failAt = 0
		return errors.New("disk full")
	}
	s.records = append(s.records, record)
	return nil
}

func TestExecutionContext_ConcurrentAppend(t *testing.T) {
	exec := NewExecutionContext("concurrent")
	var wg sync.WaitGroup
	for index := 0; index < 50; index++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.Info(DomainPermissionGroup, ActionCreate, StatusCreated, fmt.Sprintf("pg-%d", index), "created")
		}()
	}
	wg.Wait()
	records := exec.Records()
	if len(records) != 50 {
		t.Fatalf("expected 50 records, got %d", len(records))
	}
	seen := map[string]bool{}
	for _, record := range records {
		if record.ExecutionID != exec.ID() || record.Task != "concurrent" {
			t.Fatalf("expected records stamped with execution, got %+v", record)
		}
		seen[record.ID] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected unique record ids")
	}
}

func TestExecutionContext_ErrorRecordsCarryBody(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exec := NewExecutionContext("errors", WithExecutionID("exec-1"), WithExecutionClock(func() time.Time { return now }))
	exec.Info(DomainResourceGroup, ActionList, StatusSucceeded, "A1", "listed")
	exec.Error(DomainResourceGroup, ActionCreate, StatusFailed, "RG1", "create failed", remoteRejected("bad item"))

	errs := exec.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one error record, got %d", len(errs))
	}
	if errs[0].Body != "bad item" || errs[0].Error == "" || errs[0].ExecutionID != "exec-1" || !errs[0].CreatedAt.Equal(now) {
		t.Fatalf("unexpected error record: %+v", errs[0])
	}
	if !exec.HasErrors() {
		t.Fatalf("expected HasErrors")
	}
}

func TestExecutionContext_FlushPersistsOnlyPending(t *testing.T) {
	exec := NewExecutionContext("flush")
	sink := &memoryRecordSink{failAt: 2}
	exec.Info(DomainAgreement, ActionValidate, StatusSucceeded, "A1", "one")
	exec.Info(DomainAgreement, ActionValidate, StatusSucceeded, "A1", "two")

	if err := exec.Flush(context.Background(), sink); err == nil {
		t.Fatalf("expected flush failure on second record")
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected first record persisted, got %d", len(sink.records))
	}
	exec.Info(DomainAgreement, ActionValidate, StatusSucceeded, "A1", "three")
	if err := exec.Flush(context.Background(), sink); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(sink.records) != 3 || sink.records[1].Message != "two" || sink.records[2].Message != "three" {
		t.Fatalf("unexpected persisted records: %+v", sink.records)
	}
	if err := exec.Flush(context.Background(), sink); err != nil || len(sink.records) != 3 {
		t.Fatalf("expected no duplicates on repeated flush")
	}
}

func TestExecutionContext_ConcurrentFlushWritesEachRecordOnce(t *testing.T) {
	exec := NewExecutionContext("flush")
	for index := 0; index < 50; index++ {
		exec.Info(DomainAgreement, ActionValidate, StatusSucceeded, "A1", fmt.Sprintf("record %d", index))
	}
	sink := &memoryRecordSink{}

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := exec.Flush(context.Background(), sink); err != nil {
				t.Errorf("flush: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(sink.records) != 50 {
		t.Fatalf("expected 50 persisted records, got %d", len(sink.records))
	}
	seen := map[string]bool{}
	for _, record := range sink.records {
		if seen[record.ID] {
			t.Fatalf("record %s persisted twice", record.ID)
		}
		seen[record.ID] = true
	}
}

func TestExecutionContext_NilIsSafe(t *testing.T) {
	var exec *ExecutionContext
	exec.Info(DomainAgreement, ActionValidate, StatusSucceeded, "", "")
	if exec.Records() != nil || exec.HasErrors() {
		t.Fatalf("expected nil context to hold nothing")
	}
	if err := exec.Flush(context.Background(), &memoryRecordSink{}); err != nil {
		t.Fatalf("expected nil flush to succeed: %v", err)
	}
}

func TestAggregateBatch_ReportsEveryOutcomeOnce(t *testing.T) {
	exec := NewExecutionContext("batch")
	outcomes := []BatchOutcome{
		{Status: BatchStatusOK, ResourceID: "a"},
		{Status: BatchStatusBadRequest, ResourceID: "b", Errors: []string{"invalid"}},
		{Status: BatchStatusInternalError, ResourceID: "c"},
		{Status: BatchStatusOK, ResourceID: "d"},
	}
	returned := AggregateBatch(exec, DomainUserAssignment, ActionAssign, outcomes)
	if len(returned) != len(outcomes) {
		t.Fatalf("expected outcomes returned unchanged")
	}
	if len(exec.Records()) != 4 || len(exec.Errors()) != 2 {
		t.Fatalf("expected 4 records with 2 errors, got %+v", exec.Records())
	}
	if err := CheckBatch("assign", outcomes); err == nil {
		t.Fatalf("expected failure when K > 0")
	}
	if err := CheckBatch("assign", outcomes[:1]); err != nil {
		t.Fatalf("expected success when K == 0: %v", err)
	}
}
