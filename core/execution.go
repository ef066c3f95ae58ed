package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ExecutionLevel string

const (
	ExecutionLevelInfo  ExecutionLevel = "info"
	ExecutionLevelError ExecutionLevel = "error"
)

const (
	DomainResourceGroup   = "resource-group"
	DomainPermissionGroup = "permission-group"
	DomainRoleTemplate    = "role-template"
	DomainUserAssignment  = "user-assignment"
	DomainAdministrators  = "administrators"
	DomainAgreement       = "agreement"
	DomainJob             = "job"
)

const (
	ActionValidate = "validate"
	ActionList     = "list"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionAssign   = "assign"
	ActionFetch    = "fetch"
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionDelete   = "delete"
	ActionClear    = "clear"
	ActionResolve  = "resolve"
	ActionRun      = "run"
)

const (
	StatusCreated   = "created"
	StatusUpdated   = "updated"
	StatusExists    = "exists"
	StatusUnchanged = "unchanged"
	StatusSkipped   = "skipped"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusStarted   = "started"
	StatusRetrying  = "retrying"
)

// ExecutionRecord is one structured step outcome.
type ExecutionRecord struct {
	ID          string
	ExecutionID string
	Task        string
	Level       ExecutionLevel
	Domain      string
	Action      string
	Status      string
	ResourceID  string
	Message     string
	Body        string
	Error       string
	CreatedAt   time.Time
}

type ExecutionContextOption func(*ExecutionContext)

func WithExecutionID(id string) ExecutionContextOption {
	return func(c *ExecutionContext) {
		if c == nil || strings.TrimSpace(id) == "" {
			return
		}
		c.id = strings.TrimSpace(id)
	}
}

func WithExecutionClock(now func() time.Time) ExecutionContextOption {
	return func(c *ExecutionContext) {
		if c == nil || now == nil {
			return
		}
		c.now = now
	}
}

// ExecutionContext accumulates the info and error records of one unit of
// work. It is safe for concurrent appends from fan-out branches.
type ExecutionContext struct {
	id   string
	name string
	now  func() time.Time

	mu      sync.Mutex
	records []ExecutionRecord
	flushed int

	// flushMu serializes Flush calls; mu alone guards records and flushed.
	flushMu sync.Mutex
}

func NewExecutionContext(name string, opts ...ExecutionContextOption) *ExecutionContext {
	c := &ExecutionContext{
		id:   uuid.NewString(),
		name: strings.TrimSpace(name),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *ExecutionContext) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

func (c *ExecutionContext) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

func (c *ExecutionContext) Info(domain, action, status, resourceID, message string) {
	c.append(ExecutionRecord{
		Level:      ExecutionLevelInfo,
		Domain:     domain,
		Action:     action,
		Status:     status,
		ResourceID: resourceID,
		Message:    message,
	})
}

func (c *ExecutionContext) Error(domain, action, status, resourceID, message string, err error) {
	record := ExecutionRecord{
		Level:      ExecutionLevelError,
		Domain:     domain,
		Action:     action,
		Status:     status,
		ResourceID: resourceID,
		Message:    message,
		Body:       RemoteBody(err),
	}
	var taskErr *TaskError
	if errors.As(err, &taskErr) && taskErr != nil && record.Body == "" {
		record.Body = strings.TrimSpace(taskErr.Body)
	}
	if err != nil {
		record.Error = err.Error()
	}
	c.append(record)
}

func (c *ExecutionContext) append(record ExecutionRecord) {
	if c == nil {
		return
	}
	record.Domain = strings.TrimSpace(record.Domain)
	record.Action = strings.TrimSpace(record.Action)
	record.Status = strings.TrimSpace(record.Status)
	record.ResourceID = strings.TrimSpace(record.ResourceID)
	record.Message = strings.TrimSpace(record.Message)

	c.mu.Lock()
	defer c.mu.Unlock()
	record.ID = uuid.NewString()
	record.ExecutionID = c.id
	record.Task = c.name
	record.CreatedAt = c.now()
	c.records = append(c.records, record)
}

// Records returns a snapshot of every record appended so far.
func (c *ExecutionContext) Records() []ExecutionRecord {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExecutionRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *ExecutionContext) Errors() []ExecutionRecord {
	records := c.Records()
	out := make([]ExecutionRecord, 0, len(records))
	for _, record := range records {
		if record.Level == ExecutionLevelError {
			out = append(out, record)
		}
	}
	return out
}

func (c *ExecutionContext) HasErrors() bool {
	return len(c.Errors()) > 0
}

// Flush writes records not yet persisted to sink. A failed write leaves the
// failing record and everything after it pending for the next flush.
// Concurrent flushes run one at a time and never write a record twice.
func (c *ExecutionContext) Flush(ctx context.Context, sink ExecutionRecordSink) error {
	if c == nil || sink == nil {
		return nil
	}
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	pending := make([]ExecutionRecord, len(c.records)-c.flushed)
	copy(pending, c.records[c.flushed:])
	c.mu.Unlock()

	for _, record := range pending {
		if err := sink.Record(ctx, record); err != nil {
			return fmt.Errorf("core: flush execution record %s: %w", record.ID, err)
		}
		c.mu.Lock()
		c.flushed++
		c.mu.Unlock()
	}
	return nil
}

func ensureExecution(exec *ExecutionContext, name string) *ExecutionContext {
	if exec != nil {
		return exec
	}
	return NewExecutionContext(name)
}
