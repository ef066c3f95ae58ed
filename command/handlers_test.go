package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-entitlements/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubEngine struct {
	applyFn                func(ctx context.Context, exec *core.ExecutionContext, state core.DesiredState) (core.ApplyResult, error)
	setupResourceGroupFn   func(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, group core.ResourceGroup, mode core.IngestionMode) (core.ResourceGroup, error)
	setupPermissionGroupFn func(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, groups []core.PermissionGroup) ([]core.PermissionGroup, error)
	assignBatchFn          func(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, users []core.UserPermissions, mode core.IngestionMode) ([]core.UserAssignment, error)
	clearFn                func(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, user core.User) error
}

func (s stubEngine) Apply(ctx context.Context, exec *core.ExecutionContext, state core.DesiredState) (core.ApplyResult, error) {
	if s.applyFn == nil {
		return core.ApplyResult{}, fmt.Errorf("apply not configured")
	}
	return s.applyFn(ctx, exec, state)
}

func (s stubEngine) SetupResourceGroup(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, group core.ResourceGroup, mode core.IngestionMode) (core.ResourceGroup, error) {
	if s.setupResourceGroupFn == nil {
		return core.ResourceGroup{}, fmt.Errorf("setup resource group not configured")
	}
	return s.setupResourceGroupFn(ctx, exec, agreement, group, mode)
}

func (stubEngine) ReconcileResourceGroups(context.Context, *core.ExecutionContext, core.Agreement, core.ResourceGroupType, []core.ResourceGroup, core.IngestionMode) ([]core.ResourceGroup, error) {
	return nil, fmt.Errorf("reconcile not configured")
}

func (s stubEngine) SetupPermissionGroups(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, groups []core.PermissionGroup) ([]core.PermissionGroup, error) {
	if s.setupPermissionGroupFn == nil {
		return nil, fmt.Errorf("setup permission groups not configured")
	}
	return s.setupPermissionGroupFn(ctx, exec, agreement, groups)
}

func (stubEngine) SetupRoleTemplate(context.Context, *core.ExecutionContext, core.Agreement, core.RoleTemplate) (core.RoleTemplate, error) {
	return core.RoleTemplate{}, fmt.Errorf("setup role template not configured")
}

func (stubEngine) AssignPermissions(context.Context, *core.ExecutionContext, core.Agreement, core.UserPermissions) (core.UserAssignment, error) {
	return core.UserAssignment{}, fmt.Errorf("assign not configured")
}

func (s stubEngine) AssignPermissionsBatch(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, users []core.UserPermissions, mode core.IngestionMode) ([]core.UserAssignment, error) {
	if s.assignBatchFn == nil {
		return nil, fmt.Errorf("assign batch not configured")
	}
	return s.assignBatchFn(ctx, exec, agreement, users, mode)
}

func (stubEngine) SetAdministrators(_ context.Context, _ *core.ExecutionContext, agreement core.Agreement) (core.Agreement, error) {
	return agreement, nil
}

func (stubEngine) RemoveAdministrators(context.Context, *core.ExecutionContext, core.Agreement) error {
	return nil
}

func (stubEngine) DeletePermissionGroups(context.Context, *core.ExecutionContext, core.Agreement) error {
	return nil
}

func (s stubEngine) ClearUserPermissions(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, user core.User) error {
	if s.clearFn == nil {
		return fmt.Errorf("clear not configured")
	}
	return s.clearFn(ctx, exec, agreement, user)
}

var _ MutatingEngine = stubEngine{}

type memorySink struct {
	mu      sync.Mutex
	records []core.ExecutionRecord
	err     error
}

func (s *memorySink) Record(_ context.Context, record core.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func TestApplyDesiredStateCommand_DelegatesStoresAndFlushes(t *testing.T) {
	sink := &memorySink{}
	engine := stubEngine{
		applyFn: func(_ context.Context, exec *core.ExecutionContext, state core.DesiredState) (core.ApplyResult, error) {
			if exec.Name() != TaskApplyDesiredState {
				t.Fatalf("expected task name %q, got %q", TaskApplyDesiredState, exec.Name())
			}
			exec.Info(core.DomainAgreement, core.ActionValidate, core.StatusSucceeded, state.Agreement.ID, "validated")
			return core.ApplyResult{Agreement: state.Agreement}, nil
		},
	}

	cmd := NewApplyDesiredStateCommand(engine, WithRecordSink(sink))
	collector := gocmd.NewResult[Result[core.ApplyResult]]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ApplyDesiredStateMessage{
		ExecutionID: "exec-42",
		State:       core.DesiredState{Agreement: core.Agreement{ID: "A1"}},
	})
	if err != nil {
		t.Fatalf("execute apply: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Value.Agreement.ID != "A1" || result.ExecutionID != "exec-42" || len(result.Records) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(sink.records) != 1 || sink.records[0].ExecutionID != "exec-42" {
		t.Fatalf("expected records flushed to sink, got %#v", sink.records)
	}
}

func TestSetupResourceGroupCommand_FailureMapsErrorAndKeepsRecords(t *testing.T) {
	sink := &memorySink{}
	engine := stubEngine{
		setupResourceGroupFn: func(_ context.Context, exec *core.ExecutionContext, agreement core.Agreement, group core.ResourceGroup, _ core.IngestionMode) (core.ResourceGroup, error) {
			cause := &core.RemoteError{Kind: core.RemoteErrorRejected, StatusCode: 400, Body: "invalid item"}
			exec.Error(core.DomainResourceGroup, core.ActionCreate, core.StatusFailed, group.Name, "create failed", cause)
			return core.ResourceGroup{}, &core.TaskError{
				Task:        exec.Name(),
				Domain:      core.DomainResourceGroup,
				Action:      core.ActionCreate,
				AgreementID: agreement.ID,
				ResourceID:  group.Name,
				Message:     "create failed",
				Body:        cause.Body,
				Cause:       cause,
			}
		},
	}

	cmd := NewSetupResourceGroupCommand(engine, WithRecordSink(sink))
	collector := gocmd.NewResult[Result[core.ResourceGroup]]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, SetupResourceGroupMessage{
		Agreement: core.Agreement{ID: "A1"},
		Group:     core.ResourceGroup{Name: "RG1"},
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorTextRemoteRejected {
		t.Fatalf("expected %q, got %q", core.ErrorTextRemoteRejected, rich.TextCode)
	}
	result, ok := collector.Load()
	if !ok || len(result.Errors()) != 1 || result.Errors()[0].Body != "invalid item" {
		t.Fatalf("expected failed execution records in result, got %#v", result)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected error record flushed, got %d", len(sink.records))
	}
}

func TestCommand_FlushFailureSurfacesAsInternalError(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	engine := stubEngine{
		clearFn: func(_ context.Context, exec *core.ExecutionContext, _ core.Agreement, user core.User) error {
			exec.Info(core.DomainUserAssignment, core.ActionClear, core.StatusSucceeded, user.ID, "cleared")
			return nil
		},
	}
	cmd := NewClearUserPermissionsCommand(engine, WithRecordSink(sink))
	err := cmd.Execute(context.Background(), ClearUserPermissionsMessage{
		Agreement: core.Agreement{ID: "A1"},
		User:      core.User{ID: "u-1"},
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorTextInternal {
		t.Fatalf("expected internal persist error, got %v", err)
	}
}

func TestCommand_WithoutSinkSkipsFlush(t *testing.T) {
	engine := stubEngine{
		assignBatchFn: func(_ context.Context, _ *core.ExecutionContext, _ core.Agreement, users []core.UserPermissions, mode core.IngestionMode) ([]core.UserAssignment, error) {
			if mode != core.IngestionModeMerge || len(users) != 1 {
				t.Fatalf("unexpected batch input: %v %d", mode, len(users))
			}
			return []core.UserAssignment{{UserID: "u-1", AgreementID: "A1"}}, nil
		},
	}
	cmd := NewAssignPermissionsBatchCommand(engine)
	collector := gocmd.NewResult[Result[[]core.UserAssignment]]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := cmd.Execute(ctx, AssignPermissionsBatchMessage{
		Agreement: core.Agreement{ID: "A1"},
		Users:     []core.UserPermissions{{User: core.User{ID: "u-1"}}},
		Mode:      core.IngestionModeMerge,
	})
	if err != nil {
		t.Fatalf("execute batch: %v", err)
	}
	result, ok := collector.Load()
	if !ok || len(result.Value) != 1 || result.ExecutionID == "" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"apply":           ApplyDesiredStateMessage{},
		"resource group":  SetupResourceGroupMessage{Agreement: core.Agreement{ID: "A1"}},
		"reconcile":       ReconcileResourceGroupsMessage{Agreement: core.Agreement{ID: "A1"}},
		"role template":   SetupRoleTemplateMessage{Agreement: core.Agreement{ID: "A1"}},
		"assign":          AssignPermissionsMessage{Agreement: core.Agreement{ID: "A1"}},
		"assign batch":    AssignPermissionsBatchMessage{Agreement: core.Agreement{ID: "A1"}, Users: []core.UserPermissions{{}}},
		"clear":           ClearUserPermissionsMessage{Agreement: core.Agreement{ID: "A1"}},
		"set admins":      SetAdministratorsMessage{},
		"remove admins":   RemoveAdministratorsMessage{},
		"delete groups":   DeletePermissionGroupsMessage{},
		"permission sets": SetupPermissionGroupsMessage{},
	}
	for name, msg := range cases {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorTextBadInput {
			t.Fatalf("%s: unexpected envelope %q %q", name, rich.Category, rich.TextCode)
		}
	}
	if err := (SetAdministratorsMessage{Agreement: core.Agreement{ID: "A1"}}).Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
}

func TestCommand_NilEngineReturnsRichError(t *testing.T) {
	var cmd *ApplyDesiredStateCommand
	err := cmd.Execute(context.Background(), ApplyDesiredStateMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
	if err := NewSetAdministratorsCommand(nil).Execute(context.Background(), SetAdministratorsMessage{}); err == nil {
		t.Fatalf("expected error for missing engine")
	}
}
