package command

import (
	"context"
	"errors"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-entitlements/core"
)

type MutatingEngine interface {
	Apply(ctx context.Context, exec *core.ExecutionContext, state core.DesiredState) (core.ApplyResult, error)
	SetupResourceGroup(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, group core.ResourceGroup, mode core.IngestionMode) (core.ResourceGroup, error)
	ReconcileResourceGroups(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, groupType core.ResourceGroupType, groups []core.ResourceGroup, mode core.IngestionMode) ([]core.ResourceGroup, error)
	SetupPermissionGroups(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, groups []core.PermissionGroup) ([]core.PermissionGroup, error)
	SetupRoleTemplate(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, template core.RoleTemplate) (core.RoleTemplate, error)
	AssignPermissions(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, permissions core.UserPermissions) (core.UserAssignment, error)
	AssignPermissionsBatch(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, users []core.UserPermissions, mode core.IngestionMode) ([]core.UserAssignment, error)
	SetAdministrators(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement) (core.Agreement, error)
	RemoveAdministrators(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement) error
	DeletePermissionGroups(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement) error
	ClearUserPermissions(ctx context.Context, exec *core.ExecutionContext, agreement core.Agreement, user core.User) error
}

// Result is stored in the go-command result collector for every command run,
// including failed ones, so callers can inspect the execution records.
type Result[T any] struct {
	Value       T
	ExecutionID string
	Records     []core.ExecutionRecord
}

func (r Result[T]) Errors() []core.ExecutionRecord {
	out := make([]core.ExecutionRecord, 0)
	for _, record := range r.Records {
		if record.Level == core.ExecutionLevelError {
			out = append(out, record)
		}
	}
	return out
}

type Option func(*handler)

// WithRecordSink flushes each command's execution records to sink.
func WithRecordSink(sink core.ExecutionRecordSink) Option {
	return func(h *handler) {
		h.sink = sink
	}
}

type handler struct {
	engine MutatingEngine
	sink   core.ExecutionRecordSink
}

func newHandler(engine MutatingEngine, opts []Option) handler {
	h := handler{engine: engine}
	for _, opt := range opts {
		if opt != nil {
			opt(&h)
		}
	}
	return h
}

func (h *handler) ready() bool {
	return h != nil && h.engine != nil
}

func execute[T any](
	ctx context.Context,
	h handler,
	task string,
	executionID string,
	run func(exec *core.ExecutionContext) (T, error),
) error {
	var opts []core.ExecutionContextOption
	if id := strings.TrimSpace(executionID); id != "" {
		opts = append(opts, core.WithExecutionID(id))
	}
	exec := core.NewExecutionContext(task, opts...)

	value, runErr := run(exec)

	var flushErr error
	if h.sink != nil {
		flushErr = exec.Flush(ctx, h.sink)
	}
	storeResult(ctx, Result[T]{Value: value, ExecutionID: exec.ID(), Records: exec.Records()})

	switch {
	case runErr != nil && flushErr != nil:
		return errors.Join(core.MapError(runErr), commandPersistError(flushErr))
	case runErr != nil:
		return core.MapError(runErr)
	case flushErr != nil:
		return commandPersistError(flushErr)
	}
	return nil
}

type ApplyDesiredStateCommand struct {
	handler
}

func NewApplyDesiredStateCommand(engine MutatingEngine, opts ...Option) *ApplyDesiredStateCommand {
	return &ApplyDesiredStateCommand{handler: newHandler(engine, opts)}
}

func (c *ApplyDesiredStateCommand) Execute(ctx context.Context, msg ApplyDesiredStateMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: apply engine is required")
	}
	return execute(ctx, c.handler, TaskApplyDesiredState, msg.ExecutionID, func(exec *core.ExecutionContext) (core.ApplyResult, error) {
		return c.engine.Apply(ctx, exec, msg.State)
	})
}

type SetupResourceGroupCommand struct {
	handler
}

func NewSetupResourceGroupCommand(engine MutatingEngine, opts ...Option) *SetupResourceGroupCommand {
	return &SetupResourceGroupCommand{handler: newHandler(engine, opts)}
}

func (c *SetupResourceGroupCommand) Execute(ctx context.Context, msg SetupResourceGroupMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: resource group engine is required")
	}
	return execute(ctx, c.handler, TaskSetupResourceGroup, msg.ExecutionID, func(exec *core.ExecutionContext) (core.ResourceGroup, error) {
		return c.engine.SetupResourceGroup(ctx, exec, msg.Agreement, msg.Group, msg.Mode)
	})
}

type ReconcileResourceGroupsCommand struct {
	handler
}

func NewReconcileResourceGroupsCommand(engine MutatingEngine, opts ...Option) *ReconcileResourceGroupsCommand {
	return &ReconcileResourceGroupsCommand{handler: newHandler(engine, opts)}
}

func (c *ReconcileResourceGroupsCommand) Execute(ctx context.Context, msg ReconcileResourceGroupsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: resource group engine is required")
	}
	return execute(ctx, c.handler, TaskReconcileResourceGroups, msg.ExecutionID, func(exec *core.ExecutionContext) ([]core.ResourceGroup, error) {
		return c.engine.ReconcileResourceGroups(ctx, exec, msg.Agreement, msg.GroupType, msg.Groups, msg.Mode)
	})
}

type SetupPermissionGroupsCommand struct {
	handler
}

func NewSetupPermissionGroupsCommand(engine MutatingEngine, opts ...Option) *SetupPermissionGroupsCommand {
	return &SetupPermissionGroupsCommand{handler: newHandler(engine, opts)}
}

func (c *SetupPermissionGroupsCommand) Execute(ctx context.Context, msg SetupPermissionGroupsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: permission group engine is required")
	}
	return execute(ctx, c.handler, TaskSetupPermissionGroups, msg.ExecutionID, func(exec *core.ExecutionContext) ([]core.PermissionGroup, error) {
		return c.engine.SetupPermissionGroups(ctx, exec, msg.Agreement, msg.Groups)
	})
}

type SetupRoleTemplateCommand struct {
	handler
}

func NewSetupRoleTemplateCommand(engine MutatingEngine, opts ...Option) *SetupRoleTemplateCommand {
	return &SetupRoleTemplateCommand{handler: newHandler(engine, opts)}
}

func (c *SetupRoleTemplateCommand) Execute(ctx context.Context, msg SetupRoleTemplateMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: role template engine is required")
	}
	return execute(ctx, c.handler, TaskSetupRoleTemplate, msg.ExecutionID, func(exec *core.ExecutionContext) (core.RoleTemplate, error) {
		return c.engine.SetupRoleTemplate(ctx, exec, msg.Agreement, msg.Template)
	})
}

type AssignPermissionsCommand struct {
	handler
}

func NewAssignPermissionsCommand(engine MutatingEngine, opts ...Option) *AssignPermissionsCommand {
	return &AssignPermissionsCommand{handler: newHandler(engine, opts)}
}

func (c *AssignPermissionsCommand) Execute(ctx context.Context, msg AssignPermissionsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: assignment engine is required")
	}
	return execute(ctx, c.handler, TaskAssignPermissions, msg.ExecutionID, func(exec *core.ExecutionContext) (core.UserAssignment, error) {
		return c.engine.AssignPermissions(ctx, exec, msg.Agreement, msg.Permissions)
	})
}

type AssignPermissionsBatchCommand struct {
	handler
}

func NewAssignPermissionsBatchCommand(engine MutatingEngine, opts ...Option) *AssignPermissionsBatchCommand {
	return &AssignPermissionsBatchCommand{handler: newHandler(engine, opts)}
}

func (c *AssignPermissionsBatchCommand) Execute(ctx context.Context, msg AssignPermissionsBatchMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: assignment engine is required")
	}
	return execute(ctx, c.handler, TaskAssignPermissionsBatch, msg.ExecutionID, func(exec *core.ExecutionContext) ([]core.UserAssignment, error) {
		return c.engine.AssignPermissionsBatch(ctx, exec, msg.Agreement, msg.Users, msg.Mode)
	})
}

type SetAdministratorsCommand struct {
	handler
}

func NewSetAdministratorsCommand(engine MutatingEngine, opts ...Option) *SetAdministratorsCommand {
	return &SetAdministratorsCommand{handler: newHandler(engine, opts)}
}

func (c *SetAdministratorsCommand) Execute(ctx context.Context, msg SetAdministratorsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: administrators engine is required")
	}
	return execute(ctx, c.handler, TaskSetAdministrators, msg.ExecutionID, func(exec *core.ExecutionContext) (core.Agreement, error) {
		return c.engine.SetAdministrators(ctx, exec, msg.Agreement)
	})
}

type RemoveAdministratorsCommand struct {
	handler
}

func NewRemoveAdministratorsCommand(engine MutatingEngine, opts ...Option) *RemoveAdministratorsCommand {
	return &RemoveAdministratorsCommand{handler: newHandler(engine, opts)}
}

func (c *RemoveAdministratorsCommand) Execute(ctx context.Context, msg RemoveAdministratorsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: administrators engine is required")
	}
	return execute(ctx, c.handler, TaskRemoveAdministrators, msg.ExecutionID, func(exec *core.ExecutionContext) (struct{}, error) {
		return struct{}{}, c.engine.RemoveAdministrators(ctx, exec, msg.Agreement)
	})
}

type DeletePermissionGroupsCommand struct {
	handler
}

func NewDeletePermissionGroupsCommand(engine MutatingEngine, opts ...Option) *DeletePermissionGroupsCommand {
	return &DeletePermissionGroupsCommand{handler: newHandler(engine, opts)}
}

func (c *DeletePermissionGroupsCommand) Execute(ctx context.Context, msg DeletePermissionGroupsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: permission group engine is required")
	}
	return execute(ctx, c.handler, TaskDeletePermissionGroups, msg.ExecutionID, func(exec *core.ExecutionContext) (struct{}, error) {
		return struct{}{}, c.engine.DeletePermissionGroups(ctx, exec, msg.Agreement)
	})
}

type ClearUserPermissionsCommand struct {
	handler
}

func NewClearUserPermissionsCommand(engine MutatingEngine, opts ...Option) *ClearUserPermissionsCommand {
	return &ClearUserPermissionsCommand{handler: newHandler(engine, opts)}
}

func (c *ClearUserPermissionsCommand) Execute(ctx context.Context, msg ClearUserPermissionsMessage) error {
	if c == nil || !c.ready() {
		return commandDependencyError("command: assignment engine is required")
	}
	return execute(ctx, c.handler, TaskClearUserPermissions, msg.ExecutionID, func(exec *core.ExecutionContext) (struct{}, error) {
		return struct{}{}, c.engine.ClearUserPermissions(ctx, exec, msg.Agreement, msg.User)
	})
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
