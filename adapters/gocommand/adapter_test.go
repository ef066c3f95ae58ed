package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	entitlements "github.com/goliatone/go-entitlements"
	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	entquery "github.com/goliatone/go-entitlements/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "entitlements.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "entitlements.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "entitlements.test.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "entitlements.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("entitlements.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterFacade_DispatchesToEngine(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	engine := &dispatchEngine{}
	facade, err := entitlements.NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	subs, err := RegisterFacade(adapter, facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 14 {
		t.Fatalf("expected 14 subscriptions, got %d", len(subs))
	}

	if err := Dispatch(context.Background(), entcommand.RemoveAdministratorsMessage{
		Agreement: core.Agreement{ID: "A1"},
	}); err != nil {
		t.Fatalf("dispatch remove administrators: %v", err)
	}
	if engine.removedFor != "A1" {
		t.Fatalf("expected engine to receive agreement A1, got %q", engine.removedFor)
	}

	ids, err := Query[entquery.ListArrangementIDsMessage, []string](context.Background(), entquery.ListArrangementIDsMessage{AgreementID: "A1"})
	if err != nil {
		t.Fatalf("query arrangements: %v", err)
	}
	if len(ids) != 1 || ids[0] != "arr-1" {
		t.Fatalf("unexpected arrangements: %v", ids)
	}
}

func TestRegisterFacade_RequiresFacade(t *testing.T) {
	if _, err := RegisterFacade(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected nil facade error")
	}
	var adapter *RegistryAdapter
	if _, err := RegisterFacade(adapter, &entitlements.Facade{}); err == nil {
		t.Fatalf("expected unconfigured registry error")
	}
}

type dispatchEngine struct {
	removedFor string
}

func (e *dispatchEngine) Apply(context.Context, *core.ExecutionContext, core.DesiredState) (core.ApplyResult, error) {
	return core.ApplyResult{}, nil
}

func (e *dispatchEngine) SetupResourceGroup(_ context.Context, _ *core.ExecutionContext, _ core.Agreement, group core.ResourceGroup, _ core.IngestionMode) (core.ResourceGroup, error) {
	return group, nil
}

func (e *dispatchEngine) ReconcileResourceGroups(_ context.Context, _ *core.ExecutionContext, _ core.Agreement, _ core.ResourceGroupType, groups []core.ResourceGroup, _ core.IngestionMode) ([]core.ResourceGroup, error) {
	return groups, nil
}

func (e *dispatchEngine) SetupPermissionGroups(_ context.Context, _ *core.ExecutionContext, _ core.Agreement, groups []core.PermissionGroup) ([]core.PermissionGroup, error) {
	return groups, nil
}

func (e *dispatchEngine) SetupRoleTemplate(_ context.Context, _ *core.ExecutionContext, _ core.Agreement, template core.RoleTemplate) (core.RoleTemplate, error) {
	return template, nil
}

func (e *dispatchEngine) AssignPermissions(context.Context, *core.ExecutionContext, core.Agreement, core.UserPermissions) (core.UserAssignment, error) {
	return core.UserAssignment{}, nil
}

func (e *dispatchEngine) AssignPermissionsBatch(context.Context, *core.ExecutionContext, core.Agreement, []core.UserPermissions, core.IngestionMode) ([]core.UserAssignment, error) {
	return nil, nil
}

func (e *dispatchEngine) SetAdministrators(_ context.Context, _ *core.ExecutionContext, agreement core.Agreement) (core.Agreement, error) {
	return agreement, nil
}

func (e *dispatchEngine) RemoveAdministrators(_ context.Context, _ *core.ExecutionContext, agreement core.Agreement) error {
	e.removedFor = agreement.ID
	return nil
}

func (e *dispatchEngine) DeletePermissionGroups(context.Context, *core.ExecutionContext, core.Agreement) error {
	return nil
}

func (e *dispatchEngine) ClearUserPermissions(context.Context, *core.ExecutionContext, core.Agreement, core.User) error {
	return nil
}

func (e *dispatchEngine) ListArrangementIDs(context.Context, string) ([]string, error) {
	return []string{"arr-1"}, nil
}

func (e *dispatchEngine) ListPermissionGroups(context.Context, string) ([]core.PermissionGroup, error) {
	return nil, nil
}
