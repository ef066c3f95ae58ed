package entitlements

import (
	"fmt"

	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	entquery "github.com/goliatone/go-entitlements/query"
)

type CommandQueryEngine interface {
	entcommand.MutatingEngine
	entquery.ArrangementReader
	entquery.PermissionGroupReader
}

type Commands struct {
	ApplyDesiredState       *entcommand.ApplyDesiredStateCommand
	SetupResourceGroup      *entcommand.SetupResourceGroupCommand
	ReconcileResourceGroups *entcommand.ReconcileResourceGroupsCommand
	SetupPermissionGroups   *entcommand.SetupPermissionGroupsCommand
	SetupRoleTemplate       *entcommand.SetupRoleTemplateCommand
	AssignPermissions       *entcommand.AssignPermissionsCommand
	AssignPermissionsBatch  *entcommand.AssignPermissionsBatchCommand
	SetAdministrators       *entcommand.SetAdministratorsCommand
	RemoveAdministrators    *entcommand.RemoveAdministratorsCommand
	DeletePermissionGroups  *entcommand.DeletePermissionGroupsCommand
	ClearUserPermissions    *entcommand.ClearUserPermissionsCommand
}

type Queries struct {
	ListExecutionRecords *entquery.ListExecutionRecordsQuery
	ListArrangementIDs   *entquery.ListArrangementIDsQuery
	ListPermissionGroups *entquery.ListPermissionGroupsQuery
}

type Facade struct {
	engine   CommandQueryEngine
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	sink   core.ExecutionRecordSink
	reader core.ExecutionRecordReader
}

// WithRecordSink flushes every command's execution records to sink. When sink
// also implements core.ExecutionRecordReader it backs the record query too.
func WithRecordSink(sink core.ExecutionRecordSink) FacadeOption {
	return func(options *facadeOptions) {
		options.sink = sink
	}
}

func WithRecordReader(reader core.ExecutionRecordReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reader = reader
	}
}

func NewFacade(engine CommandQueryEngine, opts ...FacadeOption) (*Facade, error) {
	if engine == nil {
		return nil, fmt.Errorf("entitlements: command/query engine is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.reader
	if reader == nil {
		if candidate, ok := cfg.sink.(core.ExecutionRecordReader); ok {
			reader = candidate
		}
	}

	var cmdOpts []entcommand.Option
	if cfg.sink != nil {
		cmdOpts = append(cmdOpts, entcommand.WithRecordSink(cfg.sink))
	}

	facade := &Facade{engine: engine}
	facade.commands = Commands{
		ApplyDesiredState:       entcommand.NewApplyDesiredStateCommand(engine, cmdOpts...),
		SetupResourceGroup:      entcommand.NewSetupResourceGroupCommand(engine, cmdOpts...),
		ReconcileResourceGroups: entcommand.NewReconcileResourceGroupsCommand(engine, cmdOpts...),
		SetupPermissionGroups:   entcommand.NewSetupPermissionGroupsCommand(engine, cmdOpts...),
		SetupRoleTemplate:       entcommand.NewSetupRoleTemplateCommand(engine, cmdOpts...),
		AssignPermissions:       entcommand.NewAssignPermissionsCommand(engine, cmdOpts...),
		AssignPermissionsBatch:  entcommand.NewAssignPermissionsBatchCommand(engine, cmdOpts...),
		SetAdministrators:       entcommand.NewSetAdministratorsCommand(engine, cmdOpts...),
		RemoveAdministrators:    entcommand.NewRemoveAdministratorsCommand(engine, cmdOpts...),
		DeletePermissionGroups:  entcommand.NewDeletePermissionGroupsCommand(engine, cmdOpts...),
		ClearUserPermissions:    entcommand.NewClearUserPermissionsCommand(engine, cmdOpts...),
	}
	facade.queries = Queries{
		ListExecutionRecords: entquery.NewListExecutionRecordsQuery(reader),
		ListArrangementIDs:   entquery.NewListArrangementIDsQuery(engine),
		ListPermissionGroups: entquery.NewListPermissionGroupsQuery(engine),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Engine() CommandQueryEngine {
	if f == nil {
		return nil
	}
	return f.engine
}

var _ CommandQueryEngine = (*core.Engine)(nil)
