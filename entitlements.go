package entitlements

import "github.com/goliatone/go-entitlements/core"

type Config = core.Config

type Option = core.Option

type Engine = core.Engine

type EngineDependencies = core.EngineDependencies
type RemoteAccessControlClient = core.RemoteAccessControlClient
type UserDirectory = core.UserDirectory
type ExecutionRecordSink = core.ExecutionRecordSink
type ExecutionRecordStore = core.ExecutionRecordStore
type MetricsRecorder = core.MetricsRecorder

type DesiredState = core.DesiredState
type ApplyResult = core.ApplyResult
type Agreement = core.Agreement
type User = core.User
type ResourceGroup = core.ResourceGroup
type PermissionGroup = core.PermissionGroup
type RoleTemplate = core.RoleTemplate
type UserPermissions = core.UserPermissions
type UserAssignment = core.UserAssignment

type ExecutionContext = core.ExecutionContext
type ExecutionRecord = core.ExecutionRecord

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithUserDirectory   = core.WithUserDirectory
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewEngine(client RemoteAccessControlClient, cfg Config, opts ...Option) (*Engine, error) {
	return core.NewEngine(client, cfg, opts...)
}

func NewExecutionContext(task string, opts ...core.ExecutionContextOption) *ExecutionContext {
	return core.NewExecutionContext(task, opts...)
}
