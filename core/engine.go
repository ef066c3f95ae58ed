package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

const loggerName = "entitlements"

// Engine converges the entitlement state of one agreement against the remote
// access-control backend. An Engine holds no per-invocation state and may be
// shared across concurrent calls.
type Engine struct {
	client          RemoteAccessControlClient
	users           UserDirectory
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	now             func() time.Time
}

type EngineDependencies struct {
	Client          RemoteAccessControlClient
	UserDirectory   UserDirectory
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
}

func NewEngine(client RemoteAccessControlClient, cfg Config, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("core: access control client is required")
	}
	builder := defaultEngineBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(loggerName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(loggerName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.userDirectory == nil {
		builder.userDirectory = passthroughUserDirectory{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Engine{
		client:          client,
		users:           builder.userDirectory,
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		now:             builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) Dependencies() EngineDependencies {
	if e == nil {
		return EngineDependencies{}
	}
	return EngineDependencies{
		Client:          e.client,
		UserDirectory:   e.users,
		Logger:          e.logger,
		LoggerProvider:  e.loggerProvider,
		MetricsRecorder: e.metricsRecorder,
		ErrorMapper:     e.errorMapper,
		ConfigProvider:  e.configProvider,
		OptionsResolver: e.optionsResolver,
	}
}

// fanout returns a bounded group. Branches are not cancelled when a sibling
// fails; callers only stop awaiting them for success reporting.
func (e *Engine) fanout() *errgroup.Group {
	group := &errgroup.Group{}
	limit := e.config.Fanout.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	group.SetLimit(limit)
	return group
}

func (e *Engine) timestamp() time.Time {
	if e == nil || e.now == nil {
		return time.Now().UTC()
	}
	return e.now()
}

// step identifies where a failure happened for TaskError and record output.
type step struct {
	domain      string
	action      string
	agreementID string
}

func (e *Engine) fail(exec *ExecutionContext, s step, resourceID string, message string, cause error) error {
	taskErr := &TaskError{
		Task:        exec.Name(),
		Domain:      s.domain,
		Action:      s.action,
		AgreementID: s.agreementID,
		ResourceID:  resourceID,
		Message:     message,
		Body:        RemoteBody(cause),
		Cause:       cause,
	}
	exec.Error(s.domain, s.action, StatusFailed, resourceID, message, taskErr)
	return taskErr
}

// isAbsent reports a lookup failure that means "nothing there yet".
func isAbsent(err error) bool {
	kind, ok := RemoteKind(err)
	if !ok {
		return false
	}
	switch kind {
	case RemoteErrorNotFound:
		return true
	case RemoteErrorRejected, RemoteErrorUnavailable, RemoteErrorUnknown:
		return false
	}
	return false
}
