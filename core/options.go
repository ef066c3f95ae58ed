package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type engineBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	userDirectory   UserDirectory
	now             func() time.Time
}

type Option func(*engineBuilder)

func WithLogger(logger Logger) Option {
	return func(b *engineBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *engineBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *engineBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *engineBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *engineBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *engineBuilder) {
		b.optionsResolver = resolver
	}
}

// WithUserDirectory sets the lookup used to resolve administrator references
// before removal.
func WithUserDirectory(directory UserDirectory) Option {
	return func(b *engineBuilder) {
		b.userDirectory = directory
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *engineBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

func defaultEngineBuilder(runtime Config) engineBuilder {
	loggerProvider, logger := glog.Resolve(loggerName, nil, nil)
	return engineBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		userDirectory:   passthroughUserDirectory{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	fanout := map[string]any{}
	if includeZero || cfg.Fanout.MaxConcurrency > 0 {
		fanout["max_concurrency"] = cfg.Fanout.MaxConcurrency
	}
	setSection(layer, "fanout", fanout)

	accessControl := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.AccessControl.BaseURL) != "" {
		accessControl["base_url"] = cfg.AccessControl.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.AccessControl.UserManagerBaseURL) != "" {
		accessControl["user_manager_base_url"] = cfg.AccessControl.UserManagerBaseURL
	}
	if includeZero || cfg.AccessControl.TimeoutSeconds > 0 {
		accessControl["timeout_seconds"] = cfg.AccessControl.TimeoutSeconds
	}
	if includeZero || cfg.AccessControl.RequestsPerSecond > 0 {
		accessControl["requests_per_second"] = cfg.AccessControl.RequestsPerSecond
	}
	if includeZero || cfg.AccessControl.Burst > 0 {
		accessControl["burst"] = cfg.AccessControl.Burst
	}
	setSection(layer, "access_control", accessControl)

	audit := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Audit.Driver) != "" {
		audit["driver"] = cfg.Audit.Driver
	}
	if includeZero || strings.TrimSpace(cfg.Audit.DSN) != "" {
		audit["dsn"] = cfg.Audit.DSN
	}
	if includeZero || cfg.Audit.RetentionDays > 0 {
		audit["retention_days"] = cfg.Audit.RetentionDays
	}
	setSection(layer, "audit", audit)

	cache := map[string]any{}
	if includeZero || cfg.Cache.UserTTLSeconds > 0 {
		cache["user_ttl_seconds"] = cfg.Cache.UserTTLSeconds
	}
	setSection(layer, "cache", cache)
	return layer
}

func setSection(layer map[string]any, key string, section map[string]any) {
	if len(section) == 0 {
		return
	}
	layer[key] = section
}
