package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

func TestNewEngine_RequiresClient(t *testing.T) {
	if _, err := NewEngine(nil, Config{}); err == nil {
		t.Fatalf("expected missing client error")
	}
}

func TestNewEngine_DefaultDependencies(t *testing.T) {
	engine := newTestEngine(t, newFakeAccessControlClient())
	deps := engine.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorMapper == nil || deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default mapper, config provider and options resolver")
	}
	if deps.UserDirectory == nil {
		t.Fatalf("expected default user directory")
	}
	cfg := engine.Config()
	if cfg.ServiceName != "entitlements" {
		t.Fatalf("expected default service_name, got %q", cfg.ServiceName)
	}
	if cfg.Fanout.MaxConcurrency != 8 {
		t.Fatalf("expected default fan-out of 8, got %d", cfg.Fanout.MaxConcurrency)
	}
	if cfg.AccessControl.BaseURL != "http://access-control:8080" || cfg.AccessControl.UserManagerBaseURL != "http://user-manager:8080" {
		t.Fatalf("unexpected default base urls: %+v", cfg.AccessControl)
	}
}

func TestNewEngine_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	directory := mapUserDirectory{}

	engine, err := NewEngine(newFakeAccessControlClient(), Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithUserDirectory(directory),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	deps := engine.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolvedLogger := deps.LoggerProvider.GetLogger("entitlements.override"); resolvedLogger != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected config overrides")
	}
	if _, ok := deps.UserDirectory.(mapUserDirectory); !ok {
		t.Fatalf("expected custom user directory, got %T", deps.UserDirectory)
	}
	if got := engine.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
}

func TestNewEngine_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"fanout": map[string]any{
			"max_concurrency": 3,
		},
		"access_control": map[string]any{
			"base_url":            "https://ac.internal",
			"requests_per_second": 5.0,
			"burst":               2,
		},
	}})

	engine, err := NewEngine(newFakeAccessControlClient(), Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	cfg := engine.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Fanout.MaxConcurrency != 3 {
		t.Fatalf("expected config layer fan-out, got %d", cfg.Fanout.MaxConcurrency)
	}
	if cfg.AccessControl.BaseURL != "https://ac.internal" || cfg.AccessControl.Burst != 2 {
		t.Fatalf("expected config layer access control values, got %+v", cfg.AccessControl)
	}
	if cfg.AccessControl.UserManagerBaseURL != "http://user-manager:8080" {
		t.Fatalf("expected default to survive layering, got %q", cfg.AccessControl.UserManagerBaseURL)
	}
	if cfg.Cache.UserTTLSeconds != 300 {
		t.Fatalf("expected default cache ttl, got %d", cfg.Cache.UserTTLSeconds)
	}
}

func TestNewEngine_InvalidConfigMapped(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"audit": map[string]any{"driver": "oracle"},
	}})
	_, err := NewEngine(newFakeAccessControlClient(), Config{}, WithConfigProvider(provider))
	if err == nil {
		t.Fatalf("expected invalid config error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults valid: %v", err)
	}
	cfg.Fanout.MaxConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected fan-out validation error")
	}
	cfg = DefaultConfig()
	cfg.AccessControl.RequestsPerSecond = 10
	cfg.AccessControl.Burst = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected burst validation error")
	}
}
