package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	AuditDriverSQLite   = "sqlite3"
	AuditDriverPostgres = "postgres"
)

type FanoutConfig struct {
	MaxConcurrency int `koanf:"max_concurrency" mapstructure:"max_concurrency"`
}

type AccessControlConfig struct {
	BaseURL            string  `koanf:"base_url" mapstructure:"base_url"`
	UserManagerBaseURL string  `koanf:"user_manager_base_url" mapstructure:"user_manager_base_url"`
	TimeoutSeconds     int     `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	RequestsPerSecond  float64 `koanf:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int     `koanf:"burst" mapstructure:"burst"`
}

func (c AccessControlConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AuditConfig struct {
	Driver        string `koanf:"driver" mapstructure:"driver"`
	DSN           string `koanf:"dsn" mapstructure:"dsn"`
	RetentionDays int    `koanf:"retention_days" mapstructure:"retention_days"`
}

func (c AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type CacheConfig struct {
	UserTTLSeconds int `koanf:"user_ttl_seconds" mapstructure:"user_ttl_seconds"`
}

func (c CacheConfig) UserTTL() time.Duration {
	return time.Duration(c.UserTTLSeconds) * time.Second
}

type Config struct {
	ServiceName   string              `koanf:"service_name" mapstructure:"service_name"`
	Fanout        FanoutConfig        `koanf:"fanout" mapstructure:"fanout"`
	AccessControl AccessControlConfig `koanf:"access_control" mapstructure:"access_control"`
	Audit         AuditConfig         `koanf:"audit" mapstructure:"audit"`
	Cache         CacheConfig         `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "entitlements",
		Fanout: FanoutConfig{
			MaxConcurrency: 8,
		},
		AccessControl: AccessControlConfig{
			BaseURL:            "http://access-control:8080",
			UserManagerBaseURL: "http://user-manager:8080",
			TimeoutSeconds:     30,
			Burst:              1,
		},
		Audit: AuditConfig{
			Driver:        AuditDriverSQLite,
			DSN:           "file:entitlements.db?cache=shared&_foreign_keys=on",
			RetentionDays: 30,
		},
		Cache: CacheConfig{
			UserTTLSeconds: 300,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Fanout.MaxConcurrency < 1 {
		return fmt.Errorf("core: fanout.max_concurrency must be at least 1")
	}
	if c.AccessControl.TimeoutSeconds < 0 {
		return fmt.Errorf("core: access_control.timeout_seconds cannot be negative")
	}
	if c.AccessControl.RequestsPerSecond < 0 {
		return fmt.Errorf("core: access_control.requests_per_second cannot be negative")
	}
	if c.AccessControl.RequestsPerSecond > 0 && c.AccessControl.Burst < 1 {
		return fmt.Errorf("core: access_control.burst must be at least 1 when rate limited")
	}
	switch strings.TrimSpace(c.Audit.Driver) {
	case "", AuditDriverSQLite, AuditDriverPostgres:
	default:
		return fmt.Errorf("core: unsupported audit.driver %q", c.Audit.Driver)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("core: audit.retention_days cannot be negative")
	}
	if c.Cache.UserTTLSeconds < 0 {
		return fmt.Errorf("core: cache.user_ttl_seconds cannot be negative")
	}
	return nil
}
