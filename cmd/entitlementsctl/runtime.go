package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	entitlements "github.com/goliatone/go-entitlements"
	"github.com/goliatone/go-entitlements/adapters/gologger"
	"github.com/goliatone/go-entitlements/config"
	"github.com/goliatone/go-entitlements/core"
	"github.com/goliatone/go-entitlements/identity"
	entitlementmigrations "github.com/goliatone/go-entitlements/migrations"
	sqlstore "github.com/goliatone/go-entitlements/store/sql"
	"github.com/goliatone/go-entitlements/transport"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "entitlementsctl" }

// runtime is everything one CLI invocation needs.
type runtime struct {
	cfg     core.Config
	logger  glog.Logger
	client  *persistence.Client
	records *sqlstore.ExecutionRecordStore
	facade  *entitlements.Facade
}

func (r *runtime) Close() {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn("close audit database", "error", err)
	}
}

// openAudit loads configuration and opens the migrated audit store. Commands
// that only read records stop here.
func openAudit(ctx context.Context, opts *globalOptions) (*runtime, error) {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	if url := strings.TrimSpace(opts.baseURL); url != "" {
		cfg.AccessControl.BaseURL = url
	}
	if dsn := strings.TrimSpace(opts.auditDSN); dsn != "" {
		cfg.Audit.DSN = dsn
	}

	logger := newSlogLogger(os.Stderr, opts.verbose)
	client, err := openAuditClient(ctx, cfg.Audit, opts.verbose)
	if err != nil {
		return nil, err
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		records: factory.ExecutionRecordStore(),
	}, nil
}

// openRuntime additionally wires the remote clients, the engine and the
// command facade.
func openRuntime(ctx context.Context, opts *globalOptions) (*runtime, error) {
	rt, err := openAudit(ctx, opts)
	if err != nil {
		return nil, err
	}

	remote, err := transport.NewAccessControlClientFromConfig(rt.cfg.AccessControl)
	if err != nil {
		rt.Close()
		return nil, err
	}
	directory, err := transport.NewUserDirectoryClient(
		rt.cfg.AccessControl.UserManagerBaseURL,
		transport.WithRequestTimeout(rt.cfg.AccessControl.Timeout()),
		transport.WithRateLimit(rt.cfg.AccessControl.RequestsPerSecond, rt.cfg.AccessControl.Burst),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	users, err := identity.NewCachedUserDirectoryFromConfig(directory, rt.cfg.Cache)
	if err != nil {
		rt.Close()
		return nil, err
	}

	engineOpts := gologger.EngineOptions(nil, rt.logger)
	engineOpts = append(engineOpts, core.WithUserDirectory(users))
	engine, err := core.NewEngine(remote, rt.cfg, engineOpts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	facade, err := entitlements.NewFacade(engine, entitlements.WithRecordSink(rt.records))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.facade = facade
	return rt, nil
}

func openAuditClient(ctx context.Context, audit core.AuditConfig, debug bool) (*persistence.Client, error) {
	driver := strings.TrimSpace(audit.Driver)
	if driver == "" {
		driver = core.AuditDriverSQLite
	}
	var dialect schema.Dialect
	switch driver {
	case core.AuditDriverSQLite:
		dialect = sqlitedialect.New()
	case core.AuditDriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("unsupported audit driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, audit.DSN)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if driver == core.AuditDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: audit.DSN, debug: debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("audit persistence: %w", err)
	}
	if _, err := entitlementmigrations.RegisterForDriver(ctx, driver, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register audit migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return client, nil
}
