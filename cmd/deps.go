package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/database"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/logger"
	"github.com/vibast-solutions/ms-go-autonomax/app/metrics"
	"github.com/vibast-solutions/ms-go-autonomax/app/opslock"
	"github.com/vibast-solutions/ms-go-autonomax/app/provider"
	"github.com/vibast-solutions/ms-go-autonomax/app/queue"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
	"github.com/vibast-solutions/ms-go-autonomax/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// deps holds the process-wide dependencies shared by every command.
type deps struct {
	cfg     *config.Config
	logger  *logrus.Logger
	dialect repository.Dialect
	db      *sql.DB
	rdb     *redis.Client
}

// loadDeps reads configuration and builds the logger; it exits on failure.
func loadDeps() *deps {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	if cfg.Debug {
		l.SetLevel(logrus.DebugLevel)
	}
	dialect, err := repository.ParseDialect(cfg.DBDriver)
	if err != nil {
		l.Fatalf("Invalid database driver: %v", err)
	}
	return &deps{cfg: cfg, logger: l, dialect: dialect}
}

func (r *deps) openDB(ctx context.Context) error {
	db, err := database.Open(ctx, r.dialect, r.cfg.DatabaseURL, database.Options{
		MaxOpen: r.cfg.MySQLMaxOpen,
		MaxIdle: r.cfg.MySQLMaxIdle,
		MaxLife: r.cfg.MySQLMaxLife,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	r.db = db
	return nil
}

func (r *deps) openRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     r.cfg.RedisAddr,
		Password: r.cfg.RedisPassword,
		DB:       r.cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("connect to redis: %w", err)
	}
	r.rdb = rdb
	return nil
}

// openStores opens the database and, when a component needs it, Redis.
func (r *deps) openStores(ctx context.Context) error {
	if err := r.openDB(ctx); err != nil {
		return err
	}
	if r.cfg.NeedsRedis() {
		return r.openRedis(ctx)
	}
	return nil
}

func (r *deps) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}

// opsService wires the ops lock manager and dispatcher. The database and, if
// configured, Redis must already be open.
func (r *deps) opsService(om *metrics.OpsLock) *service.OpsService {
	var store opslock.Store
	switch r.cfg.OpsLockBackend {
	case config.LockBackendRedis:
		store = opslock.NewRedisStore(r.rdb, opslock.DefaultRedisPrefix)
	default:
		store = opslock.NewSQLStore(repository.NewOpsLockRepository(r.db, r.dialect))
	}

	opts := []opslock.Option{}
	if om != nil {
		opts = append(opts, opslock.WithMetrics(om))
	}
	manager := opslock.NewManager(store, r.cfg, opts...)

	var dispatcher service.Dispatcher
	switch r.cfg.OpsDispatcher {
	case config.DispatcherRedis:
		dispatcher = queue.NewOpsProducer(r.rdb)
	default:
		dispatcher = queue.NewNoopDispatcher(r.logger)
	}
	return service.NewOpsService(manager, dispatcher, r.logger)
}

// migrationGuard picks the exclusive lock that serializes migrators.
func (r *deps) migrationGuard() (lock.Locker, error) {
	switch r.dialect {
	case repository.MySQL:
		return lock.NewMySQLLocker(r.db), nil
	case repository.Postgres:
		return lock.NewPostgresLocker(r.db), nil
	default:
		guard, err := lock.NewFileLocker(r.cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("prepare migration lock: %w", err)
		}
		return guard, nil
	}
}

func buildEmailProvider(cfg *config.Config, logger logrus.FieldLogger) (provider.EmailProvider, error) {
	switch strings.ToLower(cfg.EmailProvider) {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		return provider.NewSESProvider(awsCfg, cfg.SESSourceEmail,
			provider.WithConfigurationSet(cfg.SESConfigSet),
			provider.WithCategory("welcome"),
		), nil
	case "", "noop":
		return provider.NewNoopProvider(logger), nil
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER: %s", cfg.EmailProvider)
	}
}

// setupTracing installs a stdout span exporter when enabled. The returned
// function flushes pending spans.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.TracesStdout {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
