package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres Driver
	_ "modernc.org/sqlite"

	"github.com/veridoc-labs/veridoc/core/pkg/audit"
	"github.com/veridoc-labs/veridoc/core/pkg/cache"
	"github.com/veridoc-labs/veridoc/core/pkg/config"
	"github.com/veridoc-labs/veridoc/core/pkg/observability"
	"github.com/veridoc-labs/veridoc/core/pkg/orchestrator"
	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/policy/rulesets"
	"github.com/veridoc-labs/veridoc/core/pkg/resiliency"
	"github.com/veridoc-labs/veridoc/core/pkg/snippets"
	"github.com/veridoc-labs/veridoc/core/pkg/synthesis"
)

// Core bundles the constructed subsystems plus their teardown. Construction is
// explicit and happens exactly once per invocation.
type Core struct {
	Orchestrator *orchestrator.Orchestrator
	Engine       *synthesis.Engine
	Breakers     *resiliency.Registry
	AuditStore   audit.RunStore
	Exporter     *audit.Exporter

	provider *observability.Provider
	db       *sql.DB
}

// Close releases held resources in reverse construction order.
func (c *Core) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.provider != nil {
		_ = c.provider.Shutdown(ctx)
	}
}

// buildCore wires the full pipeline from configuration: logging, telemetry,
// cache, module registry, snippet catalog, audit sink, orchestrator and
// synthesis engine.
func buildCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	setupLogging(cfg.LogLevel)

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	provider, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	var metrics observability.Metrics = observability.NopMetrics{}
	if cfg.OTelEnabled {
		otelMetrics, err := observability.NewOTelMetrics(provider)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		metrics = otelMetrics
	}

	breakers := resiliency.NewRegistry(resiliency.DefaultConfig())

	backend := buildCacheBackend(ctx, cfg, breakers)
	resultCache := cache.NewResultCache(backend, cfg.CacheTTL, metrics)

	registry := policy.NewRegistry()
	if err := rulesets.RegisterDefaults(registry); err != nil {
		return nil, fmt.Errorf("rulesets: %w", err)
	}

	catalog := snippets.Default()
	if cfg.CatalogPath != "" {
		catalog, err = snippets.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}

	core := &Core{Breakers: breakers, provider: provider}

	auditLogger, err := buildAudit(ctx, cfg, core)
	if err != nil {
		core.Close()
		return nil, err
	}

	core.Orchestrator = orchestrator.New(registry, &orchestrator.Config{
		Parallel:    cfg.Parallel,
		MaxWorkers:  cfg.MaxWorkers,
		CallTimeout: cfg.CallTimeout,
	}, orchestrator.Deps{
		Cache:   resultCache,
		Metrics: metrics,
		Audit:   auditLogger,
		Tracer:  provider.Tracer(),
	})

	core.Engine = synthesis.NewEngine(core.Orchestrator, catalog,
		&synthesis.Config{MaxIterations: cfg.MaxIterations},
		synthesis.Deps{
			Metrics: metrics,
			Audit:   auditLogger,
			Tracer:  provider.Tracer(),
		})

	return core, nil
}

// buildCacheBackend picks the configured backend. An unreachable Redis demotes
// to the in-memory backend with a warning rather than failing startup; a
// reachable one is guarded by a circuit breaker so later outages fail fast.
func buildCacheBackend(ctx context.Context, cfg *config.Config, breakers *resiliency.Registry) cache.Backend {
	if cfg.CacheBackend != "redis" {
		return cache.NewMemoryBackend()
	}

	redisBackend := cache.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisBackend.Ping(pingCtx); err != nil {
		slog.Warn("redis unreachable, using in-memory cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemoryBackend()
	}
	return cache.NewGuardedBackend(redisBackend, breakers.Get("redis"))
}

// buildAudit selects the audit sink: a hash-chained SQL store when a database
// is configured, the stdout JSON-line logger otherwise. A postgres:// URL
// selects lib/pq, any other value is treated as a SQLite path. The exporter's
// archive target is S3 when a bucket is set.
func buildAudit(ctx context.Context, cfg *config.Config, core *Core) (audit.Logger, error) {
	if cfg.AuditDBPath == "" {
		return audit.NewLogger(), nil
	}

	var store *audit.SQLStore
	if strings.HasPrefix(cfg.AuditDBPath, "postgres://") {
		db, err := sql.Open("postgres", cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("audit db: %w", err)
		}
		core.db = db
		if store, err = audit.NewPostgresStore(db); err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
	} else {
		db, err := sql.Open("sqlite", cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("audit db: %w", err)
		}
		core.db = db
		if store, err = audit.NewSQLiteStore(db); err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
	}
	core.AuditStore = store

	var archive audit.ArchiveStore
	if cfg.ArchiveBucket != "" {
		s3Store, err := audit.NewS3ArchiveStore(ctx, audit.S3ArchiveConfig{
			Bucket: cfg.ArchiveBucket,
			Region: cfg.ArchiveRegion,
			Prefix: "audit/",
		})
		if err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		archive = s3Store
	}
	core.Exporter = audit.NewExporter(store, archive)

	return audit.NewStoreLogger(store), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
