// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"credit-evaluation-workers/internal/common/camunda"
	"credit-evaluation-workers/internal/common/config"
	"credit-evaluation-workers/internal/common/database"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/observability"
	"credit-evaluation-workers/internal/loan/combiner"
	"credit-evaluation-workers/internal/loan/creditdata"
	"credit-evaluation-workers/internal/loan/evaluation"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/loan/reassignment"
	"credit-evaluation-workers/internal/loan/store"
	"credit-evaluation-workers/internal/loan/underwriting"
	"credit-evaluation-workers/pkg/registry"
)

const serviceName = "credit-evaluation-workers"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(serviceName)
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(serviceName, cfg.App.Version, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio); err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		} else {
			zapLog.Info("tracing enabled", zap.String("endpoint", cfg.Tracing.JaegerEndpoint))
		}
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (audit trail only) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Warn("activity registry unavailable, input schemas disabled",
			zap.String("path", cfg.Registry.Path),
			zap.Error(err),
		)
	}

	// --- Loan evaluation engine ---
	policies, err := underwriting.NewPolicyStore(cfg.Evaluation.PolicyPath, log)
	if err != nil {
		zapLog.Fatal("underwriting policy load failed", zap.Error(err))
	}

	repo := store.NewRepository(pg.DB, log)
	banks := store.NewCachedBankCatalog(repo, rdb.Client, cfg.Evaluation.GetBankCacheTTL(), log)
	if err := banks.Refresh(ctx); err != nil {
		zapLog.Warn("bank catalog warm-up failed", zap.Error(err))
	}

	filter := offers.NewFilter(repo, log)
	engine := underwriting.NewEngine(policies)

	deps := evaluation.Deps{
		Store:        repo,
		Banks:        banks,
		Offers:       filter,
		Extractor:    creditdata.NewExtractor(repo, log),
		Combiner:     combiner.New(engine, combiner.NoZoneLimits{}, cfg.Evaluation.ZoneConcurrency, log),
		Reassignment: reassignment.NewPolicy(cfg.Reassignment.TargetBankIDs, cfg.Reassignment.AdvisorRole, repo, log),
		Logger:       log,
		Now:          time.Now,
	}
	if cfg.Evaluation.AuditEnabled && esClient != nil {
		deps.Audit = store.NewAuditIndex(esClient.Client, cfg.Evaluation.AuditIndex)
		zapLog.Info("evaluation audit trail enabled", zap.String("index", cfg.Evaluation.AuditIndex))
	}
	evaluator := evaluation.NewService(deps)

	// --- Workers ---
	workers := &workerSet{
		client:   zeebe.Zeebe(),
		cfg:      cfg,
		registry: reg,
		obs:      obs,
		logger:   zapLog,
	}
	if err := registerWorkers(ctx, workers, workerDeps{
		evaluator: evaluator,
		filter:    filter,
		banks:     banks,
		repo:      repo,
	}, log); err != nil {
		zapLog.Fatal("worker registration failed", zap.Error(err))
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers.started)))

	// --- Schedules ---
	scheduler, err := startSchedules(cfg.Evaluation, policies, banks, zapLog)
	if err != nil {
		zapLog.Fatal("schedule setup failed", zap.Error(err))
	}

	// --- Health / metrics server ---
	checks := map[string]readinessCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
		"zeebe":    zeebe.HealthCheck,
	}
	if esClient != nil {
		checks["elasticsearch"] = func(context.Context) error { return esClient.Ping() }
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(checks),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	<-scheduler.Stop().Done()
	workers.stopAll()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
