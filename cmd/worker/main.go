// Package main - точка входа для фонового процесса (Worker) Dropout Radar.
//
// Worker отвечает за периодический пересчёт риска отсева:
// - Загрузка событий посещаемости по каждой школе
// - Построение матрицы присутствия и признаков
// - Оценка риска классификатором и запись результатов в PostgreSQL
// - Публикация сводок по школам в Redis для дашбордов
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smart-attendance/dropout-radar/config"
	"github.com/smart-attendance/dropout-radar/internal/application/pipeline"
	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/ml"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/persistence/postgres"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/persistence/redis"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/scheduler"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/scheduler/jobs"
	"github.com/smart-attendance/dropout-radar/pkg/metrics"
	"github.com/smart-attendance/dropout-radar/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Dropout Radar worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}, retry.WithMaxAttempts(5), retry.WithInitialDelay(500*time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database connection failed, retrying",
				"attempt", attempt, "delay", delay.String(), "error", err)
		}))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var riskCache *redis.RiskCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, risk summaries disabled", "error", err)
		} else {
			defer redisCache.Close()
			riskCache = redis.NewRiskCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАГРУЗКА МОДЕЛИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("loading dropout-risk model...", "path", cfg.Model.Path)
	forest, err := retry.DoWithData(ctx, func(_ context.Context) (*ml.Forest, error) {
		return ml.LoadForest(cfg.Model.Path)
	}, retry.WithMaxAttempts(3), retry.WithRetryIf(func(error) bool { return true }))
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	schema := forest.Schema()
	if !schema.Equal(risk.SchemaV1) {
		return fmt.Errorf("model feature schema %q does not match expected %q",
			schema.Version, risk.SchemaV1.Version)
	}
	log.Info("model loaded",
		"schema_version", schema.Version,
		"features", strings.Join(schema.Columns, ","),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И ПАЙПЛАЙНА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	attendanceRepo := postgres.NewAttendanceRepository(dbConn)

	var store risk.StudentStore = postgres.NewStudentRepository(dbConn)
	if cfg.Scheduler.DryRun {
		log.Warn("dry-run mode: scores will not be persisted")
		store = dryRunStore{log: log}
	}

	runner := pipeline.NewRunner(forest, store, log)

	var summaries jobs.SummaryWriter
	if riskCache != nil {
		summaries = riskCache
	}

	scoreJob := jobs.NewScoreAllSchoolsJob(attendanceRepo, runner, summaries, log,
		jobs.ScoreAllSchoolsConfig{
			Concurrency:   cfg.Scheduler.MaxConcurrentSchools,
			Timeout:       cfg.Scheduler.JobTimeout,
			SchoolTimeout: cfg.Scheduler.SchoolTimeout,
		})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. МЕТРИКИ (Prometheus)
	// ─────────────────────────────────────────────────────────────────────────
	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := dbConn.Ping(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsServer = &http.Server{
			Addr:              cfg.Observability.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listener started", "addr", cfg.Observability.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕЖИМ ОДНОКРАТНОГО ЗАПУСКА
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.RunOnce {
		log.Info("run-once mode: scoring all schools and exiting")
		err := scoreJob.Run(ctx)
		shutdownMetrics(metricsServer, cfg.App.ShutdownTimeout, log)
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	var schedule scheduler.Schedule
	if cfg.Scheduler.ScoreCron != "" {
		schedule, err = scheduler.ParseCronExpression(cfg.Scheduler.ScoreCron)
		if err != nil {
			return fmt.Errorf("invalid scheduler.score_cron: %w", err)
		}
	} else {
		schedule = scheduler.NewDelayedIntervalSchedule(
			cfg.Scheduler.ScoreInterval,
			cfg.Scheduler.StartupDelay,
		)
	}

	if err := sched.Register(scoreJob, schedule); err != nil {
		return fmt.Errorf("failed to register scoring job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, worker will only serve metrics")
	}

	log.Info("Dropout Radar worker is running",
		"schedule", schedule.String(),
		"concurrency", cfg.Scheduler.MaxConcurrentSchools,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("root context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}
	shutdownMetrics(metricsServer, cfg.App.ShutdownTimeout, log)

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат по умолчанию (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shutdownMetrics(srv *http.Server, timeout time.Duration, log *slog.Logger) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop metrics listener", "error", err)
	}
}

// dryRunStore подменяет хранилище студентов в режиме dry-run: оценки
// считаются и логируются, но не записываются.
type dryRunStore struct {
	log *slog.Logger
}

func (s dryRunStore) MergeRiskFields(_ context.Context, studentID string, update risk.RiskUpdate) (bool, error) {
	s.log.Debug("dry-run: skipping student update",
		"student_id", studentID,
		"dropout_risk", update.DropoutRisk,
		"dropout_pred", update.DropoutPred,
	)
	return true, nil
}
