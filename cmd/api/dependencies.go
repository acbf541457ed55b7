package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/rmassis/fiflow/internal/domain/categorization"
	importhandler "github.com/rmassis/fiflow/internal/domain/import/handler"
	importrepo "github.com/rmassis/fiflow/internal/domain/import/repository"
	importservice "github.com/rmassis/fiflow/internal/domain/import/service"
	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/pkg/config"
	"github.com/rmassis/fiflow/pkg/cron"
	"github.com/rmassis/fiflow/pkg/db"
	"github.com/rmassis/fiflow/pkg/metrics"
	"github.com/rmassis/fiflow/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.ImportMetrics

	// Repositories
	ImportRepo importrepo.TransactionRepository

	// Services
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	Scheduler             *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Metrics = metrics.New(deps.Registry)

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.Connect(ctx, d.Config.Database.DSN())
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(pool, d.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.ImportRepo = importrepo.NewPostgresTransactionRepository(pool)
	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	tax := taxonomy.Default()

	gemini, err := categorization.NewGeminiClassifier(ctx, tax, d.Config.Gemini.Model, d.Config.Gemini.APIKey)
	if err != nil {
		return fmt.Errorf("failed to init gemini classifier: %w", err)
	}

	override := categorization.NewHeuristicOverride(categorization.DefaultHeuristicConfig())

	d.CategorizationService = categorization.NewService(
		gemini,
		tax,
		override,
		d.Logger,
		categorization.WithLimiter(rate.NewLimiter(
			rate.Limit(d.Config.Classifier.CallsPerSecond),
			d.Config.Classifier.Burst,
		)),
		categorization.WithCallTimeout(time.Duration(d.Config.Classifier.TimeoutSeconds)*time.Second),
		categorization.WithLatencyObserver(func(elapsed time.Duration) {
			d.Metrics.ClassifyLatency.Observe(elapsed.Seconds())
		}),
	)

	d.ImportService = importservice.NewImportService(
		d.ImportRepo,
		d.CategorizationService,
		d.Metrics,
		d.Logger,
	)

	if d.Config.Archive.Enabled {
		archive, err := storage.New(&storage.Config{LocalPath: d.Config.Archive.LocalPath})
		if err != nil {
			return fmt.Errorf("failed to init upload archive: %w", err)
		}
		d.ImportService.WithArchive(archive)
	}

	if d.Config.Reclassify.Enabled {
		d.Scheduler = cron.NewScheduler(
			d.ImportService,
			d.Config.Reclassify.Schedule,
			d.Config.Reclassify.BatchSize,
			d.Logger,
		)
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
