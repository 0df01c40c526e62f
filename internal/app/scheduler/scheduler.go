// Package scheduler приложение, которое по таймеру проверяет напоминания и отчеты.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/menoease/internal/app/evaluator"
	"github.com/magabrotheeeer/menoease/internal/cache"
	"github.com/magabrotheeeer/menoease/internal/config"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/menoease/internal/services/scheduler"
	"github.com/magabrotheeeer/menoease/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	services         *evaluator.Services
	cfg              config.Scheduler
	db               *repository.Storage
	cache            *cache.Cache
	logger           *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(db, nil, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(db, nil, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	services, err := evaluator.New(cfg, logger, db, cacheRedis)
	if err != nil {
		closeResources(db, cacheRedis, logger)
		return nil, err
	}

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(logger),
		services:         services,
		cfg:              cfg.Scheduler,
		db:               db,
		cache:            cacheRedis,
		logger:           logger,
	}, nil
}

func closeResources(db *repository.Storage, c *cache.Cache, logger *slog.Logger) {
	if c != nil {
		if err := c.Close(); err != nil {
			logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run запускает задачи и ждет их остановки после отмены ctx.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.schedulerService.Every(ctx, "reminders", a.cfg.ReminderInterval, a.services.Reminders)
	}()
	go func() {
		defer wg.Done()
		a.schedulerService.Every(ctx, "reports", a.cfg.ReportInterval, a.services.Reports)
	}()

	<-ctx.Done()
	a.logger.Info("shutting down scheduler service")
	wg.Wait()

	closeResources(a.db, a.cache, a.logger)
	return nil
}
