// Package services запускает задачи напоминаний и отчетов по таймеру.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// Job один прогон задачи.
type Job interface {
	Process(ctx context.Context) (models.JobResult, error)
}

// SchedulerService крутит задачи на тикерах.
type SchedulerService struct {
	log *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		log: log,
	}
}

// Every запускает job сразу и затем каждые interval, пока не отменен ctx.
// Прогоны одной задачи не пересекаются: тик во время прогона пропускается.
func (s *SchedulerService) Every(ctx context.Context, name string, interval time.Duration, job Job) {
	log := s.log.With(slog.String("job", name))
	log.Info("job scheduled", slog.Duration("interval", interval))

	s.runOnce(ctx, log, job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, log, job)
		}
	}
}

func (s *SchedulerService) runOnce(ctx context.Context, log *slog.Logger, job Job) {
	if ctx.Err() != nil {
		return
	}
	res, err := job.Process(ctx)
	if err != nil {
		log.Error("job run failed", sl.Err(err))
		return
	}
	for _, e := range res.Errors {
		log.Warn("record failed", slog.String("record_id", e.RecordID), slog.String("error", e.Error))
	}
	log.Info("job run finished", slog.Int("processed", res.Processed), slog.Int("errors", len(res.Errors)))
}
