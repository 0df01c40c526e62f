// Package runjob запускает пакетную задачу по HTTP запросу внешнего планировщика.
package runjob

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/menoease/internal/http/response"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// Runner выполняет один прогон задачи.
type Runner interface {
	Process(ctx context.Context) (models.JobResult, error)
}

// Handler обработчик ручки запуска задачи.
type Handler struct {
	log         *slog.Logger
	job         string
	runner      Runner
	failMessage string
}

// New создает обработчик задачи job. failMessage попадает в поле error ответа при сбое.
// nil runner означает, что задача не настроена.
func New(log *slog.Logger, job string, runner Runner, failMessage string) *Handler {
	return &Handler{
		log:         log,
		job:         job,
		runner:      runner,
		failMessage: failMessage,
	}
}

// ServeHTTP godoc
// @Summary Запустить задачу
// @Description Выполняет один прогон напоминаний или отчетов. Ошибки отдельных записей
// @Description возвращаются в errors и не прерывают прогон.
// @Tags Jobs
// @Produce  json
// @Success 200 {object} response.JobResponse "Прогон завершен"
// @Failure 401 {object} response.ErrorResponse "Нет токена или токен неверен"
// @Failure 403 {object} response.ErrorResponse "У токена нет права run_jobs"
// @Failure 500 {object} response.ErrorResponse "Задача не настроена или хранилище недоступно"
// @Router /api/v1/jobs/reminders [post]
// @Router /api/v1/jobs/reports [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.jobs.run"
	log := h.log.With(
		slog.String("op", op),
		slog.String("job", h.job),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.runner == nil {
		log.Error("job is not configured")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(h.failMessage, "missing configuration"))
		return
	}

	res, err := h.runner.Process(r.Context())
	if err != nil {
		log.Error("job failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(h.failMessage, err.Error()))
		return
	}

	log.Info("job finished", slog.Int("processed", res.Processed), slog.Int("errors", len(res.Errors)))
	render.JSON(w, r, response.Job(res))
}
