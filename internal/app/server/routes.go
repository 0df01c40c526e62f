// Package server HTTP сервер: вебхук Stripe, ручки запуска задач, health, метрики и swagger.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	// Регистрация сгенерированной документации swagger.
	_ "github.com/magabrotheeeer/menoease/docs"
	"github.com/magabrotheeeer/menoease/internal/http/middlewarectx"
)

// Handlers обработчики маршрутов.
type Handlers struct {
	Webhook   http.Handler
	Reminders http.Handler
	Reports   http.Handler
	Health    http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
// jobAuth может быть nil, тогда ручки задач открыты и отвечают ошибкой конфигурации.
func RegisterRoutes(r chi.Router, logger *slog.Logger, h Handlers, jobAuth func(http.Handler) http.Handler, webhookLimiter *rate.Limiter) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхук проверяет подпись сам и отвечает 405 на прочие методы
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, webhookLimiter))
			r.Handle("/webhooks/stripe", h.Webhook)
		})

		r.Group(func(r chi.Router) {
			if jobAuth != nil {
				r.Use(jobAuth)
			}
			r.Method(http.MethodPost, "/jobs/reminders", h.Reminders)
			r.Method(http.MethodPost, "/jobs/reports", h.Reports)
		})
	})

	r.Method(http.MethodGet, "/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Swagger docs endpoint
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
