// Package evaluator собирает сервисы напоминаний и отчетов из конфига.
// Используется и HTTP сервером (ручки запуска задач), и планировщиком.
package evaluator

import (
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/menoease/internal/cache"
	"github.com/magabrotheeeer/menoease/internal/config"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/notify/emailjs"
	"github.com/magabrotheeeer/menoease/internal/notify/twilio"
	"github.com/magabrotheeeer/menoease/internal/schedule"
	"github.com/magabrotheeeer/menoease/internal/services/reminders"
	"github.com/magabrotheeeer/menoease/internal/services/reports"
	"github.com/magabrotheeeer/menoease/internal/storage/repository"
)

// Services сервисы вычисления напоминаний и отчетов.
type Services struct {
	Reminders *reminders.Service
	Reports   *reports.Service
}

// New создает сервисы. Без ключей EmailJS возвращает ошибку конфигурации,
// без ключей Twilio SMS каналы будут завершаться ошибкой.
func New(cfg *config.Config, log *slog.Logger, db *repository.Storage, claims *cache.Cache) (*Services, error) {
	const op = "evaluator.New"
	if err := cfg.ValidateEmailJS(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.ValidateTwilio(); err != nil {
		log.Warn("sms channel is not configured", sl.Err(err))
	}

	eval := schedule.New(log)
	email := emailjs.NewClient(cfg.EmailJS)
	sms := twilio.NewClient(cfg.Twilio, log)

	var claimer reminders.Claimer
	if claims != nil {
		claimer = claims
	}

	return &Services{
		Reminders: reminders.NewService(log.With(slog.String("component", "reminders")), db, eval, email, sms, claimer, reminders.Options{
			Template: cfg.TemplateReminder,
			ClaimTTL: cfg.ClaimTTL,
		}),
		Reports: reports.NewService(log.With(slog.String("component", "reports")), db, eval, email, sms, claimer, reports.Options{
			Templates: reports.Templates{
				Daily:   cfg.TemplateReportDay,
				Weekly:  cfg.TemplateReportWeek,
				Monthly: cfg.TemplateReportMon,
			},
			AppURL:            cfg.AppURL,
			TimezoneSource:    cfg.ReportTimezone,
			EvaluatorTimezone: cfg.EvaluatorTimezone,
			ClaimTTL:          cfg.ClaimTTL,
		}),
	}, nil
}
