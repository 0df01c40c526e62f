// Package reports собирает периодические сводки по журналам пользователя
// и отправляет их в выбранные каналы.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/menoease/internal/cache"
	"github.com/magabrotheeeer/menoease/internal/config"
	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/metrics"
	"github.com/magabrotheeeer/menoease/internal/models"
	"github.com/magabrotheeeer/menoease/internal/schedule"
)

const (
	defaultInsight         = "Keep up the great tracking!"
	defaultTrends          = "Your data is building over time."
	defaultRecommendations = "Continue logging daily for better insights."
)

// Repository доступ к профилям и агрегатам журналов.
type Repository interface {
	ListProfilesWithPreferences(ctx context.Context) ([]models.Profile, error)
	SummarizeActivity(ctx context.Context, userID string, from, to time.Time) (models.ActivitySummary, error)
}

// EmailSender отправляет письмо по шаблону.
type EmailSender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// SMSSender отправляет SMS.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Claimer захватывает ключ на время отправки.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Templates шаблоны писем по частоте отчета.
type Templates struct {
	Daily   string
	Weekly  string
	Monthly string
}

// Options настройки сервиса отчетов.
type Options struct {
	Templates Templates
	AppURL    string
	// TimezoneSource config.ReportTimezoneEvaluator или config.ReportTimezoneUser.
	TimezoneSource    string
	EvaluatorTimezone string
	ClaimTTL          time.Duration
}

// Service обрабатывает отчеты за один тик.
type Service struct {
	repo         Repository
	eval         *schedule.Evaluator
	email        EmailSender
	sms          SMSSender
	claims       Claimer
	opts         Options
	evaluatorLoc *time.Location
	validate     *validator.Validate
	log          *slog.Logger
	now          func() time.Time
}

// NewService создает сервис отчетов. claims может быть nil.
func NewService(log *slog.Logger, repo Repository, eval *schedule.Evaluator, email EmailSender, sms SMSSender, claims Claimer, opts Options) *Service {
	if opts.TimezoneSource == "" {
		opts.TimezoneSource = config.ReportTimezoneEvaluator
	}
	log.Info("report timezone source", slog.String("source", opts.TimezoneSource), slog.String("evaluator_timezone", opts.EvaluatorTimezone))
	return &Service{
		repo:         repo,
		eval:         eval,
		email:        email,
		sms:          sms,
		claims:       claims,
		opts:         opts,
		evaluatorLoc: eval.Location(opts.EvaluatorTimezone),
		validate:     validator.New(),
		log:          log,
		now:          time.Now,
	}
}

// Process проверяет настройки отчетов всех пользователей и отправляет наступившие.
func (s *Service) Process(ctx context.Context) (models.JobResult, error) {
	const op = "reports.Process"
	defer metrics.ObserveJob("reports", time.Now())

	var result models.JobResult
	now := s.now().UTC()

	profiles, err := s.repo.ListProfilesWithPreferences(ctx)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("processing reports", slog.Int("profiles", len(profiles)), slog.Time("now", now))

	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}
		p := &profiles[i]
		sent, err := s.processOne(ctx, p, now)
		if err != nil {
			s.log.Error("report failed", slog.String("user_id", p.UserID), sl.Err(err))
			result.AddError(p.UserID, err)
			continue
		}
		if sent {
			result.Processed++
		}
	}

	s.log.Info("reports processed", slog.Int("processed", result.Processed), slog.Int("errors", len(result.Errors)))
	return result, nil
}

// location часовой пояс, в котором проверяется время отчета.
func (s *Service) location(p *models.Profile) *time.Location {
	if s.opts.TimezoneSource == config.ReportTimezoneUser {
		return s.eval.Location(p.TimezoneOrDefault())
	}
	return s.evaluatorLoc
}

func (s *Service) processOne(ctx context.Context, p *models.Profile, now time.Time) (bool, error) {
	log := s.log.With(slog.String("user_id", p.UserID))

	if p.PreferencesErr != nil {
		return false, p.PreferencesErr
	}
	spec := p.ReportSpec()
	if spec == nil || !spec.Enabled {
		return false, nil
	}
	if err := s.validate.Struct(spec); err != nil {
		return false, fmt.Errorf("invalid report preferences: %w", err)
	}

	loc := s.location(p)
	if !s.eval.IsReportDue(*spec, now, loc) {
		return false, nil
	}
	local := now.In(loc)
	localDate := local.Format(clock.DateLayout)

	key := cache.ReportClaimKey(p.UserID, localDate)
	claimed := false
	if s.claims != nil {
		ok, err := s.claims.Claim(ctx, key, s.opts.ClaimTTL)
		switch {
		case err != nil:
			log.Warn("report claim failed", sl.Err(err))
		case !ok:
			log.Info("report already sent for this date")
			return false, nil
		default:
			claimed = true
		}
	}

	from, to := Window(spec.Frequency, local)
	summary, err := s.repo.SummarizeActivity(ctx, p.UserID, from, to)
	if err != nil {
		s.releaseIf(ctx, log, claimed, key)
		return false, err
	}
	report, err := Build(spec.Frequency, summary, local)
	if err != nil {
		s.releaseIf(ctx, log, claimed, key)
		return false, err
	}

	var (
		errs      []error
		succeeded []string
	)
	for _, ch := range models.ChannelsFor(spec.Method) {
		var sendErr error
		switch ch {
		case models.ChannelEmail:
			sendErr = s.sendEmail(ctx, p, report)
		case models.ChannelSMS:
			if p.Phone == "" {
				log.Info("sms requested but no phone number on file")
				metrics.NotificationsTotal.WithLabelValues("report", ch, metrics.ResultSkipped).Inc()
				continue
			}
			sendErr = s.sms.Send(ctx, p.Phone, SMSText(report, strings.TrimRight(s.opts.AppURL, "/")))
		}
		if sendErr != nil {
			metrics.NotificationsTotal.WithLabelValues("report", ch, metrics.ResultFailed).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch, sendErr))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("report", ch, metrics.ResultSent).Inc()
		succeeded = append(succeeded, ch)
	}

	if len(succeeded) == 0 {
		s.releaseIf(ctx, log, claimed, key)
		return false, errors.Join(errs...)
	}
	if len(errs) > 0 {
		log.Warn("report partially delivered", sl.Channels(succeeded), sl.Err(errors.Join(errs...)))
	}
	log.Info("report sent", slog.String("frequency", spec.Frequency), sl.Channels(succeeded))
	return true, nil
}

func (s *Service) sendEmail(ctx context.Context, p *models.Profile, r models.Report) error {
	if p.Email == "" {
		return errors.New("profile has no email address")
	}
	name := p.DisplayName()
	params := map[string]string{
		"to_email":    p.Email,
		"to_name":     name,
		"user_name":   name,
		"report_data": r.HTML,
	}
	var template string
	switch r.Frequency {
	case models.ReportWeekly:
		template = s.opts.Templates.Weekly
		params["report_period"] = r.PeriodLabel
		params["insight_message"] = defaultInsight
	case models.ReportMonthly:
		template = s.opts.Templates.Monthly
		params["report_period"] = r.PeriodLabel
		params["trends_message"] = defaultTrends
		params["recommendations_message"] = defaultRecommendations
	default:
		template = s.opts.Templates.Daily
		params["date"] = r.Date
	}
	return s.email.Send(ctx, template, params)
}

func (s *Service) releaseIf(ctx context.Context, log *slog.Logger, claimed bool, key string) {
	if !claimed {
		return
	}
	if err := s.claims.Release(ctx, key); err != nil {
		log.Warn("failed to release claim", slog.String("key", key), sl.Err(err))
	}
}
