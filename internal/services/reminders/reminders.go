// Package reminders отправляет наступившие напоминания по email и SMS
// и отмечает отправку, чтобы напоминание не ушло повторно в тот же день.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/menoease/internal/cache"
	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/metrics"
	"github.com/magabrotheeeer/menoease/internal/models"
	"github.com/magabrotheeeer/menoease/internal/schedule"
	"github.com/magabrotheeeer/menoease/internal/storage/repository"
)

const (
	emailDateLayout = "Monday, January 2, 2006"
	emailTimeLayout = "03:04 PM"
	smsPrefix       = "MenoEase Reminder: "
)

var errNoEmail = errors.New("profile has no email address")

// Repository доступ к напоминаниям, профилям и журналу отправок.
type Repository interface {
	ListActiveReminders(ctx context.Context) ([]models.Reminder, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	HasSentReminder(ctx context.Context, reminderID, localDate string) (bool, error)
	LogReminderSent(ctx context.Context, entry models.ReminderLog) (bool, error)
}

// EmailSender отправляет письмо по шаблону.
type EmailSender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// SMSSender отправляет SMS.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Claimer захватывает ключ на время отправки, реализован в cache.Cache.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Options шаблон письма и время жизни захвата.
type Options struct {
	Template string
	ClaimTTL time.Duration
}

// Service обрабатывает напоминания за один тик.
type Service struct {
	repo   Repository
	eval   *schedule.Evaluator
	email  EmailSender
	sms    SMSSender
	claims Claimer
	opts   Options
	log    *slog.Logger
	now    func() time.Time
}

// NewService создает сервис напоминаний. claims может быть nil.
func NewService(log *slog.Logger, repo Repository, eval *schedule.Evaluator, email EmailSender, sms SMSSender, claims Claimer, opts Options) *Service {
	return &Service{
		repo:   repo,
		eval:   eval,
		email:  email,
		sms:    sms,
		claims: claims,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// Process проверяет все активные напоминания и отправляет наступившие.
// Ошибка возвращается только если не удалось прочитать список напоминаний.
func (s *Service) Process(ctx context.Context) (models.JobResult, error) {
	const op = "reminders.Process"
	defer metrics.ObserveJob("reminders", time.Now())

	var result models.JobResult
	now := s.now().UTC()

	items, err := s.repo.ListActiveReminders(ctx)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("processing reminders", slog.Int("count", len(items)), slog.Time("now", now))

	profiles := make(map[string]*models.Profile)
	for _, r := range items {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}
		sent, err := s.processOne(ctx, r, now, profiles)
		if err != nil {
			s.log.Error("reminder failed", slog.String("reminder_id", r.ID), sl.Err(err))
			result.AddError(r.ID, err)
			continue
		}
		if sent {
			result.Processed++
		}
	}

	s.log.Info("reminders processed", slog.Int("processed", result.Processed), slog.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *Service) profile(ctx context.Context, userID string, profiles map[string]*models.Profile) (*models.Profile, error) {
	if p, ok := profiles[userID]; ok {
		return p, nil
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		profiles[userID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profiles[userID] = p
	return p, nil
}

func (s *Service) processOne(ctx context.Context, r models.Reminder, now time.Time, profiles map[string]*models.Profile) (bool, error) {
	log := s.log.With(slog.String("reminder_id", r.ID), slog.String("user_id", r.UserID))

	p, err := s.profile(ctx, r.UserID, profiles)
	if err != nil {
		return false, err
	}
	if p == nil {
		log.Warn("profile not found, skipping reminder")
		return false, nil
	}
	if p.PreferencesErr != nil {
		return false, p.PreferencesErr
	}

	prefs := p.ReminderPrefs()
	if !prefs.Enabled {
		log.Debug("reminders disabled for user")
		return false, nil
	}

	tz := p.TimezoneOrDefault()
	if !s.eval.IsReminderDue(r, now, tz, prefs) {
		return false, nil
	}

	local := s.eval.LocalTime(now, tz)
	localDate := local.Format(clock.DateLayout)

	already, err := s.repo.HasSentReminder(ctx, r.ID, localDate)
	if err != nil {
		return false, err
	}
	if already {
		log.Debug("reminder already sent today", slog.String("date", localDate))
		return false, nil
	}

	key := cache.ReminderClaimKey(r.ID, localDate)
	claimed := false
	if s.claims != nil {
		ok, err := s.claims.Claim(ctx, key, s.opts.ClaimTTL)
		switch {
		case err != nil:
			log.Warn("claim failed, relying on reminder log", sl.Err(err))
		case !ok:
			log.Info("reminder claimed by another run")
			return false, nil
		default:
			claimed = true
		}
	}

	method := prefs.Method
	if r.ChannelOverride != nil && *r.ChannelOverride != "" {
		method = *r.ChannelOverride
	}

	attempted, succeeded, sendErr := s.deliver(ctx, log, r, p, local, models.ChannelsFor(method))
	if len(succeeded) == 0 {
		if claimed {
			s.release(ctx, log, key)
		}
		if sendErr != nil {
			return false, sendErr
		}
		log.Info("no channel available for reminder", sl.Channels(models.ChannelsFor(method)))
		return false, nil
	}
	if sendErr != nil {
		log.Warn("reminder partially delivered", sl.Channels(succeeded), sl.Err(sendErr))
	}

	inserted, err := s.repo.LogReminderSent(ctx, models.ReminderLog{
		ReminderID: r.ID,
		UserID:     r.UserID,
		LocalDate:  localDate,
		LocalTime:  clock.HHMM(local),
		Status:     models.ReminderStatusSent,
		Method:     methodOf(attempted),
	})
	if err != nil {
		return false, fmt.Errorf("reminder sent but not logged: %w", err)
	}
	if !inserted {
		log.Warn("reminder log already written by another run", slog.String("date", localDate))
		return false, nil
	}
	log.Info("reminder sent", sl.Channels(succeeded))
	return true, nil
}

// deliver пробует каждый канал независимо. SMS без номера пропускается.
func (s *Service) deliver(ctx context.Context, log *slog.Logger, r models.Reminder, p *models.Profile, local time.Time, channels []string) (attempted, succeeded []string, err error) {
	var errs []error
	text := r.Text()
	for _, ch := range channels {
		var sendErr error
		switch ch {
		case models.ChannelEmail:
			attempted = append(attempted, ch)
			sendErr = s.sendEmail(ctx, r, p, text, local)
		case models.ChannelSMS:
			if p.Phone == "" {
				log.Info("sms requested but no phone number on file")
				metrics.NotificationsTotal.WithLabelValues("reminder", ch, metrics.ResultSkipped).Inc()
				continue
			}
			attempted = append(attempted, ch)
			sendErr = s.sms.Send(ctx, p.Phone, smsPrefix+text)
		}
		if sendErr != nil {
			metrics.NotificationsTotal.WithLabelValues("reminder", ch, metrics.ResultFailed).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch, sendErr))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("reminder", ch, metrics.ResultSent).Inc()
		succeeded = append(succeeded, ch)
	}
	return attempted, succeeded, errors.Join(errs...)
}

func (s *Service) sendEmail(ctx context.Context, r models.Reminder, p *models.Profile, text string, local time.Time) error {
	if p.Email == "" {
		return errNoEmail
	}
	name := p.DisplayName()
	return s.email.Send(ctx, s.opts.Template, map[string]string{
		"to_email":         p.Email,
		"to_name":          name,
		"user_name":        name,
		"reminder_type":    r.TypeOrDefault(),
		"reminder_message": text,
		"message":          text,
		"date":             local.Format(emailDateLayout),
		"time":             local.Format(emailTimeLayout),
	})
}

func (s *Service) release(ctx context.Context, log *slog.Logger, key string) {
	if err := s.claims.Release(ctx, key); err != nil {
		log.Warn("failed to release claim", slog.String("key", key), sl.Err(err))
	}
}

func methodOf(channels []string) string {
	if len(channels) > 1 {
		return models.ChannelBoth
	}
	return strings.Join(channels, "")
}
