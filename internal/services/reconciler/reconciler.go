// Package reconciler применяет события платежного провайдера к профилю пользователя:
// одно изменение профиля, одна запись истории и, возможно, одно письмо на событие.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/metrics"
	"github.com/magabrotheeeer/menoease/internal/models"
	"github.com/magabrotheeeer/menoease/internal/storage/repository"
)

// ErrMissingPayload в событии нет записи нужного вида.
var ErrMissingPayload = errors.New("event payload is missing")

// Repository доступ к профилям, истории и журналу обработанных событий.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	FindProfileByCustomerID(ctx context.Context, customerID string) (*models.Profile, error)
	FindProfileBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Profile, error)
	UpdateSubscription(ctx context.Context, userID string, patch models.SubscriptionPatch) error
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	ClaimWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error)
	ReleaseWebhookEvent(ctx context.Context, eventID string) error
}

// TierSource каталог тарифов. Invalidate сбрасывает кэш каталога.
type TierSource interface {
	ListTiers(ctx context.Context) ([]models.Tier, error)
	Invalidate(ctx context.Context) error
}

// BillingClient запросы к платежному провайдеру.
type BillingClient interface {
	GetSubscription(ctx context.Context, id string) (*models.SubscriptionRecord, error)
	GetPrice(ctx context.Context, id string) (*models.PriceInfo, error)
}

// EmailSender отправляет письмо по шаблону.
type EmailSender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// Templates шаблоны писем по виду.
type Templates struct {
	Welcome   string
	Upgrade   string
	Downgrade string
	Cancelled string
}

func (t Templates) byKind(kind string) string {
	switch kind {
	case EmailWelcome:
		return t.Welcome
	case EmailUpgrade:
		return t.Upgrade
	case EmailDowngrade:
		return t.Downgrade
	case EmailCancelled:
		return t.Cancelled
	default:
		return ""
	}
}

// Result как было обработано событие.
type Result string

// Результаты обработки.
const (
	ResultApplied   Result = "applied"
	ResultNoop      Result = "noop"
	ResultDuplicate Result = "duplicate"
	ResultIgnored   Result = "ignored"
)

// Service сверка подписок.
type Service struct {
	repo      Repository
	tiers     TierSource
	billing   BillingClient
	email     EmailSender
	templates Templates
	validate  *validator.Validate
	log       *slog.Logger
}

// NewService создает сервис сверки.
func NewService(log *slog.Logger, repo Repository, tiers TierSource, billing BillingClient, email EmailSender, templates Templates) *Service {
	return &Service{
		repo:      repo,
		tiers:     tiers,
		billing:   billing,
		email:     email,
		templates: templates,
		validate:  validator.New(),
		log:       log,
	}
}

// Apply применяет событие. Ошибка возвращается только при сбое основного изменения профиля,
// в этом случае событие снова станет доступным для повторной доставки.
func (s *Service) Apply(ctx context.Context, event models.BillingEvent) (result Result, err error) {
	const op = "reconciler.Apply"
	log := s.log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	defer func() {
		label := string(result)
		if err != nil {
			label = "failed"
		}
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, label).Inc()
	}()

	if err := s.validate.Struct(event); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	t, ok := Transitions[event.Type]
	if !ok {
		log.Info("unhandled event type")
		return ResultIgnored, nil
	}

	claimed, err := s.repo.ClaimWebhookEvent(ctx, event.ID, event.Type)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !claimed {
		log.Info("event already processed")
		return ResultDuplicate, nil
	}

	result, err = s.dispatch(ctx, log, t, event)
	if err != nil {
		if relErr := s.repo.ReleaseWebhookEvent(context.WithoutCancel(ctx), event.ID); relErr != nil {
			log.Error("failed to release webhook event", sl.Err(relErr))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, log *slog.Logger, t Transition, event models.BillingEvent) (Result, error) {
	switch event.Type {
	case models.EventCheckoutCompleted:
		if event.Checkout == nil {
			return "", ErrMissingPayload
		}
		return s.checkoutCompleted(ctx, log, event.Checkout)
	case models.EventSubscriptionCreated, models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return "", ErrMissingPayload
		}
		return s.subscriptionChanged(ctx, log, t, event)
	case models.EventInvoicePaymentSucceeded, models.EventInvoicePaymentFailed:
		if event.Invoice == nil {
			return "", ErrMissingPayload
		}
		return s.invoice(ctx, log, t, event)
	default:
		return ResultIgnored, nil
	}
}

// findProfile ищет профиль способом lookup. nil без ошибки означает промах.
func (s *Service) findProfile(ctx context.Context, lookup Lookup, key string) (*models.Profile, error) {
	if key == "" {
		return nil, nil
	}
	var (
		p   *models.Profile
		err error
	)
	switch lookup {
	case LookupUserRef:
		p, err = s.repo.GetProfile(ctx, key)
	case LookupCustomer:
		p, err = s.repo.FindProfileByCustomerID(ctx, key)
	case LookupSubscription:
		p, err = s.repo.FindProfileBySubscriptionID(ctx, key)
	}
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *Service) checkoutCompleted(ctx context.Context, log *slog.Logger, rec *models.CheckoutRecord) (Result, error) {
	if rec.UserRef == "" {
		log.Warn("checkout session has no user reference", slog.String("session_id", rec.ID))
		return ResultNoop, nil
	}
	log = log.With(slog.String("user_id", rec.UserRef))

	patch := models.SubscriptionPatch{}
	if rec.CustomerID != "" {
		patch.StripeCustomerID = &rec.CustomerID
	}
	if rec.SubscriptionID != "" {
		patch.StripeSubscriptionID = &rec.SubscriptionID
		sub, err := s.billing.GetSubscription(ctx, rec.SubscriptionID)
		if err != nil {
			log.Error("failed to fetch subscription for checkout", sl.Err(err))
		} else {
			tier := s.resolveTier(ctx, sub.PriceID, firstNonEmpty(rec.TierCode, sub.PriceTierCode))
			applySubscription(&patch, sub, tier)
			patch.StartDate = sub.StartDate
		}
	}

	err := s.repo.UpdateSubscription(ctx, rec.UserRef, patch)
	if errors.Is(err, repository.ErrProfileNotFound) {
		log.Warn("profile not found for checkout")
		return ResultNoop, nil
	}
	if err != nil {
		return "", err
	}
	log.Info("checkout applied", slog.Bool("with_subscription", rec.SubscriptionID != ""))
	return ResultApplied, nil
}

func (s *Service) subscriptionChanged(ctx context.Context, log *slog.Logger, t Transition, event models.BillingEvent) (Result, error) {
	sub := event.Subscription
	key := sub.ID
	if t.Lookup == LookupCustomer {
		key = sub.CustomerID
	}
	p, err := s.findProfile(ctx, t.Lookup, key)
	if err != nil {
		return "", err
	}
	if p == nil {
		log.Warn("profile not found for subscription", slog.String("subscription_id", sub.ID), slog.String("customer_id", sub.CustomerID))
		return ResultNoop, nil
	}
	log = log.With(slog.String("user_id", p.UserID))
	oldTier := p.SubscriptionTier

	var (
		patch    models.SubscriptionPatch
		newTier  string
		amount   *float64
		period   *string
		metadata = map[string]any{"subscription_id": sub.ID}
	)

	switch event.Type {
	case models.EventSubscriptionDeleted:
		newTier = models.TierFree
		status, monthly, no := models.StatusCancelled, models.PeriodMonthly, false
		patch = models.SubscriptionPatch{Tier: &newTier, Status: &status, Period: &monthly, CancelAtPeriodEnd: &no}
		metadata["cancelled_at"] = timeOrNil(sub.CanceledAt)
	default:
		newTier = s.resolveTier(ctx, sub.PriceID, sub.PriceTierCode)
		applySubscription(&patch, sub, newTier)
		if event.Type == models.EventSubscriptionCreated {
			patch.StartDate = sub.StartDate
			patch.StripeSubscriptionID = &sub.ID
			metadata["trial_end"] = timeOrNil(sub.TrialEnd)
		} else {
			metadata["cancel_at_period_end"] = sub.CancelAtPeriodEnd
		}
		metadata["status"] = sub.Status
		metadata["current_period_end"] = timeOrNil(sub.CurrentPeriodEnd)
		a := models.CentsToAmount(sub.UnitAmount)
		pr := sub.Period()
		amount, period = &a, &pr
	}

	if err := s.repo.UpdateSubscription(ctx, p.UserID, patch); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			log.Warn("profile disappeared before update")
			return ResultNoop, nil
		}
		return "", err
	}

	d := t.Decide(oldTier, newTier)
	s.appendHistory(ctx, log, models.HistoryEntry{
		UserID:          p.UserID,
		EventType:       d.History,
		FromTier:        oldTier,
		ToTier:          newTier,
		Amount:          amount,
		Period:          period,
		ProviderEventID: event.ID,
		Metadata:        metadata,
	})

	tierForEmail := newTier
	if d.Email == EmailCancelled {
		tierForEmail = oldTier
	}
	s.sendEmail(ctx, log, p, d.Email, tierForEmail, oldTier, newTier, sub)

	log.Info("subscription event applied", slog.String("from_tier", oldTier), slog.String("to_tier", newTier), slog.String("history", d.History))
	return ResultApplied, nil
}

func (s *Service) invoice(ctx context.Context, log *slog.Logger, t Transition, event models.BillingEvent) (Result, error) {
	inv := event.Invoice
	p, err := s.findProfile(ctx, t.Lookup, inv.CustomerID)
	if err != nil {
		return "", err
	}
	if p == nil {
		log.Warn("profile not found for invoice", slog.String("customer_id", inv.CustomerID))
		return ResultNoop, nil
	}
	log = log.With(slog.String("user_id", p.UserID))

	var (
		amount   float64
		metadata map[string]any
	)
	if event.Type == models.EventInvoicePaymentFailed {
		status := models.StatusPastDue
		if err := s.repo.UpdateSubscription(ctx, p.UserID, models.SubscriptionPatch{Status: &status}); err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				log.Warn("profile disappeared before update")
				return ResultNoop, nil
			}
			return "", err
		}
		amount = models.CentsToAmount(inv.AmountDue)
		metadata = map[string]any{
			"attempt_count":        inv.AttemptCount,
			"next_payment_attempt": timeOrNil(inv.NextPaymentAttempt),
		}
	} else {
		amount = models.CentsToAmount(inv.AmountPaid)
		metadata = map[string]any{
			"subscription_id": inv.SubscriptionID,
			"paid_at":         timeOrNil(inv.PaidAt),
		}
	}

	d := t.Decide(p.SubscriptionTier, p.SubscriptionTier)
	s.appendHistory(ctx, log, models.HistoryEntry{
		UserID:            p.UserID,
		EventType:         d.History,
		FromTier:          p.SubscriptionTier,
		ToTier:            p.SubscriptionTier,
		Amount:            &amount,
		ProviderEventID:   event.ID,
		ProviderInvoiceID: &inv.ID,
		Metadata:          metadata,
	})
	log.Info("invoice event applied", slog.String("history", d.History), slog.Float64("amount", amount))
	return ResultApplied, nil
}

// appendHistory пишет запись истории. Ошибка только логируется.
func (s *Service) appendHistory(ctx context.Context, log *slog.Logger, entry models.HistoryEntry) {
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		log.Error("failed to append subscription history", slog.String("history", entry.EventType), sl.Err(err))
	}
}

// sendEmail отправляет письмо вида kind. Ошибка только логируется.
func (s *Service) sendEmail(ctx context.Context, log *slog.Logger, p *models.Profile, kind, tierName, oldTier, newTier string, sub *models.SubscriptionRecord) {
	if kind == EmailNone {
		return
	}
	template := s.templates.byKind(kind)
	if template == "" || s.email == nil {
		log.Info("email template not configured, skipping", slog.String("kind", kind))
		return
	}
	if p.Email == "" {
		log.Warn("profile has no email, skipping", slog.String("kind", kind))
		return
	}
	name := p.DisplayName()
	params := map[string]string{
		"to_email":  p.Email,
		"to_name":   name,
		"user_name": name,
		"tier_name": models.TierName(tierName),
		"old_tier":  oldTier,
		"new_tier":  newTier,
	}
	if kind == EmailCancelled && p.SubscriptionEndDate != nil {
		params["end_date"] = p.SubscriptionEndDate.Format(clock.DateLayout)
	}
	if err := s.email.Send(ctx, template, params); err != nil {
		log.Error("failed to send subscription email", slog.String("kind", kind), sl.Err(err))
		return
	}
	log.Info("subscription email sent", slog.String("kind", kind), slog.String("subscription_id", sub.ID))
}

func applySubscription(patch *models.SubscriptionPatch, sub *models.SubscriptionRecord, tier string) {
	status, period, price := sub.Status, sub.Period(), sub.PriceID
	cancel := sub.CancelAtPeriodEnd
	patch.Tier = &tier
	patch.Status = &status
	patch.Period = &period
	patch.EndDate = sub.CurrentPeriodEnd
	if price != "" {
		patch.StripePriceID = &price
	}
	patch.CancelAtPeriodEnd = &cancel
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
