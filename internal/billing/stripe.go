// Package billing работает с платежным провайдером Stripe: проверяет подпись вебхука,
// разбирает события в доменные записи и запрашивает подписки и цены.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/menoease/internal/models"
)

var (
	// ErrMissingSignature заголовок подписи отсутствует.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature подпись не сошлась или устарела.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnknownEvent тип события не обрабатывается сверкой.
	ErrUnknownEvent = errors.New("unhandled event type")
	// ErrMalformedEvent тело события не удалось разобрать.
	ErrMalformedEvent = errors.New("malformed event payload")
)

// Client клиент Stripe.
type Client struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	validate      *validator.Validate
}

// New создает клиент с ключом API и секретом вебхука.
func New(secretKey, webhookSecret string) *Client {
	return NewWithBackends(secretKey, webhookSecret, nil)
}

// NewWithBackends создает клиент с заданными бэкендами, nil означает бэкенды по умолчанию.
func NewWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	return &Client{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		tolerance:     webhook.DefaultTolerance,
		validate:      validator.New(),
	}
}

// VerifyEvent проверяет подпись тела запроса и разбирает событие.
func (c *Client) VerifyEvent(payload []byte, signature string) (models.BillingEvent, error) {
	const op = "billing.VerifyEvent"
	if signature == "" {
		return models.BillingEvent{}, fmt.Errorf("%s: %w", op, ErrMissingSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return models.BillingEvent{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	parsed, err := ParseEvent(event)
	if err != nil {
		return parsed, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.validate.Struct(parsed); err != nil {
		return parsed, fmt.Errorf("%s: %w: %w", op, ErrMalformedEvent, err)
	}
	return parsed, nil
}

// ParseEvent переводит событие Stripe в доменное событие.
// Для необрабатываемых типов возвращается ErrUnknownEvent и заполненные ID и Type.
func ParseEvent(event stripe.Event) (models.BillingEvent, error) {
	out := models.BillingEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: unixTime(event.Created),
	}
	if event.Data == nil {
		return out, ErrMalformedEvent
	}
	raw := event.Data.Raw

	switch out.Type {
	case models.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return out, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		out.Checkout = checkoutRecord(&s)
	case models.EventSubscriptionCreated, models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return out, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		out.Subscription = subscriptionRecord(&s)
	case models.EventInvoicePaymentSucceeded, models.EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return out, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		out.Invoice = invoiceRecord(&inv)
	default:
		return out, ErrUnknownEvent
	}
	return out, nil
}

// GetSubscription запрашивает подписку у провайдера.
func (c *Client) GetSubscription(ctx context.Context, id string) (*models.SubscriptionRecord, error) {
	const op = "billing.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subscriptionRecord(sub), nil
}

// GetPrice запрашивает цену у провайдера.
func (c *Client) GetPrice(ctx context.Context, id string) (*models.PriceInfo, error) {
	const op = "billing.GetPrice"
	params := &stripe.PriceParams{}
	params.Context = ctx
	price, err := c.api.Prices.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.PriceInfo{ID: price.ID, TierCode: price.Metadata["tier_code"]}, nil
}

func checkoutRecord(s *stripe.CheckoutSession) *models.CheckoutRecord {
	rec := &models.CheckoutRecord{
		ID:       s.ID,
		UserRef:  s.ClientReferenceID,
		TierCode: s.Metadata["tier_code"],
	}
	if rec.UserRef == "" {
		rec.UserRef = s.Metadata["user_id"]
	}
	if s.Customer != nil {
		rec.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		rec.SubscriptionID = s.Subscription.ID
	}
	return rec
}

func subscriptionRecord(s *stripe.Subscription) *models.SubscriptionRecord {
	rec := &models.SubscriptionRecord{
		ID:                s.ID,
		Status:            string(s.Status),
		StartDate:         unixTimePtr(s.StartDate),
		CurrentPeriodEnd:  unixTimePtr(s.CurrentPeriodEnd),
		TrialEnd:          unixTimePtr(s.TrialEnd),
		CanceledAt:        unixTimePtr(s.CanceledAt),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		rec.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		price := s.Items.Data[0].Price
		rec.PriceID = price.ID
		rec.PriceTierCode = price.Metadata["tier_code"]
		rec.UnitAmount = price.UnitAmount
		if price.Recurring != nil {
			rec.Interval = string(price.Recurring.Interval)
		}
	}
	return rec
}

func invoiceRecord(inv *stripe.Invoice) *models.InvoiceRecord {
	rec := &models.InvoiceRecord{
		ID:                 inv.ID,
		AmountPaid:         inv.AmountPaid,
		AmountDue:          inv.AmountDue,
		AttemptCount:       inv.AttemptCount,
		NextPaymentAttempt: unixTimePtr(inv.NextPaymentAttempt),
	}
	if inv.Customer != nil {
		rec.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		rec.SubscriptionID = inv.Subscription.ID
	}
	if inv.StatusTransitions != nil {
		rec.PaidAt = unixTimePtr(inv.StatusTransitions.PaidAt)
	}
	return rec
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
