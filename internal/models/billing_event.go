package models

import "time"

// Типы событий платежного провайдера, которые обрабатывает сверка.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// BillingEvent проверенное событие провайдера, разобранное в доменные записи.
// Заполнено ровно одно из полей Checkout, Subscription, Invoice.
type BillingEvent struct {
	ID           string `validate:"required"`
	Type         string `validate:"required"`
	Created      time.Time
	Checkout     *CheckoutRecord
	Subscription *SubscriptionRecord
	Invoice      *InvoiceRecord
}

// CheckoutRecord завершенная сессия оплаты.
type CheckoutRecord struct {
	ID             string
	UserRef        string // client_reference_id или metadata.user_id
	TierCode       string
	CustomerID     string
	SubscriptionID string
}

// SubscriptionRecord состояние подписки у провайдера.
type SubscriptionRecord struct {
	ID                string `validate:"required"`
	CustomerID        string
	Status            string
	PriceID           string
	PriceTierCode     string // metadata.tier_code цены, если пришла в событии
	Interval          string // month | year
	UnitAmount        int64  // в центах
	StartDate         *time.Time
	CurrentPeriodEnd  *time.Time
	TrialEnd          *time.Time
	CanceledAt        *time.Time
	CancelAtPeriodEnd bool
}

// Period переводит интервал цены в период профиля.
func (s SubscriptionRecord) Period() string {
	if s.Interval == "year" {
		return PeriodYearly
	}
	return PeriodMonthly
}

// InvoiceRecord счет провайдера.
type InvoiceRecord struct {
	ID                 string `validate:"required"`
	CustomerID         string
	SubscriptionID     string
	AmountPaid         int64 // в центах
	AmountDue          int64 // в центах
	AttemptCount       int64
	NextPaymentAttempt *time.Time
	PaidAt             *time.Time
}

// PriceInfo данные цены, нужные для определения тарифа.
type PriceInfo struct {
	ID       string
	TierCode string // metadata.tier_code
}

// CentsToAmount переводит центы в денежную сумму.
func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
