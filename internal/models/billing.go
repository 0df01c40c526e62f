package models

import (
	"strings"
	"time"
)

// Коды тарифов.
const (
	TierFree         = "free"
	TierBasic        = "basic"
	TierPremium      = "premium"
	TierProfessional = "professional"
)

// Статусы подписки, которые выставляет сверка.
const (
	StatusActive    = "active"
	StatusTrialing  = "trialing"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
)

// Периоды оплаты.
const (
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// Типы записей истории подписки.
const (
	HistorySubscriptionCreated   = "subscription_created"
	HistoryTierUpgraded          = "tier_upgraded"
	HistoryTierDowngraded        = "tier_downgraded"
	HistorySubscriptionCancelled = "subscription_cancelled"
	HistoryPaymentSucceeded      = "payment_succeeded"
	HistoryPaymentFailed         = "payment_failed"
	HistorySubscriptionUpdated   = "subscription_updated"
)

var tierRanks = map[string]int{
	TierFree:         0,
	TierBasic:        1,
	TierPremium:      2,
	TierProfessional: 3,
}

// TierRank порядковый номер тарифа, неизвестный код считается free.
func TierRank(code string) int {
	return tierRanks[code]
}

// IsKnownTier проверяет, что код тарифа из каталога рангов.
func IsKnownTier(code string) bool {
	_, ok := tierRanks[code]
	return ok
}

// TierName название тарифа для писем: первая буква заглавная.
func TierName(code string) string {
	if code == "" {
		return ""
	}
	return strings.ToUpper(code[:1]) + code[1:]
}

// Tier строка каталога тарифов.
type Tier struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	MonthlyPriceID *string `json:"monthly_price_id,omitempty"`
	YearlyPriceID  *string `json:"yearly_price_id,omitempty"`
}

// HistoryEntry запись аудита изменения подписки.
type HistoryEntry struct {
	ID                string
	UserID            string
	EventType         string
	FromTier          string
	ToTier            string
	Amount            *float64
	Period            *string
	ProviderEventID   string
	ProviderInvoiceID *string
	Metadata          map[string]any
	CreatedAt         time.Time
}

// SubscriptionPatch набор полей профиля, которые меняет одно событие.
// nil означает "не трогать".
type SubscriptionPatch struct {
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripePriceID        *string
	Tier                 *string
	Status               *string
	Period               *string
	StartDate            *time.Time
	EndDate              *time.Time
	CancelAtPeriodEnd    *bool
}

// IsEmpty true, если патч ничего не меняет.
func (p SubscriptionPatch) IsEmpty() bool {
	return p.StripeCustomerID == nil && p.StripeSubscriptionID == nil && p.StripePriceID == nil &&
		p.Tier == nil && p.Status == nil && p.Period == nil &&
		p.StartDate == nil && p.EndDate == nil && p.CancelAtPeriodEnd == nil
}
