package reconciler

import "github.com/magabrotheeeer/menoease/internal/models"

// Lookup способ найти профиль по событию.
type Lookup int

// Способы поиска профиля.
const (
	LookupUserRef Lookup = iota
	LookupCustomer
	LookupSubscription
)

// Виды писем, которые отправляет сверка.
const (
	EmailNone      = ""
	EmailWelcome   = "welcome"
	EmailUpgrade   = "upgrade"
	EmailDowngrade = "downgrade"
	EmailCancelled = "cancelled"
)

// Decision итог перехода: тип записи истории и письмо. Пустые строки означают "нет".
type Decision struct {
	History string
	Email   string
}

// Transition строка таблицы переходов для одного типа события.
type Transition struct {
	Lookup Lookup
	Decide func(oldTier, newTier string) Decision
}

// Transitions таблица: тип события -> способ поиска профиля и решение по истории и письму.
var Transitions = map[string]Transition{
	models.EventCheckoutCompleted: {
		Lookup: LookupUserRef,
		Decide: func(_, _ string) Decision { return Decision{} },
	},
	models.EventSubscriptionCreated: {
		Lookup: LookupCustomer,
		Decide: func(oldTier, _ string) Decision {
			email := EmailUpgrade
			if oldTier == models.TierFree || oldTier == "" {
				email = EmailWelcome
			}
			return Decision{History: models.HistorySubscriptionCreated, Email: email}
		},
	},
	models.EventSubscriptionUpdated: {
		Lookup: LookupSubscription,
		Decide: func(oldTier, newTier string) Decision {
			switch oldRank, newRank := models.TierRank(oldTier), models.TierRank(newTier); {
			case newRank > oldRank:
				return Decision{History: models.HistoryTierUpgraded, Email: EmailUpgrade}
			case newRank < oldRank:
				return Decision{History: models.HistoryTierDowngraded, Email: EmailDowngrade}
			default:
				return Decision{History: models.HistorySubscriptionUpdated}
			}
		},
	},
	models.EventSubscriptionDeleted: {
		Lookup: LookupSubscription,
		Decide: func(_, _ string) Decision {
			return Decision{History: models.HistorySubscriptionCancelled, Email: EmailCancelled}
		},
	},
	models.EventInvoicePaymentSucceeded: {
		Lookup: LookupCustomer,
		Decide: func(_, _ string) Decision { return Decision{History: models.HistoryPaymentSucceeded} },
	},
	models.EventInvoicePaymentFailed: {
		Lookup: LookupCustomer,
		Decide: func(_, _ string) Decision { return Decision{History: models.HistoryPaymentFailed} },
	},
}

// Decide возвращает решение для события. ok=false, если тип события не обрабатывается.
func Decide(eventType, oldTier, newTier string) (Decision, bool) {
	t, ok := Transitions[eventType]
	if !ok {
		return Decision{}, false
	}
	return t.Decide(oldTier, newTier), true
}
