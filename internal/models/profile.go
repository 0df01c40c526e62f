// Package models содержит доменные структуры: профиль пользователя, настройки уведомлений,
// напоминания, отчеты и записи биллинга.
package models

import "time"

// DefaultTimezone используется, если у профиля не задан часовой пояс.
const DefaultTimezone = "UTC"

// Profile профиль пользователя с полями, которые нужны планировщику и биллингу.
type Profile struct {
	UserID      string
	Email       string
	FirstName   string
	Phone       string
	Timezone    string                    // IANA имя, может быть пустым
	Preferences *CommunicationPreferences // nil, если пользователь ничего не сохранял
	// PreferencesErr ошибка разбора настроек уведомлений, относится только к этому профилю.
	PreferencesErr error

	StripeCustomerID      *string
	StripeSubscriptionID  *string
	StripePriceID         *string
	SubscriptionTier      string
	SubscriptionStatus    string
	SubscriptionPeriod    string
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	CancelAtPeriodEnd     bool
}

// DisplayName имя для обращения в письмах.
func (p Profile) DisplayName() string {
	if p.FirstName == "" {
		return "User"
	}
	return p.FirstName
}

// TimezoneOrDefault возвращает часовой пояс профиля или UTC.
func (p Profile) TimezoneOrDefault() string {
	if p.Timezone == "" {
		return DefaultTimezone
	}
	return p.Timezone
}

// ReminderPrefs возвращает настройки напоминаний с примененными значениями по умолчанию.
func (p Profile) ReminderPrefs() ReminderPrefs {
	if p.Preferences == nil || p.Preferences.Reminders == nil {
		return ReminderPrefs{}.WithDefaults()
	}
	return p.Preferences.Reminders.WithDefaults()
}

// ReportSpec возвращает настройки отчетов или nil, если отчеты не настроены.
func (p Profile) ReportSpec() *ReportSpec {
	if p.Preferences == nil || p.Preferences.Reports == nil {
		return nil
	}
	spec := p.Preferences.Reports.WithDefaults()
	return &spec
}
