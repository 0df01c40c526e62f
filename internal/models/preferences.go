package models

// Каналы доставки.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelBoth  = "both"
)

// Частоты отчетов.
const (
	ReportDaily   = "daily"
	ReportWeekly  = "weekly"
	ReportMonthly = "monthly"
)

// Значения по умолчанию для настроек.
const (
	DefaultReminderStart = "08:00"
	DefaultReminderEnd   = "22:00"
	DefaultReminderTime  = "08:00"
	DefaultReportTime    = "17:00"
	DefaultReportWeekday = 1
	DefaultReportMonthly = 1
)

// CommunicationPreferences JSON документ настроек уведомлений из профиля.
type CommunicationPreferences struct {
	Reminders *ReminderPrefs `json:"reminders,omitempty" validate:"omitempty"`
	Reports   *ReportSpec    `json:"reports,omitempty" validate:"omitempty"`
}

// ReminderPrefs общие настройки напоминаний пользователя.
type ReminderPrefs struct {
	Enabled   bool   `json:"enabled"`
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=email sms both"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// WithDefaults заполняет пустые поля значениями по умолчанию.
func (p ReminderPrefs) WithDefaults() ReminderPrefs {
	if p.Method == "" {
		p.Method = ChannelEmail
	}
	if p.StartTime == "" {
		p.StartTime = DefaultReminderStart
	}
	if p.EndTime == "" {
		p.EndTime = DefaultReminderEnd
	}
	return p
}

// ReportSpec расписание периодического отчета.
type ReportSpec struct {
	Enabled    bool   `json:"enabled"`
	Frequency  string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	Time       string `json:"time,omitempty"`
	DayOfWeek  *int   `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	DayOfMonth *int   `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=31"`
	Method     string `json:"method,omitempty" validate:"omitempty,oneof=email sms both"`
}

// WithDefaults заполняет пустые поля значениями по умолчанию.
// День недели 0 означает воскресенье, отсутствие поля означает понедельник.
func (s ReportSpec) WithDefaults() ReportSpec {
	if s.Time == "" {
		s.Time = DefaultReportTime
	}
	if s.DayOfWeek == nil {
		d := DefaultReportWeekday
		s.DayOfWeek = &d
	}
	if s.DayOfMonth == nil {
		d := DefaultReportMonthly
		s.DayOfMonth = &d
	}
	if s.Method == "" {
		s.Method = ChannelEmail
	}
	return s
}

// ChannelsFor раскладывает метод доставки на отдельные каналы.
// Неизвестное значение трактуется как email.
func ChannelsFor(method string) []string {
	switch method {
	case ChannelSMS:
		return []string{ChannelSMS}
	case ChannelBoth:
		return []string{ChannelEmail, ChannelSMS}
	default:
		return []string{ChannelEmail}
	}
}
