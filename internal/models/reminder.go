package models

import "time"

// Виды повторения напоминаний.
const (
	FrequencyOneOff = "one-off"
	FrequencyHourly = "hourly"
)

// ReminderStatusSent единственный статус, который пишет планировщик.
const ReminderStatusSent = "sent"

// Reminder пользовательское напоминание.
type Reminder struct {
	ID              string
	UserID          string
	IsActive        bool
	Time            string // HH:MM в локальном времени пользователя
	DaysOfWeek      []int  // 0 = воскресенье, пусто = каждый день
	Frequency       string
	Message         string
	ReminderType    string
	ChannelOverride *string
}

// FrequencyOrDefault возвращает вид повторения, по умолчанию one-off.
func (r Reminder) FrequencyOrDefault() string {
	if r.Frequency == "" {
		return FrequencyOneOff
	}
	return r.Frequency
}

// TimeOrDefault возвращает время срабатывания, по умолчанию 08:00.
func (r Reminder) TimeOrDefault() string {
	if r.Time == "" {
		return DefaultReminderTime
	}
	return r.Time
}

// TypeOrDefault возвращает тип напоминания для текста письма.
func (r Reminder) TypeOrDefault() string {
	if r.ReminderType == "" {
		return "Reminder"
	}
	return r.ReminderType
}

// Text текст напоминания, по умолчанию "Reminder: <тип>".
func (r Reminder) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return "Reminder: " + r.TypeOrDefault()
}

// ReminderLog запись об успешной отправке напоминания.
type ReminderLog struct {
	ID         string
	ReminderID string
	UserID     string
	LocalDate  string // YYYY-MM-DD в зоне пользователя
	LocalTime  string // HH:MM в зоне пользователя
	Status     string
	Method     string
	CreatedAt  time.Time
}
