// Package schedule решает, наступило ли время напоминания или отчета в текущий тик.
//
// Все проверки работают с настенными часами пользователя: момент now переводится
// в его часовой пояс, после чего сравниваются день недели, день месяца и минуты от полуночи.
package schedule

import (
	"log/slog"
	"slices"
	"time"

	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// Tolerance допуск в минутах в обе стороны от запланированного времени.
const Tolerance = 5

// Evaluator проверяет расписания. Ошибки в данных только логируются.
type Evaluator struct {
	log *slog.Logger
}

// New создает Evaluator.
func New(log *slog.Logger) *Evaluator {
	return &Evaluator{log: log}
}

// Location возвращает часовой пояс по IANA имени.
// Пустое или неизвестное имя дает UTC, ошибка пишется в лог.
func (e *Evaluator) Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		e.log.Warn("invalid timezone, falling back to UTC", slog.String("timezone", name), sl.Err(err))
		return time.UTC
	}
	return loc
}

// LocalTime переводит now в часовой пояс пользователя.
func (e *Evaluator) LocalTime(now time.Time, tz string) time.Time {
	return now.In(e.Location(tz))
}

// IsReminderDue сообщает, нужно ли отправить напоминание в тик now.
func (e *Evaluator) IsReminderDue(r models.Reminder, now time.Time, tz string, prefs models.ReminderPrefs) bool {
	local := e.LocalTime(now, tz)

	if len(r.DaysOfWeek) > 0 && !slices.Contains(r.DaysOfWeek, int(local.Weekday())) {
		return false
	}

	cur := clock.MinutesOf(local)

	if r.FrequencyOrDefault() == models.FrequencyHourly {
		prefs = prefs.WithDefaults()
		start := e.minutesOr(prefs.StartTime, models.DefaultReminderStart)
		end := e.minutesOr(prefs.EndTime, models.DefaultReminderEnd)
		if cur < start || cur > end {
			return false
		}
		return local.Minute() <= Tolerance
	}

	target, err := clock.ParseMinutes(r.TimeOrDefault())
	if err != nil {
		e.log.Warn("reminder has invalid time", slog.String("reminder_id", r.ID), sl.Err(err))
		return false
	}
	return withinTolerance(cur, target)
}

// IsReportDue сообщает, нужно ли отправить отчет. Часовой пояс loc выбирает вызывающий.
func (e *Evaluator) IsReportDue(spec models.ReportSpec, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	spec = spec.WithDefaults()
	local := now.In(loc)

	target, err := clock.ParseMinutes(spec.Time)
	if err != nil {
		e.log.Warn("report has invalid time", slog.String("time", spec.Time), sl.Err(err))
		return false
	}
	if !withinTolerance(clock.MinutesOf(local), target) {
		return false
	}

	switch spec.Frequency {
	case models.ReportDaily:
		return true
	case models.ReportWeekly:
		return int(local.Weekday()) == *spec.DayOfWeek
	case models.ReportMonthly:
		return local.Day() == *spec.DayOfMonth
	default:
		return false
	}
}

func (e *Evaluator) minutesOr(value, fallback string) int {
	m, err := clock.ParseMinutes(value)
	if err == nil {
		return m
	}
	e.log.Warn("invalid active window bound, using default", slog.String("value", value), sl.Err(err))
	m, _ = clock.ParseMinutes(fallback)
	return m
}

// Без перехода через полночь: 23:58 и 00:02 не считаются близкими.
func withinTolerance(cur, target int) bool {
	diff := cur - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= Tolerance
}
