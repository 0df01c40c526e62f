// Package clock содержит разбор времени суток "HH:MM" и границы отчетных периодов.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout формат локальной даты, в котором хранятся журналы.
const DateLayout = "2006-01-02"

// ErrInvalidTime возвращается для строки, не похожей на "HH:MM".
var ErrInvalidTime = errors.New("invalid time of day")

// ParseMinutes переводит "HH:MM" в минуты от полуночи.
func ParseMinutes(s string) (int, error) {
	const op = "clock.ParseMinutes"
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidTime)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidTime)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidTime)
	}
	return h*60 + m, nil
}

// MinutesOf возвращает минуты от полуночи для t в его собственной зоне.
func MinutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// HHMM форматирует t как "HH:MM".
func HHMM(t time.Time) string {
	return t.Format("15:04")
}

// StartOfDay полночь того же календарного дня в зоне t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek понедельник текущей недели.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// StartOfMonth первое число текущего месяца.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
