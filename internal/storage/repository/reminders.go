package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/menoease/internal/models"
)

// ListActiveReminders возвращает все включенные напоминания.
func (s *Storage) ListActiveReminders(ctx context.Context) ([]models.Reminder, error) {
	const op = "storage.ListActiveReminders"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, is_active, COALESCE(time, ''),
			  COALESCE(array_to_json(days_of_week)::text, '[]'),
			  COALESCE(frequency, ''), COALESCE(message, ''), COALESCE(reminder_type, ''), channel
			  FROM reminders
			  WHERE is_active = TRUE
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Reminder
	for rows.Next() {
		var (
			r       models.Reminder
			days    string
			channel sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Time, &days,
			&r.Frequency, &r.Message, &r.ReminderType, &channel); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := json.Unmarshal([]byte(days), &r.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("%s: days_of_week of %s: %w", op, r.ID, err)
		}
		if channel.Valid {
			r.ChannelOverride = &channel.String
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// HasSentReminder проверяет, есть ли уже отметка об отправке за локальную дату.
func (s *Storage) HasSentReminder(ctx context.Context, reminderID, localDate string) (bool, error) {
	const op = "storage.HasSentReminder"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM reminder_logs
			WHERE reminder_id = $1 AND date = $2 AND status = $3
		)`, reminderID, localDate, models.ReminderStatusSent).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// LogReminderSent записывает отметку об отправке.
// Возвращает false, если отметка за эту дату уже есть.
func (s *Storage) LogReminderSent(ctx context.Context, entry models.ReminderLog) (bool, error) {
	const op = "storage.LogReminderSent"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.ReminderStatusSent
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO reminder_logs
			(id, reminder_id, user_id, date, time, status, method)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (reminder_id, date) WHERE status = 'sent' DO NOTHING`,
		entry.ID, entry.ReminderID, entry.UserID, entry.LocalDate, entry.LocalTime, entry.Status, entry.Method)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
