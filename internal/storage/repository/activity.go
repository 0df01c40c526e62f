package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// SummarizeActivity считает агрегаты журналов пользователя за даты [from, to] включительно.
// Отсутствующий уровень энергии считается нулем.
func (s *Storage) SummarizeActivity(ctx context.Context, userID string, from, to time.Time) (models.ActivitySummary, error) {
	const op = "storage.SummarizeActivity"
	summary := models.ActivitySummary{WindowStart: from, WindowEnd: to}
	if err := checkCtx(ctx, op); err != nil {
		return summary, err
	}

	fromDate := from.Format(clock.DateLayout)
	toDate := to.Format(clock.DateLayout)

	query := `SELECT
		(SELECT COUNT(*) FROM mood_logs WHERE user_id = $1 AND date BETWEEN $2 AND $3),
		(SELECT COALESCE(SUM(COALESCE(energy_level, 0)), 0) FROM mood_logs WHERE user_id = $1 AND date BETWEEN $2 AND $3),
		(SELECT COUNT(DISTINCT date) FROM symptoms WHERE user_id = $1 AND date BETWEEN $2 AND $3),
		(SELECT COUNT(*) FROM food_logs WHERE user_id = $1 AND date BETWEEN $2 AND $3),
		(SELECT COUNT(*) FROM sleep_logs WHERE user_id = $1 AND date BETWEEN $2 AND $3)`

	var energySum int64
	err := s.DB.QueryRowContext(ctx, query, userID, fromDate, toDate).Scan(
		&summary.MoodEntries, &energySum, &summary.SymptomDays, &summary.FoodEntries, &summary.SleepEntries)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	summary.EnergySum = float64(energySum)
	return summary, nil
}
