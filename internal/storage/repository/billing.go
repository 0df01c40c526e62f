package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/menoease/internal/models"
)

// ListTiers возвращает каталог тарифов в порядке ранга.
func (s *Storage) ListTiers(ctx context.Context) ([]models.Tier, error) {
	const op = "storage.ListTiers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT tier_code, name, stripe_price_id_monthly, stripe_price_id_yearly
			  FROM subscription_tiers
			  ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Tier
	for rows.Next() {
		var (
			t       models.Tier
			monthly sql.NullString
			yearly  sql.NullString
		)
		if err := rows.Scan(&t.Code, &t.Name, &monthly, &yearly); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if monthly.Valid {
			t.MonthlyPriceID = &monthly.String
		}
		if yearly.Valid {
			t.YearlyPriceID = &yearly.String
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AppendHistory добавляет запись в историю подписки.
func (s *Storage) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	const op = "storage.AppendHistory"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.DB.ExecContext(ctx, `INSERT INTO subscription_history
			(id, user_id, event_type, from_tier, to_tier, amount, period, stripe_event_id, stripe_invoice_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.EventType, entry.FromTier, entry.ToTier,
		entry.Amount, entry.Period, entry.ProviderEventID, entry.ProviderInvoiceID, string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListHistory возвращает историю подписки пользователя, старые записи первыми.
func (s *Storage) ListHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	const op = "storage.ListHistory"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, event_type, COALESCE(from_tier, ''), COALESCE(to_tier, ''),
			  amount, period, COALESCE(stripe_event_id, ''), stripe_invoice_id, metadata, created_at
			  FROM subscription_history
			  WHERE user_id = $1
			  ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.HistoryEntry
	for rows.Next() {
		var (
			h       models.HistoryEntry
			amount  sql.NullFloat64
			period  sql.NullString
			invoice sql.NullString
			meta    []byte
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.EventType, &h.FromTier, &h.ToTier,
			&amount, &period, &h.ProviderEventID, &invoice, &meta, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if amount.Valid {
			h.Amount = &amount.Float64
		}
		if period.Valid {
			h.Period = &period.String
		}
		if invoice.Valid {
			h.ProviderInvoiceID = &invoice.String
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ClaimWebhookEvent отмечает событие как принятое в обработку.
// false означает, что событие уже обрабатывалось.
func (s *Storage) ClaimWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.ClaimWebhookEvent"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO processed_webhook_events (event_id, event_type)
			VALUES ($1, $2)
			ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ReleaseWebhookEvent снимает отметку, чтобы повтор от провайдера был обработан.
func (s *Storage) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	const op = "storage.ReleaseWebhookEvent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM processed_webhook_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
