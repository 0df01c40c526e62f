package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/menoease/internal/models"
)

const profileColumns = `user_id, email, COALESCE(first_name, ''), COALESCE(phone, ''), COALESCE(timezone, ''),
	communication_preferences, stripe_customer_id, stripe_subscription_id, stripe_price_id,
	subscription_tier, subscription_status, subscription_period,
	subscription_start_date, subscription_end_date, cancel_at_period_end`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p     models.Profile
		prefs []byte
		start sql.NullTime
		end   sql.NullTime
		cust  sql.NullString
		sub   sql.NullString
		price sql.NullString
	)
	err := row.Scan(&p.UserID, &p.Email, &p.FirstName, &p.Phone, &p.Timezone,
		&prefs, &cust, &sub, &price,
		&p.SubscriptionTier, &p.SubscriptionStatus, &p.SubscriptionPeriod,
		&start, &end, &p.CancelAtPeriodEnd)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		var cp models.CommunicationPreferences
		if err := json.Unmarshal(prefs, &cp); err != nil {
			p.PreferencesErr = fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
		} else {
			p.Preferences = &cp
		}
	}
	if cust.Valid {
		p.StripeCustomerID = &cust.String
	}
	if sub.Valid {
		p.StripeSubscriptionID = &sub.String
	}
	if price.Valid {
		p.StripePriceID = &price.String
	}
	if start.Valid {
		p.SubscriptionStartDate = &start.Time
	}
	if end.Valid {
		p.SubscriptionEndDate = &end.Time
	}
	return &p, nil
}

func (s *Storage) getProfileBy(ctx context.Context, op, column, value string) (*models.Profile, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE ` + column + ` = $1 LIMIT 1`
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetProfile возвращает профиль по идентификатору пользователя.
func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.getProfileBy(ctx, "storage.GetProfile", "user_id", userID)
}

// FindProfileByCustomerID ищет профиль по идентификатору клиента Stripe.
func (s *Storage) FindProfileByCustomerID(ctx context.Context, customerID string) (*models.Profile, error) {
	return s.getProfileBy(ctx, "storage.FindProfileByCustomerID", "stripe_customer_id", customerID)
}

// FindProfileBySubscriptionID ищет профиль по идентификатору подписки Stripe.
func (s *Storage) FindProfileBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Profile, error) {
	return s.getProfileBy(ctx, "storage.FindProfileBySubscriptionID", "stripe_subscription_id", subscriptionID)
}

// ListProfilesWithPreferences возвращает профили с сохраненными настройками уведомлений.
func (s *Storage) ListProfilesWithPreferences(ctx context.Context) ([]models.Profile, error) {
	const op = "storage.ListProfilesWithPreferences"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + profileColumns + ` FROM user_profiles
		WHERE communication_preferences IS NOT NULL
		ORDER BY user_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateSubscription применяет патч подписки к профилю.
// Если профиль не найден, возвращается ErrProfileNotFound.
func (s *Storage) UpdateSubscription(ctx context.Context, userID string, patch models.SubscriptionPatch) error {
	const op = "storage.UpdateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 10)
	args := make([]any, 0, 10)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.StripeCustomerID != nil {
		add("stripe_customer_id", *patch.StripeCustomerID)
	}
	if patch.StripeSubscriptionID != nil {
		add("stripe_subscription_id", *patch.StripeSubscriptionID)
	}
	if patch.StripePriceID != nil {
		add("stripe_price_id", *patch.StripePriceID)
	}
	if patch.Tier != nil {
		add("subscription_tier", *patch.Tier)
	}
	if patch.Status != nil {
		add("subscription_status", *patch.Status)
	}
	if patch.Period != nil {
		add("subscription_period", *patch.Period)
	}
	if patch.StartDate != nil {
		add("subscription_start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		add("subscription_end_date", *patch.EndDate)
	}
	if patch.CancelAtPeriodEnd != nil {
		add("cancel_at_period_end", *patch.CancelAtPeriodEnd)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE user_id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrProfileNotFound)
	}
	return nil
}
