package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/menoease/internal/migrations"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateProfile создает профиль и возвращает его идентификатор
func (f *TestDataFactory) CreateProfile(t *testing.T, email, timezone string, prefs *string) string {
	userID := uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO user_profiles (user_id, email, first_name, phone, timezone, communication_preferences)
		VALUES ($1, $2, 'Jane', '+15550001111', $3, $4::jsonb)`,
		userID, email, timezone, prefs)
	require.NoError(t, err)
	return userID
}

// AttachStripe проставляет идентификаторы Stripe и тариф
func (f *TestDataFactory) AttachStripe(t *testing.T, userID, customerID, subscriptionID, tier string) {
	_, err := f.storage.DB.Exec(`UPDATE user_profiles
		SET stripe_customer_id = $2, stripe_subscription_id = $3, subscription_tier = $4
		WHERE user_id = $1`, userID, customerID, subscriptionID, tier)
	require.NoError(t, err)
}

// CreateReminder создает напоминание и возвращает его идентификатор
func (f *TestDataFactory) CreateReminder(t *testing.T, userID, at string, days []int, active bool, channel *string) string {
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO reminders (user_id, is_active, reminder_type, time, days_of_week, frequency, message, channel)
		VALUES ($1, $2, 'medication', $3, $4, 'one-off', 'Take vitamins', $5) RETURNING id`,
		userID, active, at, days, channel).Scan(&id)
	require.NoError(t, err)
	return id
}

// SetTierPrices задает price id тарифа
func (f *TestDataFactory) SetTierPrices(t *testing.T, tier, monthly, yearly string) {
	_, err := f.storage.DB.Exec(`UPDATE subscription_tiers
		SET stripe_price_id_monthly = $2, stripe_price_id_yearly = $3 WHERE tier_code = $1`, tier, monthly, yearly)
	require.NoError(t, err)
}

// AddMood добавляет запись настроения
func (f *TestDataFactory) AddMood(t *testing.T, userID, date string, energy *int) {
	_, err := f.storage.DB.Exec(`INSERT INTO mood_logs (user_id, date, energy_level) VALUES ($1, $2, $3)`, userID, date, energy)
	require.NoError(t, err)
}

// AddSymptom добавляет запись симптома
func (f *TestDataFactory) AddSymptom(t *testing.T, userID, date, name string) {
	_, err := f.storage.DB.Exec(`INSERT INTO symptoms (user_id, date, name) VALUES ($1, $2, $3)`, userID, date, name)
	require.NoError(t, err)
}

// AddFood добавляет запись о приеме пищи
func (f *TestDataFactory) AddFood(t *testing.T, userID, date string) {
	_, err := f.storage.DB.Exec(`INSERT INTO food_logs (user_id, date) VALUES ($1, $2)`, userID, date)
	require.NoError(t, err)
}

// AddSleep добавляет запись сна
func (f *TestDataFactory) AddSleep(t *testing.T, userID, date string) {
	_, err := f.storage.DB.Exec(`INSERT INTO sleep_logs (user_id, date, hours) VALUES ($1, $2, 7.5)`, userID, date)
	require.NoError(t, err)
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// CountReminderLogs возвращает количество отметок об отправке напоминания
func (v *TestVerification) CountReminderLogs(t *testing.T, reminderID string) int {
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM reminder_logs WHERE reminder_id = $1", reminderID).Scan(&count)
	require.NoError(t, err)
	return count
}

// VerifyTierAndStatus проверяет тариф и статус подписки
func (v *TestVerification) VerifyTierAndStatus(t *testing.T, userID, tier, status string) {
	var gotTier, gotStatus string
	err := v.storage.DB.QueryRow("SELECT subscription_tier, subscription_status FROM user_profiles WHERE user_id = $1", userID).
		Scan(&gotTier, &gotStatus)
	require.NoError(t, err)
	require.Equal(t, tier, gotTier)
	require.Equal(t, status, gotStatus)
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(ctx, connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		_ = pgContainer.Terminate(ctx)
	}

	return storage, cleanup
}
