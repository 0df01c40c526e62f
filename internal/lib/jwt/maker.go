// Package jwt выпускает и проверяет токены, которыми внешний планировщик
// авторизуется на ручках запуска задач.
package jwt

import (
	"time"
)

// ScopeRunJobs право запускать задачи напоминаний и отчетов.
const ScopeRunJobs = "jobs:run"

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	GenerateToken(subject string, scopes ...string) (string, error)
	ParseToken(tokenStr string) (*JobClaims, error)
}

// MakerImpl реализует Maker на HS256 с секретным ключом и временем жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
