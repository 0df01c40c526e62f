// Package middlewarectx содержит HTTP middleware: проверку токена на ручках запуска задач
// и ограничение частоты запросов.
//
// JobAuth проверяет токен в заголовке Authorization и право jobs:run.
// В случае успеха кладет subject токена в контекст запроса.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/menoease/internal/http/response"
	"github.com/magabrotheeeer/menoease/internal/lib/jwt"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Caller ключ subject токена в контексте.
const Caller Key = "caller"

// TokenParser разбирает и проверяет токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.JobClaims, error)
}

// JobAuth возвращает middleware, который пропускает только токены с правом jwt.ScopeRunJobs.
// Нет или невалидный токен дает 401, токен без права дает 403.
func JobAuth(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JobAuth"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Unauthorized", "missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Unauthorized", "invalid or expired token"))
				return
			}
			if !claims.HasScope(jwt.ScopeRunJobs) {
				log.Warn("token lacks job scope", slog.String("subject", claims.Subject))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("Forbidden", "token is not allowed to run jobs"))
				return
			}

			ctx := context.WithValue(r.Context(), Caller, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
