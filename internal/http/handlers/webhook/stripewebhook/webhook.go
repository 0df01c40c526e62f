// Package stripewebhook принимает вебхуки Stripe: проверяет подпись, разбирает событие
// и передает его сверке подписок.
package stripewebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/menoease/internal/billing"
	"github.com/magabrotheeeer/menoease/internal/http/response"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
	"github.com/magabrotheeeer/menoease/internal/services/reconciler"
)

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// maxBodyBytes предел размера тела вебхука.
const maxBodyBytes = 64 << 10

// Verifier проверяет подпись и разбирает событие.
type Verifier interface {
	VerifyEvent(payload []byte, signature string) (models.BillingEvent, error)
}

// Service применяет событие к профилю.
type Service interface {
	Apply(ctx context.Context, event models.BillingEvent) (reconciler.Result, error)
}

// Handler обработчик вебхука.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	service  Service
}

// New создает обработчик. nil verifier означает, что ключи Stripe не настроены.
func New(log *slog.Logger, verifier Verifier, service Service) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Stripe
// @Description Проверяет подпись Stripe-Signature и применяет событие подписки к профилю пользователя.
// @Description Неизвестные и повторные события подтверждаются без изменений.
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} response.WebhookReceived "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Нет подписи или подпись неверна"
// @Failure 405 {object} response.ErrorResponse "Метод не поддерживается"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /api/v1/webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.stripe"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed", ""))
		return
	}

	if h.verifier == nil || h.service == nil {
		log.Error("stripe webhook is not configured")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Webhook processing failed", "missing stripe configuration"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("Webhook Error", "failed to read request body"))
		return
	}
	defer r.Body.Close()

	event, err := h.verifier.VerifyEvent(body, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUnknownEvent):
		log.Info("ignored webhook event", slog.String("event_id", event.ID), slog.String("event_type", event.Type))
		render.JSON(w, r, response.Received())
		return
	case errors.Is(err, billing.ErrMissingSignature), errors.Is(err, billing.ErrInvalidSignature):
		log.Warn("webhook signature verification failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("Webhook Error", err.Error()))
		return
	default:
		log.Error("malformed webhook event", sl.Err(err))
		var validateErr validator.ValidationErrors
		render.Status(r, http.StatusBadRequest)
		if errors.As(err, &validateErr) {
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}
		render.JSON(w, r, response.Error("Webhook Error", err.Error()))
		return
	}

	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	result, err := h.service.Apply(r.Context(), event)
	if err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Webhook processing failed", err.Error()))
		return
	}

	log.Info("webhook processed successfully", slog.String("result", string(result)))
	render.JSON(w, r, response.Received())
}
