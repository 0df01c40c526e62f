// Package services содержит воркер, который отправляет письма из очереди уведомлений.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/menoease/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/metrics"
	"github.com/magabrotheeeer/menoease/internal/models"
	"github.com/magabrotheeeer/menoease/internal/notify/emailjs"
)

// sendTimeout ограничивает одну отправку письма.
const sendTimeout = 15 * time.Second

// Transport отправляет письмо по шаблону.
type Transport interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// SenderService разбирает сообщения очереди и отправляет письма.
type SenderService struct {
	transport Transport
	validate  *validator.Validate
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport Transport) *SenderService {
	return &SenderService{
		transport: transport,
		validate:  validator.New(),
		log:       log,
	}
}

// Handler возвращает обработчик сообщений очереди, привязанный к ctx.
func (s *SenderService) Handler(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		return s.SendEmail(ctx, body)
	}
}

// SendEmail отправляет одно письмо из очереди. Битое сообщение и письмо, отклоненное
// провайдером, возвращаются с rabbitmq.ErrPermanent и уходят в очередь недоставленных.
// Прочие ошибки транспорта возвращают сообщение в очередь.
func (s *SenderService) SendEmail(ctx context.Context, body []byte) error {
	const op = "services.sender.SendEmail"
	var message models.EmailMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if err := s.validate.Struct(message); err != nil {
		s.log.Error("invalid email message", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	log := s.log.With(slog.String("template_id", message.TemplateID), slog.String("to", message.Params["to_email"]))
	if err := s.transport.Send(ctx, message.TemplateID, message.Params); err != nil {
		metrics.NotificationsTotal.WithLabelValues("queued", models.ChannelEmail, metrics.ResultFailed).Inc()
		log.Error("failed to send queued email", sl.Err(err))
		if errors.Is(err, emailjs.ErrRejected) {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.NotificationsTotal.WithLabelValues("queued", models.ChannelEmail, metrics.ResultSent).Inc()
	log.Info("email sent successfully")
	return nil
}
