// Package queue ставит письма в очередь RabbitMQ вместо прямой отправки.
package queue

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/menoease/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// EmailPublisher публикует письма в обменник уведомлений.
type EmailPublisher struct {
	ch rabbitmq.Publisher
}

// NewEmailPublisher создает EmailPublisher поверх канала.
func NewEmailPublisher(ch rabbitmq.Publisher) *EmailPublisher {
	return &EmailPublisher{ch: ch}
}

// Send публикует письмо с шаблоном templateID.
func (p *EmailPublisher) Send(ctx context.Context, templateID string, params map[string]string) error {
	const op = "queue.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := models.EmailMessage{TemplateID: templateID, Params: params}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.NotificationsExchange, rabbitmq.EmailRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
