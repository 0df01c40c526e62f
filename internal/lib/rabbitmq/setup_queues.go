package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// NotificationsExchange direct обменник для всех уведомлений.
const NotificationsExchange = "notifications"

// DeadLetterExchange принимает сообщения, отклоненные без возврата в очередь.
const DeadLetterExchange = "notifications.dead"

// Очередь писем, которые отправляет воркер sender.
const (
	EmailQueue      = "notification.email"
	EmailRoutingKey = "email"
)

// QueueConfig очередь и ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// DeadQueueName имя очереди недоставленных для очереди queue.
func DeadQueueName(queue string) string {
	return queue + ".dead"
}

// GetNotificationQueues очереди, которые объявляют и издатель, и потребитель.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EmailQueue, RoutingKey: EmailRoutingKey},
	}
}

// SetupChannel открывает канал, объявляет обменники и очереди недоставленных, привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	for _, exchange := range []string{NotificationsExchange, DeadLetterExchange} {
		err = ch.ExchangeDeclare(
			exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, q := range queues {
		dead := DeadQueueName(q.QueueName)
		if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, dead, err)
		}
		if err := ch.QueueBind(dead, q.RoutingKey, DeadLetterExchange, false, nil); err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s: %w", op, dead, err)
		}

		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			amqp.Table{"x-dead-letter-exchange": DeadLetterExchange},
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			NotificationsExchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
