package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/pkg/rabbitmq"
)

const emailQueue = "bid_emails"

// AmqpGateway публикует письма и задания на массовую рассылку в RabbitMQ.
type AmqpGateway struct {
	ch *amqp.Channel
}

// NewAmqpGateway объявляет очередь писем и возвращает шлюз поверх канала.
func NewAmqpGateway(ch *amqp.Channel) (*AmqpGateway, error) {
	if _, err := rabbitmq.DeclareQueue(ch, emailQueue); err != nil {
		return nil, err
	}
	return &AmqpGateway{ch: ch}, nil
}

type emailMessage struct {
	Template string                     `json:"template"`
	Payload  models.NotificationPayload `json:"payload"`
}

// Send ставит письмо в очередь доставки.
func (g *AmqpGateway) Send(ctx context.Context, template string, payload models.NotificationPayload) error {
	body, err := json.Marshal(emailMessage{Template: template, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal email message: %w", err)
	}
	return g.publish(ctx, emailQueue, body)
}

// Enqueue ставит задание на массовую обработку в указанную очередь.
func (g *AmqpGateway) Enqueue(ctx context.Context, queue string, body []byte) error {
	if _, err := rabbitmq.DeclareQueue(g.ch, queue); err != nil {
		return err
	}
	return g.publish(ctx, queue, body)
}

func (g *AmqpGateway) publish(ctx context.Context, queue string, body []byte) error {
	return g.ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
