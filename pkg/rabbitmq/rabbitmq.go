package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

func Connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening connection to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening channel: %w", err)
	}

	return conn, ch, nil
}

func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("error declaring queue %s: %w", name, err)
	}
	return q, nil
}

func Publish(ch *amqp.Channel, queue string, body []byte) error {
	err := ch.Publish(
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("error publishing message to %s: %w", queue, err)
	}
	return nil
}

// Consume подписывается на очередь без автоподтверждения: потребитель
// сам подтверждает доставку после успешной обработки.
func Consume(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("error consuming queue %s: %w", queue, err)
	}
	return msgs, nil
}
