package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/outbox"
	"github.com/senyabanana/procurement-core/internal/repository"
	"github.com/senyabanana/procurement-core/pkg/rabbitmq"
)

// FanoutWorker потребляет задания на приглашение поставщиков и превращает
// их в записи приглашений. Повторная доставка задания безопасна:
// вставка приглашений идемпотентна.
type FanoutWorker struct {
	ch     *amqp.Channel
	access repository.AccessRepository
	events repository.OutboxRepository
	logger *log.Logger
}

// NewFanoutWorker создает новый экземпляр FanoutWorker.
func NewFanoutWorker(ch *amqp.Channel, access repository.AccessRepository, events repository.OutboxRepository, logger *log.Logger) *FanoutWorker {
	return &FanoutWorker{
		ch:     ch,
		access: access,
		events: events,
		logger: logger,
	}
}

// Listen объявляет очереди заданий и запускает их потребление.
func (w *FanoutWorker) Listen(ctx context.Context) error {
	for _, queue := range []string{outbox.FanoutQueueName, outbox.InvitationsQueueName} {
		if _, err := rabbitmq.DeclareQueue(w.ch, queue); err != nil {
			return err
		}
		msgs, err := rabbitmq.Consume(w.ch, queue)
		if err != nil {
			return err
		}
		go w.consume(ctx, queue, msgs)
	}
	return nil
}

func (w *FanoutWorker) consume(ctx context.Context, queue string, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			if err := w.handle(ctx, d.Body); err != nil {
				w.logger.Printf("failed to process %s job: %v", queue, err)
				// Нечитаемое задание возвращать в очередь бессмысленно,
				// остальные сбои считаются временными.
				if nackErr := d.Nack(false, !errors.Is(err, errBadPayload)); nackErr != nil {
					w.logger.Printf("failed to nack %s job: %v", queue, nackErr)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				w.logger.Printf("failed to ack %s job: %v", queue, err)
			}
		}
	}
}

// errBadPayload помечает задание, которое не станет обрабатываемым
// при повторной доставке.
var errBadPayload = errors.New("malformed fanout payload")

func (w *FanoutWorker) handle(ctx context.Context, body []byte) error {
	var payload models.FanoutPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}

	providers, err := w.access.MatchingProviders(ctx, payload.Regions)
	if err != nil {
		return err
	}

	invited, err := w.access.InviteProviders(ctx, payload.BidID, providers)
	if err != nil {
		return err
	}

	w.logger.Printf("invited %d providers to bid %s", invited, payload.BidID)
	return w.events.Append(ctx, []models.OutboxEvent{
		models.NewOutboxEvent(models.EventFanoutCompleted, models.NotificationPayload{
			BidID: payload.BidID,
			Extra: []string{string(payload.BidType)},
		}),
	})
}
