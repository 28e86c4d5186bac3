package outbox

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"
	"github.com/senyabanana/procurement-core/internal/services"
)

const (
	FanoutQueueName      = "bid_fanout"
	InvitationsQueueName = "bid_invitations"

	pollBatchSize = 50
)

// Dispatcher периодически забирает накопленные события и доставляет их
// во внешние шлюзы. Доставка идемпотентна на стороне получателей;
// неудачные события повторяются до maxAttempts, затем помечаются failed.
type Dispatcher struct {
	Events        repository.OutboxRepository
	Bids          repository.BidRepository
	Notifications services.NotificationGateway
	Emails        services.EmailGateway
	Documents     services.DocumentStore
	Fanout        services.FanoutQueue
	Logger        *log.Logger
	PollInterval  time.Duration
	MaxAttempts   int
}

// Run запускает цикл доставки до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.Logger.Printf("outbox dispatch cycle failed: %v", err)
			}
		}
	}
}

// DispatchPending доставляет одну партию накопленных событий.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	events, err := d.Events.PendingEvents(ctx, pollBatchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			d.Logger.Printf("failed to deliver event %s (%s): %v", event.ID, event.EventType, err)
			if err := d.Events.MarkFailed(ctx, event.ID, d.MaxAttempts); err != nil {
				return err
			}
			continue
		}
		if err := d.Events.MarkDispatched(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) error {
	switch event.EventType {
	case models.EventProviderFanout:
		return d.Fanout.Enqueue(ctx, FanoutQueueName, event.Payload)

	case models.EventPrivateInvitations:
		return d.Fanout.Enqueue(ctx, InvitationsQueueName, event.Payload)

	case models.EventBrochureMaterialize:
		return d.materializeBrochure(ctx, event)

	case models.EventDonorRejected, models.EventBidRejected:
		// Отказ доставляется и уведомлением, и письмом с дословной причиной.
		var payload models.NotificationPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		if err := d.Emails.Send(ctx, string(event.EventType), payload); err != nil {
			return err
		}
		return d.Notifications.Notify(ctx, event.EventType, payload)

	default:
		var payload models.NotificationPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return d.Notifications.Notify(ctx, event.EventType, payload)
	}
}

func (d *Dispatcher) materializeBrochure(ctx context.Context, event models.OutboxEvent) error {
	var payload models.NotificationPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	bid, err := d.Bids.GetBid(ctx, payload.BidID)
	if err != nil {
		return err
	}

	path, err := d.Documents.Materialize(ctx, bid)
	if err != nil {
		return err
	}
	return d.Bids.SetBrochure(ctx, bid.ID, path)
}
