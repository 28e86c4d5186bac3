package services

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"
)

// Контракты внешних шлюзов, вызываемых после коммита транзакции.
// Их сбои журналируются и повторяются диспетчером, но никогда не
// откатывают уже зафиксированную смену статуса.

// NotificationGateway доставляет уведомление получателям; fire-and-forget.
type NotificationGateway interface {
	Notify(ctx context.Context, eventType models.EventType, payload models.NotificationPayload) error
}

// EmailGateway отправляет письмо по шаблону; может работать пакетно.
type EmailGateway interface {
	Send(ctx context.Context, template string, payload models.NotificationPayload) error
}

// DocumentStore формирует брошюру закупки из материалов RFP.
type DocumentStore interface {
	Materialize(ctx context.Context, bid *models.Bid) (string, error)
}

// FanoutQueue ставит задание на массовую обработку во внешнюю очередь;
// вызов публикации никогда не блокируется на самой рассылке.
type FanoutQueue interface {
	Enqueue(ctx context.Context, queue string, body []byte) error
}
