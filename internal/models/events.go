package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	OutboxStatus string // Статус события в outbox
	EventType    string // Тип доменного события
)

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxDispatched OutboxStatus = "dispatched"
	OutboxFailed     OutboxStatus = "failed"

	EventBidSubmitted         EventType = "bid.submitted"
	EventBidOpened            EventType = "bid.opened"
	EventBidRejected          EventType = "bid.rejected"
	EventBidCancelled         EventType = "bid.cancelled"
	EventSupervisionRequested EventType = "bid.supervision_requested"
	EventDonorRejected        EventType = "bid.donor_rejected"
	EventDeadlineLapsed       EventType = "bid.deadline_lapsed"
	EventPrivateInvitations   EventType = "bid.private_invitations"
	EventProviderFanout       EventType = "bid.provider_fanout"
	EventFanoutCompleted      EventType = "bid.fanout_completed"
	EventPointAward           EventType = "points.award"
	EventBrochureMaterialize  EventType = "bid.brochure_materialize"
)

// OutboxEvent - доменное событие, записанное в одной транзакции со сменой
// статуса закупки. Отдельный диспетчер доставляет события после коммита
// и повторяет доставку независимо от основной операции.
type OutboxEvent struct {
	ID           string          `json:"id"`
	EventType    EventType       `json:"eventType"`
	Payload      json.RawMessage `json:"payload"`
	Status       OutboxStatus    `json:"status"`
	Attempts     int             `json:"attempts"`
	CreatedAt    time.Time       `json:"createdAt"`
	DispatchedAt time.Time       `json:"dispatchedAt,omitempty"`
}

// NewOutboxEvent создает событие со свернутым в JSON полезным грузом.
// Ошибка маршалинга здесь невозможна для наших типов, поэтому груз
// при сбое остается пустым объектом.
func NewOutboxEvent(eventType EventType, payload interface{}) OutboxEvent {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{}`)
	}
	return OutboxEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Payload:   body,
		Status:    OutboxPending,
		CreatedAt: time.Now().UTC(),
	}
}

// NotificationPayload - полезный груз событий уведомлений.
type NotificationPayload struct {
	BidID          string   `json:"bidId"`
	BidName        string   `json:"bidName,omitempty"`
	RecipientKind  string   `json:"recipientKind,omitempty"`
	RecipientID    string   `json:"recipientId,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	CorrelationRef string   `json:"correlationRef,omitempty"`
	Extra          []string `json:"extra,omitempty"`
}

// FanoutPayload - полезный груз задания на массовое приглашение поставщиков.
type FanoutPayload struct {
	BidID   string   `json:"bidId"`
	BidType BidType  `json:"bidType"`
	Regions []string `json:"regions"`
}

// PointAwardPayload - полезный груз события начисления баллов.
type PointAwardPayload struct {
	BidID     string `json:"bidId"`
	OwnerKind string `json:"ownerKind"`
	OwnerID   string `json:"ownerId"`
	Points    int    `json:"points"`
}
