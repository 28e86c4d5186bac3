package models

import "time"

// ReviewRequestType - тип проверяемого администратором запроса.
type ReviewRequestType string

const (
	PublicationReview ReviewRequestType = "Publication"
)

// ReviewLogEntry - append-only запись аудита решений администратора.
type ReviewLogEntry struct {
	ID          string            `json:"id"`
	EntityID    string            `json:"entityId"`
	RequestType ReviewRequestType `json:"requestType"`
	Outcome     string            `json:"outcome"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
