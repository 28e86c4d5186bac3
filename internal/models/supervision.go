package models

import "time"

type (
	SupervisionStatus string // Статус решения донора
	DonorResponse     string // Ответ донора по связке с закупкой
)

const (
	PendingSupervision  SupervisionStatus = "Pending"
	ApprovedSupervision SupervisionStatus = "Approved"
	RejectedSupervision SupervisionStatus = "Rejected"

	NotReviewedResponse DonorResponse = "NotReviewed"
	AcceptResponse      DonorResponse = "Accept"
	RejectResponse      DonorResponse = "Reject"
)

// DonorSupervisionRecord - запись решения донора по публикации закупки.
// Таблица append-only: решающим является только самая свежая запись
// на пару (bidId, claimCode), вытесненные записи хранятся для аудита.
type DonorSupervisionRecord struct {
	ID              string            `json:"id"`
	BidID           string            `json:"bidId"`
	DonorID         string            `json:"donorId"`
	ClaimCode       string            `json:"claimCode"`
	Status          SupervisionStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// BidDonorLink - связка закупки с финансирующим донором. Донор может быть
// еще не зарегистрирован, тогда заполняются только контактные поля.
type BidDonorLink struct {
	BidID        string        `json:"bidId"`
	DonorID      string        `json:"donorId,omitempty"`
	Response     DonorResponse `json:"response"`
	ContactName  string        `json:"contactName,omitempty"`
	ContactEmail string        `json:"contactEmail,omitempty"`
	ContactPhone string        `json:"contactPhone,omitempty"`
}
