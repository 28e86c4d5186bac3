package models

import (
	"net/http"
	"time"
)

type (
	BidStatus string // Статус закупки
	BidType   string // Тип закупки
	OwnerKind string // Вид владельца закупки
)

const (
	DraftBid      BidStatus = "Draft"      // Черновик
	ReviewingBid  BidStatus = "Reviewing"  // На проверке у администратора
	PendingBid    BidStatus = "Pending"    // Ожидает решения донора
	OpenBid       BidStatus = "Open"       // Опубликована, идет прием предложений
	EvaluationBid BidStatus = "Evaluation" // Оценка предложений
	StoppingBid   BidStatus = "Stopping"   // Период приостановки
	AwardingBid   BidStatus = "Awarding"   // Присуждение
	ClosedBid     BidStatus = "Closed"     // Закрыта
	CancelledBid  BidStatus = "Cancelled"  // Отменена
	RejectedBid   BidStatus = "Rejected"   // Отклонена

	PublicBid       BidType = "Public"
	PrivateBid      BidType = "Private"
	InstantBid      BidType = "Instant"
	FreelancingBid  BidType = "Freelancing"
	HabilitationBid BidType = "Habilitation"

	AssociationOwner OwnerKind = "Association"
	DonorOwner       OwnerKind = "Donor"
)

// ValidBidType проверяет, что тип закупки допустим.
func ValidBidType(t BidType) bool {
	switch t {
	case PublicBid, PrivateBid, InstantBid, FreelancingBid, HabilitationBid:
		return true
	default:
		return false
	}
}

// Owner - владелец закупки: ровно одна сущность, ассоциация или донор.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// NewOwner создает владельца закупки и проверяет инвариант единственной сущности.
func NewOwner(kind OwnerKind, id string) (Owner, error) {
	if kind != AssociationOwner && kind != DonorOwner {
		return Owner{}, NewInvalidInput("BID_OWNER_KIND_INVALID", "bid owner must be an association or a donor")
	}
	if id == "" {
		return Owner{}, NewInvalidInput("BID_OWNER_ID_EMPTY", "bid owner id is required")
	}
	return Owner{Kind: kind, ID: id}, nil
}

// Bid представляет модель закупки.
type Bid struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	Objective                string    `json:"objective"`
	Status                   BidStatus `json:"status"`
	Type                     BidType   `json:"type"`
	Owner                    Owner     `json:"owner"`
	Funded                   bool      `json:"funded"`
	FundingDonorID           string    `json:"fundingDonorId,omitempty"`
	SupervisingAssociationID string    `json:"supervisingAssociationId,omitempty"`
	DocumentPrice            float64   `json:"documentPrice"`
	PlatformFee              float64   `json:"platformFee"`
	Tax                      float64   `json:"tax"`
	TotalPrice               float64   `json:"totalPrice"`
	EnquiryDeadline          time.Time `json:"enquiryDeadline"`
	OfferDeadline            time.Time `json:"offerDeadline"`
	OpeningDate              time.Time `json:"openingDate"`
	ConfirmationDate         time.Time `json:"confirmationDate"`
	AnchoringDate            time.Time `json:"anchoringDate"`
	ContactName              string    `json:"-"`
	ContactEmail             string    `json:"-"`
	ContactPhone             string    `json:"-"`
	BrochurePath             string    `json:"-"`
	Hidden                   bool      `json:"hidden"`
	EntityRestricted         bool      `json:"entityRestricted"`
	RFPSource                bool      `json:"rfpSource"`
	Regions                  []string  `json:"regions"`
	Version                  int       `json:"version"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// IsTerminal сообщает, допускает ли статус дальнейшие переходы.
func (s BidStatus) IsTerminal() bool {
	return s == CancelledBid || s == RejectedBid || s == ClosedBid
}

// EffectiveStatus вычисляет статус закупки на момент now.
// Статусы Evaluation/Stopping/Awarding/Closed никогда не пишутся в базу:
// они выводятся из дат при каждом чтении и монотонны при фиксированных датах.
func (b *Bid) EffectiveStatus(now time.Time, stoppingPeriodDays int) BidStatus {
	if b.Status != OpenBid {
		return b.Status
	}
	stoppingEnd := b.ConfirmationDate.AddDate(0, 0, stoppingPeriodDays)
	switch {
	case now.Before(b.OfferDeadline):
		return OpenBid
	case now.Before(b.ConfirmationDate):
		return EvaluationBid
	case now.Before(stoppingEnd):
		return StoppingBid
	case now.Before(b.AnchoringDate):
		return AwardingBid
	default:
		return ClosedBid
	}
}

// ValidateSchedule проверяет согласованность дат закупки.
func (b *Bid) ValidateSchedule() error {
	dates := []time.Time{b.EnquiryDeadline, b.OfferDeadline, b.OpeningDate, b.ConfirmationDate, b.AnchoringDate}
	for _, d := range dates {
		if d.IsZero() {
			return NewInvalidInput("BID_SCHEDULE_INCOMPLETE", "all schedule dates are required")
		}
	}
	ordered := b.EnquiryDeadline.Before(b.OfferDeadline) &&
		!b.OpeningDate.Before(b.OfferDeadline) &&
		!b.ConfirmationDate.Before(b.OpeningDate) &&
		b.ConfirmationDate.Before(b.AnchoringDate)
	if !ordered {
		return NewInvalidInput("BID_SCHEDULE_INCONSISTENT", "bid dates must be ordered: enquiry < offer <= opening <= confirmation < anchoring")
	}
	return nil
}

// BidRequest представляет структуру запроса для создания закупки.
type BidRequest struct {
	Name             string    `json:"name"`
	Objective        string    `json:"objective"`
	Type             BidType   `json:"type"`
	FundingDonorID   string    `json:"fundingDonorId"`
	DonorContactName string    `json:"donorContactName"`
	DonorContactMail string    `json:"donorContactEmail"`
	DocumentPrice    float64   `json:"documentPrice"`
	EnquiryDeadline  time.Time `json:"enquiryDeadline"`
	OfferDeadline    time.Time `json:"offerDeadline"`
	OpeningDate      time.Time `json:"openingDate"`
	ConfirmationDate time.Time `json:"confirmationDate"`
	AnchoringDate    time.Time `json:"anchoringDate"`
	ContactName      string    `json:"contactName"`
	ContactEmail     string    `json:"contactEmail"`
	ContactPhone     string    `json:"contactPhone"`
	Hidden           bool      `json:"hidden"`
	EntityRestricted bool      `json:"entityRestricted"`
	RFPSource        bool      `json:"rfpSource"`
	Regions          []string  `json:"regions"`
}

// BidView - представление закупки для просмотра; закрытые поля
// заполняются только после успешной проверки квоты.
type BidView struct {
	Bid          *Bid            `json:"bid"`
	Status       BidStatus       `json:"status"`
	ContactName  string          `json:"contactName,omitempty"`
	ContactEmail string          `json:"contactEmail,omitempty"`
	ContactPhone string          `json:"contactPhone,omitempty"`
	BrochurePath string          `json:"brochurePath,omitempty"`
	Reveal       *RevealDecision `json:"reveal,omitempty"`
}

// ErrBidNotFound возвращает типовую ошибку отсутствия закупки.
func ErrBidNotFound() *ErrorResponse {
	return NewErrorKind(KindNotFound, http.StatusNotFound, "BID_NOT_FOUND", "bid not found")
}
