package services

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"
)

// SupervisionService - под-автомат предпубликационного одобрения
// финансируемых закупок донором; решения возвращаются в LifecycleService.
type SupervisionService struct {
	Records   repository.SupervisionRepository
	Bids      repository.BidRepository
	Lifecycle *LifecycleService
}

// NewSupervisionService создает новый экземпляр SupervisionService.
func NewSupervisionService(records repository.SupervisionRepository, bids repository.BidRepository, lifecycle *LifecycleService) *SupervisionService {
	return &SupervisionService{
		Records:   records,
		Bids:      bids,
		Lifecycle: lifecycle,
	}
}

func (s *SupervisionService) pendingRecord(ctx context.Context, bid *models.Bid, actor models.Actor, claimCode string) (*models.DonorSupervisionRecord, error) {
	if actor.Kind != models.DonorActor || actor.ID != bid.FundingDonorID {
		return nil, models.NewNotAuthorized("SUPERVISION_NOT_SPONSOR", "only the funding donor may decide on this bid")
	}
	if bid.Status != models.PendingBid {
		return nil, models.NewConflict("SUPERVISION_NOT_PENDING", "bid is not awaiting the sponsor's decision")
	}
	latest, err := s.Records.LatestRecord(ctx, bid.ID, claimCode)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, models.NewNotFound("SUPERVISION_RECORD_NOT_FOUND", "no supervision record for this claim")
	}
	if latest.Status != models.PendingSupervision {
		return nil, models.NewConflict("SUPERVISION_ALREADY_DECIDED", "the latest supervision record is already decided")
	}
	return latest, nil
}

// Approve фиксирует одобрение донора. При действующем сроке запросов
// закупка уходит на проверку администратору как владельческая отправка;
// при истекшем - возвращается в черновик, эффект записи на этот цикл
// аннулируется.
func (s *SupervisionService) Approve(ctx context.Context, actor models.Actor, bidID, claimCode string) (*models.Bid, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	latest, err := s.pendingRecord(ctx, bid, actor, claimCode)
	if err != nil {
		return nil, err
	}

	if err := s.Records.UpdateRecordStatus(ctx, latest.ID, models.ApprovedSupervision, ""); err != nil {
		return nil, err
	}
	if err := s.Records.SetLinkResponse(ctx, bid.ID, models.AcceptResponse); err != nil {
		return nil, err
	}

	updated, _, err := s.Lifecycle.ForwardApproved(ctx, bid)
	return updated, err
}

// Reject фиксирует отказ донора: причина обязательна и передается
// владельцу дословно, флаг финансирования снимается.
func (s *SupervisionService) Reject(ctx context.Context, actor models.Actor, bidID, claimCode, reason string) (*models.Bid, error) {
	if reason == "" {
		return nil, models.NewInvalidInput("SUPERVISION_REASON_REQUIRED", "a rejection reason is required")
	}
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	latest, err := s.pendingRecord(ctx, bid, actor, claimCode)
	if err != nil {
		return nil, err
	}

	if err := s.Records.UpdateRecordStatus(ctx, latest.ID, models.RejectedSupervision, reason); err != nil {
		return nil, err
	}
	if err := s.Records.SetLinkResponse(ctx, bid.ID, models.RejectResponse); err != nil {
		return nil, err
	}
	return s.Lifecycle.ReturnRejected(ctx, bid, reason)
}

// HasActiveSupervisor сообщает, есть ли у закупки действующий куратор:
// закупка финансируется, не в черновике, и самая свежая запись по коду
// куратора - Approved.
func (s *SupervisionService) HasActiveSupervisor(ctx context.Context, bid *models.Bid) (bool, error) {
	if !bid.Funded || bid.Status == models.DraftBid {
		return false, nil
	}
	latest, err := s.Records.LatestRecord(ctx, bid.ID, models.ClaimBidSupervision)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.Status == models.ApprovedSupervision, nil
}

// ListRecords возвращает историю решений донора по закупке; вытесненные
// записи сохраняются для аудита.
func (s *SupervisionService) ListRecords(ctx context.Context, actor models.Actor, bidID string) ([]models.DonorSupervisionRecord, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	isSponsor := actor.Kind == models.DonorActor && actor.ID == bid.FundingDonorID
	if !isSponsor && !actor.IsAdmin() && !ownerMatches(actor, bid) {
		return nil, models.NewNotAuthorized("SUPERVISION_NOT_SPONSOR", "supervision history is not available to this actor")
	}
	return s.Records.ListRecords(ctx, bidID)
}
