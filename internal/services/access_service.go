package services

import (
	"context"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"
)

// AccessService - проверка видимости закупки по роли и отношению к ней,
// независимая от квоты; квота подключается только для закрытых под-полей.
type AccessService struct {
	Bids         repository.BidRepository
	Access       repository.AccessRepository
	Supervision  repository.SupervisionRepository
	Payments     repository.PaymentRepository
	Settings     repository.SettingsRepository
	Entitlements *EntitlementService
	Now          func() time.Time
}

// NewAccessService создает новый экземпляр AccessService.
func NewAccessService(
	bids repository.BidRepository,
	access repository.AccessRepository,
	supervision repository.SupervisionRepository,
	payments repository.PaymentRepository,
	settings repository.SettingsRepository,
	entitlements *EntitlementService,
) *AccessService {
	return &AccessService{
		Bids:         bids,
		Access:       access,
		Supervision:  supervision,
		Payments:     payments,
		Settings:     settings,
		Entitlements: entitlements,
		Now:          time.Now,
	}
}

func actorOwner(actor models.Actor) (models.Owner, bool) {
	owner, err := models.NewOwner(models.OwnerKind(actor.Kind), actor.ID)
	if err != nil {
		return models.Owner{}, false
	}
	return owner, true
}

func publiclyVisible(status models.BidStatus) bool {
	switch status {
	case models.DraftBid, models.PendingBid, models.ReviewingBid, models.CancelledBid:
		return false
	default:
		return true
	}
}

// CanView решает, виден ли bid действующему лицу; nil означает доступ.
func (s *AccessService) CanView(ctx context.Context, actor models.Actor, bid *models.Bid) error {
	settings, err := s.Settings.GetGeneralSettings(ctx)
	if err != nil {
		return err
	}
	status := bid.EffectiveStatus(s.Now().UTC(), settings.StoppingPeriodDays)

	// Владелец видит закупку в любом статусе.
	if ownerMatches(actor, bid) {
		return nil
	}
	// Курирующая ассоциация приравнена к владельцу.
	if actor.Kind == models.AssociationActor && actor.ID != "" && actor.ID == bid.SupervisingAssociationID {
		return nil
	}
	// Финансирующий донор - пока не отказался от закупки.
	if actor.Kind == models.DonorActor && actor.ID != "" && actor.ID == bid.FundingDonorID {
		link, err := s.Supervision.GetLink(ctx, bid.ID)
		if err != nil {
			return err
		}
		if link == nil || link.Response != models.RejectResponse {
			return nil
		}
	}

	if actor.IsAdmin() {
		// Закупки в ожидании решения донора закрыты от рядового персонала.
		if status == models.PendingBid && !actor.Privileged {
			return models.NewNotAuthorized("BID_RESERVED_FOR_SPONSOR",
				"pending bids are reserved for the sponsoring donor's decision")
		}
		return nil
	}

	if actor.IsGuest() {
		if !publiclyVisible(status) || bid.Hidden || bid.EntityRestricted {
			return models.NewNotAuthenticated("BID_NOT_VISIBLE", "bid is not visible to unauthenticated viewers")
		}
		return nil
	}

	if actor.IsProvider() {
		if !publiclyVisible(status) {
			return models.NewNotAuthorized("BID_NOT_VISIBLE", "bid is not visible in its current status")
		}
		provider, _ := models.SubscriberFromActor(actor)
		if bid.Type == models.PrivateBid {
			invited, err := s.Access.IsInvited(ctx, bid.ID, provider)
			if err != nil {
				return err
			}
			if !invited {
				return models.NewNotAuthorized("BID_INVITATION_REQUIRED", "private bids require an explicit invitation")
			}
		}
		if bid.EntityRestricted {
			assigned, err := s.Access.IsAssigned(ctx, bid.Owner, provider)
			if err != nil {
				return err
			}
			if !assigned {
				purchased, err := s.Payments.HasConfirmedPurchase(ctx, bid.ID, provider)
				if err != nil {
					return err
				}
				if !purchased {
					return models.NewNotAuthorized("BID_ENTITY_RESTRICTED",
						"bid is restricted to providers assigned to the publishing entity")
				}
			}
		}
		return nil
	}

	// Прочие аутентифицированные лица видят только публично видимые закупки.
	if !publiclyVisible(status) || bid.Hidden {
		return models.NewNotAuthorized("BID_NOT_VISIBLE", "bid is not visible in its current status")
	}
	return nil
}

// ListBids возвращает страницу закупок, видимых действующему лицу.
func (s *AccessService) ListBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	bids, err := s.Bids.ListBids(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Bid, 0, len(bids))
	for i := range bids {
		if err := s.CanView(ctx, actor, &bids[i]); err != nil {
			if _, ok := err.(*models.ErrorResponse); ok {
				continue
			}
			return nil, err
		}
		visible = append(visible, bids[i])
	}
	return visible, nil
}

// ListMyBids возвращает страницу закупок, принадлежащих действующему лицу.
func (s *AccessService) ListMyBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	owner, ok := actorOwner(actor)
	if !ok {
		return nil, models.NewNotAuthenticated("BID_OWNER_REQUIRED", "listing own bids requires an authenticated owner")
	}
	return s.Bids.ListOwnerBids(ctx, owner, limit, offset)
}

// ViewBid возвращает представление закупки: сначала проверка видимости,
// затем фильтрация закрытых под-полей через квоту раскрытий.
func (s *AccessService) ViewBid(ctx context.Context, actor models.Actor, bidID string) (*models.BidView, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if err := s.CanView(ctx, actor, bid); err != nil {
		return nil, err
	}

	settings, err := s.Settings.GetGeneralSettings(ctx)
	if err != nil {
		return nil, err
	}
	view := &models.BidView{
		Bid:    bid,
		Status: bid.EffectiveStatus(s.Now().UTC(), settings.StoppingPeriodDays),
	}

	decision, err := s.Entitlements.CheckReveal(ctx, actor, bid.ID)
	if err != nil {
		return nil, err
	}
	view.Reveal = decision
	if decision.Granted {
		view.ContactName = bid.ContactName
		view.ContactEmail = bid.ContactEmail
		view.ContactPhone = bid.ContactPhone
		view.BrochurePath = bid.BrochurePath
	}
	return view, nil
}
