package services

import (
	"context"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"
)

// EntitlementService решает, позволяет ли квота подписчика раскрыть
// закрытые поля закупки. Покупка пакета документов всегда имеет приоритет
// над состоянием подписки.
type EntitlementService struct {
	Grants   repository.EntitlementRepository
	Payments repository.PaymentRepository
	Enabled  bool
	Now      func() time.Time
}

// NewEntitlementService создает новый экземпляр EntitlementService.
func NewEntitlementService(grants repository.EntitlementRepository, payments repository.PaymentRepository, enabled bool) *EntitlementService {
	return &EntitlementService{
		Grants:   grants,
		Payments: payments,
		Enabled:  enabled,
		Now:      time.Now,
	}
}

func (s *EntitlementService) now() time.Time {
	return s.Now().UTC()
}

// CheckReveal проверяет право раскрытия без списания кредита. Счетная
// опция с остатком лишь сообщает о доступности: списание выполняет
// только явный SpendReveal.
func (s *EntitlementService) CheckReveal(ctx context.Context, actor models.Actor, bidID string) (*models.RevealDecision, error) {
	if !s.Enabled {
		return &models.RevealDecision{Granted: true}, nil
	}
	subscriber, isProvider := models.SubscriberFromActor(actor)
	if !isProvider {
		// Квота - механизм монетизации поставщиков, а не общая авторизация.
		return &models.RevealDecision{Granted: true}, nil
	}

	purchased, err := s.Payments.HasConfirmedPurchase(ctx, bidID, subscriber)
	if err != nil {
		return nil, err
	}
	if purchased {
		if err := s.Grants.EnsurePurchaseRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.RevealedViaBuyTermsBook,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Granted: true, Outcome: models.RevealedViaBuyTermsBook}, nil
	}

	grant, err := s.Grants.ActiveGrant(ctx, subscriber, s.now())
	if err != nil {
		return nil, err
	}
	if grant == nil {
		if err := s.Grants.InsertRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.NotHasSubscription,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Outcome: models.NotHasSubscription}, nil
	}

	feature, err := s.Grants.PrimaryFeature(ctx, grant.ID)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		if err := s.Grants.InsertRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.NotHasSubscription,
			GrantID:        grant.ID,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Outcome: models.NotHasSubscription, GrantID: grant.ID}, nil
	}

	if feature.ValueType == models.UnlimitedFeature {
		// Строка аудита - не биллинговое событие; не более одной на пару
		// (grant, bid) независимо от числа просмотров.
		if err := s.Grants.EnsurePackageRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			GrantID:        grant.ID,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Granted: true, Outcome: models.RevealedViaPackage, Remaining: -1, GrantID: grant.ID}, nil
	}

	used, err := s.Grants.UsageExists(ctx, feature.ID, bidID)
	if err != nil {
		return nil, err
	}
	if used {
		// Кредит за эту закупку уже потрачен ранее, повторный просмотр
		// остаток не уменьшает.
		return &models.RevealDecision{
			Granted:   true,
			Outcome:   models.RevealedViaPackage,
			Remaining: feature.Remaining(),
			GrantID:   grant.ID,
		}, nil
	}

	if feature.Remaining() > 0 {
		return &models.RevealDecision{
			CanSpend:  true,
			Remaining: feature.Remaining(),
			GrantID:   grant.ID,
		}, nil
	}

	if err := s.Grants.InsertRevealEvent(ctx, models.RevealEvent{
		BidID:          bidID,
		SubscriberKind: subscriber.Kind,
		SubscriberID:   subscriber.ID,
		Outcome:        models.HasNoCredit,
		GrantID:        grant.ID,
	}); err != nil {
		return nil, err
	}
	return &models.RevealDecision{Outcome: models.HasNoCredit, GrantID: grant.ID}, nil
}

// SpendReveal выполняет явное списание кредита за закупку. Списание
// атомарно; неуспех терминален для запроса и не должен повторяться
// вслепую во избежание двойного списания.
func (s *EntitlementService) SpendReveal(ctx context.Context, actor models.Actor, bidID string) (*models.RevealDecision, error) {
	if !s.Enabled {
		return &models.RevealDecision{Granted: true}, nil
	}
	subscriber, isProvider := models.SubscriberFromActor(actor)
	if !isProvider {
		return &models.RevealDecision{Granted: true}, nil
	}

	purchased, err := s.Payments.HasConfirmedPurchase(ctx, bidID, subscriber)
	if err != nil {
		return nil, err
	}
	if purchased {
		if err := s.Grants.EnsurePurchaseRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.RevealedViaBuyTermsBook,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Granted: true, Outcome: models.RevealedViaBuyTermsBook}, nil
	}

	grant, err := s.Grants.ActiveGrant(ctx, subscriber, s.now())
	if err != nil {
		return nil, err
	}
	if grant == nil {
		// Поставщику без подписки предлагается купить пакет документов.
		if err := s.Grants.InsertRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.TryToBuyTermsBook,
		}); err != nil {
			return nil, err
		}
		return nil, models.NewBusinessRuleViolation("REVEAL_NO_SUBSCRIPTION", "no active subscription")
	}

	feature, err := s.Grants.PrimaryFeature(ctx, grant.ID)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, models.NewBusinessRuleViolation("REVEAL_NO_SUBSCRIPTION", "no active subscription")
	}

	if feature.ValueType == models.UnlimitedFeature {
		if err := s.Grants.EnsurePackageRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			GrantID:        grant.ID,
		}); err != nil {
			return nil, err
		}
		return &models.RevealDecision{Granted: true, Outcome: models.RevealedViaPackage, Remaining: -1, GrantID: grant.ID}, nil
	}

	result, err := s.Grants.SpendCredit(ctx, feature.ID, bidID)
	if err != nil {
		return nil, err
	}
	if result == repository.SpendLimitReached {
		if err := s.Grants.InsertRevealEvent(ctx, models.RevealEvent{
			BidID:          bidID,
			SubscriberKind: subscriber.Kind,
			SubscriberID:   subscriber.ID,
			Outcome:        models.HasNoCredit,
			GrantID:        grant.ID,
		}); err != nil {
			return nil, err
		}
		return nil, models.NewBusinessRuleViolation("REVEAL_NO_CREDIT", "no reveal credits remaining")
	}

	if err := s.Grants.EnsurePackageRevealEvent(ctx, models.RevealEvent{
		BidID:          bidID,
		SubscriberKind: subscriber.Kind,
		SubscriberID:   subscriber.ID,
		GrantID:        grant.ID,
	}); err != nil {
		return nil, err
	}

	remaining := feature.Remaining()
	if result == repository.SpendOK {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}
	return &models.RevealDecision{
		Granted:   true,
		Outcome:   models.RevealedViaPackage,
		Remaining: remaining,
		GrantID:   grant.ID,
	}, nil
}
