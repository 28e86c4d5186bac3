package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"

	"github.com/google/uuid"
)

// Баллы, начисляемые владельцу за публикацию закупки.
const publicationPoints = 10

type bidEvent string

const (
	eventSubmit       bidEvent = "submit"
	eventHoldForDonor bidEvent = "hold_for_donor"
	eventDonorApprove bidEvent = "donor_approve"
	eventDonorReturn  bidEvent = "donor_return"
	eventAdminAccept  bidEvent = "admin_accept"
	eventAdminReject  bidEvent = "admin_reject"
	eventAdminDirect  bidEvent = "admin_publish_direct"
	eventCancel       bidEvent = "cancel"
)

// transition - ребро явной таблицы переходов; каждое ребро проверяется
// независимо своим guard-предикатом.
type transition struct {
	from  models.BidStatus
	event bidEvent
	to    models.BidStatus
	guard func(ctx context.Context, s *LifecycleService, bid *models.Bid) error
}

var bidTransitions = []transition{
	{models.DraftBid, eventSubmit, models.ReviewingBid, guardReadyForReview},
	{models.DraftBid, eventHoldForDonor, models.PendingBid, guardReadyForReview},
	{models.PendingBid, eventDonorApprove, models.ReviewingBid, nil},
	{models.PendingBid, eventDonorReturn, models.DraftBid, nil},
	{models.ReviewingBid, eventAdminAccept, models.OpenBid, guardSupervisionSatisfied},
	{models.ReviewingBid, eventAdminReject, models.DraftBid, nil},
	{models.DraftBid, eventAdminDirect, models.OpenBid, guardDirectPublishable},
	{models.DraftBid, eventCancel, models.CancelledBid, nil},
	{models.PendingBid, eventCancel, models.CancelledBid, nil},
	{models.ReviewingBid, eventCancel, models.CancelledBid, nil},
	{models.OpenBid, eventCancel, models.CancelledBid, nil},
}

func findTransition(from models.BidStatus, event bidEvent) (*transition, error) {
	for i := range bidTransitions {
		t := &bidTransitions[i]
		if t.from == from && t.event == event {
			return t, nil
		}
	}
	return nil, models.NewConflict("BID_STATUS_CONFLICT",
		fmt.Sprintf("operation %s is not allowed in status %s", event, from))
}

// LifecycleService владеет статусом закупки и всеми правилами переходов.
type LifecycleService struct {
	Bids        repository.BidRepository
	Supervision repository.SupervisionRepository
	Reviews     repository.ReviewLogRepository
	Payments    repository.PaymentRepository
	Settings    repository.SettingsRepository
	Now         func() time.Time
}

// NewLifecycleService создает новый экземпляр LifecycleService.
func NewLifecycleService(
	bids repository.BidRepository,
	supervision repository.SupervisionRepository,
	reviews repository.ReviewLogRepository,
	payments repository.PaymentRepository,
	settings repository.SettingsRepository,
) *LifecycleService {
	return &LifecycleService{
		Bids:        bids,
		Supervision: supervision,
		Reviews:     reviews,
		Payments:    payments,
		Settings:    settings,
		Now:         time.Now,
	}
}

func (s *LifecycleService) now() time.Time {
	return s.Now().UTC()
}

func ownerMatches(actor models.Actor, bid *models.Bid) bool {
	return string(actor.Kind) == string(bid.Owner.Kind) && actor.ID == bid.Owner.ID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateBid создает черновик закупки; владелец задается тегированным
// объединением и проверяется при конструировании.
func (s *LifecycleService) CreateBid(ctx context.Context, actor models.Actor, req models.BidRequest) (*models.Bid, error) {
	owner, err := models.NewOwner(models.OwnerKind(actor.Kind), actor.ID)
	if err != nil {
		return nil, models.NewNotAuthorized("BID_OWNER_REQUIRED", "only associations and donors may create bids")
	}
	if req.Name == "" || req.Objective == "" {
		return nil, models.NewInvalidInput("BID_FIELDS_MISSING", "missing required fields: name or objective")
	}
	if !models.ValidBidType(req.Type) {
		return nil, models.NewInvalidInput("BID_TYPE_INVALID", fmt.Sprintf("unsupported bid type: %s", req.Type))
	}

	settings, err := s.Settings.GetGeneralSettings(ctx)
	if err != nil {
		return nil, err
	}
	if req.DocumentPrice != 0 &&
		(req.DocumentPrice < settings.MinDocumentPrice || req.DocumentPrice > settings.MaxDocumentPrice) {
		return nil, models.NewInvalidInput("BID_DOCUMENT_PRICE_RANGE",
			fmt.Sprintf("document price must be within [%.2f, %.2f]", settings.MinDocumentPrice, settings.MaxDocumentPrice))
	}

	fee := round2(req.DocumentPrice * settings.PlatformFeePercentage / 100)
	tax := round2((req.DocumentPrice + fee) * settings.VatPercentage / 100)

	createdAt := s.now()
	bid := &models.Bid{
		ID:               repository.NewBidID(),
		Name:             req.Name,
		Objective:        req.Objective,
		Status:           models.DraftBid,
		Type:             req.Type,
		Owner:            owner,
		Funded:           req.FundingDonorID != "" || req.DonorContactMail != "",
		FundingDonorID:   req.FundingDonorID,
		DocumentPrice:    req.DocumentPrice,
		PlatformFee:      fee,
		Tax:              tax,
		TotalPrice:       round2(req.DocumentPrice + fee + tax),
		EnquiryDeadline:  req.EnquiryDeadline,
		OfferDeadline:    req.OfferDeadline,
		OpeningDate:      req.OpeningDate,
		ConfirmationDate: req.ConfirmationDate,
		AnchoringDate:    req.AnchoringDate,
		ContactName:      req.ContactName,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
		Hidden:           req.Hidden,
		EntityRestricted: req.EntityRestricted,
		RFPSource:        req.RFPSource,
		Regions:          req.Regions,
		Version:          1,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := s.Bids.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	if bid.Funded {
		link := models.BidDonorLink{
			BidID:        bid.ID,
			DonorID:      req.FundingDonorID,
			Response:     models.NotReviewedResponse,
			ContactName:  req.DonorContactName,
			ContactEmail: req.DonorContactMail,
		}
		if err := s.Supervision.UpsertLink(ctx, link); err != nil {
			return nil, err
		}
	}
	return bid, nil
}

func guardReadyForReview(_ context.Context, s *LifecycleService, bid *models.Bid) error {
	if bid.Name == "" || bid.Objective == "" {
		return models.NewInvalidInput("BID_FIELDS_MISSING", "missing required fields: name or objective")
	}
	if len(bid.Regions) == 0 {
		return models.NewInvalidInput("BID_REGIONS_MISSING", "at least one region must be selected")
	}
	if err := bid.ValidateSchedule(); err != nil {
		return err
	}
	if bid.TotalPrice <= 0 {
		return models.NewInvalidInput("BID_PRICE_NOT_COMPUTED", "bid price has not been computed")
	}
	return nil
}

func guardSupervisionSatisfied(ctx context.Context, s *LifecycleService, bid *models.Bid) error {
	if !bid.Funded || bid.FundingDonorID == "" {
		return nil
	}
	claims, err := s.Supervision.DonorClaims(ctx, bid.FundingDonorID)
	if err != nil {
		return err
	}
	if !containsClaim(claims, models.ClaimBidSupervision) {
		return nil
	}
	latest, err := s.Supervision.LatestRecord(ctx, bid.ID, models.ClaimBidSupervision)
	if err != nil {
		return err
	}
	if latest == nil || latest.Status != models.ApprovedSupervision {
		return models.NewConflict("BID_SUPERVISION_REQUIRED",
			"funded bid cannot be opened without the sponsor's approval")
	}
	return nil
}

func guardDirectPublishable(_ context.Context, _ *LifecycleService, bid *models.Bid) error {
	if bid.Type != models.PrivateBid && bid.Type != models.InstantBid {
		return models.NewBusinessRuleViolation("BID_DIRECT_PUBLISH_TYPE",
			"only private and instant bids may be published directly")
	}
	return nil
}

func containsClaim(claims []string, claim string) bool {
	for _, c := range claims {
		if c == claim {
			return true
		}
	}
	return false
}

// SubmitForPublication отправляет черновик на публикацию. Финансируемая
// закупка с требованием подтверждения донора уходит в Pending, остальные -
// на проверку администратору.
func (s *LifecycleService) SubmitForPublication(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(actor, bid) {
		return nil, models.NewNotAuthorized("BID_NOT_OWNER", "only the bid owner may submit it for publication")
	}
	if bid.Status == models.OpenBid {
		// Повторная публикация уже открытой закупки - конфликт,
		// без порождения повторных событий.
		return nil, models.NewConflict("BID_ALREADY_OPEN", "bid is already open")
	}
	if bid.Type == models.PrivateBid || bid.Type == models.InstantBid {
		return nil, models.NewBusinessRuleViolation("BID_ADMIN_PUBLISHED_TYPE",
			"private and instant bids are published directly by an administrator")
	}

	event := eventSubmit
	var supervisionClaims []string
	if bid.Funded && bid.FundingDonorID != "" {
		claims, err := s.Supervision.DonorClaims(ctx, bid.FundingDonorID)
		if err != nil {
			return nil, err
		}
		if containsClaim(claims, models.ClaimBidSupervision) {
			event = eventHoldForDonor
			supervisionClaims = []string{models.ClaimBidSupervision}
		}
	}

	t, err := findTransition(bid.Status, event)
	if err != nil {
		return nil, err
	}
	if t.guard != nil {
		if err := t.guard(ctx, s, bid); err != nil {
			return nil, err
		}
	}

	change := repository.StatusChange{BidID: bid.ID, To: t.to, Version: bid.Version}
	if event == eventHoldForDonor {
		records := make([]models.DonorSupervisionRecord, 0, len(supervisionClaims))
		for _, claim := range supervisionClaims {
			records = append(records, models.DonorSupervisionRecord{
				BidID:     bid.ID,
				DonorID:   bid.FundingDonorID,
				ClaimCode: claim,
				Status:    models.PendingSupervision,
			})
		}
		if err := s.Supervision.CreateRecords(ctx, records); err != nil {
			return nil, err
		}
		change.Events = append(change.Events, models.NewOutboxEvent(models.EventSupervisionRequested, models.NotificationPayload{
			BidID:         bid.ID,
			BidName:       bid.Name,
			RecipientKind: string(models.DonorActor),
			RecipientID:   bid.FundingDonorID,
		}))
	} else {
		change.Events = append(change.Events, models.NewOutboxEvent(models.EventBidSubmitted, models.NotificationPayload{
			BidID:   bid.ID,
			BidName: bid.Name,
		}))
	}
	return s.Bids.TransitionBid(ctx, change)
}

// AdminAccept публикует закупку после проверки: пишет запись в журнал
// решений, ставит в очередь формирование брошюры, приглашения и массовую
// рассылку поставщикам, начисляет баллы.
func (s *LifecycleService) AdminAccept(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error) {
	if !actor.IsAdmin() {
		return nil, models.NewNotAuthorized("BID_ADMIN_ONLY", "only an administrator may review publications")
	}
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status == models.OpenBid {
		return nil, models.NewConflict("BID_ALREADY_OPEN", "bid is already open")
	}

	t, err := findTransition(bid.Status, eventAdminAccept)
	if err != nil {
		return nil, err
	}
	if t.guard != nil {
		if err := t.guard(ctx, s, bid); err != nil {
			return nil, err
		}
	}

	change := repository.StatusChange{
		BidID:   bid.ID,
		To:      t.to,
		Version: bid.Version,
		Events:  s.publicationEvents(bid),
		Review:  &models.ReviewLogEntry{RequestType: models.PublicationReview, Outcome: "Accepted"},
	}
	return s.Bids.TransitionBid(ctx, change)
}

func (s *LifecycleService) publicationEvents(bid *models.Bid) []models.OutboxEvent {
	events := []models.OutboxEvent{
		models.NewOutboxEvent(models.EventBidOpened, models.NotificationPayload{
			BidID:         bid.ID,
			BidName:       bid.Name,
			RecipientKind: string(bid.Owner.Kind),
			RecipientID:   bid.Owner.ID,
		}),
		models.NewOutboxEvent(models.EventPointAward, models.PointAwardPayload{
			BidID:     bid.ID,
			OwnerKind: string(bid.Owner.Kind),
			OwnerID:   bid.Owner.ID,
			Points:    publicationPoints,
		}),
	}
	if bid.RFPSource {
		events = append(events, models.NewOutboxEvent(models.EventBrochureMaterialize, models.NotificationPayload{BidID: bid.ID}))
	}
	switch bid.Type {
	case models.PrivateBid:
		events = append(events, models.NewOutboxEvent(models.EventPrivateInvitations, models.FanoutPayload{
			BidID:   bid.ID,
			BidType: bid.Type,
			Regions: bid.Regions,
		}))
	case models.PublicBid, models.InstantBid, models.FreelancingBid:
		events = append(events, models.NewOutboxEvent(models.EventProviderFanout, models.FanoutPayload{
			BidID:   bid.ID,
			BidType: bid.Type,
			Regions: bid.Regions,
		}))
	}
	return events
}

// AdminReject возвращает закупку в черновик с обязательной причиной.
func (s *LifecycleService) AdminReject(ctx context.Context, actor models.Actor, bidID, reason string) (*models.Bid, error) {
	if !actor.IsAdmin() {
		return nil, models.NewNotAuthorized("BID_ADMIN_ONLY", "only an administrator may review publications")
	}
	if reason == "" {
		return nil, models.NewInvalidInput("BID_REJECT_REASON_REQUIRED", "a rejection reason is required")
	}
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	t, err := findTransition(bid.Status, eventAdminReject)
	if err != nil {
		return nil, err
	}

	change := repository.StatusChange{
		BidID:   bid.ID,
		To:      t.to,
		Version: bid.Version,
		Events: []models.OutboxEvent{
			models.NewOutboxEvent(models.EventBidRejected, models.NotificationPayload{
				BidID:         bid.ID,
				BidName:       bid.Name,
				RecipientKind: string(bid.Owner.Kind),
				RecipientID:   bid.Owner.ID,
				Reason:        reason,
			}),
		},
		Review: &models.ReviewLogEntry{RequestType: models.PublicationReview, Outcome: "Rejected", Reason: reason},
	}
	return s.Bids.TransitionBid(ctx, change)
}

// AdminPublishDirect открывает закрытую или мгновенную закупку сразу из
// черновика действием администратора.
func (s *LifecycleService) AdminPublishDirect(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error) {
	if !actor.IsAdmin() {
		return nil, models.NewNotAuthorized("BID_ADMIN_ONLY", "only an administrator may publish bids directly")
	}
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status == models.OpenBid {
		return nil, models.NewConflict("BID_ALREADY_OPEN", "bid is already open")
	}
	t, err := findTransition(bid.Status, eventAdminDirect)
	if err != nil {
		return nil, err
	}
	if t.guard != nil {
		if err := t.guard(ctx, s, bid); err != nil {
			return nil, err
		}
	}

	change := repository.StatusChange{
		BidID:   bid.ID,
		To:      t.to,
		Version: bid.Version,
		Events:  s.publicationEvents(bid),
		Review:  &models.ReviewLogEntry{RequestType: models.PublicationReview, Outcome: "Accepted"},
	}
	return s.Bids.TransitionBid(ctx, change)
}

// Cancel отменяет закупку; Cancelled - терминальный статус.
func (s *LifecycleService) Cancel(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(actor, bid) && !actor.IsAdmin() {
		return nil, models.NewNotAuthorized("BID_NOT_OWNER", "only the bid owner or an administrator may cancel it")
	}
	eff, err := s.effectiveStatus(ctx, bid)
	if err != nil {
		return nil, err
	}
	if eff.IsTerminal() {
		return nil, models.NewConflict("BID_TERMINAL_STATUS",
			fmt.Sprintf("bid in status %s cannot be cancelled", eff))
	}
	t, err := findTransition(bid.Status, eventCancel)
	if err != nil {
		return nil, err
	}

	change := repository.StatusChange{
		BidID:   bid.ID,
		To:      t.to,
		Version: bid.Version,
		Events: []models.OutboxEvent{
			models.NewOutboxEvent(models.EventBidCancelled, models.NotificationPayload{
				BidID:         bid.ID,
				BidName:       bid.Name,
				RecipientKind: string(bid.Owner.Kind),
				RecipientID:   bid.Owner.ID,
			}),
		},
	}
	return s.Bids.TransitionBid(ctx, change)
}

// ForwardApproved продолжает публикацию после одобрения донора: при
// действующем сроке запросов закупка уходит на проверку, при истекшем -
// возвращается в черновик.
func (s *LifecycleService) ForwardApproved(ctx context.Context, bid *models.Bid) (*models.Bid, bool, error) {
	if s.now().After(bid.EnquiryDeadline) {
		t, err := findTransition(bid.Status, eventDonorReturn)
		if err != nil {
			return nil, false, err
		}
		change := repository.StatusChange{
			BidID:   bid.ID,
			To:      t.to,
			Version: bid.Version,
			Events: []models.OutboxEvent{
				models.NewOutboxEvent(models.EventDeadlineLapsed, models.NotificationPayload{
					BidID:         bid.ID,
					BidName:       bid.Name,
					RecipientKind: string(bid.Owner.Kind),
					RecipientID:   bid.Owner.ID,
				}),
			},
		}
		updated, err := s.Bids.TransitionBid(ctx, change)
		return updated, true, err
	}

	t, err := findTransition(bid.Status, eventDonorApprove)
	if err != nil {
		return nil, false, err
	}
	change := repository.StatusChange{
		BidID:   bid.ID,
		To:      t.to,
		Version: bid.Version,
		Events: []models.OutboxEvent{
			models.NewOutboxEvent(models.EventBidSubmitted, models.NotificationPayload{
				BidID:   bid.ID,
				BidName: bid.Name,
			}),
		},
	}
	updated, err := s.Bids.TransitionBid(ctx, change)
	return updated, false, err
}

// ReturnRejected возвращает закупку в черновик после отказа донора;
// флаг финансирования снимается, причина передается владельцу дословно.
func (s *LifecycleService) ReturnRejected(ctx context.Context, bid *models.Bid, reason string) (*models.Bid, error) {
	t, err := findTransition(bid.Status, eventDonorReturn)
	if err != nil {
		return nil, err
	}
	change := repository.StatusChange{
		BidID:       bid.ID,
		To:          t.to,
		Version:     bid.Version,
		ClearFunded: true,
		Events: []models.OutboxEvent{
			models.NewOutboxEvent(models.EventDonorRejected, models.NotificationPayload{
				BidID:         bid.ID,
				BidName:       bid.Name,
				RecipientKind: string(bid.Owner.Kind),
				RecipientID:   bid.Owner.ID,
				Reason:        reason,
			}),
		},
	}
	return s.Bids.TransitionBid(ctx, change)
}

// EditBid меняет поля закупки с учетом статусных ограничений; цена
// замораживается после первой подтвержденной покупки.
func (s *LifecycleService) EditBid(ctx context.Context, actor models.Actor, bidID string, updateFields map[string]interface{}) (*models.Bid, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	switch bid.Status {
	case models.DraftBid:
		if !ownerMatches(actor, bid) && !actor.IsAdmin() {
			return nil, models.NewNotAuthorized("BID_NOT_OWNER", "only the bid owner may edit a draft")
		}
	case models.ReviewingBid, models.OpenBid:
		if !actor.IsAdmin() {
			return nil, models.NewNotAuthorized("BID_ADMIN_ONLY", "only an administrator may edit a submitted bid")
		}
		purchased, err := s.Payments.HasAnyConfirmedPurchase(ctx, bid.ID)
		if err != nil {
			return nil, err
		}
		if purchased {
			return nil, models.NewConflict("BID_NOT_EDITABLE", "bid with confirmed purchases cannot be edited")
		}
	default:
		return nil, models.NewConflict("BID_NOT_EDITABLE",
			fmt.Sprintf("bid in status %s cannot be edited", bid.Status))
	}

	// Производные поля цены пересчитываются только из documentPrice;
	// напрямую их задавать нельзя, иначе суммы разойдутся с настройками.
	for _, derived := range []string{"platformFee", "tax", "totalPrice"} {
		if _, ok := updateFields[derived]; ok {
			return nil, models.NewInvalidInput("BID_PRICE_DERIVED",
				fmt.Sprintf("%s is derived from documentPrice and cannot be set directly", derived))
		}
	}

	if price, ok := updateFields["documentPrice"]; ok {
		purchased, err := s.Payments.HasAnyConfirmedPurchase(ctx, bid.ID)
		if err != nil {
			return nil, err
		}
		if purchased {
			return nil, models.NewConflict("BID_PRICE_LOCKED",
				"price fields are frozen once a confirmed purchase exists")
		}
		docPrice, ok := price.(float64)
		if !ok {
			return nil, models.NewInvalidInput("BID_DOCUMENT_PRICE_INVALID", "document price must be a number")
		}
		settings, err := s.Settings.GetGeneralSettings(ctx)
		if err != nil {
			return nil, err
		}
		if docPrice < settings.MinDocumentPrice || docPrice > settings.MaxDocumentPrice {
			return nil, models.NewInvalidInput("BID_DOCUMENT_PRICE_RANGE",
				fmt.Sprintf("document price must be within [%.2f, %.2f]", settings.MinDocumentPrice, settings.MaxDocumentPrice))
		}
		fee := round2(docPrice * settings.PlatformFeePercentage / 100)
		tax := round2((docPrice + fee) * settings.VatPercentage / 100)
		updateFields["platformFee"] = fee
		updateFields["tax"] = tax
		updateFields["totalPrice"] = round2(docPrice + fee + tax)
	}

	return s.Bids.EditBid(ctx, bid.ID, updateFields, bid.Version)
}

// ListReviewLog возвращает журнал решений администратора по закупке.
func (s *LifecycleService) ListReviewLog(ctx context.Context, actor models.Actor, bidID string) ([]models.ReviewLogEntry, error) {
	if !actor.IsAdmin() {
		return nil, models.NewNotAuthorized("BID_ADMIN_ONLY", "only an administrator may read the review log")
	}
	if _, err := s.Bids.GetBid(ctx, bidID); err != nil {
		return nil, err
	}
	return s.Reviews.ListEntries(ctx, bidID)
}

// GetBidStatus возвращает статус закупки, вычисленный по датам на момент
// чтения; таймеры статусы не пишут.
func (s *LifecycleService) GetBidStatus(ctx context.Context, bidID string) (models.BidStatus, error) {
	bid, err := s.Bids.GetBid(ctx, bidID)
	if err != nil {
		return "", err
	}
	return s.effectiveStatus(ctx, bid)
}

func (s *LifecycleService) effectiveStatus(ctx context.Context, bid *models.Bid) (models.BidStatus, error) {
	settings, err := s.Settings.GetGeneralSettings(ctx)
	if err != nil {
		return "", err
	}
	return bid.EffectiveStatus(s.now(), settings.StoppingPeriodDays), nil
}

// NewCorrelationRef генерирует ссылку для сопоставления ошибки с журналом.
func NewCorrelationRef() string {
	return uuid.New().String()
}
