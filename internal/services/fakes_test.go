package services

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/repository"
)

// Фейковые репозитории в памяти воспроизводят контракты Postgres-реализаций,
// включая проверку версии и идемпотентные вставки.

type fakeBidRepo struct {
	bids    map[string]*models.Bid
	events  []models.OutboxEvent
	reviews *fakeReviewLogRepo

	// beforeTransition имитирует конкурирующую запись между чтением
	// закупки и сменой статуса.
	beforeTransition func()
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{bids: make(map[string]*models.Bid)}
}

func (r *fakeBidRepo) CreateBid(_ context.Context, bid *models.Bid) error {
	stored := *bid
	r.bids[bid.ID] = &stored
	return nil
}

func (r *fakeBidRepo) GetBid(_ context.Context, bidID string) (*models.Bid, error) {
	bid, ok := r.bids[bidID]
	if !ok {
		return nil, models.ErrBidNotFound()
	}
	copied := *bid
	return &copied, nil
}

func (r *fakeBidRepo) ListBids(_ context.Context, limit, offset int) ([]models.Bid, error) {
	out := make([]models.Bid, 0, len(r.bids))
	for _, bid := range r.bids {
		out = append(out, *bid)
	}
	return out, nil
}

func (r *fakeBidRepo) ListOwnerBids(_ context.Context, owner models.Owner, limit, offset int) ([]models.Bid, error) {
	out := make([]models.Bid, 0)
	for _, bid := range r.bids {
		if bid.Owner == owner {
			out = append(out, *bid)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) TransitionBid(_ context.Context, change repository.StatusChange) (*models.Bid, error) {
	if r.beforeTransition != nil {
		r.beforeTransition()
	}
	bid, ok := r.bids[change.BidID]
	if !ok {
		return nil, models.ErrBidNotFound()
	}
	if bid.Version != change.Version {
		return nil, models.NewConflict("BID_VERSION_CONFLICT", "bid was modified concurrently")
	}
	bid.Status = change.To
	bid.Version++
	if change.ClearFunded {
		bid.Funded = false
	}
	if change.BrochurePath != "" {
		bid.BrochurePath = change.BrochurePath
	}
	r.events = append(r.events, change.Events...)
	if change.Review != nil && r.reviews != nil {
		r.reviews.entries = append(r.reviews.entries, models.ReviewLogEntry{
			EntityID:    change.BidID,
			RequestType: change.Review.RequestType,
			Outcome:     change.Review.Outcome,
			Reason:      change.Review.Reason,
			CreatedAt:   time.Now().UTC(),
		})
	}
	copied := *bid
	return &copied, nil
}

func (r *fakeBidRepo) EditBid(_ context.Context, bidID string, updateFields map[string]interface{}, version int) (*models.Bid, error) {
	bid, ok := r.bids[bidID]
	if !ok {
		return nil, models.ErrBidNotFound()
	}
	if bid.Version != version {
		return nil, models.NewConflict("BID_VERSION_CONFLICT", "bid was modified concurrently")
	}
	for field, value := range updateFields {
		switch field {
		case "name":
			bid.Name = value.(string)
		case "objective":
			bid.Objective = value.(string)
		case "documentPrice":
			bid.DocumentPrice = value.(float64)
		case "platformFee":
			bid.PlatformFee = value.(float64)
		case "tax":
			bid.Tax = value.(float64)
		case "totalPrice":
			bid.TotalPrice = value.(float64)
		}
	}
	bid.Version++
	copied := *bid
	return &copied, nil
}

func (r *fakeBidRepo) SetBrochure(_ context.Context, bidID, path string) error {
	bid, ok := r.bids[bidID]
	if !ok {
		return models.ErrBidNotFound()
	}
	bid.BrochurePath = path
	return nil
}

func (r *fakeBidRepo) eventTypes() []models.EventType {
	types := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}

func (r *fakeBidRepo) hasEvent(eventType models.EventType) bool {
	for _, e := range r.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type fakeSupervisionRepo struct {
	records []models.DonorSupervisionRecord
	links   map[string]models.BidDonorLink
	claims  map[string][]string
	nextID  int
}

func newFakeSupervisionRepo() *fakeSupervisionRepo {
	return &fakeSupervisionRepo{
		links:  make(map[string]models.BidDonorLink),
		claims: make(map[string][]string),
	}
}

func (r *fakeSupervisionRepo) CreateRecords(_ context.Context, records []models.DonorSupervisionRecord) error {
	for _, record := range records {
		if record.ID == "" {
			r.nextID++
			record.ID = fmt.Sprintf("rec-%d", r.nextID)
		}
		record.CreatedAt = time.Now().UTC()
		r.records = append(r.records, record)
	}
	return nil
}

func (r *fakeSupervisionRepo) LatestRecord(_ context.Context, bidID, claimCode string) (*models.DonorSupervisionRecord, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].BidID == bidID && r.records[i].ClaimCode == claimCode {
			record := r.records[i]
			return &record, nil
		}
	}
	return nil, nil
}

func (r *fakeSupervisionRepo) ListRecords(_ context.Context, bidID string) ([]models.DonorSupervisionRecord, error) {
	out := make([]models.DonorSupervisionRecord, 0)
	for _, record := range r.records {
		if record.BidID == bidID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeSupervisionRepo) UpdateRecordStatus(_ context.Context, recordID string, status models.SupervisionStatus, reason string) error {
	for i := range r.records {
		if r.records[i].ID == recordID {
			r.records[i].Status = status
			r.records[i].RejectionReason = reason
			return nil
		}
	}
	return models.NewNotFound("SUPERVISION_RECORD_NOT_FOUND", "no supervision record")
}

func (r *fakeSupervisionRepo) UpsertLink(_ context.Context, link models.BidDonorLink) error {
	r.links[link.BidID] = link
	return nil
}

func (r *fakeSupervisionRepo) GetLink(_ context.Context, bidID string) (*models.BidDonorLink, error) {
	link, ok := r.links[bidID]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (r *fakeSupervisionRepo) SetLinkResponse(_ context.Context, bidID string, response models.DonorResponse) error {
	link := r.links[bidID]
	link.BidID = bidID
	link.Response = response
	r.links[bidID] = link
	return nil
}

func (r *fakeSupervisionRepo) DonorClaims(_ context.Context, donorID string) ([]string, error) {
	return r.claims[donorID], nil
}

type fakeEntitlementRepo struct {
	grants   map[models.Subscriber]*models.SubscriptionGrant
	features map[string]*models.GrantFeature
	usage    map[string]bool
	events   []models.RevealEvent
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{
		grants:   make(map[models.Subscriber]*models.SubscriptionGrant),
		features: make(map[string]*models.GrantFeature),
		usage:    make(map[string]bool),
	}
}

func usageKey(featureID, bidID string) string {
	return featureID + "/" + bidID
}

func (r *fakeEntitlementRepo) ActiveGrant(_ context.Context, subscriber models.Subscriber, now time.Time) (*models.SubscriptionGrant, error) {
	grant, ok := r.grants[subscriber]
	if !ok || !grant.ActiveAt(now) {
		return nil, nil
	}
	copied := *grant
	return &copied, nil
}

func (r *fakeEntitlementRepo) PrimaryFeature(_ context.Context, grantID string) (*models.GrantFeature, error) {
	feature, ok := r.features[grantID]
	if !ok || !feature.Available {
		return nil, nil
	}
	copied := *feature
	return &copied, nil
}

func (r *fakeEntitlementRepo) UsageExists(_ context.Context, featureID, bidID string) (bool, error) {
	return r.usage[usageKey(featureID, bidID)], nil
}

func (r *fakeEntitlementRepo) SpendCredit(_ context.Context, featureID, bidID string) (repository.SpendResult, error) {
	if r.usage[usageKey(featureID, bidID)] {
		return repository.SpendAlreadyRecorded, nil
	}
	var feature *models.GrantFeature
	for _, f := range r.features {
		if f.ID == featureID {
			feature = f
		}
	}
	if feature == nil || feature.Used >= feature.Total {
		return repository.SpendLimitReached, nil
	}
	r.usage[usageKey(featureID, bidID)] = true
	feature.Used++
	return repository.SpendOK, nil
}

func (r *fakeEntitlementRepo) InsertRevealEvent(_ context.Context, event models.RevealEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEntitlementRepo) EnsurePackageRevealEvent(_ context.Context, event models.RevealEvent) error {
	for _, e := range r.events {
		if e.Outcome == models.RevealedViaPackage && e.GrantID == event.GrantID && e.BidID == event.BidID {
			return nil
		}
	}
	event.Outcome = models.RevealedViaPackage
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEntitlementRepo) EnsurePurchaseRevealEvent(_ context.Context, event models.RevealEvent) error {
	for _, e := range r.events {
		if e.Outcome == models.RevealedViaBuyTermsBook &&
			e.BidID == event.BidID && e.SubscriberKind == event.SubscriberKind && e.SubscriberID == event.SubscriberID {
			return nil
		}
	}
	event.Outcome = models.RevealedViaBuyTermsBook
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEntitlementRepo) countEvents(outcome models.RevealOutcome) int {
	count := 0
	for _, e := range r.events {
		if e.Outcome == outcome {
			count++
		}
	}
	return count
}

type fakePaymentRepo struct {
	purchases map[string]map[models.Subscriber]bool
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{purchases: make(map[string]map[models.Subscriber]bool)}
}

func (r *fakePaymentRepo) confirm(bidID string, buyer models.Subscriber) {
	if r.purchases[bidID] == nil {
		r.purchases[bidID] = make(map[models.Subscriber]bool)
	}
	r.purchases[bidID][buyer] = true
}

func (r *fakePaymentRepo) HasConfirmedPurchase(_ context.Context, bidID string, buyer models.Subscriber) (bool, error) {
	return r.purchases[bidID][buyer], nil
}

func (r *fakePaymentRepo) HasAnyConfirmedPurchase(_ context.Context, bidID string) (bool, error) {
	return len(r.purchases[bidID]) > 0, nil
}

type fakeReviewLogRepo struct {
	entries []models.ReviewLogEntry
}

func (r *fakeReviewLogRepo) ListEntries(_ context.Context, entityID string) ([]models.ReviewLogEntry, error) {
	out := make([]models.ReviewLogEntry, 0)
	for _, entry := range r.entries {
		if entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeSettingsRepo struct {
	settings models.GeneralSettings
}

func (r *fakeSettingsRepo) GetGeneralSettings(_ context.Context) (*models.GeneralSettings, error) {
	copied := r.settings
	return &copied, nil
}

type fakeAccessRepo struct {
	invited  map[string]map[models.Subscriber]bool
	assigned map[models.Owner]map[models.Subscriber]bool
	profiles map[string][]models.Subscriber
}

func newFakeAccessRepo() *fakeAccessRepo {
	return &fakeAccessRepo{
		invited:  make(map[string]map[models.Subscriber]bool),
		assigned: make(map[models.Owner]map[models.Subscriber]bool),
		profiles: make(map[string][]models.Subscriber),
	}
}

func (r *fakeAccessRepo) invite(bidID string, provider models.Subscriber) {
	if r.invited[bidID] == nil {
		r.invited[bidID] = make(map[models.Subscriber]bool)
	}
	r.invited[bidID][provider] = true
}

func (r *fakeAccessRepo) assign(owner models.Owner, provider models.Subscriber) {
	if r.assigned[owner] == nil {
		r.assigned[owner] = make(map[models.Subscriber]bool)
	}
	r.assigned[owner][provider] = true
}

func (r *fakeAccessRepo) IsInvited(_ context.Context, bidID string, provider models.Subscriber) (bool, error) {
	return r.invited[bidID][provider], nil
}

func (r *fakeAccessRepo) IsAssigned(_ context.Context, owner models.Owner, provider models.Subscriber) (bool, error) {
	return r.assigned[owner][provider], nil
}

func (r *fakeAccessRepo) InviteProviders(_ context.Context, bidID string, providers []models.Subscriber) (int, error) {
	count := 0
	for _, provider := range providers {
		if !r.invited[bidID][provider] {
			r.invite(bidID, provider)
			count++
		}
	}
	return count, nil
}

func (r *fakeAccessRepo) MatchingProviders(_ context.Context, regions []string) ([]models.Subscriber, error) {
	seen := make(map[models.Subscriber]bool)
	out := make([]models.Subscriber, 0)
	for _, region := range regions {
		for _, provider := range r.profiles[region] {
			if !seen[provider] {
				seen[provider] = true
				out = append(out, provider)
			}
		}
	}
	return out, nil
}
