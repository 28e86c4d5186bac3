package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
)

var testNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

type lifecycleFixture struct {
	bids        *fakeBidRepo
	supervision *fakeSupervisionRepo
	reviews     *fakeReviewLogRepo
	payments    *fakePaymentRepo
	service     *LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		bids:        newFakeBidRepo(),
		supervision: newFakeSupervisionRepo(),
		reviews:     &fakeReviewLogRepo{},
		payments:    newFakePaymentRepo(),
	}
	f.bids.reviews = f.reviews
	settings := &fakeSettingsRepo{settings: models.GeneralSettings{
		VatPercentage:         15,
		PlatformFeePercentage: 2,
		MinDocumentPrice:      10,
		MaxDocumentPrice:      1000,
		StoppingPeriodDays:    5,
	}}
	f.service = NewLifecycleService(f.bids, f.supervision, f.reviews, f.payments, settings)
	f.service.Now = func() time.Time { return testNow }
	return f
}

func (f *lifecycleFixture) seedBid(status models.BidStatus, bidType models.BidType) *models.Bid {
	bid := &models.Bid{
		ID:               "bid-1",
		Name:             "Road works",
		Objective:        "Resurface the access road",
		Status:           status,
		Type:             bidType,
		Owner:            models.Owner{Kind: models.AssociationOwner, ID: "assoc-1"},
		DocumentPrice:    100,
		PlatformFee:      2,
		Tax:              15.3,
		TotalPrice:       117.3,
		EnquiryDeadline:  testNow.AddDate(0, 0, 7),
		OfferDeadline:    testNow.AddDate(0, 0, 14),
		OpeningDate:      testNow.AddDate(0, 0, 14),
		ConfirmationDate: testNow.AddDate(0, 0, 21),
		AnchoringDate:    testNow.AddDate(0, 0, 35),
		Regions:          []string{"north"},
		Version:          1,
	}
	f.bids.bids[bid.ID] = bid
	return bid
}

var (
	ownerActor = models.Actor{Kind: models.AssociationActor, ID: "assoc-1"}
	adminActor = models.Actor{Kind: models.AdminActor, ID: "admin-1"}
)

func wantErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	resp, ok := err.(*models.ErrorResponse)
	if !ok {
		t.Fatalf("expected *ErrorResponse, got %T: %v", err, err)
	}
	if resp.Code != code {
		t.Fatalf("error code = %s, want %s", resp.Code, code)
	}
}

func TestCreateBidComputesPrice(t *testing.T) {
	f := newLifecycleFixture()

	bid, err := f.service.CreateBid(context.Background(), ownerActor, models.BidRequest{
		Name:          "Road works",
		Objective:     "Resurface the access road",
		Type:          models.PublicBid,
		DocumentPrice: 100,
	})
	if err != nil {
		t.Fatalf("CreateBid: %v", err)
	}
	if bid.PlatformFee != 2 {
		t.Errorf("platform fee = %v, want 2", bid.PlatformFee)
	}
	if bid.Tax != 15.3 {
		t.Errorf("tax = %v, want 15.3", bid.Tax)
	}
	if bid.TotalPrice != 117.3 {
		t.Errorf("total = %v, want 117.3", bid.TotalPrice)
	}
	if bid.Status != models.DraftBid {
		t.Errorf("status = %s, want Draft", bid.Status)
	}
}

func TestCreateBidValidation(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	_, err := f.service.CreateBid(ctx, models.Actor{Kind: models.CompanyActor, ID: "c-1"}, models.BidRequest{
		Name: "x", Objective: "y", Type: models.PublicBid,
	})
	wantErrorCode(t, err, "BID_OWNER_REQUIRED")

	_, err = f.service.CreateBid(ctx, ownerActor, models.BidRequest{
		Name: "x", Objective: "y", Type: models.BidType("Auction"),
	})
	wantErrorCode(t, err, "BID_TYPE_INVALID")

	_, err = f.service.CreateBid(ctx, ownerActor, models.BidRequest{
		Name: "x", Objective: "y", Type: models.PublicBid, DocumentPrice: 5000,
	})
	wantErrorCode(t, err, "BID_DOCUMENT_PRICE_RANGE")
}

func TestCreateFundedBidStoresDonorLink(t *testing.T) {
	f := newLifecycleFixture()

	bid, err := f.service.CreateBid(context.Background(), ownerActor, models.BidRequest{
		Name:             "Road works",
		Objective:        "Resurface the access road",
		Type:             models.PublicBid,
		DocumentPrice:    100,
		FundingDonorID:   "donor-1",
		DonorContactMail: "donor@example.org",
	})
	if err != nil {
		t.Fatalf("CreateBid: %v", err)
	}
	if !bid.Funded {
		t.Fatal("bid should be marked as funded")
	}
	link := f.supervision.links[bid.ID]
	if link.DonorID != "donor-1" || link.Response != models.NotReviewedResponse {
		t.Errorf("donor link = %+v", link)
	}
}

func TestSubmitDraftGoesToReviewing(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)

	bid, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	if err != nil {
		t.Fatalf("SubmitForPublication: %v", err)
	}
	if bid.Status != models.ReviewingBid {
		t.Errorf("status = %s, want Reviewing", bid.Status)
	}
	if !f.bids.hasEvent(models.EventBidSubmitted) {
		t.Error("bid.submitted event not recorded")
	}
}

func TestSubmitRequiresOwner(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)

	_, err := f.service.SubmitForPublication(context.Background(), adminActor, "bid-1")
	wantErrorCode(t, err, "BID_NOT_OWNER")
}

func TestSubmitIncompleteDraftRejected(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.DraftBid, models.PublicBid)
	bid.Regions = nil

	_, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_REGIONS_MISSING")
}

func TestSubmitFundedBidWaitsForDonor(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.DraftBid, models.PublicBid)
	bid.Funded = true
	bid.FundingDonorID = "donor-1"
	f.supervision.claims["donor-1"] = []string{models.ClaimBidSupervision}

	updated, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	if err != nil {
		t.Fatalf("SubmitForPublication: %v", err)
	}
	if updated.Status != models.PendingBid {
		t.Errorf("status = %s, want Pending", updated.Status)
	}
	record, _ := f.supervision.LatestRecord(context.Background(), "bid-1", models.ClaimBidSupervision)
	if record == nil || record.Status != models.PendingSupervision {
		t.Fatalf("pending supervision record missing: %+v", record)
	}
	if !f.bids.hasEvent(models.EventSupervisionRequested) {
		t.Error("supervision_requested event not recorded")
	}
}

func TestSubmitFundedBidWithoutClaimSkipsDonor(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.DraftBid, models.PublicBid)
	bid.Funded = true
	bid.FundingDonorID = "donor-1"

	updated, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	if err != nil {
		t.Fatalf("SubmitForPublication: %v", err)
	}
	if updated.Status != models.ReviewingBid {
		t.Errorf("status = %s, want Reviewing", updated.Status)
	}
}

func TestSubmitPrivateBidRejected(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PrivateBid)

	_, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_ADMIN_PUBLISHED_TYPE")
}

func TestSubmitAlreadyOpenIsConflictWithoutEvents(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.OpenBid, models.PublicBid)

	_, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_ALREADY_OPEN")
	if len(f.bids.events) != 0 {
		t.Errorf("duplicate submit produced events: %v", f.bids.eventTypes())
	}
}

func TestAdminAcceptOpensBid(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)

	bid, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1")
	if err != nil {
		t.Fatalf("AdminAccept: %v", err)
	}
	if bid.Status != models.OpenBid {
		t.Errorf("status = %s, want Open", bid.Status)
	}
	for _, eventType := range []models.EventType{models.EventBidOpened, models.EventPointAward, models.EventProviderFanout} {
		if !f.bids.hasEvent(eventType) {
			t.Errorf("missing event %s", eventType)
		}
	}
	entries, _ := f.reviews.ListEntries(context.Background(), "bid-1")
	if len(entries) != 1 || entries[0].Outcome != "Accepted" {
		t.Errorf("review log = %+v", entries)
	}
}

func TestAdminAcceptQueuesBrochureForRFPBids(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.ReviewingBid, models.PublicBid)
	bid.RFPSource = true

	if _, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1"); err != nil {
		t.Fatalf("AdminAccept: %v", err)
	}
	if !f.bids.hasEvent(models.EventBrochureMaterialize) {
		t.Error("brochure_materialize event not recorded")
	}
}

func TestAdminAcceptRequiresSponsorApproval(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.ReviewingBid, models.PublicBid)
	bid.Funded = true
	bid.FundingDonorID = "donor-1"
	f.supervision.claims["donor-1"] = []string{models.ClaimBidSupervision}

	_, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1")
	wantErrorCode(t, err, "BID_SUPERVISION_REQUIRED")

	f.supervision.CreateRecords(context.Background(), []models.DonorSupervisionRecord{{
		BidID: "bid-1", DonorID: "donor-1", ClaimCode: models.ClaimBidSupervision, Status: models.ApprovedSupervision,
	}})
	opened, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1")
	if err != nil {
		t.Fatalf("AdminAccept after approval: %v", err)
	}
	if opened.Status != models.OpenBid {
		t.Errorf("status = %s, want Open", opened.Status)
	}
}

func TestAdminAcceptRequiresAdmin(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)

	_, err := f.service.AdminAccept(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_ADMIN_ONLY")
}

func TestAdminRejectRequiresReason(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)

	_, err := f.service.AdminReject(context.Background(), adminActor, "bid-1", "")
	wantErrorCode(t, err, "BID_REJECT_REASON_REQUIRED")
}

func TestAdminRejectReturnsToDraft(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)

	bid, err := f.service.AdminReject(context.Background(), adminActor, "bid-1", "incomplete documentation")
	if err != nil {
		t.Fatalf("AdminReject: %v", err)
	}
	if bid.Status != models.DraftBid {
		t.Errorf("status = %s, want Draft", bid.Status)
	}
	if !f.bids.hasEvent(models.EventBidRejected) {
		t.Error("bid.rejected event not recorded")
	}
	entries, _ := f.reviews.ListEntries(context.Background(), "bid-1")
	if len(entries) != 1 || entries[0].Reason != "incomplete documentation" {
		t.Errorf("review log = %+v", entries)
	}
}

func TestAdminPublishDirect(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.InstantBid)

	bid, err := f.service.AdminPublishDirect(context.Background(), adminActor, "bid-1")
	if err != nil {
		t.Fatalf("AdminPublishDirect: %v", err)
	}
	if bid.Status != models.OpenBid {
		t.Errorf("status = %s, want Open", bid.Status)
	}
}

func TestAdminPublishDirectRejectsPublicBids(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)

	_, err := f.service.AdminPublishDirect(context.Background(), adminActor, "bid-1")
	wantErrorCode(t, err, "BID_DIRECT_PUBLISH_TYPE")
}

func TestCancelOpenBid(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.OpenBid, models.PublicBid)

	bid, err := f.service.Cancel(context.Background(), ownerActor, "bid-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if bid.Status != models.CancelledBid {
		t.Errorf("status = %s, want Cancelled", bid.Status)
	}
	if !f.bids.hasEvent(models.EventBidCancelled) {
		t.Error("bid.cancelled event not recorded")
	}
}

func TestCancelEffectivelyClosedBidIsConflict(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.OpenBid, models.PublicBid)
	// По датам закупка уже завершена, хотя в базе она числится Open.
	bid.OfferDeadline = testNow.AddDate(0, 0, -40)
	bid.ConfirmationDate = testNow.AddDate(0, 0, -30)
	bid.AnchoringDate = testNow.AddDate(0, 0, -10)

	_, err := f.service.Cancel(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_TERMINAL_STATUS")
}

func TestCancelCancelledBidIsConflict(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.CancelledBid, models.PublicBid)

	_, err := f.service.Cancel(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_TERMINAL_STATUS")
}

func TestEditBidRecomputesPrice(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)

	bid, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{
		"documentPrice": float64(200),
	})
	if err != nil {
		t.Fatalf("EditBid: %v", err)
	}
	if bid.PlatformFee != 4 {
		t.Errorf("platform fee = %v, want 4", bid.PlatformFee)
	}
	if bid.Tax != 30.6 {
		t.Errorf("tax = %v, want 30.6", bid.Tax)
	}
	if bid.TotalPrice != 234.6 {
		t.Errorf("total = %v, want 234.6", bid.TotalPrice)
	}
}

func TestEditBidPriceLockedAfterPurchase(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)
	f.payments.confirm("bid-1", models.Subscriber{Kind: models.CompanySubscriber, ID: "c-1"})

	_, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{
		"documentPrice": float64(200),
	})
	wantErrorCode(t, err, "BID_PRICE_LOCKED")

	// Нестоимостные поля черновика при этом доступны владельцу.
	bid, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{
		"name": "Road works, phase 2",
	})
	if err != nil {
		t.Fatalf("EditBid non-price field: %v", err)
	}
	if bid.Name != "Road works, phase 2" {
		t.Errorf("name = %s", bid.Name)
	}
}

func TestEditBidRejectsDerivedPriceFields(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)
	f.payments.confirm("bid-1", models.Subscriber{Kind: models.CompanySubscriber, ID: "c-1"})

	// Суммы выводятся из documentPrice и настроек; задавать их напрямую
	// нельзя ни в одном статусе, даже владельцу черновика.
	for _, field := range []string{"platformFee", "tax", "totalPrice"} {
		_, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{
			field: float64(1),
		})
		wantErrorCode(t, err, "BID_PRICE_DERIVED")
	}
	_, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{
		"name":       "Road works, phase 2",
		"totalPrice": float64(1),
	})
	wantErrorCode(t, err, "BID_PRICE_DERIVED")

	stored := f.bids.bids["bid-1"]
	if stored.TotalPrice != 117.3 || stored.PlatformFee != 2 || stored.Tax != 15.3 {
		t.Errorf("price fields changed: total=%v fee=%v tax=%v", stored.TotalPrice, stored.PlatformFee, stored.Tax)
	}
	if stored.Name != "Road works" {
		t.Errorf("name changed to %s", stored.Name)
	}
}

func TestSubmitVersionConflictLoserWritesNothing(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.DraftBid, models.PublicBid)
	f.bids.beforeTransition = func() {
		f.bids.bids["bid-1"].Version++
	}

	_, err := f.service.SubmitForPublication(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_VERSION_CONFLICT")
	if len(f.bids.events) != 0 {
		t.Errorf("loser produced %d events: %v", len(f.bids.events), f.bids.eventTypes())
	}
	if f.bids.bids["bid-1"].Status != models.DraftBid {
		t.Errorf("status = %s, want Draft", f.bids.bids["bid-1"].Status)
	}
}

func TestAdminAcceptVersionConflictWritesNoReviewEntry(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)
	f.bids.beforeTransition = func() {
		f.bids.bids["bid-1"].Version++
	}

	_, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1")
	wantErrorCode(t, err, "BID_VERSION_CONFLICT")
	if len(f.bids.events) != 0 {
		t.Errorf("loser produced %d events", len(f.bids.events))
	}
	entries, _ := f.reviews.ListEntries(context.Background(), "bid-1")
	if len(entries) != 0 {
		t.Errorf("review log has %d entries, want 0", len(entries))
	}
}

func TestListReviewLogAdminOnly(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.ReviewingBid, models.PublicBid)

	if _, err := f.service.AdminAccept(context.Background(), adminActor, "bid-1"); err != nil {
		t.Fatalf("AdminAccept: %v", err)
	}

	_, err := f.service.ListReviewLog(context.Background(), ownerActor, "bid-1")
	wantErrorCode(t, err, "BID_ADMIN_ONLY")

	entries, err := f.service.ListReviewLog(context.Background(), adminActor, "bid-1")
	if err != nil {
		t.Fatalf("ListReviewLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "Accepted" {
		t.Fatalf("entries = %+v, want one Accepted", entries)
	}
}

func TestEditOpenBidRequiresAdmin(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.OpenBid, models.PublicBid)

	_, err := f.service.EditBid(context.Background(), ownerActor, "bid-1", map[string]interface{}{"name": "x"})
	wantErrorCode(t, err, "BID_ADMIN_ONLY")
}

func TestEditCancelledBidIsConflict(t *testing.T) {
	f := newLifecycleFixture()
	f.seedBid(models.CancelledBid, models.PublicBid)

	_, err := f.service.EditBid(context.Background(), adminActor, "bid-1", map[string]interface{}{"name": "x"})
	wantErrorCode(t, err, "BID_NOT_EDITABLE")
}

func TestGetBidStatusDerivesFromSchedule(t *testing.T) {
	f := newLifecycleFixture()
	bid := f.seedBid(models.OpenBid, models.PublicBid)
	bid.OfferDeadline = testNow.AddDate(0, 0, -1)

	status, err := f.service.GetBidStatus(context.Background(), "bid-1")
	if err != nil {
		t.Fatalf("GetBidStatus: %v", err)
	}
	if status != models.EvaluationBid {
		t.Errorf("status = %s, want Evaluation", status)
	}
	// Вычисленный статус никогда не записывается обратно.
	if f.bids.bids["bid-1"].Status != models.OpenBid {
		t.Errorf("stored status changed to %s", f.bids.bids["bid-1"].Status)
	}
}
