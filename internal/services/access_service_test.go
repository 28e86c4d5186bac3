package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
)

type accessFixture struct {
	*lifecycleFixture
	access       *fakeAccessRepo
	grants       *fakeEntitlementRepo
	entitlements *EntitlementService
	service      *AccessService
}

func newAccessFixture() *accessFixture {
	lf := newLifecycleFixture()
	f := &accessFixture{
		lifecycleFixture: lf,
		access:           newFakeAccessRepo(),
		grants:           newFakeEntitlementRepo(),
	}
	settings := &fakeSettingsRepo{settings: models.GeneralSettings{StoppingPeriodDays: 5}}
	f.entitlements = NewEntitlementService(f.grants, f.payments, true)
	f.entitlements.Now = func() time.Time { return testNow }
	f.service = NewAccessService(f.bids, f.access, f.supervision, f.payments, settings, f.entitlements)
	f.service.Now = func() time.Time { return testNow }
	return f
}

func TestVisibilityMatrix(t *testing.T) {
	guest := models.Actor{Kind: models.GuestActor}
	provider := models.Actor{Kind: models.CompanyActor, ID: "c-1"}
	otherAssoc := models.Actor{Kind: models.AssociationActor, ID: "assoc-2"}

	tests := []struct {
		name     string
		status   models.BidStatus
		mutate   func(*models.Bid)
		actor    models.Actor
		wantCode string
	}{
		{"owner sees draft", models.DraftBid, nil, ownerActor, ""},
		{"guest blind to draft", models.DraftBid, nil, guest, "BID_NOT_VISIBLE"},
		{"guest blind to reviewing", models.ReviewingBid, nil, guest, "BID_NOT_VISIBLE"},
		{"guest sees open", models.OpenBid, nil, guest, ""},
		{"guest blind to hidden", models.OpenBid, func(b *models.Bid) { b.Hidden = true }, guest, "BID_NOT_VISIBLE"},
		{"guest blind to entity restricted", models.OpenBid, func(b *models.Bid) { b.EntityRestricted = true }, guest, "BID_NOT_VISIBLE"},
		{"admin sees reviewing", models.ReviewingBid, nil, adminActor, ""},
		{"plain admin blind to pending", models.PendingBid, nil, adminActor, "BID_RESERVED_FOR_SPONSOR"},
		{"privileged admin sees pending", models.PendingBid, nil,
			models.Actor{Kind: models.AdminActor, ID: "admin-1", Privileged: true}, ""},
		{"provider sees open public", models.OpenBid, nil, provider, ""},
		{"provider blind to draft", models.DraftBid, nil, provider, "BID_NOT_VISIBLE"},
		{"provider needs invitation to private", models.OpenBid,
			func(b *models.Bid) { b.Type = models.PrivateBid }, provider, "BID_INVITATION_REQUIRED"},
		{"other association blind to hidden", models.OpenBid, func(b *models.Bid) { b.Hidden = true }, otherAssoc, "BID_NOT_VISIBLE"},
		{"other association sees open", models.OpenBid, nil, otherAssoc, ""},
		{"cancelled hidden from guests", models.CancelledBid, nil, guest, "BID_NOT_VISIBLE"},
		{"owner sees cancelled", models.CancelledBid, nil, ownerActor, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccessFixture()
			bid := f.seedBid(tt.status, models.PublicBid)
			if tt.mutate != nil {
				tt.mutate(bid)
			}
			err := f.service.CanView(context.Background(), tt.actor, bid)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected denial: %v", err)
				}
				return
			}
			wantErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestInvitedProviderSeesPrivateBid(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.OpenBid, models.PrivateBid)
	provider := models.Actor{Kind: models.CompanyActor, ID: "c-1"}
	f.access.invite(bid.ID, models.Subscriber{Kind: models.CompanySubscriber, ID: "c-1"})

	if err := f.service.CanView(context.Background(), provider, bid); err != nil {
		t.Fatalf("invited provider denied: %v", err)
	}
}

func TestEntityRestrictedBid(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.OpenBid, models.PublicBid)
	bid.EntityRestricted = true
	provider := models.Actor{Kind: models.CompanyActor, ID: "c-1"}
	subscriber := models.Subscriber{Kind: models.CompanySubscriber, ID: "c-1"}
	ctx := context.Background()

	err := f.service.CanView(ctx, provider, bid)
	wantErrorCode(t, err, "BID_ENTITY_RESTRICTED")

	f.access.assign(bid.Owner, subscriber)
	if err := f.service.CanView(ctx, provider, bid); err != nil {
		t.Fatalf("assigned provider denied: %v", err)
	}

	// Покупка пакета документов открывает доступ и без назначения.
	f2 := newAccessFixture()
	bid2 := f2.seedBid(models.OpenBid, models.PublicBid)
	bid2.EntityRestricted = true
	f2.payments.confirm(bid2.ID, subscriber)
	if err := f2.service.CanView(ctx, provider, bid2); err != nil {
		t.Fatalf("purchasing provider denied: %v", err)
	}
}

func TestFundingDonorVisibility(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.PendingBid, models.PublicBid)
	bid.Funded = true
	bid.FundingDonorID = "donor-1"
	ctx := context.Background()

	if err := f.service.CanView(ctx, donorActor, bid); err != nil {
		t.Fatalf("funding donor denied: %v", err)
	}

	// После отказа донор теряет привилегированный доступ к закупке.
	f.supervision.UpsertLink(ctx, models.BidDonorLink{BidID: bid.ID, DonorID: "donor-1", Response: models.RejectResponse})
	err := f.service.CanView(ctx, donorActor, bid)
	wantErrorCode(t, err, "BID_NOT_VISIBLE")
}

func TestSupervisingAssociationSeesBid(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.PendingBid, models.PublicBid)
	bid.SupervisingAssociationID = "assoc-9"

	supervisor := models.Actor{Kind: models.AssociationActor, ID: "assoc-9"}
	if err := f.service.CanView(context.Background(), supervisor, bid); err != nil {
		t.Fatalf("supervising association denied: %v", err)
	}
}

func TestViewBidGatesContactFields(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.OpenBid, models.PublicBid)
	bid.ContactName = "Jordan Smith"
	bid.ContactEmail = "jordan@example.org"
	ctx := context.Background()

	// Владелец не подпадает под квоту и видит контакты.
	view, err := f.service.ViewBid(ctx, ownerActor, bid.ID)
	if err != nil {
		t.Fatalf("ViewBid owner: %v", err)
	}
	if view.ContactName != "Jordan Smith" || view.ContactEmail != "jordan@example.org" {
		t.Errorf("owner view = %+v", view)
	}

	// Поставщик без подписки получает карточку без закрытых полей.
	provider := models.Actor{Kind: models.CompanyActor, ID: "c-1"}
	view, err = f.service.ViewBid(ctx, provider, bid.ID)
	if err != nil {
		t.Fatalf("ViewBid provider: %v", err)
	}
	if view.ContactName != "" || view.ContactEmail != "" {
		t.Errorf("gated fields leaked: %+v", view)
	}
	if view.Reveal == nil || view.Reveal.Outcome != models.NotHasSubscription {
		t.Errorf("reveal decision = %+v", view.Reveal)
	}
}

func TestViewBidReportsEffectiveStatus(t *testing.T) {
	f := newAccessFixture()
	bid := f.seedBid(models.OpenBid, models.PublicBid)
	bid.OfferDeadline = testNow.AddDate(0, 0, -1)

	view, err := f.service.ViewBid(context.Background(), ownerActor, bid.ID)
	if err != nil {
		t.Fatalf("ViewBid: %v", err)
	}
	if view.Status != models.EvaluationBid {
		t.Errorf("view status = %s, want Evaluation", view.Status)
	}
	if view.Bid.Status != models.OpenBid {
		t.Errorf("stored status = %s, want Open", view.Bid.Status)
	}
}

func TestListBidsFiltersByVisibility(t *testing.T) {
	f := newAccessFixture()
	f.seedBid(models.DraftBid, models.PublicBid)
	open := &models.Bid{
		ID:               "bid-2",
		Name:             "Supplies",
		Status:           models.OpenBid,
		Type:             models.PublicBid,
		Owner:            models.Owner{Kind: models.AssociationOwner, ID: "assoc-1"},
		OfferDeadline:    testNow.AddDate(0, 0, 10),
		ConfirmationDate: testNow.AddDate(0, 0, 20),
		AnchoringDate:    testNow.AddDate(0, 0, 30),
		Version:          1,
	}
	f.bids.bids[open.ID] = open

	guest := models.Actor{Kind: models.GuestActor}
	visible, err := f.service.ListBids(context.Background(), guest, 50, 0)
	if err != nil {
		t.Fatalf("ListBids: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "bid-2" {
		t.Errorf("visible = %+v", visible)
	}

	mine, err := f.service.ListMyBids(context.Background(), ownerActor, 50, 0)
	if err != nil {
		t.Fatalf("ListMyBids: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("owner bids = %d, want 2", len(mine))
	}

	_, err = f.service.ListMyBids(context.Background(), guest, 50, 0)
	wantErrorCode(t, err, "BID_OWNER_REQUIRED")
}
