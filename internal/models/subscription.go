package models

import "time"

type (
	SubscriberKind   string // Вид подписчика
	FeatureValueType string // Тип значения опции подписки
)

const (
	CompanySubscriber    SubscriberKind = "Company"
	FreelancerSubscriber SubscriberKind = "Freelancer"

	CountFeature     FeatureValueType = "Count"
	UnlimitedFeature FeatureValueType = "Unlimited"
)

// FeatureBidReveal - основная счетная опция: раскрытие закрытых полей закупки.
const FeatureBidReveal = "bid_reveal"

// Subscriber идентифицирует подписчика пакета услуг.
type Subscriber struct {
	Kind SubscriberKind `json:"kind"`
	ID   string         `json:"id"`
}

// SubscriberFromActor переводит поставщика в подписчика пакета услуг.
func SubscriberFromActor(a Actor) (Subscriber, bool) {
	switch a.Kind {
	case CompanyActor:
		return Subscriber{Kind: CompanySubscriber, ID: a.ID}, true
	case FreelancerActor:
		return Subscriber{Kind: FreelancerSubscriber, ID: a.ID}, true
	default:
		return Subscriber{}, false
	}
}

// SubscriptionGrant - оплаченный пакет услуг подписчика.
type SubscriptionGrant struct {
	ID             string         `json:"id"`
	SubscriberKind SubscriberKind `json:"subscriberKind"`
	SubscriberID   string         `json:"subscriberId"`
	StartsAt       time.Time      `json:"startsAt"`
	EndsAt         time.Time      `json:"endsAt"`
	Paid           bool           `json:"paid"`
}

// ActiveAt сообщает, действует ли оплаченный пакет на момент now.
func (g *SubscriptionGrant) ActiveAt(now time.Time) bool {
	return g.Paid && !now.Before(g.StartsAt) && now.Before(g.EndsAt)
}

// GrantFeature - опция пакета услуг.
type GrantFeature struct {
	ID          string           `json:"id"`
	GrantID     string           `json:"grantId"`
	FeatureCode string           `json:"featureCode"`
	ValueType   FeatureValueType `json:"valueType"`
	Total       int              `json:"total"`
	Used        int              `json:"used"`
	Available   bool             `json:"available"`
}

// Remaining возвращает остаток кредитов счетной опции.
func (f *GrantFeature) Remaining() int {
	if f.ValueType == UnlimitedFeature {
		return -1
	}
	remaining := f.Total - f.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FeatureUsageRecord - факт списания кредита опции за конкретную закупку.
// Наличие записи означает, что кредит за эту закупку уже потрачен;
// создание записи строго однократно на пару (feature, bid).
type FeatureUsageRecord struct {
	FeatureID string    `json:"featureId"`
	BidID     string    `json:"bidId"`
	CreatedAt time.Time `json:"createdAt"`
}
