package models

import "time"

// RevealOutcome - исход проверки доступа к закрытым полям закупки.
type RevealOutcome string

const (
	RevealedViaPackage      RevealOutcome = "RevealedViaPackage"
	RevealedViaBuyTermsBook RevealOutcome = "RevealedViaBuyTermsBook"
	NotHasSubscription      RevealOutcome = "NotHasSubscription"
	HasNoCredit             RevealOutcome = "HasNoCredit"
	TryToBuyTermsBook       RevealOutcome = "TryToBuyTermsBook"
)

// RevealEvent - append-only строка аудита раскрытий; никогда не меняется
// и не удаляется.
type RevealEvent struct {
	ID             string         `json:"id"`
	BidID          string         `json:"bidId"`
	SubscriberKind SubscriberKind `json:"subscriberKind"`
	SubscriberID   string         `json:"subscriberId"`
	Outcome        RevealOutcome  `json:"outcome"`
	GrantID        string         `json:"grantId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// RevealDecision - результат проверки квоты для действующего лица.
type RevealDecision struct {
	Granted   bool          `json:"granted"`
	Outcome   RevealOutcome `json:"outcome,omitempty"`
	CanSpend  bool          `json:"canSpend,omitempty"`
	Remaining int           `json:"remaining"`
	GrantID   string        `json:"grantId,omitempty"`
}
