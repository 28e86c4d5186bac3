package models

type ActorKind string // Вид действующего лица

const (
	GuestActor       ActorKind = "Guest"
	AssociationActor ActorKind = "Association"
	DonorActor       ActorKind = "Donor"
	CompanyActor     ActorKind = "Company"
	FreelancerActor  ActorKind = "Freelancer"
	AdminActor       ActorKind = "Admin"
)

// ClaimBidSupervision - код разрешения, требующий подтверждения донора
// перед публикацией финансируемой закупки.
const ClaimBidSupervision = "bid_supervision"

// Actor - явный параметр действующего лица; авторизация вычисляется
// как функция от (actor, bid, action) без скрытого глобального состояния.
type Actor struct {
	Kind       ActorKind `json:"kind"`
	ID         string    `json:"id"`
	Claims     []string  `json:"claims,omitempty"`
	Privileged bool      `json:"privileged,omitempty"`
}

// IsProvider сообщает, является ли действующее лицо поставщиком.
func (a Actor) IsProvider() bool {
	return a.Kind == CompanyActor || a.Kind == FreelancerActor
}

// IsAdmin сообщает, является ли действующее лицо администратором.
func (a Actor) IsAdmin() bool {
	return a.Kind == AdminActor
}

// IsGuest сообщает, аутентифицировано ли действующее лицо.
func (a Actor) IsGuest() bool {
	return a.Kind == GuestActor || a.Kind == "" || a.ID == ""
}

// HasClaim проверяет наличие кода разрешения у действующего лица.
func (a Actor) HasClaim(claim string) bool {
	for _, c := range a.Claims {
		if c == claim {
			return true
		}
	}
	return false
}
