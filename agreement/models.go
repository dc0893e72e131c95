package agreement

import (
	"time"

	"escrowflow/profile"
)

// Status is the lifecycle of a proposal. Both accepted and rejected are
// terminal; an agreement is transitioned exactly once, by its receiver.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Type classifies what is being traded.
type Type string

const (
	TypeGoods    Type = "goods"
	TypeServices Type = "services"
)

// Valid reports whether the type is one of the known values.
func (t Type) Valid() bool {
	return t == TypeGoods || t == TypeServices
}

// PartySnapshot captures a profile's identity at send time. Later profile
// edits never flow back into an agreement.
type PartySnapshot struct {
	ProfileID string
	Name      string
	Phone     string
	Role      profile.Role
}

// Agreement is a proposed contract. Once the receiver accepts it, a
// transaction is instantiated verbatim from this snapshot.
type Agreement struct {
	ID          string
	Title       string
	Amount      int64
	Type        Type
	Terms       string
	Sender      PartySnapshot
	Receiver    PartySnapshot
	Status      Status
	Feedback    string
	ListingID   string
	CreatedAt   time.Time
	RespondedAt *time.Time
}
