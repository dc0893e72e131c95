package transaction

import (
	"time"

	"escrowflow/profile"
)

// Status is the coarse bucket used for filtering and analytics. Funds are
// held in escrow while a transaction is in progress or disputed and released
// the instant it completes.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDisputed   Status = "disputed"
)

// Stage is the fine-grained lifecycle position used for action gating.
type Stage string

const (
	StageContractSent     Stage = "contract_sent"
	StageContractAccepted Stage = "contract_accepted"
	StagePaymentMade      Stage = "payment_made"
	StageDelivered        Stage = "delivered"
	StageCompleted        Stage = "completed"
)

var stageRank = map[Stage]int{
	StageContractSent:     0,
	StageContractAccepted: 1,
	StagePaymentMade:      2,
	StageDelivered:        3,
	StageCompleted:        4,
}

// Rank returns the position of the stage in the forward sequence, or -1 for
// an unknown stage. Stage never regresses along this sequence.
func (s Stage) Rank() int {
	r, ok := stageRank[s]
	if !ok {
		return -1
	}
	return r
}

// Event names a lifecycle transition attempt on a transaction.
type Event string

const (
	EventAcceptContract      Event = "accept_contract"
	EventConfirmPayment      Event = "confirm_payment"
	EventUploadDeliveryProof Event = "upload_delivery_proof"
	EventConfirmDelivery     Event = "confirm_delivery"
	EventRaiseDispute        Event = "raise_dispute"
	EventResolveDispute      Event = "resolve_dispute"
)

// Party is a denormalized snapshot of one side of the deal, captured when the
// transaction is created and never changed afterwards.
type Party struct {
	ProfileID string
	Name      string
	Phone     string
}

// Transaction is a single deal between a buyer and a seller.
type Transaction struct {
	ID             string
	Title          string
	Amount         int64
	Description    string
	Buyer          Party
	Seller         Party
	Stage          Stage
	Status         Status
	DisputeDetails string
	HasEvidence    bool
	AgreementID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoleOf returns the role the given profile plays in this transaction, or
// false when the profile is not a party to it.
func (t Transaction) RoleOf(profileID string) (profile.Role, bool) {
	switch profileID {
	case t.Buyer.ProfileID:
		return profile.RoleBuyer, true
	case t.Seller.ProfileID:
		return profile.RoleSeller, true
	default:
		return "", false
	}
}

// Counterparty returns the party opposite the given profile.
func (t Transaction) Counterparty(profileID string) (Party, bool) {
	switch profileID {
	case t.Buyer.ProfileID:
		return t.Seller, true
	case t.Seller.ProfileID:
		return t.Buyer, true
	default:
		return Party{}, false
	}
}
