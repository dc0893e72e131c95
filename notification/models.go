package notification

import "time"

// Type enumerates the events a notification can announce. Each lifecycle
// transition maps to exactly one type.
type Type string

const (
	TypeContractSent     Type = "contract_sent"
	TypeContractAccepted Type = "contract_accepted"
	TypeContractRejected Type = "contract_rejected"
	TypePaymentReceived  Type = "payment_received"
	// TypeDeliveryRequired is reserved for a standalone delivery reminder.
	// No projection emits it yet: the payment notification already tells
	// the seller to deliver.
	TypeDeliveryRequired             Type = "delivery_required"
	TypeDeliveryConfirmationRequired Type = "delivery_confirmation_required"
	TypeFundsReleased                Type = "funds_released"
	TypeDisputeRaised                Type = "dispute_raised"
)

// Notification is an addressed, timestamped event record. Immutable except
// for the read flag, which only the recipient may flip.
type Notification struct {
	ID          string
	RecipientID string
	Type        Type
	Title       string
	Message     string
	RelatedID   string
	Read        bool
	CreatedAt   time.Time
}
