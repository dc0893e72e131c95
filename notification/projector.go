package notification

import (
	"fmt"

	"escrowflow/agreement"
	"escrowflow/transaction"
)

// The projector derives the single notification each lifecycle transition
// owes the counterparty. It holds no state; the engine persists what it
// returns.

// ForTransition maps a transaction transition to the notification addressed
// to the party who must act next. The second return is false when the event
// is not one the projector knows, which the engine treats as a bug.
func ForTransition(ev transaction.Event, t transaction.Transaction, actorProfileID string) (CreateParams, bool) {
	other, ok := t.Counterparty(actorProfileID)
	if !ok {
		return CreateParams{}, false
	}

	p := CreateParams{RecipientID: other.ProfileID, RelatedID: t.ID}
	switch ev {
	case transaction.EventAcceptContract:
		p.Type = TypeContractAccepted
		p.Title = "Contract accepted"
		p.Message = fmt.Sprintf("%s accepted the contract for %q. Awaiting payment.", t.Buyer.Name, t.Title)
	case transaction.EventConfirmPayment:
		p.Type = TypePaymentReceived
		p.Title = "Payment received"
		p.Message = fmt.Sprintf("Payment of %d for %q is held in escrow. Please deliver.", t.Amount, t.Title)
	case transaction.EventUploadDeliveryProof:
		p.Type = TypeDeliveryConfirmationRequired
		p.Title = "Confirm delivery"
		p.Message = fmt.Sprintf("%s uploaded delivery proof for %q. Please confirm receipt.", t.Seller.Name, t.Title)
	case transaction.EventConfirmDelivery:
		p.Type = TypeFundsReleased
		p.Title = "Funds released"
		p.Message = fmt.Sprintf("Delivery of %q confirmed. %d released from escrow.", t.Title, t.Amount)
	case transaction.EventRaiseDispute:
		p.Type = TypeDisputeRaised
		p.Title = "Dispute raised"
		p.Message = fmt.Sprintf("A dispute was raised on %q. Funds stay frozen until it is resolved.", t.Title)
	case transaction.EventResolveDispute:
		p.Type = TypeFundsReleased
		p.Title = "Dispute resolved"
		p.Message = fmt.Sprintf("The dispute on %q was resolved. %d released from escrow.", t.Title, t.Amount)
	default:
		return CreateParams{}, false
	}
	return p, true
}

// ForAgreementSent addresses the receiver of a freshly created proposal.
func ForAgreementSent(a agreement.Agreement) CreateParams {
	return CreateParams{
		RecipientID: a.Receiver.ProfileID,
		Type:        TypeContractSent,
		Title:       "New contract received",
		Message:     fmt.Sprintf("%s sent you a contract for %q (%d).", a.Sender.Name, a.Title, a.Amount),
		RelatedID:   a.ID,
	}
}

// ForAgreementRejected addresses the sender after the receiver turned the
// proposal down. Acceptance emits nothing here: the transaction it spawns
// announces itself through its own contract_accepted transition.
func ForAgreementRejected(a agreement.Agreement) CreateParams {
	return CreateParams{
		RecipientID: a.Sender.ProfileID,
		Type:        TypeContractRejected,
		Title:       "Contract rejected",
		Message:     fmt.Sprintf("%s rejected your contract for %q: %s", a.Receiver.Name, a.Title, a.Feedback),
		RelatedID:   a.ID,
	}
}
