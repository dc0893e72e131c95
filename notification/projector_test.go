package notification

import (
	"strings"
	"testing"

	"escrowflow/agreement"
	"escrowflow/profile"
	"escrowflow/transaction"
)

func sampleTransaction() transaction.Transaction {
	return transaction.Transaction{
		ID:     "tx-1",
		Title:  "Used Laptop",
		Amount: 25000,
		Buyer:  transaction.Party{ProfileID: "buyer-1", Name: "Amit Singh", Phone: "9876543210"},
		Seller: transaction.Party{ProfileID: "seller-1", Name: "Rahul Kumar", Phone: "9999990001"},
	}
}

func TestForTransition_AddressesCounterparty(t *testing.T) {
	tx := sampleTransaction()

	cases := []struct {
		event     transaction.Event
		actor     string
		recipient string
		wantType  Type
	}{
		{transaction.EventAcceptContract, "buyer-1", "seller-1", TypeContractAccepted},
		{transaction.EventConfirmPayment, "buyer-1", "seller-1", TypePaymentReceived},
		{transaction.EventUploadDeliveryProof, "seller-1", "buyer-1", TypeDeliveryConfirmationRequired},
		{transaction.EventConfirmDelivery, "buyer-1", "seller-1", TypeFundsReleased},
		{transaction.EventRaiseDispute, "buyer-1", "seller-1", TypeDisputeRaised},
		{transaction.EventRaiseDispute, "seller-1", "buyer-1", TypeDisputeRaised},
		{transaction.EventResolveDispute, "seller-1", "buyer-1", TypeFundsReleased},
	}

	for _, tc := range cases {
		params, ok := ForTransition(tc.event, tx, tc.actor)
		if !ok {
			t.Fatalf("%s: expected a projection", tc.event)
		}
		if params.RecipientID != tc.recipient {
			t.Errorf("%s: expected recipient %s, got %s", tc.event, tc.recipient, params.RecipientID)
		}
		if params.Type != tc.wantType {
			t.Errorf("%s: expected type %s, got %s", tc.event, tc.wantType, params.Type)
		}
		if params.RelatedID != tx.ID {
			t.Errorf("%s: expected related id %s, got %s", tc.event, tx.ID, params.RelatedID)
		}
		if params.Title == "" || params.Message == "" {
			t.Errorf("%s: expected title and message, got %+v", tc.event, params)
		}
	}
}

func TestForTransition_UnknownActor(t *testing.T) {
	if _, ok := ForTransition(transaction.EventAcceptContract, sampleTransaction(), "stranger"); ok {
		t.Fatal("expected no projection for a non-party actor")
	}
}

func TestForTransition_UnknownEvent(t *testing.T) {
	if _, ok := ForTransition("unknown_event", sampleTransaction(), "buyer-1"); ok {
		t.Fatal("expected no projection for an unknown event")
	}
}

func TestForAgreementSent(t *testing.T) {
	a := agreement.Agreement{
		ID:       "ag-1",
		Title:    "Logo Design",
		Amount:   3500,
		Sender:   agreement.PartySnapshot{ProfileID: "seller-1", Name: "Rahul Kumar", Role: profile.RoleSeller},
		Receiver: agreement.PartySnapshot{ProfileID: "buyer-1", Name: "Amit Singh", Role: profile.RoleBuyer},
	}

	params := ForAgreementSent(a)
	if params.RecipientID != "buyer-1" {
		t.Fatalf("expected receiver as recipient, got %s", params.RecipientID)
	}
	if params.Type != TypeContractSent {
		t.Fatalf("expected contract_sent, got %s", params.Type)
	}
	if !strings.Contains(params.Message, "Rahul Kumar") || !strings.Contains(params.Message, "Logo Design") {
		t.Fatalf("message missing sender or title: %q", params.Message)
	}
}

func TestForAgreementRejected(t *testing.T) {
	a := agreement.Agreement{
		ID:       "ag-1",
		Title:    "Logo Design",
		Status:   agreement.StatusRejected,
		Feedback: "price too high",
		Sender:   agreement.PartySnapshot{ProfileID: "seller-1", Name: "Rahul Kumar"},
		Receiver: agreement.PartySnapshot{ProfileID: "buyer-1", Name: "Amit Singh"},
	}

	params := ForAgreementRejected(a)
	if params.RecipientID != "seller-1" {
		t.Fatalf("expected sender as recipient, got %s", params.RecipientID)
	}
	if params.Type != TypeContractRejected {
		t.Fatalf("expected contract_rejected, got %s", params.Type)
	}
	if !strings.Contains(params.Message, "price too high") {
		t.Fatalf("message missing the feedback: %q", params.Message)
	}
	if params.RelatedID != "ag-1" {
		t.Fatalf("expected related id ag-1, got %s", params.RelatedID)
	}
}
