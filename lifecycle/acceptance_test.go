package lifecycle

import (
	"context"
	"errors"
	"testing"

	"escrowflow/agreement"
	"escrowflow/notification"
	"escrowflow/profile"
	"escrowflow/transaction"
)

// pairedStore mimics the Postgres-backed agreement store: the flip and the
// transaction insert land as one all-or-nothing step.
type pairedStore struct {
	agreement.Repository
	transactions transaction.Repository
	calls        int
	fail         bool
}

func (s *pairedStore) RespondAccept(ctx context.Context, id, feedback string, create transaction.CreateParams) (agreement.Agreement, transaction.Transaction, error) {
	s.calls++
	if s.fail {
		// Neither write lands, same as a rolled-back database transaction.
		return agreement.Agreement{}, transaction.Transaction{}, errors.New("store: connection reset")
	}
	a, err := s.Repository.Respond(ctx, id, agreement.StatusAccepted, feedback)
	if err != nil {
		return agreement.Agreement{}, transaction.Transaction{}, err
	}
	t, err := s.transactions.Create(ctx, create)
	if err != nil {
		return agreement.Agreement{}, transaction.Transaction{}, err
	}
	return a, t, nil
}

func newPairedFixture(t *testing.T) (*fixture, *pairedStore) {
	t.Helper()
	ctx := context.Background()

	profiles := profile.NewMemoryRepository()
	transactions := transaction.NewMemoryRepository()
	notifications := notification.NewMemoryRepository()
	store := &pairedStore{
		Repository:   agreement.NewMemoryRepository(),
		transactions: transactions,
	}

	seller, err := profiles.Create(ctx, profile.CreateParams{
		Name: "Rahul Kumar", Role: profile.RoleSeller, Phone: "9999990001",
	})
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}
	buyer, err := profiles.Create(ctx, profile.CreateParams{
		Name: "Amit Singh", Role: profile.RoleBuyer, Phone: "9876543210",
	})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}

	return &fixture{
		engine:        NewEngine(profiles, store, transactions, notifications),
		profiles:      profiles,
		notifications: notifications,
		transactions:  transactions,
		seller:        seller,
		buyer:         buyer,
	}, store
}

func (f *fixture) sendAgreement(t *testing.T, title string, amount int64) agreement.Agreement {
	t.Helper()
	a, err := f.engine.CreateAgreement(context.Background(), CreateAgreementParams{
		SenderProfileID:   f.seller.ID,
		ReceiverProfileID: f.buyer.ID,
		Title:             title,
		Amount:            amount,
		Type:              agreement.TypeGoods,
		Terms:             "standard terms",
	})
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return a
}

func TestRespondToAgreement_PairedStorePreferred(t *testing.T) {
	f, store := newPairedFixture(t)
	ctx := context.Background()
	a := f.sendAgreement(t, "Used Laptop", 25000)

	result, err := f.engine.RespondToAgreement(ctx, a.ID, f.buyer.ID, agreement.StatusAccepted, "")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected 1 paired call, got %d", store.calls)
	}
	if result.Transaction == nil {
		t.Fatal("expected acceptance to return the transaction")
	}
	if result.Transaction.AgreementID != a.ID {
		t.Fatalf("expected transaction to reference agreement %s, got %q", a.ID, result.Transaction.AgreementID)
	}
	if result.Agreement.Status != agreement.StatusAccepted {
		t.Fatalf("expected accepted agreement, got %s", result.Agreement.Status)
	}
}

func TestRespondToAgreement_PairedStoreFailureKeepsPending(t *testing.T) {
	f, store := newPairedFixture(t)
	ctx := context.Background()
	a := f.sendAgreement(t, "Used Laptop", 25000)

	store.fail = true
	if _, err := f.engine.RespondToAgreement(ctx, a.ID, f.buyer.ID, agreement.StatusAccepted, ""); err == nil {
		t.Fatal("expected the failed store call to surface an error")
	}

	cur, err := store.Repository.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get agreement: %v", err)
	}
	if cur.Status != agreement.StatusPending {
		t.Fatalf("expected agreement to stay pending after the failure, got %s", cur.Status)
	}
	txs, err := f.transactions.List(ctx, transaction.Filter{ProfileID: f.buyer.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transaction after the failure, got %d", len(txs))
	}

	// The respond stays retryable because nothing was committed.
	store.fail = false
	result, err := f.engine.RespondToAgreement(ctx, a.ID, f.buyer.ID, agreement.StatusAccepted, "")
	if err != nil {
		t.Fatalf("retry respond: %v", err)
	}
	if result.Transaction == nil {
		t.Fatal("expected the retry to create the transaction")
	}
}

func TestRespondToAgreement_RejectSkipsPairedStore(t *testing.T) {
	f, store := newPairedFixture(t)
	ctx := context.Background()
	a := f.sendAgreement(t, "Used Laptop", 25000)

	result, err := f.engine.RespondToAgreement(ctx, a.ID, f.buyer.ID, agreement.StatusRejected, "price too high")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("rejection should not touch the paired path, got %d calls", store.calls)
	}
	if result.Agreement.Status != agreement.StatusRejected {
		t.Fatalf("expected rejected agreement, got %s", result.Agreement.Status)
	}
}
