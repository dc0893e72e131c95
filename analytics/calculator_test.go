package analytics

import (
	"context"
	"testing"

	"escrowflow/notification"
	"escrowflow/transaction"
)

func seedTransaction(t *testing.T, repo transaction.Repository, buyerID, sellerID string, amount int64) transaction.Transaction {
	t.Helper()
	tx, err := repo.Create(context.Background(), transaction.CreateParams{
		Title:  "Deal",
		Amount: amount,
		Buyer:  transaction.Party{ProfileID: buyerID, Name: "Buyer"},
		Seller: transaction.Party{ProfileID: sellerID, Name: "Seller"},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func complete(t *testing.T, repo transaction.Repository, tx transaction.Transaction) {
	t.Helper()
	ctx := context.Background()
	steps := []struct{ from, to transaction.Stage }{
		{transaction.StageContractSent, transaction.StageContractAccepted},
		{transaction.StageContractAccepted, transaction.StagePaymentMade},
		{transaction.StagePaymentMade, transaction.StageDelivered},
	}
	for _, s := range steps {
		if _, err := repo.ApplyStage(ctx, tx.ID, s.from, s.to, transaction.StatusInProgress); err != nil {
			t.Fatalf("advance %s: %v", s.to, err)
		}
	}
	if _, err := repo.ApplyStage(ctx, tx.ID, transaction.StageDelivered, transaction.StageCompleted, transaction.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestEscrowBalance_SumsInProgressOnly(t *testing.T) {
	repo := transaction.NewMemoryRepository()
	calc := NewCalculator(repo, notification.NewMemoryRepository())
	ctx := context.Background()

	seedTransaction(t, repo, "buyer-1", "seller-1", 25000)
	seedTransaction(t, repo, "buyer-1", "seller-1", 500)
	done := seedTransaction(t, repo, "buyer-1", "seller-1", 2000)
	complete(t, repo, done)

	balance, err := calc.EscrowBalance(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if balance != 25500 {
		t.Fatalf("expected 25500 held, got %d", balance)
	}

	// The seller is party to the same deals and sees the same held amount.
	balance, err = calc.EscrowBalance(ctx, "seller-1")
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if balance != 25500 {
		t.Fatalf("expected 25500 held for seller, got %d", balance)
	}
}

func TestEscrowBalance_IsolatedPerProfile(t *testing.T) {
	repo := transaction.NewMemoryRepository()
	calc := NewCalculator(repo, notification.NewMemoryRepository())
	ctx := context.Background()

	seedTransaction(t, repo, "buyer-1", "seller-1", 1000)
	seedTransaction(t, repo, "buyer-2", "seller-2", 7000)

	balance, err := calc.EscrowBalance(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if balance != 1000 {
		t.Fatalf("expected 1000, got %d", balance)
	}

	balance, err = calc.EscrowBalance(ctx, "stranger")
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0 for a profile with no deals, got %d", balance)
	}
}

func TestCountsByStatus(t *testing.T) {
	repo := transaction.NewMemoryRepository()
	calc := NewCalculator(repo, notification.NewMemoryRepository())
	ctx := context.Background()

	seedTransaction(t, repo, "buyer-1", "seller-1", 1000)
	done := seedTransaction(t, repo, "buyer-1", "seller-1", 2000)
	complete(t, repo, done)
	frozen := seedTransaction(t, repo, "buyer-1", "seller-1", 3000)
	if _, err := repo.MarkDisputed(ctx, frozen.ID, "wrong item", false); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}

	counts, err := calc.CountsByStatus(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := Counts{All: 3, InProgress: 1, Completed: 1, Disputed: 1}
	if counts != want {
		t.Fatalf("expected %+v, got %+v", want, counts)
	}
}

func TestProfileStats_ZeroTransactions(t *testing.T) {
	calc := NewCalculator(transaction.NewMemoryRepository(), notification.NewMemoryRepository())

	stats, err := calc.ProfileStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 || stats.Completed != 0 {
		t.Fatalf("expected zero counts, got %+v", stats)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("expected success rate 0, got %f", stats.SuccessRate)
	}
	if stats.AverageValue != 0 {
		t.Fatalf("expected average 0, got %d", stats.AverageValue)
	}
}

func TestProfileStats_RateAndAverage(t *testing.T) {
	repo := transaction.NewMemoryRepository()
	calc := NewCalculator(repo, notification.NewMemoryRepository())

	seedTransaction(t, repo, "buyer-1", "seller-1", 1000)
	done := seedTransaction(t, repo, "buyer-1", "seller-1", 3000)
	complete(t, repo, done)

	stats, err := calc.ProfileStats(context.Background(), "buyer-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Completed != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.SuccessRate != 50 {
		t.Fatalf("expected success rate 50, got %f", stats.SuccessRate)
	}
	if stats.AverageValue != 2000 {
		t.Fatalf("expected average 2000, got %d", stats.AverageValue)
	}
}

func TestUnreadCount(t *testing.T) {
	notifications := notification.NewMemoryRepository()
	calc := NewCalculator(transaction.NewMemoryRepository(), notifications)
	ctx := context.Background()

	first, err := notifications.Create(ctx, notification.CreateParams{
		RecipientID: "buyer-1", Type: notification.TypeContractSent, Title: "t", Message: "m",
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if _, err := notifications.Create(ctx, notification.CreateParams{
		RecipientID: "buyer-1", Type: notification.TypePaymentReceived, Title: "t", Message: "m",
	}); err != nil {
		t.Fatalf("create notification: %v", err)
	}

	count, err := calc.UnreadCount(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}

	if err := notifications.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = calc.UnreadCount(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread, got %d", count)
	}
}
