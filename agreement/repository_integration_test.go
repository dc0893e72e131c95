package agreement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"escrowflow/profile"
	"escrowflow/transaction"
)

// TestRespondAccept_Integration connects to a real PostgreSQL via
// DATABASE_URL and verifies that accepting a proposal and creating its
// transaction commit together or not at all.
func TestRespondAccept_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	var schemaOK bool
	if err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'agreements')`,
	).Scan(&schemaOK); err != nil || !schemaOK {
		t.Skip("database schema missing; apply migrations/0001_init.sql first")
	}

	var buyerID, sellerID string
	suffix := time.Now().UnixNano()
	if err := pool.QueryRow(ctx, `INSERT INTO profiles (name, role, phone) VALUES ($1, 'buyer', $2) RETURNING id`,
		"Amit Singh", fmt.Sprintf("b%d", suffix)).Scan(&buyerID); err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO profiles (name, role, phone) VALUES ($1, 'seller', $2) RETURNING id`,
		"Rahul Kumar", fmt.Sprintf("s%d", suffix)).Scan(&sellerID); err != nil {
		t.Fatalf("seed seller: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_, _ = pool.Exec(ctx2, `DELETE FROM transactions WHERE buyer_profile_id = $1`, buyerID)
		_, _ = pool.Exec(ctx2, `DELETE FROM agreements WHERE receiver_profile_id = $1`, buyerID)
		_, _ = pool.Exec(ctx2, `DELETE FROM profiles WHERE id IN ($1, $2)`, buyerID, sellerID)
	})

	repo := NewRepository(pool)

	a, err := repo.Create(ctx, CreateParams{
		Title:  "Used Laptop",
		Amount: 25000,
		Type:   TypeGoods,
		Terms:  "3-day delivery",
		Sender: PartySnapshot{
			ProfileID: sellerID, Name: "Rahul Kumar",
			Phone: fmt.Sprintf("s%d", suffix), Role: profile.RoleSeller,
		},
		Receiver: PartySnapshot{
			ProfileID: buyerID, Name: "Amit Singh",
			Phone: fmt.Sprintf("b%d", suffix), Role: profile.RoleBuyer,
		},
	})
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}

	create := transaction.CreateParams{
		Title:  a.Title,
		Amount: a.Amount,
		Buyer:  transaction.Party{ProfileID: buyerID, Name: "Amit Singh", Phone: fmt.Sprintf("b%d", suffix)},
		Seller: transaction.Party{ProfileID: sellerID, Name: "Rahul Kumar", Phone: fmt.Sprintf("s%d", suffix)},
	}

	// A failed insert must roll back the flip, leaving the respond retryable.
	bad := create
	bad.Amount = 0
	if _, _, err := repo.RespondAccept(ctx, a.ID, "", bad); err == nil {
		t.Fatal("expected zero-amount transaction to fail the accept")
	}
	cur, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get agreement after rollback: %v", err)
	}
	if cur.Status != StatusPending {
		t.Fatalf("expected pending agreement after rollback, got %s", cur.Status)
	}
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE agreement_id = $1`, a.ID).Scan(&count); err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no transaction after rollback, got %d", count)
	}

	updated, tx, err := repo.RespondAccept(ctx, a.ID, "", create)
	if err != nil {
		t.Fatalf("respond accept: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Fatalf("expected accepted agreement, got %s", updated.Status)
	}
	if tx.AgreementID != a.ID {
		t.Fatalf("expected transaction to reference agreement %s, got %q", a.ID, tx.AgreementID)
	}
	if tx.Stage != transaction.StageContractSent {
		t.Fatalf("expected transaction at contract_sent, got %s", tx.Stage)
	}

	if _, _, err := repo.RespondAccept(ctx, a.ID, "", create); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on replay, got %v", err)
	}
}
