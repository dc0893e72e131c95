package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"escrowflow/agreement"
	"escrowflow/lifecycle"
	"escrowflow/notification"
	"escrowflow/transaction"
)

// The actors below hammer one engine instance over a live database. Rejected
// transitions are the expected outcome of racing; only infrastructure errors
// bubble up.

// Parties pins the two fixed identities the actors play.
type Parties struct {
	SellerID string
	BuyerID  string
}

func tolerable(err error) bool {
	var invalid *lifecycle.InvalidTransitionError
	var validation *lifecycle.ValidationError
	switch {
	case err == nil:
		return true
	case errors.As(err, &invalid), errors.As(err, &validation):
		return true
	case errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, lifecycle.ErrNotRecipient):
		return true
	default:
		return false
	}
}

func pause() {
	time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
}

// Proposer keeps sending fresh proposals from the seller to the buyer.
func Proposer(ctx context.Context, engine *lifecycle.Engine, p Parties, stop <-chan struct{}) error {
	kinds := []agreement.Type{agreement.TypeGoods, agreement.TypeServices}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := engine.CreateAgreement(ctx, lifecycle.CreateAgreementParams{
			SenderProfileID:   p.SellerID,
			ReceiverProfileID: p.BuyerID,
			Title:             fmt.Sprintf("Deal %d", rand.Int63()),
			Amount:            int64(100 + rand.Intn(10000)),
			Type:              kinds[rand.Intn(len(kinds))],
			Terms:             "stress terms",
		})
		if !tolerable(err) {
			return fmt.Errorf("proposer: %w", err)
		}
		pause()
	}
}

// Responder answers pending proposals as the buyer, mostly accepting. Two
// responders racing the same proposal exercise the one-shot guarantee.
func Responder(ctx context.Context, engine *lifecycle.Engine, p Parties, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		agreements, err := engine.ListAgreements(ctx, p.BuyerID)
		if err != nil {
			return fmt.Errorf("responder list: %w", err)
		}
		for _, a := range agreements {
			if a.Status != agreement.StatusPending {
				continue
			}
			decision := agreement.StatusAccepted
			feedback := ""
			if rand.Intn(4) == 0 {
				decision = agreement.StatusRejected
				feedback = "not interested"
			}
			if _, err := engine.RespondToAgreement(ctx, a.ID, p.BuyerID, decision, feedback); !tolerable(err) {
				return fmt.Errorf("responder respond: %w", err)
			}
		}
		pause()
	}
}

// Advancer pushes every in-progress transaction one step forward, acting as
// whichever party the next transition requires. Concurrent advancers racing
// the same transaction must produce exactly one winner per step.
func Advancer(ctx context.Context, engine *lifecycle.Engine, p Parties, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		txs, err := engine.ListTransactions(ctx, p.BuyerID, transaction.StatusInProgress)
		if err != nil {
			return fmt.Errorf("advancer list: %w", err)
		}
		for _, t := range txs {
			var stepErr error
			switch t.Stage {
			case transaction.StageContractSent:
				_, stepErr = engine.AcceptContract(ctx, t.ID, p.BuyerID)
			case transaction.StageContractAccepted:
				_, stepErr = engine.ConfirmPayment(ctx, t.ID, p.BuyerID)
			case transaction.StagePaymentMade:
				_, stepErr = engine.UploadDeliveryProof(ctx, t.ID, p.SellerID)
			case transaction.StageDelivered:
				_, stepErr = engine.ConfirmDelivery(ctx, t.ID, p.BuyerID)
			}
			if !tolerable(stepErr) {
				return fmt.Errorf("advancer step at %s: %w", t.Stage, stepErr)
			}
		}
		pause()
	}
}

// Disputer freezes random in-progress transactions and settles random
// disputed ones, from either side of the table.
func Disputer(ctx context.Context, engine *lifecycle.Engine, p Parties, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		actor := p.BuyerID
		if rand.Intn(2) == 0 {
			actor = p.SellerID
		}

		inProgress, err := engine.ListTransactions(ctx, actor, transaction.StatusInProgress)
		if err != nil {
			return fmt.Errorf("disputer list: %w", err)
		}
		if len(inProgress) > 0 && rand.Intn(3) == 0 {
			t := inProgress[rand.Intn(len(inProgress))]
			if _, err := engine.RaiseDispute(ctx, t.ID, actor, "stress dispute", rand.Intn(2) == 0); !tolerable(err) {
				return fmt.Errorf("disputer raise: %w", err)
			}
		}

		disputed, err := engine.ListTransactions(ctx, actor, transaction.StatusDisputed)
		if err != nil {
			return fmt.Errorf("disputer list disputed: %w", err)
		}
		for _, t := range disputed {
			if rand.Intn(2) == 0 {
				continue
			}
			if _, err := engine.ResolveDispute(ctx, t.ID, actor); !tolerable(err) {
				return fmt.Errorf("disputer resolve: %w", err)
			}
		}
		pause()
	}
}

// Reader consumes both notification feeds and acknowledges what it reads,
// exercising the recipient gate while mutators run.
func Reader(ctx context.Context, engine *lifecycle.Engine, p Parties, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		for _, id := range []string{p.BuyerID, p.SellerID} {
			feed, err := engine.ListNotifications(ctx, id)
			if err != nil {
				return fmt.Errorf("reader list: %w", err)
			}
			for _, n := range feed {
				if n.Read || rand.Intn(3) != 0 {
					continue
				}
				if err := engine.MarkNotificationRead(ctx, n.ID, id); !tolerable(err) {
					return fmt.Errorf("reader mark read: %w", err)
				}
			}
		}
		pause()
	}
}
