package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"escrowflow/agreement"
	"escrowflow/notification"
	"escrowflow/profile"
	"escrowflow/transaction"
)

// EventRespondAgreement tags respond attempts on a proposal, for the
// diagnostics carried by InvalidTransitionError.
const EventRespondAgreement transaction.Event = "respond_agreement"

// ErrNotRecipient signals someone other than the addressee tried to flip a
// notification's read flag.
var ErrNotRecipient = errors.New("lifecycle: not the notification recipient")

// Engine is the sole writer of status and stage fields. It validates every
// transition against the acting profile's role and the current stage, mutates
// the store, and projects the notification owed to the counterparty. It holds
// no state of its own.
type Engine struct {
	profiles      profile.Repository
	agreements    agreement.Repository
	transactions  transaction.Repository
	notifications notification.Repository
}

// NewEngine wires the engine over the injected repositories.
func NewEngine(
	profiles profile.Repository,
	agreements agreement.Repository,
	transactions transaction.Repository,
	notifications notification.Repository,
) *Engine {
	return &Engine{
		profiles:      profiles,
		agreements:    agreements,
		transactions:  transactions,
		notifications: notifications,
	}
}

// CreateAgreementParams describes a proposal to be sent.
type CreateAgreementParams struct {
	SenderProfileID   string
	ReceiverProfileID string
	Title             string
	Amount            int64
	Type              agreement.Type
	Terms             string
	ListingID         string
}

// CreateAgreement sends a proposal from sender to receiver, snapshotting both
// identities, and notifies the receiver.
func (e *Engine) CreateAgreement(ctx context.Context, params CreateAgreementParams) (agreement.Agreement, error) {
	if params.Title == "" {
		return agreement.Agreement{}, &ValidationError{Field: "title", Reason: "required"}
	}
	if params.Amount <= 0 {
		return agreement.Agreement{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !params.Type.Valid() {
		return agreement.Agreement{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", params.Type)}
	}
	if params.SenderProfileID == params.ReceiverProfileID {
		return agreement.Agreement{}, &ValidationError{Field: "receiver", Reason: "sender and receiver must differ"}
	}

	sender, err := e.profiles.GetByID(ctx, params.SenderProfileID)
	if err != nil {
		return agreement.Agreement{}, err
	}
	receiver, err := e.profiles.GetByID(ctx, params.ReceiverProfileID)
	if err != nil {
		return agreement.Agreement{}, err
	}
	if sender.Role == receiver.Role {
		return agreement.Agreement{}, &ValidationError{Field: "receiver", Reason: "both parties have the same role"}
	}

	a, err := e.agreements.Create(ctx, agreement.CreateParams{
		Title:     params.Title,
		Amount:    params.Amount,
		Type:      params.Type,
		Terms:     params.Terms,
		Sender:    snapshot(sender),
		Receiver:  snapshot(receiver),
		ListingID: params.ListingID,
	})
	if err != nil {
		return agreement.Agreement{}, err
	}

	if _, err := e.notifications.Create(ctx, notification.ForAgreementSent(a)); err != nil {
		return agreement.Agreement{}, fmt.Errorf("lifecycle: notify agreement sent: %w", err)
	}
	return a, nil
}

// RespondResult is what a response to a proposal yields. Transaction is
// non-nil only for an acceptance.
type RespondResult struct {
	Agreement   agreement.Agreement
	Transaction *transaction.Transaction
}

// RespondToAgreement applies the receiver's one-shot decision. Accepting
// instantiates a transaction at contract_sent from the agreement snapshot;
// rejecting requires feedback and creates nothing.
func (e *Engine) RespondToAgreement(ctx context.Context, agreementID, actorProfileID string, decision agreement.Status, feedback string) (RespondResult, error) {
	if decision != agreement.StatusAccepted && decision != agreement.StatusRejected {
		return RespondResult{}, &ValidationError{Field: "decision", Reason: fmt.Sprintf("unknown decision %q", decision)}
	}

	a, err := e.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return RespondResult{}, err
	}
	if actorProfileID != a.Receiver.ProfileID {
		return RespondResult{}, &InvalidTransitionError{
			Event: EventRespondAgreement,
			Stage: transaction.Stage(a.Status),
			Role:  roleOfAgreementActor(a, actorProfileID),
		}
	}
	if a.Status != agreement.StatusPending {
		return RespondResult{}, &InvalidTransitionError{
			Event: EventRespondAgreement,
			Stage: transaction.Stage(a.Status),
			Role:  a.Receiver.Role,
		}
	}
	if decision == agreement.StatusRejected && feedback == "" {
		return RespondResult{}, &ValidationError{Field: "feedback", Reason: "required when rejecting"}
	}

	respondConflict := func(err error) error {
		if errors.Is(err, agreement.ErrAlreadyResolved) {
			return &InvalidTransitionError{
				Event: EventRespondAgreement,
				Stage: transaction.Stage(a.Status),
				Role:  a.Receiver.Role,
			}
		}
		return err
	}

	// An acceptance announces itself through the transaction it spawns; only
	// a rejection owes the sender a notification of its own.
	if decision == agreement.StatusRejected {
		updated, err := e.agreements.Respond(ctx, agreementID, decision, feedback)
		if err != nil {
			return RespondResult{}, respondConflict(err)
		}
		if _, err := e.notifications.Create(ctx, notification.ForAgreementRejected(updated)); err != nil {
			return RespondResult{}, fmt.Errorf("lifecycle: notify agreement rejected: %w", err)
		}
		return RespondResult{Agreement: updated}, nil
	}

	// Party identities are snapshotted at creation, so the pre-respond read
	// is good enough to shape the transaction.
	buyer, seller, err := partiesFromSnapshot(a)
	if err != nil {
		return RespondResult{}, err
	}
	create := transaction.CreateParams{
		Title:       a.Title,
		Amount:      a.Amount,
		Description: a.Terms,
		Buyer:       buyer,
		Seller:      seller,
		AgreementID: a.ID,
	}

	// The Postgres-backed store pairs the flip with the insert in one
	// database transaction, so a failed insert cannot strand an accepted
	// agreement without its transaction.
	if atomic, ok := e.agreements.(acceptanceStore); ok {
		updated, t, err := atomic.RespondAccept(ctx, agreementID, feedback, create)
		if err != nil {
			return RespondResult{}, respondConflict(err)
		}
		return RespondResult{Agreement: updated, Transaction: &t}, nil
	}

	updated, err := e.agreements.Respond(ctx, agreementID, decision, feedback)
	if err != nil {
		return RespondResult{}, respondConflict(err)
	}
	t, err := e.transactions.Create(ctx, create)
	if err != nil {
		return RespondResult{}, err
	}
	return RespondResult{Agreement: updated, Transaction: &t}, nil
}

// acceptanceStore is satisfied by stores that can flip the agreement and
// create its transaction atomically. The engine prefers it when available;
// the in-memory store falls back to the two-step path, where both writes
// share one process and cannot half-fail.
type acceptanceStore interface {
	RespondAccept(ctx context.Context, id, feedback string, create transaction.CreateParams) (agreement.Agreement, transaction.Transaction, error)
}

// AcceptContract moves a transaction from contract_sent to contract_accepted.
// Buyer only.
func (e *Engine) AcceptContract(ctx context.Context, transactionID, actorProfileID string) (transaction.Transaction, error) {
	return e.applyStage(ctx, transactionID, actorProfileID,
		transaction.EventAcceptContract, profile.RoleBuyer,
		transaction.StageContractSent, transaction.StageContractAccepted, transaction.StatusInProgress)
}

// ConfirmPayment moves a transaction from contract_accepted to payment_made.
// Buyer only; the amount is now held in escrow.
func (e *Engine) ConfirmPayment(ctx context.Context, transactionID, actorProfileID string) (transaction.Transaction, error) {
	return e.applyStage(ctx, transactionID, actorProfileID,
		transaction.EventConfirmPayment, profile.RoleBuyer,
		transaction.StageContractAccepted, transaction.StagePaymentMade, transaction.StatusInProgress)
}

// UploadDeliveryProof moves a transaction from payment_made to delivered.
// Seller only.
func (e *Engine) UploadDeliveryProof(ctx context.Context, transactionID, actorProfileID string) (transaction.Transaction, error) {
	return e.applyStage(ctx, transactionID, actorProfileID,
		transaction.EventUploadDeliveryProof, profile.RoleSeller,
		transaction.StagePaymentMade, transaction.StageDelivered, transaction.StatusInProgress)
}

// ConfirmDelivery moves a transaction from delivered to completed and
// releases the escrowed funds. Buyer only.
func (e *Engine) ConfirmDelivery(ctx context.Context, transactionID, actorProfileID string) (transaction.Transaction, error) {
	return e.applyStage(ctx, transactionID, actorProfileID,
		transaction.EventConfirmDelivery, profile.RoleBuyer,
		transaction.StageDelivered, transaction.StageCompleted, transaction.StatusCompleted)
}

// RaiseDispute freezes an in-progress transaction at its current stage,
// recording the narrative verbatim. Either party may raise it.
func (e *Engine) RaiseDispute(ctx context.Context, transactionID, actorProfileID, details string, hasEvidence bool) (transaction.Transaction, error) {
	if details == "" {
		return transaction.Transaction{}, &ValidationError{Field: "details", Reason: "required"}
	}

	t, err := e.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	role, ok := t.RoleOf(actorProfileID)
	if !ok {
		return transaction.Transaction{}, &InvalidTransitionError{Event: transaction.EventRaiseDispute, Stage: t.Stage}
	}
	if t.Status != transaction.StatusInProgress {
		return transaction.Transaction{}, &InvalidTransitionError{Event: transaction.EventRaiseDispute, Stage: t.Stage, Role: role}
	}

	updated, err := e.transactions.MarkDisputed(ctx, transactionID, details, hasEvidence)
	if err != nil {
		return transaction.Transaction{}, e.mapMutationErr(ctx, err, transactionID, transaction.EventRaiseDispute, role)
	}

	return updated, e.notifyTransition(ctx, transaction.EventRaiseDispute, updated, actorProfileID)
}

// ResolveDispute settles a disputed transaction, releasing its funds and
// closing it out at the terminal stage. Either party may settle.
func (e *Engine) ResolveDispute(ctx context.Context, transactionID, actorProfileID string) (transaction.Transaction, error) {
	t, err := e.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	role, ok := t.RoleOf(actorProfileID)
	if !ok {
		return transaction.Transaction{}, &InvalidTransitionError{Event: transaction.EventResolveDispute, Stage: t.Stage}
	}
	if t.Status != transaction.StatusDisputed {
		return transaction.Transaction{}, &InvalidTransitionError{Event: transaction.EventResolveDispute, Stage: t.Stage, Role: role}
	}

	updated, err := e.transactions.SettleDispute(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, e.mapMutationErr(ctx, err, transactionID, transaction.EventResolveDispute, role)
	}

	return updated, e.notifyTransition(ctx, transaction.EventResolveDispute, updated, actorProfileID)
}

// ListTransactions returns the profile's transactions, optionally filtered to
// one status bucket. Empty bucket means all.
func (e *Engine) ListTransactions(ctx context.Context, profileID string, bucket transaction.Status) ([]transaction.Transaction, error) {
	return e.transactions.List(ctx, transaction.Filter{ProfileID: profileID, Bucket: bucket})
}

// GetTransaction returns one transaction by id.
func (e *Engine) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	return e.transactions.GetByID(ctx, id)
}

// ListAgreements returns the proposals the profile sent or received.
func (e *Engine) ListAgreements(ctx context.Context, profileID string) ([]agreement.Agreement, error) {
	return e.agreements.ListForProfile(ctx, profileID)
}

// ListNotifications returns the profile's notification feed, newest first.
func (e *Engine) ListNotifications(ctx context.Context, profileID string) ([]notification.Notification, error) {
	return e.notifications.ListForRecipient(ctx, profileID)
}

// MarkNotificationRead flips the read flag. Only the recipient may do so.
func (e *Engine) MarkNotificationRead(ctx context.Context, notificationID, actorProfileID string) error {
	n, err := e.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.RecipientID != actorProfileID {
		return ErrNotRecipient
	}
	return e.notifications.MarkRead(ctx, notificationID)
}

// applyStage performs a role- and stage-gated forward transition, then emits
// the counterparty notification.
func (e *Engine) applyStage(
	ctx context.Context,
	transactionID, actorProfileID string,
	ev transaction.Event,
	want profile.Role,
	from, to transaction.Stage,
	status transaction.Status,
) (transaction.Transaction, error) {
	t, err := e.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	role, ok := t.RoleOf(actorProfileID)
	if !ok {
		return transaction.Transaction{}, &InvalidTransitionError{Event: ev, Stage: t.Stage}
	}
	if role != want {
		return transaction.Transaction{}, &InvalidTransitionError{Event: ev, Stage: t.Stage, Role: role}
	}
	if t.Status != transaction.StatusInProgress || t.Stage != from {
		return transaction.Transaction{}, &InvalidTransitionError{Event: ev, Stage: t.Stage, Role: role}
	}

	updated, err := e.transactions.ApplyStage(ctx, transactionID, from, to, status)
	if err != nil {
		return transaction.Transaction{}, e.mapMutationErr(ctx, err, transactionID, ev, role)
	}

	return updated, e.notifyTransition(ctx, ev, updated, actorProfileID)
}

func (e *Engine) notifyTransition(ctx context.Context, ev transaction.Event, t transaction.Transaction, actorProfileID string) error {
	params, ok := notification.ForTransition(ev, t, actorProfileID)
	if !ok {
		return fmt.Errorf("lifecycle: no projection for event %s", ev)
	}
	if _, err := e.notifications.Create(ctx, params); err != nil {
		return fmt.Errorf("lifecycle: notify %s: %w", ev, err)
	}
	return nil
}

// mapMutationErr turns a conditional-update loss into the InvalidTransition
// the losing caller should see, refreshing the stage for diagnostics.
func (e *Engine) mapMutationErr(ctx context.Context, err error, transactionID string, ev transaction.Event, role profile.Role) error {
	if !errors.Is(err, transaction.ErrConflict) {
		return err
	}
	stage := transaction.Stage("")
	if cur, rerr := e.transactions.GetByID(ctx, transactionID); rerr == nil {
		stage = cur.Stage
	}
	return &InvalidTransitionError{Event: ev, Stage: stage, Role: role}
}

func snapshot(p profile.Profile) agreement.PartySnapshot {
	return agreement.PartySnapshot{
		ProfileID: p.ID,
		Name:      p.Name,
		Phone:     p.Phone,
		Role:      p.Role,
	}
}

func partiesFromSnapshot(a agreement.Agreement) (buyer, seller transaction.Party, err error) {
	toParty := func(s agreement.PartySnapshot) transaction.Party {
		return transaction.Party{ProfileID: s.ProfileID, Name: s.Name, Phone: s.Phone}
	}
	switch {
	case a.Sender.Role == profile.RoleBuyer && a.Receiver.Role == profile.RoleSeller:
		return toParty(a.Sender), toParty(a.Receiver), nil
	case a.Sender.Role == profile.RoleSeller && a.Receiver.Role == profile.RoleBuyer:
		return toParty(a.Receiver), toParty(a.Sender), nil
	default:
		return transaction.Party{}, transaction.Party{}, fmt.Errorf("lifecycle: agreement %s has no buyer/seller pairing", a.ID)
	}
}

func roleOfAgreementActor(a agreement.Agreement, actorProfileID string) profile.Role {
	switch actorProfileID {
	case a.Sender.ProfileID:
		return a.Sender.Role
	case a.Receiver.ProfileID:
		return a.Receiver.Role
	default:
		return ""
	}
}
