package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"escrowflow/transaction"
)

// RespondAccept flips a pending agreement to accepted and creates its
// transaction inside one database transaction. A failure on either statement
// rolls both back, so an accepted agreement can never be left without its
// transaction; the caller may simply retry the respond.
func (r *PGRepository) RespondAccept(ctx context.Context, id, feedback string, create transaction.CreateParams) (Agreement, transaction.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Agreement{}, transaction.Transaction{}, fmt.Errorf("agreement: begin accept: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
		UPDATE agreements
		SET status = 'accepted', feedback = $1, responded_at = now()
		WHERE id = $2 AND status = 'pending'
		RETURNING ` + agColumns

	a, err := scanAgreement(tx.QueryRow(ctx, updateSQL, feedback, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, transaction.Transaction{}, fmt.Errorf("agreement: accept: %w", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE id = $1)`, id).Scan(&exists); err != nil {
			return Agreement{}, transaction.Transaction{}, fmt.Errorf("agreement: recheck %s: %w", id, err)
		}
		if !exists {
			return Agreement{}, transaction.Transaction{}, ErrNotFound
		}
		return Agreement{}, transaction.Transaction{}, ErrAlreadyResolved
	}

	create.AgreementID = a.ID
	t, err := transaction.CreateInTx(ctx, tx, create)
	if err != nil {
		return Agreement{}, transaction.Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, transaction.Transaction{}, fmt.Errorf("agreement: commit accept: %w", err)
	}
	return a, t, nil
}
