package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the transaction does not exist.
	ErrNotFound = errors.New("transaction: not found")
	// ErrConflict signals a conditional mutation lost against the current
	// stage or status. Two racing transition attempts serialize here; the
	// loser surfaces this instead of clobbering state.
	ErrConflict = errors.New("transaction: stale stage or status")
)

// CreateParams enumerates the fields copied into a new transaction. The
// engine builds them from an accepted agreement snapshot.
type CreateParams struct {
	Title       string
	Amount      int64
	Description string
	Buyer       Party
	Seller      Party
	AgreementID string
}

// Filter scopes a listing to a profile and optionally a status bucket.
// Zero-value Bucket means all buckets.
type Filter struct {
	ProfileID string
	Bucket    Status
}

// Repository handles data access for transactions. Mutators are conditional:
// they apply only when the stored stage/status still matches, so concurrent
// attempts on the same id serialize and the loser gets ErrConflict.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Transaction, error)
	GetByID(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter Filter) ([]Transaction, error)
	ApplyStage(ctx context.Context, id string, from, to Stage, status Status) (Transaction, error)
	MarkDisputed(ctx context.Context, id, details string, hasEvidence bool) (Transaction, error)
	SettleDispute(ctx context.Context, id string) (Transaction, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const txColumns = `id, title, amount, description, buyer_profile_id, buyer_name, buyer_phone,
	seller_profile_id, seller_name, seller_phone, stage, status, dispute_details, has_evidence,
	agreement_id, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Transaction, error) {
	return createIn(ctx, r.pool, params)
}

// CreateInTx inserts a transaction within the caller's open database
// transaction. The agreement store invokes it so the acceptance flip and the
// insert commit together: neither lands without the other.
func CreateInTx(ctx context.Context, tx pgx.Tx, params CreateParams) (Transaction, error) {
	return createIn(ctx, tx, params)
}

// querier is the read surface shared by the pool and an open pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createIn(ctx context.Context, q querier, params CreateParams) (Transaction, error) {
	if params.Amount <= 0 {
		return Transaction{}, fmt.Errorf("transaction: non-positive amount %d", params.Amount)
	}

	insertSQL := `
		INSERT INTO transactions
			(title, amount, description, buyer_profile_id, buyer_name, buyer_phone,
			 seller_profile_id, seller_name, seller_phone, stage, status, agreement_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'contract_sent','in_progress',$10)
		RETURNING ` + txColumns

	t, err := scanTransaction(q.QueryRow(ctx, insertSQL,
		params.Title,
		params.Amount,
		params.Description,
		params.Buyer.ProfileID,
		params.Buyer.Name,
		params.Buyer.Phone,
		params.Seller.ProfileID,
		params.Seller.Name,
		params.Seller.Phone,
		nullable(params.AgreementID),
	))
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction: insert: %w", err)
	}
	return t, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("transaction: query by id: %w", err)
	}
	return t, nil
}

func (r *PGRepository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	query := `SELECT ` + txColumns + `
		FROM transactions
		WHERE (buyer_profile_id = $1 OR seller_profile_id = $1)`
	args := []any{filter.ProfileID}
	if filter.Bucket != "" {
		query += ` AND status = $2`
		args = append(args, filter.Bucket)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction: list: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0, 8)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("transaction: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction: iterate: %w", err)
	}
	return out, nil
}

// ApplyStage advances the stage with a single conditional UPDATE. The WHERE
// clause carries the expected current stage, so a concurrent winner leaves
// nothing for the loser to match.
func (r *PGRepository) ApplyStage(ctx context.Context, id string, from, to Stage, status Status) (Transaction, error) {
	updateSQL := `
		UPDATE transactions
		SET stage = $1, status = $2, updated_at = now()
		WHERE id = $3 AND stage = $4 AND status = 'in_progress'
		RETURNING ` + txColumns

	t, err := scanTransaction(r.pool.QueryRow(ctx, updateSQL, to, status, id, from))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction: apply stage: %w", err)
	}
	return Transaction{}, r.classifyMiss(ctx, id)
}

// MarkDisputed freezes an in-progress transaction, recording the narrative
// verbatim. Stage is left untouched.
func (r *PGRepository) MarkDisputed(ctx context.Context, id, details string, hasEvidence bool) (Transaction, error) {
	updateSQL := `
		UPDATE transactions
		SET status = 'disputed', dispute_details = $1, has_evidence = $2, updated_at = now()
		WHERE id = $3 AND status = 'in_progress'
		RETURNING ` + txColumns

	t, err := scanTransaction(r.pool.QueryRow(ctx, updateSQL, details, hasEvidence, id))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction: mark disputed: %w", err)
	}
	return Transaction{}, r.classifyMiss(ctx, id)
}

// SettleDispute releases the held funds of a disputed transaction, closing it
// out at the terminal stage.
func (r *PGRepository) SettleDispute(ctx context.Context, id string) (Transaction, error) {
	updateSQL := `
		UPDATE transactions
		SET stage = 'completed', status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'disputed'
		RETURNING ` + txColumns

	t, err := scanTransaction(r.pool.QueryRow(ctx, updateSQL, id))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction: settle dispute: %w", err)
	}
	return Transaction{}, r.classifyMiss(ctx, id)
}

// classifyMiss distinguishes a missing row from a conditional-update loss.
func (r *PGRepository) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("transaction: recheck %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		t           Transaction
		description *string
		details     *string
		agreementID *string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Amount, &description,
		&t.Buyer.ProfileID, &t.Buyer.Name, &t.Buyer.Phone,
		&t.Seller.ProfileID, &t.Seller.Name, &t.Seller.Phone,
		&t.Stage, &t.Status, &details, &t.HasEvidence,
		&agreementID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	if description != nil {
		t.Description = *description
	}
	if details != nil {
		t.DisputeDetails = *details
	}
	if agreementID != nil {
		t.AgreementID = *agreementID
	}
	return t, nil
}
