package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no agreement exists for the identifier.
	ErrNotFound = errors.New("agreement: not found")
	// ErrAlreadyResolved signals the agreement left pending before this
	// response landed.
	ErrAlreadyResolved = errors.New("agreement: already resolved")
)

// CreateParams enumerates the fields written when a proposal is sent.
type CreateParams struct {
	Title     string
	Amount    int64
	Type      Type
	Terms     string
	Sender    PartySnapshot
	Receiver  PartySnapshot
	ListingID string
}

// Repository handles data access for agreements. Respond is conditional on
// the stored status still being pending, so a double response loses cleanly.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Agreement, error)
	GetByID(ctx context.Context, id string) (Agreement, error)
	ListForProfile(ctx context.Context, profileID string) ([]Agreement, error)
	Respond(ctx context.Context, id string, status Status, feedback string) (Agreement, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const agColumns = `id, title, amount, type, terms,
	sender_profile_id, sender_name, sender_phone, sender_role,
	receiver_profile_id, receiver_name, receiver_phone, receiver_role,
	status, feedback, listing_id, created_at, responded_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Agreement, error) {
	if params.Amount <= 0 {
		return Agreement{}, fmt.Errorf("agreement: non-positive amount %d", params.Amount)
	}

	insertSQL := `
		INSERT INTO agreements
			(title, amount, type, terms,
			 sender_profile_id, sender_name, sender_phone, sender_role,
			 receiver_profile_id, receiver_name, receiver_phone, receiver_role,
			 status, listing_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'pending',$13)
		RETURNING ` + agColumns

	a, err := scanAgreement(r.pool.QueryRow(ctx, insertSQL,
		params.Title, params.Amount, params.Type, params.Terms,
		params.Sender.ProfileID, params.Sender.Name, params.Sender.Phone, params.Sender.Role,
		params.Receiver.ProfileID, params.Receiver.Name, params.Receiver.Phone, params.Receiver.Role,
		nullable(params.ListingID),
	))
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: insert: %w", err)
	}
	return a, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Agreement, error) {
	query := `SELECT ` + agColumns + ` FROM agreements WHERE id = $1`

	a, err := scanAgreement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: query by id: %w", err)
	}
	return a, nil
}

func (r *PGRepository) ListForProfile(ctx context.Context, profileID string) ([]Agreement, error) {
	query := `SELECT ` + agColumns + `
		FROM agreements
		WHERE sender_profile_id = $1 OR receiver_profile_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("agreement: list: %w", err)
	}
	defer rows.Close()

	out := make([]Agreement, 0, 8)
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("agreement: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Respond(ctx context.Context, id string, status Status, feedback string) (Agreement, error) {
	updateSQL := `
		UPDATE agreements
		SET status = $1, feedback = $2, responded_at = now()
		WHERE id = $3 AND status = 'pending'
		RETURNING ` + agColumns

	a, err := scanAgreement(r.pool.QueryRow(ctx, updateSQL, status, feedback, id))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Agreement{}, fmt.Errorf("agreement: respond: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Agreement{}, fmt.Errorf("agreement: recheck %s: %w", id, err)
	}
	if !exists {
		return Agreement{}, ErrNotFound
	}
	return Agreement{}, ErrAlreadyResolved
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

func scanAgreement(row rowScanner) (Agreement, error) {
	var (
		a         Agreement
		feedback  *string
		listingID *string
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Amount, &a.Type, &a.Terms,
		&a.Sender.ProfileID, &a.Sender.Name, &a.Sender.Phone, &a.Sender.Role,
		&a.Receiver.ProfileID, &a.Receiver.Name, &a.Receiver.Phone, &a.Receiver.Role,
		&a.Status, &feedback, &listingID, &a.CreatedAt, &a.RespondedAt,
	)
	if err != nil {
		return Agreement{}, err
	}
	if feedback != nil {
		a.Feedback = *feedback
	}
	if listingID != nil {
		a.ListingID = *listingID
	}
	return a, nil
}
