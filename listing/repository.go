package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested listing does not exist.
var ErrNotFound = errors.New("listing: not found")

// CreateParams contains write parameters for publishing a listing.
type CreateParams struct {
	SellerID    string
	SellerPhone string
	Title       string
	Kind        Kind
	Price       int64
	Terms       string
	Description string
}

// Repository provides access to the listing catalog.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	ListActiveBySeller(ctx context.Context, sellerPhone string) ([]Listing, error)
	Deactivate(ctx context.Context, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const lsColumns = `id, seller_profile_id, seller_phone, title, kind, price, terms, description, status, created_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Listing, error) {
	if params.Price <= 0 {
		return Listing{}, fmt.Errorf("listing: non-positive price %d", params.Price)
	}

	insertSQL := `
		INSERT INTO listings (seller_profile_id, seller_phone, title, kind, price, terms, description, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'active')
		RETURNING ` + lsColumns

	l, err := scanListing(r.pool.QueryRow(ctx, insertSQL,
		params.SellerID, params.SellerPhone, params.Title, params.Kind,
		params.Price, params.Terms, params.Description))
	if err != nil {
		return Listing{}, fmt.Errorf("listing: insert: %w", err)
	}
	return l, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Listing, error) {
	query := `SELECT ` + lsColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: query by id: %w", err)
	}
	return l, nil
}

func (r *PGRepository) ListActiveBySeller(ctx context.Context, sellerPhone string) ([]Listing, error) {
	query := `SELECT ` + lsColumns + `
		FROM listings
		WHERE seller_phone = $1 AND status = 'active'
		ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, sellerPhone)
	if err != nil {
		return nil, fmt.Errorf("listing: list: %w", err)
	}
	defer rows.Close()

	out := make([]Listing, 0, 8)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listing: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE listings SET status = 'inactive' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("listing: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (Listing, error) {
	var (
		l           Listing
		description *string
	)
	err := row.Scan(&l.ID, &l.SellerID, &l.SellerPhone, &l.Title, &l.Kind,
		&l.Price, &l.Terms, &description, &l.Status, &l.CreatedAt)
	if err != nil {
		return Listing{}, err
	}
	if description != nil {
		l.Description = *description
	}
	return l, nil
}
