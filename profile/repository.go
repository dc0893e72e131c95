package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested profile does not exist.
	ErrNotFound = errors.New("profile: not found")
	// ErrDuplicatePhone signals the phone number is already registered.
	ErrDuplicatePhone = errors.New("profile: phone already exists")
)

// Repository handles data access for profiles plus the current-profile
// selector used by the presentation layer.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByPhone(ctx context.Context, phone string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	SetCurrent(ctx context.Context, id string) error
	Current(ctx context.Context) (Profile, error)
}

// CreateParams contains write parameters for creating profiles.
type CreateParams struct {
	Name         string
	Role         Role
	Phone        string
	Email        string
	PasscodeHash string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed profile repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	if !params.Role.Valid() {
		return Profile{}, fmt.Errorf("profile: invalid role %q", params.Role)
	}

	const insertSQL = `
		INSERT INTO profiles (name, role, phone, email, passcode_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, role, phone, email, passcode_hash, created_at
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, insertSQL, params.Name, params.Role, params.Phone, params.Email, params.PasscodeHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicatePhone
		}
		return Profile{}, fmt.Errorf("profile: create: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, name, role, phone, email, passcode_hash, created_at
		FROM profiles
		WHERE id = $1
	`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query by id: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetByPhone(ctx context.Context, phone string) (Profile, error) {
	const query = `
		SELECT id, name, role, phone, email, passcode_hash, created_at
		FROM profiles
		WHERE phone = $1
	`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query by phone: %w", err)
	}
	return p, nil
}

func (r *PGRepository) List(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT id, name, role, phone, email, passcode_hash, created_at
		FROM profiles
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, 2)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: iterate: %w", err)
	}
	return profiles, nil
}

// SetCurrent records the acting profile in the single-row selector table.
func (r *PGRepository) SetCurrent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO current_profile (slot, profile_id)
		VALUES (1, $1)
		ON CONFLICT (slot) DO UPDATE SET profile_id = EXCLUDED.profile_id
	`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("profile: set current: %w", err)
	}
	return nil
}

func (r *PGRepository) Current(ctx context.Context) (Profile, error) {
	const query = `
		SELECT p.id, p.name, p.role, p.phone, p.email, p.passcode_hash, p.created_at
		FROM current_profile c
		JOIN profiles p ON p.id = c.profile_id
		WHERE c.slot = 1
	`
	p, err := scanProfile(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query current: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Phone, &p.Email, &p.PasscodeHash, &p.CreatedAt)
	return p, err
}
