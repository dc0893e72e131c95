package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the notification does not exist.
var ErrNotFound = errors.New("notification: not found")

// CreateParams is what the projector emits for a single transition.
type CreateParams struct {
	RecipientID string
	Type        Type
	Title       string
	Message     string
	RelatedID   string
}

// Repository handles data access for notifications.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Notification, error)
	GetByID(ctx context.Context, id string) (Notification, error)
	ListForRecipient(ctx context.Context, recipientID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const ntColumns = `id, recipient_profile_id, type, title, message, related_id, read, created_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Notification, error) {
	insertSQL := `
		INSERT INTO notifications (recipient_profile_id, type, title, message, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + ntColumns

	n, err := scanNotification(r.pool.QueryRow(ctx, insertSQL,
		params.RecipientID, params.Type, params.Title, params.Message, nullable(params.RelatedID)))
	if err != nil {
		return Notification{}, fmt.Errorf("notification: insert: %w", err)
	}
	return n, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Notification, error) {
	query := `SELECT ` + ntColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("notification: query by id: %w", err)
	}
	return n, nil
}

func (r *PGRepository) ListForRecipient(ctx context.Context, recipientID string) ([]Notification, error) {
	query := `SELECT ` + ntColumns + `
		FROM notifications
		WHERE recipient_profile_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("notification: list: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0, 8)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notification: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notification: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_profile_id = $1 AND read = false`,
		recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notification: count unread: %w", err)
	}
	return count, nil
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

func scanNotification(row rowScanner) (Notification, error) {
	var (
		n         Notification
		relatedID *string
	)
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &relatedID, &n.Read, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	if relatedID != nil {
		n.RelatedID = *relatedID
	}
	return n, nil
}
