package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/eventwire/internal/domain"
)

// notificationColumns must match the Scan order in scanNotification.
const notificationColumns = `id, recipient_id, title, message, kind, link, is_read, created_at`

const defaultPageSize = 50

// NotificationRepo implements domain.NotificationStore backed by PostgreSQL.
type NotificationRepo struct {
	pool *pgxpool.Pool
}

var _ domain.NotificationStore = (*NotificationRepo)(nil)

// NewNotificationRepo creates a NotificationRepo from the shared pool.
func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.RecipientID, &n.Title, &n.Message,
		&n.Kind, &n.Link, &n.Read, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	record, err := scanNotification(r.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, title, message, kind, link)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		n.RecipientID, n.Title, n.Message, n.Kind, n.Link))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return record, nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotificationNotFound
	}
	return scanNotification(r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, filter domain.NotificationFilter) (*domain.NotificationPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := max(filter.Offset, 0)

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND ($2::bool = FALSE OR is_read = FALSE)
	`, recipientID, filter.UnreadOnly).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1 AND ($2::bool = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, recipientID, filter.UnreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	page := &domain.NotificationPage{Items: []domain.Notification{}, Total: total}
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		page.Items = append(page.Items, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification rows: %w", err)
	}
	return page, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotificationNotFound
	}
	return scanNotification(r.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1
		RETURNING `+notificationColumns, id))
}
