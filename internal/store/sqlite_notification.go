package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

// SeedNotifications inserts items in a single transaction unless the user was
// already seeded.
func (s *SQLiteStore) SeedNotifications(ctx context.Context, userID string, items []domain.Notification) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back notification seed", "user_id", userID, "error", rbErr)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO notification_seeds (user_id, seeded_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("mark seeded: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	for _, n := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, type, title, message, link, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, userID, string(n.Type), n.Title, n.Message, nullable(n.Link), n.Read, n.Timestamp.Unix())
		if err != nil {
			return false, fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	query := `
		SELECT id, type, title, message, link, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close notification rows", "error", closeErr)
		}
	}()

	out := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		var kind string
		var link sql.NullString
		var created int64
		if err := rows.Scan(&n.ID, &kind, &n.Title, &n.Message, &link, &n.Read, &created); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		n.UserID = userID
		n.Type = domain.NotificationType(kind)
		n.Link = link.String
		n.Timestamp = time.Unix(created, 0)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead marks one notification read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkAllNotificationsRead marks every notification of a user read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}

// CountUnreadNotifications counts a user's unread notifications.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
