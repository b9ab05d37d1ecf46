package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/shared"
)

// GetChatSession retrieves the chat transcript for a user.
func (s *SQLiteStore) GetChatSession(ctx context.Context, userID string) (*domain.ChatSession, error) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	query := `
		SELECT user_id, transcript_json, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?`

	var session domain.ChatSession
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&session.UserID, &session.TranscriptJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}

// UpsertChatSession creates or updates a chat transcript.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, session *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (user_id, transcript_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			transcript_json = excluded.transcript_json,
			updated_at = excluded.updated_at`

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return shared.RetryOnConflict(ctx, s.retry, "upsert chat session", func() error {
		s.chatMu.Lock()
		defer s.chatMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			session.UserID, session.TranscriptJSON, createdAt.Unix(), updatedAt.Unix())
		if err != nil {
			return fmt.Errorf("upsert chat session: %w", err)
		}
		return nil
	})
}

// DeleteChatSession removes a chat transcript.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, userID string) error {
	return shared.RetryOnConflict(ctx, s.retry, "delete chat session", func() error {
		s.chatMu.Lock()
		defer s.chatMu.Unlock()

		if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("delete chat session: %w", err)
		}
		return nil
	})
}

// CleanupIdleChatSessions removes transcripts not updated within ttl.
func (s *SQLiteStore) CleanupIdleChatSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	var removed int64
	err := shared.RetryOnConflict(ctx, s.retry, "cleanup chat sessions", func() error {
		s.chatMu.Lock()
		defer s.chatMu.Unlock()

		result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("cleanup chat sessions: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	return removed, err
}
