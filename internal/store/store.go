// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

// Repository defines the interface for persisting farmer data.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record, including the profile.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// UpdateProfile replaces the profile attached to a user.
	UpdateProfile(ctx context.Context, userID string, profile domain.Profile) error

	// GetPreferences returns the stored preferences, or nil if none are saved.
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)

	// UpsertPreferences stores a user's preferences.
	UpsertPreferences(ctx context.Context, userID string, prefs domain.Preferences) error

	// GetChatSession retrieves the chat transcript for a user.
	GetChatSession(ctx context.Context, userID string) (*domain.ChatSession, error)

	// UpsertChatSession creates or updates a chat transcript.
	UpsertChatSession(ctx context.Context, session *domain.ChatSession) error

	// DeleteChatSession removes a chat transcript.
	DeleteChatSession(ctx context.Context, userID string) error

	// CleanupIdleChatSessions removes transcripts not updated within ttl.
	CleanupIdleChatSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// GetLocation returns the cached location of a user.
	GetLocation(ctx context.Context, userID string) (*domain.UserLocation, error)

	// UpsertLocation caches a user's location.
	UpsertLocation(ctx context.Context, userID string, loc domain.UserLocation) error

	// DeleteStaleLocations removes locations last updated before maxAge ago.
	DeleteStaleLocations(ctx context.Context, maxAge time.Duration) (int64, error)

	// SeedNotifications inserts the given notifications unless the user was
	// already seeded. It reports whether anything was inserted.
	SeedNotifications(ctx context.Context, userID string, items []domain.Notification) (bool, error)

	// ListNotifications returns a user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)

	// MarkNotificationRead marks one notification read. It reports whether
	// the notification exists.
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)

	// MarkAllNotificationsRead marks every notification of a user read.
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)

	// CountUnreadNotifications counts a user's unread notifications.
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
