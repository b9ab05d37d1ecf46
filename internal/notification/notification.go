// Package notification manages the alerts shown in the dashboard's
// notification center.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/store"
)

// ErrNotFound is returned when marking an unknown notification.
var ErrNotFound = errors.New("notification not found")

type seed struct {
	typ     domain.NotificationType
	titles  map[domain.Language]string
	message string
	age     time.Duration
	read    bool
	link    string
}

// seeds are the alerts every new user starts with.
var seeds = []seed{
	{
		typ: domain.NotifyWarning,
		titles: map[domain.Language]string{
			domain.LangEnglish: "Weather Alert",
			domain.LangHindi:   "मौसम अलर्ट",
			domain.LangKannada: "ಹವಾಮಾನ ಎಚ್ಚರಿಕೆ",
		},
		message: "Heavy rainfall predicted in your region over the next 48 hours.",
		age:     30 * time.Minute,
		link:    "/weather",
	},
	{
		typ: domain.NotifyInfo,
		titles: map[domain.Language]string{
			domain.LangEnglish: "Crop Price Update",
			domain.LangHindi:   "फसल मूल्य अपडेट",
			domain.LangKannada: "ಬೆಳೆ ಬೆಲೆ ನವೀಕರಣ",
		},
		message: "Wheat prices have increased by 5% in your region.",
		age:     3 * time.Hour,
		link:    "/market",
	},
	{
		typ: domain.NotifyWarning,
		titles: map[domain.Language]string{
			domain.LangEnglish: "Pests & Disease Alert",
			domain.LangHindi:   "कीट और रोग अलर्ट",
			domain.LangKannada: "ಕೀಟ ಮತ್ತು ರೋಗ ಎಚ್ಚರಿಕೆ",
		},
		message: "Increased risk of aphid infestation in wheat crops in your area.",
		age:     24 * time.Hour,
		read:    true,
	},
}

// Service serves a user's notifications.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a notification service.
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// List returns a user's notifications, newest first. The starter alerts are
// created on first use. When notifications are disabled the list is empty.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.NotificationsEnabled {
		return []domain.Notification{}, nil
	}

	seeded, err := s.repo.SeedNotifications(ctx, userID, s.starter(prefs.Language))
	if err != nil {
		return nil, fmt.Errorf("seed notifications: %w", err)
	}
	if seeded {
		s.logger.Debug("Seeded notifications", "user_id", userID)
	}

	items, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkNotificationRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every notification of a user read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// UnreadCount returns the number of unread notifications, 0 when disabled.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	n, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Service) preferences(ctx context.Context, userID string) (domain.Preferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if prefs == nil {
		return domain.DefaultPreferences(), nil
	}
	return *prefs, nil
}

func (s *Service) starter(lang domain.Language) []domain.Notification {
	now := s.now()
	items := make([]domain.Notification, 0, len(seeds))
	for _, sd := range seeds {
		title, ok := sd.titles[lang]
		if !ok {
			title = sd.titles[domain.LangEnglish]
		}
		items = append(items, domain.Notification{
			ID:        uuid.NewString(),
			Type:      sd.typ,
			Title:     title,
			Message:   sd.message,
			Timestamp: now.Add(-sd.age),
			Read:      sd.read,
			Link:      sd.link,
		})
	}
	return items
}
