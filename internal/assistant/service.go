// Package assistant runs the farmer chat assistant: it keeps each user's
// transcript, routes questions through the chat client and exposes the
// conversation over HTTP.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/store"
)

var (
	// ErrRateLimited is returned when a user sends too many messages.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrMessageNotFound is returned by Retry for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotRetryable is returned by Retry for a message that did not fail.
	ErrNotRetryable = errors.New("message is not retryable")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is required")
)

// Asker answers a chat request. *chat.Client implements it.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (chat.Reply, error)
	Synthetic(req chat.Request) chat.Reply
}

// NetworkStatus reports whether the server can reach the internet.
type NetworkStatus interface {
	Status() domain.NetworkStatus
}

// LocationSource returns a user's last known location.
type LocationSource interface {
	Current(ctx context.Context, userID string) (*domain.UserLocation, error)
}

// Turn is one message submitted by a user.
type Turn struct {
	UserID    string
	SessionID string
	Channel   string
	Text      string
}

// Exchange is the outcome of a Send or Retry. Reply is nil when the message failed.
type Exchange struct {
	UserMessage domain.ChatMessage  `json:"user_message"`
	Reply       *domain.ChatMessage `json:"reply,omitempty"`
	Source      domain.Source       `json:"source,omitempty"`
}

// Config tunes a Service.
type Config struct {
	TranscriptLimit   int
	RequestsPerWindow int
	WindowDuration    time.Duration
	// Network, when set and offline, makes every turn answer synthetically
	// without touching the chat backend.
	Network NetworkStatus
}

// Service orchestrates chat exchanges per user.
type Service struct {
	repo      store.Repository
	asker     Asker
	locations LocationSource
	limiter   *RateLimiter
	network   NetworkStatus
	log       ConversationLogger
	limit     int
	logger    *slog.Logger
	now       func() time.Time
	locks     keyedMutex
}

// NewService creates an assistant service. locations and convLog may be nil.
func NewService(repo store.Repository, asker Asker, locations LocationSource, convLog ConversationLogger, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	if cfg.TranscriptLimit <= 0 {
		cfg.TranscriptLimit = 50
	}
	return &Service{
		repo:      repo,
		asker:     asker,
		locations: locations,
		limiter:   NewRateLimiter(cfg.RequestsPerWindow, cfg.WindowDuration),
		network:   cfg.Network,
		log:       convLog,
		limit:     cfg.TranscriptLimit,
		logger:    logger,
		now:       time.Now,
		locks:     keyedMutex{locks: make(map[string]*refMutex)},
	}
}

// Send appends the user's message, asks the chat client and appends the
// reply. When no reply can be produced the user message is kept as failed
// and the error wraps chat.ErrNoReply.
func (s *Service) Send(ctx context.Context, turn Turn) (*Exchange, error) {
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !s.limiter.Allow(turn.UserID) {
		return nil, ErrRateLimited
	}

	unlock := s.locks.Lock(turn.UserID)
	defer unlock()

	transcript, err := s.load(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}

	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: s.now(),
		Status:    domain.StatusSending,
		Type:      domain.TypeText,
	}
	transcript = append(transcript, msg)
	if err := s.save(ctx, turn.UserID, transcript); err != nil {
		return nil, err
	}
	s.logUser(turn, msg)

	turn.Text = text
	return s.complete(ctx, turn, transcript, len(transcript)-1)
}

// Retry resubmits a failed message. A successful reply is appended at the end
// of the transcript.
func (s *Service) Retry(ctx context.Context, turn Turn, messageID string) (*Exchange, error) {
	if !s.limiter.Allow(turn.UserID) {
		return nil, ErrRateLimited
	}

	unlock := s.locks.Lock(turn.UserID)
	defer unlock()

	transcript, err := s.load(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, m := range transcript {
		if m.ID == messageID && m.Sender == domain.SenderUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMessageNotFound
	}
	if transcript[idx].Status != domain.StatusFailed {
		return nil, ErrNotRetryable
	}

	transcript[idx].Status = domain.StatusSending
	turn.Text = transcript[idx].Text
	s.logUser(turn, transcript[idx])

	return s.complete(ctx, turn, transcript, idx)
}

// complete asks for a reply to transcript[idx] and persists the outcome.
func (s *Service) complete(ctx context.Context, turn Turn, transcript []domain.ChatMessage, idx int) (*Exchange, error) {
	reply, askErr := s.ask(ctx, s.request(ctx, turn))
	if askErr != nil {
		transcript[idx].Status = domain.StatusFailed
		if err := s.save(ctx, turn.UserID, transcript); err != nil {
			return nil, err
		}
		s.logger.Warn("Assistant reply failed", "user_id", turn.UserID, "message_id", transcript[idx].ID, "error", askErr)
		return &Exchange{UserMessage: transcript[idx]}, fmt.Errorf("ask assistant: %w", askErr)
	}

	transcript[idx].Status = domain.StatusSent
	answer := domain.ChatMessage{
		ID:        reply.ID,
		Text:      reply.Text,
		Sender:    domain.SenderAssistant,
		Timestamp: reply.Timestamp,
		Type:      reply.Type,
	}
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.Timestamp.IsZero() {
		answer.Timestamp = s.now()
	}
	userMsg := transcript[idx]
	transcript = append(transcript, answer)
	if err := s.save(ctx, turn.UserID, transcript); err != nil {
		return nil, err
	}

	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     turn.UserID,
		SessionID:  turn.SessionID,
		Channel:    turn.Channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: reply.Text,
		Content:    cleanForReadability(reply.Text),
		Meta: map[string]any{
			"source":         reply.Source,
			"category":       reply.Category,
			"correlation_id": reply.CorrelationID,
			"reply_to":       userMsg.ID,
		},
	})

	return &Exchange{UserMessage: userMsg, Reply: &answer, Source: reply.Source}, nil
}

func (s *Service) ask(ctx context.Context, req chat.Request) (chat.Reply, error) {
	if s.network != nil && s.network.Status() == domain.NetworkOffline {
		return s.asker.Synthetic(req), nil
	}
	return s.asker.Ask(ctx, req)
}

// History returns the transcript, seeded with the greeting when empty.
func (s *Service) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	return s.load(ctx, userID)
}

// Clear drops the stored transcript and returns the fresh one.
func (s *Service) Clear(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.DeleteChatSession(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear transcript: %w", err)
	}
	return []domain.ChatMessage{s.greeting()}, nil
}

// Remaining reports how many messages a user may still send in the current window.
func (s *Service) Remaining(userID string) int {
	return s.limiter.Remaining(userID)
}

// Close stops background work and flushes the conversation log.
func (s *Service) Close() error {
	s.limiter.Stop()
	return s.log.Close()
}

func (s *Service) greeting() domain.ChatMessage {
	return domain.ChatMessage{
		ID:        "greeting",
		Text:      chat.Greeting,
		Sender:    domain.SenderAssistant,
		Timestamp: s.now(),
		Type:      domain.TypeText,
	}
}

func (s *Service) load(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	session, err := s.repo.GetChatSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if session == nil || session.TranscriptJSON == "" {
		return []domain.ChatMessage{s.greeting()}, nil
	}

	var transcript []domain.ChatMessage
	if err := json.Unmarshal([]byte(session.TranscriptJSON), &transcript); err != nil {
		s.logger.Warn("Discarding unreadable transcript", "user_id", userID, "error", err)
		return []domain.ChatMessage{s.greeting()}, nil
	}
	if len(transcript) == 0 {
		return []domain.ChatMessage{s.greeting()}, nil
	}
	return transcript, nil
}

// save persists the most recent messages, at most the transcript limit.
func (s *Service) save(ctx context.Context, userID string, transcript []domain.ChatMessage) error {
	if len(transcript) > s.limit {
		transcript = transcript[len(transcript)-s.limit:]
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	err = s.repo.UpsertChatSession(ctx, &domain.ChatSession{
		UserID:         userID,
		TranscriptJSON: string(data),
		UpdatedAt:      s.now(),
	})
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *Service) request(ctx context.Context, turn Turn) chat.Request {
	req := chat.Request{Text: turn.Text, Language: domain.LangEnglish}

	if prefs, err := s.repo.GetPreferences(ctx, turn.UserID); err != nil {
		s.logger.Debug("Preferences unavailable for chat", "user_id", turn.UserID, "error", err)
	} else if prefs != nil && prefs.Language.IsSupported() {
		req.Language = prefs.Language
	}

	if user, err := s.repo.GetUser(ctx, turn.UserID); err == nil && user != nil {
		req.Profile = user.Profile
	}

	if s.locations != nil {
		loc, err := s.locations.Current(ctx, turn.UserID)
		if err != nil {
			s.logger.Debug("Location unavailable for chat", "user_id", turn.UserID, "error", err)
		} else if loc.Known() {
			req.Location = loc
		}
	}
	return req
}

func (s *Service) logUser(turn Turn, msg domain.ChatMessage) {
	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     turn.UserID,
		SessionID:  turn.SessionID,
		Channel:    turn.Channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: msg.Text,
		Content:    cleanForReadability(msg.Text),
		Meta:       map[string]any{"message_id": msg.ID},
	})
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
