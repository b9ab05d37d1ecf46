// Package identity gives every browser an anonymous farmer identity. A device
// is keyed by a long-lived cookie; each open tab adds a session id so the
// assistant can keep one live chat socket per tab.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/store"
)

const (
	AnonCookieName        = "smartkissan_anon_id"
	SessionHeaderName     = "X-Kissan-Session-ID"
	SessionQueryParam     = "session_id"
	DefaultSessionIDValue = "default"

	anonCookieMaxAge   = 30 * 24 * time.Hour
	lastSeenResolution = time.Minute
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Identity is the caller of one request.
type Identity struct {
	UserID    string
	SessionID string
	// Username is the anonymous handle shown until the farmer fills in a profile.
	Username string
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Middleware. The second result
// is false for requests that did not pass through it.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok && id.SessionID != "" {
		return id.SessionID
	}
	return DefaultSessionIDValue
}

// NewAnonID returns a fresh anonymous user id.
func NewAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

// ValidAnonID reports whether id has the anonymous id format.
func ValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// usernameFor derives a stable handle from the tail of the id.
func usernameFor(userID string) string {
	if len(userID) > 13 {
		return "farmer-" + userID[len(userID)-8:]
	}
	return "farmer"
}

// Resolver loads or registers the user behind a request.
type Resolver struct {
	repo   store.Repository
	isDev  bool
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. A nil logger uses slog.Default().
func NewResolver(repo store.Repository, isDev bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, isDev: isDev, logger: logger, now: time.Now}
}

// Resolve returns the caller's identity, issuing a cookie on first visit and
// refreshing its expiry otherwise.
func (res *Resolver) Resolve(w http.ResponseWriter, r *http.Request) (Identity, error) {
	userID := ""
	if c, err := r.Cookie(AnonCookieName); err == nil && ValidAnonID(c.Value) {
		userID = c.Value
	} else {
		id, err := NewAnonID()
		if err != nil {
			return Identity{}, err
		}
		userID = id
	}
	res.setCookie(w, userID)

	if err := res.touch(r.Context(), userID); err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:    userID,
		SessionID: sessionIDFromRequest(r),
		Username:  usernameFor(userID),
	}, nil
}

func (res *Resolver) setCookie(w http.ResponseWriter, userID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  res.now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !res.isDev,
	})
}

// touch registers a new user or bumps last_seen_at at most once per minute.
func (res *Resolver) touch(ctx context.Context, userID string) error {
	user, err := res.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	now := res.now()
	if user != nil {
		if now.Sub(user.LastSeenAt) > lastSeenResolution {
			return res.repo.UpdateLastSeen(ctx, userID, now)
		}
		return nil
	}

	if err := res.repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		Username:   usernameFor(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	res.logger.Info("Registered anonymous farmer", "user_id", userID)
	return nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return sanitizeSessionID(sid)
}

// Middleware injects anonymous per-device identity and per-request session ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	res := NewResolver(repo, isDev, nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(w, r)
			if err != nil {
				res.logger.Error("Failed to resolve identity", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "failed to establish anonymous identity"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
