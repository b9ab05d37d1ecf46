//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/smartkissan/internal/connectivity"
	"github.com/ashureev/smartkissan/internal/dispatcher"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
	"github.com/ashureev/smartkissan/internal/location"
	"github.com/ashureev/smartkissan/internal/notification"
	"github.com/ashureev/smartkissan/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusTeapot, "short and stout")

	if w.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"error":"short and stout"`) {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

// testEnv is a router wired like the server, backed by a temporary sqlite file.
type testEnv struct {
	t       *testing.T
	repo    store.Repository
	router  chi.Router
	monitor *connectivity.Monitor
	cookies []*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return newTestEnvWithRepo(t, repo)
}

func newTestEnvWithRepo(t *testing.T, repo store.Repository) *testEnv {
	t.Helper()
	monitor := connectivity.NewMonitor(connectivity.MonitorConfig{}, nil, nil)
	registry := connectivity.NewRegistry([]connectivity.Check{
		{ID: "weather", Name: "Weather", Category: domain.CategoryWeather, Ping: func(context.Context) error { return nil }},
		{ID: "data", Name: "Agronomy data", Category: domain.CategoryData},
	}, nil, 0, nil)
	locations := location.NewService(repo, nil, location.Config{}, nil)
	disp := dispatcher.New(dispatcher.Deps{Status: monitor}, nil)

	base := NewHandler(repo)
	r := chi.NewRouter()
	NewHealthHandler(repo, monitor, 0).RegisterHealth(r)
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, true))
		NewAccountHandler(base).RegisterRoutes(r)
		NewDashboardHandler(base, disp, locations).RegisterRoutes(r)
		NewNotificationHandler(notification.NewService(repo, nil)).RegisterRoutes(r)
		NewStatusHandler(monitor, registry, locations).RegisterRoutes(r)
	})

	return &testEnv{t: t, repo: repo, router: r, monitor: monitor}
}

// do sends a request, keeping the identity cookie across calls.
func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		e.cookies = cookies
	}
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthOK(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body["status"])
	}

	env.monitor.SetReported(domain.NetworkOffline)
	body = decode[map[string]any](t, env.do(http.MethodGet, "/health", ""))
	if body["status"] != "offline" {
		t.Errorf("Expected offline, got %v", body["status"])
	}
}

type failingPingRepo struct {
	store.Repository
}

func (failingPingRepo) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthDegraded(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer repo.Close()

	env := newTestEnvWithRepo(t, failingPingRepo{repo})
	rr := env.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded, got %v", body["status"])
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `{"email": "` + strings.Repeat("a", defaultMaxRequestBodySize) + `", "password": "x"}`
	rr := env.do(http.MethodPost, "/api/profile/login", big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rr.Code)
	}
}
