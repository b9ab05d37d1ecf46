package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
	"github.com/ashureev/smartkissan/internal/store"
)

type fakeAsker struct {
	mu    sync.Mutex
	err   error
	reqs  []chat.Request
	delay func(text string) time.Duration

	synthetic int
}

func (f *fakeAsker) Ask(ctx context.Context, req chat.Request) (chat.Reply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay != nil {
		time.Sleep(delay(req.Text))
	}
	if err != nil {
		return chat.Reply{}, err
	}
	return chat.Reply{
		ID:       "r-" + req.Text,
		Text:     "answer to " + req.Text,
		Category: chat.Classify(req.Text),
		Type:     chat.Classify(req.Text).MessageType(),
		Source:   domain.SourceLive,
	}, nil
}

func (f *fakeAsker) Synthetic(req chat.Request) chat.Reply {
	f.mu.Lock()
	f.synthetic++
	f.mu.Unlock()
	cat := chat.Classify(req.Text)
	return chat.Reply{Text: "offline answer to " + req.Text, Category: cat, Type: chat.SyntheticType(cat, req.Location != nil), Source: domain.SourceSynthetic}
}

func (f *fakeAsker) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fixedNetwork domain.NetworkStatus

func (n fixedNetwork) Status() domain.NetworkStatus { return domain.NetworkStatus(n) }

// closedTransport never connects.
type closedTransport struct{}

func (closedTransport) State() chat.State { return chat.StateClosed }

func (closedTransport) StartConnect() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

func (closedTransport) Send(context.Context, chat.Frame) (chat.Inbound, error) {
	return chat.Inbound{}, chat.ErrNotOpen
}

type fixedLocation struct{ loc *domain.UserLocation }

func (f fixedLocation) Current(context.Context, string) (*domain.UserLocation, error) {
	return f.loc, nil
}

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestService(t *testing.T, repo store.Repository, asker Asker, cfg Config) *Service {
	t.Helper()
	svc := NewService(repo, asker, nil, nil, cfg, nil)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestHistorySeedsGreeting(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeAsker{}, Config{})

	msgs, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.Greeting, msgs[0].Text)
	assert.Equal(t, domain.SenderAssistant, msgs[0].Sender)
}

func TestSendAppendsExchange(t *testing.T) {
	asker := &fakeAsker{}
	svc := newTestService(t, newTestRepo(t), asker, Config{})
	ctx := context.Background()

	ex, err := svc.Send(ctx, Turn{UserID: "u1", Text: "  Will it rain?  "})
	require.NoError(t, err)
	require.Len(t, asker.reqs, 1)
	assert.Equal(t, "Will it rain?", asker.reqs[0].Text)
	assert.Equal(t, domain.StatusSent, ex.UserMessage.Status)
	assert.Equal(t, "Will it rain?", ex.UserMessage.Text)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, "answer to Will it rain?", ex.Reply.Text)
	assert.Equal(t, domain.TypeWeather, ex.Reply.Type)
	assert.Equal(t, domain.SourceLive, ex.Source)

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.Greeting, msgs[0].Text)
	assert.Equal(t, domain.SenderUser, msgs[1].Sender)
	assert.Equal(t, domain.StatusSent, msgs[1].Status)
	assert.Equal(t, domain.SenderAssistant, msgs[2].Sender)
}

func TestSendRejectsBlankInput(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeAsker{}, Config{})
	_, err := svc.Send(context.Background(), Turn{UserID: "u1", Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendFailureMarksMessageFailedAndRetrySucceeds(t *testing.T) {
	asker := &fakeAsker{err: chat.ErrNoReply}
	svc := newTestService(t, newTestRepo(t), asker, Config{})
	ctx := context.Background()

	ex, err := svc.Send(ctx, Turn{UserID: "u1", Text: "mandi price"})
	require.ErrorIs(t, err, chat.ErrNoReply)
	require.NotNil(t, ex)
	assert.Equal(t, domain.StatusFailed, ex.UserMessage.Status)
	assert.Nil(t, ex.Reply)

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.StatusFailed, msgs[1].Status)

	_, err = svc.Retry(ctx, Turn{UserID: "u1"}, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	asker.setErr(nil)
	ex, err = svc.Retry(ctx, Turn{UserID: "u1"}, msgs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, ex.UserMessage.Status)
	assert.Equal(t, "answer to mandi price", ex.Reply.Text)

	_, err = svc.Retry(ctx, Turn{UserID: "u1"}, msgs[1].ID)
	assert.ErrorIs(t, err, ErrNotRetryable)

	msgs, err = svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.StatusSent, msgs[1].Status)
}

func TestTranscriptIsCapped(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeAsker{}, Config{TranscriptLimit: 5, RequestsPerWindow: 100})
	ctx := context.Background()

	for i := range 4 {
		_, err := svc.Send(ctx, Turn{UserID: "u1", Text: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
	}

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "answer to q1", msgs[0].Text)
	assert.Equal(t, "q3", msgs[3].Text)
	assert.Equal(t, "answer to q3", msgs[4].Text)
}

func TestConcurrentSendsStayAppendOnly(t *testing.T) {
	// The first message answers slowly; replies must still pair with their question.
	asker := &fakeAsker{delay: func(text string) time.Duration {
		if text == "slow" {
			return 50 * time.Millisecond
		}
		return 0
	}}
	svc := newTestService(t, newTestRepo(t), asker, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, text := range []string{"slow", "fast"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(ctx, Turn{UserID: "u1", Text: text})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i += 2 {
		assert.Equal(t, domain.SenderUser, msgs[i].Sender)
		assert.Equal(t, "answer to "+msgs[i].Text, msgs[i+1].Text)
	}
}

func TestSendRateLimited(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeAsker{}, Config{RequestsPerWindow: 2, WindowDuration: time.Hour})
	ctx := context.Background()

	for range 2 {
		_, err := svc.Send(ctx, Turn{UserID: "u1", Text: "hi"})
		require.NoError(t, err)
	}
	_, err := svc.Send(ctx, Turn{UserID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Zero(t, svc.Remaining("u1"))

	_, err = svc.Send(ctx, Turn{UserID: "u2", Text: "hi"})
	assert.NoError(t, err)
}

func TestRequestCarriesPreferencesProfileAndLocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.UpsertUser(ctx, &domain.User{UserID: "u1", Username: "f", Profile: domain.DemoProfile("x@y.in"), LastSeenAt: now, CreatedAt: now, UpdatedAt: now}))
	prefs := domain.DefaultPreferences()
	prefs.Language = domain.LangKannada
	require.NoError(t, repo.UpsertPreferences(ctx, "u1", prefs))

	asker := &fakeAsker{}
	loc := &domain.UserLocation{Latitude: 12.9, Longitude: 77.6, Region: "Karnataka"}
	svc := NewService(repo, asker, fixedLocation{loc: loc}, nil, Config{}, nil)
	defer svc.Close()

	_, err := svc.Send(ctx, Turn{UserID: "u1", Text: "ಮಳೆ"})
	require.NoError(t, err)

	require.Len(t, asker.reqs, 1)
	req := asker.reqs[0]
	assert.Equal(t, domain.LangKannada, req.Language)
	assert.Equal(t, "Demo Farmer", req.Profile.Name)
	assert.Equal(t, loc, req.Location)
}

func TestClearResetsTranscript(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeAsker{}, Config{})
	ctx := context.Background()

	_, err := svc.Send(ctx, Turn{UserID: "u1", Text: "hello"})
	require.NoError(t, err)

	msgs, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msgs, err = svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	base := time.Unix(1_700_000_000, 0)
	now := base
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u"))
	now = base.Add(30 * time.Second)
	assert.True(t, rl.Allow("u"))
	assert.False(t, rl.Allow("u"))

	now = base.Add(61 * time.Second)
	assert.Equal(t, 1, rl.Remaining("u"))
	assert.True(t, rl.Allow("u"))
}

func serve(t *testing.T, repo store.Repository, h *Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	h.RegisterRoutes(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerChatFlow(t *testing.T) {
	repo := newTestRepo(t)
	asker := &fakeAsker{}
	svc := newTestService(t, repo, asker, Config{})
	h := NewHandler(svc)

	rr := serve(t, repo, h, http.MethodPost, "/api/assistant/chat", `{"message": "best seed for wheat"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	var ex Exchange
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ex))
	assert.Equal(t, domain.TypeCrop, ex.Reply.Type)

	rr = serve(t, repo, h, http.MethodGet, "/api/assistant/history", "", cookies)
	require.Equal(t, http.StatusOK, rr.Code)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hist))
	assert.Len(t, hist.Messages, 3)

	rr = serve(t, repo, h, http.MethodDelete, "/api/assistant/history", "", cookies)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hist))
	assert.Len(t, hist.Messages, 1)
}

func TestHandlerChatErrors(t *testing.T) {
	repo := newTestRepo(t)
	asker := &fakeAsker{err: errors.Join(chat.ErrNoReply, chat.ErrReplyTimeout)}
	svc := newTestService(t, repo, asker, Config{})
	h := NewHandler(svc)

	rr := serve(t, repo, h, http.MethodPost, "/api/assistant/chat", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, repo, h, http.MethodPost, "/api/assistant/chat", `{"message": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, repo, h, http.MethodPost, "/api/assistant/chat", `{"message": "hello"}`, nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	var failed failedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &failed))
	assert.Equal(t, domain.StatusFailed, failed.UserMessage.Status)
	cookies := rr.Result().Cookies()

	rr = serve(t, repo, h, http.MethodPost, "/api/assistant/retry/nope", "", cookies)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	asker.setErr(nil)
	rr = serve(t, repo, h, http.MethodPost, "/api/assistant/retry/"+failed.UserMessage.ID, "", cookies)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, repo, h, http.MethodPost, "/api/assistant/retry/"+failed.UserMessage.ID, "", cookies)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestNoLocationWeatherTurnIsPlainText(t *testing.T) {
	client := chat.NewClient(closedTransport{}, nil, nil, chat.ClientConfig{
		ConnectGrace:      10 * time.Millisecond,
		SyntheticFallback: true,
	}, nil)
	svc := newTestService(t, newTestRepo(t), client, Config{})
	ctx := context.Background()

	ex, err := svc.Send(ctx, Turn{UserID: "u1", Text: "What is the weather today?"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSynthetic, ex.Source)

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.SenderUser, msgs[1].Sender)

	reply := msgs[2]
	assert.Equal(t, domain.SenderAssistant, reply.Sender)
	assert.Equal(t, chat.DefaultResponder().Reply(chat.CategoryWeather, domain.LangEnglish, false), reply.Text)
	assert.Equal(t, domain.TypeText, reply.Type)
}

func TestSendOfflineSkipsBackend(t *testing.T) {
	asker := &fakeAsker{}
	svc := newTestService(t, newTestRepo(t), asker, Config{Network: fixedNetwork(domain.NetworkOffline)})

	ex, err := svc.Send(context.Background(), Turn{UserID: "u1", Text: "mandi price"})
	require.NoError(t, err)
	assert.Empty(t, asker.reqs, "backend must not be asked while offline")
	assert.Equal(t, 1, asker.synthetic)
	assert.Equal(t, domain.SourceSynthetic, ex.Source)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, "offline answer to mandi price", ex.Reply.Text)
}

func TestSendOnlineUsesBackend(t *testing.T) {
	asker := &fakeAsker{}
	svc := newTestService(t, newTestRepo(t), asker, Config{Network: fixedNetwork(domain.NetworkOnline)})

	_, err := svc.Send(context.Background(), Turn{UserID: "u1", Text: "mandi price"})
	require.NoError(t, err)
	assert.Len(t, asker.reqs, 1)
	assert.Zero(t, asker.synthetic)
}

func TestRequestKeepsLastFixAfterGeolocationFailure(t *testing.T) {
	tests := []struct {
		name string
		loc  *domain.UserLocation
		want bool
	}{
		{"fix", &domain.UserLocation{Latitude: 30.9, Longitude: 75.8}, true},
		{"fix then denied", &domain.UserLocation{Latitude: 30.9, Longitude: 75.8, Error: domain.LocationErrDenied}, true},
		{"default only", &domain.UserLocation{Latitude: domain.DefaultLatitude, Longitude: domain.DefaultLongitude, Error: domain.LocationErrDenied, IsDefault: true}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{}
			svc := NewService(newTestRepo(t), asker, fixedLocation{loc: tt.loc}, nil, Config{}, nil)
			defer svc.Close()

			_, err := svc.Send(context.Background(), Turn{UserID: "u1", Text: "Will it rain?"})
			require.NoError(t, err)
			require.Len(t, asker.reqs, 1)
			if tt.want {
				assert.Equal(t, tt.loc, asker.reqs[0].Location)
			} else {
				assert.Nil(t, asker.reqs[0].Location)
			}
		})
	}
}
