package chatws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/smartkissan/internal/assistant"
	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
	"github.com/ashureev/smartkissan/internal/store"
)

type echoAsker struct{}

func (echoAsker) Ask(_ context.Context, req chat.Request) (chat.Reply, error) {
	cat := chat.Classify(req.Text)
	return chat.Reply{Text: "answer to " + req.Text, Category: cat, Type: cat.MessageType(), Source: domain.SourceLive}, nil
}

func (echoAsker) Synthetic(req chat.Request) chat.Reply {
	cat := chat.Classify(req.Text)
	return chat.Reply{Text: "offline answer to " + req.Text, Category: cat, Type: cat.MessageType(), Source: domain.SourceSynthetic}
}

type testServer struct {
	srv *httptest.Server
	sm  *SessionManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := assistant.NewService(repo, echoAsker{}, nil, nil, assistant.Config{}, nil)
	t.Cleanup(func() { _ = svc.Close() })

	sm := NewSessionManager()
	h := NewHandler(svc, sm, "*", true)
	srv := httptest.NewServer(identity.Middleware(repo, true)(h))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, sm: sm}
}

func (s *testServer) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.srv.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame any) outbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))

	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	var out outbound
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestChatSocketAnswersWithCorrelationID(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, nil)

	out := roundTrip(t, conn, inbound{ID: "m-1", Message: "Will it rain?"})
	assert.Equal(t, "m-1", out.ID)
	assert.Equal(t, "answer to Will it rain?", out.Response)
	assert.Equal(t, string(domain.TypeWeather), out.Category)
	assert.Equal(t, string(domain.SourceLive), out.Source)

	out = roundTrip(t, conn, inbound{ID: "m-2", Message: "  "})
	assert.Equal(t, "m-2", out.ID)
	assert.Equal(t, assistant.ErrEmptyMessage.Error(), out.Error)

	out = roundTrip(t, conn, inbound{ID: "p", Type: "ping"})
	assert.Equal(t, "pong", out.Type)
}

func TestChatSocketRejectsGarbage(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{nope")))
	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "invalid frame")
}

func TestChatSocketReplacesSameTab(t *testing.T) {
	s := newTestServer(t)
	header := http.Header{}
	header.Set("Cookie", identity.AnonCookieName+"=anon_0123456789abcdef0123456789abcdef")
	header.Set(identity.SessionHeaderName, "tab-1")

	first := s.dial(t, header)
	roundTrip(t, first, inbound{ID: "a", Message: "hi"})
	second := s.dial(t, header)
	roundTrip(t, second, inbound{ID: "b", Message: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))

	assert.Eventually(t, func() bool { return s.sm.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NotNil(t, s.sm.GetActive("anon_0123456789abcdef0123456789abcdef", "tab-1"))
}

func TestChatSocketSeparateTabsCoexist(t *testing.T) {
	s := newTestServer(t)
	header := http.Header{}
	header.Set("Cookie", identity.AnonCookieName+"=anon_0123456789abcdef0123456789abcdef")

	header.Set(identity.SessionHeaderName, "tab-1")
	a := s.dial(t, header)
	roundTrip(t, a, inbound{ID: "1", Message: "hi"})

	header.Set(identity.SessionHeaderName, "tab-2")
	b := s.dial(t, header)
	roundTrip(t, b, inbound{ID: "2", Message: "hi"})

	assert.Equal(t, 2, s.sm.Count())
	out := roundTrip(t, a, inbound{ID: "3", Message: "mandi price"})
	assert.Equal(t, "answer to mandi price", out.Response)
}

func TestChatSocketUnregistersOnClose(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, nil)
	roundTrip(t, conn, inbound{ID: "1", Message: "hi"})
	require.Equal(t, 1, s.sm.Count())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return s.sm.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionManagerStaleUnregisterKeepsCurrent(t *testing.T) {
	sm := NewSessionManager()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	sm.Register("user123", "tab-1", conn1)
	sm.Register("user123", "tab-2", conn2)
	sm.Unregister("user123", "tab-2", conn1)

	assert.Equal(t, conn2, sm.GetActive("user123", "tab-2"))
	assert.Equal(t, 2, sm.Count())

	sm.Unregister("user123", "tab-1", conn1)
	assert.Nil(t, sm.GetActive("user123", "tab-1"))
	assert.Equal(t, 1, sm.Count())
}
