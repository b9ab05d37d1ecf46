// Package chat implements the farmer assistant's conversation layer: the
// correlated WebSocket channel to the chat backend, the intent classifier and
// the offline responder.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var (
	// ErrNotOpen is returned by Send when the channel has no live connection.
	ErrNotOpen = errors.New("chat channel not open")
	// ErrChannelClosed is returned after Close.
	ErrChannelClosed = errors.New("chat channel closed")
	// ErrReplyTimeout is returned when no reply arrives within the reply timeout.
	ErrReplyTimeout = errors.New("chat reply timed out")
	// ErrConnectionLost fails requests pending when the connection drops.
	ErrConnectionLost = errors.New("chat connection lost")
)

// State is the connection state of a Channel.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	URL          string
	ReplyTimeout time.Duration
	DialTimeout  time.Duration
	Header       http.Header
}

// DefaultChannelConfig returns the default timeouts for url.
func DefaultChannelConfig(url string) ChannelConfig {
	return ChannelConfig{
		URL:          url,
		ReplyTimeout: 5 * time.Second,
		DialTimeout:  10 * time.Second,
	}
}

type result struct {
	in  Inbound
	err error
}

type pendingRequest struct {
	reply  chan result
	sentAt time.Time
}

// Channel is a persistent connection to the chat backend that matches
// replies to requests by correlation id. It connects lazily and reconnects on
// the next send after the connection drops.
type Channel struct {
	cfg    ChannelConfig
	logger *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempt  chan struct{} // closed when the in-flight dial settles
	lastErr  error
	shutdown bool
	pending  map[string]*pendingRequest

	dropped atomic.Int64
}

// NewChannel creates a closed channel. Nothing is dialed until the first
// Connect or Send.
func NewChannel(cfg ChannelConfig, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:     cfg,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingRequest),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of requests awaiting a reply.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dropped returns how many replies arrived for unknown or expired correlation ids.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// StartConnect begins a connection attempt unless one is already in flight or
// the channel is open. The returned channel is closed once the attempt settles.
func (c *Channel) StartConnect() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnecting {
		return c.attempt
	}
	done := make(chan struct{})
	if c.state == StateOpen || c.shutdown {
		close(done)
		return done
	}

	c.state = StateConnecting
	c.attempt = done
	go c.dial(done)
	return done
}

// Connect dials the backend and waits until the channel is open or ctx ends.
func (c *Channel) Connect(ctx context.Context) error {
	done := c.StartConnect()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.shutdown:
		return ErrChannelClosed
	case c.state == StateOpen:
		return nil
	case c.lastErr != nil:
		return c.lastErr
	default:
		return ErrNotOpen
	}
}

func (c *Channel) dial(done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{HTTPHeader: c.cfg.Header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if err != nil {
		c.state = StateClosed
		c.lastErr = fmt.Errorf("dial chat backend: %w", err)
		c.mu.Unlock()
		c.logger.Warn("Chat backend connection failed", "url", c.cfg.URL, "error", err)
		return
	}
	if c.shutdown {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "channel closed")
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("Chat backend connected", "url", c.cfg.URL)
	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.baseCtx)
		if err != nil {
			c.disconnect(conn, err)
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.logger.Warn("Ignoring malformed chat frame", "error", err, "size", len(data))
			continue
		}
		c.deliver(in)
	}
}

// deliver hands a reply to its waiting request. The entry is claimed under the
// lock, so a reply racing a timeout is delivered at most once.
func (c *Channel) deliver(in Inbound) {
	c.mu.Lock()
	p, ok := c.pending[in.ID]
	if ok {
		delete(c.pending, in.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.dropped.Add(1)
		c.logger.Debug("Dropping reply for unknown correlation id", "id", in.ID)
		return
	}
	p.reply <- result{in: in}
}

func (c *Channel) disconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	orphaned := c.pending
	c.pending = make(map[string]*pendingRequest)
	shutdown := c.shutdown
	c.mu.Unlock()

	if !shutdown {
		status := websocket.CloseStatus(cause)
		c.logger.Info("Chat backend disconnected", "status", status, "error", cause, "pending", len(orphaned))
	}
	for _, p := range orphaned {
		p.reply <- result{err: ErrConnectionLost}
	}
}

// forget removes a pending entry, reporting whether the caller claimed it.
func (c *Channel) forget(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// Send writes frame and waits for the reply carrying the same id. A frame
// without an id is assigned a fresh one. Exactly one of the reply, the reply
// timeout, a disconnect or ctx resolves each request.
func (c *Channel) Send(ctx context.Context, frame Frame) (Inbound, error) {
	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return Inbound{}, fmt.Errorf("encode frame: %w", err)
	}

	p := &pendingRequest{reply: make(chan result, 1), sentAt: time.Now()}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return Inbound{}, ErrChannelClosed
	}
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return Inbound{}, ErrNotOpen
	}
	if _, dup := c.pending[frame.ID]; dup {
		c.mu.Unlock()
		return Inbound{}, fmt.Errorf("correlation id %s already pending", frame.ID)
	}
	conn := c.conn
	c.pending[frame.ID] = p
	c.mu.Unlock()

	timer := time.NewTimer(c.cfg.ReplyTimeout)
	defer timer.Stop()

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.ReplyTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, data)
	cancel()
	if err != nil {
		if c.forget(frame.ID) {
			return Inbound{}, fmt.Errorf("write frame: %w", err)
		}
		r := <-p.reply
		return r.in, r.err
	}

	select {
	case r := <-p.reply:
		if r.err == nil {
			c.logger.Debug("Chat reply received", "id", frame.ID, "latency", time.Since(p.sentAt))
		}
		return r.in, r.err
	case <-timer.C:
		if c.forget(frame.ID) {
			return Inbound{}, ErrReplyTimeout
		}
	case <-ctx.Done():
		if c.forget(frame.ID) {
			return Inbound{}, ctx.Err()
		}
	}
	// The reply claimed the entry first; its result is already buffered.
	r := <-p.reply
	return r.in, r.err
}

// Close shuts the channel down and fails every pending request.
// A closed channel never reconnects.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	orphaned := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range orphaned {
		p.reply <- result{err: ErrChannelClosed}
	}

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.cancel()
	if err != nil && websocket.CloseStatus(err) == -1 {
		return fmt.Errorf("close chat connection: %w", err)
	}
	return nil
}
