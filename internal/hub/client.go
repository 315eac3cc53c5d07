package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"chatserver-backend/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Client owns one websocket connection: its read loop, its write pump, and
// the authenticated username once login succeeds.
type Client struct {
	SessionID uuid.UUID

	conn    *websocket.Conn
	send    chan []byte
	running atomic.Bool

	mutex    sync.Mutex
	username string
	pubsub   *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	sessionID, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to V4's
		// best effort rather than refusing the connection
		sessionID = uuid.New()
	}

	c := &Client{
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.running.Store(true)
	return c
}

// Username returns the authenticated username, or "" before login.
func (c *Client) Username() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.username
}

func (c *Client) setUsername(username string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.username = username
}

// Send encodes one notification frame and queues it for the write pump. A
// client that cannot keep up has frames dropped rather than blocking the
// dispatcher.
func (c *Client) Send(kind string, v any) {
	frame, err := events.Encode(kind, v)
	if err != nil {
		sugar.Errorf("Failed to encode [%s] frame for session [%s]: %v", kind, c.SessionID, err)
		return
	}
	c.sendFrame(frame)
}

func (c *Client) sendFrame(frame []byte) {
	select {
	case c.send <- frame:
	default:
		sugar.Warnf("Send buffer full for session [%s], dropping a frame", c.SessionID)
	}
}

// Stop flips the running flag and closes the connection so a blocked read
// returns. Safe to call more than once.
func (c *Client) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.cancel()
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		sugar.Debugf("Closing session [%s]: %v", c.SessionID, err)
	}
}

// NewLocalClient returns a client with no network connection behind it.
// Frames accumulate in the send buffer and can be read back with NextFrame;
// tests and in-process tooling drive handlers through such clients.
func NewLocalClient() *Client {
	return newClient(nil)
}

// NextFrame pops the oldest queued outbound frame, or returns false when the
// buffer is empty.
func (c *Client) NextFrame() ([]byte, bool) {
	select {
	case frame := <-c.send:
		return frame, true
	default:
		return nil, false
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				sugar.Debugf("Write to session [%s] failed: %v", c.SessionID, err)
				return
			}
		}
	}
}
