// Package hub tracks which authenticated user is served by which connection
// and delivers notification frames to online sessions. Fan-out has two
// backends mirroring the deployment modes: direct in-process delivery when
// the server runs self-contained, redis pub/sub with per-user keys
// otherwise.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"chatserver-backend/internal/events"
	"chatserver-backend/internal/metrics"
	"chatserver-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Receiver routes one decoded request from a connection's read loop: inline
// for login/logout, onto the dispatch queue for everything else. Wired at
// setup to avoid a handlers import cycle.
type Receiver func(c *Client, ev events.Event)

var (
	clients      = make(map[string]*Client)
	clientsMutex sync.Mutex

	sugar         *zap.SugaredLogger
	redisClient   *redis.Client
	redisCtx      = context.Background()
	selfContained = true
	receiver      Receiver
)

func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool, _receiver Receiver) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained
	receiver = _receiver
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleClient upgrades the request and runs the connection's read loop
// until the stream breaks or the session logs out. Requests are decoded here
// and handed to the receiver; a malformed frame is logged and discarded, the
// loop continues.
func HandleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sugar.Error(err)
		return
	}

	client := newClient(conn)
	sugar.Debugf("Session [%s] connected from %s", client.SessionID, conn.RemoteAddr())

	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	go client.writePump()

	for client.running.Load() {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if client.running.Load() {
				sugar.Debugf("Read from session [%s] failed: %v", client.SessionID, err)
			}
			break
		}

		ev, err := events.Decode(frame)
		if err != nil {
			sugar.Warnf("Discarding malformed frame from session [%s]: %v", client.SessionID, err)
			continue
		}
		receiver(client, ev)
	}

	// A session that drops without logging out is put through the same
	// inline offline path a logout takes, so the registry never leaks.
	if client.running.Load() && client.Username() != "" {
		offline, err := json.Marshal(events.StatusUpdateRequest{Status: models.StatusOffline})
		if err == nil {
			receiver(client, events.Event{Kind: events.StatusUpdate, Data: offline})
		}
	}

	client.Stop()
	sugar.Debugf("Session [%s] closed", client.SessionID)
}

// Register binds username to this client. A previous session for the same
// user is stopped first; the newest login wins.
func Register(username string, c *Client) {
	clientsMutex.Lock()
	previous := clients[username]
	clients[username] = c
	metrics.SessionsActive.Set(float64(len(clients)))
	clientsMutex.Unlock()

	c.setUsername(username)

	if previous != nil && previous != c {
		sugar.Debugf("User [%s] logged in again, stopping session [%s]", username, previous.SessionID)
		previous.Stop()
	}

	if !selfContained {
		subscribeUser(username, c)
	}
}

// Deregister removes the session mapping, but only if it still points at
// this client; a replaced session must not evict its replacement.
func Deregister(c *Client) {
	username := c.Username()
	if username == "" {
		return
	}

	clientsMutex.Lock()
	if clients[username] == c {
		delete(clients, username)
	}
	metrics.SessionsActive.Set(float64(len(clients)))
	clientsMutex.Unlock()

	c.mutex.Lock()
	pubsub := c.pubsub
	c.pubsub = nil
	c.mutex.Unlock()
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			sugar.Debug(err)
		}
	}
}

func SessionFor(username string) (*Client, bool) {
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	client, exists := clients[username]
	return client, exists
}

func IsOnline(username string) bool {
	_, online := SessionFor(username)
	return online
}

// SendToUser delivers one notification to a user's live session, silently
// skipping users who are offline — they catch up from the channel map on
// next login.
func SendToUser(username string, kind string, v any) {
	frame, err := events.Encode(kind, v)
	if err != nil {
		sugar.Errorf("Failed to encode [%s] frame for user [%s]: %v", kind, username, err)
		return
	}

	if selfContained {
		client, online := SessionFor(username)
		if !online {
			return
		}
		client.sendFrame(frame)
		return
	}

	if err := redisClient.Publish(redisCtx, userKey(username), frame).Err(); err != nil {
		sugar.Errorf("Failed to publish [%s] frame for user [%s]: %v", kind, username, err)
	}
}

func userKey(username string) string {
	return "user:" + username
}

// subscribeUser wires the redis leg of fan-out: every frame published to the
// user's key is forwarded to this session's write pump.
func subscribeUser(username string, c *Client) {
	pubsub := redisClient.Subscribe(c.ctx, userKey(username))

	c.mutex.Lock()
	c.pubsub = pubsub
	c.mutex.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-c.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.sendFrame([]byte(msg.Payload))
			}
		}
	}()
}
