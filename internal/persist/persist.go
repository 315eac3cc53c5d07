// Package persist is the write-behind boundary between handlers and durable
// storage. Handlers enqueue snapshots and continue; a single writer
// goroutine drains the queue in FIFO order and performs one blocking write
// per item. There is no acknowledgment back to the handler: a crash between
// enqueue and flush loses the update.
package persist

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"chatserver-backend/internal/metrics"
	"chatserver-backend/internal/models"

	"go.uber.org/zap"
)

type WriteKind int

const (
	WriteUser WriteKind = iota
	WriteChannel
	WriteChannelDelete
	WriteAvatar
)

func (k WriteKind) String() string {
	switch k {
	case WriteUser:
		return "user"
	case WriteChannel:
		return "channel"
	case WriteChannelDelete:
		return "channel_delete"
	case WriteAvatar:
		return "avatar"
	}
	return "unknown"
}

// Write is one queued persistence item. User and Channel are snapshots taken
// under the store lock at enqueue time; the writer never touches canonical
// state.
type Write struct {
	Kind      WriteKind
	User      *models.User
	Password  []byte
	Channel   *models.Channel
	ChannelID int64
	Username  string
	Asset     []byte
}

type Queue struct {
	writes    chan Write
	db        *sql.DB
	avatarDir string
	sugar     *zap.SugaredLogger
}

func NewQueue(db *sql.DB, avatarDir string, sugar *zap.SugaredLogger) *Queue {
	return &Queue{
		writes:    make(chan Write, 1024),
		db:        db,
		avatarDir: avatarDir,
		sugar:     sugar,
	}
}

// Enqueue hands a write to the writer goroutine. It blocks only when the
// buffer is full, which doubles as backpressure on a stalled disk.
func (q *Queue) Enqueue(w Write) {
	q.writes <- w
}

// Run drains the queue until the channel closes or ctx-style shutdown via
// Close. Write failures are logged and counted, never retried.
func (q *Queue) Run() {
	for w := range q.writes {
		if err := q.flush(w); err != nil {
			q.sugar.Errorf("Persistence write [%s] for key [%s] failed: %v", w.Kind, q.keyOf(w), err)
			metrics.PersistErrorsTotal.Inc()
			continue
		}
		metrics.PersistWritesTotal.WithLabelValues(w.Kind.String()).Inc()
	}
}

// Close stops the writer after the queue drains.
func (q *Queue) Close() {
	close(q.writes)
}

func (q *Queue) keyOf(w Write) string {
	switch w.Kind {
	case WriteUser:
		return "users/" + w.User.Username
	case WriteChannel:
		return "channels/" + strconv.FormatInt(w.Channel.ID, 10)
	case WriteChannelDelete:
		return "channels/" + strconv.FormatInt(w.ChannelID, 10)
	case WriteAvatar:
		return "images/" + w.Username
	}
	return "?"
}

func (q *Queue) flush(w Write) error {
	switch w.Kind {
	case WriteUser:
		channels, err := json.Marshal(w.User.Channels)
		if err != nil {
			return err
		}
		_, err = q.db.Exec("REPLACE INTO users (username, password, picture, channels) VALUES (?, ?, ?, ?)",
			w.User.Username, w.Password, w.User.Picture, channels)
		return err

	case WriteChannel:
		admins, err := json.Marshal(w.Channel.Admins)
		if err != nil {
			return err
		}
		members, err := json.Marshal(w.Channel.Members)
		if err != nil {
			return err
		}
		messages, err := json.Marshal(w.Channel.Messages)
		if err != nil {
			return err
		}
		_, err = q.db.Exec("REPLACE INTO channels (id, name, admins, members, messages) VALUES (?, ?, ?, ?, ?)",
			w.Channel.ID, w.Channel.Name, admins, members, messages)
		return err

	case WriteChannelDelete:
		_, err := q.db.Exec("DELETE FROM channels WHERE id = ?", w.ChannelID)
		return err

	case WriteAvatar:
		if err := os.MkdirAll(q.avatarDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(q.avatarDir, w.Username), w.Asset, 0o644)
	}
	return nil
}
