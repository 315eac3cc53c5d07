package models

import "time"

// Status is a user's presence state. The zero value is offline so a freshly
// decoded user without a status field counts as logged out.
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
	StatusAway
	StatusBusy
)

func (s Status) Valid() bool {
	return s >= StatusOffline && s <= StatusBusy
}

type User struct {
	Username string  `json:"username"`
	Password []byte  `json:"-"`
	Status   Status  `json:"status"`
	Picture  string  `json:"picture"`
	Channels []int64 `json:"channels"`
}

// InChannel reports whether the user's membership list contains id.
func (u *User) InChannel(id int64) bool {
	for _, channelID := range u.Channels {
		if channelID == id {
			return true
		}
	}
	return false
}

// Snapshot returns a copy safe to hand to another goroutine for
// serialization. The credential hash is never part of a snapshot.
func (u *User) Snapshot() *User {
	clone := &User{
		Username: u.Username,
		Status:   u.Status,
		Picture:  u.Picture,
		Channels: make([]int64, len(u.Channels)),
	}
	copy(clone.Channels, u.Channels)
	return clone
}

type Message struct {
	ID        int64     `json:"id,string"`
	ChannelID int64     `json:"channelID,string"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	SentAt    time.Time `json:"sentAt"`
}

type Channel struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
	// Members keeps insertion order; two-party channels are compared
	// positionally when deduplicating direct channels.
	Members  []*User   `json:"members"`
	Admins   []string  `json:"admins"`
	Messages []Message `json:"messages"`
}

func (c *Channel) Member(username string) (*User, bool) {
	for _, member := range c.Members {
		if member.Username == username {
			return member, true
		}
	}
	return nil, false
}

func (c *Channel) IsAdmin(username string) bool {
	for _, admin := range c.Admins {
		if admin == username {
			return true
		}
	}
	return false
}

// IsDirect reports whether the channel is a two-party direct channel.
func (c *Channel) IsDirect() bool {
	return len(c.Members) == 2
}

// Snapshot deep-copies the channel with member snapshots, so fan-out and
// persistence never serialize canonical state the dispatcher may still be
// mutating.
func (c *Channel) Snapshot() *Channel {
	clone := &Channel{
		ID:       c.ID,
		Name:     c.Name,
		Members:  make([]*User, len(c.Members)),
		Admins:   make([]string, len(c.Admins)),
		Messages: make([]Message, len(c.Messages)),
	}
	for i, member := range c.Members {
		clone.Members[i] = member.Snapshot()
	}
	copy(clone.Admins, c.Admins)
	copy(clone.Messages, c.Messages)
	return clone
}

type ConfigFile struct {
	Address           string `env:"CHAT_ADDRESS, default=0.0.0.0"`
	Port              string `env:"CHAT_PORT, default=6969"`
	TlsCert           string `env:"CHAT_TLS_CERT"`
	TlsKey            string `env:"CHAT_TLS_KEY"`
	PrintHttpRequests bool   `env:"CHAT_PRINT_HTTP_REQUESTS"`
	JwtSecret         string `env:"CHAT_JWT_SECRET, default=insecure-dev-secret"`
	SnowflakeWorkerID int64  `env:"CHAT_SNOWFLAKE_WORKER_ID"`
	SelfContained     bool   `env:"CHAT_SELF_CONTAINED, default=true"`
	AvatarDir         string `env:"CHAT_AVATAR_DIR, default=./public/avatars"`
	DbUser            string `env:"CHAT_DB_USER"`
	DbPassword        string `env:"CHAT_DB_PASSWORD"`
	DbAddress         string `env:"CHAT_DB_ADDRESS, default=localhost"`
	DbPort            string `env:"CHAT_DB_PORT, default=3306"`
	DbDatabase        string `env:"CHAT_DB_DATABASE, default=chatserver"`
	RedisAddress      string `env:"CHAT_REDIS_ADDRESS, default=localhost:6379"`
}
