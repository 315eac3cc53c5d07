// Package events defines the typed objects exchanged over a client
// connection and the wire codec for them. Every frame is the event kind on
// its own line followed by a JSON body, so a reader can route on the kind
// without decoding the payload.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chatserver-backend/internal/models"
)

// Request kinds sent by clients.
const (
	Login               = "login"
	ChannelCreate       = "channelCreate"
	ChannelAddMember    = "channelAddMember"
	ChannelRemoveMember = "channelRemoveMember"
	ChannelDelete       = "channelDelete"
	ChannelPromote      = "channelPromote"
	ChannelDemote       = "channelDemote"
	MessageSent         = "messageSent"
	MessageEdit         = "messageEdit"
	MessageDelete       = "messageDelete"
	StatusUpdate        = "statusUpdate"
	ProfileUpdate       = "profileUpdate"
)

// Notification kinds sent by the server. Channel and message notifications
// reuse the request kind they answer, mirroring how the client renders them.
const (
	AuthSucceeded = "authSucceeded"
	AuthFailed    = "authFailed"
	RequestFailed = "requestFailed"
)

// Event is a decoded frame. Data stays raw until a handler binds it to the
// payload struct for its kind.
type Event struct {
	Kind string
	Data json.RawMessage
}

// Into unmarshals the event body into v.
func (e Event) Into(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %q has no body", e.Kind)
	}
	return json.Unmarshal(e.Data, v)
}

// Encode builds a wire frame for kind with v as the JSON body.
func Encode(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(kind) + 1 + len(body))
	buf.WriteString(kind)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode splits a wire frame into its kind and raw body. A frame without a
// kind line is a protocol error.
func Decode(frame []byte) (Event, error) {
	kind, body, found := bytes.Cut(frame, []byte{'\n'})
	if !found || len(kind) == 0 {
		return Event{}, fmt.Errorf("malformed frame: missing kind line")
	}
	return Event{Kind: string(kind), Data: body}, nil
}

type LoginRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=32"`
	Password   string `json:"password"`
	Token      string `json:"token"`
	NewAccount bool   `json:"newAccount"`
}

type AuthSucceededPayload struct {
	User     *models.User              `json:"user"`
	Channels map[int64]*models.Channel `json:"channels"`
	Token    string                    `json:"token"`
}

// AuthFailedPayload and RequestFailedPayload echo the rejected request so the
// client can match the failure to whatever it sent.
type AuthFailedPayload struct {
	Original LoginRequest `json:"original"`
}

type RequestFailedPayload struct {
	Kind     string          `json:"kind"`
	Original json.RawMessage `json:"original,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

type ChannelCreateRequest struct {
	Name      string   `json:"name" validate:"required,max=64"`
	Usernames []string `json:"usernames"`
}

// ChannelCreatedPayload answers a create request; Reused marks an existing
// direct channel handed back instead of a fresh one.
type ChannelCreatedPayload struct {
	Channel *models.Channel `json:"channel"`
	Reused  bool            `json:"reused,omitempty"`
}

type ChannelMemberRequest struct {
	ChannelID int64  `json:"channelID,string"`
	Username  string `json:"username"`
}

// ChannelUpdatePayload carries a canonical channel snapshot after any
// membership, admin, or message-log change. Username identifies the member
// the change was about, when there is one.
type ChannelUpdatePayload struct {
	Channel  *models.Channel `json:"channel"`
	Username string          `json:"username,omitempty"`
}

type ChannelDeleteRequest struct {
	ChannelID int64 `json:"channelID,string"`
}

type ChannelDeletedPayload struct {
	ChannelID int64 `json:"channelID,string"`
}

type MessageSentRequest struct {
	ChannelID int64  `json:"channelID,string"`
	Content   string `json:"content" validate:"required,max=4000"`
}

type MessageEditRequest struct {
	ChannelID int64  `json:"channelID,string"`
	MessageID int64  `json:"messageID,string"`
	Content   string `json:"content" validate:"required,max=4000"`
}

type MessageDeleteRequest struct {
	ChannelID int64 `json:"channelID,string"`
	MessageID int64 `json:"messageID,string"`
}

type MessagePayload struct {
	Message models.Message `json:"message"`
}

type MessageDeletedPayload struct {
	ChannelID int64 `json:"channelID,string"`
	MessageID int64 `json:"messageID,string"`
}

type StatusUpdateRequest struct {
	Status models.Status `json:"status"`
}

// ProfileUpdateRequest carries only the fields the client wants changed. A
// nil Status means presence stays as it is; offline is a valid value and ends
// the session like a logout.
type ProfileUpdateRequest struct {
	Status  *models.Status `json:"status,omitempty"`
	Picture string         `json:"picture"`
	// PictureData is the raw avatar asset, base64 inside JSON. Empty means
	// the picture reference did not change.
	PictureData []byte `json:"pictureData,omitempty"`
}

// UserUpdatePayload broadcasts a user snapshot after a status or profile
// change.
type UserUpdatePayload struct {
	User *models.User `json:"user"`
}
