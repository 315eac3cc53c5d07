package handlers

import (
	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
)

// MessageSent appends to the channel log and broadcasts the stored message,
// sequence id included, to every online member.
func MessageSent(c *hub.Client, ev events.Event) {
	var req events.MessageSentRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}
	if err := validate.Struct(req); err != nil {
		requestFailed(c, ev, "malformed")
		return
	}

	channel, ok := st.Channel(req.ChannelID)
	if !ok {
		requestFailed(c, ev, "unknown_channel")
		return
	}
	if _, ok := channel.Member(c.Username()); !ok {
		requestFailed(c, ev, "not_member")
		return
	}

	msg, err := st.AppendMessage(channel, c.Username(), req.Content)
	if err != nil {
		sugar.Error(err)
		requestFailed(c, ev, "id_allocation")
		return
	}
	persistChannel(channel)

	payload := events.MessagePayload{Message: msg}
	for _, member := range st.ChannelSnapshot(channel).Members {
		hub.SendToUser(member.Username, events.MessageSent, payload)
	}
}

// MessageEdit rewrites a logged message. Only the author may edit.
func MessageEdit(c *hub.Client, ev events.Event) {
	var req events.MessageEditRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}
	if err := validate.Struct(req); err != nil {
		requestFailed(c, ev, "malformed")
		return
	}

	channel, ok := st.Channel(req.ChannelID)
	if !ok {
		requestFailed(c, ev, "unknown_channel")
		return
	}
	existing, ok := st.Message(channel, req.MessageID)
	if !ok {
		requestFailed(c, ev, "unknown_message")
		return
	}
	if existing.Author != c.Username() {
		sugar.Debugf("User [%s] tried to edit message [%d] authored by [%s]", c.Username(), req.MessageID, existing.Author)
		requestFailed(c, ev, "not_author")
		return
	}

	edited, ok := st.EditMessage(channel, req.MessageID, req.Content)
	if !ok {
		requestFailed(c, ev, "unknown_message")
		return
	}
	persistChannel(channel)

	payload := events.MessagePayload{Message: edited}
	for _, member := range st.ChannelSnapshot(channel).Members {
		hub.SendToUser(member.Username, events.MessageEdit, payload)
	}
}

// MessageDelete drops a message from the log. The author or any channel
// admin may delete.
func MessageDelete(c *hub.Client, ev events.Event) {
	var req events.MessageDeleteRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}

	channel, ok := st.Channel(req.ChannelID)
	if !ok {
		requestFailed(c, ev, "unknown_channel")
		return
	}
	existing, ok := st.Message(channel, req.MessageID)
	if !ok {
		requestFailed(c, ev, "unknown_message")
		return
	}
	if existing.Author != c.Username() && !channel.IsAdmin(c.Username()) {
		requestFailed(c, ev, "not_allowed")
		return
	}

	if _, ok := st.DeleteMessage(channel, req.MessageID); !ok {
		requestFailed(c, ev, "unknown_message")
		return
	}
	persistChannel(channel)

	payload := events.MessageDeletedPayload{ChannelID: req.ChannelID, MessageID: req.MessageID}
	for _, member := range st.ChannelSnapshot(channel).Members {
		hub.SendToUser(member.Username, events.MessageDelete, payload)
	}
}
