package handlers

import (
	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/persist"
)

// ChannelAddMember adds a known user to a channel, keeping membership
// bidirectionally consistent, and broadcasts the updated channel to every
// online member — the new member included, if they are online.
func ChannelAddMember(c *hub.Client, ev events.Event) {
	var req events.ChannelMemberRequest
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
	if _, ok := channel.Member(c.Username()); !ok {
		sugar.Debugf("User [%s] tried to add a member to channel [%d] they are not in", c.Username(), req.ChannelID)
		requestFailed(c, ev, "not_member")
		return
	}

	target, ok := st.User(req.Username)
	if !ok {
		sugar.Debugf("User [%s] tried to add nonexistent user [%s] to channel [%d]", c.Username(), req.Username, req.ChannelID)
		requestFailed(c, ev, "unknown_user")
		return
	}

	st.AddMember(channel, target)
	persistChannel(channel)
	persistUser(target)

	sugar.Infof("User [%s] added [%s] to channel [%d]", c.Username(), req.Username, req.ChannelID)
	broadcastChannel(events.ChannelAddMember, st.ChannelSnapshot(channel), req.Username)
}

// ChannelRemoveMember is admin-only. The removed user is notified along with
// the remaining members; a channel left empty is deleted outright, and a
// channel left without admins promotes its oldest member so it stays
// governable.
func ChannelRemoveMember(c *hub.Client, ev events.Event) {
	var req events.ChannelMemberRequest
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
	if !channel.IsAdmin(c.Username()) {
		requestFailed(c, ev, "not_admin")
		return
	}
	target, ok := st.User(req.Username)
	if !ok {
		requestFailed(c, ev, "unknown_user")
		return
	}
	if _, ok := channel.Member(req.Username); !ok {
		requestFailed(c, ev, "not_member")
		return
	}

	empty := st.RemoveMember(channel, target)
	persistUser(target)

	if empty {
		st.DeleteChannel(req.ChannelID)
		queue.Enqueue(persist.Write{Kind: persist.WriteChannelDelete, ChannelID: req.ChannelID})
		sugar.Infof("Channel [%d] emptied by removal of [%s] and deleted", req.ChannelID, req.Username)
		hub.SendToUser(req.Username, events.ChannelDelete, events.ChannelDeletedPayload{ChannelID: req.ChannelID})
		return
	}

	if len(channel.Admins) == 0 {
		st.SetAdmin(channel, channel.Members[0].Username, true)
	}
	persistChannel(channel)

	sugar.Infof("User [%s] removed [%s] from channel [%d]", c.Username(), req.Username, req.ChannelID)
	snapshot := st.ChannelSnapshot(channel)
	broadcastChannel(events.ChannelRemoveMember, snapshot, req.Username)
	hub.SendToUser(req.Username, events.ChannelRemoveMember, events.ChannelUpdatePayload{
		Channel:  snapshot,
		Username: req.Username,
	})
}

// ChannelPromote grants the admin flag to an existing member.
func ChannelPromote(c *hub.Client, ev events.Event) {
	var req events.ChannelMemberRequest
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
	if !channel.IsAdmin(c.Username()) {
		requestFailed(c, ev, "not_admin")
		return
	}
	if !st.SetAdmin(channel, req.Username, true) {
		requestFailed(c, ev, "not_member")
		return
	}

	persistChannel(channel)
	sugar.Infof("User [%s] promoted [%s] in channel [%d]", c.Username(), req.Username, req.ChannelID)
	broadcastChannel(events.ChannelPromote, st.ChannelSnapshot(channel), req.Username)
}

// ChannelDemote revokes the admin flag. The last admin cannot be demoted;
// every channel keeps at least one.
func ChannelDemote(c *hub.Client, ev events.Event) {
	var req events.ChannelMemberRequest
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
	if !channel.IsAdmin(c.Username()) {
		requestFailed(c, ev, "not_admin")
		return
	}
	if !channel.IsAdmin(req.Username) {
		requestFailed(c, ev, "not_admin_target")
		return
	}
	if len(channel.Admins) == 1 {
		requestFailed(c, ev, "last_admin")
		return
	}

	st.SetAdmin(channel, req.Username, false)
	persistChannel(channel)
	sugar.Infof("User [%s] demoted [%s] in channel [%d]", c.Username(), req.Username, req.ChannelID)
	broadcastChannel(events.ChannelDemote, st.ChannelSnapshot(channel), req.Username)
}
