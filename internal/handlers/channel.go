package handlers

import (
	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/models"
	"chatserver-backend/internal/persist"
	"chatserver-backend/internal/validator"
)

// ChannelCreate resolves the invited usernames, deduplicates two-party
// channels against the creator's existing direct channels, and otherwise
// materializes a fresh channel with the creator as admin. The reply goes to
// the creator only; other members pick the channel up from their channel map
// on next login, or through later membership events.
func ChannelCreate(c *hub.Client, ev events.Event) {
	var req events.ChannelCreateRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}
	if err := validate.Struct(req); err != nil {
		requestFailed(c, ev, "malformed")
		return
	}

	creator, ok := requester(c)
	if !ok {
		requestFailed(c, ev, "unknown_requester")
		return
	}

	if err := validator.ChannelName(req.Name); err != nil {
		requestFailed(c, ev, err.Error())
		return
	}

	members := resolveInvited(creator, req.Usernames)
	if len(members) == 0 {
		sugar.Debugf("User [%s] tried to create channel [%s] with no resolvable members", creator.Username, req.Name)
		requestFailed(c, ev, "no_known_users")
		return
	}

	// the creator is always a member, and always last so a two-party
	// channel is [invitee, creator]
	members = append(members, creator)

	// a direct channel is unique per unordered pair: hand back the existing
	// one instead of duplicating it
	if len(members) == 2 {
		if existing, found := st.FindDirectChannel(creator, members[0]); found {
			sugar.Debugf("User [%s] recreating direct channel [%d], reusing it", creator.Username, existing.ID)
			c.Send(events.ChannelCreate, events.ChannelCreatedPayload{
				Channel: st.ChannelSnapshot(existing),
				Reused:  true,
			})
			return
		}
	}

	admins := []string{creator.Username}
	if len(members) == 2 {
		// both parties administer a direct channel
		admins = append(admins, members[0].Username)
	}

	channel, err := st.CreateChannel(req.Name, members, admins)
	if err != nil {
		sugar.Error(err)
		requestFailed(c, ev, "id_allocation")
		return
	}

	persistChannel(channel)
	for _, member := range members {
		persistUser(member)
	}

	sugar.Infof("User [%s] created channel [%s] id [%d] with %d members", creator.Username, req.Name, channel.ID, len(members))
	c.Send(events.ChannelCreate, events.ChannelCreatedPayload{Channel: st.ChannelSnapshot(channel)})
}

// resolveInvited maps invited usernames to canonical users, discarding
// unknown names, duplicates, and the creator (who is added separately).
func resolveInvited(creator *models.User, usernames []string) []*models.User {
	seen := make(map[string]bool, len(usernames))
	resolved := make([]*models.User, 0, len(usernames))
	for _, username := range usernames {
		if username == creator.Username || seen[username] {
			continue
		}
		seen[username] = true
		user, ok := st.User(username)
		if !ok {
			continue
		}
		resolved = append(resolved, user)
	}
	return resolved
}

// ChannelDelete removes the channel for good: every member's membership list
// is stripped and persisted, the durable record is deleted, and online
// members are told.
func ChannelDelete(c *hub.Client, ev events.Event) {
	var req events.ChannelDeleteRequest
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
		sugar.Debugf("User [%s] tried to delete channel [%d] without admin", c.Username(), req.ChannelID)
		requestFailed(c, ev, "not_admin")
		return
	}

	// capture the member list before the store forgets it
	snapshot := st.ChannelSnapshot(channel)
	changed := st.DeleteChannel(req.ChannelID)

	queue.Enqueue(persist.Write{Kind: persist.WriteChannelDelete, ChannelID: req.ChannelID})
	for _, member := range changed {
		persistUser(member)
	}

	sugar.Infof("User [%s] deleted channel [%d]", c.Username(), req.ChannelID)
	payload := events.ChannelDeletedPayload{ChannelID: req.ChannelID}
	for _, member := range snapshot.Members {
		hub.SendToUser(member.Username, events.ChannelDelete, payload)
	}
}
