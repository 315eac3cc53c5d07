package handlers

import (
	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/models"
	"chatserver-backend/internal/persist"
)

// StatusUpdate handles presence changes other than logout, which Receive
// short-circuits inline. No-op updates are absorbed without persistence or
// fan-out.
func StatusUpdate(c *hub.Client, ev events.Event) {
	var req events.StatusUpdateRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}
	if !req.Status.Valid() {
		requestFailed(c, ev, "bad_status")
		return
	}

	user, ok := requester(c)
	if !ok {
		requestFailed(c, ev, "unknown_requester")
		return
	}

	if !st.SetStatus(user, req.Status) {
		return
	}

	persistUser(user)
	persistContainingChannels(user)
	broadcastUserUpdate(events.StatusUpdate, user)
}

// ProfileUpdate diffs the incoming status and picture against the canonical
// user, persisting only what changed. A picture change also flushes the
// avatar asset. Channels the user belongs to are re-persisted because their
// durable member snapshots went stale.
func ProfileUpdate(c *hub.Client, ev events.Event) {
	var req events.ProfileUpdateRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debug(err)
		requestFailed(c, ev, "malformed")
		return
	}

	user, ok := requester(c)
	if !ok {
		requestFailed(c, ev, "unknown_requester")
		return
	}

	statusChanged := req.Status != nil && req.Status.Valid() && st.SetStatus(user, *req.Status)

	pictureChanged := req.Picture != "" && st.SetPicture(user, req.Picture)
	if pictureChanged && len(req.PictureData) > 0 {
		queue.Enqueue(persist.Write{
			Kind:     persist.WriteAvatar,
			Username: user.Username,
			Asset:    req.PictureData,
		})
	}

	if !statusChanged && !pictureChanged {
		return
	}

	persistUser(user)
	persistContainingChannels(user)
	broadcastUserUpdate(events.ProfileUpdate, user)

	// going offline through a profile update ends the session like a logout
	if req.Status != nil && *req.Status == models.StatusOffline {
		hub.Deregister(c)
		c.Stop()
	}
}

func persistContainingChannels(user *models.User) {
	for _, channel := range st.ChannelsOf(user) {
		persistChannel(channel)
	}
}

// broadcastUserUpdate sends the user's snapshot to every *other* currently
// online member of every channel the user belongs to, each at most once.
func broadcastUserUpdate(kind string, user *models.User) {
	snapshot := st.UserSnapshot(user)
	payload := events.UserUpdatePayload{User: snapshot}

	notified := map[string]bool{snapshot.Username: true}
	for _, channel := range st.ChannelsOf(user) {
		for _, member := range st.ChannelSnapshot(channel).Members {
			if notified[member.Username] {
				continue
			}
			notified[member.Username] = true
			hub.SendToUser(member.Username, kind, payload)
		}
	}
}
