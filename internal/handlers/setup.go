// Package handlers contains the business logic behind every request kind:
// resolve canonical entities by the keys in the event, validate, mutate the
// store, enqueue persistence, fan out snapshots to affected online sessions.
package handlers

import (
	"fmt"
	"net/http"

	"chatserver-backend/internal/dispatch"
	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/metrics"
	"chatserver-backend/internal/models"
	"chatserver-backend/internal/persist"
	"chatserver-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	playground "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	sugar      *zap.SugaredLogger
	st         *store.Store
	queue      *persist.Queue
	dispatcher *dispatch.Dispatcher
	validate   *playground.Validate
)

// Init wires the package and registers one handler per queued event kind.
// Login and logout are not registered here; Receive runs them inline on the
// connection goroutine.
func Init(_sugar *zap.SugaredLogger, _st *store.Store, _queue *persist.Queue) *dispatch.Dispatcher {
	sugar = _sugar
	st = _st
	queue = _queue
	validate = playground.New()

	dispatcher = dispatch.New(sugar)
	dispatcher.Register(events.ChannelCreate, ChannelCreate)
	dispatcher.Register(events.ChannelAddMember, ChannelAddMember)
	dispatcher.Register(events.ChannelRemoveMember, ChannelRemoveMember)
	dispatcher.Register(events.ChannelDelete, ChannelDelete)
	dispatcher.Register(events.ChannelPromote, ChannelPromote)
	dispatcher.Register(events.ChannelDemote, ChannelDemote)
	dispatcher.Register(events.MessageSent, MessageSent)
	dispatcher.Register(events.MessageEdit, MessageEdit)
	dispatcher.Register(events.MessageDelete, MessageDelete)
	dispatcher.Register(events.StatusUpdate, StatusUpdate)
	dispatcher.Register(events.ProfileUpdate, ProfileUpdate)
	return dispatcher
}

// Receive routes one decoded request from a connection's read loop.
//
// Login runs inline because before authentication there is no session
// mapping a queued handler could reply through. A logout status update also
// runs inline: it must flip the connection's running flag and deregister the
// session before the read loop blocks again, and queueing it risks the
// dispatcher getting to it too late.
func Receive(c *hub.Client, ev events.Event) {
	switch {
	case ev.Kind == events.Login:
		Login(c, ev)
	case ev.Kind == events.StatusUpdate && isOfflineStatus(ev):
		Logout(c, ev)
	default:
		if c.Username() == "" {
			requestFailed(c, ev, "unauthenticated")
			return
		}
		dispatcher.Enqueue(c, ev)
	}
}

func isOfflineStatus(ev events.Event) bool {
	var req events.StatusUpdateRequest
	if err := ev.Into(&req); err != nil {
		return false
	}
	return req.Status == models.StatusOffline
}

// Serve builds the router and blocks on the listener. A listen failure is
// returned to main, which treats it as fatal.
func Serve(cfg *models.ConfigFile) error {
	r := chi.NewRouter()
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", hub.HandleClient)

	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)

	if cfg.TlsCert != "" && cfg.TlsKey != "" {
		return http.ListenAndServeTLS(address, cfg.TlsCert, cfg.TlsKey, r)
	}
	return http.ListenAndServe(address, r)
}

// requestFailed answers the requesting session only, echoing the rejected
// request. No mutation has happened when this is sent.
func requestFailed(c *hub.Client, ev events.Event, reason string) {
	metrics.RequestsFailedTotal.WithLabelValues(ev.Kind).Inc()
	c.Send(events.RequestFailed, events.RequestFailedPayload{
		Kind:     ev.Kind,
		Original: ev.Data,
		Reason:   reason,
	})
}

// requester resolves the session's user against the store. Canonical state
// is always looked up fresh; nothing embedded in a request is trusted.
func requester(c *hub.Client) (*models.User, bool) {
	username := c.Username()
	if username == "" {
		return nil, false
	}
	return st.User(username)
}

func persistUser(user *models.User) {
	queue.Enqueue(persist.Write{
		Kind:     persist.WriteUser,
		User:     st.UserSnapshot(user),
		Password: st.PasswordOf(user),
	})
}

func persistChannel(channel *models.Channel) {
	queue.Enqueue(persist.Write{
		Kind:    persist.WriteChannel,
		Channel: st.ChannelSnapshot(channel),
	})
}

// broadcastChannel fans a channel snapshot out to every currently online
// member of the snapshot. Offline members are silently skipped; they get
// current state from the channel map on next login.
func broadcastChannel(kind string, snapshot *models.Channel, about string) {
	payload := events.ChannelUpdatePayload{Channel: snapshot, Username: about}
	for _, member := range snapshot.Members {
		hub.SendToUser(member.Username, kind, payload)
	}
}
