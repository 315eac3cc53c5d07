// Package dispatch serializes all queued request handling onto one consumer
// goroutine. Connection read loops enqueue; the single Run loop drains in
// FIFO order and routes each event to the handler registered for its kind.
// Because only this goroutine runs queued handlers, two racing requests that
// touch the same channel are applied one at a time.
package dispatch

import (
	"context"

	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/metrics"

	"go.uber.org/zap"
)

const queueBuffer = 1024

// HandlerFunc is the business logic for one event kind. The client is the
// requesting session, used for requestFailed replies.
type HandlerFunc func(c *hub.Client, ev events.Event)

type item struct {
	client *hub.Client
	event  events.Event
}

type Dispatcher struct {
	queue    chan item
	handlers map[string]HandlerFunc
	sugar    *zap.SugaredLogger
}

func New(sugar *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		queue:    make(chan item, queueBuffer),
		handlers: make(map[string]HandlerFunc),
		sugar:    sugar,
	}
}

// Register binds a handler to an event kind. Registration happens once at
// setup, before Run starts; the map is read-only afterwards.
func (d *Dispatcher) Register(kind string, handler HandlerFunc) {
	d.handlers[kind] = handler
}

// Enqueue hands an event to the dispatcher. Per-connection FIFO ordering is
// preserved: a connection goroutine enqueues its own events in the order the
// client sent them.
func (d *Dispatcher) Enqueue(c *hub.Client, ev events.Event) {
	d.queue <- item{client: c, event: ev}
}

// Run drains the queue until ctx is cancelled. An event with no registered
// handler is logged and dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-d.queue:
			handler, ok := d.handlers[next.event.Kind]
			if !ok {
				d.sugar.Warnf("No handler registered for event kind [%s], dropping it", next.event.Kind)
				continue
			}
			metrics.EventsDispatchedTotal.WithLabelValues(next.event.Kind).Inc()
			handler(next.client, next.event)
		}
	}
}
