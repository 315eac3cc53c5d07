package hub

import (
	"os"
	"testing"

	"chatserver-backend/internal/events"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	Setup(zap.NewNop().Sugar(), nil, true, nil)
	os.Exit(m.Run())
}

func TestRegisterNewestLoginWins(t *testing.T) {
	first := NewLocalClient()
	second := NewLocalClient()

	Register("alice", first)
	Register("alice", second)

	if first.running.Load() {
		t.Fatal("replaced session should be stopped")
	}
	client, online := SessionFor("alice")
	if !online || client != second {
		t.Fatal("registry should point at the newest session")
	}

	// the replaced session must not evict its replacement
	Deregister(first)
	if !IsOnline("alice") {
		t.Fatal("stale deregister removed the live session")
	}

	Deregister(second)
	if IsOnline("alice") {
		t.Fatal("user still online after deregistering the live session")
	}
}

func TestSendToUserSkipsOffline(t *testing.T) {
	// no session for this user: delivery is silently dropped
	SendToUser("nobody", events.StatusUpdate, events.StatusUpdateRequest{})

	c := NewLocalClient()
	Register("bob", c)
	defer Deregister(c)

	SendToUser("bob", events.MessageSent, events.MessagePayload{})
	frame, ok := c.NextFrame()
	if !ok {
		t.Fatal("expected a frame for the online user")
	}
	ev, err := events.Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != events.MessageSent {
		t.Fatalf("unexpected kind %q", ev.Kind)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewLocalClient()
	c.Stop()
	c.Stop()

	if c.running.Load() {
		t.Fatal("client still running after Stop")
	}
}

func TestNextFrameEmptyBuffer(t *testing.T) {
	c := NewLocalClient()
	if _, ok := c.NextFrame(); ok {
		t.Fatal("expected no frame from a fresh client")
	}
}
