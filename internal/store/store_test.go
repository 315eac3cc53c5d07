package store

import (
	"os"
	"testing"

	"chatserver-backend/internal/models"
	"chatserver-backend/internal/snowflake"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	if err := snowflake.Setup(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestStore() *Store {
	return New(zap.NewNop().Sugar())
}

func newUser(username string) *models.User {
	return &models.User{
		Username: username,
		Password: []byte("hash"),
		Status:   models.StatusOnline,
		Picture:  "default",
		Channels: []int64{},
	}
}

func TestPutUserIfAbsent(t *testing.T) {
	st := newTestStore()

	if !st.PutUserIfAbsent(newUser("alice")) {
		t.Fatal("first insert should succeed")
	}
	if st.PutUserIfAbsent(newUser("alice")) {
		t.Fatal("second insert for the same username should be refused")
	}
	if st.UserCount() != 1 {
		t.Fatalf("expected 1 user, got %d", st.UserCount())
	}
}

func TestCreateChannelLinksMembers(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	st.PutUser(alice)
	st.PutUser(bob)

	channel, err := st.CreateChannel("general", []*models.User{bob, alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}

	if got, ok := st.Channel(channel.ID); !ok || got != channel {
		t.Fatal("channel not retrievable by id")
	}
	for _, user := range []*models.User{alice, bob} {
		if !user.InChannel(channel.ID) {
			t.Fatalf("user [%s] missing channel id after create", user.Username)
		}
	}
	if !channel.IsAdmin("alice") {
		t.Fatal("creator should be admin")
	}
}

func TestFindDirectChannelBothOrders(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	st.PutUser(alice)
	st.PutUser(bob)

	channel, err := st.CreateChannel("bob", []*models.User{bob, alice}, []string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}

	found, ok := st.FindDirectChannel(alice, bob)
	if !ok || found.ID != channel.ID {
		t.Fatal("direct channel not found from creator side")
	}
	found, ok = st.FindDirectChannel(bob, alice)
	if !ok || found.ID != channel.ID {
		t.Fatal("direct channel not found from counterparty side")
	}
}

func TestAddRemoveMemberBidirectional(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	carol := newUser("carol")
	st.PutUser(alice)
	st.PutUser(bob)
	st.PutUser(carol)

	channel, err := st.CreateChannel("general", []*models.User{bob, alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}

	st.AddMember(channel, carol)
	st.AddMember(channel, carol)
	if len(channel.Members) != 3 {
		t.Fatalf("expected 3 members after re-adding carol, got %d", len(channel.Members))
	}
	if !carol.InChannel(channel.ID) {
		t.Fatal("carol's membership list missing the channel")
	}

	if empty := st.RemoveMember(channel, carol); empty {
		t.Fatal("channel reported empty with members remaining")
	}
	if _, ok := channel.Member("carol"); ok {
		t.Fatal("carol still listed as member")
	}
	if carol.InChannel(channel.ID) {
		t.Fatal("carol's membership list still holds the channel")
	}

	st.RemoveMember(channel, bob)
	if empty := st.RemoveMember(channel, alice); !empty {
		t.Fatal("channel should report empty after last removal")
	}
	if channel.IsAdmin("alice") {
		t.Fatal("removal should drop the admin flag")
	}
}

func TestSetAdminRequiresMembership(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	st.PutUser(alice)
	st.PutUser(bob)

	channel, err := st.CreateChannel("general", []*models.User{alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}

	if st.SetAdmin(channel, "bob", true) {
		t.Fatal("granting admin to a non-member should be refused")
	}
	st.AddMember(channel, bob)
	if !st.SetAdmin(channel, "bob", true) {
		t.Fatal("granting admin to a member should succeed")
	}
	if !st.SetAdmin(channel, "bob", true) {
		t.Fatal("re-granting admin should be an idempotent success")
	}
	if len(channel.Admins) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(channel.Admins))
	}
	if !st.SetAdmin(channel, "bob", false) {
		t.Fatal("revoking an existing admin should succeed")
	}
	if channel.IsAdmin("bob") {
		t.Fatal("bob should no longer be admin")
	}
}

func TestDeleteChannelStripsMembers(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	st.PutUser(alice)
	st.PutUser(bob)

	channel, err := st.CreateChannel("general", []*models.User{bob, alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}

	changed := st.DeleteChannel(channel.ID)
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed users, got %d", len(changed))
	}
	if _, ok := st.Channel(channel.ID); ok {
		t.Fatal("channel still retrievable after delete")
	}
	for _, user := range []*models.User{alice, bob} {
		if user.InChannel(channel.ID) {
			t.Fatalf("user [%s] still references the deleted channel", user.Username)
		}
	}

	if st.DeleteChannel(channel.ID) != nil {
		t.Fatal("deleting an absent channel should change nothing")
	}
}

func TestMessageLifecycle(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	st.PutUser(alice)

	channel, err := st.CreateChannel("general", []*models.User{alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := st.AppendMessage(channel, "alice", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ChannelID != channel.ID || msg.Author != "alice" {
		t.Fatalf("unexpected message fields: %+v", msg)
	}

	edited, ok := st.EditMessage(channel, msg.ID, "hello again")
	if !ok {
		t.Fatal("edit of an existing message failed")
	}
	if edited.Content != "hello again" || !edited.Edited {
		t.Fatalf("unexpected edited message: %+v", edited)
	}

	if _, ok := st.EditMessage(channel, msg.ID+1, "x"); ok {
		t.Fatal("edit of an unknown message id should fail")
	}

	deleted, ok := st.DeleteMessage(channel, msg.ID)
	if !ok || deleted.ID != msg.ID {
		t.Fatal("delete of an existing message failed")
	}
	if _, ok := st.Message(channel, msg.ID); ok {
		t.Fatal("message still present after delete")
	}
}

func TestSnapshotsDetached(t *testing.T) {
	st := newTestStore()
	alice := newUser("alice")
	bob := newUser("bob")
	st.PutUser(alice)
	st.PutUser(bob)

	channel, err := st.CreateChannel("general", []*models.User{bob, alice}, []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.AppendMessage(channel, "alice", "hello"); err != nil {
		t.Fatal(err)
	}

	snap := st.ChannelSnapshot(channel)
	snap.Name = "renamed"
	snap.Members[0].Status = models.StatusBusy
	snap.Messages[0].Content = "tampered"

	if channel.Name != "general" {
		t.Fatal("mutating the snapshot changed the canonical channel name")
	}
	if channel.Members[0].Status != models.StatusOnline {
		t.Fatal("mutating the snapshot changed a canonical member")
	}
	if channel.Messages[0].Content != "hello" {
		t.Fatal("mutating the snapshot changed the canonical message log")
	}

	userSnap := st.UserSnapshot(alice)
	if len(userSnap.Password) != 0 {
		t.Fatal("user snapshot must not carry the credential hash")
	}
	userSnap.Channels[0] = -1
	if alice.Channels[0] == -1 {
		t.Fatal("mutating the snapshot changed the canonical membership list")
	}
}
