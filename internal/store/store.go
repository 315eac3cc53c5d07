// Package store holds the server's canonical in-memory directories of users
// and channels. Everything a handler mutates or broadcasts lives here;
// entities embedded in client requests are only keys into these maps.
//
// The store is touched from two goroutine families: the dispatcher (all
// queued handlers) and connection goroutines (inline login/logout). One
// RWMutex guards both maps, so neither path can corrupt the other.
package store

import (
	"sync"
	"time"

	"chatserver-backend/internal/models"
	"chatserver-backend/internal/snowflake"

	"go.uber.org/zap"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	channels map[int64]*models.Channel
	sugar    *zap.SugaredLogger
}

func New(sugar *zap.SugaredLogger) *Store {
	return &Store{
		users:    make(map[string]*models.User),
		channels: make(map[int64]*models.Channel),
		sugar:    sugar,
	}
}

func (s *Store) User(username string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	return user, ok
}

func (s *Store) PutUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.Username] = user
}

// PutUserIfAbsent inserts the user unless the username is already taken.
// Registration goes through this so two racing registrations cannot both
// win.
func (s *Store) PutUserIfAbsent(user *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.users[user.Username]; taken {
		return false
	}
	s.users[user.Username] = user
	return true
}

func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

func (s *Store) Channel(id int64) (*models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.channels[id]
	return channel, ok
}

func (s *Store) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.channels)
}

// CreateChannel allocates a fresh id, inserts the channel with the given
// members and admins, and adds the id to every member's membership list.
func (s *Store) CreateChannel(name string, members []*models.User, admins []string) (*models.Channel, error) {
	id, err := snowflake.Generate()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	channel := &models.Channel{
		ID:      id,
		Name:    name,
		Members: members,
		Admins:  admins,
	}
	s.channels[id] = channel
	for _, member := range members {
		member.Channels = append(member.Channels, id)
	}
	return channel, nil
}

// PutChannel inserts an already-built channel, used when loading durable
// records at startup. Membership lists are assumed consistent in the records.
func (s *Store) PutChannel(channel *models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel.ID] = channel
}

// DeleteChannel removes the channel and strips its id from every member,
// returning the members whose lists changed.
func (s *Store) DeleteChannel(id int64) []*models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[id]
	if !ok {
		return nil
	}
	delete(s.channels, id)

	changed := make([]*models.User, 0, len(channel.Members))
	for _, member := range channel.Members {
		removeID(member, id)
		changed = append(changed, member)
	}
	return changed
}

// AddMember puts user into the channel and the channel id into the user,
// keeping membership bidirectionally consistent. Adding an existing member is
// a no-op.
func (s *Store) AddMember(channel *models.Channel, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := channel.Member(user.Username); ok {
		return
	}
	channel.Members = append(channel.Members, user)
	user.Channels = append(user.Channels, channel.ID)
}

// RemoveMember undoes AddMember on both sides and drops the user from the
// admin set. It reports whether the channel is now empty; the caller decides
// whether an empty channel survives.
func (s *Store) RemoveMember(channel *models.Channel, user *models.User) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, member := range channel.Members {
		if member.Username == user.Username {
			channel.Members = append(channel.Members[:i], channel.Members[i+1:]...)
			break
		}
	}
	removeAdmin(channel, user.Username)
	removeID(user, channel.ID)
	return len(channel.Members) == 0
}

// SetAdmin grants or revokes the admin flag. Granting to a non-member is
// refused so the admin set stays a subset of the members.
func (s *Store) SetAdmin(channel *models.Channel, username string, admin bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if admin {
		if _, ok := channel.Member(username); !ok {
			return false
		}
		if channel.IsAdmin(username) {
			return true
		}
		channel.Admins = append(channel.Admins, username)
		return true
	}
	return removeAdmin(channel, username)
}

// FindDirectChannel searches the creator's channels for a two-party channel
// holding exactly this unordered pair.
func (s *Store) FindDirectChannel(creator, other *models.User) (*models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range creator.Channels {
		channel, ok := s.channels[id]
		if !ok || !channel.IsDirect() {
			continue
		}
		first, second := channel.Members[0].Username, channel.Members[1].Username
		if (first == creator.Username && second == other.Username) ||
			(first == other.Username && second == creator.Username) {
			return channel, true
		}
	}
	return nil, false
}

// ChannelMap resolves every channel id in the user's membership list to a
// snapshot, the shape a login reply carries. Ids with no live channel are
// logged and skipped.
func (s *Store) ChannelMap(user *models.User) map[int64]*models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved := make(map[int64]*models.Channel, len(user.Channels))
	for _, id := range user.Channels {
		channel, ok := s.channels[id]
		if !ok {
			s.sugar.Warnf("User [%s] references channel ID [%d] which is not in the store", user.Username, id)
			continue
		}
		resolved[id] = channel.Snapshot()
	}
	return resolved
}

// ChannelsOf resolves the user's membership list to live channels, skipping
// dangling ids.
func (s *Store) ChannelsOf(user *models.User) []*models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved := make([]*models.Channel, 0, len(user.Channels))
	for _, id := range user.Channels {
		if channel, ok := s.channels[id]; ok {
			resolved = append(resolved, channel)
		}
	}
	return resolved
}

// Message looks a message up in the channel log by id.
func (s *Store) Message(channel *models.Channel, messageID int64) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msg := range channel.Messages {
		if msg.ID == messageID {
			return msg, true
		}
	}
	return models.Message{}, false
}

// AppendMessage adds a message to the channel log under a fresh id.
func (s *Store) AppendMessage(channel *models.Channel, author, content string) (models.Message, error) {
	id, err := snowflake.Generate()
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:        id,
		ChannelID: channel.ID,
		Author:    author,
		Content:   content,
		SentAt:    time.Now().UTC(),
	}
	channel.Messages = append(channel.Messages, msg)
	return msg, nil
}

// EditMessage rewrites the content of a logged message and marks it edited.
func (s *Store) EditMessage(channel *models.Channel, messageID int64, content string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range channel.Messages {
		if channel.Messages[i].ID == messageID {
			channel.Messages[i].Content = content
			channel.Messages[i].Edited = true
			return channel.Messages[i], true
		}
	}
	return models.Message{}, false
}

// DeleteMessage drops a message from the log.
func (s *Store) DeleteMessage(channel *models.Channel, messageID int64) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range channel.Messages {
		if channel.Messages[i].ID == messageID {
			deleted := channel.Messages[i]
			channel.Messages = append(channel.Messages[:i], channel.Messages[i+1:]...)
			return deleted, true
		}
	}
	return models.Message{}, false
}

// UserSnapshot and ChannelSnapshot copy an entity under the store lock, for
// persistence and fan-out.
func (s *Store) UserSnapshot(user *models.User) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return user.Snapshot()
}

func (s *Store) ChannelSnapshot(channel *models.Channel) *models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return channel.Snapshot()
}

// PasswordOf reads the credential hash under the lock; snapshots never carry
// it.
func (s *Store) PasswordOf(user *models.User) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := make([]byte, len(user.Password))
	copy(hash, user.Password)
	return hash
}

// SetStatus updates presence, reporting whether it changed.
func (s *Store) SetStatus(user *models.User, status models.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Status == status {
		return false
	}
	user.Status = status
	return true
}

// SetPicture updates the profile-image reference, reporting whether it
// changed.
func (s *Store) SetPicture(user *models.User, picture string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Picture == picture {
		return false
	}
	user.Picture = picture
	return true
}

func removeID(user *models.User, id int64) {
	for i, channelID := range user.Channels {
		if channelID == id {
			user.Channels = append(user.Channels[:i], user.Channels[i+1:]...)
			return
		}
	}
}

func removeAdmin(channel *models.Channel, username string) bool {
	for i, admin := range channel.Admins {
		if admin == username {
			channel.Admins = append(channel.Admins[:i], channel.Admins[i+1:]...)
			return true
		}
	}
	return false
}
