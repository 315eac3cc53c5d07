package handlers

import (
	"fmt"
	"time"

	"chatserver-backend/internal/events"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/jwt"
	"chatserver-backend/internal/keyValue"
	"chatserver-backend/internal/models"
	"chatserver-backend/internal/validator"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenRegistryLifetime = 30 * 24 * time.Hour

// Login runs inline on the connection goroutine. Both outcomes reply on this
// session only: authFailed echoing the request, or authSucceeded carrying
// the canonical user, the resolved channel map, and a fresh resume token.
func Login(c *hub.Client, ev events.Event) {
	var req events.LoginRequest
	if err := ev.Into(&req); err != nil {
		sugar.Debugf("Malformed login from session [%s]: %v", c.SessionID, err)
		authFailed(c, req)
		return
	}

	if err := validate.Struct(req); err != nil {
		sugar.Debugf("Login from session [%s] failed validation: %v", c.SessionID, err)
		authFailed(c, req)
		return
	}
	if err := validator.Username(req.Username); err != nil {
		sugar.Debugf("Login from session [%s] rejected: %v", c.SessionID, err)
		authFailed(c, req)
		return
	}

	if req.NewAccount {
		registerAccount(c, req)
		return
	}
	loginExisting(c, req)
}

func registerAccount(c *hub.Client, req events.LoginRequest) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		sugar.Error(err)
		authFailed(c, req)
		return
	}

	user := &models.User{
		Username: req.Username,
		Password: hash,
		Status:   models.StatusOnline,
		Picture:  "default",
		Channels: []int64{},
	}

	// the put is conditional so two racing registrations of the same
	// username cannot both win
	if !st.PutUserIfAbsent(user) {
		sugar.Debugf("Registration for taken username [%s] refused", req.Username)
		authFailed(c, req)
		return
	}

	hub.Register(req.Username, c)
	persistUser(user)

	token, err := issueToken(req.Username)
	if err != nil {
		sugar.Error(err)
	}

	sugar.Infof("Registered new user [%s] on session [%s]", req.Username, c.SessionID)
	c.Send(events.AuthSucceeded, events.AuthSucceededPayload{
		User:     st.UserSnapshot(user),
		Channels: map[int64]*models.Channel{},
		Token:    token,
	})
}

func loginExisting(c *hub.Client, req events.LoginRequest) {
	user, ok := st.User(req.Username)
	if !ok {
		sugar.Debugf("Login for unknown username [%s] refused", req.Username)
		authFailed(c, req)
		return
	}

	if req.Token != "" {
		if !verifyResumeToken(req.Username, req.Token) {
			authFailed(c, req)
			return
		}
	} else {
		if err := bcrypt.CompareHashAndPassword(st.PasswordOf(user), []byte(req.Password)); err != nil {
			sugar.Debugf("Credential mismatch for username [%s]", req.Username)
			authFailed(c, req)
			return
		}
	}

	if st.SetStatus(user, models.StatusOnline) {
		persistUser(user)
	}
	hub.Register(req.Username, c)

	token, err := issueToken(req.Username)
	if err != nil {
		sugar.Error(err)
	}

	sugar.Infof("User [%s] logged in on session [%s]", req.Username, c.SessionID)
	c.Send(events.AuthSucceeded, events.AuthSucceededPayload{
		User:     st.UserSnapshot(user),
		Channels: st.ChannelMap(user),
		Token:    token,
	})
}

// Logout also runs inline: it must deregister the session and flip the
// running flag before the read loop would block on the next frame.
func Logout(c *hub.Client, ev events.Event) {
	user, ok := requester(c)
	if !ok {
		c.Stop()
		return
	}

	if st.SetStatus(user, models.StatusOffline) {
		persistUser(user)
		broadcastUserUpdate(events.StatusUpdate, user)
	}

	hub.Deregister(c)
	c.Stop()
	sugar.Infof("User [%s] logged out from session [%s]", user.Username, c.SessionID)
}

func authFailed(c *hub.Client, req events.LoginRequest) {
	req.Password = ""
	req.Token = ""
	c.Send(events.AuthFailed, events.AuthFailedPayload{Original: req})
}

// issueToken signs a fresh resume token and records its id as the user's
// only live one; issuing rotates out whatever token the user held before.
func issueToken(username string) (string, error) {
	tokenID := uuid.NewString()
	token, err := jwt.CreateToken(username, tokenID)
	if err != nil {
		return "", err
	}
	if err := keyValue.Set(tokenRegistryKey(username), tokenID, tokenRegistryLifetime); err != nil {
		return "", err
	}
	return token, nil
}

func verifyResumeToken(username string, token string) bool {
	claims, err := jwt.VerifyToken(token)
	if err != nil {
		sugar.Debugf("Resume token for [%s] failed verification: %v", username, err)
		return false
	}
	if claims.Username != username {
		sugar.Warnf("Resume token subject [%s] does not match login username [%s]", claims.Username, username)
		return false
	}

	liveID, err := keyValue.Get(tokenRegistryKey(username))
	if err != nil {
		sugar.Error(err)
		return false
	}
	return liveID != "" && liveID == claims.ID
}

func tokenRegistryKey(username string) string {
	return fmt.Sprintf("resume_token:%s", username)
}
