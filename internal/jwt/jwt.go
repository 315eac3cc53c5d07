// Package jwt issues and verifies the session-resume tokens handed out in
// auth replies. A token lets a returning client log back in without resending
// its credential; the keyValue registry decides whether a token is still
// live.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 30 * 24 * time.Hour

type SessionToken struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var jwtSecret []byte

func Setup(key string) {
	jwtSecret = []byte(key)
}

// CreateToken signs a resume token for username. The token id (jti) is what
// the keyValue registry tracks; issuing a new token rotates the previous one
// out even though its signature stays valid.
func CreateToken(username string, tokenID string) (string, error) {
	now := time.Now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, SessionToken{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	})

	return token.SignedString(jwtSecret)
}

func VerifyToken(tokenString string) (SessionToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionToken{}, func(token *jwt.Token) (any, error) {
		return jwtSecret, nil
	})
	if err != nil {
		return SessionToken{}, err
	}

	claims, ok := token.Claims.(*SessionToken)
	if !ok {
		return SessionToken{}, errors.New("invalid token claims")
	}
	return *claims, nil
}
