// internal/auth/token.go

// Package auth mints and verifies the signed reconnect tokens handed to every
// connecting peer.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret []byte

// tokenLifetime bounds how long a reconnect token stays verifiable. The
// session layer enforces the much shorter reconnect window on top.
const tokenLifetime = 24 * time.Hour

// Init sets the HMAC signing secret. An empty secret generates a random one,
// which invalidates outstanding tokens across restarts.
func Init(s string) error {
	if s != "" {
		secret = []byte(s)
		return nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate token secret: %w", err)
	}
	secret = []byte(hex.EncodeToString(buf))
	return nil
}

// CreateReconnectToken mints a signed token bound to the player id.
func CreateReconnectToken(playerID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": playerID,
		"exp": time.Now().Add(tokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyReconnectToken validates the signature and expiry and returns the
// player id the token was minted for.
func VerifyReconnectToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse reconnect token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid reconnect token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("reconnect token missing subject")
	}
	return sub, nil
}
