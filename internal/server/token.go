package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoomClaims is the access token payload for a room connection.
type RoomClaims struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	jwt.RegisteredClaims
}

// GenerateRoomToken mints an HS256 access token binding an identity to a
// room.
func GenerateRoomToken(secret, identity, room string, ttl time.Duration) (string, error) {
	claims := &RoomClaims{
		Identity: identity,
		Room:     room,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateRoomToken parses and verifies a room access token.
func ValidateRoomToken(secret, tokenStr string) (*RoomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &RoomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Identity == "" || claims.Room == "" {
		return nil, fmt.Errorf("token missing identity or room")
	}
	return claims, nil
}
