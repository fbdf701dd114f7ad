/*
Package auth provides sessions for the CRM: password hashing, signed
session tokens and the HTTP middleware that turns a token into a
crm.Identity.

SESSION FORMAT:
  HS256 JWT carrying {user_id, email, role, location_id}, a random jti and
  an expiry. Sent as "Authorization: Bearer <token>" or in the "session"
  cookie.

IDENTITY:
  The middleware resolves the token to a crm.Identity and stores it in the
  request context. A missing or invalid token yields crm.Anonymous; the
  handlers decide whether that is acceptable. A failed user lookup is a
  500.

SEE ALSO:
  - crm/identity.go: Identity and Scope
  - api/handlers.go: login, logout and me endpoints
*/
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/warp/donor-crm/crm"
)

var (
	ErrInvalidJWT = errors.New("invalid JWT token")
	ErrExpiredJWT = errors.New("JWT token expired")
)

// Claims represents the session claims.
type Claims struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	LocationID *int64 `json:"location_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims to the identity handed to services.
func (c *Claims) Identity() crm.Identity {
	return crm.Identity{UserID: c.UserID, Email: c.Email, Role: crm.Role(c.Role), LocationID: c.LocationID}
}

// GenerateJWT signs a session token for user valid for ttl.
func GenerateJWT(user crm.User, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := &Claims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       string(user.Role),
		LocationID: user.LocationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// ValidateJWT validates a token and returns its claims.
func ValidateJWT(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredJWT
		}
		return nil, ErrInvalidJWT
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}
	return nil, ErrInvalidJWT
}
