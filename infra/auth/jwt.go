package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radlee/payments-api/protocols"
)

const issuer = "payments-api"

var (
	ErrInvalidClient = errors.New("invalid client credentials")
	ErrMissingSecret = errors.New("jwt signing secret is not configured")
)

// JWT issues and verifies HS256 bearer tokens for registered API clients.
type JWT struct {
	secret  []byte
	ttl     time.Duration
	clients map[string]string
	clock   protocols.Clock
}

func NewJWT(secret string, ttl time.Duration, clients map[string]string, clock protocols.Clock) (*JWT, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	registry := make(map[string]string, len(clients))
	for id, s := range clients {
		registry[id] = s
	}
	return &JWT{secret: []byte(secret), ttl: ttl, clients: registry, clock: clock}, nil
}

// Issue exchanges client credentials for a signed token.
func (j *JWT) Issue(clientID, clientSecret string) (string, time.Duration, error) {
	expected, ok := j.clients[clientID]
	if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(clientSecret)) != 1 {
		return "", 0, ErrInvalidClient
	}
	now := j.clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, j.ttl, nil
}

// IsAuthorized accepts an Authorization header value or a bare token.
func (j *JWT) IsAuthorized(credential string) bool {
	raw := strings.TrimSpace(credential)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil || !token.Valid {
		return false
	}
	_, registered := j.clients[claims.Subject]
	return registered
}
