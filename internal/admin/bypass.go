package admin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeBypass is the typ claim on quota bypass tokens.
const TokenTypeBypass = "bypass"

// BypassTokenExpiry bounds how long a redeemed credential keeps a
// client unlimited. After expiry the client is back on the normal
// daily quota.
const BypassTokenExpiry = 24 * time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when bypass token validation fails.
var ErrInvalidToken = errors.New("invalid bypass token")

// ErrExpiredToken is returned when the bypass token has expired.
var ErrExpiredToken = errors.New("bypass token has expired")

// BypassClaims are the custom JWT claims carried by bypass tokens.
type BypassClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// BypassTokens signs and validates quota bypass tokens. A token is
// handed out when a client presents the bypass credential and is then
// attached to subsequent requests instead of the credential itself.
type BypassTokens struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// NewBypassTokens creates a token service with the given signing secret.
func NewBypassTokens(secret string) *BypassTokens {
	return &BypassTokens{
		secret: []byte(secret),
		leeway: DefaultLeeway,
		now:    time.Now,
	}
}

// Generate issues a bypass token bound to the client identity.
func (b *BypassTokens) Generate(identity string) (string, error) {
	now := b.now()
	claims := BypassClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(BypassTokenExpiry)),
		},
		Type: TokenTypeBypass,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(b.secret)
}

// Validate parses a bypass token and returns its claims if valid.
func (b *BypassTokens) Validate(tokenString string) (*BypassClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &BypassClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return b.secret, nil
	}, jwt.WithLeeway(b.leeway), jwt.WithTimeFunc(func() time.Time { return b.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*BypassClaims)
	if !ok || !token.Valid || claims.Type != TokenTypeBypass {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
