// Package auth resolves the bearer credential sent with each envelope.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "hookrelay"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the hook invocation a token was minted for.
type Claims struct {
	SourceApp     string `json:"source_app"`
	SessionID     string `json:"session_id"`
	HookEventType string `json:"hook_event_type"`
	jwt.RegisteredClaims
}

// TokenGenerator mints short-lived HS256 tokens from a shared secret.
type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (tg *TokenGenerator) Generate(sourceApp, sessionID, eventType string) (string, error) {
	now := tg.now()
	claims := Claims{
		SourceApp:     sourceApp,
		SessionID:     sessionID,
		HookEventType: eventType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sourceApp,
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

func (tg *TokenGenerator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Credentials picks the bearer token for a request: a static token when one
// is configured, otherwise a freshly signed JWT, otherwise nothing.
type Credentials struct {
	static    string
	generator *TokenGenerator
}

func NewCredentials(staticToken, jwtSecret string, jwtTTL time.Duration) *Credentials {
	c := &Credentials{static: staticToken}
	if staticToken == "" && jwtSecret != "" {
		c.generator = NewTokenGenerator(jwtSecret, jwtTTL)
	}
	return c
}

// Token returns the bearer token, or "" when none is configured.
func (c *Credentials) Token(sourceApp, sessionID, eventType string) (string, error) {
	if c == nil {
		return "", nil
	}
	if c.static != "" {
		return c.static, nil
	}
	if c.generator != nil {
		return c.generator.Generate(sourceApp, sessionID, eventType)
	}
	return "", nil
}
