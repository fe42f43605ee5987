package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = 15 * time.Minute

// Codec signs and verifies HS256 access tokens with a single process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	keyID  string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer sets the iss claim on signed tokens.
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a codec for key. A zero ttl falls back to 15 minutes.
func NewCodec(key Key, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(key.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &Codec{
		secret: key.Secret,
		keyID:  key.ID,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime given to signed tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign stamps iat and exp on claims and returns the compact token.
func (c *Codec) Sign(claims Claims) (string, error) {
	if claims.ID == "" {
		return "", ErrMissingSessionBinding
	}
	if claims.Subject == "" || claims.Type == "" {
		return "", ErrIncompleteClaims
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if c.keyID != "" {
		tok.Header["kid"] = c.keyID
	}

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first and the time claims second, so an expired
// but authentic token still yields its claims together with ErrExpiredSignature.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrMalformed
		}
		return nil, ErrInvalidSignature
	}

	if claims.ID == "" {
		return nil, ErrMissingSessionBinding
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err := validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, ErrExpiredSignature
		}
		return nil, ErrMalformed
	}

	return claims, nil
}
