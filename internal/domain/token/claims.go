package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the payload of an access token. The registered ID (jti) binds the
// token to a persisted session; without it the token cannot be authorized.
type Claims struct {
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds the claims for a user bound to a session.
func NewClaims(userID, sessionID, userType, email string) Claims {
	return Claims{
		Email: email,
		Type:  userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
			ID:      sessionID,
		},
	}
}

// SessionID returns the session the token is bound to.
func (c *Claims) SessionID() string {
	return c.ID
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}
