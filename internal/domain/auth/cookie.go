package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Carrier reads and writes the access token cookie.
type Carrier struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// NewCarrier returns a carrier for the named cookie.
func NewCarrier(name string, ttl time.Duration, secure bool) *Carrier {
	return &Carrier{Name: name, TTL: ttl, Secure: secure}
}

// Set writes raw as an HttpOnly, SameSite=Strict cookie scoped to the whole site.
func (k *Carrier) Set(c *fiber.Ctx, raw string) {
	c.Cookie(&fiber.Cookie{
		Name:     k.Name,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(k.TTL.Seconds()),
		Expires:  time.Now().Add(k.TTL),
		HTTPOnly: true,
		Secure:   k.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Clear expires the cookie on the client.
func (k *Carrier) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     k.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   k.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Read returns the token from the cookie, falling back to a bearer header.
func (k *Carrier) Read(c *fiber.Ctx) string {
	if raw := c.Cookies(k.Name); raw != "" {
		return raw
	}
	return BearerToken(c)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
