package gate

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/eduyeet/authgate/internal/domain/auth"
)

// Middleware runs Decide for every request whose path does not start with one
// of skip, and applies the decision to the response.
func Middleware(cfg Config, verifier Verifier, checker Checker, carrier *auth.Carrier, skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		d := Decide(c.UserContext(), Request{
			Token:     carrier.Read(c),
			Path:      path,
			URL:       c.OriginalURL(),
			IP:        c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}, cfg, verifier, checker)

		switch {
		case d.Token != "":
			carrier.Set(c, d.Token)
		case d.ClearToken:
			carrier.Clear(c)
		}

		if d.Action == ActionRedirect {
			slog.Debug("Gate redirected request", "state", d.State.String(), "outcome", d.Outcome.String(), "path", path, "location", d.Location)
			return c.Redirect(d.Location, fiber.StatusFound)
		}

		if identity := identityOf(d); identity != nil {
			c.Locals(auth.IdentityKey, identity)
		}
		return c.Next()
	}
}

func identityOf(d Decision) *auth.Identity {
	if d.Claims == nil || (d.State != StateValid && d.State != StateNeedsRotation) {
		return nil
	}
	userID, err := uuid.Parse(d.Claims.UserID())
	if err != nil {
		return nil
	}
	sessionID, err := uuid.Parse(d.Claims.SessionID())
	if err != nil {
		return nil
	}
	return &auth.Identity{
		UserID:    userID,
		SessionID: sessionID,
		Type:      d.Claims.Type,
		Email:     d.Claims.Email,
	}
}
