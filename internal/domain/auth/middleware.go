package auth

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/eduyeet/authgate/internal/utils"
)

// IdentityKey is the key used to store the identity in Fiber context
const IdentityKey = "identity"

// InternalKeyHeader carries the key shared between the service and its gates.
const InternalKeyHeader = "X-Internal-Key"

// Authenticator resolves a raw token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*Identity, error)
}

// RequireSession guards API routes. It answers 401 JSON instead of redirecting
// and stores the Identity under IdentityKey.
func RequireSession(svc Authenticator, carrier *Carrier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c)
		if raw == "" && carrier != nil {
			raw = carrier.Read(c)
		}
		if raw == "" {
			return utils.ErrorResponse(c, utils.ErrUnauthorized)
		}

		identity, err := svc.Authenticate(c.UserContext(), raw)
		if err != nil {
			return utils.ErrorResponse(c, toAPIError(err))
		}

		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// GetIdentity returns the identity stored by RequireSession or the request gate.
func GetIdentity(c *fiber.Ctx) (*Identity, bool) {
	identity, ok := c.Locals(IdentityKey).(*Identity)
	return identity, ok && identity != nil
}

// RequireInternalKey restricts a route to callers presenting key in
// InternalKeyHeader. An empty key disables the check.
func RequireInternalKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(c.Get(InternalKeyHeader)), []byte(key)) != 1 {
			return utils.ErrorResponse(c, utils.ErrUnauthorized)
		}
		return c.Next()
	}
}
