package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/CodeXPrim8/BU/internal/account"
	"github.com/CodeXPrim8/BU/internal/policy"
)

// ModeHeader carries the client's requested active mode.
const ModeHeader = "X-Active-Mode"

const identityKey = "identity"

// Identity is the verified caller attached to each request. Authentication
// itself is an external collaborator: the token is issued elsewhere and the
// ledger core trusts the account id and role it carries unconditionally.
type Identity struct {
	AccountID uuid.UUID
	Role      account.Role
	Mode      policy.Mode

	// ModeRedirected is set when the requested mode was not open to the role
	// and the gate forced guest-mode.
	ModeRedirected bool
}

// Auth validates the bearer token, resolves the caller's active mode through
// the policy gate, and attaches the resulting identity to the request.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "invalid token claims")
		}
		sub, _ := claims["sub"].(string)
		accountID, err := uuid.Parse(sub)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid subject")
		}
		roleStr, _ := claims["role"].(string)
		role, err := account.ParseRole(roleStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid role")
		}

		requested := policy.Mode(c.Get(ModeHeader, string(policy.ModeGuest)))
		mode, redirected := policy.EnterMode(role, requested)

		c.Locals(identityKey, Identity{
			AccountID:      accountID,
			Role:           role,
			Mode:           mode,
			ModeRedirected: redirected,
		})
		return c.Next()
	}
}

// IdentityFrom returns the identity attached by Auth. Zero value when the
// route is unauthenticated.
func IdentityFrom(c *fiber.Ctx) Identity {
	identity, _ := c.Locals(identityKey).(Identity)
	return identity
}
