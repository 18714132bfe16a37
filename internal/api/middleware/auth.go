package middleware

import (
	"log"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/auth"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// Locals keys set by Authenticate.
const (
	LocalUser   = "user"
	LocalClaims = "claims"
)

// Authenticate verifies the bearer token, rejects revoked tokens when a
// revoker is configured, and loads the caller into c.Locals.
func Authenticate(tokens *auth.TokenManager, revoker domain.TokenRevoker, authSvc domain.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Extract Token
		tokenString, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		tokenString = strings.TrimSpace(tokenString)
		if !ok || tokenString == "" {
			return domain.NewUnauthorizedError("Missing or malformed Authorization header")
		}

		// 2. Parse Token
		claims, err := tokens.Parse(tokenString)
		if err != nil {
			return domain.NewUnauthorizedError("Invalid or expired token")
		}

		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.UserContext(), claims.ID)
			if err != nil {
				return domain.NewInternalError("failed to check token", err)
			}
			if revoked {
				return domain.NewUnauthorizedError("Token has been revoked")
			}
		}

		// 3. Load the account; role and active flag come from the database
		user, err := authSvc.Authenticate(c.UserContext(), claims.UserID)
		if err != nil {
			return err
		}

		c.Locals(LocalUser, user)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

// Authorize checks the caller's role against the Casbin route policies.
func Authorize(enforcer *casbin.Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return domain.NewUnauthorizedError("Unauthorized")
		}

		obj := strings.TrimSuffix(c.Path(), "/")
		act := c.Method()

		permit, err := enforcer.Enforce(string(user.Role), obj, act)
		if err != nil {
			return domain.NewInternalError("permission check failed", err)
		}
		if !permit {
			log.Printf("Casbin: %s %s denied for role %s", act, obj, user.Role)
			return domain.NewForbiddenError("Insufficient permissions")
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil on public routes.
func CurrentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals(LocalUser).(*model.User)
	return user
}

func CurrentClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(LocalClaims).(*auth.Claims)
	return claims
}
