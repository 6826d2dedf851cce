package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := authz.HasRole(roles...)

	return func(c *fiber.Ctx) error {
		actor := authz.Actor{ID: userIDValue(c), Role: normalizeRoleValue(c.Locals("user_role"))}
		if !actor.Authenticated() {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !allowed(actor) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func userIDValue(c *fiber.Ctx) uint {
	if id, ok := c.Locals("user_id").(uint); ok {
		return id
	}
	return 0
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return authz.NormalizeRole(v)
	case fmt.Stringer:
		return authz.NormalizeRole(v.String())
	default:
		if value == nil {
			return ""
		}
		return authz.NormalizeRole(fmt.Sprintf("%v", value))
	}
}
