package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// AuthOptions configures the WithAuth helper. An empty Roles list admits any
// authenticated caller; AllowAnonymous also admits callers without a token.
type AuthOptions struct {
	Roles          []string
	AllowAnonymous bool
}

// WithAuth wraps a single handler with the same guards RequireRole applies to groups.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	var allowed authz.Predicate
	if len(opts.Roles) > 0 {
		allowed = authz.HasRole(opts.Roles...)
	}

	return func(c *fiber.Ctx) error {
		actor := authz.Actor{ID: userIDValue(c), Role: normalizeRoleValue(c.Locals("user_role"))}
		if !actor.Authenticated() {
			if opts.AllowAnonymous && allowed == nil {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if allowed != nil && !allowed(actor) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}
