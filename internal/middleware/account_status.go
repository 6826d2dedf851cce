package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// AccountStatusHeader flags responses served to accounts awaiting approval.
const AccountStatusHeader = "X-Account-Status"

// AccountStatusLookup resolves the live status of an account.
type AccountStatusLookup interface {
	AccountStatus(ctx context.Context, userID uint) (string, error)
}

// AccountGuard re-checks the caller's account on every authenticated request so
// that blocking takes effect before the token expires.
func AccountGuard(lookup AccountStatusLookup, logger zerolog.Logger) fiber.Handler {
	logger = logger.With().Str("component", "account_guard").Logger()

	return func(c *fiber.Ctx) error {
		userID := userIDValue(c)
		if userID == 0 || lookup == nil {
			return c.Next()
		}

		status, err := lookup.AccountStatus(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, errdefs.ErrUnauthenticated) {
				return utils.SendError(c, fiber.StatusUnauthorized, "account no longer exists")
			}
			logger.Error().Err(err).Uint("user_id", userID).Str("correlation_id", GetCorrelationID(c)).Msg("account status lookup failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "unable to verify account")
		}

		switch status {
		case models.UserStatusBlocked:
			return utils.SendError(c, fiber.StatusForbidden, "account is blocked")
		case models.UserStatusPending:
			c.Set(AccountStatusHeader, models.UserStatusPending)
		}

		c.Locals("user_status", status)
		return c.Next()
	}
}
