package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// Guards bundles the authentication middleware that Register methods attach
// to protected routes.
type Guards struct {
	Authenticate fiber.Handler
	Identify     fiber.Handler
	Account      fiber.Handler
}

// authenticated rejects anonymous callers and, when roles are given, callers
// without one of them.
func (g Guards) authenticated(roles ...string) []fiber.Handler {
	handlers := compact(g.Authenticate, g.Account)
	if len(roles) > 0 {
		handlers = append(handlers, middleware.RequireRole(roles...))
	}
	return handlers
}

// identified binds the caller when a token is present.
func (g Guards) identified() []fiber.Handler {
	return compact(g.Identify, g.Account)
}

func compact(handlers ...fiber.Handler) []fiber.Handler {
	result := make([]fiber.Handler, 0, len(handlers)+1)
	for _, h := range handlers {
		if h != nil {
			result = append(result, h)
		}
	}
	return result
}

func chain(guards []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	return append(guards, handler)
}

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// NewErrorHandler maps every error returned by a handler onto the response
// envelope. Unexpected errors only carry their detail outside production.
func NewErrorHandler(logger zerolog.Logger, exposeDetails bool) fiber.ErrorHandler {
	logger = logger.With().Str("component", "error_handler").Logger()

	return func(c *fiber.Ctx, err error) error {
		return respondError(c, logger, exposeDetails, err)
	}
}

func respondError(c *fiber.Ctx, logger zerolog.Logger, exposeDetails bool, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]FieldError, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			details = append(details, FieldError{Field: fieldErr.Field(), Rule: fieldErr.Tag(), Param: fieldErr.Param()})
		}
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.Fail(c, fiberErr.Code, fiberErr.Message, nil)
	}

	switch errdefs.Kind(err) {
	case errdefs.ErrValidation:
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	case errdefs.ErrUnauthenticated:
		return utils.Fail(c, fiber.StatusUnauthorized, err.Error(), nil)
	case errdefs.ErrForbidden:
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), nil)
	case errdefs.ErrNotFound:
		return utils.Fail(c, fiber.StatusNotFound, err.Error(), nil)
	case errdefs.ErrInvalidState, errdefs.ErrConflict:
		return utils.Fail(c, fiber.StatusConflict, err.Error(), nil)
	}

	requestLogger(logger, c).Error().Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("unhandled request error")

	var details interface{}
	if exposeDetails {
		details = err.Error()
	}
	return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", details)
}

func badRequest(format string, args ...interface{}) error {
	return errdefs.Newf(errdefs.ErrValidation, format, args...)
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequest("invalid %s", key)
	}
	return parsed, nil
}

func parseOptionalInt64(c *fiber.Ctx, key string) (*int64, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, badRequest("invalid %s", key)
	}
	return &parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, badRequest("invalid %s", name)
	}
	return uint(parsed), nil
}

// parsePage reads page and page_size, accepting pageSize and limit as aliases.
func parsePage(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}

	for _, key := range []string{"page_size", "pageSize", "limit"} {
		size, err := parseQueryInt(c, key)
		if err != nil {
			return 0, 0, err
		}
		if size != 0 {
			return page, size, nil
		}
	}
	return page, 0, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

func queryBool(c *fiber.Ctx, key string) bool {
	value := strings.ToLower(strings.TrimSpace(c.Query(key)))
	return value == "true" || value == "1"
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
