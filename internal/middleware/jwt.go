package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

var errMissingToken = fmt.Errorf("authorization header missing")

// JWTProtected returns a middleware that validates JWT bearer tokens.
// Websocket upgrades may pass the token as the "token" query parameter.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := parseBearer(c, secret)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		bindClaims(c, claims)
		return c.Next()
	}
}

// JWTOptional binds the caller identity when a bearer token is present and
// lets anonymous requests through. A malformed token is still rejected.
func JWTOptional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := parseBearer(c, secret)
		if err == errMissingToken {
			return c.Next()
		}
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		bindClaims(c, claims)
		return c.Next()
	}
}

// ActorFromContext returns the identity bound by JWTProtected or JWTOptional.
func ActorFromContext(c *fiber.Ctx) authz.Actor {
	actor := authz.Actor{}
	if v, ok := c.Locals("user_id").(uint); ok {
		actor.ID = v
	}
	if role, ok := c.Locals("user_role").(string); ok {
		actor.Role = role
	}
	return actor
}

func parseBearer(c *fiber.Ctx, secret string) (jwt.MapClaims, error) {
	tokenString := ""

	authorization := strings.TrimSpace(c.Get("Authorization"))
	switch {
	case authorization != "":
		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return nil, fmt.Errorf("invalid authorization header")
		}
		tokenString = strings.TrimSpace(authorization[len(bearer):])
	case websocket.IsWebSocketUpgrade(c):
		tokenString = strings.TrimSpace(c.Query("token"))
	}

	if tokenString == "" {
		if authorization != "" {
			return nil, fmt.Errorf("invalid token")
		}
		return nil, errMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if extractUserIDFromClaims(claims) == nil {
		return nil, fmt.Errorf("invalid token subject")
	}

	return claims, nil
}

func bindClaims(c *fiber.Ctx, claims jwt.MapClaims) {
	if userID := extractUserIDFromClaims(claims); userID != nil {
		c.Locals("user_id", *userID)
	}
	if role := extractUserRoleFromClaims(claims); role != "" {
		c.Locals("user_role", role)
	}
	if email, ok := claims["email"].(string); ok {
		c.Locals("user_email", email)
	}
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized != 0 {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return authz.NormalizeRole(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := authz.NormalizeRole(str); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
