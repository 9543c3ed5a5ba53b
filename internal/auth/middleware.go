package auth

import (
	"strconv"
	"strings"

	"doka-backend/internal/config"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxUserNameKey = "user_name"
	CtxUsernameKey = "username"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxUserNameKey, claims.Name)
		c.Locals(CtxUsernameKey, claims.Username)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role missing from token")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "not allowed for this role")
	}
}

// RequireSelfOrOwner lets owners through and limits workers to routes whose
// param names their own worker id.
func RequireSelfOrOwner(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me := CurrentUser(c)
		if me.Role == models.RoleOwner {
			return c.Next()
		}
		id, err := strconv.ParseUint(c.Params(param), 10, 64)
		if err != nil || me.Role != models.RoleWorker || uint(id) != me.ID {
			return fiber.NewError(fiber.StatusForbidden, "workers can only act on their own shifts")
		}
		return c.Next()
	}
}

// CurrentUser reads the identity JWTMiddleware stored in the request locals.
func CurrentUser(c *fiber.Ctx) Identity {
	var id Identity
	id.ID, _ = c.Locals(CtxUserIDKey).(uint)
	id.Role, _ = c.Locals(CtxUserRoleKey).(models.UserRole)
	id.Name, _ = c.Locals(CtxUserNameKey).(string)
	id.Username, _ = c.Locals(CtxUsernameKey).(string)
	return id
}
