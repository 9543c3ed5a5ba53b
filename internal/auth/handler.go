package auth

import (
	"strings"

	"doka-backend/internal/config"
	"doka-backend/internal/database"
	"doka-backend/internal/logger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// POST /api/auth/login (owner and admin accounts)
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Username = strings.TrimSpace(body.Username)

		var user models.User
		if err := database.DB.Where("username = ?", body.Username).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong username or password")
		}
		if !CheckPassword(user.PasswordHash, body.Password) {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong username or password")
		}

		id := Identity{ID: user.ID, Username: user.Username, Name: user.Name, Role: models.RoleOwner}
		return issueToken(c, cfg, id)
	}
}

// POST /api/auth/worker-login
func WorkerLoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Username = strings.TrimSpace(body.Username)

		var w models.Worker
		if err := database.DB.Where("username = ?", body.Username).First(&w).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong username or password")
		}
		if !CheckPassword(w.PasswordHash, body.Password) {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong username or password")
		}
		if !w.Active {
			return fiber.NewError(fiber.StatusForbidden, "worker account is disabled")
		}

		id := Identity{ID: w.ID, Username: w.Username, Name: w.Name, Role: models.RoleWorker}
		return issueToken(c, cfg, id)
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(CurrentUser(c))
	}
}

func issueToken(c *fiber.Ctx, cfg *config.Config, id Identity) error {
	token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, id)
	if err != nil {
		logger.FromCtx(c).Error("token signing failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	logger.FromCtx(c).Info("login", zap.String("username", id.Username), zap.String("role", string(id.Role)))
	return c.JSON(LoginResponse{Token: token, User: id})
}
