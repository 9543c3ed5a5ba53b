package admin

import (
	"fmt"
	"strings"

	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AdminRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type OwnerCredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	IsPrimary bool   `json:"isPrimary"`
	CreatedAt string `json:"createdAt"`
}

func toAdminResponse(u models.User) AdminResponse {
	return AdminResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		IsPrimary: u.IsPrimary,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// GET /api/admin/admins (additional owner-level accounts, primary owner excluded)
func ListAdminsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.Where("is_primary = ?", false).Order("id ASC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list admins")
		}
		res := make([]AdminResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toAdminResponse(u))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/admins
func CreateAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Username = strings.TrimSpace(body.Username)
		if body.Name == "" || body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, username and password are required")
		}

		taken, err := auth.UsernameTaken(database.DB, body.Username, 0, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create admin")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "username already exists")
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}
		user := models.User{Name: body.Name, Username: body.Username, PasswordHash: hash}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create admin")
		}

		res := toAdminResponse(user)
		audit.Record(c, "admin", user.ID, models.AuditActionCreate, fmt.Sprintf("admin created: %s", user.Username), nil, res)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// PUT /api/admin/admins/:id
func UpdateAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var user models.User
		if err := database.DB.Where("is_primary = ?", false).First(&user, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "admin not found")
		}
		before := toAdminResponse(user)

		var body AdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if name := strings.TrimSpace(body.Name); name != "" {
			user.Name = name
		}
		if username := strings.TrimSpace(body.Username); username != "" && username != user.Username {
			taken, err := auth.UsernameTaken(database.DB, username, user.ID, 0)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not update admin")
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "username already exists")
			}
			user.Username = username
		}
		if body.Password != "" {
			hash, err := auth.HashPassword(body.Password)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
			}
			user.PasswordHash = hash
		}

		if err := database.DB.Save(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update admin")
		}

		res := toAdminResponse(user)
		audit.Record(c, "admin", user.ID, models.AuditActionUpdate, fmt.Sprintf("admin updated: %s", user.Username), before, res)
		return c.JSON(res)
	}
}

// DELETE /api/admin/admins/:id
func DeleteAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var user models.User
		if err := database.DB.Where("is_primary = ?", false).First(&user, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "admin not found")
		}
		if err := database.DB.Delete(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete admin")
		}

		audit.Record(c, "admin", user.ID, models.AuditActionDelete, fmt.Sprintf("admin deleted: %s", user.Username), toAdminResponse(user), nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PUT /api/admin/owner-credentials
func UpdateOwnerCredentialsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OwnerCredentialsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
		}

		var owner models.User
		if err := database.DB.Where("is_primary = ?", true).First(&owner).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "primary owner not found")
		}

		taken, err := auth.UsernameTaken(database.DB, body.Username, owner.ID, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update credentials")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "username already exists")
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}
		previous := owner.Username
		if err := database.DB.Model(&owner).Updates(map[string]interface{}{
			"username":      body.Username,
			"password_hash": hash,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update credentials")
		}

		audit.Record(c, "owner", owner.ID, models.AuditActionUpdate, "owner credentials changed",
			fiber.Map{"username": previous}, fiber.Map{"username": body.Username})
		return c.JSON(fiber.Map{"username": body.Username})
	}
}
