package inventory

import (
	"fmt"
	"strings"

	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type CategoryRequest struct {
	Name        string   `json:"name"`
	SizeOptions []string `json:"sizeOptions"`
}

func cleanOptions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func categoryNameTaken(name string, exclude uint) bool {
	var n int64
	q := database.DB.Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	q.Count(&n)
	return n > 0
}

// GET /api/categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var categories []models.Category
		if err := database.DB.Order("created_at asc, id asc").Find(&categories).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list categories")
		}
		return c.JSON(categories)
	}
}

// POST /api/admin/categories
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "category name is required")
		}
		if categoryNameTaken(body.Name, 0) {
			return fiber.NewError(fiber.StatusConflict, "category already exists")
		}

		cat := models.Category{
			Name:        body.Name,
			SizeOptions: datatypes.JSONSlice[string](cleanOptions(body.SizeOptions)),
		}
		if err := database.DB.Create(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create category")
		}

		audit.Record(c, "category", cat.ID, models.AuditActionCreate, fmt.Sprintf("category created: %s", cat.Name), nil, cat)
		return c.Status(fiber.StatusCreated).JSON(cat)
	}
}

// PUT /api/admin/categories/:id
func UpdateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var cat models.Category
		if err := database.DB.First(&cat, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		before := cat

		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if name := strings.TrimSpace(body.Name); name != "" {
			if categoryNameTaken(name, cat.ID) {
				return fiber.NewError(fiber.StatusConflict, "category already exists")
			}
			cat.Name = name
		}
		if body.SizeOptions != nil {
			cat.SizeOptions = datatypes.JSONSlice[string](cleanOptions(body.SizeOptions))
		}

		if err := database.DB.Save(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update category")
		}

		audit.Record(c, "category", cat.ID, models.AuditActionUpdate, fmt.Sprintf("category updated: %s", cat.Name), before, cat)
		return c.JSON(cat)
	}
}

// DELETE /api/admin/categories/:id
// Products keep their category id; clients show them as uncategorized.
func DeleteCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var cat models.Category
		if err := database.DB.First(&cat, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		if err := database.DB.Delete(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete category")
		}

		audit.Record(c, "category", cat.ID, models.AuditActionDelete, fmt.Sprintf("category deleted: %s", cat.Name), cat, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
