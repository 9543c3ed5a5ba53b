package admin

import (
	"errors"
	"fmt"
	"strings"

	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrLastLocation = errors.New("the last location cannot be deleted")

type CreateLocationRequest struct {
	Name string              `json:"name"`
	Type models.LocationType `json:"type"`
}

type UpdateLocationRequest struct {
	Name  *string              `json:"name"`
	Type  *models.LocationType `json:"type"`
	Order *int                 `json:"order"`
}

// LocationExists reports whether id names a configured location.
func LocationExists(db *gorm.DB, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int64
	if err := db.Model(&models.Location{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func ListLocations(db *gorm.DB) ([]models.Location, error) {
	var locs []models.Location
	err := db.Order("sort_order ASC, id ASC").Find(&locs).Error
	return locs, err
}

// lockLocations lists locations with every row locked until tx ends, so two
// concurrent deletes cannot both see more than one location.
func lockLocations(tx *gorm.DB) ([]models.Location, error) {
	return ListLocations(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
}

// GET /api/locations
func ListLocationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		locs, err := ListLocations(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list locations")
		}
		return c.JSON(locs)
	}
}

// POST /api/admin/locations
func CreateLocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateLocationRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "location name is required")
		}
		if !body.Type.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "type must be warehouse or shop")
		}

		var count int64
		if err := database.DB.Model(&models.Location{}).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create location")
		}

		loc := models.Location{
			ID:    "loc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
			Name:  body.Name,
			Type:  body.Type,
			Order: int(count),
		}
		if err := database.DB.Create(&loc).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create location")
		}

		audit.Record(c, "location", loc.ID, models.AuditActionCreate, fmt.Sprintf("location created: %s", loc.Name), nil, loc)
		return c.Status(fiber.StatusCreated).JSON(loc)
	}
}

// PUT /api/admin/locations/:id
func UpdateLocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var body UpdateLocationRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name != nil {
			if strings.TrimSpace(*body.Name) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "location name cannot be empty")
			}
		}
		if body.Type != nil && !body.Type.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "type must be warehouse or shop")
		}

		var before, after models.Location
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			locs, err := lockLocations(tx)
			if err != nil {
				return err
			}
			idx := -1
			for i, l := range locs {
				if l.ID == id {
					idx = i
				}
			}
			if idx < 0 {
				return gorm.ErrRecordNotFound
			}
			before = locs[idx]

			loc := locs[idx]
			if body.Name != nil {
				loc.Name = strings.TrimSpace(*body.Name)
			}
			if body.Type != nil {
				loc.Type = *body.Type
			}
			if body.Order != nil {
				locs = moveLocation(locs, idx, *body.Order)
			}
			for i := range locs {
				if locs[i].ID == id {
					locs[i].Name, locs[i].Type = loc.Name, loc.Type
				}
				locs[i].Order = i
				if err := tx.Model(&models.Location{}).Where("id = ?", locs[i].ID).
					Updates(map[string]interface{}{"name": locs[i].Name, "type": locs[i].Type, "sort_order": i}).Error; err != nil {
					return err
				}
				if locs[i].ID == id {
					after = locs[i]
				}
			}
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "location not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update location")
		}

		audit.Record(c, "location", id, models.AuditActionUpdate, fmt.Sprintf("location updated: %s", after.Name), before, after)
		return c.JSON(after)
	}
}

// DELETE /api/admin/locations/:id
func DeleteLocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var removed models.Location
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			locs, err := lockLocations(tx)
			if err != nil {
				return err
			}
			idx := -1
			for i, l := range locs {
				if l.ID == id {
					idx = i
				}
			}
			if idx < 0 {
				return gorm.ErrRecordNotFound
			}
			if len(locs) <= 1 {
				return ErrLastLocation
			}
			removed = locs[idx]
			if err := tx.Delete(&models.Location{}, "id = ?", id).Error; err != nil {
				return err
			}
			rest := append(locs[:idx:idx], locs[idx+1:]...)
			for i, l := range rest {
				if l.Order == i {
					continue
				}
				if err := tx.Model(&models.Location{}).Where("id = ?", l.ID).Update("sort_order", i).Error; err != nil {
					return err
				}
			}
			return nil
		})
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "location not found")
		case errors.Is(err, ErrLastLocation):
			return fiber.NewError(fiber.StatusConflict, ErrLastLocation.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete location")
		}

		audit.Record(c, "location", id, models.AuditActionDelete, fmt.Sprintf("location deleted: %s", removed.Name), removed, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// moveLocation returns locs with the element at from moved to position to
// (clamped to the valid range).
func moveLocation(locs []models.Location, from, to int) []models.Location {
	if to < 0 {
		to = 0
	}
	if to > len(locs)-1 {
		to = len(locs) - 1
	}
	moved := locs[from]
	out := make([]models.Location, 0, len(locs))
	out = append(out, locs[:from]...)
	out = append(out, locs[from+1:]...)
	out = append(out[:to], append([]models.Location{moved}, out[to:]...)...)
	return out
}
