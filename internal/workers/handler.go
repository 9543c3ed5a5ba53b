package workers

import (
	"errors"
	"fmt"
	"strings"

	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateWorkerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type WorkerResponse struct {
	models.Worker
	CurrentShift *models.WorkerShift `json:"currentShift"`
}

func openShift(db *gorm.DB, workerID uint) (*models.WorkerShift, error) {
	var s models.WorkerShift
	err := db.Where("worker_id = ? AND end_time IS NULL", workerID).Order("start_time DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func parseWorkerID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid worker id")
	}
	return uint(id), nil
}

func loadWorker(id uint) (models.Worker, error) {
	var w models.Worker
	if err := database.DB.First(&w, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return w, fiber.NewError(fiber.StatusNotFound, "worker not found")
		}
		return w, fiber.NewError(fiber.StatusInternalServerError, "could not load worker")
	}
	return w, nil
}

// GET /api/admin/workers
func ListWorkersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var workers []models.Worker
		if err := database.DB.Order("id ASC").Find(&workers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list workers")
		}
		res := make([]WorkerResponse, 0, len(workers))
		for _, w := range workers {
			s, err := openShift(database.DB, w.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not load shifts")
			}
			res = append(res, WorkerResponse{Worker: w, CurrentShift: s})
		}
		return c.JSON(res)
	}
}

// POST /api/admin/workers
func CreateWorkerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateWorkerRequest
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
			return fiber.NewError(fiber.StatusInternalServerError, "could not create worker")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "username already exists")
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}
		w := models.Worker{Name: body.Name, Username: body.Username, PasswordHash: hash, Active: true}
		if err := database.DB.Create(&w).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create worker")
		}

		audit.Record(c, "worker", w.ID, models.AuditActionCreate, fmt.Sprintf("worker created: %s", w.Name), nil, w)
		return c.Status(fiber.StatusCreated).JSON(WorkerResponse{Worker: w})
	}
}

// PUT /api/admin/workers/:id/toggle
func ToggleWorkerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseWorkerID(c)
		if err != nil {
			return err
		}
		w, err := loadWorker(id)
		if err != nil {
			return err
		}
		before := w
		w.Active = !w.Active
		// Select keeps gorm from skipping the false value
		if err := database.DB.Model(&w).Select("active").Updates(&w).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update worker")
		}

		audit.Record(c, "worker", w.ID, models.AuditActionUpdate,
			fmt.Sprintf("worker %s active=%t", w.Name, w.Active), before, w)
		return c.JSON(w)
	}
}

// DELETE /api/admin/workers/:id (shifts go with the worker)
func DeleteWorkerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseWorkerID(c)
		if err != nil {
			return err
		}
		w, err := loadWorker(id)
		if err != nil {
			return err
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("worker_id = ?", w.ID).Delete(&models.WorkerShift{}).Error; err != nil {
				return err
			}
			return tx.Delete(&w).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete worker")
		}

		audit.Record(c, "worker", w.ID, models.AuditActionDelete, fmt.Sprintf("worker deleted: %s", w.Name), w, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
