package workers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// shiftLocks serializes clock actions per worker so two taps cannot open two
// shifts.
var shiftLocks sync.Map

func lockWorker(id uint) func() {
	m, _ := shiftLocks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type ShiftAction string

const (
	ActionStart  ShiftAction = "start"
	ActionPause  ShiftAction = "pause"
	ActionResume ShiftAction = "resume"
	ActionEnd    ShiftAction = "end"
)

type ShiftsResponse struct {
	CurrentShift *models.WorkerShift  `json:"currentShift"`
	Completed    []models.WorkerShift `json:"completed"`
	// TotalMinutes sums the completed shifts in the list.
	TotalMinutes int `json:"totalMinutes"`
}

func shiftError(err error) error {
	switch {
	case errors.Is(err, ErrShiftOpen), errors.Is(err, ErrNoActiveShift),
		errors.Is(err, ErrAlreadyPaused), errors.Is(err, ErrNotPaused):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "could not update shift")
}

// POST /api/workers/:id/shift/:action (start, pause, resume, end)
func ShiftHandler(action ShiftAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseWorkerID(c)
		if err != nil {
			return err
		}
		w, err := loadWorker(id)
		if err != nil {
			return err
		}
		if !w.Active {
			return fiber.NewError(fiber.StatusForbidden, "worker is inactive")
		}

		unlock := lockWorker(id)
		defer unlock()

		current, err := openShift(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load shift")
		}
		now := time.Now()

		if action == ActionStart {
			if current != nil {
				return shiftError(ErrShiftOpen)
			}
			s := StartShift(id, now)
			if err := database.DB.Create(&s).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not start shift")
			}
			audit.Record(c, "shift", s.ID, models.AuditActionCreate, fmt.Sprintf("%s started a shift", w.Name), nil, s)
			return c.Status(fiber.StatusCreated).JSON(s)
		}

		if current == nil {
			return shiftError(ErrNoActiveShift)
		}
		before := *current
		before.Pauses = append([]models.ShiftPause(nil), current.Pauses...)

		switch action {
		case ActionPause:
			err = Pause(current, now)
		case ActionResume:
			err = Resume(current, now)
		case ActionEnd:
			err = End(current, now)
		default:
			return fiber.NewError(fiber.StatusNotFound, "unknown shift action")
		}
		if err != nil {
			return shiftError(err)
		}
		if err := database.DB.Save(current).Error; err != nil {
			return shiftError(err)
		}

		audit.Record(c, "shift", current.ID, models.AuditActionUpdate,
			fmt.Sprintf("%s: shift %s", w.Name, action), before, current)
		return c.JSON(current)
	}
}

// GET /api/workers/:id/shifts?limit=50
func ListShiftsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseWorkerID(c)
		if err != nil {
			return err
		}
		if _, err := loadWorker(id); err != nil {
			return err
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}

		res := ShiftsResponse{Completed: []models.WorkerShift{}}
		if res.CurrentShift, err = openShift(database.DB, id); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load shifts")
		}
		if err := database.DB.Where("worker_id = ? AND end_time IS NOT NULL", id).
			Order("start_time DESC").Limit(limit).Find(&res.Completed).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load shifts")
		}
		for _, s := range res.Completed {
			res.TotalMinutes += s.TotalWorkTime
		}
		return c.JSON(res)
	}
}
