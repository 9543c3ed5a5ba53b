package inventory

import (
	"doka-backend/internal/ledger"
	"doka-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/sync/status
func SyncStatusHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(cat.Status())
	}
}

// POST /api/sync
func ResyncHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := cat.Resync(c.UserContext()); err != nil {
			logger.FromCtx(c).Warn("resync failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "sync failed: "+err.Error())
		}
		return c.JSON(cat.Status())
	}
}
