package inventory

import (
	"errors"
	"strconv"

	"doka-backend/internal/ledger"
	"doka-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LedgerError maps catalog errors to HTTP errors.
func LedgerError(c *fiber.Ctx, err error) error {
	var short *ledger.ShortageError
	switch {
	case errors.As(err, &short):
		return fiber.NewError(fiber.StatusConflict, short.Error())
	case errors.Is(err, ledger.ErrProductNotFound):
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	case errors.Is(err, ledger.ErrSameLocation):
		return fiber.NewError(fiber.StatusBadRequest, ledger.ErrSameLocation.Error())
	case errors.Is(err, ledger.ErrBarcodeInUse):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	logger.FromCtx(c).Error("catalog operation failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "stock could not be saved")
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return uint(id), nil
}
