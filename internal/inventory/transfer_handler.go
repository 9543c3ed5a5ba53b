package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/logger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type TransferItemRequest struct {
	ProductID uint   `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type CreateTransferRequest struct {
	From  string                `json:"from"`
	To    string                `json:"to"`
	Items []TransferItemRequest `json:"items"`
}

// GroupChanges folds per-line deltas into one change per product, in order of
// first appearance, so each product is recomputed once.
func GroupChanges(lines []ledger.Change) []ledger.Change {
	var out []ledger.Change
	pos := map[uint]int{}
	for _, l := range lines {
		i, ok := pos[l.ProductID]
		if !ok {
			i = len(out)
			pos[l.ProductID] = i
			out = append(out, ledger.Change{ProductID: l.ProductID})
		}
		out[i].Deltas = append(out[i].Deltas, l.Deltas...)
	}
	return out
}

// POST /api/transfers
func CreateTransferHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTransferRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.From == body.To {
			return fiber.NewError(fiber.StatusBadRequest, ledger.ErrSameLocation.Error())
		}
		if err := requireLocation(body.From, "from"); err != nil {
			return err
		}
		if err := requireLocation(body.To, "to"); err != nil {
			return err
		}
		if len(body.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "transfer has no items")
		}

		lines := make([]ledger.Change, 0, len(body.Items))
		items := make(datatypes.JSONSlice[models.TransferItem], 0, len(body.Items))
		for _, it := range body.Items {
			if it.Qty <= 0 || it.Qty > ledger.MaxLineQuantity {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("qty must be between 1 and %d", ledger.MaxLineQuantity))
			}
			if _, _, err := requireSize(cat, it.ProductID, it.Size); err != nil {
				return err
			}
			lines = append(lines, ledger.Change{
				ProductID: it.ProductID,
				Deltas:    ledger.TransferDeltas(it.Size, body.From, body.To, it.Qty),
			})
			items = append(items, models.TransferItem{ProductID: it.ProductID, Size: it.Size, Qty: it.Qty})
		}

		tr := models.Transfer{
			Date:     time.Now(),
			From:     body.From,
			To:       body.To,
			Items:    items,
			UserName: auth.CurrentUser(c).Name,
		}
		_, err := cat.ApplyAndRecord(c.UserContext(), "transfer", GroupChanges(lines), true,
			func(ctx context.Context) error {
				return database.DB.WithContext(ctx).Create(&tr).Error
			})
		if errors.Is(err, ledger.ErrNotRecorded) {
			logger.FromCtx(c).Error("transfer not recorded", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not record transfer")
		}
		if err != nil {
			return LedgerError(c, err)
		}

		audit.Record(c, "transfer", tr.ID, models.AuditActionCreate,
			fmt.Sprintf("transfer %s -> %s, %d lines", tr.From, tr.To, len(tr.Items)), nil, tr)
		return c.Status(fiber.StatusCreated).JSON(tr)
	}
}

// GET /api/transfers?location=shop1&limit=100
func ListTransfersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Transfer{})
		if loc := c.Query("location"); loc != "" {
			dbq = dbq.Where("from_location = ? OR to_location = ?", loc, loc)
		}
		limit := c.QueryInt("limit", 200)
		if limit <= 0 || limit > 1000 {
			limit = 200
		}

		var transfers []models.Transfer
		if err := dbq.Order("date DESC, id DESC").Limit(limit).Find(&transfers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list transfers")
		}
		return c.JSON(transfers)
	}
}
