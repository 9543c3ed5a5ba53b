package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"doka-backend/internal/admin"
	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type RestockRequest struct {
	ProductID uint   `json:"product_id"`
	Size      string `json:"size"`
	Location  string `json:"location"`
	Quantity  int    `json:"quantity"`
}

type AdjustRequest struct {
	ProductID uint   `json:"product_id"`
	Size      string `json:"size"`
	Location  string `json:"location"`
	Delta     int    `json:"delta"`
}

type LowStockItem struct {
	ProductID uint   `json:"productId"`
	Model     string `json:"model"`
	Color     string `json:"color"`
	Code      string `json:"code"`
	Size      string `json:"size"`
	Barcode   string `json:"barcode"`
	Available int    `json:"available"`
	AlertQty  int    `json:"alertQty"`
}

// requireLocation answers 400 unless id names an existing location.
func requireLocation(id, field string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, field+" is required")
	}
	ok, err := admin.LocationExists(database.DB, id)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not check location")
	}
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown location: "+id)
	}
	return nil
}

// requireSize answers 404 for a missing product or size.
func requireSize(cat *ledger.Catalog, productID uint, size string) (models.Product, models.ProductSize, error) {
	p, ok := cat.Get(productID)
	if !ok {
		return models.Product{}, models.ProductSize{}, fiber.NewError(fiber.StatusNotFound, "product not found")
	}
	s, ok := ledger.FindSize(p, size)
	if !ok {
		return models.Product{}, models.ProductSize{}, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("product %d has no size %s", productID, size))
	}
	return p, s, nil
}

// POST /api/stock/restock
func RestockHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RestockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Quantity <= 0 || body.Quantity > ledger.MaxLineQuantity {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("quantity must be between 1 and %d", ledger.MaxLineQuantity))
		}
		if err := requireLocation(body.Location, "location"); err != nil {
			return err
		}
		before, _, err := requireSize(cat, body.ProductID, body.Size)
		if err != nil {
			return err
		}

		res, err := cat.Restock(c.UserContext(), body.ProductID, body.Size, body.Location, body.Quantity)
		if err != nil {
			return LedgerError(c, err)
		}

		audit.Record(c, "stock", body.ProductID, models.AuditActionUpdate,
			fmt.Sprintf("restock %s size %s +%d at %s", before.Model, body.Size, body.Quantity, body.Location),
			before.Sizes, res.Sizes)
		return c.JSON(res)
	}
}

// POST /api/stock/adjust (signed single-size correction, clamped at zero)
func AdjustStockHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Delta == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "delta cannot be zero")
		}
		if body.Delta > ledger.MaxLineQuantity || body.Delta < -ledger.MaxLineQuantity {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("delta must be between -%d and %d", ledger.MaxLineQuantity, ledger.MaxLineQuantity))
		}
		if err := requireLocation(body.Location, "location"); err != nil {
			return err
		}
		before, _, err := requireSize(cat, body.ProductID, body.Size)
		if err != nil {
			return err
		}

		res, err := cat.Apply(c.UserContext(), "adjust", body.ProductID,
			[]ledger.Delta{{Size: body.Size, Location: body.Location, Qty: body.Delta}})
		if err != nil {
			return LedgerError(c, err)
		}

		audit.Record(c, "stock", body.ProductID, models.AuditActionUpdate,
			fmt.Sprintf("adjust %s size %s %+d at %s", before.Model, body.Size, body.Delta, body.Location),
			before.Sizes, res.Sizes)
		return c.JSON(res)
	}
}

// GET /api/stock/low?location=shop1
func LowStockHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		location := c.Query("location")
		if err := requireLocation(location, "location"); err != nil {
			return err
		}

		items := make([]LowStockItem, 0)
		for _, p := range cat.Products() {
			for _, s := range p.Sizes {
				if !ledger.IsLowStock(s, location) {
					continue
				}
				items = append(items, LowStockItem{
					ProductID: p.ID,
					Model:     p.Model,
					Color:     p.Color,
					Code:      p.Code,
					Size:      s.Size,
					Barcode:   s.Barcode,
					Available: ledger.AvailableQuantity(s, location),
					AlertQty:  s.Threshold(),
				})
			}
		}
		return c.JSON(items)
	}
}

// GET /api/stock/available?product_id=1&size=42&location=shop1
func AvailableHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := strconv.ParseUint(c.Query("product_id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		location := c.Query("location")
		if err := requireLocation(location, "location"); err != nil {
			return err
		}
		_, s, err := requireSize(cat, uint(productID), c.Query("size"))
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"productId": productID,
			"size":      s.Size,
			"location":  location,
			"available": ledger.AvailableQuantity(s, location),
			"lowStock":  ledger.IsLowStock(s, location),
			"legacy":    s.IsLegacy(),
		})
	}
}
