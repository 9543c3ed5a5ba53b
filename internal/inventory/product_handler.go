package inventory

import (
	"fmt"
	"strings"

	"doka-backend/internal/admin"
	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SizeView struct {
	models.ProductSize
	Available int  `json:"available"`
	LowStock  bool `json:"lowStock"`
}

type ProductView struct {
	models.Product
	Sizes     []SizeView `json:"sizes"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

type CreateProductRequest struct {
	Model      string               `json:"model"`
	Color      string               `json:"color"`
	Type       string               `json:"type"`
	CategoryID *uint                `json:"categoryId"`
	Code       string               `json:"code"`
	Price      decimal.Decimal      `json:"price"`
	Cost       decimal.Decimal      `json:"cost"`
	Sizes      []models.ProductSize `json:"sizes"`
	Stock      models.LocationStock `json:"stock"`
	Photo      *string              `json:"photo"`
}

type UpdateProductRequest struct {
	Model      *string               `json:"model"`
	Color      *string               `json:"color"`
	Type       *string               `json:"type"`
	CategoryID *uint                 `json:"categoryId"`
	Code       *string               `json:"code"`
	Price      *decimal.Decimal      `json:"price"`
	Cost       *decimal.Decimal      `json:"cost"`
	Sizes      *[]models.ProductSize `json:"sizes"`
	Stock      *models.LocationStock `json:"stock"`
	Photo      *string               `json:"photo"`
}

// NewProductView reports availability at location, or the aggregate when
// location is empty.
func NewProductView(p models.Product, location string) ProductView {
	v := ProductView{Product: p, Sizes: make([]SizeView, 0, len(p.Sizes))}
	for _, s := range p.Sizes {
		sv := SizeView{ProductSize: s}
		if location == "" {
			sv.Available = s.Quantity
			sv.LowStock = s.Quantity <= s.Threshold()
		} else {
			sv.Available = ledger.AvailableQuantity(s, location)
			sv.LowStock = ledger.IsLowStock(s, location)
		}
		v.Sizes = append(v.Sizes, sv)
	}
	return v
}

func (v ProductView) hasLowStock() bool {
	for _, s := range v.Sizes {
		if s.LowStock {
			return true
		}
	}
	return false
}

func matchesQuery(p models.Product, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{p.Model, p.Code, p.Color, p.Type} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, s := range p.Sizes {
		if s.Barcode == q {
			return true
		}
	}
	return false
}

// GET /api/products?location=shop1&low_stock=true&q=runner&category_id=2
func ListProductsHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		location := c.Query("location")
		lowOnly := c.QueryBool("low_stock", false)
		q := strings.ToLower(strings.TrimSpace(c.Query("q")))
		categoryID := uint(c.QueryInt("category_id", 0))

		products := cat.Products()
		res := make([]ProductView, 0, len(products))
		for _, p := range products {
			if categoryID != 0 && (p.CategoryID == nil || *p.CategoryID != categoryID) {
				continue
			}
			if !matchesQuery(p, q) {
				continue
			}
			v := NewProductView(p, location)
			if lowOnly && !v.hasLowStock() {
				continue
			}
			res = append(res, v)
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id?location=shop1
func GetProductHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		p, ok := cat.Get(id)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return c.JSON(NewProductView(p, c.Query("location")))
	}
}

// GET /api/products/barcode/:barcode?location=shop1
func GetProductByBarcodeHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		barcode := strings.TrimSpace(c.Params("barcode"))
		p, s, ok := cat.FindByBarcode(barcode)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no product with this barcode")
		}
		return c.JSON(fiber.Map{
			"product": NewProductView(p, c.Query("location")),
			"size":    s.Size,
		})
	}
}

// POST /api/admin/products
func CreateProductHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Model = strings.TrimSpace(body.Model)
		body.Code = strings.TrimSpace(body.Code)
		body.Color = strings.TrimSpace(body.Color)
		if body.Color == "" {
			body.Color = "-"
		}
		if body.Model == "" {
			return fiber.NewError(fiber.StatusBadRequest, "model is required")
		}
		if body.Price.IsNegative() || body.Cost.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "price and cost cannot be negative")
		}
		sizes, err := cleanSizes(body.Sizes)
		if err != nil {
			return err
		}

		if existing, ok := cat.FindByCodeColor(body.Code, body.Color); ok {
			v := NewProductView(existing, "")
			v.Duplicate = true
			return c.JSON(v)
		}

		p := models.Product{
			Model:      body.Model,
			Color:      body.Color,
			Type:       strings.TrimSpace(body.Type),
			CategoryID: body.CategoryID,
			Code:       body.Code,
			Price:      body.Price.Round(2),
			Cost:       body.Cost.Round(2),
			Sizes:      datatypes.JSONSlice[models.ProductSize](sizes),
			Stock:      datatypes.NewJSONType(stockOrDerived(body.Stock, sizes)),
			Photo:      body.Photo,
		}
		created, err := cat.Create(c.UserContext(), p)
		if err != nil {
			return LedgerError(c, err)
		}

		audit.Record(c, "product", created.ID, models.AuditActionCreate,
			fmt.Sprintf("product created: %s %s", created.Model, created.Color), nil, created)
		return c.Status(fiber.StatusCreated).JSON(NewProductView(created, ""))
	}
}

// PUT /api/admin/products/:id (only fields present in the body change)
func UpdateProductHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		var sizes []models.ProductSize
		if body.Sizes != nil {
			if sizes, err = cleanSizes(*body.Sizes); err != nil {
				return err
			}
		}

		before, after, err := cat.Update(c.UserContext(), id, func(p *models.Product) error {
			if body.Model != nil {
				m := strings.TrimSpace(*body.Model)
				if m == "" {
					return fiber.NewError(fiber.StatusBadRequest, "model cannot be empty")
				}
				p.Model = m
			}
			if body.Color != nil {
				p.Color = strings.TrimSpace(*body.Color)
			}
			if body.Type != nil {
				p.Type = strings.TrimSpace(*body.Type)
			}
			if body.CategoryID != nil {
				p.CategoryID = body.CategoryID
			}
			if body.Code != nil {
				p.Code = strings.TrimSpace(*body.Code)
			}
			if body.Price != nil {
				if body.Price.IsNegative() {
					return fiber.NewError(fiber.StatusBadRequest, "price cannot be negative")
				}
				p.Price = body.Price.Round(2)
			}
			if body.Cost != nil {
				if body.Cost.IsNegative() {
					return fiber.NewError(fiber.StatusBadRequest, "cost cannot be negative")
				}
				p.Cost = body.Cost.Round(2)
			}
			if body.Sizes != nil {
				p.Sizes = sizes
			}
			if body.Stock != nil {
				p.Stock = datatypes.NewJSONType(*body.Stock)
			}
			if body.Photo != nil {
				p.Photo = body.Photo
			}
			return nil
		})
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				return fe
			}
			return LedgerError(c, err)
		}

		audit.Record(c, "product", id, models.AuditActionUpdate,
			fmt.Sprintf("product updated: %s %s", after.Model, after.Color), before, after)
		return c.JSON(NewProductView(after, ""))
	}
}

// DELETE /api/admin/products/:id
func DeleteProductHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		removed, err := cat.Delete(c.UserContext(), id)
		if err != nil {
			return LedgerError(c, err)
		}

		audit.Record(c, "product", id, models.AuditActionDelete,
			fmt.Sprintf("product deleted: %s %s", removed.Model, removed.Color), removed, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// cleanSizes trims labels and barcodes and rejects blank labels, repeated
// labels, negative quantities and unknown locations.
func cleanSizes(in []models.ProductSize) ([]models.ProductSize, error) {
	out := make([]models.ProductSize, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = s.Clone()
		s.Size = strings.TrimSpace(s.Size)
		s.Barcode = strings.TrimSpace(s.Barcode)
		if s.Size == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "size label is required")
		}
		if seen[s.Size] {
			return nil, fiber.NewError(fiber.StatusBadRequest, "size listed twice: "+s.Size)
		}
		seen[s.Size] = true
		if s.Quantity < 0 || (s.AlertQty != nil && *s.AlertQty < 0) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "quantities cannot be negative")
		}
		if s.Quantity > ledger.MaxLineQuantity {
			return nil, fiber.NewError(fiber.StatusBadRequest, "quantity too large")
		}
		for loc, q := range s.LocationQty {
			if q < 0 {
				return nil, fiber.NewError(fiber.StatusBadRequest, "quantities cannot be negative")
			}
			if q > ledger.MaxLineQuantity {
				return nil, fiber.NewError(fiber.StatusBadRequest, "quantity too large")
			}
			ok, err := admin.LocationExists(database.DB, loc)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "could not check locations")
			}
			if !ok {
				return nil, fiber.NewError(fiber.StatusBadRequest, "unknown location: "+loc)
			}
		}
		out = append(out, s)
	}
	return ledger.Normalize(out), nil
}

// stockOrDerived keeps an explicit legacy stock map or derives one from the
// size breakdowns.
func stockOrDerived(stock models.LocationStock, sizes []models.ProductSize) models.LocationStock {
	if stock != nil {
		return stock
	}
	out := models.LocationStock{}
	for _, s := range sizes {
		for loc, q := range s.LocationQty {
			out[loc] += q
		}
	}
	return out
}
