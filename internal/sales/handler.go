package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doka-backend/internal/admin"
	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/inventory"
	"doka-backend/internal/ledger"
	"doka-backend/internal/logger"
	"doka-backend/internal/metrics"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateSaleRequest struct {
	Location string    `json:"location"`
	Items    []Line    `json:"items"`
	Discount *Discount `json:"discount"`
}

type QuoteResponse struct {
	Cart
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// buildCart validates the request and fills a cart with what the location
// holds. Lines over availability are capped and listed in Cart.Capped.
func buildCart(cat *ledger.Catalog, body CreateSaleRequest) (*Cart, error) {
	body.Location = strings.TrimSpace(body.Location)
	if body.Location == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "location is required")
	}
	ok, err := admin.LocationExists(database.DB, body.Location)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not check location")
	}
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unknown location: "+body.Location)
	}
	if len(body.Items) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, ErrEmptyCart.Error())
	}

	cart := &Cart{Location: body.Location}
	for _, l := range body.Items {
		if l.Qty <= 0 || l.Qty > ledger.MaxLineQuantity {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("qty must be between 1 and %d", ledger.MaxLineQuantity))
		}
		p, ok := cat.Get(l.ProductID)
		if !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("product %d not found", l.ProductID))
		}
		s, ok := ledger.FindSize(p, l.Size)
		if !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("product %d has no size %s", l.ProductID, l.Size))
		}
		cart.Add(p, l.Size, l.Qty, ledger.AvailableQuantity(s, body.Location))
	}
	return cart, nil
}

func discountError(err error) error {
	if errors.Is(err, ErrInvalidDiscount) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

// POST /api/sales/quote
// Prices a cart without touching stock; over-long lines come back capped.
func QuoteHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		cart, err := buildCart(cat, body)
		if err != nil {
			return err
		}
		subtotal, discount, total, err := cart.Totals(body.Discount)
		if err != nil {
			return discountError(err)
		}
		if cart.Items == nil {
			cart.Items = []models.SaleItem{}
		}
		return c.JSON(QuoteResponse{Cart: *cart, Subtotal: subtotal, Discount: discount, Total: total})
	}
}

// POST /api/sales
func CreateSaleHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		cart, err := buildCart(cat, body)
		if err != nil {
			return err
		}
		if len(cart.Capped) > 0 {
			l := cart.Capped[0]
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("not enough stock for product %d size %s at %s", l.ProductID, l.Size, cart.Location))
		}
		subtotal, discount, total, err := cart.Totals(body.Discount)
		if err != nil {
			return discountError(err)
		}

		sale := models.Sale{
			Date:     time.Now(),
			Items:    datatypes.JSONSlice[models.SaleItem](cart.Items),
			Subtotal: subtotal,
			Discount: discount,
			Total:    total,
			Location: cart.Location,
			UserName: auth.CurrentUser(c).Name,
		}
		_, err = cat.ApplyAndRecord(c.UserContext(), "sale", cart.Changes(), true,
			func(ctx context.Context) error {
				return database.DB.WithContext(ctx).Create(&sale).Error
			})
		if errors.Is(err, ledger.ErrNotRecorded) {
			logger.FromCtx(c).Error("sale not recorded", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not record sale")
		}
		if err != nil {
			return inventory.LedgerError(c, err)
		}

		metrics.SalesTotal.WithLabelValues(sale.Location).Inc()
		metrics.SalesRevenue.WithLabelValues(sale.Location).Add(sale.Total.InexactFloat64())

		audit.Record(c, "sale", sale.ID, models.AuditActionCreate,
			fmt.Sprintf("sale at %s: %d items, total %s", sale.Location, sale.ItemCount(), sale.Total.StringFixed(2)),
			nil, sale)
		return c.Status(fiber.StatusCreated).JSON(sale)
	}
}

// salesQuery applies location and from/to (YYYY-MM-DD, both inclusive).
func salesQuery(c *fiber.Ctx) (*gorm.DB, error) {
	dbq := database.DB.Model(&models.Sale{})
	if loc := c.Query("location"); loc != "" {
		dbq = dbq.Where("location = ?", loc)
	}
	if v := c.Query("from"); v != "" {
		from, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		dbq = dbq.Where("date >= ?", from)
	}
	if v := c.Query("to"); v != "" {
		to, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		dbq = dbq.Where("date < ?", to.AddDate(0, 0, 1))
	}
	return dbq, nil
}

// GET /api/sales?location=shop1&from=2024-01-01&to=2024-01-31
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq, err := salesQuery(c)
		if err != nil {
			return err
		}
		limit := c.QueryInt("limit", 500)
		if limit <= 0 || limit > 5000 {
			limit = 500
		}

		var sales []models.Sale
		if err := dbq.Order("date DESC, id DESC").Limit(limit).Find(&sales).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list sales")
		}
		return c.JSON(sales)
	}
}

// GET /api/sales/:id
func GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}
		var sale models.Sale
		if err := database.DB.First(&sale, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "sale not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sale")
		}
		return c.JSON(sale)
	}
}
