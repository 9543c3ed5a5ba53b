package dashboard

import (
	"time"

	"doka-backend/internal/config"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func loadSales(location string, since *time.Time) ([]models.Sale, error) {
	dbq := database.DB.Model(&models.Sale{})
	if location != "" {
		dbq = dbq.Where("location = ?", location)
	}
	if since != nil {
		dbq = dbq.Where("date >= ?", *since)
	}
	var sales []models.Sale
	err := dbq.Order("date ASC").Find(&sales).Error
	return sales, err
}

// GET /api/dashboard/summary?location=shop1
func SummaryHandler(cfg *config.Config, cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		location := c.Query("location")
		sales, err := loadSales(location, nil)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sales")
		}
		return c.JSON(Summarize(sales, cat.Products(), location, time.Now(), cfg.EURRate))
	}
}

// GET /api/dashboard/top-products?limit=10&location=shop1&days=30
func TopProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 10
		}
		var since *time.Time
		if days := c.QueryInt("days", 0); days > 0 {
			t := startOfDay(time.Now()).AddDate(0, 0, -(days - 1))
			since = &t
		}
		sales, err := loadSales(c.Query("location"), since)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sales")
		}
		return c.JSON(TopProducts(sales, limit))
	}
}

// GET /api/dashboard/sales-chart?period=daily&count=7&location=shop1
func SalesChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", "daily")
		count := c.QueryInt("count", 0)
		if count == 0 {
			switch period {
			case "weekly":
				count = 8
			case "monthly":
				count = 12
			default:
				count = 7
			}
		}
		if count < 0 || count > 366 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid count")
		}

		now := time.Now()
		_, start, _ := ChartRange(period, count, now)
		location := c.Query("location")
		sales, err := loadSales(location, &start)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sales")
		}
		return c.JSON(BuildSalesChart(sales, location, period, count, now))
	}
}
