package dashboard

import (
	"testing"
	"time"

	"doka-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// Wednesday
var now = time.Date(2024, 5, 15, 14, 0, 0, 0, time.UTC)

func sale(loc string, d time.Time, total string, items ...models.SaleItem) models.Sale {
	return models.Sale{Date: d, Location: loc, Total: decimal.RequireFromString(total), Items: datatypes.JSONSlice[models.SaleItem](items)}
}

func item(id uint, model string, price string, qty int) models.SaleItem {
	return models.SaleItem{ProductID: id, Model: model, Price: decimal.RequireFromString(price), Qty: qty}
}

func TestSummarize(t *testing.T) {
	sales := []models.Sale{
		sale("shop1", now.Add(-time.Hour), "1220", item(1, "Runner", "610", 2)),
		sale("shop1", now.AddDate(0, 0, -6), "500", item(2, "Walker", "500", 1)),
		sale("shop1", now.AddDate(0, 0, -10), "300", item(2, "Walker", "300", 1)),
		sale("shop1", now.AddDate(0, -2, 0), "1000", item(1, "Runner", "500", 2)),
		sale("shop2", now, "999", item(1, "Runner", "999", 1)),
	}
	products := []models.Product{
		{ID: 1, Sizes: datatypes.JSONSlice[models.ProductSize]{{Size: "42", Quantity: 10, LocationQty: map[string]int{"main": 10}}}},
		{ID: 2, Sizes: datatypes.JSONSlice[models.ProductSize]{{Size: "40", Quantity: 9, LocationQty: map[string]int{"shop1": 9}}}},
		{ID: 3, Sizes: datatypes.JSONSlice[models.ProductSize]{{Size: "L", Quantity: 2}}},
	}

	sum := Summarize(sales, products, "shop1", now, decimal.NewFromInt(61))

	assert.Equal(t, 1, sum.Today.Sales)
	assert.Equal(t, 2, sum.Today.Items)
	assert.Equal(t, 2, sum.Week.Sales)
	assert.Equal(t, "1720", sum.Week.Total.String())
	assert.Equal(t, 3, sum.Month.Sales)
	assert.Equal(t, 4, sum.AllTime.Sales)
	assert.Equal(t, "755", sum.AllTime.AverageOrder.String())
	assert.Equal(t, "1220", sum.TodayMKD)
	assert.Equal(t, "20.00", sum.TodayEUR)
	// product 1 has nothing at shop1, product 3 is legacy with 2 left
	assert.Equal(t, 2, sum.LowStockProducts)

	all := Summarize(sales, products, "", now, decimal.NewFromInt(61))
	assert.Equal(t, 2, all.Today.Sales)
	assert.Equal(t, 1, all.LowStockProducts)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, nil, "shop1", now, decimal.NewFromInt(61))
	assert.Zero(t, sum.AllTime.Sales)
	assert.True(t, sum.AllTime.AverageOrder.IsZero())
	assert.Equal(t, "0", sum.TodayMKD)
}

func TestTopProducts(t *testing.T) {
	sales := []models.Sale{
		sale("shop1", now, "0", item(1, "Runner", "100", 2), item(2, "Walker", "500", 1)),
		sale("shop2", now, "0", item(2, "Walker", "500", 1), item(3, "Boot", "50", 2)),
	}
	top := TopProducts(sales, 2)
	require.Len(t, top, 2)
	assert.Equal(t, uint(2), top[0].ProductID)
	assert.Equal(t, "1000", top[0].Revenue.String())
	assert.Equal(t, uint(1), top[1].ProductID)

	assert.Len(t, TopProducts(sales, 0), 3)
}

func TestBuildSalesChart(t *testing.T) {
	sales := []models.Sale{
		sale("shop1", now, "100"),
		sale("shop1", now.AddDate(0, 0, -1), "50"),
		sale("shop1", now.AddDate(0, 0, -1), "25"),
		sale("shop1", now.AddDate(0, 0, -7), "999"),
		sale("shop2", now, "1"),
	}

	daily := BuildSalesChart(sales, "shop1", "daily", 7, now)
	require.Len(t, daily.Points, 7)
	assert.Equal(t, "2024-05-09", daily.From)
	assert.Equal(t, "2024-05-15", daily.To)
	assert.Equal(t, "100", daily.Points[6].Total.String())
	assert.Equal(t, 2, daily.Points[5].Sales)
	assert.Equal(t, "175", daily.GrandTotal.String())

	weekly := BuildSalesChart(sales, "shop1", "weekly", 2, now)
	require.Len(t, weekly.Points, 2)
	assert.Equal(t, "175", weekly.Points[1].Total.String())
	assert.Equal(t, "999", weekly.Points[0].Total.String())

	monthly := BuildSalesChart(sales, "", "monthly", 3, now)
	assert.Equal(t, "2024-03-01", monthly.From)
	assert.Equal(t, "2024-05-31", monthly.To)
	assert.Equal(t, 5, monthly.Points[2].Sales)

	fallback := BuildSalesChart(nil, "", "hourly", 3, now)
	assert.Equal(t, "daily", fallback.Period)
	assert.Len(t, fallback.Points, 3)
}
