package sales_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/models"
	"doka-backend/internal/sales"
	"doka-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func newSalesApp(t *testing.T) (*fiber.App, *ledger.Catalog, models.Product) {
	t.Helper()
	db := testutil.NewDB(t)
	store := ledger.NewGormStore(db)

	p := models.Product{
		Model: "Runner",
		Color: "black",
		Code:  "RN-1",
		Price: decimal.RequireFromString("1000"),
		Sizes: datatypes.JSONSlice[models.ProductSize]{
			{Size: "42", Barcode: "100042", Quantity: 5, LocationQty: map[string]int{"shop1": 3, "main": 2}},
			{Size: "43", Barcode: "100043", Quantity: 4},
		},
	}
	require.NoError(t, store.CreateProduct(context.Background(), &p))

	cat := ledger.NewCatalog(store, nil, zap.NewNop(), ledger.Options{ConfirmWrites: true})
	t.Cleanup(cat.Close)
	require.NoError(t, cat.Load(context.Background()))

	cfg := testutil.Config()
	app := testutil.NewApp()
	api := app.Group("/api", auth.JWTMiddleware(cfg))
	api.Post("/sales/quote", sales.QuoteHandler(cat))
	api.Post("/sales", sales.CreateSaleHandler(cat))
	api.Get("/sales/export.xlsx", sales.ExportSalesHandler())
	api.Get("/sales", sales.ListSalesHandler())
	api.Get("/sales/:id", sales.GetSaleHandler())
	return app, cat, p
}

func available(t *testing.T, cat *ledger.Catalog, id uint, size, loc string) int {
	t.Helper()
	p, ok := cat.Get(id)
	require.True(t, ok)
	s, ok := ledger.FindSize(p, size)
	require.True(t, ok)
	return ledger.AvailableQuantity(s, loc)
}

func TestCreateSale(t *testing.T) {
	app, cat, p := newSalesApp(t)
	token := testutil.Token(t, auth.Identity{ID: 4, Username: "ana", Name: "Ana", Role: models.RoleWorker})

	var sale models.Sale
	resp := testutil.Do(t, app, "POST", "/api/sales", token, sales.CreateSaleRequest{
		Location: "shop1",
		Items: []sales.Line{
			{ProductID: p.ID, Size: "42", Qty: 1},
			{ProductID: p.ID, Size: "42", Qty: 1},
		},
		Discount: &sales.Discount{Type: sales.DiscountFixed, Value: decimal.NewFromInt(150)},
	}, &sale)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 2, sale.Items[0].Qty)
	assert.Equal(t, "2000.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "1850.00", sale.Total.StringFixed(2))
	assert.Equal(t, "Ana", sale.UserName)

	assert.Equal(t, 1, available(t, cat, p.ID, "42", "shop1"))
	assert.Equal(t, 2, available(t, cat, p.ID, "42", "main"))

	var got models.Sale
	resp = testutil.Do(t, app, "GET", "/api/sales/"+strconv.Itoa(int(sale.ID)), token, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sale.ID, got.ID)

	var list []models.Sale
	testutil.Do(t, app, "GET", "/api/sales?location=shop1", token, nil, &list)
	assert.Len(t, list, 1)
	testutil.Do(t, app, "GET", "/api/sales?location=shop2", token, nil, &list)
	assert.Empty(t, list)

	resp = testutil.Do(t, app, "GET", "/api/sales/999", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = testutil.Do(t, app, "GET", "/api/sales?from=yesterday", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaleFromLegacySize(t *testing.T) {
	app, cat, p := newSalesApp(t)
	token := testutil.OwnerToken(t)

	resp := testutil.Do(t, app, "POST", "/api/sales", token, sales.CreateSaleRequest{
		Location: "shop2",
		Items:    []sales.Line{{ProductID: p.ID, Size: "43", Qty: 3}},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got, _ := cat.Get(p.ID)
	s, _ := ledger.FindSize(got, "43")
	assert.Equal(t, map[string]int{"shop2": 1}, s.LocationQty)
	assert.Equal(t, 1, s.Quantity)
}

func TestSaleNotRecordedLeavesStockUntouched(t *testing.T) {
	app, cat, p := newSalesApp(t)
	token := testutil.OwnerToken(t)
	require.NoError(t, database.DB.Migrator().DropTable(&models.Sale{}))

	resp := testutil.Do(t, app, "POST", "/api/sales", token, sales.CreateSaleRequest{
		Location: "shop1",
		Items: []sales.Line{
			{ProductID: p.ID, Size: "42", Qty: 2},
			{ProductID: p.ID, Size: "43", Qty: 1},
		},
	}, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	got, _ := cat.Get(p.ID)
	s42, _ := ledger.FindSize(got, "42")
	s43, _ := ledger.FindSize(got, "43")
	assert.Equal(t, map[string]int{"shop1": 3, "main": 2}, s42.LocationQty)
	assert.Nil(t, s43.LocationQty)
	assert.Equal(t, 4, s43.Quantity)

	var stored models.Product
	require.NoError(t, database.DB.First(&stored, p.ID).Error)
	s42, _ = ledger.FindSize(stored, "42")
	s43, _ = ledger.FindSize(stored, "43")
	assert.Equal(t, map[string]int{"shop1": 3, "main": 2}, s42.LocationQty)
	assert.Nil(t, s43.LocationQty)
}

func TestCreateSaleRejections(t *testing.T) {
	app, cat, p := newSalesApp(t)
	token := testutil.OwnerToken(t)

	cases := []struct {
		name string
		body sales.CreateSaleRequest
		want int
	}{
		{"no location", sales.CreateSaleRequest{Items: []sales.Line{{ProductID: p.ID, Size: "42", Qty: 1}}}, http.StatusBadRequest},
		{"unknown location", sales.CreateSaleRequest{Location: "moon", Items: []sales.Line{{ProductID: p.ID, Size: "42", Qty: 1}}}, http.StatusBadRequest},
		{"empty cart", sales.CreateSaleRequest{Location: "shop1"}, http.StatusBadRequest},
		{"zero qty", sales.CreateSaleRequest{Location: "shop1", Items: []sales.Line{{ProductID: p.ID, Size: "42", Qty: 0}}}, http.StatusBadRequest},
		{"unknown product", sales.CreateSaleRequest{Location: "shop1", Items: []sales.Line{{ProductID: 999, Size: "42", Qty: 1}}}, http.StatusNotFound},
		{"unknown size", sales.CreateSaleRequest{Location: "shop1", Items: []sales.Line{{ProductID: p.ID, Size: "50", Qty: 1}}}, http.StatusNotFound},
		{"over stock", sales.CreateSaleRequest{Location: "shop1", Items: []sales.Line{{ProductID: p.ID, Size: "42", Qty: 4}}}, http.StatusConflict},
		{"bad discount", sales.CreateSaleRequest{
			Location: "shop1",
			Items:    []sales.Line{{ProductID: p.ID, Size: "42", Qty: 1}},
			Discount: &sales.Discount{Type: sales.DiscountPercent, Value: decimal.NewFromInt(120)},
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := testutil.Do(t, app, "POST", "/api/sales", token, tc.body, nil)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
	assert.Equal(t, 3, available(t, cat, p.ID, "42", "shop1"))
}

func TestQuoteCapsLines(t *testing.T) {
	app, cat, p := newSalesApp(t)
	token := testutil.OwnerToken(t)

	var q sales.QuoteResponse
	resp := testutil.Do(t, app, "POST", "/api/sales/quote", token, sales.CreateSaleRequest{
		Location: "shop1",
		Items:    []sales.Line{{ProductID: p.ID, Size: "42", Qty: 5}},
		Discount: &sales.Discount{Type: sales.DiscountPercent, Value: decimal.NewFromInt(50)},
	}, &q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, q.Items, 1)
	assert.Equal(t, 3, q.Items[0].Qty)
	assert.Len(t, q.Capped, 1)
	assert.Equal(t, "1500.00", q.Total.StringFixed(2))
	assert.Equal(t, 3, available(t, cat, p.ID, "42", "shop1"))
}

func TestExportSales(t *testing.T) {
	app, _, p := newSalesApp(t)
	token := testutil.OwnerToken(t)
	resp := testutil.Do(t, app, "POST", "/api/sales", token, sales.CreateSaleRequest{
		Location: "main",
		Items:    []sales.Line{{ProductID: p.ID, Size: "42", Qty: 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/sales/export.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Shitjet")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Model", rows[0][4])
	assert.Equal(t, "Runner", rows[1][4])
	assert.Equal(t, "2", rows[1][8])
}
