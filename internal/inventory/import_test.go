package inventory_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"doka-backend/internal/inventory"
	"doka-backend/internal/ledger"
	"doka-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseImportSheet(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Code", "Model", "Size", "Quantity", "Price", "Location"},
		{"RN-1", "Runner", "42", 3, "2490,50", ""},
		{"", "", "", "", "", ""},
		{"RN-1", "Runner", "", 1, "", ""},
		{"RN-2", "Walker", "40", "lots", "", ""},
	})

	rows, problems, err := inventory.ParseImportSheet(buf, "main")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "main", rows[0].Location)
	assert.Equal(t, "-", rows[0].Color)
	assert.Equal(t, "2490.5", rows[0].Price.String())
	assert.Equal(t, 3, rows[0].Quantity)
	assert.Len(t, problems, 2)

	_, _, err = inventory.ParseImportSheet(workbook(t, [][]any{{"Code", "Model"}}), "main")
	assert.ErrorContains(t, err, "size")
}

func TestImportProducts(t *testing.T) {
	app, cat := newInventoryApp(t)
	token := testutil.OwnerToken(t)
	existing := runner(t, app, token)

	buf := workbook(t, [][]any{
		{"model", "color", "code", "price", "size", "barcode", "quantity", "location"},
		{"Runner", "black", "RN-1", "2490", "42", "", 2, "shop2"},
		{"Runner", "black", "RN-1", "2490", "44", "100044", 1, "main"},
		{"Walker", "", "WK-1", "1800", "39", "200039", 4, ""},
		{"Walker", "", "WK-1", "1800", "40", "200040", 2, "shop1"},
		{"Ghost", "", "GH-1", "100", "41", "", 1, "moon"},
	})

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "stock.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/admin/products/import", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res inventory.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Restocked)
	assert.Len(t, res.Errors, 1)

	p, _ := cat.Get(existing.ID)
	s42, _ := ledger.FindSize(p, "42")
	assert.Equal(t, 2, s42.LocationQty["shop2"])
	s44, ok := ledger.FindSize(p, "44")
	require.True(t, ok)
	assert.Equal(t, 1, s44.Quantity)

	walker, ok := cat.FindByCodeColor("WK-1", "-")
	require.True(t, ok)
	s39, _ := ledger.FindSize(walker, "39")
	assert.Equal(t, map[string]int{"main": 4}, s39.LocationQty)
	assert.Equal(t, 6, walker.StockMap()["main"]+walker.StockMap()["shop1"])
}
