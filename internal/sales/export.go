package sales

import (
	"fmt"
	"io"

	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Shitjet"

var exportHeader = []any{"Sale", "Date", "Location", "User", "Model", "Color", "Size", "Barcode", "Qty", "Price", "Line total", "Sale discount", "Sale total"}

// WriteWorkbook writes one row per sale line. Sale-level discount and total
// appear on the first line of each sale only.
func WriteWorkbook(w io.Writer, sales []models.Sale) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return err
	}

	row := 2
	for _, s := range sales {
		for i, it := range s.Items {
			values := []any{
				s.ID,
				s.Date.Format("2006-01-02 15:04"),
				s.Location,
				s.UserName,
				it.Model,
				it.Color,
				it.Size,
				it.Barcode,
				it.Qty,
				it.Price.InexactFloat64(),
				it.Price.Mul(decimalQty(it.Qty)).InexactFloat64(),
			}
			if i == 0 {
				values = append(values, s.Discount.InexactFloat64(), s.Total.InexactFloat64())
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetColWidth(exportSheet, "B", "B", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "E", "E", 24); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// GET /api/sales/export.xlsx?location=&from=&to=
func ExportSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq, err := salesQuery(c)
		if err != nil {
			return err
		}
		var sales []models.Sale
		if err := dbq.Order("date ASC, id ASC").Find(&sales).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list sales")
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="sales-%s.xlsx"`, c.Query("location", "all")))
		if err := WriteWorkbook(c.Response().BodyWriter(), sales); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not build workbook")
		}
		return nil
	}
}
