package inventory

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"doka-backend/internal/admin"
	"doka-backend/internal/audit"
	"doka-backend/internal/database"
	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// ImportRow is one parsed spreadsheet line.
type ImportRow struct {
	Line     int
	Model    string
	Color    string
	Type     string
	Code     string
	Price    decimal.Decimal
	Cost     decimal.Decimal
	Size     string
	Barcode  string
	Quantity int
	Location string
}

type ImportResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Restocked int      `json:"restocked"`
	Errors    []string `json:"errors"`
}

// ParseImportSheet reads the first sheet. The first row is a header naming the
// columns in any order; model and size are required, the rest are optional.
func ParseImportSheet(r io.Reader, defaultLocation string) ([]ImportRow, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet is empty")
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"model", "size"} {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []ImportRow
	var problems []string
	for n, row := range rows[1:] {
		line := n + 2
		ir := ImportRow{
			Line:     line,
			Model:    cell(row, "model"),
			Color:    cell(row, "color"),
			Type:     cell(row, "type"),
			Code:     cell(row, "code"),
			Size:     cell(row, "size"),
			Barcode:  cell(row, "barcode"),
			Location: cell(row, "location"),
		}
		if ir.Model == "" && ir.Size == "" {
			continue
		}
		if ir.Model == "" || ir.Size == "" {
			problems = append(problems, fmt.Sprintf("line %d: model and size are required", line))
			continue
		}
		if ir.Color == "" {
			ir.Color = "-"
		}
		if ir.Location == "" {
			ir.Location = defaultLocation
		}

		var perr error
		if ir.Price, perr = parseMoney(cell(row, "price")); perr != nil {
			problems = append(problems, fmt.Sprintf("line %d: price: %v", line, perr))
			continue
		}
		if ir.Cost, perr = parseMoney(cell(row, "cost")); perr != nil {
			problems = append(problems, fmt.Sprintf("line %d: cost: %v", line, perr))
			continue
		}
		if q := cell(row, "quantity"); q != "" {
			if ir.Quantity, perr = strconv.Atoi(q); perr != nil || ir.Quantity < 0 || ir.Quantity > ledger.MaxLineQuantity {
				problems = append(problems, fmt.Sprintf("line %d: quantity must be a whole number from 0 to %d", line, ledger.MaxLineQuantity))
				continue
			}
		}
		out = append(out, ir)
	}
	return out, problems, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount")
	}
	return d.Round(2), nil
}

// POST /api/admin/products/import (multipart "file", optional "location")
func ImportProductsHandler(cat *ledger.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file upload failed: "+err.Error())
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "only .xlsx files are accepted")
		}

		defaultLocation := c.FormValue("location")
		if defaultLocation == "" {
			locs, err := admin.ListLocations(database.DB)
			if err != nil || len(locs) == 0 {
				return fiber.NewError(fiber.StatusInternalServerError, "no location to import into")
			}
			defaultLocation = locs[0].ID
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not open upload")
		}
		defer file.Close()

		rows, problems, err := ParseImportSheet(file, defaultLocation)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res := ImportResult{Errors: problems}
		for _, group := range groupImportRows(rows) {
			applyImportGroup(c, cat, group, &res)
		}
		if res.Errors == nil {
			res.Errors = []string{}
		}

		audit.Record(c, "product", "import", models.AuditActionCreate,
			fmt.Sprintf("xlsx import %s: %d created, %d updated, %d restocked", fileHeader.Filename, res.Created, res.Updated, res.Restocked),
			nil, res)
		return c.JSON(res)
	}
}

func groupImportRows(rows []ImportRow) [][]ImportRow {
	var groups [][]ImportRow
	pos := map[string]int{}
	for _, r := range rows {
		key := strings.ToLower(r.Code) + "\x00" + strings.ToLower(r.Color)
		if r.Code == "" {
			key = fmt.Sprintf("line:%d", r.Line)
		}
		i, ok := pos[key]
		if !ok {
			i = len(groups)
			pos[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// applyImportGroup creates the product for a (code, color) group or, when it
// already exists, restocks known sizes and appends new ones.
func applyImportGroup(c *fiber.Ctx, cat *ledger.Catalog, group []ImportRow, res *ImportResult) {
	ctx := c.UserContext()
	first := group[0]

	for _, r := range group {
		if err := requireLocation(r.Location, "location"); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: unknown location %s", r.Line, r.Location))
			return
		}
	}

	existing, found := cat.FindByCodeColor(first.Code, first.Color)
	if !found {
		sizes := make([]models.ProductSize, 0, len(group))
		idx := map[string]int{}
		for _, r := range group {
			i, ok := idx[r.Size]
			if !ok {
				i = len(sizes)
				idx[r.Size] = i
				sizes = append(sizes, models.ProductSize{Size: r.Size, Barcode: r.Barcode, LocationQty: map[string]int{}})
			}
			sizes[i].LocationQty[r.Location] += r.Quantity
		}
		sizes = ledger.Normalize(sizes)
		p := models.Product{
			Model: first.Model,
			Color: first.Color,
			Type:  first.Type,
			Code:  first.Code,
			Price: first.Price,
			Cost:  first.Cost,
			Sizes: datatypes.JSONSlice[models.ProductSize](sizes),
			Stock: datatypes.NewJSONType(stockOrDerived(nil, sizes)),
		}
		if _, err := cat.Create(ctx, p); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", first.Line, err))
			return
		}
		res.Created++
		return
	}

	var newSizes []models.ProductSize
	for _, r := range group {
		if _, ok := ledger.FindSize(existing, r.Size); ok {
			if r.Quantity == 0 {
				continue
			}
			if _, err := cat.Restock(ctx, existing.ID, r.Size, r.Location, r.Quantity); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", r.Line, err))
				continue
			}
			res.Restocked++
			continue
		}
		newSizes = append(newSizes, models.ProductSize{
			Size:        r.Size,
			Barcode:     r.Barcode,
			LocationQty: map[string]int{r.Location: r.Quantity},
		})
	}
	if len(newSizes) == 0 {
		return
	}

	_, _, err := cat.Update(ctx, existing.ID, func(p *models.Product) error {
		for _, s := range newSizes {
			if _, ok := ledger.FindSize(*p, s.Size); ok {
				continue
			}
			p.Sizes = append(p.Sizes, s)
			stock := p.StockMap()
			for loc, q := range s.LocationQty {
				stock[loc] += q
			}
			p.Stock = datatypes.NewJSONType(stock)
		}
		return nil
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", first.Line, err))
		return
	}
	res.Updated++
}
