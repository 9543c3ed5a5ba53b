// Package sales prices carts, records sales against the ledger and exports
// sales history.
package sales

import (
	"errors"
	"fmt"

	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidDiscount = errors.New("invalid discount")
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Line is one requested (product, size, qty).
type Line struct {
	ProductID uint   `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

// Cart holds merged sale items for one location.
type Cart struct {
	Location string            `json:"location"`
	Items    []models.SaleItem `json:"items"`
	// Capped lists lines that were reduced to what the location holds.
	Capped []Line `json:"capped,omitempty"`
}

// Amount returns the discount in money for the given subtotal. Percent must be
// within 0..100 and fixed cannot be negative.
func (d *Discount) Amount(subtotal decimal.Decimal) (decimal.Decimal, error) {
	if d == nil || d.Value.IsZero() {
		return decimal.Zero, nil
	}
	if d.Value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value", ErrInvalidDiscount)
	}
	switch d.Type {
	case DiscountPercent:
		if d.Value.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, fmt.Errorf("%w: percent above 100", ErrInvalidDiscount)
		}
		return subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2), nil
	case DiscountFixed:
		return d.Value.Round(2), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, d.Type)
}

// Add merges qty of size into the cart, never going past available. It
// returns how many units were actually added.
func (c *Cart) Add(p models.Product, size string, qty, available int) int {
	if qty <= 0 {
		return 0
	}
	s, ok := ledger.FindSize(p, size)
	if !ok {
		return 0
	}

	i := c.index(p.ID, size)
	inCart := 0
	if i >= 0 {
		inCart = c.Items[i].Qty
	}
	add := qty
	if room := available - inCart; add > room {
		add = max(room, 0)
		c.Capped = append(c.Capped, Line{ProductID: p.ID, Size: size, Qty: qty})
	}
	if add == 0 {
		return 0
	}

	if i >= 0 {
		c.Items[i].Qty += add
		return add
	}
	c.Items = append(c.Items, models.SaleItem{
		ProductID: p.ID,
		Model:     p.Model,
		Color:     p.Color,
		Size:      s.Size,
		Barcode:   s.Barcode,
		Price:     p.Price,
		Qty:       add,
	})
	return add
}

func (c *Cart) index(productID uint, size string) int {
	for i, it := range c.Items {
		if it.ProductID == productID && it.Size == size {
			return i
		}
	}
	return -1
}

// Subtotal is the sum of price times qty over all items.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(decimalQty(it.Qty)))
	}
	return total.Round(2)
}

// Totals applies d to the cart. The discount never takes the total below zero.
func (c *Cart) Totals(d *Discount) (subtotal, discount, total decimal.Decimal, err error) {
	subtotal = c.Subtotal()
	discount, err = d.Amount(subtotal)
	if err != nil {
		return
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	total = subtotal.Sub(discount)
	return
}

// Changes groups the cart into one deduction per product at the cart location.
func (c *Cart) Changes() []ledger.Change {
	var out []ledger.Change
	pos := map[uint]int{}
	for _, it := range c.Items {
		i, ok := pos[it.ProductID]
		if !ok {
			i = len(out)
			pos[it.ProductID] = i
			out = append(out, ledger.Change{ProductID: it.ProductID})
		}
		out[i].Deltas = append(out[i].Deltas, ledger.Delta{Size: it.Size, Location: c.Location, Qty: -it.Qty})
	}
	return out
}

func decimalQty(q int) decimal.Decimal {
	return decimal.NewFromInt(int64(q))
}
