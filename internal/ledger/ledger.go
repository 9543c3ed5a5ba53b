// Package ledger keeps per-location stock quantities for product sizes.
//
// Every operation is a pure transformation: it takes a product, works on a deep
// copy and returns the new product. The aggregate ProductSize.Quantity is always
// recomputed by the same pass that applied the change, so for any size with a
// LocationQty map Quantity equals the sum of its values.
package ledger

import (
	"errors"
	"math"

	"doka-backend/internal/models"

	"gorm.io/datatypes"
)

// MaxLineQuantity bounds a single quantity accepted from a client.
const MaxLineQuantity = 1_000_000

var (
	ErrSameLocation    = errors.New("source and destination location are the same")
	ErrProductNotFound = errors.New("product not found")
)

// Delta is a signed quantity change for one size at one location. Positive
// values add stock, negative values deduct it (clamped at zero).
type Delta struct {
	Size     string
	Location string
	Qty      int
}

// AvailableQuantity is the read path for every sell/transfer decision. Legacy
// sizes without a per-location breakdown report their aggregate everywhere.
func AvailableQuantity(s models.ProductSize, location string) int {
	if s.LocationQty == nil {
		return s.Quantity
	}
	return s.LocationQty[location]
}

func IsLowStock(s models.ProductSize, location string) bool {
	return AvailableQuantity(s, location) <= s.Threshold()
}

// Restock adds qty units of size at location.
func Restock(p models.Product, size, location string, qty int) (models.Product, bool) {
	if qty <= 0 {
		return p, false
	}
	return BatchApply(p, []Delta{{Size: size, Location: location, Qty: qty}})
}

// Deduct removes qty units of size at location. Over-deduction leaves exactly 0.
func Deduct(p models.Product, size, location string, qty int) (models.Product, bool) {
	if qty <= 0 {
		return p, false
	}
	return BatchApply(p, []Delta{{Size: size, Location: location, Qty: -qty}})
}

// Transfer moves qty units of size from one location to another in a single
// recomputation. The same location on both sides is rejected before anything
// is touched.
func Transfer(p models.Product, size, from, to string, qty int) (models.Product, bool, error) {
	if from == to {
		return p, false, ErrSameLocation
	}
	if qty <= 0 {
		return p, false, nil
	}
	next, ok := BatchApply(p, TransferDeltas(size, from, to, qty))
	return next, ok, nil
}

// TransferDeltas expands one movement into its source and destination deltas.
// The source comes first so a legacy size is attributed to it.
func TransferDeltas(size, from, to string, qty int) []Delta {
	return []Delta{
		{Size: size, Location: from, Qty: -qty},
		{Size: size, Location: to, Qty: qty},
	}
}

// BatchApply applies all deltas to one product in a single pass and returns the
// resulting product. Deltas naming unknown sizes and zero deltas are ignored;
// the bool reports whether anything was applied.
//
// A legacy size (no LocationQty) is materialized before its first change: its
// whole aggregate is attributed to the location of that first delta, matching
// what AvailableQuantity reported for that location.
func BatchApply(p models.Product, deltas []Delta) (models.Product, bool) {
	out := p.Clone()
	stock := out.StockMap()
	applied := false

	for _, d := range deltas {
		if d.Qty == 0 {
			continue
		}
		idx := sizeIndex(out.Sizes, d.Size)
		if idx < 0 {
			continue
		}

		s := out.Sizes[idx]
		if s.LocationQty == nil {
			s.LocationQty = map[string]int{d.Location: s.Quantity}
		}
		s.LocationQty[d.Location] = clampAdd(s.LocationQty[d.Location], d.Qty)
		s.Quantity = Sum(s.LocationQty)
		out.Sizes[idx] = s

		stock[d.Location] = clampAdd(stock[d.Location], d.Qty)
		applied = true
	}

	if !applied {
		return p, false
	}
	out.Stock = datatypes.NewJSONType(stock)
	return out, true
}

// Normalize recomputes Quantity for every size that carries a breakdown and
// drops negative entries to zero. Used when sizes come from outside the ledger
// (product create/update, imports).
func Normalize(sizes []models.ProductSize) []models.ProductSize {
	out := make([]models.ProductSize, len(sizes))
	for i, s := range sizes {
		s = s.Clone()
		if s.LocationQty != nil {
			for loc, q := range s.LocationQty {
				if q < 0 {
					s.LocationQty[loc] = 0
				}
			}
			s.Quantity = Sum(s.LocationQty)
		} else if s.Quantity < 0 {
			s.Quantity = 0
		}
		out[i] = s
	}
	return out
}

// Sum adds up the per-location quantities.
func Sum(m map[string]int) int {
	total := 0
	for _, q := range m {
		total = addSaturating(total, q)
	}
	return total
}

// FindSize returns the size entry with the given label.
func FindSize(p models.Product, size string) (models.ProductSize, bool) {
	idx := sizeIndex(p.Sizes, size)
	if idx < 0 {
		return models.ProductSize{}, false
	}
	return p.Sizes[idx], true
}

func sizeIndex(sizes []models.ProductSize, size string) int {
	for i, s := range sizes {
		if s.Size == size {
			return i
		}
	}
	return -1
}

// clampAdd never goes below zero and saturates at math.MaxInt.
func clampAdd(cur, delta int) int {
	if v := addSaturating(cur, delta); v > 0 {
		return v
	}
	return 0
}

func addSaturating(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
