package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultAlertQty is the low-stock threshold used when a size has none.
const DefaultAlertQty = 3

// ProductSize is one size variant of a product. Quantity is the total across all
// locations and must equal the sum of LocationQty. A nil LocationQty marks a legacy
// record with no per-location breakdown.
type ProductSize struct {
	Size        string         `json:"size"`
	Barcode     string         `json:"barcode"`
	Quantity    int            `json:"quantity"`
	LocationQty map[string]int `json:"locationQty"`
	AlertQty    *int           `json:"alertQty,omitempty"`
}

func (s ProductSize) Threshold() int {
	if s.AlertQty != nil {
		return *s.AlertQty
	}
	return DefaultAlertQty
}

func (s ProductSize) IsLegacy() bool {
	return s.LocationQty == nil
}

// LocationStock maps location id to quantity.
type LocationStock map[string]int

type Product struct {
	ID         uint                              `gorm:"primaryKey" json:"id"`
	Model      string                            `gorm:"size:150;not null" json:"model"`
	Color      string                            `gorm:"size:60" json:"color"`
	Type       string                            `gorm:"size:60" json:"type"`
	CategoryID *uint                             `gorm:"index" json:"categoryId,omitempty"`
	Code       string                            `gorm:"size:60;index" json:"code"`
	Price      decimal.Decimal                   `gorm:"type:numeric(12,2);not null" json:"price"`
	Cost       decimal.Decimal                   `gorm:"type:numeric(12,2);not null" json:"cost"`
	Sizes      datatypes.JSONSlice[ProductSize]  `json:"sizes"`
	Stock      datatypes.JSONType[LocationStock] `json:"stock"` // legacy aggregate, not authoritative
	Photo      *string                           `gorm:"type:text" json:"photo"`
	CreatedAt  time.Time                         `json:"createdAt"`
	UpdatedAt  time.Time                         `json:"-"`
}

// Clone returns a deep copy so callers can transform it without touching the
// shared instance.
func (p Product) Clone() Product {
	out := p
	out.Sizes = make(datatypes.JSONSlice[ProductSize], len(p.Sizes))
	for i, s := range p.Sizes {
		out.Sizes[i] = s.Clone()
	}
	out.Stock = datatypes.NewJSONType(p.StockMap())
	return out
}

// StockMap returns a copy of the legacy per-location aggregate.
func (p Product) StockMap() LocationStock {
	src := p.Stock.Data()
	out := make(LocationStock, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (s ProductSize) Clone() ProductSize {
	out := s
	if s.LocationQty != nil {
		out.LocationQty = make(map[string]int, len(s.LocationQty))
		for k, v := range s.LocationQty {
			out.LocationQty[k] = v
		}
	}
	if s.AlertQty != nil {
		v := *s.AlertQty
		out.AlertQty = &v
	}
	return out
}
