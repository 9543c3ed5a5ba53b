package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SaleItem struct {
	ProductID uint            `json:"productId"`
	Model     string          `json:"model"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Barcode   string          `json:"barcode"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// Sale is append-only: once created it is never updated.
type Sale struct {
	ID       uint                          `gorm:"primaryKey" json:"id"`
	Date     time.Time                     `gorm:"index;not null" json:"date"`
	Items    datatypes.JSONSlice[SaleItem] `json:"items"`
	Subtotal decimal.Decimal               `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount decimal.Decimal               `gorm:"type:numeric(12,2);not null" json:"discount"`
	Total    decimal.Decimal               `gorm:"type:numeric(12,2);not null" json:"total"`
	Location string                        `gorm:"size:64;index;not null" json:"location"`
	UserName string                        `gorm:"size:100" json:"user"`
}

func (s Sale) ItemCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Qty
	}
	return n
}
