package models

import "time"

type LocationType string

const (
	LocationWarehouse LocationType = "warehouse"
	LocationShop      LocationType = "shop"
)

func (t LocationType) Valid() bool {
	return t == LocationWarehouse || t == LocationShop
}

// Location is a physical place holding its own stock (warehouse or shop). The
// ID is stable: "main", "shop1" or a generated "loc_<uuid>" for new places.
type Location struct {
	ID        string       `gorm:"primaryKey;size:64" json:"id"`
	Name      string       `gorm:"size:100;not null" json:"name"`
	Type      LocationType `gorm:"size:20;not null" json:"type"`
	Order     int          `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time    `json:"-"`
	UpdatedAt time.Time    `json:"-"`
}
