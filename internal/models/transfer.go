package models

import (
	"time"

	"gorm.io/datatypes"
)

type TransferItem struct {
	ProductID uint   `json:"productId"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

// Transfer records a stock movement between two locations. Never updated.
type Transfer struct {
	ID       uint                              `gorm:"primaryKey" json:"id"`
	Date     time.Time                         `gorm:"index;not null" json:"date"`
	From     string                            `gorm:"column:from_location;size:64;not null" json:"from"`
	To       string                            `gorm:"column:to_location;size:64;not null" json:"to"`
	Items    datatypes.JSONSlice[TransferItem] `json:"items"`
	UserName string                            `gorm:"size:100" json:"user"`
}
