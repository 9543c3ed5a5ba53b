package models

import (
	"time"

	"gorm.io/datatypes"
)

type Category struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"size:100;not null;unique" json:"name"`
	SizeOptions datatypes.JSONSlice[string] `json:"sizeOptions"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"-"`
}
