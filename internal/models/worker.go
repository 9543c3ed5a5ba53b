package models

import (
	"time"

	"gorm.io/datatypes"
)

type Worker struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`

	Shifts []WorkerShift `gorm:"foreignKey:WorkerID;constraint:OnDelete:CASCADE" json:"shifts,omitempty"`
}

type ShiftPause struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// WorkerShift is open while EndTime is nil. TotalWorkTime is in minutes.
type WorkerShift struct {
	ID            uint                            `gorm:"primaryKey" json:"id"`
	WorkerID      uint                            `gorm:"index;not null" json:"workerId"`
	StartTime     time.Time                       `gorm:"not null" json:"startTime"`
	EndTime       *time.Time                      `gorm:"index" json:"endTime,omitempty"`
	Pauses        datatypes.JSONSlice[ShiftPause] `json:"pauses"`
	TotalWorkTime int                             `gorm:"not null;default:0" json:"totalWorkTime"`
}

func (s WorkerShift) IsOpen() bool {
	return s.EndTime == nil
}

func (s WorkerShift) IsPaused() bool {
	if len(s.Pauses) == 0 {
		return false
	}
	return s.Pauses[len(s.Pauses)-1].End == nil
}
