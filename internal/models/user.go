package models

import "time"

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleWorker UserRole = "worker"
)

// User is an owner-level account. The primary owner is seeded on first start;
// further admin accounts share the owner role.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null"`
	Username     string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	IsPrimary    bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
