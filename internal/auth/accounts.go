package auth

import (
	"strings"

	"doka-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UsernameTaken reports whether username is used by any owner account or
// worker other than the excluded ones. Comparison is case-insensitive.
func UsernameTaken(db *gorm.DB, username string, excludeUserID, excludeWorkerID uint) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var users int64
	q := db.Model(&models.User{}).Where("LOWER(username) = ?", username)
	if excludeUserID != 0 {
		q = q.Where("id <> ?", excludeUserID)
	}
	if err := q.Count(&users).Error; err != nil {
		return false, err
	}
	if users > 0 {
		return true, nil
	}

	var workers int64
	q = db.Model(&models.Worker{}).Where("LOWER(username) = ?", username)
	if excludeWorkerID != 0 {
		q = q.Where("id <> ?", excludeWorkerID)
	}
	if err := q.Count(&workers).Error; err != nil {
		return false, err
	}
	return workers > 0, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
