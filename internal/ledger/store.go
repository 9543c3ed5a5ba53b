package ledger

import (
	"context"

	"doka-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore persists the catalog in the products table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpsertStock writes sizes and the legacy stock map for every update in one
// transaction. Only those two columns are touched.
func (s *GormStore) UpsertStock(ctx context.Context, updates ...StockUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&models.Product{}).
				Where("id = ?", u.ProductID).
				Updates(map[string]interface{}{
					"sizes": datatypes.JSONSlice[models.ProductSize](u.Sizes),
					"stock": datatypes.NewJSONType(u.Stock),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrProductNotFound
			}
		}
		return nil
	})
}

func (s *GormStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) SaveProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) DeleteProduct(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
