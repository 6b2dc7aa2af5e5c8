package inventory

import (
	"context"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"gorm.io/gorm"
)

const (
	decrementStockSQL = "UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?"
	incrementStockSQL = "UPDATE products SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
)

// Repository defines persistence operations over product stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id uint) (*models.Product, error)
	FindProducts(ctx context.Context, ids []uint) ([]models.Product, error)
	DecrementStock(ctx context.Context, id uint, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uint, qty int) (bool, error)
	ListBelowThreshold(ctx context.Context, threshold int) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock removes qty units only when enough stock remains. The boolean
// reports whether a row was updated.
func (r *repository) DecrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(decrementStockSQL, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(incrementStockSQL, qty, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListBelowThreshold(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("stock < ?", threshold).
		Order("stock ASC").
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
