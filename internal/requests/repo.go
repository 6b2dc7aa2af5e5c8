package requests

import (
	"context"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists back-order customer requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.CustomerRequest) error
	FindByID(ctx context.Context, id uint) (*models.CustomerRequest, error)
	ListByStatus(ctx context.Context, status enums.RequestStatus) ([]models.CustomerRequest, error)
	TransitionStatus(ctx context.Context, id uint, from, to enums.RequestStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a requests repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.CustomerRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.CustomerRequest, error) {
	var req models.CustomerRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.RequestStatus) ([]models.CustomerRequest, error) {
	var rows []models.CustomerRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// TransitionStatus moves the request from -> to and reports whether a row changed.
func (r *repository) TransitionStatus(ctx context.Context, id uint, from, to enums.RequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CustomerRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
