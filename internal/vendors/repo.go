package vendors

import (
	"context"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/freshmarket/grocery-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository persists vendor verification requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, verification *models.VendorVerification) error
	FindByID(ctx context.Context, id uint) (*models.VendorVerification, error)
	FindByEmail(ctx context.Context, email string) (*models.VendorVerification, error)
	Save(ctx context.Context, verification *models.VendorVerification) error
	List(ctx context.Context, params listParams) ([]models.VendorVerification, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

type listParams struct {
	Status *enums.VerificationStatus
	Limit  int
	Cursor *pagination.Cursor
}

// NewRepository returns a verification repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, verification *models.VendorVerification) error {
	return r.db.WithContext(ctx).Create(verification).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.VendorVerification, error) {
	var verification models.VendorVerification
	if err := r.db.WithContext(ctx).First(&verification, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &verification, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.VendorVerification, error) {
	var verification models.VendorVerification
	if err := r.db.WithContext(ctx).Where("vendor_email = ?", email).First(&verification).Error; err != nil {
		return nil, err
	}
	return &verification, nil
}

func (r *repository) Save(ctx context.Context, verification *models.VendorVerification) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorVerification{}).
		Where("id = ?", verification.ID).
		Updates(map[string]any{
			"status":      verification.Status,
			"admin_notes": verification.AdminNotes,
			"reviewed_at": verification.ReviewedAt,
			"reviewed_by": verification.ReviewedBy,
		}).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.VendorVerification, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.VendorVerification{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var rows []models.VendorVerification
	if err := query.Scopes(pagination.Scope(params.Cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(v models.VendorVerification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})
	return page, next, nil
}
