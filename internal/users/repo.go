package users

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
)

// Repository persists accounts. Emails are always matched in normalized form.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail returns gorm.ErrRecordNotFound when no account matches.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail reports whether an account already uses email.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", NormalizeEmail(email)).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at.UTC()).Error
}

// SetPassword stores a new hash. mustRotate marks admin-issued temporary
// passwords.
func (r *Repository) SetPassword(ctx context.Context, id uint, hash string, mustRotate bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "must_rotate_password": mustRotate}).Error
}
