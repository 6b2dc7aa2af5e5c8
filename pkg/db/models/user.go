package models

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID                 uint           `gorm:"column:id;primaryKey;autoIncrement"`
	Email              string         `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash       string         `gorm:"column:password_hash;not null"`
	Name               string         `gorm:"column:name;not null;default:''"`
	Role               enums.UserRole `gorm:"column:role;type:varchar(16);not null;default:'customer'"`
	IsActive           bool           `gorm:"column:is_active;not null;default:true"`
	MustRotatePassword bool           `gorm:"column:must_rotate_password;not null;default:false"`
	LastLoginAt        *time.Time     `gorm:"column:last_login_at"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
