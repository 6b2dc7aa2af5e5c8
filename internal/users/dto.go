package users

import (
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                 uint           `json:"id"`
	Email              string         `json:"email"`
	Name               string         `json:"name"`
	Role               enums.UserRole `json:"role"`
	IsActive           bool           `json:"is_active"`
	MustRotatePassword bool           `json:"must_rotate_password"`
	LastLoginAt        *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email              string
	PasswordHash       string
	Name               string
	Role               enums.UserRole
	MustRotatePassword bool
	IsActive           *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		IsActive:           u.IsActive,
		MustRotatePassword: u.MustRotatePassword,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Email:              NormalizeEmail(c.Email),
		PasswordHash:       c.PasswordHash,
		Name:               strings.TrimSpace(c.Name),
		Role:               role,
		IsActive:           isActive,
		MustRotatePassword: c.MustRotatePassword,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
