package models

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// CustomerRequest records back-order interest for an out of stock product.
type CustomerRequest struct {
	ID            uint                `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerEmail string              `gorm:"column:customer_email;not null"`
	CustomerName  string              `gorm:"column:customer_name;not null"`
	ProductID     uint                `gorm:"column:product_id;not null;index"`
	ProductName   string              `gorm:"column:product_name;not null"`
	Quantity      int                 `gorm:"column:quantity;not null;default:1"`
	Status        enums.RequestStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
