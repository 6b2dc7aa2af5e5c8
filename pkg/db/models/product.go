package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is only mutated through the inventory ledger.
type Product struct {
	ID        uint            `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock     int             `gorm:"column:stock;not null;default:0;check:stock >= 0"`
	Category  string          `gorm:"column:category;not null"`
	Unit      string          `gorm:"column:unit;not null;default:'1 kg'"`
	Image     *string         `gorm:"column:image"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
