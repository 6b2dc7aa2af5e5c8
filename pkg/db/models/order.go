package models

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Order is created once per checkout; afterwards only Status and PaymentID change.
type Order struct {
	ID             uint                `gorm:"column:id;primaryKey;autoIncrement"`
	GatewayOrderID *string             `gorm:"column:gateway_order_id;uniqueIndex"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	Status         enums.OrderStatus   `gorm:"column:status;type:varchar(32);not null;default:'Created'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:varchar(16);not null;default:'online'"`
	Address        string              `gorm:"column:address;type:text;not null"`
	CustomerName   string              `gorm:"column:customer_name;not null"`
	CustomerPhone  string              `gorm:"column:customer_phone;not null"`
	PaymentID      *string             `gorm:"column:payment_id"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Location       *OrderLocation      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots the product name and price at checkout time.
type OrderItem struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     uint            `gorm:"column:order_id;not null;index"`
	ProductID   uint            `gorm:"column:product_id;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null;check:quantity > 0"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
}

// LineTotal returns quantity * price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLocation is the single tracking row of an order.
type OrderLocation struct {
	ID        uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   uint                 `gorm:"column:order_id;not null;uniqueIndex"`
	Latitude  *float64             `gorm:"column:latitude"`
	Longitude *float64             `gorm:"column:longitude"`
	Status    enums.DeliveryStatus `gorm:"column:status;type:varchar(32);not null;default:'Preparing'"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
