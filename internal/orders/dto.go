package orders

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// CreateOrderInput carries a checkout request. Cart maps product ids (as sent
// by the storefront) to quantities.
type CreateOrderInput struct {
	Cart          map[string]int
	Address       string
	CustomerName  string
	CustomerPhone string
	PaymentMethod string
	// ClientAmount is advisory only.
	ClientAmount *decimal.Decimal
}

// CreateOrderResult is returned to the storefront after checkout.
type CreateOrderResult struct {
	OrderRef        string              `json:"orderId"`
	InternalOrderID uint                `json:"internalOrderId"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	Status          enums.OrderStatus   `json:"status"`
	KeyID           string              `json:"keyId,omitempty"`
	TestMode        bool                `json:"testMode,omitempty"`
}

// OwnershipCheck optionally restricts GetOrder to the customer who placed it.
type OwnershipCheck struct {
	Name  string
	Phone string
}

// ItemView is a read-only order item snapshot.
type ItemView struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LocationView is the tracking row attached to an order.
type LocationView struct {
	Latitude  *float64             `json:"latitude"`
	Longitude *float64             `json:"longitude"`
	Status    enums.DeliveryStatus `json:"status"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// OrderDetail is the customer-facing order view.
type OrderDetail struct {
	ID             uint                `json:"id"`
	GatewayOrderID *string             `json:"gateway_order_id"`
	Total          decimal.Decimal     `json:"total"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Address        string              `json:"address"`
	CustomerName   string              `json:"customer_name"`
	CustomerPhone  string              `json:"customer_phone"`
	PaymentID      *string             `json:"payment_id"`
	Items          []ItemView          `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
	Location       *LocationView       `json:"location"`
}

func detailFromModel(o *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:             o.ID,
		GatewayOrderID: o.GatewayOrderID,
		Total:          o.Total,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		Address:        o.Address,
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		PaymentID:      o.PaymentID,
		Items:          make([]ItemView, 0, len(o.Items)),
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range o.Items {
		detail.Items = append(detail.Items, ItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	if o.Location != nil {
		detail.Location = LocationFromModel(o.Location)
	}
	return detail
}

// LocationFromModel maps a tracking row to its view.
func LocationFromModel(loc *models.OrderLocation) *LocationView {
	return &LocationView{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Status:    loc.Status,
		UpdatedAt: loc.UpdatedAt,
	}
}
