package requests

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// SubmitInput is a customer's interest in an out of stock product.
type SubmitInput struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required"`
	ProductID uint   `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1"`
}

// RequestDTO is the vendor-facing view of a request.
type RequestDTO struct {
	ID            uint                `json:"id"`
	CustomerEmail string              `json:"customer_email"`
	CustomerName  string              `json:"customer_name"`
	ProductID     uint                `json:"product_id"`
	ProductName   string              `json:"product_name"`
	Quantity      int                 `json:"quantity"`
	Status        enums.RequestStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func fromModel(m models.CustomerRequest) RequestDTO {
	return RequestDTO{
		ID:            m.ID,
		CustomerEmail: m.CustomerEmail,
		CustomerName:  m.CustomerName,
		ProductID:     m.ProductID,
		ProductName:   m.ProductName,
		Quantity:      m.Quantity,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
	}
}
