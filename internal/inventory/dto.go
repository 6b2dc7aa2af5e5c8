package inventory

import (
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product view returned after a stock mutation.
type ProductSnapshot struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit"`
	Category string          `json:"category"`
	Stock    int             `json:"stock"`
	Image    *string         `json:"image"`
}

func snapshotFromModel(p *models.Product) ProductSnapshot {
	return ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Unit:     p.Unit,
		Category: p.Category,
		Stock:    p.Stock,
		Image:    p.Image,
	}
}

// Line is one requested (product, quantity) pair of a bulk reservation.
type Line struct {
	ProductID uint
	Quantity  int
	// Malformed marks a line whose fields could not be read as integers.
	Malformed bool
}

// LineResult describes a reserved line.
type LineResult struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
}

// BulkResult summarises a bulk reservation. Lines that failed appear only in Errors.
type BulkResult struct {
	ItemsAdded     int          `json:"items_added"`
	Results        []LineResult `json:"results"`
	Errors         []string     `json:"errors,omitempty"`
	PartialSuccess bool         `json:"partial_success"`
}

// Alert types and priorities reported for low inventory.
const (
	AlertOutOfStock = "out_of_stock"
	AlertLowStock   = "low_stock"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// StockAlert flags a product whose stock fell under the configured threshold.
type StockAlert struct {
	ID          string `json:"id"`
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Message     string `json:"message"`
	Stock       int    `json:"stock"`
}
