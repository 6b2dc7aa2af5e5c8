package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/inventory"
)

// defaultQuantity applies when a line omits quantity.
const defaultQuantity = 1

// LineRequest is the body of add and remove.
type LineRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  *int `json:"quantity"`
}

func (r LineRequest) quantity() int {
	if r.Quantity == nil {
		return defaultQuantity
	}
	return *r.Quantity
}

// BulkAddRequest carries several lines reserved independently. Items stay raw
// so one malformed line is reported on its own instead of failing the batch.
type BulkAddRequest struct {
	Items []json.RawMessage `json:"items" validate:"required,min=1,max=100"`
}

// bulkItem accepts numbers or numeric strings; anything else marks the line
// malformed.
type bulkItem struct {
	ProductID any `json:"product_id"`
	Quantity  any `json:"quantity"`
}

func toLines(items []json.RawMessage) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, raw := range items {
		lines = append(lines, parseLine(raw))
	}
	return lines
}

func parseLine(raw json.RawMessage) inventory.Line {
	var item bulkItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return inventory.Line{Malformed: true}
	}

	var line inventory.Line
	if item.ProductID != nil {
		id, ok := wholeNumber(item.ProductID)
		if !ok || id < 0 || id > math.MaxUint32 {
			return inventory.Line{Malformed: true}
		}
		line.ProductID = uint(id)
	}

	line.Quantity = defaultQuantity
	if item.Quantity != nil {
		qty, ok := wholeNumber(item.Quantity)
		if !ok || qty < math.MinInt32 || qty > math.MaxInt32 {
			return inventory.Line{Malformed: true}
		}
		line.Quantity = int(qty)
	}
	return line
}

func wholeNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

type lineResponse struct {
	Message string                     `json:"message"`
	Product *inventory.ProductSnapshot `json:"product"`
}
