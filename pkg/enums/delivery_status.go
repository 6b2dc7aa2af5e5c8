package enums

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the courier-facing status kept on order_locations.
// Values are ordered; a location only ever moves forward.
type DeliveryStatus string

const (
	DeliveryStatusPreparing      DeliveryStatus = "Preparing"
	DeliveryStatusDispatched     DeliveryStatus = "Dispatched"
	DeliveryStatusOutForDelivery DeliveryStatus = "Out for delivery"
	DeliveryStatusDelivered      DeliveryStatus = "Delivered"
)

var deliveryStatusOrder = []DeliveryStatus{
	DeliveryStatusPreparing,
	DeliveryStatusDispatched,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	return s.rank() >= 0
}

func (s DeliveryStatus) rank() int {
	for i, candidate := range deliveryStatusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanAdvanceTo reports whether next is the same status or a later one.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to >= from
}

// OrderStatus returns the order status implied by reaching s, if any.
func (s DeliveryStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case DeliveryStatusDispatched:
		return OrderStatusDispatched, true
	case DeliveryStatusDelivered:
		return OrderStatusDelivered, true
	}
	return "", false
}

// ParseDeliveryStatus accepts the display form ("Out for delivery") as well as
// snake or kebab case variants, case-insensitively.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	for _, candidate := range deliveryStatusOrder {
		if strings.ToLower(string(candidate)) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
