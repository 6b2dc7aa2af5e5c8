package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle status stored on orders.status.
type OrderStatus string

const (
	OrderStatusCreated       OrderStatus = "Created"
	OrderStatusPaid          OrderStatus = "Paid"
	OrderStatusPaymentFailed OrderStatus = "Payment Failed"
	OrderStatusDispatched    OrderStatus = "Dispatched"
	OrderStatusDelivered     OrderStatus = "Delivered"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusPaymentFailed,
	OrderStatusDispatched,
	OrderStatusDelivered,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:    {OrderStatusPaid, OrderStatusPaymentFailed},
	OrderStatusPaid:       {OrderStatusDispatched, OrderStatusDelivered},
	OrderStatusDispatched: {OrderStatusDelivered},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// IsSettled reports whether payment has been confirmed for the order.
func (s OrderStatus) IsSettled() bool {
	switch s {
	case OrderStatusPaid, OrderStatusDispatched, OrderStatusDelivered:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus, ignoring case.
func ParseOrderStatus(value string) (OrderStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validOrderStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
