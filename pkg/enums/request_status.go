package enums

import (
	"fmt"
	"strings"
)

// RequestStatus is the lifecycle of a back-order customer request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusNotified  RequestStatus = "notified"
	RequestStatusFulfilled RequestStatus = "fulfilled"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusNotified,
	RequestStatusFulfilled,
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:  {RequestStatusNotified, RequestStatusFulfilled},
	RequestStatusNotified: {RequestStatusFulfilled},
}

// String implements fmt.Stringer.
func (r RequestStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestStatus.
func (r RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of r.
func (r RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, candidate := range requestTransitions[r] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRequestStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
