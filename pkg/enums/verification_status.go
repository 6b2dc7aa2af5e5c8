package enums

import (
	"fmt"
	"strings"
)

// VerificationStatus tracks an admin decision on a vendor signup.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
)

var validVerificationStatuses = []VerificationStatus{
	VerificationStatusPending,
	VerificationStatusApproved,
	VerificationStatusRejected,
}

// String implements fmt.Stringer.
func (v VerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationStatus.
func (v VerificationStatus) IsValid() bool {
	for _, candidate := range validVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsResolved reports whether an admin already decided.
func (v VerificationStatus) IsResolved() bool {
	return v == VerificationStatusApproved || v == VerificationStatusRejected
}

// ParseVerificationStatus converts raw input into a VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validVerificationStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification status %q", value)
}
