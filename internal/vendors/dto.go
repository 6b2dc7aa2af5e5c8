package vendors

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// StatusNotFound is reported by Status when no request exists for an email.
const StatusNotFound = "not_found"

// VerificationDTO is the admin-facing view of a verification request.
type VerificationDTO struct {
	ID          uint                     `json:"id"`
	VendorEmail string                   `json:"vendor_email"`
	VendorName  string                   `json:"vendor_name"`
	StoreName   string                   `json:"store_name"`
	OwnerName   string                   `json:"owner_name"`
	Phone       string                   `json:"phone"`
	Status      enums.VerificationStatus `json:"status"`
	AdminNotes  *string                  `json:"admin_notes"`
	CreatedAt   time.Time                `json:"created_at"`
	ReviewedAt  *time.Time               `json:"reviewed_at"`
	ReviewedBy  *string                  `json:"reviewed_by"`
}

// ListResult is one page of verification requests.
type ListResult struct {
	Verifications []VerificationDTO `json:"verifications"`
	NextCursor    string            `json:"next_cursor,omitempty"`
}

// ListInput filters the admin listing. An empty Status lists everything.
type ListInput struct {
	Status string
	Limit  int
	Cursor string
}

// ResolveInput is an admin decision on a pending request.
type ResolveInput struct {
	Status     string
	AdminNotes string
	Reviewer   string
}

// ResolveResult carries the updated request and, when an approval created the
// vendor account, the one-time temporary password.
type ResolveResult struct {
	Verification      VerificationDTO `json:"verification"`
	Message           string          `json:"message"`
	TemporaryPassword string          `json:"temporary_password,omitempty"`
}

// StatusView is the public status lookup returned to vendors.
type StatusView struct {
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// FromModel maps a persisted request into its DTO.
func FromModel(v models.VendorVerification) VerificationDTO {
	return VerificationDTO{
		ID:          v.ID,
		VendorEmail: v.VendorEmail,
		VendorName:  v.VendorName,
		StoreName:   v.StoreName,
		OwnerName:   v.OwnerName,
		Phone:       v.Phone,
		Status:      v.Status,
		AdminNotes:  v.AdminNotes,
		CreatedAt:   v.CreatedAt,
		ReviewedAt:  v.ReviewedAt,
		ReviewedBy:  v.ReviewedBy,
	}
}
