package models

import (
	"time"

	"github.com/freshmarket/grocery-backend/pkg/enums"
)

// VendorVerification gates vendor logins behind an admin decision.
type VendorVerification struct {
	ID          uint                     `gorm:"column:id;primaryKey;autoIncrement"`
	VendorEmail string                   `gorm:"column:vendor_email;not null;uniqueIndex"`
	VendorName  string                   `gorm:"column:vendor_name;not null"`
	StoreName   string                   `gorm:"column:store_name;not null;default:''"`
	OwnerName   string                   `gorm:"column:owner_name;not null;default:''"`
	Phone       string                   `gorm:"column:phone;not null;default:''"`
	Status      enums.VerificationStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	AdminNotes  *string                  `gorm:"column:admin_notes;type:text"`
	ReviewedAt  *time.Time               `gorm:"column:reviewed_at"`
	ReviewedBy  *string                  `gorm:"column:reviewed_by"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
}
