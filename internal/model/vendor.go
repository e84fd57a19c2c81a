package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 商家状态
const (
	VendorStatusPending   = "pending"
	VendorStatusApproved  = "approved"
	VendorStatusSuspended = "suspended"
)

// VendorProfile 商家资料，每个用户最多一个
type VendorProfile struct {
	BaseModel
	UserID         int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	ShopName       string          `gorm:"size:150;not null" json:"shop_name"`
	Slug           string          `gorm:"size:170;uniqueIndex;not null" json:"slug"`
	Phone          string          `gorm:"size:20" json:"phone"`
	Email          string          `gorm:"size:100" json:"email"`
	Address        string          `gorm:"size:500" json:"address"`
	LogoURL        string          `gorm:"size:500" json:"logo_url"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"` // 百分比
	Status         string          `gorm:"size:20;index;not null" json:"status"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	Balance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
}

func (VendorProfile) TableName() string { return "vendor_profiles" }
