package dto

import (
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
)

// VendorApplyRequest 申请入驻
type VendorApplyRequest struct {
	ShopName string `json:"shop_name" binding:"required,max=150"`
	Phone    string `json:"phone" binding:"omitempty,bdphone"`
	Email    string `json:"email" binding:"omitempty,email,max=100"`
	Address  string `json:"address" binding:"max=500"`
	LogoURL  string `json:"logo_url" binding:"omitempty,url,max=500"`
}

// VendorUpdateRequest 更新店铺资料
type VendorUpdateRequest struct {
	ShopName *string `json:"shop_name" binding:"omitempty,max=150"`
	Phone    *string `json:"phone" binding:"omitempty,bdphone"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	Address  *string `json:"address" binding:"omitempty,max=500"`
	LogoURL  *string `json:"logo_url" binding:"omitempty,url,max=500"`
}

// VendorApproveRequest 审核通过，可覆盖默认佣金比例
type VendorApproveRequest struct {
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

// ListVendorsRequest 商家列表
type ListVendorsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved suspended"`
	PageQuery
}

// VendorDashboard 商家看板
type VendorDashboard struct {
	Vendor         *model.VendorProfile `json:"vendor"`
	ProductCount   int64                `json:"product_count"`
	OrderItemCount int64                `json:"order_item_count"`
	GrossSales     decimal.Decimal      `json:"gross_sales"`
	Commission     decimal.Decimal      `json:"commission"`
	NetEarnings    decimal.Decimal      `json:"net_earnings"`
	Balance        decimal.Decimal      `json:"balance"`
}
