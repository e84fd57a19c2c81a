package dto

import "github.com/shopspring/decimal"

// UpdateSettingsRequest 更新站点设置（字段为空表示不修改）
type UpdateSettingsRequest struct {
	SiteName                *string          `json:"site_name" binding:"omitempty,max=100"`
	SupportPhone            *string          `json:"support_phone" binding:"omitempty,bdphone"`
	SupportEmail            *string          `json:"support_email" binding:"omitempty,email"`
	FreeShippingThreshold   *decimal.Decimal `json:"free_shipping_threshold"`
	ClearFreeShipping       bool             `json:"clear_free_shipping"`
	DefaultCommissionRate   *decimal.Decimal `json:"default_commission_rate"`
	CODEnabled              *bool            `json:"cod_enabled"`
	EMIEnabled              *bool            `json:"emi_enabled"`
	MinEMIAmount            *decimal.Decimal `json:"min_emi_amount"`
	SMSNotificationsEnabled *bool            `json:"sms_notifications_enabled"`
	MaintenanceMode         *bool            `json:"maintenance_mode"`
}
