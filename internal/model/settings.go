package model

import "github.com/shopspring/decimal"

// SiteSettingsID 站点设置单例 ID
const SiteSettingsID = 1

// SiteSettings 站点设置（单例，id=1）
type SiteSettings struct {
	PlainModel
	AuditFields
	SiteName                string              `gorm:"size:100" json:"site_name"`
	SupportPhone            string              `gorm:"size:20" json:"support_phone"`
	SupportEmail            string              `gorm:"size:100" json:"support_email"`
	FreeShippingThreshold   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"free_shipping_threshold"`
	DefaultCommissionRate   decimal.Decimal     `gorm:"type:decimal(5,2);not null" json:"default_commission_rate"`
	CODEnabled              bool                `gorm:"column:cod_enabled" json:"cod_enabled"`
	EMIEnabled              bool                `gorm:"column:emi_enabled" json:"emi_enabled"`
	MinEMIAmount            decimal.Decimal     `gorm:"column:min_emi_amount;type:decimal(12,2);not null" json:"min_emi_amount"`
	SMSNotificationsEnabled bool                `gorm:"column:sms_notifications_enabled" json:"sms_notifications_enabled"`
	MaintenanceMode         bool                `json:"maintenance_mode"`
}

func (SiteSettings) TableName() string { return "site_settings" }

// DefaultSiteSettings 首次访问时写入的默认设置
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		PlainModel:              PlainModel{ID: SiteSettingsID},
		SiteName:                "Phone Bay",
		DefaultCommissionRate:   decimal.NewFromInt(10),
		CODEnabled:              true,
		EMIEnabled:              true,
		MinEMIAmount:            decimal.NewFromInt(5000),
		SMSNotificationsEnabled: true,
	}
}
