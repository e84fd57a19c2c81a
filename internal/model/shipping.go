package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 运费计算方式
const (
	RateTypeFlat  = "flat"
	RateTypePerKg = "per_kg"
)

// ShippingZone 配送区域，Cities 为城市别名列表
type ShippingZone struct {
	BaseModel
	Name      string                      `gorm:"size:100;not null" json:"name"`
	Cities    datatypes.JSONSlice[string] `json:"cities"`
	IsDefault bool                        `gorm:"index" json:"is_default"`
	IsActive  bool                        `gorm:"index" json:"is_active"`
}

func (ShippingZone) TableName() string { return "shipping_zones" }

// ShippingMethod 配送方式（标准 / 加急）
type ShippingMethod struct {
	BaseModel
	Name             string `gorm:"size:100;not null" json:"name"`
	Code             string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	EstimatedDaysMin int    `json:"estimated_days_min"`
	EstimatedDaysMax int    `json:"estimated_days_max"`
	IsActive         bool   `gorm:"index" json:"is_active"`
}

func (ShippingMethod) TableName() string { return "shipping_methods" }

// ShippingRate 区域 × 配送方式 的运费
type ShippingRate struct {
	PlainModel
	AuditFields
	ZoneID      int64               `gorm:"uniqueIndex:idx_zone_method;not null" json:"zone_id"`
	MethodID    int64               `gorm:"uniqueIndex:idx_zone_method;not null" json:"method_id"`
	RateType    string              `gorm:"size:10;not null" json:"rate_type"`
	Amount      decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	PerKgAmount decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"per_kg_amount"`
	BaseWeight  decimal.Decimal     `gorm:"type:decimal(8,3);not null;default:0" json:"base_weight"`
	FreeAbove   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"free_above"`

	Method *ShippingMethod `gorm:"foreignKey:MethodID" json:"method,omitempty"`
}

func (ShippingRate) TableName() string { return "shipping_rates" }
