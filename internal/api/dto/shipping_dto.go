package dto

import "github.com/shopspring/decimal"

// ShippingQuoteRequest 运费查询
type ShippingQuoteRequest struct {
	City     string `form:"city" binding:"required"`
	Weight   string `form:"weight"`   // kg
	Subtotal string `form:"subtotal"` // 商品金额，用于包邮判断
	MethodID int64  `form:"method_id"`
}

// ShippingQuote 单个配送方式报价
type ShippingQuote struct {
	ZoneID           int64           `json:"zone_id"`
	ZoneName         string          `json:"zone_name"`
	MethodID         int64           `json:"method_id"`
	MethodName       string          `json:"method_name"`
	MethodCode       string          `json:"method_code"`
	Cost             decimal.Decimal `json:"cost"`
	Free             bool            `json:"free"`
	EstimatedDaysMin int             `json:"estimated_days_min"`
	EstimatedDaysMax int             `json:"estimated_days_max"`
}

// ShippingZoneRequest 配送区域
type ShippingZoneRequest struct {
	Name      string   `json:"name" binding:"required,max=100"`
	Cities    []string `json:"cities" binding:"required,min=1,dive,required,max=100"`
	IsDefault bool     `json:"is_default"`
	IsActive  *bool    `json:"is_active"`
}

// ShippingMethodRequest 配送方式
type ShippingMethodRequest struct {
	Name             string `json:"name" binding:"required,max=100"`
	Code             string `json:"code" binding:"required,max=50"`
	EstimatedDaysMin int    `json:"estimated_days_min" binding:"min=0"`
	EstimatedDaysMax int    `json:"estimated_days_max" binding:"min=0,gtefield=EstimatedDaysMin"`
	IsActive         *bool  `json:"is_active"`
}

// ShippingRateRequest 运费
type ShippingRateRequest struct {
	ZoneID      int64            `json:"zone_id" binding:"required"`
	MethodID    int64            `json:"method_id" binding:"required"`
	RateType    string           `json:"rate_type" binding:"required,oneof=flat per_kg"`
	Amount      decimal.Decimal  `json:"amount"`
	PerKgAmount decimal.Decimal  `json:"per_kg_amount"`
	BaseWeight  decimal.Decimal  `json:"base_weight"`
	FreeAbove   *decimal.Decimal `json:"free_above"`
}
