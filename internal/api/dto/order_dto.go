package dto

import (
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
)

// CheckoutRequest 下单请求
type CheckoutRequest struct {
	ShippingName     string          `json:"shipping_name" binding:"required,max=100"`
	ShippingPhone    string          `json:"shipping_phone" binding:"required,bdphone"`
	ShippingAddress  string          `json:"shipping_address" binding:"required,max=500"`
	ShippingCity     string          `json:"shipping_city" binding:"required,max=100"`
	ShippingMethodID *int64          `json:"shipping_method_id"`
	PaymentMethod    string          `json:"payment_method" binding:"required,oneof=cod online emi"`
	EMIPlanID        *int64          `json:"emi_plan_id"`
	DownPayment      decimal.Decimal `json:"down_payment"`
	Note             string          `json:"note" binding:"max=500"`
}

// CheckoutResponse 下单响应
type CheckoutResponse struct {
	Order          *model.Order          `json:"order"`
	EMIApplication *model.EMIApplication `json:"emi_application,omitempty"`
	// PaymentRequired 需要跳转在线支付
	PaymentRequired bool `json:"payment_required"`
}

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	StartDate     string `form:"start_date"` // 2026-01-02
	EndDate       string `form:"end_date"`
	Keyword       string `form:"keyword"` // 订单号 / 手机号
	PageQuery
}

// UpdateOrderStatusRequest 修改订单状态（管理员）
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	Reason string `json:"reason" binding:"max=255"`
}

// CancelOrderRequest 取消订单
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// OrderStatsRequest 订单统计请求
type OrderStatsRequest struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}
