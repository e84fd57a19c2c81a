package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 订单状态常量 ====================

const (
	OrderStatusPending    = "pending"    // 待确认
	OrderStatusConfirmed  = "confirmed"  // 已确认（已付款或货到付款已确认）
	OrderStatusProcessing = "processing" // 备货中
	OrderStatusShipped    = "shipped"    // 已发货
	OrderStatusDelivered  = "delivered"  // 已签收
	OrderStatusCancelled  = "cancelled"  // 已取消
)

// 支付方式
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
	PaymentMethodEMI    = "emi"
)

// 支付状态
const (
	PaymentStatusUnpaid        = "unpaid"
	PaymentStatusPaid          = "paid"
	PaymentStatusPartiallyPaid = "partially_paid"
	PaymentStatusRefunded      = "refunded"
	PaymentStatusFailed        = "failed"
)

// orderTransitions 允许的状态流转
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition 判断订单状态能否从 from 变为 to
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus 是否为合法订单状态
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ==================== Order 订单主表 ====================

// Order 订单
type Order struct {
	BaseModel
	OrderNumber string `gorm:"size:20;uniqueIndex;not null" json:"order_number"`
	UserID      int64  `gorm:"index;not null" json:"user_id"`

	// 状态
	Status        string `gorm:"size:20;index;not null" json:"status"`
	PaymentMethod string `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus string `gorm:"size:20;index;not null" json:"payment_status"`

	// 金额
	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping_cost"`
	Discount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	// 收货信息
	ShippingName     string `gorm:"size:100" json:"shipping_name"`
	ShippingPhone    string `gorm:"size:20;index" json:"shipping_phone"`
	ShippingAddress  string `gorm:"size:500" json:"shipping_address"`
	ShippingCity     string `gorm:"size:100" json:"shipping_city"`
	ShippingMethodID *int64 `json:"shipping_method_id,omitempty"`
	ShippingZoneID   *int64 `json:"shipping_zone_id,omitempty"`

	Note         string     `gorm:"type:text" json:"note"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"size:255" json:"cancel_reason,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// ==================== OrderItem 订单明细 ====================

// OrderItem 订单明细，下单时快照商品信息与佣金
type OrderItem struct {
	PlainModel
	OrderID     int64  `gorm:"index;not null" json:"order_id"`
	ProductID   int64  `gorm:"index;not null" json:"product_id"`
	VendorID    *int64 `gorm:"index" json:"vendor_id,omitempty"`
	ProductName string `gorm:"size:255;not null" json:"product_name"`
	SKU         string `gorm:"column:sku;size:64" json:"sku"`

	UnitPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"commission_amount"`
}

func (OrderItem) TableName() string { return "order_items" }
