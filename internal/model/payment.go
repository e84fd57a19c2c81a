package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 支付网关
const (
	GatewaySSLCommerz = "sslcommerz"
	GatewayCOD        = "cod"
)

// 支付流水状态
const (
	TxnStatusInitiated = "initiated"
	TxnStatusSuccess   = "success"
	TxnStatusFailed    = "failed"
	TxnStatusCancelled = "cancelled"
	TxnStatusValidated = "validated"
)

// PaymentTransaction 支付流水
type PaymentTransaction struct {
	BaseModel
	TranID           string          `gorm:"size:64;uniqueIndex;not null" json:"tran_id"`
	OrderID          int64           `gorm:"index;not null" json:"order_id"`
	EMIApplicationID *int64          `gorm:"column:emi_application_id;index" json:"emi_application_id,omitempty"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null;default:BDT" json:"currency"`
	Gateway          string          `gorm:"size:20;not null" json:"gateway"`
	Status           string          `gorm:"size:20;index;not null" json:"status"`

	// 网关回传
	ValID           string            `gorm:"size:100" json:"val_id,omitempty"`
	BankTranID      string            `gorm:"size:100" json:"bank_tran_id,omitempty"`
	CardType        string            `gorm:"size:50" json:"card_type,omitempty"`
	IsEMI           bool              `gorm:"column:is_emi" json:"is_emi"`
	EMIInstallments int               `gorm:"column:emi_installments" json:"emi_installments,omitempty"`
	GatewayURL      string            `gorm:"size:500" json:"gateway_url,omitempty"`
	RawResponse     datatypes.JSONMap `json:"-"`
	ValidatedAt     *time.Time        `json:"validated_at,omitempty"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }
