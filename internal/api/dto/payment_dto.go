package dto

import "github.com/shopspring/decimal"

// InitiatePaymentResponse 发起支付
type InitiatePaymentResponse struct {
	TranID     string          `json:"tran_id"`
	GatewayURL string          `json:"gateway_url"`
	Amount     decimal.Decimal `json:"amount"`
}

// SSLCommerzCallback SSLCOMMERZ IPN / 回跳表单
type SSLCommerzCallback struct {
	TranID     string `form:"tran_id" binding:"required"`
	ValID      string `form:"val_id"`
	Amount     string `form:"amount"`
	Currency   string `form:"currency"`
	Status     string `form:"status"`
	CardType   string `form:"card_type"`
	BankTranID string `form:"bank_tran_id"`
	Error      string `form:"error"`
}

// PaymentResult 回调处理结果
type PaymentResult struct {
	TranID  string `json:"tran_id"`
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}
