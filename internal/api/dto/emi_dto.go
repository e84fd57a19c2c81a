package dto

import "github.com/shopspring/decimal"

// EMIPlanRequest 创建 / 更新分期方案
type EMIPlanRequest struct {
	Name                 string           `json:"name" binding:"required,max=100"`
	BankName             string           `json:"bank_name" binding:"required,max=100"`
	Months               int              `json:"months" binding:"required,min=1,max=60"`
	InterestRate         decimal.Decimal  `json:"interest_rate"` // 年化百分比
	ProcessingFeePercent decimal.Decimal  `json:"processing_fee_percent"`
	MinAmount            decimal.Decimal  `json:"min_amount"`
	MaxAmount            *decimal.Decimal `json:"max_amount"`
	IsActive             *bool            `json:"is_active"`
}

// ListEMIPlansRequest 可用方案，amount 用于按金额过滤
type ListEMIPlansRequest struct {
	Amount string `form:"amount"`
}

// EMIQuoteRequest 试算
type EMIQuoteRequest struct {
	PlanID      int64           `json:"plan_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	DownPayment decimal.Decimal `json:"down_payment"`
}

// EMIApplyRequest 申请分期
type EMIApplyRequest struct {
	OrderID     int64           `json:"order_id" binding:"required"`
	PlanID      int64           `json:"plan_id" binding:"required"`
	DownPayment decimal.Decimal `json:"down_payment"`
}

// ListEMIApplicationsRequest 分期申请列表
type ListEMIApplicationsRequest struct {
	Status string `form:"status"`
	PageQuery
}

// RejectEMIRequest 拒绝申请
type RejectEMIRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// PayInstallmentRequest 还款
type PayInstallmentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}
