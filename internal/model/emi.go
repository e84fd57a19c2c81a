package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EMI 申请状态
const (
	EMIStatusPending   = "pending"
	EMIStatusApproved  = "approved"
	EMIStatusRejected  = "rejected"
	EMIStatusActive    = "active"
	EMIStatusCompleted = "completed"
	EMIStatusDefaulted = "defaulted"
	EMIStatusCancelled = "cancelled"
)

// 分期状态
const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"
)

// EMIMaxMonths 最长分期月数
const EMIMaxMonths = 60

// EMIPlan 分期方案（按银行）
type EMIPlan struct {
	BaseModel
	AuditFields
	Name                 string              `gorm:"size:100;not null" json:"name"`
	BankName             string              `gorm:"size:100;not null" json:"bank_name"`
	Months               int                 `gorm:"not null" json:"months"`
	InterestRate         decimal.Decimal     `gorm:"type:decimal(5,2);not null" json:"interest_rate"` // 年化百分比
	ProcessingFeePercent decimal.Decimal     `gorm:"type:decimal(5,2);not null;default:0" json:"processing_fee_percent"`
	MinAmount            decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"min_amount"`
	MaxAmount            decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_amount"`
	IsActive             bool                `gorm:"index" json:"is_active"`
}

func (EMIPlan) TableName() string { return "emi_plans" }

// AcceptsAmount 金额是否在方案上下限内
func (p *EMIPlan) AcceptsAmount(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinAmount) {
		return false
	}
	if p.MaxAmount.Valid && amount.GreaterThan(p.MaxAmount.Decimal) {
		return false
	}
	return true
}

// EMIApplication 分期申请
type EMIApplication struct {
	BaseModel
	UserID  int64 `gorm:"index;not null" json:"user_id"`
	OrderID int64 `gorm:"index;not null" json:"order_id"`
	PlanID  int64 `gorm:"index;not null" json:"plan_id"`

	Principal          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal"`
	DownPayment        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"down_payment"`
	InterestRate       decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"interest_rate"`
	Months             int             `gorm:"not null" json:"months"`
	MonthlyInstallment decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monthly_installment"`
	TotalPayable       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_payable"`
	TotalInterest      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_interest"`
	ProcessingFee      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"processing_fee"`

	Status       string     `gorm:"size:20;index;not null" json:"status"`
	StartDate    time.Time  `json:"start_date"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectReason string     `gorm:"size:255" json:"reject_reason,omitempty"`

	Plan         *EMIPlan         `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Installments []EMIInstallment `gorm:"foreignKey:ApplicationID" json:"installments,omitempty"`
}

func (EMIApplication) TableName() string { return "emi_applications" }

// Financed 实际贷款金额 = 本金 - 首付
func (a *EMIApplication) Financed() decimal.Decimal {
	return a.Principal.Sub(a.DownPayment)
}

// IsLive 是否为进行中的申请（同一订单只允许一个）
func (a *EMIApplication) IsLive() bool {
	switch a.Status {
	case EMIStatusPending, EMIStatusApproved, EMIStatusActive:
		return true
	}
	return false
}

// EMIInstallment 分期明细
type EMIInstallment struct {
	PlainModel
	ApplicationID int64     `gorm:"uniqueIndex:idx_emi_app_number;not null" json:"application_id"`
	Number        int       `gorm:"uniqueIndex:idx_emi_app_number;not null" json:"number"`
	DueDate       time.Time `gorm:"index;not null" json:"due_date"`

	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Principal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal"`
	Interest  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"interest"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`

	Status         string              `gorm:"size:20;index;not null" json:"status"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	PaidAmount     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"paid_amount"`
	ReminderSentAt *time.Time          `json:"reminder_sent_at,omitempty"`
}

func (EMIInstallment) TableName() string { return "emi_installments" }
