package model

import "time"

// 短信状态
const (
	SMSStatusPending = "pending"
	SMSStatusSent    = "sent"
	SMSStatusFailed  = "failed"
)

// 内置短信模板编码
const (
	TemplateOrderPlaced = "order_placed"
	TemplateOrderStatus = "order_status"
	TemplateOTP         = "otp"
	TemplateEMIReminder = "emi_reminder"
	TemplateEMIOverdue  = "emi_overdue"
	TemplatePaymentOK   = "payment_success"
)

// SMSTemplate 短信模板，Body 中使用 {key} 占位符
type SMSTemplate struct {
	BaseModel
	Code     string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name     string `gorm:"size:100" json:"name"`
	Body     string `gorm:"type:text;not null" json:"body"`
	IsActive bool   `gorm:"index" json:"is_active"`
}

func (SMSTemplate) TableName() string { return "sms_templates" }

// SMSLog 短信发送记录
// PostgreSQL 中为按月分区表（分区键 created_at，建表见 pkg/database/partitions/sms_logs.sql）
type SMSLog struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Phone             string     `gorm:"size:20;index;not null" json:"phone"`
	Message           string     `gorm:"type:text;not null" json:"message"`
	TemplateCode      string     `gorm:"size:50" json:"template_code,omitempty"`
	Provider          string     `gorm:"size:30" json:"provider"`
	Status            string     `gorm:"size:20;index;not null" json:"status"`
	Attempts          int        `gorm:"not null;default:0" json:"attempts"`
	ProviderMessageID string     `gorm:"size:100" json:"provider_message_id,omitempty"`
	Response          string     `gorm:"type:text" json:"response,omitempty"`
	Error             string     `gorm:"type:text" json:"error,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}

func (SMSLog) TableName() string { return "sms_logs" }
