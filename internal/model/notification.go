package model

import (
	"time"

	"gorm.io/datatypes"
)

// 站内通知类型
const (
	NotifyOrder   = "order"
	NotifyPayment = "payment"
	NotifyEMI     = "emi"
	NotifyVendor  = "vendor"
	NotifySystem  = "system"
)

// Notification 站内通知
type Notification struct {
	PlainModel
	UserID int64             `gorm:"index;not null" json:"user_id"`
	Type   string            `gorm:"size:30;index;not null" json:"type"`
	Title  string            `gorm:"size:200;not null" json:"title"`
	Body   string            `gorm:"type:text" json:"body"`
	Data   datatypes.JSONMap `json:"data,omitempty"`
	ReadAt *time.Time        `gorm:"index" json:"read_at,omitempty"`
}

func (Notification) TableName() string { return "notifications" }
