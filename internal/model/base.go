package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用字段（软删除）
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PlainModel 通用字段（物理删除，用于带联合唯一索引的明细表）
type PlainModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditFields 审计字段，由 GORM 回调自动填充
type AuditFields struct {
	CreatedBy int64 `gorm:"index;comment:创建人ID" json:"created_by,omitempty"`
	UpdatedBy int64 `gorm:"comment:更新人ID" json:"updated_by,omitempty"`
}
