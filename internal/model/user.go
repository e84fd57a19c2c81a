package model

import "time"

// 用户角色
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// User 用户（手机号登录）
type User struct {
	BaseModel
	Name          string     `gorm:"size:100;not null" json:"name"`
	Phone         string     `gorm:"size:20;uniqueIndex;not null" json:"phone"` // 8801XXXXXXXXX
	Email         string     `gorm:"size:100;index" json:"email"`
	PasswordHash  string     `gorm:"size:255;not null" json:"-"`
	Role          string     `gorm:"size:20;index;default:customer" json:"role"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	PhoneVerified bool       `json:"phone_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

func (User) TableName() string { return "users" }
