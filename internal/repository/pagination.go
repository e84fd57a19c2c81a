package repository

import "gorm.io/gorm"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page 分页参数
type Page struct {
	Page     int
	PageSize int
}

// Normalize 补全默认值：page 默认 1，page_size 默认 20，最大 100
func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Scope 分页 scope
func (p Page) Scope() func(db *gorm.DB) *gorm.DB {
	n := p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((n.Page - 1) * n.PageSize).Limit(n.PageSize)
	}
}
