package dto

import (
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
)

// ==================== 商品 ====================

// ListProductsRequest 商品列表请求
type ListProductsRequest struct {
	Category string `form:"category"` // slug 或 id
	BrandID  int64  `form:"brand_id"`
	VendorID int64  `form:"vendor_id"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
	InStock  bool   `form:"in_stock"`
	Featured bool   `form:"featured"`
	EMI      bool   `form:"emi"`
	Keyword  string `form:"q"`
	Sort     string `form:"sort" binding:"omitempty,oneof=newest price_asc price_desc name"`
	PageQuery
}

// CreateProductRequest 创建商品
type CreateProductRequest struct {
	CategoryID    int64                  `json:"category_id" binding:"required"`
	BrandID       *int64                 `json:"brand_id"`
	VendorID      *int64                 `json:"vendor_id"` // 仅管理员可指定
	Name          string                 `json:"name" binding:"required,max=255"`
	SKU           string                 `json:"sku" binding:"required,max=64"`
	Description   string                 `json:"description"`
	Price         decimal.Decimal        `json:"price" binding:"required"`
	DiscountPrice *decimal.Decimal       `json:"discount_price"`
	Stock         int                    `json:"stock" binding:"min=0"`
	Weight        decimal.Decimal        `json:"weight"`
	IsActive      *bool                  `json:"is_active"`
	IsFeatured    bool                   `json:"is_featured"`
	EMIAvailable  bool                   `json:"emi_available"`
	Specs         map[string]interface{} `json:"specs"`
}

// UpdateProductRequest 更新商品（字段为空表示不修改）
type UpdateProductRequest struct {
	CategoryID    *int64                 `json:"category_id"`
	BrandID       *int64                 `json:"brand_id"`
	Name          *string                `json:"name" binding:"omitempty,max=255"`
	SKU           *string                `json:"sku" binding:"omitempty,max=64"`
	Description   *string                `json:"description"`
	Price         *decimal.Decimal       `json:"price"`
	DiscountPrice *decimal.Decimal       `json:"discount_price"`
	ClearDiscount bool                   `json:"clear_discount"`
	Stock         *int                   `json:"stock" binding:"omitempty,min=0"`
	Weight        *decimal.Decimal       `json:"weight"`
	IsActive      *bool                  `json:"is_active"`
	IsFeatured    *bool                  `json:"is_featured"`
	EMIAvailable  *bool                  `json:"emi_available"`
	Specs         map[string]interface{} `json:"specs"`
}

// AdjustStockRequest 调整库存
type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// ProductVO 商品输出，附带实际售价
type ProductVO struct {
	*model.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
}

// NewProductVO 构造商品输出
func NewProductVO(p *model.Product) *ProductVO {
	return &ProductVO{Product: p, EffectivePrice: p.EffectivePrice()}
}

// ==================== 分类 / 品牌 ====================

// CategoryRequest 创建 / 更新分类
type CategoryRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Slug     string `json:"slug" binding:"omitempty,max=120"`
	ParentID *int64 `json:"parent_id"`
	IsActive *bool  `json:"is_active"`
}

// BrandRequest 创建 / 更新品牌
type BrandRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Slug    string `json:"slug" binding:"omitempty,max=120"`
	LogoURL string `json:"logo_url" binding:"omitempty,url,max=500"`
}
