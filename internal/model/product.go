package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== 分类 / 品牌 ====================

// Category 商品分类，支持一级父分类
type Category struct {
	BaseModel
	Name     string `gorm:"size:100;not null" json:"name"`
	Slug     string `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	ParentID *int64 `gorm:"index" json:"parent_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

func (Category) TableName() string { return "categories" }

// Brand 品牌
type Brand struct {
	BaseModel
	Name    string `gorm:"size:100;not null" json:"name"`
	Slug    string `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	LogoURL string `gorm:"size:500" json:"logo_url"`
}

func (Brand) TableName() string { return "brands" }

// ==================== 商品 ====================

// Product 商品
type Product struct {
	BaseModel
	AuditFields

	VendorID   *int64 `gorm:"index" json:"vendor_id,omitempty"`
	CategoryID int64  `gorm:"index;not null" json:"category_id"`
	BrandID    *int64 `gorm:"index" json:"brand_id,omitempty"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Slug        string `gorm:"size:280;uniqueIndex;not null" json:"slug"`
	SKU         string `gorm:"column:sku;size:64;uniqueIndex;not null" json:"sku"`
	Description string `gorm:"type:text" json:"description"`

	// 金额
	Price         decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	DiscountPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"discount_price"`

	Stock  int             `gorm:"not null;default:0" json:"stock"`
	Weight decimal.Decimal `gorm:"type:decimal(8,3);not null;default:0" json:"weight"` // kg

	IsActive     bool `gorm:"index" json:"is_active"`
	IsFeatured   bool `gorm:"index" json:"is_featured"`
	EMIAvailable bool `gorm:"column:emi_available" json:"emi_available"`

	// 规格参数，如 {"ram":"8GB","storage":"128GB"}
	Specs datatypes.JSONMap `json:"specs"`

	Category *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Brand    *Brand         `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	Images   []ProductImage `gorm:"foreignKey:ProductID" json:"images,omitempty"`
}

func (Product) TableName() string { return "products" }

// EffectivePrice 实际售价：有折扣价（且 > 0）用折扣价
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid && p.DiscountPrice.Decimal.IsPositive() {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// ProductImage 商品图片
type ProductImage struct {
	PlainModel
	ProductID  int64  `gorm:"index;not null" json:"product_id"`
	URL        string `gorm:"size:500;not null" json:"url"`
	StorageKey string `gorm:"size:500" json:"-"`
	Rank       int    `gorm:"not null;default:0" json:"rank"`
	IsPrimary  bool   `json:"is_primary"`
}

func (ProductImage) TableName() string { return "product_images" }
