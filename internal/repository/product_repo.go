package repository

import (
	"context"
	"strings"

	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// effectivePriceExpr 实际售价 SQL 表达式（与 Product.EffectivePrice 一致）
const effectivePriceExpr = "CASE WHEN discount_price IS NOT NULL AND discount_price > 0 THEN discount_price ELSE price END"

// 排序方式
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// ==================== 过滤条件 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	CategoryID   int64
	CategorySlug string
	BrandID      int64
	VendorID     int64
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	InStock      bool
	Featured     bool
	EMIAvailable bool
	Keyword      string
	Sort         string
	// IncludeInactive 管理员可见下架商品
	IncludeInactive bool
	Page
}

// ==================== ProductRepository 商品仓库 ====================

// ProductRepository 商品仓库接口
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error

	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	SKUExists(ctx context.Context, sku string, excludeID int64) (bool, error)

	// 库存：条件更新，保证不为负；返回是否成功
	DecrementStock(ctx context.Context, id int64, qty int) (bool, error)
	IncrementStock(ctx context.Context, id int64, qty int) error
	AdjustStock(ctx context.Context, id int64, delta int) (bool, error)

	// 图片
	AddImage(ctx context.Context, img *model.ProductImage) error
	CountImages(ctx context.Context, productID int64) (int64, error)
	MaxImageRank(ctx context.Context, productID int64) (int, error)

	// 数据修复
	FindAll(ctx context.Context, batch int, fn func(products []model.Product) error) error
	ResetNegativeStock(ctx context.Context) (int64, error)
	CountNegativeStock(ctx context.Context) (int64, error)
	CountByVendor(ctx context.Context, vendorID int64) (int64, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Brand", "Images").Create(p).Error
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		Where("slug = ?", slug).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Product{})

	// 应用过滤条件
	if !filter.IncludeInactive {
		db = db.Where("products.is_active = ?", true)
	}
	if filter.CategoryID > 0 {
		db = db.Where("products.category_id = ?", filter.CategoryID)
	}
	if filter.CategorySlug != "" {
		db = db.Where("products.category_id IN (?)",
			r.db.Model(&model.Category{}).Select("id").Where("slug = ?", filter.CategorySlug))
	}
	if filter.BrandID > 0 {
		db = db.Where("products.brand_id = ?", filter.BrandID)
	}
	if filter.VendorID > 0 {
		db = db.Where("products.vendor_id = ?", filter.VendorID)
	}
	if filter.MinPrice != nil {
		db = db.Where(effectivePriceExpr+" >= ?", filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		db = db.Where(effectivePriceExpr+" <= ?", filter.MaxPrice.InexactFloat64())
	}
	if filter.InStock {
		db = db.Where("products.stock > 0")
	}
	if filter.Featured {
		db = db.Where("products.is_featured = ?", true)
	}
	if filter.EMIAvailable {
		db = db.Where("products.emi_available = ?", true)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		db = db.Where("(LOWER(products.name) LIKE ? OR LOWER(products.sku) LIKE ?)", like, like)
	}

	// 计算总数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case SortPriceAsc:
		db = db.Order(effectivePriceExpr + " ASC").Order("products.id DESC")
	case SortPriceDesc:
		db = db.Order(effectivePriceExpr + " DESC").Order("products.id DESC")
	case SortName:
		db = db.Order("products.name ASC")
	default:
		db = db.Order("products.created_at DESC").Order("products.id DESC")
	}

	err := db.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		Scopes(filter.Page.Scope()).
		Find(&products).Error
	return products, total, err
}

func (r *productRepository) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Brand", "Images").Save(p).Error
}

func (r *productRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

func (r *productRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("slug = ? AND id <> ?", slug, excludeID).Count(&count).Error
	return count > 0, err
}

func (r *productRepository) SKUExists(ctx context.Context, sku string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("sku = ? AND id <> ?", sku, excludeID).Count(&count).Error
	return count > 0, err
}

// ==================== 库存 ====================

func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *productRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	return r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

func (r *productRepository) AdjustStock(ctx context.Context, id int64, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	return res.RowsAffected == 1, res.Error
}

// ==================== 图片 ====================

func (r *productRepository) AddImage(ctx context.Context, img *model.ProductImage) error {
	return r.db.WithContext(ctx).Create(img).Error
}

func (r *productRepository) CountImages(ctx context.Context, productID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProductImage{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

func (r *productRepository) MaxImageRank(ctx context.Context, productID int64) (int, error) {
	var rank int
	err := r.db.WithContext(ctx).Model(&model.ProductImage{}).
		Where("product_id = ?", productID).
		Select("COALESCE(MAX(rank), -1)").Scan(&rank).Error
	return rank, err
}

// ==================== 数据修复 ====================

func (r *productRepository) FindAll(ctx context.Context, batch int, fn func(products []model.Product) error) error {
	var products []model.Product
	return r.db.WithContext(ctx).Unscoped().FindInBatches(&products, batch, func(tx *gorm.DB, _ int) error {
		return fn(products)
	}).Error
}

func (r *productRepository) ResetNegativeStock(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("stock < 0").UpdateColumn("stock", 0)
	return res.RowsAffected, res.Error
}

func (r *productRepository) CountNegativeStock(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).Where("stock < 0").Count(&count).Error
	return count, err
}

func (r *productRepository) CountByVendor(ctx context.Context, vendorID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("vendor_id = ?", vendorID).Count(&count).Error
	return count, err
}

// ==================== CategoryRepository 分类仓库 ====================

// CategoryRepository 分类仓库接口
type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	List(ctx context.Context, activeOnly bool) ([]model.Category, error)
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓库
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	var list []model.Category
	db := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Find(&list).Error
	return list, err
}

func (r *categoryRepository) Update(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Category{}, id).Error
}

func (r *categoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Category{}).
		Where("slug = ? AND id <> ?", slug, excludeID).Count(&count).Error
	return count > 0, err
}

// ==================== BrandRepository 品牌仓库 ====================

// BrandRepository 品牌仓库接口
type BrandRepository interface {
	Create(ctx context.Context, b *model.Brand) error
	GetByID(ctx context.Context, id int64) (*model.Brand, error)
	List(ctx context.Context) ([]model.Brand, error)
	Update(ctx context.Context, b *model.Brand) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

type brandRepository struct {
	db *gorm.DB
}

// NewBrandRepository 创建品牌仓库
func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepository{db: db}
}

func (r *brandRepository) Create(ctx context.Context, b *model.Brand) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *brandRepository) GetByID(ctx context.Context, id int64) (*model.Brand, error) {
	var b model.Brand
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *brandRepository) List(ctx context.Context) ([]model.Brand, error) {
	var list []model.Brand
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *brandRepository) Update(ctx context.Context, b *model.Brand) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *brandRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Brand{}, id).Error
}

func (r *brandRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Brand{}).
		Where("slug = ? AND id <> ?", slug, excludeID).Count(&count).Error
	return count > 0, err
}
