package service

import (
	"context"
	"strconv"
	"strings"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ==================== ProductService 商品服务 ====================

// ProductService 商品管理
type ProductService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	brands     repository.BrandRepository
	vendors    *VendorService
	storage    StorageProvider
	log        *zap.Logger
}

// NewProductService 创建商品服务
func NewProductService(uow *repository.UnitOfWork, vendors *VendorService, storage StorageProvider) *ProductService {
	return &ProductService{
		products:   uow.Products,
		categories: uow.Categories,
		brands:     uow.Brands,
		vendors:    vendors,
		storage:    storage,
		log:        zap.L().Named("product"),
	}
}

// ==================== 查询 ====================

// List 商品列表；includeInactive 仅管理员
func (s *ProductService) List(ctx context.Context, req *dto.ListProductsRequest, includeInactive bool) ([]*dto.ProductVO, int64, error) {
	minPrice, err := parseDecimal(req.MinPrice, "min_price")
	if err != nil {
		return nil, 0, err
	}
	maxPrice, err := parseDecimal(req.MaxPrice, "max_price")
	if err != nil {
		return nil, 0, err
	}
	if minPrice != nil && maxPrice != nil && maxPrice.LessThan(*minPrice) {
		return nil, 0, invalidf("max_price 不能小于 min_price")
	}

	filter := repository.ProductFilter{
		BrandID:         req.BrandID,
		VendorID:        req.VendorID,
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		InStock:         req.InStock,
		Featured:        req.Featured,
		EMIAvailable:    req.EMI,
		Keyword:         req.Keyword,
		Sort:            req.Sort,
		IncludeInactive: includeInactive,
		Page:            repository.Page{Page: req.Page, PageSize: req.PageSize},
	}
	// category 既可以是 id 也可以是 slug
	if req.Category != "" {
		if id, err := strconv.ParseInt(req.Category, 10, 64); err == nil {
			filter.CategoryID = id
		} else {
			filter.CategorySlug = req.Category
		}
	}

	list, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*dto.ProductVO, 0, len(list))
	for i := range list {
		out = append(out, dto.NewProductVO(&list[i]))
	}
	return out, total, nil
}

// Get 按 id 或 slug 获取商品
func (s *ProductService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*dto.ProductVO, error) {
	var (
		p   *model.Product
		err error
	)
	if id, perr := strconv.ParseInt(idOrSlug, 10, 64); perr == nil {
		p, err = s.products.GetByID(ctx, id)
	} else {
		p, err = s.products.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, notFound(err, "商品")
	}
	if !p.IsActive && !includeInactive {
		return nil, notFoundf("商品")
	}
	return dto.NewProductVO(p), nil
}

// ==================== 写操作 ====================

// Create 创建商品；商家只能为自己的店铺创建
func (s *ProductService) Create(ctx context.Context, actor Actor, req *dto.CreateProductRequest) (*dto.ProductVO, error) {
	// 1. 归属
	vendorID, err := s.resolveVendor(ctx, actor, req.VendorID)
	if err != nil {
		return nil, err
	}

	// 2. 价格 / 库存
	var discount decimal.NullDecimal
	if req.DiscountPrice != nil {
		discount = decimal.NewNullDecimal(*req.DiscountPrice)
	}
	if err := validatePricing(req.Price, discount, req.Stock, req.Weight); err != nil {
		return nil, err
	}

	// 3. 关联
	if err := s.checkRefs(ctx, req.CategoryID, req.BrandID); err != nil {
		return nil, err
	}

	// 4. SKU / slug 唯一
	sku := strings.TrimSpace(req.SKU)
	if exists, err := s.products.SKUExists(ctx, sku, 0); err != nil {
		return nil, err
	} else if exists {
		return nil, conflictf("SKU 已存在: %s", sku)
	}
	slug, err := uniqueSlug(ctx, req.Name, "product", func(ctx context.Context, slug string) (bool, error) {
		return s.products.SlugExists(ctx, slug, 0)
	})
	if err != nil {
		return nil, err
	}

	p := &model.Product{
		VendorID:      vendorID,
		CategoryID:    req.CategoryID,
		BrandID:       req.BrandID,
		Name:          strings.TrimSpace(req.Name),
		Slug:          slug,
		SKU:           sku,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: discount,
		Stock:         req.Stock,
		Weight:        req.Weight,
		IsActive:      true,
		IsFeatured:    req.IsFeatured,
		EMIAvailable:  req.EMIAvailable,
		Specs:         req.Specs,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, translateErr(err)
	}
	return s.Get(ctx, strconv.FormatInt(p.ID, 10), true)
}

// Update 更新商品
func (s *ProductService) Update(ctx context.Context, actor Actor, id int64, req *dto.UpdateProductRequest) (*dto.ProductVO, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil || req.BrandID != nil {
		catID := p.CategoryID
		if req.CategoryID != nil {
			catID = *req.CategoryID
		}
		brandID := p.BrandID
		if req.BrandID != nil {
			brandID = req.BrandID
		}
		if err := s.checkRefs(ctx, catID, brandID); err != nil {
			return nil, err
		}
		p.CategoryID, p.BrandID = catID, brandID
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		if exists, err := s.products.SKUExists(ctx, sku, p.ID); err != nil {
			return nil, err
		} else if exists {
			return nil, conflictf("SKU 已存在: %s", sku)
		}
		p.SKU = sku
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.ClearDiscount {
		p.DiscountPrice = decimal.NullDecimal{}
	} else if req.DiscountPrice != nil {
		p.DiscountPrice = decimal.NewNullDecimal(*req.DiscountPrice)
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Weight != nil {
		p.Weight = *req.Weight
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.EMIAvailable != nil {
		p.EMIAvailable = *req.EMIAvailable
	}
	if req.Specs != nil {
		p.Specs = req.Specs
	}

	if err := validatePricing(p.Price, p.DiscountPrice, p.Stock, p.Weight); err != nil {
		return nil, err
	}

	p.Category, p.Brand, p.Images = nil, nil, nil
	if err := s.products.Update(ctx, p); err != nil {
		return nil, translateErr(err)
	}
	return s.Get(ctx, strconv.FormatInt(p.ID, 10), true)
}

// Delete 删除商品（软删除）
func (s *ProductService) Delete(ctx context.Context, actor Actor, id int64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.products.Delete(ctx, id)
}

// AdjustStock 调整库存，结果不能为负
func (s *ProductService) AdjustStock(ctx context.Context, actor Actor, id int64, delta int) (*dto.ProductVO, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	ok, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOutOfStock
	}
	return s.Get(ctx, strconv.FormatInt(id, 10), true)
}

// UploadImage 上传商品图片，追加在最后；第一张为主图
func (s *ProductService) UploadImage(ctx context.Context, actor Actor, id int64, data []byte) (*model.ProductImage, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalidf("图片为空")
	}
	if len(data) > utils.MaxImageSize {
		return nil, invalidf("图片不能超过 %d MB", utils.MaxImageSize>>20)
	}
	contentType, ext, err := utils.DetectImage(data)
	if err != nil {
		return nil, invalidf("%s", err.Error())
	}

	obj, err := s.storage.Upload(ctx, data, ext, contentType)
	if err != nil {
		return nil, err
	}

	count, err := s.products.CountImages(ctx, id)
	if err != nil {
		return nil, err
	}
	rank, err := s.products.MaxImageRank(ctx, id)
	if err != nil {
		return nil, err
	}

	img := &model.ProductImage{
		ProductID:  id,
		URL:        obj.URL,
		StorageKey: obj.Key,
		Rank:       rank + 1,
		IsPrimary:  count == 0,
	}
	if err := s.products.AddImage(ctx, img); err != nil {
		// 落库失败时清理已上传文件
		if derr := s.storage.Delete(ctx, obj.Key); derr != nil {
			s.log.Warn("清理上传文件失败", zap.String("key", obj.Key), zap.Error(derr))
		}
		return nil, err
	}
	return img, nil
}

// ==================== 内部方法 ====================

// resolveVendor 商家固定为自己的店铺；管理员可指定任意商家或平台自营（nil）
func (s *ProductService) resolveVendor(ctx context.Context, actor Actor, requested *int64) (*int64, error) {
	if actor.IsAdmin() {
		if requested == nil {
			return nil, nil
		}
		if _, err := s.vendors.Get(ctx, *requested); err != nil {
			return nil, err
		}
		return requested, nil
	}
	v, err := s.vendors.approvedVendorOf(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &v.ID, nil
}

// owned 读取商品并校验操作权限
func (s *ProductService) owned(ctx context.Context, actor Actor, id int64) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "商品")
	}
	if actor.IsAdmin() {
		return p, nil
	}
	v, err := s.vendors.approvedVendorOf(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if p.VendorID == nil || *p.VendorID != v.ID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *ProductService) checkRefs(ctx context.Context, categoryID int64, brandID *int64) error {
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		return notFound(err, "分类")
	}
	if brandID != nil {
		if _, err := s.brands.GetByID(ctx, *brandID); err != nil {
			return notFound(err, "品牌")
		}
	}
	return nil
}

func validatePricing(price decimal.Decimal, discount decimal.NullDecimal, stock int, weight decimal.Decimal) error {
	if !price.IsPositive() {
		return invalidf("价格必须大于 0")
	}
	if discount.Valid {
		if discount.Decimal.IsNegative() {
			return invalidf("折扣价不能为负")
		}
		if discount.Decimal.GreaterThanOrEqual(price) {
			return invalidf("折扣价必须低于原价")
		}
	}
	if stock < 0 {
		return invalidf("库存不能为负")
	}
	if weight.IsNegative() {
		return invalidf("重量不能为负")
	}
	return nil
}
