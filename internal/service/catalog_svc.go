package service

import (
	"context"
	"fmt"
	"strings"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/utils"
)

// maxSlugAttempts 生成唯一 slug 的最大尝试次数
const maxSlugAttempts = 1000

// uniqueSlug 由名称生成 slug，冲突时追加 -2、-3 ...
func uniqueSlug(ctx context.Context, name, fallback string, exists func(ctx context.Context, slug string) (bool, error)) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = fallback
	}
	slug := base
	for i := 2; i < maxSlugAttempts; i++ {
		taken, err := exists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", conflictf("无法为 %s 生成唯一 slug", name)
}

// ==================== CategoryService 分类 ====================

// CategoryService 分类管理
type CategoryService struct {
	repo repository.CategoryRepository
}

// NewCategoryService 创建分类服务
func NewCategoryService(repo repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// List 分类列表
func (s *CategoryService) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	return s.repo.List(ctx, activeOnly)
}

// Create 创建分类
func (s *CategoryService) Create(ctx context.Context, req *dto.CategoryRequest) (*model.Category, error) {
	c := &model.Category{IsActive: true}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, translateErr(err)
	}
	return c, nil
}

// Update 更新分类
func (s *CategoryService) Update(ctx context.Context, id int64, req *dto.CategoryRequest) (*model.Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分类")
	}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, translateErr(err)
	}
	return c, nil
}

// Delete 删除分类
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return notFound(err, "分类")
	}
	return s.repo.Delete(ctx, id)
}

func (s *CategoryService) apply(ctx context.Context, c *model.Category, req *dto.CategoryRequest) error {
	if req.ParentID != nil {
		if c.ID != 0 && *req.ParentID == c.ID {
			return invalidf("父分类不能是自己")
		}
		parent, err := s.repo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return notFound(err, "父分类")
		}
		// 只支持一级父分类
		if parent.ParentID != nil {
			return invalidf("父分类不能是子分类")
		}
	}

	slug, err := resolveSlug(ctx, req.Name, req.Slug, "category", c.Slug, func(ctx context.Context, slug string) (bool, error) {
		return s.repo.SlugExists(ctx, slug, c.ID)
	})
	if err != nil {
		return err
	}

	c.Name = strings.TrimSpace(req.Name)
	c.Slug = slug
	c.ParentID = req.ParentID
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	return nil
}

// ==================== BrandService 品牌 ====================

// BrandService 品牌管理
type BrandService struct {
	repo repository.BrandRepository
}

// NewBrandService 创建品牌服务
func NewBrandService(repo repository.BrandRepository) *BrandService {
	return &BrandService{repo: repo}
}

// List 品牌列表
func (s *BrandService) List(ctx context.Context) ([]model.Brand, error) {
	return s.repo.List(ctx)
}

// Create 创建品牌
func (s *BrandService) Create(ctx context.Context, req *dto.BrandRequest) (*model.Brand, error) {
	b := &model.Brand{}
	if err := s.apply(ctx, b, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, translateErr(err)
	}
	return b, nil
}

// Update 更新品牌
func (s *BrandService) Update(ctx context.Context, id int64, req *dto.BrandRequest) (*model.Brand, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "品牌")
	}
	if err := s.apply(ctx, b, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, translateErr(err)
	}
	return b, nil
}

// Delete 删除品牌
func (s *BrandService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return notFound(err, "品牌")
	}
	return s.repo.Delete(ctx, id)
}

func (s *BrandService) apply(ctx context.Context, b *model.Brand, req *dto.BrandRequest) error {
	slug, err := resolveSlug(ctx, req.Name, req.Slug, "brand", b.Slug, func(ctx context.Context, slug string) (bool, error) {
		return s.repo.SlugExists(ctx, slug, b.ID)
	})
	if err != nil {
		return err
	}
	b.Name = strings.TrimSpace(req.Name)
	b.Slug = slug
	b.LogoURL = req.LogoURL
	return nil
}

// resolveSlug 显式指定的 slug 必须可用；未指定时沿用现有 slug，没有则由名称生成
func resolveSlug(ctx context.Context, name, requested, fallback, current string, exists func(ctx context.Context, slug string) (bool, error)) (string, error) {
	if requested != "" {
		slug := utils.Slugify(requested)
		if slug == "" {
			return "", invalidf("slug 格式错误")
		}
		if slug == current {
			return slug, nil
		}
		taken, err := exists(ctx, slug)
		if err != nil {
			return "", err
		}
		if taken {
			return "", conflictf("slug 已被占用: %s", slug)
		}
		return slug, nil
	}
	if current != "" {
		return current, nil
	}
	return uniqueSlug(ctx, name, fallback, exists)
}
