package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

// CatalogController 分类与品牌
type CatalogController struct {
	categoryService *service.CategoryService
	brandService    *service.BrandService
}

func NewCatalogController(categoryService *service.CategoryService, brandService *service.BrandService) *CatalogController {
	return &CatalogController{categoryService: categoryService, brandService: brandService}
}

// ==================== 分类 ====================

// ListCategories 分类列表
// @Summary 分类列表，管理员可带 all=true 查看停用分类
// @Tags Catalog
// @Param all query bool false "包含停用（仅管理员）"
// @Success 200 {object} dto.ListResponse[model.Category]
// @Router /api/categories [get]
func (ctrl *CatalogController) ListCategories(c *gin.Context) {
	activeOnly := !(c.Query("all") == "true" && actorOf(c).IsAdmin())
	list, err := ctrl.categoryService.List(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// CreateCategory 创建分类
// @Summary 创建分类
// @Tags Catalog
// @Security BearerAuth
// @Param body body dto.CategoryRequest true "分类"
// @Success 201 {object} model.Category
// @Router /api/categories [post]
func (ctrl *CatalogController) CreateCategory(c *gin.Context) {
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	cat, err := ctrl.categoryService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, cat)
}

// UpdateCategory 更新分类
// @Summary 更新分类
// @Tags Catalog
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param body body dto.CategoryRequest true "分类"
// @Success 200 {object} model.Category
// @Router /api/categories/{id} [put]
func (ctrl *CatalogController) UpdateCategory(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	cat, err := ctrl.categoryService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}

// DeleteCategory 删除分类
// @Summary 删除分类
// @Tags Catalog
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Router /api/categories/{id} [delete]
func (ctrl *CatalogController) DeleteCategory(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.categoryService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// ==================== 品牌 ====================

// ListBrands 品牌列表
// @Summary 品牌列表
// @Tags Catalog
// @Success 200 {object} dto.ListResponse[model.Brand]
// @Router /api/brands [get]
func (ctrl *CatalogController) ListBrands(c *gin.Context) {
	list, err := ctrl.brandService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// CreateBrand 创建品牌
// @Summary 创建品牌
// @Tags Catalog
// @Security BearerAuth
// @Param body body dto.BrandRequest true "品牌"
// @Success 201 {object} model.Brand
// @Router /api/brands [post]
func (ctrl *CatalogController) CreateBrand(c *gin.Context) {
	var req dto.BrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	b, err := ctrl.brandService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, b)
}

// UpdateBrand 更新品牌
// @Summary 更新品牌
// @Tags Catalog
// @Security BearerAuth
// @Param id path int true "品牌ID"
// @Param body body dto.BrandRequest true "品牌"
// @Success 200 {object} model.Brand
// @Router /api/brands/{id} [put]
func (ctrl *CatalogController) UpdateBrand(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.BrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	b, err := ctrl.brandService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, b)
}

// DeleteBrand 删除品牌
// @Summary 删除品牌
// @Tags Catalog
// @Security BearerAuth
// @Param id path int true "品牌ID"
// @Router /api/brands/{id} [delete]
func (ctrl *CatalogController) DeleteBrand(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.brandService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}
