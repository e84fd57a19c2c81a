package controller

import (
	"io"
	"net/http"
	"strconv"

	"phonebay/internal/api/dto"
	"phonebay/internal/service"
	"phonebay/pkg/utils"

	"github.com/gin-gonic/gin"
)

type ProductController struct {
	productService *service.ProductService
}

func NewProductController(productService *service.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ==================== 查询接口 ====================

// List 商品列表
// @Summary 商品列表（分页 / 筛选 / 排序）
// @Tags Product
// @Param category query string false "分类 id 或 slug"
// @Param brand_id query int false "品牌ID"
// @Param vendor_id query int false "商家ID"
// @Param min_price query string false "最低价"
// @Param max_price query string false "最高价"
// @Param in_stock query bool false "仅有货"
// @Param featured query bool false "仅推荐"
// @Param emi query bool false "仅支持分期"
// @Param q query string false "关键词"
// @Param sort query string false "newest | price_asc | price_desc | name"
// @Param include_inactive query bool false "包含下架商品（仅管理员）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[dto.ProductVO]
// @Router /api/products [get]
func (ctrl *ProductController) List(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	includeInactive := c.Query("include_inactive") == "true" && actorOf(c).IsAdmin()

	list, total, err := ctrl.productService.List(c.Request.Context(), &req, includeInactive)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// Get 商品详情
// @Summary 按 ID 获取商品
// @Tags Product
// @Param id path int true "商品ID"
// @Success 200 {object} dto.ProductVO
// @Router /api/products/{id} [get]
func (ctrl *ProductController) Get(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	ctrl.get(c, strconv.FormatInt(id, 10))
}

// GetBySlug 商品详情
// @Summary 按 slug 获取商品
// @Tags Product
// @Param slug path string true "商品 slug"
// @Success 200 {object} dto.ProductVO
// @Router /api/products/slug/{slug} [get]
func (ctrl *ProductController) GetBySlug(c *gin.Context) {
	ctrl.get(c, c.Param("slug"))
}

func (ctrl *ProductController) get(c *gin.Context, idOrSlug string) {
	p, err := ctrl.productService.Get(c.Request.Context(), idOrSlug, actorOf(c).IsAdmin())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// ==================== 管理接口（管理员 / 商家） ====================

// Create 创建商品
// @Summary 创建商品，商家只能创建在自己店铺下
// @Tags Product
// @Security BearerAuth
// @Param body body dto.CreateProductRequest true "商品信息"
// @Success 201 {object} dto.ProductVO
// @Router /api/products [post]
func (ctrl *ProductController) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	p, err := ctrl.productService.Create(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, p)
}

// Update 更新商品
// @Summary 更新商品（字段为空表示不修改）
// @Tags Product
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Param body body dto.UpdateProductRequest true "修改内容"
// @Success 200 {object} dto.ProductVO
// @Router /api/products/{id} [put]
func (ctrl *ProductController) Update(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	p, err := ctrl.productService.Update(c.Request.Context(), actorOf(c), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// Delete 删除商品（软删除）
// @Summary 删除商品
// @Tags Product
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Success 200 {object} map[string]string
// @Router /api/products/{id} [delete]
func (ctrl *ProductController) Delete(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.productService.Delete(c.Request.Context(), actorOf(c), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// UploadImage 上传商品图片
// @Summary 上传商品图片（multipart 字段 image）
// @Tags Product
// @Security BearerAuth
// @Accept multipart/form-data
// @Param id path int true "商品ID"
// @Param image formData file true "图片"
// @Success 201 {object} model.ProductImage
// @Router /api/products/{id}/images [post]
func (ctrl *ProductController) UploadImage(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少图片文件 image"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	// 多读 1 字节，超限交给 service 判断
	data, err := io.ReadAll(io.LimitReader(f, utils.MaxImageSize+1))
	if err != nil {
		fail(c, err)
		return
	}

	img, err := ctrl.productService.UploadImage(c.Request.Context(), actorOf(c), id, data)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, img)
}

// AdjustStock 调整库存
// @Summary 调整库存（delta 可正可负，结果不能为负）
// @Tags Product
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Param body body dto.AdjustStockRequest true "库存变化量"
// @Success 200 {object} dto.ProductVO
// @Router /api/products/{id}/stock [patch]
func (ctrl *ProductController) AdjustStock(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	p, err := ctrl.productService.AdjustStock(c.Request.Context(), actorOf(c), id, req.Delta)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}
