package controller

import (
	"net/http"
	"strconv"

	"phonebay/internal/api/dto"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ShippingController struct {
	shippingService *service.ShippingService
}

func NewShippingController(shippingService *service.ShippingService) *ShippingController {
	return &ShippingController{shippingService: shippingService}
}

// ==================== 公开接口 ====================

// Quote 运费查询
// @Summary 按城市、重量和金额查询运费，按费用升序
// @Tags Shipping
// @Param city query string true "城市"
// @Param weight query string false "重量 kg"
// @Param subtotal query string false "商品金额"
// @Param method_id query int false "配送方式ID"
// @Success 200 {object} dto.ListResponse[dto.ShippingQuote]
// @Failure 404 {object} map[string]string "无匹配区域或配送方式"
// @Router /api/shipping/quote [get]
func (ctrl *ShippingController) Quote(c *gin.Context) {
	var req dto.ShippingQuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}

	params := service.QuoteParams{City: req.City, MethodID: req.MethodID}
	var err error
	if params.Weight, err = decimalOrZero(req.Weight); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weight 格式错误"})
		return
	}
	if params.Subtotal, err = decimalOrZero(req.Subtotal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subtotal 格式错误"})
		return
	}

	quotes, err := ctrl.shippingService.Quote(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, quotes, int64(len(quotes)))
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Methods 可用配送方式
// @Summary 可用配送方式
// @Tags Shipping
// @Success 200 {object} dto.ListResponse[model.ShippingMethod]
// @Router /api/shipping/methods [get]
func (ctrl *ShippingController) Methods(c *gin.Context) {
	list, err := ctrl.shippingService.ListMethods(c.Request.Context(), true)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// ==================== 区域管理 ====================

// ListZones 全部区域
// @Summary 配送区域列表
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[model.ShippingZone]
// @Router /api/admin/shipping/zones [get]
func (ctrl *ShippingController) ListZones(c *gin.Context) {
	list, err := ctrl.shippingService.ListZones(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// CreateZone 创建区域
// @Summary 创建配送区域
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.ShippingZoneRequest true "区域"
// @Success 201 {object} model.ShippingZone
// @Router /api/admin/shipping/zones [post]
func (ctrl *ShippingController) CreateZone(c *gin.Context) {
	var req dto.ShippingZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	zone, err := ctrl.shippingService.CreateZone(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, zone)
}

// UpdateZone 更新区域
// @Summary 更新配送区域
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "区域ID"
// @Param body body dto.ShippingZoneRequest true "区域"
// @Success 200 {object} model.ShippingZone
// @Router /api/admin/shipping/zones/{id} [put]
func (ctrl *ShippingController) UpdateZone(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.ShippingZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	zone, err := ctrl.shippingService.UpdateZone(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, zone)
}

// DeleteZone 删除区域
// @Summary 删除配送区域
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "区域ID"
// @Router /api/admin/shipping/zones/{id} [delete]
func (ctrl *ShippingController) DeleteZone(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.shippingService.DeleteZone(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// ==================== 配送方式管理 ====================

// ListMethods 全部配送方式（含停用）
// @Summary 配送方式列表
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[model.ShippingMethod]
// @Router /api/admin/shipping/methods [get]
func (ctrl *ShippingController) ListMethods(c *gin.Context) {
	list, err := ctrl.shippingService.ListMethods(c.Request.Context(), false)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// CreateMethod 创建配送方式
// @Summary 创建配送方式
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.ShippingMethodRequest true "配送方式"
// @Success 201 {object} model.ShippingMethod
// @Router /api/admin/shipping/methods [post]
func (ctrl *ShippingController) CreateMethod(c *gin.Context) {
	var req dto.ShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	m, err := ctrl.shippingService.CreateMethod(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, m)
}

// UpdateMethod 更新配送方式
// @Summary 更新配送方式
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "配送方式ID"
// @Param body body dto.ShippingMethodRequest true "配送方式"
// @Success 200 {object} model.ShippingMethod
// @Router /api/admin/shipping/methods/{id} [put]
func (ctrl *ShippingController) UpdateMethod(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.ShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	m, err := ctrl.shippingService.UpdateMethod(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

// DeleteMethod 删除配送方式
// @Summary 删除配送方式
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "配送方式ID"
// @Router /api/admin/shipping/methods/{id} [delete]
func (ctrl *ShippingController) DeleteMethod(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.shippingService.DeleteMethod(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// ==================== 运费管理 ====================

// ListRates 区域运费
// @Summary 区域下的运费表
// @Tags Admin
// @Security BearerAuth
// @Param zone_id query int true "区域ID"
// @Success 200 {object} dto.ListResponse[model.ShippingRate]
// @Router /api/admin/shipping/rates [get]
func (ctrl *ShippingController) ListRates(c *gin.Context) {
	zoneID, err := strconv.ParseInt(c.Query("zone_id"), 10, 64)
	if err != nil || zoneID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 zone_id"})
		return
	}
	list, err := ctrl.shippingService.ListRates(c.Request.Context(), zoneID)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// UpsertRate 设置运费
// @Summary 设置区域 + 配送方式的运费（存在则覆盖）
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.ShippingRateRequest true "运费"
// @Success 200 {object} model.ShippingRate
// @Router /api/admin/shipping/rates [post]
func (ctrl *ShippingController) UpsertRate(c *gin.Context) {
	var req dto.ShippingRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	rate, err := ctrl.shippingService.UpsertRate(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rate)
}

// DeleteRate 删除运费
// @Summary 删除运费
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "运费ID"
// @Router /api/admin/shipping/rates/{id} [delete]
func (ctrl *ShippingController) DeleteRate(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.shippingService.DeleteRate(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}
