package controller

import (
	"net/http"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService *service.OrderService
}

func NewOrderController(orderService *service.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// ==================== 用户接口 ====================

// Checkout 下单
// @Summary 购物车结算下单（cod / online / emi）
// @Tags Order
// @Security BearerAuth
// @Param body body dto.CheckoutRequest true "收货与支付信息"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} map[string]string "购物车为空 / 库存不足"
// @Failure 503 {object} map[string]string "维护中"
// @Router /api/orders/checkout [post]
func (ctrl *OrderController) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.orderService.Checkout(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, resp)
}

// List 我的订单
// @Summary 当前用户订单列表
// @Tags Order
// @Security BearerAuth
// @Param status query string false "订单状态"
// @Param payment_status query string false "支付状态"
// @Param start_date query string false "开始日期 2026-01-02"
// @Param end_date query string false "结束日期"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.Order]
// @Router /api/orders [get]
func (ctrl *OrderController) List(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.orderService.List(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// Get 订单详情
// @Summary 订单详情（管理员可查看任意订单）
// @Tags Order
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} model.Order
// @Router /api/orders/{id} [get]
func (ctrl *OrderController) Get(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	order, err := ctrl.orderService.Get(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

// Cancel 取消订单
// @Summary 取消自己的订单（待确认 / 已确认）
// @Tags Order
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param body body dto.CancelOrderRequest false "取消原因"
// @Success 200 {object} model.Order
// @Router /api/orders/{id}/cancel [post]
func (ctrl *OrderController) Cancel(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFail(c, err)
			return
		}
	}
	order, err := ctrl.orderService.Cancel(c.Request.Context(), middleware.GetUserID(c), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, order, "订单已取消")
}

// ==================== 管理接口 ====================

// AdminList 全部订单
// @Summary 全部订单（管理员）
// @Tags Admin
// @Security BearerAuth
// @Param status query string false "订单状态"
// @Param payment_status query string false "支付状态"
// @Param keyword query string false "订单号 / 手机号"
// @Param start_date query string false "开始日期"
// @Param end_date query string false "结束日期"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.Order]
// @Router /api/admin/orders [get]
func (ctrl *OrderController) AdminList(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.orderService.ListAll(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// UpdateStatus 修改订单状态
// @Summary 修改订单状态（管理员），非法流转返回 400
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param body body dto.UpdateOrderStatusRequest true "目标状态"
// @Success 200 {object} model.Order
// @Router /api/admin/orders/{id}/status [patch]
func (ctrl *OrderController) UpdateStatus(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	order, err := ctrl.orderService.UpdateStatus(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

// Stats 订单统计
// @Summary 订单统计（按状态计数 + 营收）
// @Tags Admin
// @Security BearerAuth
// @Param start_date query string false "开始日期"
// @Param end_date query string false "结束日期"
// @Success 200 {object} repository.OrderStats
// @Router /api/admin/orders/stats [get]
func (ctrl *OrderController) Stats(c *gin.Context) {
	var req dto.OrderStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stats, err := ctrl.orderService.Stats(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}
