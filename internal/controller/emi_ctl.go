package controller

import (
	"net/http"
	"strconv"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type EMIController struct {
	emiService *service.EMIService
}

func NewEMIController(emiService *service.EMIService) *EMIController {
	return &EMIController{emiService: emiService}
}

// ==================== 方案 ====================

// ListPlans 可用分期方案
// @Summary 可用分期方案，带 amount 时只返回适用该金额的方案
// @Tags EMI
// @Param amount query string false "订单金额"
// @Success 200 {object} dto.ListResponse[model.EMIPlan]
// @Router /api/emi/plans [get]
func (ctrl *EMIController) ListPlans(c *gin.Context) {
	var req dto.ListEMIPlansRequest
	_ = c.ShouldBindQuery(&req)

	var amount *decimal.Decimal
	if req.Amount != "" {
		d, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount 格式错误"})
			return
		}
		amount = &d
	}

	plans, err := ctrl.emiService.ListActivePlans(c.Request.Context(), amount)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, plans, int64(len(plans)))
}

// Quote 分期试算
// @Summary 分期试算：月供、总利息、手续费与还款计划
// @Tags EMI
// @Param body body dto.EMIQuoteRequest true "方案与金额"
// @Success 200 {object} service.EMISchedule
// @Router /api/emi/quote [post]
func (ctrl *EMIController) Quote(c *gin.Context) {
	var req dto.EMIQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	schedule, err := ctrl.emiService.Quote(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, schedule)
}

// AdminListPlans 全部方案（含停用）
// @Summary 全部分期方案
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[model.EMIPlan]
// @Router /api/admin/emi/plans [get]
func (ctrl *EMIController) AdminListPlans(c *gin.Context) {
	plans, err := ctrl.emiService.ListPlans(c.Request.Context(), false)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, plans, int64(len(plans)))
}

// CreatePlan 创建方案
// @Summary 创建分期方案
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.EMIPlanRequest true "方案"
// @Success 201 {object} model.EMIPlan
// @Router /api/admin/emi/plans [post]
func (ctrl *EMIController) CreatePlan(c *gin.Context) {
	var req dto.EMIPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	plan, err := ctrl.emiService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, plan)
}

// UpdatePlan 更新方案
// @Summary 更新分期方案
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "方案ID"
// @Param body body dto.EMIPlanRequest true "方案"
// @Success 200 {object} model.EMIPlan
// @Router /api/admin/emi/plans/{id} [put]
func (ctrl *EMIController) UpdatePlan(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.EMIPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	plan, err := ctrl.emiService.UpdatePlan(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, plan)
}

// DeletePlan 删除方案
// @Summary 删除分期方案
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "方案ID"
// @Router /api/admin/emi/plans/{id} [delete]
func (ctrl *EMIController) DeletePlan(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.emiService.DeletePlan(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// ==================== 申请 ====================

// Apply 申请分期
// @Summary 为自己的订单申请分期
// @Tags EMI
// @Security BearerAuth
// @Param body body dto.EMIApplyRequest true "订单与方案"
// @Success 201 {object} model.EMIApplication
// @Router /api/emi/applications [post]
func (ctrl *EMIController) Apply(c *gin.Context) {
	var req dto.EMIApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	app, err := ctrl.emiService.Apply(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, app)
}

// ListApplications 我的分期申请
// @Summary 当前用户的分期申请
// @Tags EMI
// @Security BearerAuth
// @Param status query string false "状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.EMIApplication]
// @Router /api/emi/applications [get]
func (ctrl *EMIController) ListApplications(c *gin.Context) {
	var req dto.ListEMIApplicationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.emiService.ListApplications(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// AdminListApplications 全部分期申请
// @Summary 全部分期申请（管理员）
// @Tags Admin
// @Security BearerAuth
// @Param status query string false "状态"
// @Success 200 {object} dto.ListResponse[model.EMIApplication]
// @Router /api/admin/emi/applications [get]
func (ctrl *EMIController) AdminListApplications(c *gin.Context) {
	var req dto.ListEMIApplicationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.emiService.ListApplications(c.Request.Context(), 0, &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// GetApplication 分期申请详情（含还款计划）
// @Summary 分期申请详情
// @Tags EMI
// @Security BearerAuth
// @Param id path int true "申请ID"
// @Success 200 {object} model.EMIApplication
// @Router /api/emi/applications/{id} [get]
func (ctrl *EMIController) GetApplication(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	app, err := ctrl.emiService.GetApplication(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, app)
}

// Approve 审核通过
// @Summary 审核通过并生成还款计划
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "申请ID"
// @Success 200 {object} model.EMIApplication
// @Router /api/admin/emi/applications/{id}/approve [post]
func (ctrl *EMIController) Approve(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	app, err := ctrl.emiService.Approve(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, app, "已通过")
}

// Reject 拒绝申请
// @Summary 拒绝分期申请
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "申请ID"
// @Param body body dto.RejectEMIRequest true "原因"
// @Success 200 {object} model.EMIApplication
// @Router /api/admin/emi/applications/{id}/reject [post]
func (ctrl *EMIController) Reject(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.RejectEMIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	app, err := ctrl.emiService.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, app, "已拒绝")
}

// PayInstallment 登记还款
// @Summary 登记第 n 期还款，金额不足返回 400
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "申请ID"
// @Param n path int true "期数"
// @Param body body dto.PayInstallmentRequest true "金额"
// @Success 200 {object} model.EMIApplication
// @Router /api/admin/emi/applications/{id}/installments/{n}/pay [post]
func (ctrl *EMIController) PayInstallment(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的期数"})
		return
	}
	var req dto.PayInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	app, err := ctrl.emiService.PayInstallment(c.Request.Context(), id, n, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, app)
}
