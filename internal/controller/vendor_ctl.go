package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

type VendorController struct {
	vendorService *service.VendorService
}

func NewVendorController(vendorService *service.VendorService) *VendorController {
	return &VendorController{vendorService: vendorService}
}

// ==================== 商家自助 ====================

// Apply 申请入驻
// @Summary 申请成为商家，审核通过前为 pending
// @Tags Vendor
// @Security BearerAuth
// @Param body body dto.VendorApplyRequest true "店铺信息"
// @Success 201 {object} model.VendorProfile
// @Failure 409 {object} map[string]string "已申请过"
// @Router /api/vendors/apply [post]
func (ctrl *VendorController) Apply(c *gin.Context) {
	var req dto.VendorApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	v, err := ctrl.vendorService.Apply(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, v)
}

// Me 我的店铺
// @Summary 当前用户的商家资料
// @Tags Vendor
// @Security BearerAuth
// @Success 200 {object} model.VendorProfile
// @Router /api/vendors/me [get]
func (ctrl *VendorController) Me(c *gin.Context) {
	v, err := ctrl.vendorService.GetByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

// UpdateMe 更新店铺资料
// @Summary 更新店铺资料
// @Tags Vendor
// @Security BearerAuth
// @Param body body dto.VendorUpdateRequest true "修改内容"
// @Success 200 {object} model.VendorProfile
// @Router /api/vendors/me [put]
func (ctrl *VendorController) UpdateMe(c *gin.Context) {
	var req dto.VendorUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	v, err := ctrl.vendorService.Update(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

// Dashboard 商家看板
// @Summary 商品数、销售额、佣金与余额
// @Tags Vendor
// @Security BearerAuth
// @Success 200 {object} dto.VendorDashboard
// @Router /api/vendors/me/dashboard [get]
func (ctrl *VendorController) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := ctrl.vendorService.GetByUser(ctx, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	board, err := ctrl.vendorService.Dashboard(ctx, v.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, board)
}

// ==================== 管理接口 ====================

// List 商家列表
// @Summary 商家列表（管理员）
// @Tags Admin
// @Security BearerAuth
// @Param status query string false "pending | approved | suspended"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.VendorProfile]
// @Router /api/admin/vendors [get]
func (ctrl *VendorController) List(c *gin.Context) {
	var req dto.ListVendorsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.vendorService.List(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// Get 商家详情
// @Summary 商家详情（管理员）
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "商家ID"
// @Success 200 {object} dto.VendorDashboard
// @Router /api/admin/vendors/{id} [get]
func (ctrl *VendorController) Get(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	board, err := ctrl.vendorService.Dashboard(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, board)
}

// Approve 审核通过
// @Summary 审核通过，可覆盖佣金比例；用户角色升级为 vendor
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "商家ID"
// @Param body body dto.VendorApproveRequest false "佣金比例"
// @Success 200 {object} model.VendorProfile
// @Router /api/admin/vendors/{id}/approve [post]
func (ctrl *VendorController) Approve(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.VendorApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFail(c, err)
			return
		}
	}
	v, err := ctrl.vendorService.Approve(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, v, "已通过")
}

// Suspend 停用商家
// @Summary 停用商家
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "商家ID"
// @Success 200 {object} model.VendorProfile
// @Router /api/admin/vendors/{id}/suspend [post]
func (ctrl *VendorController) Suspend(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	v, err := ctrl.vendorService.Suspend(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, v, "已停用")
}
