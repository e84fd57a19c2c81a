package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

// SMSController 短信后台：模板、日志、手动发送
type SMSController struct {
	smsService *service.SMSService
}

func NewSMSController(smsService *service.SMSService) *SMSController {
	return &SMSController{smsService: smsService}
}

// ==================== 模板 ====================

// ListTemplates 模板列表
// @Summary 短信模板列表
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[model.SMSTemplate]
// @Router /api/admin/sms/templates [get]
func (ctrl *SMSController) ListTemplates(c *gin.Context) {
	list, err := ctrl.smsService.ListTemplates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// CreateTemplate 创建模板
// @Summary 创建短信模板，正文使用 {name} 占位符
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.SMSTemplateRequest true "模板"
// @Success 201 {object} model.SMSTemplate
// @Router /api/admin/sms/templates [post]
func (ctrl *SMSController) CreateTemplate(c *gin.Context) {
	var req dto.SMSTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	tpl, err := ctrl.smsService.CreateTemplate(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, tpl)
}

// UpdateTemplate 更新模板
// @Summary 更新短信模板
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Param body body dto.SMSTemplateRequest true "模板"
// @Success 200 {object} model.SMSTemplate
// @Router /api/admin/sms/templates/{id} [put]
func (ctrl *SMSController) UpdateTemplate(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.SMSTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	tpl, err := ctrl.smsService.UpdateTemplate(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tpl)
}

// DeleteTemplate 删除模板
// @Summary 删除短信模板
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "模板ID"
// @Router /api/admin/sms/templates/{id} [delete]
func (ctrl *SMSController) DeleteTemplate(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.smsService.DeleteTemplate(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已删除")
}

// ==================== 日志 / 发送 ====================

// ListLogs 发送日志
// @Summary 短信发送日志
// @Tags Admin
// @Security BearerAuth
// @Param phone query string false "手机号"
// @Param status query string false "pending | sent | failed"
// @Param start_date query string false "开始日期"
// @Param end_date query string false "结束日期"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.SMSLog]
// @Router /api/admin/sms/logs [get]
func (ctrl *SMSController) ListLogs(c *gin.Context) {
	var req dto.ListSMSLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.smsService.ListLogs(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// Send 单条发送
// @Summary 发送单条短信（纯文本或模板）
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.SendSMSRequest true "号码与内容"
// @Success 200 {object} model.SMSLog
// @Failure 503 {object} map[string]string "所有通道发送失败"
// @Router /api/admin/sms/send [post]
func (ctrl *SMSController) Send(c *gin.Context) {
	var req dto.SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	entry, err := ctrl.smsService.SendRequest(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

// Bulk 群发
// @Summary 群发短信，单个号码失败不影响其他号码
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.BulkSMSRequest true "号码列表与内容"
// @Success 200 {object} dto.BulkSMSResult
// @Router /api/admin/sms/bulk [post]
func (ctrl *SMSController) Bulk(c *gin.Context) {
	var req dto.BulkSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	ok(c, ctrl.smsService.SendBulk(c.Request.Context(), req.Phones, req.Message))
}
