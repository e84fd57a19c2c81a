package controller

import (
	"context"
	"net/http"

	"phonebay/internal/api/dto"
	"phonebay/internal/service"
	"phonebay/internal/task"

	"github.com/gin-gonic/gin"
)

// TaskRunner 定时任务手动触发
type TaskRunner interface {
	Trigger(ctx context.Context, name string) (interface{}, error)
	Status() []task.JobStatus
}

// AdminController 站点设置、数据修复、任务触发
type AdminController struct {
	settingsService *service.SettingsService
	datafixService  *service.DataFixService
	tasks           TaskRunner
}

func NewAdminController(settingsService *service.SettingsService, datafixService *service.DataFixService, tasks TaskRunner) *AdminController {
	return &AdminController{
		settingsService: settingsService,
		datafixService:  datafixService,
		tasks:           tasks,
	}
}

// ==================== 站点设置 ====================

// GetSettings 站点设置
// @Summary 获取站点设置
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} model.SiteSettings
// @Router /api/admin/settings [get]
func (ctrl *AdminController) GetSettings(c *gin.Context) {
	st, err := ctrl.settingsService.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, st)
}

// UpdateSettings 更新站点设置
// @Summary 更新站点设置（字段为空表示不修改）
// @Tags Admin
// @Security BearerAuth
// @Param body body dto.UpdateSettingsRequest true "设置"
// @Success 200 {object} model.SiteSettings
// @Router /api/admin/settings [put]
func (ctrl *AdminController) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	st, err := ctrl.settingsService.Update(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, st, "设置已更新")
}

// ==================== 数据修复 ====================

// ListFixes 数据修复任务
// @Summary 可用的数据修复任务
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[service.FixInfo]
// @Router /api/admin/datafix [get]
func (ctrl *AdminController) ListFixes(c *gin.Context) {
	list := ctrl.datafixService.List()
	okList(c, list, int64(len(list)))
}

// RunFix 执行数据修复
// @Summary 执行数据修复，dry_run=true 只统计不写库
// @Tags Admin
// @Security BearerAuth
// @Param name path string true "任务名"
// @Param dry_run query bool false "试运行"
// @Success 200 {object} service.FixReport
// @Router /api/admin/datafix/{name} [post]
func (ctrl *AdminController) RunFix(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true" || c.Query("dry_run") == "1"
	report, err := ctrl.datafixService.Run(c.Request.Context(), c.Param("name"), dryRun)
	if err != nil {
		if report != nil {
			// 部分完成：带上报告
			c.JSON(statusOf(err), gin.H{"error": err.Error(), "data": report})
			return
		}
		fail(c, err)
		return
	}
	ok(c, report)
}

// ==================== 定时任务 ====================

// ListTasks 任务状态
// @Summary 定时任务状态
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[task.JobStatus]
// @Router /api/admin/tasks [get]
func (ctrl *AdminController) ListTasks(c *gin.Context) {
	if ctrl.tasks == nil {
		okList(c, []task.JobStatus{}, 0)
		return
	}
	list := ctrl.tasks.Status()
	okList(c, list, int64(len(list)))
}

// TriggerTask 手动触发任务
// @Summary 立即执行一次定时任务（同步返回结果）
// @Tags Admin
// @Security BearerAuth
// @Param name path string true "任务名"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "任务正在执行"
// @Router /api/admin/tasks/{name}/trigger [post]
func (ctrl *AdminController) TriggerTask(c *gin.Context) {
	if ctrl.tasks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "定时任务未启用"})
		return
	}
	result, err := ctrl.tasks.Trigger(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	okMsg(c, result, "任务已执行")
}
