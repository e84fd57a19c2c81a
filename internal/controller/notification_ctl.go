package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	notificationService *service.NotificationService
}

func NewNotificationController(notificationService *service.NotificationService) *NotificationController {
	return &NotificationController{notificationService: notificationService}
}

// List 站内通知
// @Summary 当前用户通知列表
// @Tags Notification
// @Security BearerAuth
// @Param unread query bool false "仅未读"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ListResponse[model.Notification]
// @Router /api/notifications [get]
func (ctrl *NotificationController) List(c *gin.Context) {
	var req dto.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFail(c, err)
		return
	}
	list, total, err := ctrl.notificationService.List(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, total)
}

// UnreadCount 未读数
// @Summary 未读通知数
// @Tags Notification
// @Security BearerAuth
// @Success 200 {object} dto.UnreadCountResponse
// @Router /api/notifications/unread-count [get]
func (ctrl *NotificationController) UnreadCount(c *gin.Context) {
	n, err := ctrl.notificationService.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, dto.UnreadCountResponse{Count: n})
}

// MarkRead 标记已读
// @Summary 标记单条通知已读
// @Tags Notification
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Router /api/notifications/{id}/read [post]
func (ctrl *NotificationController) MarkRead(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := ctrl.notificationService.MarkRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已读")
}

// MarkAllRead 全部已读
// @Summary 全部标记已读
// @Tags Notification
// @Security BearerAuth
// @Router /api/notifications/read-all [post]
func (ctrl *NotificationController) MarkAllRead(c *gin.Context) {
	n, err := ctrl.notificationService.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": n})
}
