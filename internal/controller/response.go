package controller

import (
	"errors"
	"net/http"
	"strconv"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ==================== 统一响应 ====================

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func okMsg(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, gin.H{"data": data, "message": msg})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// okList 列表响应 {"data": {"total": n, "list": [...]}}
func okList[T any](c *gin.Context, list []T, total int64) {
	c.JSON(http.StatusOK, gin.H{"data": dto.NewListResponse(list, total)})
}

// fail 业务错误 -> HTTP 状态码
func fail(c *gin.Context, err error) {
	status := statusOf(err)

	var rl *service.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(rl.RetryAfter)))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Named("http").Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "服务器内部错误"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrOutOfStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// bindFail 参数绑定失败，校验错误附带字段明细
func bindFail(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "参数校验失败", "fields": fields})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误: " + err.Error()})
}

// ==================== 参数解析 ====================

// parseID 解析路径参数中的正整数 ID
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "无效的 " + name})
		return 0, false
	}
	return id, true
}

// actorOf 当前登录用户
func actorOf(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: middleware.GetUserID(c),
		Role:   middleware.GetUserRole(c),
	}
}
