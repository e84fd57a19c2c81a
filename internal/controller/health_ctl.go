package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	db      *gorm.DB
	started time.Time
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db, started: time.Now()}
}

// Healthz 健康检查
// @Summary 健康检查（数据库连通性）
// @Tags Health
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (ctrl *HealthController) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := gin.H{
		"status": "ok",
		"uptime": time.Since(ctrl.started).Truncate(time.Second).String(),
	}

	sqlDB, err := ctrl.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = "ok"
	c.JSON(http.StatusOK, resp)
}
