package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按 key 的冷却限流（OTP 发送、手动触发任务等）
type CooldownLimiter struct {
	locks sync.Map // key -> *cooldownEntry
	now   func() time.Time
}

type cooldownEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewCooldownLimiter 创建冷却限流器
func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{now: time.Now}
}

// 全局实例
var globalCooldown = NewCooldownLimiter()

// GetCooldown 获取全局冷却限流器
func GetCooldown() *CooldownLimiter {
	return globalCooldown
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Check 检查并在允许时记录本次执行
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &cooldownEntry{})
	entry := actual.(*cooldownEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(entry.lastTime); elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}
	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Gin 中间件 ====================

// Cooldown 按路由参数限流，如 /admin/tasks/:name/trigger
func Cooldown(scope, param string, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", scope, c.Param(param))
		result := GetCooldown().Check(key, interval)
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       FormatRetryMessage(result.RetryAfter),
				"retry_after": RetryAfterSeconds(result.RetryAfter),
			})
			return
		}
		c.Next()
	}
}

// RetryAfterSeconds 向上取整的秒数
func RetryAfterSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}

// FormatRetryMessage 格式化重试提示信息
func FormatRetryMessage(d time.Duration) string {
	seconds := RetryAfterSeconds(d)
	if seconds < 60 {
		return fmt.Sprintf("操作过于频繁，请 %d 秒后重试", seconds)
	}

	minutes, rest := seconds/60, seconds%60
	if rest == 0 {
		return fmt.Sprintf("操作过于频繁，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("操作过于频繁，请 %d 分 %d 秒后重试", minutes, rest)
}
