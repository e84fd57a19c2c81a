package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"phonebay/internal/middleware"
	"phonebay/internal/model"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ==================== 通用错误 ====================

var (
	ErrNotFound     = errors.New("资源不存在")
	ErrInvalidInput = errors.New("参数错误")
	ErrConflict     = errors.New("资源已存在")
	ErrForbidden    = errors.New("无权限操作")
	ErrUnauthorized = errors.New("未登录或登录已失效")
	ErrOutOfStock   = errors.New("库存不足")
	ErrInvalidState = errors.New("当前状态不允许该操作")
	ErrRateLimited  = errors.New("操作过于频繁")
	ErrUnavailable  = errors.New("服务暂不可用")
)

// 认证
var (
	ErrInvalidCredentials = fmt.Errorf("%w: 手机号或密码错误", ErrUnauthorized)
	ErrUserDisabled       = fmt.Errorf("%w: 账号已被禁用", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: Token 无效或已过期", ErrUnauthorized)
	ErrInvalidOTP         = fmt.Errorf("%w: 验证码错误或已过期", ErrInvalidInput)
)

// RateLimitError 限流错误，携带重试等待时间
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return middleware.FormatRetryMessage(e.RetryAfter)
}

// Is 使 errors.Is(err, ErrRateLimited) 成立
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// invalidf 参数错误
func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// conflictf 冲突错误
func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// notFoundf 不存在
func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// statef 状态错误
func statef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// notFound 把 gorm.ErrRecordNotFound 转为带名称的 ErrNotFound，其他错误原样返回
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return translateErr(err)
}

// translateErr 仓库层错误 -> 业务错误
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

// ==================== 参数解析 ====================

// parseDecimal 解析可选金额参数，空串返回 nil
func parseDecimal(s, field string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, invalidf("%s 格式错误", field)
	}
	return &d, nil
}

// parseDateRange 解析 yyyy-mm-dd 日期区间，结束日期包含当天
func parseDateRange(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, err := time.ParseInLocation(time.DateOnly, start, time.Local)
		if err != nil {
			return nil, nil, invalidf("start_date 格式应为 YYYY-MM-DD")
		}
		from = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(time.DateOnly, end, time.Local)
		if err != nil {
			return nil, nil, invalidf("end_date 格式应为 YYYY-MM-DD")
		}
		t = now.With(t).EndOfDay()
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, invalidf("结束日期不能早于开始日期")
	}
	return from, to, nil
}

// Actor 当前操作人
type Actor struct {
	UserID int64
	Role   string
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }
