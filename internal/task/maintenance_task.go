package task

import (
	"context"
	"time"

	"phonebay/internal/service"
	"phonebay/pkg/database"
)

const (
	TaskSMSRetry             = "sms-retry"
	TaskOrderExpiry          = "order-expiry"
	TaskPartitionMaintenance = "partition-maintenance"
)

// smsRetryLookback 只重发最近一天内失败的短信
const smsRetryLookback = 24 * time.Hour

// ==================== 短信重发 ====================

// SMSRetryJob 重发失败短信
func SMSRetryJob(spec string, sms *service.SMSService, maxAttempts int) Job {
	return Job{
		Name:    TaskSMSRetry,
		Spec:    spec,
		Timeout: 10 * time.Minute,
		Run: func(ctx context.Context) (interface{}, error) {
			return sms.RetryFailed(ctx, time.Now().Add(-smsRetryLookback), maxAttempts)
		},
	}
}

// ==================== 未支付订单过期 ====================

// OrderExpiryResult 过期结果
type OrderExpiryResult struct {
	Expired int `json:"expired"`
}

// OrderExpiryJob 取消超时未支付的在线支付订单并释放库存
func OrderExpiryJob(spec string, orders *service.OrderService, window time.Duration) Job {
	return Job{
		Name:    TaskOrderExpiry,
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) (interface{}, error) {
			n, err := orders.ExpireUnpaid(ctx, window)
			return &OrderExpiryResult{Expired: n}, err
		},
	}
}

// ==================== 分区维护 ====================

// PartitionJob 预建未来分区、清理过期分区
func PartitionJob(spec string, m *database.PartitionManager, monthsAhead int) Job {
	return Job{
		Name:    TaskPartitionMaintenance,
		Spec:    spec,
		Timeout: 30 * time.Minute,
		Run: func(ctx context.Context) (interface{}, error) {
			return m.Maintain(ctx, time.Now(), monthsAhead)
		},
	}
}
