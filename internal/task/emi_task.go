package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/internal/service"

	"go.uber.org/zap"
)

const (
	TaskEMIReminder = "emi-reminder"
	TaskEMIOverdue  = "emi-overdue"
)

// ==================== EMITask 分期提醒 / 逾期 ====================

// EMITask 分期相关定时任务
type EMITask struct {
	emi      *service.EMIService
	notifier *service.NotificationService
	now      func() time.Time
	log      *zap.Logger

	// 控制并发发送提醒的数量，防止短信通道被打满
	concurrencyLimit int
	daysAhead        int
}

// NewEMITask 创建分期任务
func NewEMITask(emi *service.EMIService, notifier *service.NotificationService, daysAhead, concurrency int) *EMITask {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &EMITask{
		emi:              emi,
		notifier:         notifier,
		now:              time.Now,
		log:              zap.L().Named("task.emi"),
		concurrencyLimit: concurrency,
		daysAhead:        daysAhead,
	}
}

// ReminderJob 到期前提醒
func (t *EMITask) ReminderJob(spec string) Job {
	return Job{Name: TaskEMIReminder, Spec: spec, Timeout: 30 * time.Minute, Run: t.remind}
}

// OverdueJob 逾期标记 + 违约判定
func (t *EMITask) OverdueJob(spec string) Job {
	return Job{Name: TaskEMIOverdue, Spec: spec, Timeout: 30 * time.Minute, Run: t.markOverdue}
}

// ReminderResult 提醒结果
type ReminderResult struct {
	Due      int `json:"due"`
	Reminded int `json:"reminded"`
	Failed   int `json:"failed"`
}

func (t *EMITask) remind(ctx context.Context) (interface{}, error) {
	at := t.now()
	due, err := t.emi.DueForReminder(ctx, at, t.daysAhead)
	if err != nil {
		return nil, err
	}
	res := &ReminderResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	// 1. 定义信号量通道，容量即为并发上限
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup
	var reminded, failed atomic.Int64

	for i := range due {
		select {
		case <-ctx.Done():
			wg.Wait()
			res.Reminded, res.Failed = int(reminded.Load()), int(failed.Load())
			return res, ctx.Err()
		default:
		}

		// 2. 获取信号量
		sem <- struct{}{}
		wg.Add(1)

		go func(d repository.DueInstallment) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := t.sendReminder(ctx, d, at); err != nil {
				// 日志仅记录，不中断其他协程
				t.log.Warn("分期提醒失败", zap.Int64("installment_id", d.ID), zap.Error(err))
				failed.Add(1)
				return
			}
			reminded.Add(1)
		}(due[i])
	}

	// 3. 等待所有 Goroutine 完成
	wg.Wait()
	res.Reminded, res.Failed = int(reminded.Load()), int(failed.Load())
	return res, nil
}

func (t *EMITask) sendReminder(ctx context.Context, d repository.DueInstallment, at time.Time) error {
	amount := d.Amount.StringFixed(2)
	dueDate := d.DueDate.Format(time.DateOnly)
	_, err := t.notifier.Notify(ctx, service.NotifyInput{
		UserID: d.UserID,
		Type:   model.NotifyEMI,
		Title:  "分期还款提醒",
		Body:   fmt.Sprintf("Reminder: EMI installment #%d of %s BDT is due on %s.", d.Number, amount, dueDate),
		Data: map[string]interface{}{
			"application_id": d.ApplicationID,
			"installment":    d.Number,
			"order_id":       d.OrderID,
		},
		SMS:         true,
		SMSTemplate: model.TemplateEMIReminder,
		SMSVars: map[string]string{
			"number":   fmt.Sprint(d.Number),
			"amount":   amount,
			"due_date": dueDate,
		},
	})
	if err != nil {
		return err
	}
	return t.emi.MarkReminded(ctx, d.ID, at)
}

func (t *EMITask) markOverdue(ctx context.Context) (interface{}, error) {
	res, err := t.emi.MarkOverdue(ctx, t.now())
	if err != nil {
		return res, err
	}

	for _, d := range res.Newly {
		amount := d.Amount.StringFixed(2)
		_, err := t.notifier.Notify(ctx, service.NotifyInput{
			UserID: d.UserID,
			Type:   model.NotifyEMI,
			Title:  "分期已逾期",
			Body: fmt.Sprintf("Your EMI installment #%d of %s BDT was due on %s and is now overdue.",
				d.Number, amount, d.DueDate.Format(time.DateOnly)),
			Data: map[string]interface{}{
				"application_id": d.ApplicationID,
				"installment":    d.Number,
			},
			SMS:         true,
			SMSTemplate: model.TemplateEMIOverdue,
			SMSVars: map[string]string{
				"number":   fmt.Sprint(d.Number),
				"amount":   amount,
				"due_date": d.DueDate.Format(time.DateOnly),
			},
		})
		if err != nil {
			t.log.Warn("逾期通知失败", zap.Int64("installment_id", d.ID), zap.Error(err))
		}
	}
	return res, nil
}
