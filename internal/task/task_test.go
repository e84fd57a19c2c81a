package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/internal/service"
	"phonebay/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== TaskManager ====================

func TestTaskManager_RegisterAndTrigger(t *testing.T) {
	tm := NewTaskManager(2)
	var calls atomic.Int32

	require.NoError(t, tm.Register(Job{
		Name: "count",
		Spec: "0 0 * * * *",
		Run: func(ctx context.Context) (interface{}, error) {
			calls.Add(1)
			return map[string]int{"n": int(calls.Load())}, nil
		},
	}))

	res, err := tm.Trigger(context.Background(), "count")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"n": 1}, res)

	status := tm.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "count", status[0].Name)
	assert.EqualValues(t, 1, status[0].Runs)
	assert.NotNil(t, status[0].LastRunAt)
	assert.Empty(t, status[0].LastError)
	assert.False(t, status[0].Running)
}

func TestTaskManager_RegisterErrors(t *testing.T) {
	tm := NewTaskManager(1)
	noop := func(ctx context.Context) (interface{}, error) { return nil, nil }

	require.NoError(t, tm.Register(Job{Name: "a", Run: noop}))
	assert.Error(t, tm.Register(Job{Name: "a", Run: noop}), "重复注册")
	assert.Error(t, tm.Register(Job{Name: "b", Spec: "not a cron", Run: noop}), "非法表达式")
}

func TestTaskManager_UnknownTask(t *testing.T) {
	tm := NewTaskManager(1)
	_, err := tm.Trigger(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestTaskManager_NotReentrant(t *testing.T) {
	tm := NewTaskManager(2)
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, tm.Register(Job{
		Name: "slow",
		Run: func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		},
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = tm.Trigger(context.Background(), "slow")
	}()
	<-started

	_, err := tm.Trigger(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrTaskRunning)
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.True(t, tm.Status()[0].Running)

	close(release)
	wg.Wait()
	assert.False(t, tm.Status()[0].Running)
}

func TestTaskManager_RecordsError(t *testing.T) {
	tm := NewTaskManager(1)
	require.NoError(t, tm.Register(Job{
		Name: "boom",
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("boom")
		},
	}))

	_, err := tm.Trigger(context.Background(), "boom")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "boom", tm.Status()[0].LastError)
}

func TestTaskManager_Timeout(t *testing.T) {
	tm := NewTaskManager(1)
	require.NoError(t, tm.Register(Job{
		Name:    "wait",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	_, err := tm.Trigger(context.Background(), "wait")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ==================== 业务任务 ====================

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSMS) Send(_ context.Context, phone, message, _ string) (*model.SMSLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return &model.SMSLog{Phone: phone, Message: message, Status: model.SMSStatusSent}, nil
}

func (f *fakeSMS) SendTemplate(context.Context, string, string, map[string]string) (*model.SMSLog, error) {
	return nil, service.ErrNotFound
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type jobEnv struct {
	db       *gorm.DB
	uow      *repository.UnitOfWork
	sms      *fakeSMS
	notifier *service.NotificationService
	emi      *service.EMIService
}

func newJobEnv(t *testing.T) *jobEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	uow := repository.NewUnitOfWork(db)
	sms := &fakeSMS{}
	settings := service.NewSettingsService(uow.Settings, cache.NewMemory(time.Minute))
	notifier := service.NewNotificationService(uow.Notifications, uow.Users, sms, settings)
	return &jobEnv{
		db:       db,
		uow:      uow,
		sms:      sms,
		notifier: notifier,
		emi:      service.NewEMIService(uow, settings, notifier),
	}
}

// activeApplication 3 期 0 利率分期，已审核通过
func (e *jobEnv) activeApplication(t *testing.T) (*model.User, *model.EMIApplication) {
	t.Helper()
	ctx := context.Background()
	user := &model.User{Name: "Karim", Phone: "8801812345678", PasswordHash: "x", Role: model.RoleCustomer, IsActive: true}
	require.NoError(t, e.db.Create(user).Error)

	plan := &model.EMIPlan{
		Name: "3 months", BankName: "BRAC Bank", Months: 3,
		InterestRate: decimal.Zero, MinAmount: decimal.NewFromInt(5000), IsActive: true,
	}
	require.NoError(t, e.db.Create(plan).Error)

	order := &model.Order{
		OrderNumber:   "PBTASK0001",
		UserID:        user.ID,
		Status:        model.OrderStatusPending,
		PaymentMethod: model.PaymentMethodEMI,
		PaymentStatus: model.PaymentStatusUnpaid,
		Subtotal:      decimal.NewFromInt(30000),
		Total:         decimal.NewFromInt(30000),
		ShippingName:  "Karim",
		ShippingPhone: user.Phone,
		ShippingCity:  "Dhaka",
	}
	require.NoError(t, e.db.Create(order).Error)

	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, app.Installments, 3)
	return user, app
}

func (e *jobEnv) notifications(t *testing.T, userID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", userID, model.NotifyEMI).Count(&n).Error)
	return n
}

func TestEMITask_Reminder(t *testing.T) {
	e := newJobEnv(t)
	user, app := e.activeApplication(t)
	base := e.notifications(t, user.ID)
	sent := e.sms.count()

	task := NewEMITask(e.emi, e.notifier, 3, 2)
	task.now = func() time.Time { return app.Installments[0].DueDate.AddDate(0, 0, -2).Add(9 * time.Hour) }

	res, err := task.remind(context.Background())
	require.NoError(t, err)
	got := res.(*ReminderResult)
	assert.Equal(t, 1, got.Due)
	assert.Equal(t, 1, got.Reminded)
	assert.Zero(t, got.Failed)
	assert.Equal(t, base+1, e.notifications(t, user.ID))
	assert.Equal(t, sent+1, e.sms.count(), "模板不存在时直接发送正文")

	inst, err := e.uow.EMIInstallments.Get(context.Background(), app.ID, 1)
	require.NoError(t, err)
	assert.NotNil(t, inst.ReminderSentAt)

	// 同一天再次执行不重复提醒
	res, err = task.remind(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.(*ReminderResult).Due)
}

func TestEMITask_Overdue(t *testing.T) {
	e := newJobEnv(t)
	user, app := e.activeApplication(t)
	base := e.notifications(t, user.ID)

	task := NewEMITask(e.emi, e.notifier, 3, 2)
	task.now = func() time.Time { return app.Installments[0].DueDate.AddDate(0, 0, 1) }

	res, err := task.markOverdue(context.Background())
	require.NoError(t, err)
	got := res.(*service.OverdueResult)
	assert.Equal(t, 1, got.Marked)
	assert.Equal(t, base+1, e.notifications(t, user.ID))

	inst, err := e.uow.EMIInstallments.Get(context.Background(), app.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentOverdue, inst.Status)
}

func TestEMITask_JobsRunThroughManager(t *testing.T) {
	e := newJobEnv(t)
	task := NewEMITask(e.emi, e.notifier, 3, 0)

	tm := NewTaskManager(1)
	require.NoError(t, tm.Register(task.ReminderJob("0 0 9 * * *")))
	require.NoError(t, tm.Register(task.OverdueJob("0 30 0 * * *")))

	res, err := tm.Trigger(context.Background(), TaskEMIReminder)
	require.NoError(t, err)
	assert.Zero(t, res.(*ReminderResult).Due)

	status := tm.Status()
	require.Len(t, status, 2)
	assert.Equal(t, TaskEMIOverdue, status[0].Name, "按名称排序")
	assert.Equal(t, TaskEMIReminder, status[1].Name)
	assert.EqualValues(t, 1, status[1].Runs)
}
