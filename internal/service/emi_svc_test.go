package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMIService_Quote(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	plan := e.seedPlan(t, 12, "12")

	sched, err := e.emi.Quote(ctx, &dto.EMIQuoteRequest{PlanID: plan.ID, Amount: dec("100000")})
	require.NoError(t, err)
	assert.Equal(t, "8884.88", sched.MonthlyInstallment.StringFixed(2))
	assert.Len(t, sched.Lines, 12)

	_, err = e.emi.Quote(ctx, &dto.EMIQuoteRequest{PlanID: plan.ID, Amount: dec("4000")})
	assert.True(t, errors.Is(err, ErrInvalidInput), "低于方案最低金额")

	_, err = e.emi.Quote(ctx, &dto.EMIQuoteRequest{PlanID: plan.ID, Amount: dec("10000"), DownPayment: dec("10000")})
	assert.True(t, errors.Is(err, ErrInvalidInput), "首付不能等于总额")

	_, err = e.emi.Quote(ctx, &dto.EMIQuoteRequest{PlanID: 404, Amount: dec("10000")})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEMIService_ListActivePlans(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedPlan(t, 3, "0")
	e.seedPlan(t, 6, "9")
	inactive := e.seedPlan(t, 12, "12")
	require.NoError(t, e.db.Model(inactive).Update("is_active", false).Error)

	plans, err := e.emi.ListActivePlans(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	small := dec("1000")
	plans, err = e.emi.ListActivePlans(ctx, &small)
	require.NoError(t, err)
	assert.Empty(t, plans, "金额低于最低分期金额")
}

func TestEMIService_ApplyApprovePay(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 3, "0")
	order := e.seedOrder(t, user.ID, 30000, model.PaymentMethodEMI)

	// 1. 申请
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID, DownPayment: dec("3000")})
	require.NoError(t, err)
	assert.Equal(t, model.EMIStatusPending, app.Status)
	assert.True(t, app.Financed().Equal(dec("27000")))
	require.Len(t, app.Installments, 3)

	_, err = e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	assert.True(t, errors.Is(err, ErrConflict), "同一订单只能有一个进行中的申请")

	other := e.seedUser(t, "8801812345678", model.RoleCustomer)
	_, err = e.emi.Apply(ctx, other.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	assert.True(t, errors.Is(err, ErrNotFound))

	// 2. 审核
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EMIStatusActive, app.Status)
	require.NotNil(t, app.ApprovedAt)
	assert.Equal(t, addMonthsClamped(dateOnly(time.Now()), 1).Format("2006-01-02"), app.Installments[0].DueDate.Format("2006-01-02"))

	_, err = e.emi.Approve(ctx, app.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))

	// 3. 还款
	_, err = e.emi.PayInstallment(ctx, app.ID, 1, dec("100"))
	assert.True(t, errors.Is(err, ErrInvalidInput), "金额不足")

	for i := 1; i <= 3; i++ {
		app, err = e.emi.PayInstallment(ctx, app.ID, i, dec("9000"))
		require.NoError(t, err)
	}
	assert.Equal(t, model.EMIStatusCompleted, app.Status)

	_, err = e.emi.PayInstallment(ctx, app.ID, 1, dec("9000"))
	assert.True(t, errors.Is(err, ErrInvalidState))

	// 审核通知
	var count int64
	require.NoError(t, e.db.Model(&model.Notification{}).Where("user_id = ? AND type = ?", user.ID, model.NotifyEMI).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEMIService_ApplyRespectsSettings(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 3, "0")

	small := e.seedOrder(t, user.ID, 4000, model.PaymentMethodEMI)
	_, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: small.ID, PlanID: plan.ID})
	assert.True(t, errors.Is(err, ErrInvalidInput), "低于站点最低分期金额")

	off := false
	_, err = e.settings.Update(ctx, &dto.UpdateSettingsRequest{EMIEnabled: &off})
	require.NoError(t, err)
	order := e.seedOrder(t, user.ID, 30000, model.PaymentMethodEMI)
	_, err = e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestEMIService_Reject(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "9")
	order := e.seedOrder(t, user.ID, 30000, model.PaymentMethodEMI)

	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)

	app, err = e.emi.Reject(ctx, app.ID, "收入证明不足")
	require.NoError(t, err)
	assert.Equal(t, model.EMIStatusRejected, app.Status)

	_, err = e.emi.Reject(ctx, app.ID, "again")
	assert.True(t, errors.Is(err, ErrInvalidState))

	// 被拒后可以重新申请
	_, err = e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	assert.NoError(t, err)
}

func TestEMIService_MarkOverdueDefaults(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "12")
	order := e.seedOrder(t, user.ID, 60000, model.PaymentMethodEMI)

	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)

	// 第 1 期到期后一天：1 期逾期，未违约
	at := app.Installments[0].DueDate.AddDate(0, 0, 1)
	res, err := e.emi.MarkOverdue(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
	assert.Zero(t, res.Defaulted)
	require.Len(t, res.Newly, 1)
	assert.Equal(t, user.ID, res.Newly[0].UserID)

	// 重复执行不重复标记
	res, err = e.emi.MarkOverdue(ctx, at)
	require.NoError(t, err)
	assert.Zero(t, res.Marked)

	// 第 3 期到期后：累计 3 期逾期，转为违约
	res, err = e.emi.MarkOverdue(ctx, app.Installments[2].DueDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Marked)
	assert.Equal(t, 1, res.Defaulted)

	got, err := e.uow.EMIApplications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EMIStatusDefaulted, got.Status)

	// 违约后仍可还逾期的分期
	_, err = e.emi.PayInstallment(ctx, app.ID, 1, got.Installments[0].Amount)
	assert.NoError(t, err)
}

func TestEMIService_DueForReminder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 3, "0")
	order := e.seedOrder(t, user.ID, 30000, model.PaymentMethodEMI)
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)

	at := app.Installments[0].DueDate.AddDate(0, 0, -2).Add(10 * time.Hour)
	due, err := e.emi.DueForReminder(ctx, at, 3)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Number)

	require.NoError(t, e.emi.MarkReminded(ctx, due[0].ID, at))
	due, err = e.emi.DueForReminder(ctx, at.Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Empty(t, due, "24 小时内不重复提醒")
}

func TestEMIService_Regenerate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "12")
	order := e.seedOrder(t, user.ID, 60000, model.PaymentMethodEMI)
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)
	_, err = e.emi.PayInstallment(ctx, app.ID, 1, app.Installments[0].Amount)
	require.NoError(t, err)

	// 人为破坏：删掉最后一期
	require.NoError(t, e.db.Where("application_id = ? AND number = ?", app.ID, 6).Delete(&model.EMIInstallment{}).Error)
	broken, err := e.uow.EMIApplications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.False(t, ScheduleConsistent(broken))

	changed, err := e.emi.Regenerate(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	fixed, err := e.uow.EMIApplications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, fixed.Installments, 6)
	assert.True(t, ScheduleConsistent(fixed))
	assert.Equal(t, model.InstallmentPaid, fixed.Installments[0].Status, "已还部分保持不变")
	for i, inst := range fixed.Installments {
		assert.Equal(t, i+1, inst.Number)
	}
}

func TestEMIService_RegenerateAfterOutOfOrderPayment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "12")
	order := e.seedOrder(t, user.ID, 60000, model.PaymentMethodEMI)
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	app, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)

	// 先还第 2 期，第 1 期仍待还
	second := app.Installments[1]
	require.Equal(t, 2, second.Number)
	_, err = e.emi.PayInstallment(ctx, app.ID, 2, second.Amount)
	require.NoError(t, err)

	_, err = e.emi.Regenerate(ctx, app.ID)
	require.NoError(t, err, "期号不能与已还的第 2 期冲突")

	fixed, err := e.uow.EMIApplications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, fixed.Installments, 6)
	assert.True(t, ScheduleConsistent(fixed))

	start := dateOnly(fixed.StartDate)
	for i, inst := range fixed.Installments {
		assert.Equal(t, i+1, inst.Number)
		assert.True(t, addMonthsClamped(start, inst.Number).Equal(dateOnly(inst.DueDate)), "第 %d 期到期日按期号计算", inst.Number)
	}
	assert.Equal(t, model.InstallmentPaid, fixed.Installments[1].Status)
	assert.True(t, second.Amount.Equal(fixed.Installments[1].Amount), "已还部分保持不变")
	assert.Equal(t, model.InstallmentPending, fixed.Installments[0].Status)

	// 剩余本金 = 贷款额 - 已还本金，新明细还完后余额归零
	last := fixed.Installments[5]
	assert.True(t, last.Balance.IsZero())
	principal := decimal.Zero
	for _, inst := range fixed.Installments {
		principal = principal.Add(inst.Principal)
	}
	assert.True(t, fixed.Financed().Equal(principal), "本金合计 %s", principal)
}
