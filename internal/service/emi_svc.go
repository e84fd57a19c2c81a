package service

import (
	"context"
	"fmt"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultThreshold 逾期期数达到该值时申请转为违约
const DefaultThreshold = 3

// ==================== EMIService 分期服务 ====================

// EMIService 分期方案、申请与还款
type EMIService struct {
	uow      *repository.UnitOfWork
	settings *SettingsService
	notifier *NotificationService
	now      func() time.Time
	log      *zap.Logger
}

// NewEMIService 创建分期服务
func NewEMIService(uow *repository.UnitOfWork, settings *SettingsService, notifier *NotificationService) *EMIService {
	return &EMIService{
		uow:      uow,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
		log:      zap.L().Named("emi"),
	}
}

// ==================== 方案 ====================

// ListPlans 方案列表（管理员看全部）
func (s *EMIService) ListPlans(ctx context.Context, activeOnly bool) ([]model.EMIPlan, error) {
	return s.uow.EMIPlans.List(ctx, activeOnly)
}

// ListActivePlans 可用方案，amount 不为空时按金额上下限过滤
func (s *EMIService) ListActivePlans(ctx context.Context, amount *decimal.Decimal) ([]model.EMIPlan, error) {
	plans, err := s.uow.EMIPlans.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return plans, nil
	}
	out := make([]model.EMIPlan, 0, len(plans))
	for i := range plans {
		if plans[i].AcceptsAmount(*amount) {
			out = append(out, plans[i])
		}
	}
	return out, nil
}

// CreatePlan 创建方案
func (s *EMIService) CreatePlan(ctx context.Context, req *dto.EMIPlanRequest) (*model.EMIPlan, error) {
	plan := &model.EMIPlan{IsActive: true}
	if err := applyPlanRequest(plan, req); err != nil {
		return nil, err
	}
	if err := s.uow.EMIPlans.Create(ctx, plan); err != nil {
		return nil, translateErr(err)
	}
	return plan, nil
}

// UpdatePlan 更新方案；已有申请保留下单时的利率与期数快照
func (s *EMIService) UpdatePlan(ctx context.Context, id int64, req *dto.EMIPlanRequest) (*model.EMIPlan, error) {
	plan, err := s.uow.EMIPlans.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分期方案")
	}
	if err := applyPlanRequest(plan, req); err != nil {
		return nil, err
	}
	if err := s.uow.EMIPlans.Update(ctx, plan); err != nil {
		return nil, translateErr(err)
	}
	return plan, nil
}

// DeletePlan 删除方案（软删除）
func (s *EMIService) DeletePlan(ctx context.Context, id int64) error {
	if _, err := s.uow.EMIPlans.GetByID(ctx, id); err != nil {
		return notFound(err, "分期方案")
	}
	return s.uow.EMIPlans.Delete(ctx, id)
}

func applyPlanRequest(plan *model.EMIPlan, req *dto.EMIPlanRequest) error {
	if req.Months < 1 || req.Months > model.EMIMaxMonths {
		return invalidf("分期月数须在 1~%d 之间", model.EMIMaxMonths)
	}
	if req.InterestRate.IsNegative() || req.InterestRate.GreaterThan(hundred) {
		return invalidf("年利率须在 0~100 之间")
	}
	if req.ProcessingFeePercent.IsNegative() || req.ProcessingFeePercent.GreaterThan(hundred) {
		return invalidf("手续费比例须在 0~100 之间")
	}
	if req.MinAmount.IsNegative() {
		return invalidf("最低金额不能为负")
	}
	if req.MaxAmount != nil && req.MaxAmount.LessThan(req.MinAmount) {
		return invalidf("最高金额不能低于最低金额")
	}

	plan.Name = req.Name
	plan.BankName = req.BankName
	plan.Months = req.Months
	plan.InterestRate = req.InterestRate
	plan.ProcessingFeePercent = req.ProcessingFeePercent
	plan.MinAmount = req.MinAmount
	plan.MaxAmount = decimal.NullDecimal{}
	if req.MaxAmount != nil {
		plan.MaxAmount = decimal.NewNullDecimal(*req.MaxAmount)
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	return nil
}

// ==================== 试算 / 申请 ====================

// Quote 试算，不落库
func (s *EMIService) Quote(ctx context.Context, req *dto.EMIQuoteRequest) (*EMISchedule, error) {
	plan, err := s.activePlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	return quotePlan(plan, req.Amount, req.DownPayment, s.now())
}

// quotePlan 校验金额并计算还款计划
func quotePlan(plan *model.EMIPlan, amount, downPayment decimal.Decimal, start time.Time) (*EMISchedule, error) {
	if !amount.IsPositive() {
		return nil, invalidf("金额必须大于 0")
	}
	if downPayment.IsNegative() || downPayment.GreaterThanOrEqual(amount) {
		return nil, invalidf("首付须大于等于 0 且小于总金额")
	}
	if !plan.AcceptsAmount(amount) {
		return nil, invalidf("金额不在方案 %s 的适用范围内", plan.Name)
	}

	financed := amount.Sub(downPayment)
	sched, err := CalculateEMI(financed, plan.InterestRate, plan.Months, start)
	if err != nil {
		return nil, err
	}
	sched.ProcessingFee = ProcessingFee(financed, plan.ProcessingFeePercent)
	return sched, nil
}

// newApplication 按方案构造待审核申请（含分期明细）
func newApplication(plan *model.EMIPlan, userID, orderID int64, amount, downPayment decimal.Decimal, start time.Time) (*model.EMIApplication, error) {
	sched, err := quotePlan(plan, amount, downPayment, start)
	if err != nil {
		return nil, err
	}
	return &model.EMIApplication{
		UserID:             userID,
		OrderID:            orderID,
		PlanID:             plan.ID,
		Principal:          amount,
		DownPayment:        downPayment,
		InterestRate:       plan.InterestRate,
		Months:             plan.Months,
		MonthlyInstallment: sched.MonthlyInstallment,
		TotalPayable:       sched.TotalPayable,
		TotalInterest:      sched.TotalInterest,
		ProcessingFee:      sched.ProcessingFee,
		Status:             model.EMIStatusPending,
		StartDate:          dateOnly(start),
		Installments:       toInstallments(0, sched.Lines),
	}, nil
}

func (s *EMIService) activePlan(ctx context.Context, id int64) (*model.EMIPlan, error) {
	plan, err := s.uow.EMIPlans.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分期方案")
	}
	if !plan.IsActive {
		return nil, invalidf("分期方案已停用")
	}
	return plan, nil
}

// checkEMIAllowed 站点是否开放分期及最低金额
func checkEMIAllowed(st *model.SiteSettings, amount decimal.Decimal) error {
	if !st.EMIEnabled {
		return statef("分期付款暂未开放")
	}
	if amount.LessThan(st.MinEMIAmount) {
		return invalidf("订单金额低于分期最低金额 %s", st.MinEMIAmount.StringFixed(2))
	}
	return nil
}

// Apply 为已有订单申请分期
func (s *EMIService) Apply(ctx context.Context, userID int64, req *dto.EMIApplyRequest) (*model.EMIApplication, error) {
	// 1. 订单归属
	order, err := s.uow.Orders.GetByID(ctx, req.OrderID)
	if err != nil || order.UserID != userID {
		return nil, notFoundf("订单不存在")
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, statef("订单已取消")
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, statef("订单已支付")
	}

	// 2. 站点设置 & 方案
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkEMIAllowed(st, order.Total); err != nil {
		return nil, err
	}
	plan, err := s.activePlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	// 3. 同一订单只允许一个进行中的申请
	live, err := s.uow.EMIApplications.FindLiveByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, conflictf("该订单已有进行中的分期申请")
	}

	app, err := newApplication(plan, userID, order.ID, order.Total, req.DownPayment, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.uow.EMIApplications.Create(ctx, app); err != nil {
		return nil, translateErr(err)
	}
	return s.uow.EMIApplications.GetByID(ctx, app.ID)
}

// ==================== 查询 ====================

// ListApplications 申请列表，userID 为 0 表示全部（管理员）
func (s *EMIService) ListApplications(ctx context.Context, userID int64, req *dto.ListEMIApplicationsRequest) ([]model.EMIApplication, int64, error) {
	return s.uow.EMIApplications.List(ctx, repository.EMIApplicationFilter{
		UserID: userID,
		Status: req.Status,
		Page:   repository.Page{Page: req.Page, PageSize: req.PageSize},
	})
}

// GetApplication 申请详情，非管理员只能看自己的
func (s *EMIService) GetApplication(ctx context.Context, actor Actor, id int64) (*model.EMIApplication, error) {
	app, err := s.uow.EMIApplications.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分期申请")
	}
	if !actor.IsAdmin() && app.UserID != actor.UserID {
		return nil, notFoundf("分期申请")
	}
	return app, nil
}

// ==================== 审核 ====================

// Approve 审核通过：以审核日为起点重新生成到期日
func (s *EMIService) Approve(ctx context.Context, id int64) (*model.EMIApplication, error) {
	app, err := s.uow.EMIApplications.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分期申请")
	}
	if app.Status != model.EMIStatusPending {
		return nil, statef("仅待审核的申请可以通过")
	}

	approvedAt := s.now()
	sched, err := CalculateEMI(app.Financed(), app.InterestRate, app.Months, approvedAt)
	if err != nil {
		return nil, err
	}

	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		ok, err := tx.EMIApplications.UpdateStatusFrom(ctx, app.ID, model.EMIStatusPending, map[string]interface{}{
			"status":      model.EMIStatusActive,
			"approved_at": approvedAt,
			"start_date":  dateOnly(approvedAt),
		})
		if err != nil {
			return err
		}
		if !ok {
			return statef("申请状态已变更")
		}
		if err := tx.EMIInstallments.DeleteUnpaid(ctx, app.ID); err != nil {
			return err
		}
		return tx.EMIInstallments.CreateBatch(ctx, toInstallments(app.ID, sched.Lines))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyInput{
		UserID: app.UserID,
		Type:   model.NotifyEMI,
		Title:  "分期申请已通过",
		Body:   fmt.Sprintf("Your EMI application #%d has been approved. Monthly installment: %s BDT.", app.ID, sched.MonthlyInstallment.StringFixed(2)),
		Data:   map[string]interface{}{"application_id": app.ID},
		SMS:    true,
	})
	return s.uow.EMIApplications.GetByID(ctx, app.ID)
}

// Reject 拒绝申请
func (s *EMIService) Reject(ctx context.Context, id int64, reason string) (*model.EMIApplication, error) {
	app, err := s.uow.EMIApplications.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "分期申请")
	}
	ok, err := s.uow.EMIApplications.UpdateStatusFrom(ctx, id, model.EMIStatusPending, map[string]interface{}{
		"status":        model.EMIStatusRejected,
		"reject_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, statef("仅待审核的申请可以拒绝")
	}

	s.notify(ctx, NotifyInput{
		UserID: app.UserID,
		Type:   model.NotifyEMI,
		Title:  "分期申请未通过",
		Body:   fmt.Sprintf("Your EMI application #%d was rejected: %s", app.ID, reason),
		Data:   map[string]interface{}{"application_id": app.ID},
	})
	return s.uow.EMIApplications.GetByID(ctx, id)
}

// ==================== 还款 ====================

// PayInstallment 登记还款；全部还清后申请完成
func (s *EMIService) PayInstallment(ctx context.Context, appID int64, number int, amount decimal.Decimal) (*model.EMIApplication, error) {
	app, err := s.uow.EMIApplications.GetByID(ctx, appID)
	if err != nil {
		return nil, notFound(err, "分期申请")
	}
	if app.Status != model.EMIStatusActive && app.Status != model.EMIStatusDefaulted {
		return nil, statef("申请当前状态为 %s，不能还款", app.Status)
	}

	inst, err := s.uow.EMIInstallments.Get(ctx, appID, number)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("第 %d 期", number))
	}
	if inst.Status == model.InstallmentPaid {
		return nil, statef("第 %d 期已还款", number)
	}
	if amount.LessThan(inst.Amount) {
		return nil, invalidf("还款金额不足，本期应还 %s", inst.Amount.StringFixed(2))
	}

	paidAt := s.now()
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if err := tx.EMIInstallments.UpdateFields(ctx, inst.ID, map[string]interface{}{
			"status":      model.InstallmentPaid,
			"paid_at":     paidAt,
			"paid_amount": decimal.NewNullDecimal(amount),
		}); err != nil {
			return err
		}

		paid, err := tx.EMIInstallments.CountByStatus(ctx, appID, model.InstallmentPaid)
		if err != nil {
			return err
		}
		if int(paid) >= len(app.Installments) {
			_, err = tx.EMIApplications.UpdateStatusFrom(ctx, appID, app.Status, map[string]interface{}{
				"status": model.EMIStatusCompleted,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.uow.EMIApplications.GetByID(ctx, appID)
}

// ==================== 定时任务 ====================

// OverdueResult 逾期标记结果
type OverdueResult struct {
	Marked    int                          `json:"marked"`
	Defaulted int                          `json:"defaulted"`
	Newly     []repository.DueInstallment `json:"-"`
}

// MarkOverdue 进行中申请里到期日早于今天的待还分期标记为逾期；逾期达到阈值的申请转为违约
func (s *EMIService) MarkOverdue(ctx context.Context, at time.Time) (*OverdueResult, error) {
	const batch = 200
	today := dateOnly(at)
	res := &OverdueResult{}
	touched := make(map[int64]struct{})

	for {
		items, err := s.uow.EMIInstallments.FindNewlyOverdue(ctx, today, batch)
		if err != nil {
			return res, err
		}
		for _, it := range items {
			if err := s.uow.EMIInstallments.UpdateFields(ctx, it.ID, map[string]interface{}{
				"status": model.InstallmentOverdue,
			}); err != nil {
				return res, err
			}
			res.Marked++
			res.Newly = append(res.Newly, it)
			touched[it.ApplicationID] = struct{}{}
		}
		if len(items) < batch {
			break
		}
	}

	for appID := range touched {
		n, err := s.uow.EMIInstallments.CountByStatus(ctx, appID, model.InstallmentOverdue)
		if err != nil {
			return res, err
		}
		if n < DefaultThreshold {
			continue
		}
		ok, err := s.uow.EMIApplications.UpdateStatusFrom(ctx, appID, model.EMIStatusActive, map[string]interface{}{
			"status": model.EMIStatusDefaulted,
		})
		if err != nil {
			return res, err
		}
		if ok {
			res.Defaulted++
			s.log.Warn("分期申请违约", zap.Int64("application_id", appID), zap.Int64("overdue", n))
		}
	}
	return res, nil
}

// DueForReminder [今天, 今天+daysAhead] 内到期、24 小时内未提醒过的待还分期
func (s *EMIService) DueForReminder(ctx context.Context, at time.Time, daysAhead int) ([]repository.DueInstallment, error) {
	from := dateOnly(at)
	to := from.AddDate(0, 0, daysAhead)
	return s.uow.EMIInstallments.FindDueForReminder(ctx, from, to, at.Add(-24*time.Hour), 500)
}

// MarkReminded 记录提醒时间
func (s *EMIService) MarkReminded(ctx context.Context, installmentID int64, at time.Time) error {
	return s.uow.EMIInstallments.UpdateFields(ctx, installmentID, map[string]interface{}{"reminder_sent_at": at})
}

// ==================== 数据修复 ====================

// Regenerate 以剩余本金重建未还分期，已还部分保持不变；返回是否有变更
func (s *EMIService) Regenerate(ctx context.Context, appID int64) (bool, error) {
	app, err := s.uow.EMIApplications.GetByID(ctx, appID)
	if err != nil {
		return false, notFound(err, "分期申请")
	}

	paid := make(map[int]bool, len(app.Installments))
	paidPrincipal, paidAmount := decimal.Zero, decimal.Zero
	for _, inst := range app.Installments {
		if inst.Status == model.InstallmentPaid {
			paid[inst.Number] = true
			paidPrincipal = paidPrincipal.Add(inst.Principal)
			paidAmount = paidAmount.Add(inst.Amount)
		}
	}
	// 已还期号可能不连续（先还了第 2 期），新明细只占用空出来的期号
	free := make([]int, 0, app.Months)
	for n := 1; n <= app.Months; n++ {
		if !paid[n] {
			free = append(free, n)
		}
	}
	remaining := app.Financed().Sub(paidPrincipal)
	if len(free) == 0 || !remaining.IsPositive() {
		return false, nil
	}

	lines := buildSchedule(remaining, app.InterestRate, dateOnly(app.StartDate), free)
	total := paidAmount
	for _, l := range lines {
		total = total.Add(l.Amount)
	}

	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if err := tx.EMIInstallments.DeleteUnpaid(ctx, appID); err != nil {
			return err
		}
		if err := tx.EMIInstallments.CreateBatch(ctx, toInstallments(appID, lines)); err != nil {
			return err
		}
		return tx.EMIApplications.UpdateFields(ctx, appID, map[string]interface{}{
			"monthly_installment": lines[0].Amount,
			"total_payable":       total,
			"total_interest":      total.Sub(app.Financed()),
		})
	})
	return err == nil, err
}

// ScheduleConsistent 分期明细合计是否等于应还总额、期数是否齐全
func ScheduleConsistent(app *model.EMIApplication) bool {
	if len(app.Installments) != app.Months {
		return false
	}
	sum := decimal.Zero
	for _, inst := range app.Installments {
		sum = sum.Add(inst.Amount)
	}
	return sum.Equal(app.TotalPayable)
}

func (s *EMIService) notify(ctx context.Context, in NotifyInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("发送通知失败", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}
