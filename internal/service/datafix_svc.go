package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	datafixBatch       = 200
	datafixMaxMessages = 100
)

// ErrUnknownFix 未注册的修复任务
var ErrUnknownFix = fmt.Errorf("%w: 未知的数据修复任务", ErrNotFound)

// FixReport 数据修复报告
type FixReport struct {
	Name       string        `json:"name"`
	DryRun     bool          `json:"dry_run"`
	Scanned    int           `json:"scanned"`
	Changed    int           `json:"changed"`
	Messages   []string      `json:"messages"`
	Truncated  bool          `json:"truncated,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
}

func (r *FixReport) addf(format string, args ...interface{}) {
	if len(r.Messages) >= datafixMaxMessages {
		r.Truncated = true
		return
	}
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// FixInfo 修复任务说明
type FixInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type fixFunc func(ctx context.Context, r *FixReport) error

type fixJob struct {
	info FixInfo
	run  fixFunc
}

// ==================== DataFixService 数据修复 ====================

// DataFixService 管理员数据修复工具；dryRun 时只统计不写库
type DataFixService struct {
	uow  *repository.UnitOfWork
	emi  *EMIService
	jobs map[string]fixJob
	log  *zap.Logger
}

// NewDataFixService 创建数据修复服务
func NewDataFixService(uow *repository.UnitOfWork, emi *EMIService) *DataFixService {
	s := &DataFixService{uow: uow, emi: emi, log: zap.L().Named("datafix")}
	s.jobs = map[string]fixJob{}
	s.register("recalc-order-totals", "重新计算订单明细金额、小计与总额", s.recalcOrderTotals)
	s.register("normalize-phones", "规范化用户、商家与订单收货手机号", s.normalizePhones)
	s.register("fix-product-slugs", "补全空的或重复的商品 slug", s.fixProductSlugs)
	s.register("regenerate-emi-schedules", "重建合计与应还总额不一致的分期计划", s.regenerateEMISchedules)
	s.register("backfill-commissions", "补全商家订单明细的佣金快照", s.backfillCommissions)
	s.register("reset-negative-stock", "负库存归零", s.resetNegativeStock)
	return s
}

func (s *DataFixService) register(name, desc string, fn fixFunc) {
	s.jobs[name] = fixJob{info: FixInfo{Name: name, Description: desc}, run: fn}
}

// List 全部修复任务（按名称排序）
func (s *DataFixService) List() []FixInfo {
	out := make([]FixInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Run 执行修复任务
func (s *DataFixService) Run(ctx context.Context, name string, dryRun bool) (*FixReport, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFix, name)
	}

	start := time.Now()
	report := &FixReport{Name: name, DryRun: dryRun, Messages: []string{}}
	err := job.run(ctx, report)
	report.Duration = time.Since(start)
	report.DurationMs = report.Duration.Milliseconds()

	s.log.Info("数据修复完成",
		zap.String("name", name),
		zap.Bool("dry_run", dryRun),
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Duration("duration", report.Duration),
		zap.Error(err))
	return report, err
}

// ==================== recalc-order-totals ====================

func (s *DataFixService) recalcOrderTotals(ctx context.Context, r *FixReport) error {
	return s.uow.Orders.FindAll(ctx, datafixBatch, func(orders []model.Order) error {
		for i := range orders {
			o := &orders[i]
			r.Scanned++

			subtotal := decimal.Zero
			var fixedItems []model.OrderItem
			for _, it := range o.Items {
				line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
				subtotal = subtotal.Add(line)
				if !line.Equal(it.LineTotal) {
					it.LineTotal = line
					if it.VendorID != nil {
						it.CommissionAmount = CalculateCommission(line, it.CommissionRate)
					}
					fixedItems = append(fixedItems, it)
				}
			}
			total := subtotal.Add(o.ShippingCost).Sub(o.Discount)
			if len(fixedItems) == 0 && subtotal.Equal(o.Subtotal) && total.Equal(o.Total) {
				continue
			}

			r.Changed++
			r.addf("订单 %s: subtotal %s -> %s, total %s -> %s",
				o.OrderNumber, o.Subtotal.StringFixed(2), subtotal.StringFixed(2),
				o.Total.StringFixed(2), total.StringFixed(2))
			if r.DryRun {
				continue
			}
			err := s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
				for k := range fixedItems {
					if err := tx.Orders.UpdateItem(ctx, &fixedItems[k]); err != nil {
						return err
					}
				}
				return tx.Orders.UpdateFields(ctx, o.ID, map[string]interface{}{
					"subtotal": subtotal,
					"total":    total,
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ==================== normalize-phones ====================

func (s *DataFixService) normalizePhones(ctx context.Context, r *FixReport) error {
	// 用户：手机号唯一，规范化后冲突的只报告
	err := s.uow.Users.FindAll(ctx, datafixBatch, func(users []model.User) error {
		for _, u := range users {
			r.Scanned++
			phone, ok := normalizedChange(u.Phone)
			if !ok {
				if !utils.IsValidPhone(u.Phone) {
					r.addf("用户 #%d 手机号无效: %s", u.ID, u.Phone)
				}
				continue
			}
			exists, err := s.uow.Users.ExistsByPhone(ctx, phone)
			if err != nil {
				return err
			}
			if exists {
				r.addf("用户 #%d 手机号 %s 规范化后与已有用户冲突", u.ID, u.Phone)
				continue
			}
			r.Changed++
			r.addf("用户 #%d: %s -> %s", u.ID, u.Phone, phone)
			if !r.DryRun {
				if err := s.uow.Users.UpdateFields(ctx, u.ID, map[string]interface{}{"phone": phone}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = s.uow.Vendors.FindAll(ctx, datafixBatch, func(vendors []model.VendorProfile) error {
		for _, v := range vendors {
			r.Scanned++
			phone, ok := normalizedChange(v.Phone)
			if !ok {
				continue
			}
			r.Changed++
			r.addf("商家 #%d: %s -> %s", v.ID, v.Phone, phone)
			if !r.DryRun {
				if err := s.uow.Vendors.UpdateFields(ctx, v.ID, map[string]interface{}{"phone": phone}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.uow.Orders.FindAll(ctx, datafixBatch, func(orders []model.Order) error {
		for _, o := range orders {
			r.Scanned++
			phone, ok := normalizedChange(o.ShippingPhone)
			if !ok {
				continue
			}
			r.Changed++
			r.addf("订单 %s: %s -> %s", o.OrderNumber, o.ShippingPhone, phone)
			if !r.DryRun {
				if err := s.uow.Orders.UpdateFields(ctx, o.ID, map[string]interface{}{"shipping_phone": phone}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// normalizedChange 可以规范化且结果不同时返回新号码
func normalizedChange(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	phone, err := utils.NormalizePhone(raw)
	if err != nil || phone == raw {
		return "", false
	}
	return phone, true
}

// ==================== fix-product-slugs ====================

func (s *DataFixService) fixProductSlugs(ctx context.Context, r *FixReport) error {
	seen := make(map[string]int64)
	type fix struct {
		id         int64
		name, from string
	}
	var fixes []fix

	err := s.uow.Products.FindAll(ctx, datafixBatch, func(products []model.Product) error {
		for _, p := range products {
			r.Scanned++
			if p.Slug != "" {
				if _, dup := seen[p.Slug]; !dup {
					seen[p.Slug] = p.ID
					continue
				}
			}
			fixes = append(fixes, fix{id: p.ID, name: p.Name, from: p.Slug})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range fixes {
		slug, err := uniqueSlug(ctx, f.name, "product", func(ctx context.Context, slug string) (bool, error) {
			if _, taken := seen[slug]; taken {
				return true, nil
			}
			return s.uow.Products.SlugExists(ctx, slug, f.id)
		})
		if err != nil {
			return err
		}
		seen[slug] = f.id
		r.Changed++
		r.addf("商品 #%d: %q -> %q", f.id, f.from, slug)
		if r.DryRun {
			continue
		}
		if err := s.uow.Products.UpdateFields(ctx, f.id, map[string]interface{}{"slug": slug}); err != nil {
			return err
		}
	}
	return nil
}

// ==================== regenerate-emi-schedules ====================

func (s *DataFixService) regenerateEMISchedules(ctx context.Context, r *FixReport) error {
	var broken []int64
	err := s.uow.EMIApplications.FindByStatus(ctx, model.EMIStatusActive, datafixBatch, func(apps []model.EMIApplication) error {
		for i := range apps {
			r.Scanned++
			if !ScheduleConsistent(&apps[i]) {
				broken = append(broken, apps[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range broken {
		if r.DryRun {
			r.Changed++
			r.addf("分期申请 #%d 计划不一致", id)
			continue
		}
		changed, err := s.emi.Regenerate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if changed {
			r.Changed++
			r.addf("分期申请 #%d 已重建未还分期", id)
		}
	}
	return nil
}

// ==================== backfill-commissions ====================

func (s *DataFixService) backfillCommissions(ctx context.Context, r *FixReport) error {
	rates := make(map[int64]decimal.Decimal)
	var afterID int64
	for {
		items, err := s.uow.Orders.FindVendorItemsMissingCommission(ctx, afterID, datafixBatch)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		// 按需加载商家佣金比例
		var missing []int64
		for _, it := range items {
			if _, ok := rates[*it.VendorID]; !ok {
				missing = append(missing, *it.VendorID)
				rates[*it.VendorID] = decimal.Zero
			}
		}
		if len(missing) > 0 {
			vendors, err := s.uow.Vendors.GetByIDs(ctx, missing)
			if err != nil {
				return err
			}
			for _, v := range vendors {
				rates[v.ID] = v.CommissionRate
			}
		}

		for i := range items {
			it := &items[i]
			afterID = it.ID
			r.Scanned++

			rate := it.CommissionRate
			if rate.IsZero() {
				rate = rates[*it.VendorID]
			}
			amount := CalculateCommission(it.LineTotal, rate)
			if rate.Equal(it.CommissionRate) && amount.Equal(it.CommissionAmount) {
				continue
			}
			r.Changed++
			r.addf("订单明细 #%d: rate %s amount %s", it.ID, rate.StringFixed(2), amount.StringFixed(2))
			if r.DryRun {
				continue
			}
			it.CommissionRate, it.CommissionAmount = rate, amount
			if err := s.uow.Orders.UpdateItem(ctx, it); err != nil {
				return err
			}
		}
		if len(items) < datafixBatch {
			return nil
		}
	}
}

// ==================== reset-negative-stock ====================

func (s *DataFixService) resetNegativeStock(ctx context.Context, r *FixReport) error {
	n, err := s.uow.Products.CountNegativeStock(ctx)
	if err != nil {
		return err
	}
	r.Scanned = int(n)
	if r.DryRun || n == 0 {
		r.Changed = int(n)
		return nil
	}
	changed, err := s.uow.Products.ResetNegativeStock(ctx)
	if err != nil {
		return err
	}
	r.Changed = int(changed)
	return nil
}
