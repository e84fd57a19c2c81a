package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VendorService 商家入驻与结算
type VendorService struct {
	uow      *repository.UnitOfWork
	settings *SettingsService
	notifier *NotificationService
	now      func() time.Time
	log      *zap.Logger
}

// NewVendorService 创建商家服务
func NewVendorService(uow *repository.UnitOfWork, settings *SettingsService, notifier *NotificationService) *VendorService {
	return &VendorService{
		uow:      uow,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
		log:      zap.L().Named("vendor"),
	}
}

// CalculateCommission 佣金 = 行金额 * 比例% ，保留两位
func CalculateCommission(lineTotal, rate decimal.Decimal) decimal.Decimal {
	return lineTotal.Mul(rate).Div(hundred).Round(2)
}

// Apply 申请入驻，每个用户只能有一个商家资料
func (s *VendorService) Apply(ctx context.Context, userID int64, req *dto.VendorApplyRequest) (*model.VendorProfile, error) {
	existing, err := s.uow.Vendors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictf("已提交过入驻申请")
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(ctx, req.ShopName, "shop", func(ctx context.Context, slug string) (bool, error) {
		return s.uow.Vendors.SlugExists(ctx, slug)
	})
	if err != nil {
		return nil, err
	}

	v := &model.VendorProfile{
		UserID:         userID,
		ShopName:       strings.TrimSpace(req.ShopName),
		Slug:           slug,
		Email:          req.Email,
		Address:        req.Address,
		LogoURL:        req.LogoURL,
		CommissionRate: st.DefaultCommissionRate,
		Status:         model.VendorStatusPending,
		Balance:        decimal.Zero,
	}
	if req.Phone != "" {
		if v.Phone, err = utils.NormalizePhone(req.Phone); err != nil {
			return nil, invalidf("手机号格式错误")
		}
	}
	if err := s.uow.Vendors.Create(ctx, v); err != nil {
		return nil, translateErr(err)
	}
	return v, nil
}

// Get 商家详情
func (s *VendorService) Get(ctx context.Context, id int64) (*model.VendorProfile, error) {
	v, err := s.uow.Vendors.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "商家")
	}
	return v, nil
}

// GetByUser 当前用户的商家资料
func (s *VendorService) GetByUser(ctx context.Context, userID int64) (*model.VendorProfile, error) {
	v, err := s.uow.Vendors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFoundf("尚未申请入驻")
	}
	return v, nil
}

// List 商家列表
func (s *VendorService) List(ctx context.Context, req *dto.ListVendorsRequest) ([]model.VendorProfile, int64, error) {
	return s.uow.Vendors.List(ctx, req.Status, repository.Page{Page: req.Page, PageSize: req.PageSize})
}

// Update 商家更新自己的资料
func (s *VendorService) Update(ctx context.Context, userID int64, req *dto.VendorUpdateRequest) (*model.VendorProfile, error) {
	v, err := s.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.ShopName != nil {
		fields["shop_name"] = strings.TrimSpace(*req.ShopName)
	}
	if req.Phone != nil {
		phone, err := utils.NormalizePhone(*req.Phone)
		if err != nil {
			return nil, invalidf("手机号格式错误")
		}
		fields["phone"] = phone
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Address != nil {
		fields["address"] = *req.Address
	}
	if req.LogoURL != nil {
		fields["logo_url"] = *req.LogoURL
	}
	if len(fields) > 0 {
		if err := s.uow.Vendors.UpdateFields(ctx, v.ID, fields); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, v.ID)
}

// Approve 审核通过，用户角色升级为 vendor
func (s *VendorService) Approve(ctx context.Context, id int64, req *dto.VendorApproveRequest) (*model.VendorProfile, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == model.VendorStatusApproved {
		return nil, statef("商家已审核通过")
	}

	fields := map[string]interface{}{
		"status":      model.VendorStatusApproved,
		"approved_at": s.now(),
	}
	if req != nil && req.CommissionRate != nil {
		if req.CommissionRate.IsNegative() || req.CommissionRate.GreaterThan(hundred) {
			return nil, invalidf("佣金比例须在 0~100 之间")
		}
		fields["commission_rate"] = *req.CommissionRate
	}

	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if err := tx.Vendors.UpdateFields(ctx, v.ID, fields); err != nil {
			return err
		}
		return tx.Users.UpdateFields(ctx, v.UserID, map[string]interface{}{"role": model.RoleVendor})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyInput{
		UserID: v.UserID,
		Type:   model.NotifyVendor,
		Title:  "商家入驻已通过",
		Body:   fmt.Sprintf("Your shop %s is now live on Phone Bay.", v.ShopName),
		Data:   map[string]interface{}{"vendor_id": v.ID},
		SMS:    true,
	})
	return s.Get(ctx, v.ID)
}

// Suspend 暂停商家，用户角色降回 customer
func (s *VendorService) Suspend(ctx context.Context, id int64) (*model.VendorProfile, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == model.VendorStatusSuspended {
		return nil, statef("商家已暂停")
	}

	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		if err := tx.Vendors.UpdateFields(ctx, v.ID, map[string]interface{}{"status": model.VendorStatusSuspended}); err != nil {
			return err
		}
		return tx.Users.UpdateFields(ctx, v.UserID, map[string]interface{}{"role": model.RoleCustomer})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyInput{
		UserID: v.UserID,
		Type:   model.NotifyVendor,
		Title:  "商家已被暂停",
		Body:   fmt.Sprintf("Your shop %s has been suspended. Please contact support.", v.ShopName),
		Data:   map[string]interface{}{"vendor_id": v.ID},
	})
	return s.Get(ctx, v.ID)
}

// Dashboard 商家看板
func (s *VendorService) Dashboard(ctx context.Context, vendorID int64) (*dto.VendorDashboard, error) {
	v, err := s.Get(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	products, err := s.uow.Products.CountByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	sales, err := s.uow.Orders.VendorSales(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return &dto.VendorDashboard{
		Vendor:         v,
		ProductCount:   products,
		OrderItemCount: sales.ItemCount,
		GrossSales:     sales.GrossSales,
		Commission:     sales.Commission,
		NetEarnings:    sales.GrossSales.Sub(sales.Commission),
		Balance:        v.Balance,
	}, nil
}

// approvedVendorOf 当前用户对应的已审核商家
func (s *VendorService) approvedVendorOf(ctx context.Context, userID int64) (*model.VendorProfile, error) {
	v, err := s.uow.Vendors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v == nil || v.Status != model.VendorStatusApproved {
		return nil, fmt.Errorf("%w: 商家未通过审核", ErrForbidden)
	}
	return v, nil
}

// creditDelivered 订单签收后把净收入（行金额 - 佣金）记入商家余额；在订单事务内调用
func creditDelivered(ctx context.Context, tx *repository.UnitOfWork, items []model.OrderItem) error {
	net := make(map[int64]decimal.Decimal)
	for _, it := range items {
		if it.VendorID == nil {
			continue
		}
		net[*it.VendorID] = net[*it.VendorID].Add(it.LineTotal.Sub(it.CommissionAmount))
	}
	for vendorID, amount := range net {
		if err := tx.Vendors.AddBalance(ctx, vendorID, amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *VendorService) notify(ctx context.Context, in NotifyInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("发送通知失败", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}
