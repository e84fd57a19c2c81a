package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	orderNumberPrefix   = "PB"
	orderNumberAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	orderNumberAttempts = 5

	// DefaultUnpaidExpiry 在线支付订单未付款的保留时长
	DefaultUnpaidExpiry = 30 * time.Minute
)

// ==================== OrderService 订单服务 ====================

// OrderService 下单、订单状态流转与统计
type OrderService struct {
	uow      *repository.UnitOfWork
	settings *SettingsService
	shipping *ShippingService
	emi      *EMIService
	notifier *NotificationService
	suffix   func() string
	now      func() time.Time
	log      *zap.Logger
}

// NewOrderService 创建订单服务
func NewOrderService(uow *repository.UnitOfWork, settings *SettingsService, shipping *ShippingService, emi *EMIService, notifier *NotificationService) (*OrderService, error) {
	suffix, err := nanoid.CustomASCII(orderNumberAlphabet, 6)
	if err != nil {
		return nil, fmt.Errorf("初始化订单号生成器失败: %w", err)
	}
	return &OrderService{
		uow:      uow,
		settings: settings,
		shipping: shipping,
		emi:      emi,
		notifier: notifier,
		suffix:   suffix,
		now:      time.Now,
		log:      zap.L().Named("order"),
	}, nil
}

// ==================== 下单 ====================

// checkoutLine 下单行（事务前准备好的快照）
type checkoutLine struct {
	product *model.Product
	qty     int
	price   decimal.Decimal
	total   decimal.Decimal
}

// Checkout 购物车结算
//  1. 事务前：读取购物车、站点设置、运费、分期方案、商家佣金
//  2. 事务内：扣库存、写订单与明细、创建分期申请、清理已下单的购物车行
//  3. 提交后：发送下单通知
func (s *OrderService) Checkout(ctx context.Context, userID int64, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	// 1. 购物车
	cart, err := s.uow.Carts.GetWithItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, invalidf("购物车为空")
	}

	lines := make([]checkoutLine, 0, len(cart.Items))
	subtotal, weight := decimal.Zero, decimal.Zero
	allEMI := true
	for _, it := range cart.Items {
		p := it.Product
		if p == nil || p.DeletedAt.Valid || !p.IsActive {
			return nil, invalidf("商品 #%d 已下架", it.ProductID)
		}
		if p.Stock < it.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		price := p.EffectivePrice()
		line := checkoutLine{product: p, qty: it.Quantity, price: price, total: price.Mul(qty)}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.total)
		weight = weight.Add(p.Weight.Mul(qty))
		allEMI = allEMI && p.EMIAvailable
	}

	// 2. 站点设置与支付方式
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if st.MaintenanceMode {
		return nil, fmt.Errorf("%w: 系统维护中，暂停下单", ErrUnavailable)
	}
	if req.PaymentMethod == model.PaymentMethodCOD && !st.CODEnabled {
		return nil, statef("货到付款暂未开放")
	}

	// 3. 运费
	params := QuoteParams{City: req.ShippingCity, Weight: weight, Subtotal: subtotal}
	if req.ShippingMethodID != nil {
		params.MethodID = *req.ShippingMethodID
	}
	quote, err := s.shipping.QuoteCheapest(ctx, params)
	if err != nil {
		return nil, err
	}
	discount := decimal.Zero
	total := subtotal.Add(quote.Cost).Sub(discount)

	// 4. 分期
	var plan *model.EMIPlan
	if req.PaymentMethod == model.PaymentMethodEMI {
		if req.EMIPlanID == nil {
			return nil, invalidf("分期付款必须选择分期方案")
		}
		if !allEMI {
			return nil, invalidf("购物车中有商品不支持分期")
		}
		if err := checkEMIAllowed(st, total); err != nil {
			return nil, err
		}
		if plan, err = s.emi.activePlan(ctx, *req.EMIPlanID); err != nil {
			return nil, err
		}
	}

	// 5. 商家佣金比例
	rates, err := s.vendorRates(ctx, lines)
	if err != nil {
		return nil, err
	}

	number, err := s.newOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &model.Order{
		OrderNumber:      number,
		UserID:           userID,
		Status:           model.OrderStatusPending,
		PaymentMethod:    req.PaymentMethod,
		PaymentStatus:    model.PaymentStatusUnpaid,
		Subtotal:         subtotal,
		ShippingCost:     quote.Cost,
		Discount:         discount,
		Total:            total,
		ShippingName:     req.ShippingName,
		ShippingPhone:    req.ShippingPhone,
		ShippingAddress:  req.ShippingAddress,
		ShippingCity:     req.ShippingCity,
		ShippingMethodID: &quote.MethodID,
		ShippingZoneID:   &quote.ZoneID,
		Note:             req.Note,
	}
	for _, l := range lines {
		item := model.OrderItem{
			ProductID:   l.product.ID,
			VendorID:    l.product.VendorID,
			ProductName: l.product.Name,
			SKU:         l.product.SKU,
			UnitPrice:   l.price,
			Quantity:    l.qty,
			LineTotal:   l.total,
		}
		if l.product.VendorID != nil {
			item.CommissionRate = rates[*l.product.VendorID]
			item.CommissionAmount = CalculateCommission(l.total, item.CommissionRate)
		}
		order.Items = append(order.Items, item)
	}

	var app *model.EMIApplication
	if plan != nil {
		if app, err = newApplication(plan, userID, 0, total, req.DownPayment, now); err != nil {
			return nil, err
		}
	}

	// 6. 事务
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		for _, l := range lines {
			ok, err := tx.Products.DecrementStock(ctx, l.product.ID, l.qty)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrOutOfStock, l.product.Name)
			}
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return translateErr(err)
		}
		if app != nil {
			app.OrderID = order.ID
			if err := tx.EMIApplications.Create(ctx, app); err != nil {
				return err
			}
		}
		for _, l := range lines {
			if err := tx.Carts.DeleteItemByProduct(ctx, cart.ID, l.product.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("订单已创建",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("payment_method", order.PaymentMethod))

	// 7. 下单通知
	s.notify(ctx, NotifyInput{
		UserID:      userID,
		Type:        model.NotifyOrder,
		Title:       "订单已提交",
		Body:        fmt.Sprintf("Your Phone Bay order %s has been placed. Total: %s BDT.", order.OrderNumber, order.Total.StringFixed(2)),
		Data:        map[string]interface{}{"order_id": order.ID, "order_number": order.OrderNumber},
		SMS:         true,
		SMSTemplate: model.TemplateOrderPlaced,
		SMSVars: map[string]string{
			"order_number": order.OrderNumber,
			"total":        order.Total.StringFixed(2),
		},
	})

	created, err := s.uow.Orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	resp := &dto.CheckoutResponse{
		Order:           created,
		PaymentRequired: req.PaymentMethod == model.PaymentMethodOnline,
	}
	if app != nil {
		if resp.EMIApplication, err = s.uow.EMIApplications.GetByID(ctx, app.ID); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// vendorRates 下单时快照各商家佣金比例
func (s *OrderService) vendorRates(ctx context.Context, lines []checkoutLine) (map[int64]decimal.Decimal, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, l := range lines {
		if l.product.VendorID == nil {
			continue
		}
		if _, ok := seen[*l.product.VendorID]; ok {
			continue
		}
		seen[*l.product.VendorID] = struct{}{}
		ids = append(ids, *l.product.VendorID)
	}
	rates := make(map[int64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return rates, nil
	}
	vendors, err := s.uow.Vendors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range vendors {
		rates[v.ID] = v.CommissionRate
	}
	return rates, nil
}

// newOrderNumber PB + yymmdd + 6 位随机串
func (s *OrderService) newOrderNumber(ctx context.Context) (string, error) {
	date := s.now().Format("060102")
	for i := 0; i < orderNumberAttempts; i++ {
		number := orderNumberPrefix + date + s.suffix()
		exists, err := s.uow.Orders.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("生成订单号失败: 连续 %d 次重复", orderNumberAttempts)
}

// ==================== 查询 ====================

// List 当前用户的订单
func (s *OrderService) List(ctx context.Context, userID int64, req *dto.ListOrdersRequest) ([]model.Order, int64, error) {
	filter, err := orderFilter(req)
	if err != nil {
		return nil, 0, err
	}
	filter.UserID = userID
	return s.uow.Orders.List(ctx, filter)
}

// ListAll 全部订单（管理员）
func (s *OrderService) ListAll(ctx context.Context, req *dto.ListOrdersRequest) ([]model.Order, int64, error) {
	filter, err := orderFilter(req)
	if err != nil {
		return nil, 0, err
	}
	return s.uow.Orders.List(ctx, filter)
}

func orderFilter(req *dto.ListOrdersRequest) (repository.OrderFilter, error) {
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return repository.OrderFilter{}, err
	}
	if req.Status != "" && !model.IsValidOrderStatus(req.Status) {
		return repository.OrderFilter{}, invalidf("未知订单状态: %s", req.Status)
	}
	return repository.OrderFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		StartDate:     start,
		EndDate:       end,
		Keyword:       req.Keyword,
		Page:          repository.Page{Page: req.Page, PageSize: req.PageSize},
	}, nil
}

// Get 订单详情；非管理员只能看自己的订单
func (s *OrderService) Get(ctx context.Context, actor Actor, id int64) (*model.Order, error) {
	order, err := s.uow.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "订单")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, notFoundf("订单")
	}
	return order, nil
}

// Stats 订单统计
func (s *OrderService) Stats(ctx context.Context, req *dto.OrderStatsRequest) (*repository.OrderStats, error) {
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return s.uow.Orders.Stats(ctx, start, end)
}

// ==================== 状态流转 ====================

// UpdateStatus 管理员修改订单状态
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, req *dto.UpdateOrderStatusRequest) (*model.Order, error) {
	order, err := s.uow.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "订单")
	}
	if err := s.transition(ctx, order, req.Status, req.Reason); err != nil {
		return nil, err
	}
	return s.uow.Orders.GetByID(ctx, id)
}

// Cancel 用户取消自己的订单（待确认或已确认）
func (s *OrderService) Cancel(ctx context.Context, userID, id int64, reason string) (*model.Order, error) {
	order, err := s.uow.Orders.GetByID(ctx, id)
	if err != nil || order.UserID != userID {
		return nil, notFoundf("订单")
	}
	if reason == "" {
		reason = "用户取消"
	}
	if err := s.transition(ctx, order, model.OrderStatusCancelled, reason); err != nil {
		return nil, err
	}
	return s.uow.Orders.GetByID(ctx, id)
}

// ExpireUnpaid 取消超时未付款的在线支付订单，返回取消数量
func (s *OrderService) ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = DefaultUnpaidExpiry
	}
	before := s.now().Add(-olderThan)
	orders, err := s.uow.Orders.FindExpiredUnpaid(ctx, before, 200)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range orders {
		err := s.transition(ctx, &orders[i], model.OrderStatusCancelled, "支付超时自动取消")
		if err != nil {
			// 并发下可能已被支付或取消，跳过
			s.log.Warn("超时订单取消失败", zap.String("order_number", orders[i].OrderNumber), zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// transition 执行状态变更：取消回补库存并取消进行中的分期，签收给商家记账
func (s *OrderService) transition(ctx context.Context, order *model.Order, to, reason string) error {
	from := order.Status
	if !model.CanTransition(from, to) {
		return statef("订单状态不能从 %s 变为 %s", from, to)
	}

	var live *model.EMIApplication
	if to == model.OrderStatusCancelled {
		var err error
		if live, err = s.uow.EMIApplications.FindLiveByOrder(ctx, order.ID); err != nil {
			return err
		}
	}

	now := s.now()
	fields := map[string]interface{}{"status": to}
	if to == model.OrderStatusCancelled {
		fields["cancelled_at"] = now
		fields["cancel_reason"] = reason
		if order.PaymentStatus == model.PaymentStatusPaid {
			fields["payment_status"] = model.PaymentStatusRefunded
		}
	}

	err := s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		ok, err := tx.Orders.UpdateStatusFrom(ctx, order.ID, from, fields)
		if err != nil {
			return err
		}
		if !ok {
			return statef("订单状态已变更，请刷新后重试")
		}

		switch to {
		case model.OrderStatusCancelled:
			for _, it := range order.Items {
				if err := tx.Products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
			if live != nil {
				if _, err := tx.EMIApplications.UpdateStatusFrom(ctx, live.ID, live.Status, map[string]interface{}{
					"status": model.EMIStatusCancelled,
				}); err != nil {
					return err
				}
			}
		case model.OrderStatusDelivered:
			if err := creditDelivered(ctx, tx, order.Items); err != nil {
				return err
			}
			// 货到付款签收即收款
			if order.PaymentMethod == model.PaymentMethodCOD && order.PaymentStatus == model.PaymentStatusUnpaid {
				if err := tx.Orders.UpdateFields(ctx, order.ID, map[string]interface{}{
					"payment_status": model.PaymentStatusPaid,
					"paid_at":        now,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("订单状态变更",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", from),
		zap.String("to", to))

	s.notify(ctx, NotifyInput{
		UserID:      order.UserID,
		Type:        model.NotifyOrder,
		Title:       "订单状态更新",
		Body:        fmt.Sprintf("Your Phone Bay order %s is now %s.", order.OrderNumber, to),
		Data:        map[string]interface{}{"order_id": order.ID, "status": to},
		SMS:         true,
		SMSTemplate: model.TemplateOrderStatus,
		SMSVars: map[string]string{
			"order_number": order.OrderNumber,
			"status":       to,
		},
	})
	order.Status = to
	return nil
}

func (s *OrderService) notify(ctx context.Context, in NotifyInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("发送通知失败", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}

// orderRef 日志 / 通知中展示的订单标识
func orderRef(o *model.Order) string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return "#" + strconv.FormatInt(o.ID, 10)
}
