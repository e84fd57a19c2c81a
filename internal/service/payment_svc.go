package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const paymentCurrency = "BDT"

// ==================== PaymentService 在线支付 ====================

// PaymentService SSLCOMMERZ 支付：发起、IPN 验证、失败与取消回调
type PaymentService struct {
	uow      *repository.UnitOfWork
	gateway  PaymentGateway
	notifier *NotificationService
	now      func() time.Time
	log      *zap.Logger
}

// NewPaymentService 创建支付服务；gateway 为 nil 时在线支付不可用
func NewPaymentService(uow *repository.UnitOfWork, gateway PaymentGateway, notifier *NotificationService) *PaymentService {
	return &PaymentService{
		uow:      uow,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
		log:      zap.L().Named("payment"),
	}
}

// Initiate 为订单创建支付流水并返回收银台地址
func (s *PaymentService) Initiate(ctx context.Context, userID, orderID int64) (*dto.InitiatePaymentResponse, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: 在线支付未配置", ErrUnavailable)
	}

	// 1. 订单校验
	order, err := s.uow.Orders.GetByID(ctx, orderID)
	if err != nil || order.UserID != userID {
		return nil, notFoundf("订单")
	}
	if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusConfirmed {
		return nil, statef("订单当前状态为 %s，不能支付", order.Status)
	}
	if order.PaymentStatus != model.PaymentStatusUnpaid && order.PaymentStatus != model.PaymentStatusFailed {
		return nil, statef("订单已支付")
	}
	if order.PaymentMethod == model.PaymentMethodCOD {
		return nil, statef("货到付款订单无需在线支付")
	}

	user, err := s.uow.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "用户")
	}

	// 2. 分期订单走网关分期
	var app *model.EMIApplication
	if order.PaymentMethod == model.PaymentMethodEMI {
		if app, err = s.uow.EMIApplications.FindLiveByOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		if app == nil {
			return nil, statef("订单没有有效的分期申请")
		}
	}

	// 3. 支付流水
	txn := &model.PaymentTransaction{
		TranID:   newTranID(),
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: paymentCurrency,
		Gateway:  model.GatewaySSLCommerz,
		Status:   model.TxnStatusInitiated,
	}
	if app != nil {
		txn.EMIApplicationID = &app.ID
		txn.IsEMI = true
		txn.EMIInstallments = app.Months
	}
	if err := s.uow.Payments.Create(ctx, txn); err != nil {
		return nil, translateErr(err)
	}

	// 4. 网关会话
	sess, err := s.gateway.InitSession(ctx, &SessionRequest{
		TranID:          txn.TranID,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		ProductName:     productSummary(order),
		NumOfItems:      len(order.Items),
		CustomerName:    order.ShippingName,
		CustomerEmail:   user.Email,
		CustomerPhone:   order.ShippingPhone,
		CustomerAddress: order.ShippingAddress,
		CustomerCity:    order.ShippingCity,
		EMIMonths:       txn.EMIInstallments,
	})
	if err != nil {
		s.log.Error("创建支付会话失败", zap.String("tran_id", txn.TranID), zap.Error(err))
		_ = s.uow.Payments.UpdateFields(ctx, txn.ID, map[string]interface{}{"status": model.TxnStatusFailed})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.uow.Payments.UpdateFields(ctx, txn.ID, map[string]interface{}{
		"gateway_url":  sess.GatewayURL,
		"raw_response": jsonMap(sess.Raw),
	}); err != nil {
		return nil, err
	}

	s.log.Info("支付会话已创建", zap.String("tran_id", txn.TranID), zap.String("order_number", orderRef(order)))
	return &dto.InitiatePaymentResponse{TranID: txn.TranID, GatewayURL: sess.GatewayURL, Amount: txn.Amount}, nil
}

// HandleIPN 网关异步通知 / 成功回跳：向网关验证后入账；已验证的流水重复通知直接返回
func (s *PaymentService) HandleIPN(ctx context.Context, cb *dto.SSLCommerzCallback) (*dto.PaymentResult, error) {
	txn, err := s.uow.Payments.GetByTranID(ctx, cb.TranID)
	if err != nil {
		return nil, notFound(err, "支付流水")
	}
	result := &dto.PaymentResult{TranID: txn.TranID, OrderID: txn.OrderID, Status: txn.Status}
	if txn.Status == model.TxnStatusValidated {
		return result, nil
	}

	// 网关回传失败 / 取消
	switch strings.ToUpper(cb.Status) {
	case "FAILED":
		return s.HandleFail(ctx, cb)
	case "CANCELLED":
		return s.HandleCancel(ctx, cb)
	}

	if cb.ValID == "" {
		return nil, invalidf("缺少 val_id")
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: 在线支付未配置", ErrUnavailable)
	}

	// 1. 向网关确认
	v, err := s.gateway.Validate(ctx, cb.ValID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !v.Valid() {
		s.log.Warn("支付验证未通过", zap.String("tran_id", txn.TranID), zap.String("status", v.Status))
		return s.markFailed(ctx, txn, model.TxnStatusFailed, v.Raw)
	}
	if v.TranID != "" && v.TranID != txn.TranID {
		return nil, invalidf("tran_id 不匹配")
	}
	if !v.Amount.Equal(txn.Amount) {
		s.log.Error("支付金额不一致",
			zap.String("tran_id", txn.TranID),
			zap.String("expected", txn.Amount.StringFixed(2)),
			zap.String("actual", v.Amount.StringFixed(2)))
		return nil, invalidf("支付金额不一致")
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, txn.Currency) {
		return nil, invalidf("币种不一致")
	}

	order, err := s.uow.Orders.GetByID(ctx, txn.OrderID)
	if err != nil {
		return nil, notFound(err, "订单")
	}

	// 2. 入账
	now := s.now()
	applied := false
	err = s.uow.Transaction(ctx, func(tx *repository.UnitOfWork) error {
		ok, err := tx.Payments.UpdateStatusFrom(ctx, txn.ID,
			[]string{model.TxnStatusInitiated, model.TxnStatusSuccess, model.TxnStatusFailed},
			map[string]interface{}{
				"status":       model.TxnStatusValidated,
				"val_id":       v.ValID,
				"bank_tran_id": v.BankTranID,
				"card_type":    v.CardType,
				"validated_at": now,
				"raw_response": jsonMap(v.Raw),
			})
		if err != nil || !ok {
			return err
		}
		applied = true

		if err := tx.Orders.UpdateFields(ctx, order.ID, map[string]interface{}{
			"payment_status": model.PaymentStatusPaid,
			"paid_at":        now,
		}); err != nil {
			return err
		}
		if _, err := tx.Orders.UpdateStatusFrom(ctx, order.ID, model.OrderStatusPending, map[string]interface{}{
			"status": model.OrderStatusConfirmed,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Status = model.TxnStatusValidated
	if !applied {
		return result, nil
	}

	if order.Status == model.OrderStatusCancelled {
		s.log.Warn("已取消订单收到付款，需人工退款", zap.String("order_number", order.OrderNumber), zap.String("tran_id", txn.TranID))
	}
	s.log.Info("支付成功", zap.String("tran_id", txn.TranID), zap.String("order_number", order.OrderNumber))

	s.notify(ctx, NotifyInput{
		UserID:      order.UserID,
		Type:        model.NotifyPayment,
		Title:       "支付成功",
		Body:        fmt.Sprintf("Payment of %s BDT for order %s received. Thank you for shopping at Phone Bay.", txn.Amount.StringFixed(2), order.OrderNumber),
		Data:        map[string]interface{}{"order_id": order.ID, "tran_id": txn.TranID},
		SMS:         true,
		SMSTemplate: model.TemplatePaymentOK,
		SMSVars: map[string]string{
			"order_number": order.OrderNumber,
			"amount":       txn.Amount.StringFixed(2),
		},
	})
	return result, nil
}

// HandleFail 支付失败回调
func (s *PaymentService) HandleFail(ctx context.Context, cb *dto.SSLCommerzCallback) (*dto.PaymentResult, error) {
	txn, err := s.uow.Payments.GetByTranID(ctx, cb.TranID)
	if err != nil {
		return nil, notFound(err, "支付流水")
	}
	return s.markFailed(ctx, txn, model.TxnStatusFailed, callbackRaw(cb))
}

// HandleCancel 用户取消支付回调
func (s *PaymentService) HandleCancel(ctx context.Context, cb *dto.SSLCommerzCallback) (*dto.PaymentResult, error) {
	txn, err := s.uow.Payments.GetByTranID(ctx, cb.TranID)
	if err != nil {
		return nil, notFound(err, "支付流水")
	}
	return s.markFailed(ctx, txn, model.TxnStatusCancelled, callbackRaw(cb))
}

// markFailed 仅 initiated 状态的流水可以转为失败 / 取消
func (s *PaymentService) markFailed(ctx context.Context, txn *model.PaymentTransaction, status string, raw map[string]interface{}) (*dto.PaymentResult, error) {
	result := &dto.PaymentResult{TranID: txn.TranID, OrderID: txn.OrderID, Status: txn.Status}
	ok, err := s.uow.Payments.UpdateStatusFrom(ctx, txn.ID, []string{model.TxnStatusInitiated}, map[string]interface{}{
		"status":       status,
		"raw_response": jsonMap(raw),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}
	result.Status = status

	if status == model.TxnStatusFailed {
		if err := s.uow.Orders.UpdateFields(ctx, txn.OrderID, map[string]interface{}{
			"payment_status": model.PaymentStatusFailed,
		}); err != nil {
			s.log.Warn("更新订单支付状态失败", zap.Int64("order_id", txn.OrderID), zap.Error(err))
		}
	}
	s.log.Info("支付未完成", zap.String("tran_id", txn.TranID), zap.String("status", status))
	return result, nil
}

// ListByOrder 订单的支付流水
func (s *PaymentService) ListByOrder(ctx context.Context, actor Actor, orderID int64) ([]model.PaymentTransaction, error) {
	order, err := s.uow.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "订单")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, notFoundf("订单")
	}
	return s.uow.Payments.ListByOrder(ctx, orderID)
}

func (s *PaymentService) notify(ctx context.Context, in NotifyInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("发送通知失败", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}

// ==================== 工具 ====================

// newTranID 30 位以内的交易号
func newTranID() string {
	return "PBT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}

func productSummary(o *model.Order) string {
	if len(o.Items) == 0 {
		return "Phone Bay order " + o.OrderNumber
	}
	name := o.Items[0].ProductName
	if len(o.Items) > 1 {
		name = fmt.Sprintf("%s and %d more", name, len(o.Items)-1)
	}
	return truncate(name, 255)
}

func callbackRaw(cb *dto.SSLCommerzCallback) map[string]interface{} {
	return map[string]interface{}{
		"status":       cb.Status,
		"error":        cb.Error,
		"amount":       cb.Amount,
		"bank_tran_id": cb.BankTranID,
		"card_type":    cb.CardType,
	}
}

// jsonMap 转为可直接写库的 JSON 列
func jsonMap(m map[string]interface{}) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}
