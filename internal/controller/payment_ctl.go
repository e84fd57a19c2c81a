package controller

import (
	"context"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	paymentService *service.PaymentService
	log            *zap.Logger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService, log: zap.L().Named("payment")}
}

// Initiate 发起在线支付
// @Summary 为自己的订单创建 SSLCOMMERZ 支付会话
// @Tags Payment
// @Security BearerAuth
// @Param order_id path int true "订单ID"
// @Success 200 {object} dto.InitiatePaymentResponse
// @Failure 503 {object} map[string]string "在线支付未配置"
// @Router /api/payments/initiate/{order_id} [post]
func (ctrl *PaymentController) Initiate(c *gin.Context) {
	orderID, valid := parseID(c, "order_id")
	if !valid {
		return
	}
	resp, err := ctrl.paymentService.Initiate(c.Request.Context(), middleware.GetUserID(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// ListByOrder 订单支付流水
// @Summary 订单的支付流水
// @Tags Payment
// @Security BearerAuth
// @Param order_id path int true "订单ID"
// @Success 200 {object} dto.ListResponse[model.PaymentTransaction]
// @Router /api/payments/orders/{order_id} [get]
func (ctrl *PaymentController) ListByOrder(c *gin.Context) {
	orderID, valid := parseID(c, "order_id")
	if !valid {
		return
	}
	list, err := ctrl.paymentService.ListByOrder(c.Request.Context(), actorOf(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// ==================== SSLCOMMERZ 回调 ====================

// IPN 异步通知
// @Summary SSLCOMMERZ IPN，向网关验证后入账
// @Tags Payment
// @Accept x-www-form-urlencoded
// @Success 200 {object} dto.PaymentResult
// @Router /api/payments/sslcommerz/ipn [post]
func (ctrl *PaymentController) IPN(c *gin.Context) {
	ctrl.callback(c, "ipn", ctrl.paymentService.HandleIPN)
}

// Success 支付成功回跳
// @Summary 支付成功回跳，与 IPN 走同一验证流程
// @Tags Payment
// @Accept x-www-form-urlencoded
// @Success 200 {object} dto.PaymentResult
// @Router /api/payments/sslcommerz/success [post]
func (ctrl *PaymentController) Success(c *gin.Context) {
	ctrl.callback(c, "success", ctrl.paymentService.HandleIPN)
}

// Fail 支付失败回跳
// @Summary 支付失败回跳
// @Tags Payment
// @Accept x-www-form-urlencoded
// @Success 200 {object} dto.PaymentResult
// @Router /api/payments/sslcommerz/fail [post]
func (ctrl *PaymentController) Fail(c *gin.Context) {
	ctrl.callback(c, "fail", ctrl.paymentService.HandleFail)
}

// Cancel 用户取消支付
// @Summary 用户取消支付回跳
// @Tags Payment
// @Accept x-www-form-urlencoded
// @Success 200 {object} dto.PaymentResult
// @Router /api/payments/sslcommerz/cancel [post]
func (ctrl *PaymentController) Cancel(c *gin.Context) {
	ctrl.callback(c, "cancel", ctrl.paymentService.HandleCancel)
}

type callbackHandler func(ctx context.Context, cb *dto.SSLCommerzCallback) (*dto.PaymentResult, error)

func (ctrl *PaymentController) callback(c *gin.Context, kind string, handle callbackHandler) {
	var cb dto.SSLCommerzCallback
	if err := c.ShouldBind(&cb); err != nil {
		bindFail(c, err)
		return
	}
	ctrl.log.Info("收到支付回调",
		zap.String("kind", kind),
		zap.String("tran_id", cb.TranID),
		zap.String("status", cb.Status),
	)
	result, err := handle(c.Request.Context(), &cb)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}
