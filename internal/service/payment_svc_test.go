package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/config"
	"phonebay/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSSLCommerz 模拟 SSLCOMMERZ 会话与验证接口
type fakeSSLCommerz struct {
	mu          sync.Mutex
	sessions    []map[string]string
	validations map[string]gin.H
	failInit    bool
}

func newFakeSSLCommerz(t *testing.T) (*fakeSSLCommerz, PaymentGateway) {
	t.Helper()
	f := &fakeSSLCommerz{validations: map[string]gin.H{}}

	r := gin.New()
	r.POST("/gwprocess/v4/api.php", func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		form := map[string]string{}
		for k := range c.Request.PostForm {
			form[k] = c.Request.PostForm.Get(k)
		}
		f.mu.Lock()
		f.sessions = append(f.sessions, form)
		fail := f.failInit
		f.mu.Unlock()

		if fail || form["store_id"] != "phonebay_test" {
			c.JSON(http.StatusOK, gin.H{"status": "FAILED", "failedreason": "Store Credential Error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "SUCCESS",
			"sessionkey":     "SESS-" + form["tran_id"],
			"GatewayPageURL": "https://sandbox.sslcommerz.com/EasyCheckOut/" + form["tran_id"],
		})
	})
	r.GET("/validator/api/validationserverAPI.php", func(c *gin.Context) {
		f.mu.Lock()
		v, ok := f.validations[c.Query("val_id")]
		f.mu.Unlock()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"status": "INVALID_TRANSACTION"})
			return
		}
		c.JSON(http.StatusOK, v)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	gw := NewSSLCommerzClient(config.SSLCommerzConfig{
		StoreID:       "phonebay_test",
		StorePassword: "secret",
		Sandbox:       true,
		BaseURL:       srv.URL,
		SuccessURL:    "http://localhost/api/payments/success",
		FailURL:       "http://localhost/api/payments/fail",
		CancelURL:     "http://localhost/api/payments/cancel",
		IPNURL:        "http://localhost/api/payments/ipn",
		Timeout:       2 * time.Second,
	})
	require.NotNil(t, gw)
	return f, gw
}

func (f *fakeSSLCommerz) approve(valID, tranID, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validations[valID] = gin.H{
		"status": "VALID", "tran_id": tranID, "val_id": valID, "amount": amount,
		"currency": "BDT", "bank_tran_id": "BANK-" + valID, "card_type": "VISA-Dutch Bangla",
	}
}

func (f *fakeSSLCommerz) lastSession(t *testing.T) map[string]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sessions)
	return f.sessions[len(f.sessions)-1]
}

func TestNewSSLCommerzClient_Unconfigured(t *testing.T) {
	assert.Nil(t, NewSSLCommerzClient(config.SSLCommerzConfig{}))
}

func TestPaymentService_InitiateAndIPN(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	fake, gw := newFakeSSLCommerz(t)
	svc := NewPaymentService(e.uow, gw, e.notifier)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	order := e.seedOrder(t, user.ID, 15500, model.PaymentMethodOnline)

	resp, err := svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)
	assert.Contains(t, resp.GatewayURL, resp.TranID)
	assert.True(t, resp.Amount.Equal(dec("15500")))

	form := fake.lastSession(t)
	assert.Equal(t, resp.TranID, form["tran_id"])
	assert.Equal(t, "15500.00", form["total_amount"])
	assert.Equal(t, "BDT", form["currency"])
	assert.Equal(t, "0", form["emi_option"])

	// 缺少 val_id
	_, err = svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: resp.TranID, Status: "VALID"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	fake.approve("VAL-1", resp.TranID, "15500.00")
	res, err := svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: resp.TranID, ValID: "VAL-1", Status: "VALID"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusValidated, res.Status)

	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)
	require.NotNil(t, got.PaidAt)

	txns, err := svc.ListByOrder(ctx, Actor{UserID: user.ID, Role: model.RoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "BANK-VAL-1", txns[0].BankTranID)

	// 重复 IPN 幂等：不重复通知
	var before int64
	require.NoError(t, e.db.Model(&model.Notification{}).Where("type = ?", model.NotifyPayment).Count(&before).Error)
	assert.EqualValues(t, 1, before)
	res, err = svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: resp.TranID, ValID: "VAL-1", Status: "VALID"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusValidated, res.Status)
	var after int64
	require.NoError(t, e.db.Model(&model.Notification{}).Where("type = ?", model.NotifyPayment).Count(&after).Error)
	assert.Equal(t, before, after)

	// 已支付订单不能再次发起
	_, err = svc.Initiate(ctx, user.ID, order.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestPaymentService_AmountMismatch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	fake, gw := newFakeSSLCommerz(t)
	svc := NewPaymentService(e.uow, gw, e.notifier)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	order := e.seedOrder(t, user.ID, 20000, model.PaymentMethodOnline)

	resp, err := svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)

	fake.approve("VAL-LOW", resp.TranID, "10.00")
	_, err = svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: resp.TranID, ValID: "VAL-LOW"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, got.PaymentStatus)
}

func TestPaymentService_InvalidValidationMarksFailed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, gw := newFakeSSLCommerz(t)
	svc := NewPaymentService(e.uow, gw, e.notifier)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	order := e.seedOrder(t, user.ID, 20000, model.PaymentMethodOnline)

	resp, err := svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)

	res, err := svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: resp.TranID, ValID: "UNKNOWN"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusFailed, res.Status)

	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, got.PaymentStatus)

	// 失败后可以重新发起
	_, err = svc.Initiate(ctx, user.ID, order.ID)
	assert.NoError(t, err)
}

func TestPaymentService_FailAndCancelCallbacks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, gw := newFakeSSLCommerz(t)
	svc := NewPaymentService(e.uow, gw, e.notifier)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	order := e.seedOrder(t, user.ID, 20000, model.PaymentMethodOnline)

	first, err := svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)
	res, err := svc.HandleCancel(ctx, &dto.SSLCommerzCallback{TranID: first.TranID, Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusCancelled, res.Status)

	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, got.PaymentStatus, "取消不改变订单支付状态")

	second, err := svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)
	res, err = svc.HandleIPN(ctx, &dto.SSLCommerzCallback{TranID: second.TranID, Status: "FAILED", Error: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusFailed, res.Status)

	// 终态后重复回调不改变状态
	res, err = svc.HandleCancel(ctx, &dto.SSLCommerzCallback{TranID: second.TranID})
	require.NoError(t, err)
	assert.Equal(t, model.TxnStatusFailed, res.Status)

	_, err = svc.HandleFail(ctx, &dto.SSLCommerzCallback{TranID: "PBT-NOPE"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPaymentService_InitiateRejects(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	fake, gw := newFakeSSLCommerz(t)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)

	_, err := NewPaymentService(e.uow, nil, nil).Initiate(ctx, user.ID, 1)
	assert.True(t, errors.Is(err, ErrUnavailable), "未配置网关")

	svc := NewPaymentService(e.uow, gw, e.notifier)

	cod := e.seedOrder(t, user.ID, 20000, model.PaymentMethodCOD)
	_, err = svc.Initiate(ctx, user.ID, cod.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))

	other := e.seedUser(t, "8801812345678", model.RoleCustomer)
	online := e.seedOrder(t, user.ID, 20000, model.PaymentMethodOnline)
	_, err = svc.Initiate(ctx, other.ID, online.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	emiOrder := e.seedOrder(t, user.ID, 20000, model.PaymentMethodEMI)
	_, err = svc.Initiate(ctx, user.ID, emiOrder.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "分期订单需要有效申请")

	fake.mu.Lock()
	fake.failInit = true
	fake.mu.Unlock()
	_, err = svc.Initiate(ctx, user.ID, online.ID)
	assert.True(t, errors.Is(err, ErrUnavailable))
	txns, err := e.uow.Payments.ListByOrder(ctx, online.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnStatusFailed, txns[0].Status)
}

func TestPaymentService_EMISession(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	fake, gw := newFakeSSLCommerz(t)
	svc := NewPaymentService(e.uow, gw, e.notifier)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "9")
	order := e.seedOrder(t, user.ID, 30000, model.PaymentMethodEMI)
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)

	_, err = svc.Initiate(ctx, user.ID, order.ID)
	require.NoError(t, err)

	form := fake.lastSession(t)
	assert.Equal(t, "1", form["emi_option"])
	assert.Equal(t, "6", form["emi_selected_inst"])

	txns, err := e.uow.Payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].IsEMI)
	require.NotNil(t, txns[0].EMIApplicationID)
	assert.Equal(t, app.ID, *txns[0].EMIApplicationID)
}
