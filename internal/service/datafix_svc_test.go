package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDataFix(e *testEnv) *DataFixService {
	return NewDataFixService(e.uow, e.emi)
}

func TestDataFixService_List(t *testing.T) {
	e := newTestEnv(t)
	fixes := newDataFix(e).List()
	require.Len(t, fixes, 6)
	for i := 1; i < len(fixes); i++ {
		assert.Less(t, fixes[i-1].Name, fixes[i].Name)
	}

	_, err := newDataFix(e).Run(context.Background(), "drop-everything", false)
	assert.True(t, errors.Is(err, ErrUnknownFix))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDataFixService_RecalcOrderTotals(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	p := e.seedProduct(t, "fix-total", 1000, 5, false, nil)

	order := &model.Order{
		OrderNumber: "PB260101BROKEN", UserID: user.ID,
		Status: model.OrderStatusPending, PaymentMethod: model.PaymentMethodCOD, PaymentStatus: model.PaymentStatusUnpaid,
		Subtotal: dec("1500"), ShippingCost: dec("60"), Discount: decimal.Zero, Total: dec("1560"),
		Items: []model.OrderItem{{ProductID: p.ID, ProductName: p.Name, UnitPrice: dec("1000"), Quantity: 2, LineTotal: dec("1500")}},
	}
	require.NoError(t, e.db.Create(order).Error)

	report, err := svc.Run(ctx, "recalc-order-totals", true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Changed)
	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(dec("1560")), "dry run 不写库")

	_, err = svc.Run(ctx, "recalc-order-totals", false)
	require.NoError(t, err)
	got, err = e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Subtotal.Equal(dec("2000")))
	assert.True(t, got.Total.Equal(dec("2060")))
	assert.True(t, got.Items[0].LineTotal.Equal(dec("2000")))

	// 幂等
	report, err = svc.Run(ctx, "recalc-order-totals", false)
	require.NoError(t, err)
	assert.Zero(t, report.Changed)
}

func TestDataFixService_NormalizePhones(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)

	legacy := e.seedUser(t, "01812345678", model.RoleCustomer)
	e.seedUser(t, "8801912345678", model.RoleCustomer)
	clash := e.seedUser(t, "+8801912345678", model.RoleCustomer)
	e.seedUser(t, "12345", model.RoleCustomer)

	report, err := svc.Run(ctx, "normalize-phones", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Contains(t, report.Messages, fmt.Sprintf("用户 #%d 手机号 +8801912345678 规范化后与已有用户冲突", clash.ID))

	var u model.User
	require.NoError(t, e.db.First(&u, legacy.ID).Error)
	assert.Equal(t, "8801812345678", u.Phone)
	require.NoError(t, e.db.First(&u, clash.ID).Error)
	assert.Equal(t, "+8801912345678", u.Phone, "冲突的号码不修改")
}

func TestDataFixService_FixProductSlugs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)

	e.seedProduct(t, "galaxy-s24-ultra", 1000, 5, false, nil)
	p := e.seedProduct(t, "tmp-slug", 1000, 5, false, nil)
	require.NoError(t, e.db.Model(&model.Product{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{"slug": "", "name": "Galaxy S24 Ultra"}).Error)

	report, err := svc.Run(ctx, "fix-product-slugs", false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Changed)

	var got model.Product
	require.NoError(t, e.db.First(&got, p.ID).Error)
	assert.Equal(t, "galaxy-s24-ultra-2", got.Slug)
}

func TestDataFixService_ResetNegativeStock(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)
	p := e.seedProduct(t, "negative", 1000, 5, false, nil)
	require.NoError(t, e.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("stock", -3).Error)

	report, err := svc.Run(ctx, "reset-negative-stock", true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, -3, e.productStock(t, p.ID))

	_, err = svc.Run(ctx, "reset-negative-stock", false)
	require.NoError(t, err)
	assert.Zero(t, e.productStock(t, p.ID))
}

func TestDataFixService_BackfillCommissions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)
	seller := e.seedUser(t, "8801812345678", model.RoleVendor)
	vendor := e.seedVendor(t, seller, 12)
	buyer := e.seedUser(t, "8801712345678", model.RoleCustomer)
	p := e.seedProduct(t, "backfill", 2500, 5, false, &vendor.ID)

	order := &model.Order{
		OrderNumber: "PB260101NOCOMM", UserID: buyer.ID,
		Status: model.OrderStatusPending, PaymentMethod: model.PaymentMethodCOD, PaymentStatus: model.PaymentStatusUnpaid,
		Subtotal: dec("5000"), ShippingCost: decimal.Zero, Discount: decimal.Zero, Total: dec("5000"),
		Items: []model.OrderItem{{ProductID: p.ID, VendorID: &vendor.ID, ProductName: p.Name, UnitPrice: dec("2500"), Quantity: 2, LineTotal: dec("5000")}},
	}
	require.NoError(t, e.db.Create(order).Error)

	report, err := svc.Run(ctx, "backfill-commissions", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)

	got, err := e.uow.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].CommissionRate.Equal(dec("12")))
	assert.True(t, got.Items[0].CommissionAmount.Equal(dec("600")))
}

func TestDataFixService_RegenerateEMISchedules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newDataFix(e)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	plan := e.seedPlan(t, 6, "12")
	order := e.seedOrder(t, user.ID, 60000, model.PaymentMethodEMI)
	app, err := e.emi.Apply(ctx, user.ID, &dto.EMIApplyRequest{OrderID: order.ID, PlanID: plan.ID})
	require.NoError(t, err)
	_, err = e.emi.Approve(ctx, app.ID)
	require.NoError(t, err)
	require.NoError(t, e.db.Where("application_id = ? AND number = ?", app.ID, 3).Delete(&model.EMIInstallment{}).Error)

	report, err := svc.Run(ctx, "regenerate-emi-schedules", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Changed)

	fixed, err := e.uow.EMIApplications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, ScheduleConsistent(fixed))
}
