package service

import (
	"context"
	"errors"
	"testing"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		total, rate, want string
	}{
		{"2000", "10", "200.00"},
		{"999.99", "7.5", "75.00"},
		{"100", "0", "0.00"},
		{"333.33", "12.5", "41.67"},
	}
	for _, tt := range tests {
		got := CalculateCommission(dec(tt.total), dec(tt.rate))
		assert.Equal(t, tt.want, got.StringFixed(2), "%s * %s%%", tt.total, tt.rate)
	}
}

func TestVendorService_ApplyApproveSuspend(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)

	v, err := e.vendors.Apply(ctx, user.ID, &dto.VendorApplyRequest{ShopName: "Gadget Hub", Phone: "01712345678"})
	require.NoError(t, err)
	assert.Equal(t, "gadget-hub", v.Slug)
	assert.Equal(t, model.VendorStatusPending, v.Status)
	assert.True(t, v.CommissionRate.Equal(decimal.NewFromInt(10)), "默认佣金取站点设置")
	assert.Equal(t, "8801712345678", v.Phone)

	_, err = e.vendors.Apply(ctx, user.ID, &dto.VendorApplyRequest{ShopName: "Again"})
	assert.True(t, errors.Is(err, ErrConflict))

	// 同名店铺 slug 追加序号
	other := e.seedUser(t, "8801812345678", model.RoleCustomer)
	v2, err := e.vendors.Apply(ctx, other.ID, &dto.VendorApplyRequest{ShopName: "Gadget Hub"})
	require.NoError(t, err)
	assert.Equal(t, "gadget-hub-2", v2.Slug)

	// 未审核不能上架
	_, err = e.vendors.approvedVendorOf(ctx, user.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	rate := dec("8")
	bad := dec("120")
	_, err = e.vendors.Approve(ctx, v.ID, &dto.VendorApproveRequest{CommissionRate: &bad})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	v, err = e.vendors.Approve(ctx, v.ID, &dto.VendorApproveRequest{CommissionRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, model.VendorStatusApproved, v.Status)
	assert.True(t, v.CommissionRate.Equal(rate))

	var u model.User
	require.NoError(t, e.db.First(&u, user.ID).Error)
	assert.Equal(t, model.RoleVendor, u.Role)

	_, err = e.vendors.Approve(ctx, v.ID, nil)
	assert.True(t, errors.Is(err, ErrInvalidState))

	v, err = e.vendors.Suspend(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VendorStatusSuspended, v.Status)
	require.NoError(t, e.db.First(&u, user.ID).Error)
	assert.Equal(t, model.RoleCustomer, u.Role)

	list, total, err := e.vendors.List(ctx, &dto.ListVendorsRequest{Status: model.VendorStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, v2.ID, list[0].ID)
}

func TestVendorService_UpdateAndDashboard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seller := e.seedUser(t, "8801712345678", model.RoleVendor)
	vendor := e.seedVendor(t, seller, 10)

	name := "New Name"
	badPhone := "123"
	_, err := e.vendors.Update(ctx, seller.ID, &dto.VendorUpdateRequest{Phone: &badPhone})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	v, err := e.vendors.Update(ctx, seller.ID, &dto.VendorUpdateRequest{ShopName: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", v.ShopName)

	stranger := e.seedUser(t, "8801812345678", model.RoleCustomer)
	_, err = e.vendors.Update(ctx, stranger.ID, &dto.VendorUpdateRequest{ShopName: &name})
	assert.True(t, errors.Is(err, ErrNotFound))

	// 一笔签收订单
	e.seedShipping(t)
	buyer := e.seedUser(t, "8801912345678", model.RoleCustomer)
	p := e.seedProduct(t, "dash-phone", 5000, 10, false, &vendor.ID)
	e.addToCart(t, buyer.ID, p, 2)
	resp, err := e.orders.Checkout(ctx, buyer.ID, checkoutReq(model.PaymentMethodCOD))
	require.NoError(t, err)
	for _, st := range []string{model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered} {
		_, err := e.orders.UpdateStatus(ctx, resp.Order.ID, &dto.UpdateOrderStatusRequest{Status: st})
		require.NoError(t, err)
	}

	dash, err := e.vendors.Dashboard(ctx, vendor.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dash.ProductCount)
	assert.EqualValues(t, 1, dash.OrderItemCount)
	assert.True(t, dash.GrossSales.Equal(dec("10000")))
	assert.True(t, dash.Commission.Equal(dec("1000")))
	assert.True(t, dash.NetEarnings.Equal(dec("9000")))
	assert.True(t, dash.Balance.Equal(dec("9000")))
}
