package service

import (
	"context"
	"errors"
	"testing"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddMergeUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	p := e.seedProduct(t, "cart-a", 1200, 10, false, nil)

	cart, err := e.cart.AddItem(ctx, user.ID, &dto.AddCartItemRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	cart, err = e.cart.AddItem(ctx, user.ID, &dto.AddCartItemRequest{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "同一商品合并")
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5, cart.ItemCount)
	assert.True(t, cart.Subtotal.Equal(dec("6000")))
	assert.True(t, cart.TotalWeight.Equal(dec("2.5")))

	_, err = e.cart.AddItem(ctx, user.ID, &dto.AddCartItemRequest{ProductID: p.ID, Quantity: 6})
	assert.True(t, errors.Is(err, ErrOutOfStock))

	itemID := cart.Items[0].ItemID
	cart, err = e.cart.UpdateItem(ctx, user.ID, itemID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	_, err = e.cart.UpdateItem(ctx, user.ID, itemID, 11)
	assert.True(t, errors.Is(err, ErrOutOfStock))
	_, err = e.cart.UpdateItem(ctx, user.ID, itemID, maxCartQuantity+1)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	cart, err = e.cart.UpdateItem(ctx, user.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = e.cart.RemoveItem(ctx, user.ID, itemID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCartService_UnavailableLines(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	ok := e.seedProduct(t, "cart-ok", 1000, 10, false, nil)
	gone := e.seedProduct(t, "cart-gone", 500, 10, false, nil)

	e.addToCart(t, user.ID, ok, 1)
	e.addToCart(t, user.ID, gone, 2)
	require.NoError(t, e.db.Delete(&model.Product{}, gone.ID).Error)

	cart, err := e.cart.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2, "已删除商品仍展示")
	assert.Equal(t, 1, cart.ItemCount)
	assert.True(t, cart.Subtotal.Equal(dec("1000")), "不可购买的行不计入小计")
	for _, line := range cart.Items {
		assert.Equal(t, line.ProductID == ok.ID, line.Available)
	}

	_, err = e.cart.AddItem(ctx, user.ID, &dto.AddCartItemRequest{ProductID: gone.ID, Quantity: 1})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, e.cart.Clear(ctx, user.ID))
	cart, err = e.cart.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_CartsAreIsolated(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "8801712345678", model.RoleCustomer)
	bob := e.seedUser(t, "8801812345678", model.RoleCustomer)
	p := e.seedProduct(t, "shared", 1000, 10, false, nil)

	cart, err := e.cart.AddItem(ctx, alice.ID, &dto.AddCartItemRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = e.cart.UpdateItem(ctx, bob.ID, cart.Items[0].ItemID, 2)
	assert.True(t, errors.Is(err, ErrNotFound), "不能修改别人的购物车")
	_, err = e.cart.RemoveItem(ctx, bob.ID, cart.Items[0].ItemID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWishlistService(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	wl := NewWishlistService(e.uow, e.cart)
	user := e.seedUser(t, "8801712345678", model.RoleCustomer)
	p := e.seedProduct(t, "wish", 1000, 10, false, nil)

	require.NoError(t, wl.Add(ctx, user.ID, p.ID))
	require.NoError(t, wl.Add(ctx, user.ID, p.ID), "重复收藏不报错")
	assert.True(t, errors.Is(wl.Add(ctx, user.ID, 404), ErrNotFound))

	items, err := wl.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)

	cart, err := wl.MoveToCart(ctx, user.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	items, err = wl.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, errors.Is(wl.Remove(ctx, user.ID, p.ID), ErrNotFound))
}
