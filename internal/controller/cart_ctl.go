package controller

import (
	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/service"

	"github.com/gin-gonic/gin"
)

// ==================== CartController 购物车 ====================

type CartController struct {
	cartService *service.CartService
}

func NewCartController(cartService *service.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// Get 当前用户购物车
// @Summary 获取购物车
// @Tags Cart
// @Security BearerAuth
// @Success 200 {object} dto.CartResponse
// @Router /api/cart [get]
func (ctrl *CartController) Get(c *gin.Context) {
	cart, err := ctrl.cartService.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cart)
}

// AddItem 加入购物车
// @Summary 加入购物车，已存在的商品累加数量
// @Tags Cart
// @Security BearerAuth
// @Param body body dto.AddCartItemRequest true "商品与数量"
// @Success 200 {object} dto.CartResponse
// @Router /api/cart/items [post]
func (ctrl *CartController) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	cart, err := ctrl.cartService.AddItem(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cart)
}

// UpdateItem 修改数量
// @Summary 修改购物车行数量，0 表示移除
// @Tags Cart
// @Security BearerAuth
// @Param id path int true "购物车行ID"
// @Param body body dto.UpdateCartItemRequest true "数量"
// @Success 200 {object} dto.CartResponse
// @Router /api/cart/items/{id} [put]
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	cart, err := ctrl.cartService.UpdateItem(c.Request.Context(), middleware.GetUserID(c), id, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cart)
}

// RemoveItem 移除购物车行
// @Summary 移除购物车行
// @Tags Cart
// @Security BearerAuth
// @Param id path int true "购物车行ID"
// @Success 200 {object} dto.CartResponse
// @Router /api/cart/items/{id} [delete]
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	cart, err := ctrl.cartService.RemoveItem(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cart)
}

// Clear 清空购物车
// @Summary 清空购物车
// @Tags Cart
// @Security BearerAuth
// @Router /api/cart [delete]
func (ctrl *CartController) Clear(c *gin.Context) {
	if err := ctrl.cartService.Clear(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "购物车已清空")
}

// ==================== WishlistController 收藏 ====================

type WishlistController struct {
	wishlistService *service.WishlistService
}

func NewWishlistController(wishlistService *service.WishlistService) *WishlistController {
	return &WishlistController{wishlistService: wishlistService}
}

// List 收藏列表
// @Summary 收藏列表
// @Tags Wishlist
// @Security BearerAuth
// @Success 200 {object} dto.ListResponse[dto.ProductVO]
// @Router /api/wishlist [get]
func (ctrl *WishlistController) List(c *gin.Context) {
	list, err := ctrl.wishlistService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	okList(c, list, int64(len(list)))
}

// Add 收藏
// @Summary 收藏商品，重复收藏不报错
// @Tags Wishlist
// @Security BearerAuth
// @Param body body dto.WishlistRequest true "商品"
// @Router /api/wishlist [post]
func (ctrl *WishlistController) Add(c *gin.Context) {
	var req dto.WishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	if err := ctrl.wishlistService.Add(c.Request.Context(), middleware.GetUserID(c), req.ProductID); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已收藏")
}

// Remove 取消收藏
// @Summary 取消收藏
// @Tags Wishlist
// @Security BearerAuth
// @Param product_id path int true "商品ID"
// @Router /api/wishlist/{product_id} [delete]
func (ctrl *WishlistController) Remove(c *gin.Context) {
	productID, valid := parseID(c, "product_id")
	if !valid {
		return
	}
	if err := ctrl.wishlistService.Remove(c.Request.Context(), middleware.GetUserID(c), productID); err != nil {
		fail(c, err)
		return
	}
	okMsg(c, nil, "已取消收藏")
}

// MoveToCart 移入购物车
// @Summary 收藏商品移入购物车（数量 1）
// @Tags Wishlist
// @Security BearerAuth
// @Param product_id path int true "商品ID"
// @Success 200 {object} dto.CartResponse
// @Router /api/wishlist/{product_id}/move-to-cart [post]
func (ctrl *WishlistController) MoveToCart(c *gin.Context) {
	productID, valid := parseID(c, "product_id")
	if !valid {
		return
	}
	cart, err := ctrl.wishlistService.MoveToCart(c.Request.Context(), middleware.GetUserID(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cart)
}
