package dto

import "github.com/shopspring/decimal"

// AddCartItemRequest 加入购物车
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=100"`
}

// UpdateCartItemRequest 修改数量，0 表示移除
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0,max=100"`
}

// CartLineVO 购物车行
type CartLineVO struct {
	ItemID    int64           `json:"item_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Weight    decimal.Decimal `json:"weight"` // 单件重量 kg
	Stock     int             `json:"stock"`
	// Available 商品仍在售且库存足够
	Available bool `json:"available"`
}

// CartResponse 购物车
type CartResponse struct {
	ID          int64           `json:"id"`
	Items       []CartLineVO    `json:"items"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalWeight decimal.Decimal `json:"total_weight"`
}

// WishlistRequest 收藏商品
type WishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}
