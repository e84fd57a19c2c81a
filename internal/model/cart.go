package model

// Cart 购物车，每个用户一个
type Cart struct {
	PlainModel
	UserID int64      `gorm:"uniqueIndex;not null" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 购物车明细，同一商品只占一行
type CartItem struct {
	PlainModel
	CartID    int64    `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID int64    `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartItem) TableName() string { return "cart_items" }

// WishlistItem 收藏
type WishlistItem struct {
	PlainModel
	UserID    int64    `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"user_id"`
	ProductID int64    `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }
