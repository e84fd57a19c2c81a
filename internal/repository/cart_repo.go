package repository

import (
	"context"
	"errors"

	"phonebay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ==================== CartRepository 购物车仓库 ====================

// CartRepository 购物车仓库接口
type CartRepository interface {
	// GetOrCreate 获取用户购物车，不存在则创建
	GetOrCreate(ctx context.Context, userID int64) (*model.Cart, error)
	// GetWithItems 获取购物车及明细（含商品）
	GetWithItems(ctx context.Context, userID int64) (*model.Cart, error)
	GetItem(ctx context.Context, cartID, itemID int64) (*model.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID int64) (*model.CartItem, error)
	SaveItem(ctx context.Context, item *model.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error)
	DeleteItemByProduct(ctx context.Context, cartID, productID int64) error
	Clear(ctx context.Context, cartID int64) error
}

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Cart, error) {
	cart := model.Cart{UserID: userID}
	// 并发首次访问时由唯一索引兜底
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Where(model.Cart{UserID: userID}).
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.ID == 0 {
		if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
			return nil, err
		}
	}
	return &cart, nil
}

func (r *cartRepository) GetWithItems(ctx context.Context, userID int64) (*model.Cart, error) {
	cart, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("cart_id = ?", cart.ID).
		Order("id ASC").
		Find(&cart.Items).Error
	return cart, err
}

func (r *cartRepository) GetItem(ctx context.Context, cartID, itemID int64) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) FindItemByProduct(ctx context.Context, cartID, productID int64) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) SaveItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Omit("Product").Save(item).Error
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&model.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *cartRepository) DeleteItemByProduct(ctx context.Context, cartID, productID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&model.CartItem{}).Error
}

func (r *cartRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error
}

// ==================== WishlistRepository 收藏仓库 ====================

// WishlistRepository 收藏仓库接口
type WishlistRepository interface {
	List(ctx context.Context, userID int64) ([]model.WishlistItem, error)
	// Add 幂等添加，已存在不报错
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) (bool, error)
}

type wishlistRepository struct {
	db *gorm.DB
}

// NewWishlistRepository 创建收藏仓库
func NewWishlistRepository(db *gorm.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) List(ctx context.Context, userID int64) ([]model.WishlistItem, error) {
	var items []model.WishlistItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *wishlistRepository) Add(ctx context.Context, userID, productID int64) error {
	item := model.WishlistItem{UserID: userID, ProductID: productID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Omit("Product").
		Create(&item).Error
}

func (r *wishlistRepository) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).Delete(&model.WishlistItem{})
	return res.RowsAffected > 0, res.Error
}
