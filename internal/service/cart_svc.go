package service

import (
	"context"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"

	"github.com/shopspring/decimal"
)

// maxCartQuantity 单个商品在购物车中的最大数量
const maxCartQuantity = 100

// CartService 购物车
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

// NewCartService 创建购物车服务
func NewCartService(uow *repository.UnitOfWork) *CartService {
	return &CartService{carts: uow.Carts, products: uow.Products}
}

// Get 购物车详情，含小计与总重量（仅统计可购买的行）
func (s *CartService) Get(ctx context.Context, userID int64) (*dto.CartResponse, error) {
	cart, err := s.carts.GetWithItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildCart(cart), nil
}

func buildCart(cart *model.Cart) *dto.CartResponse {
	resp := &dto.CartResponse{
		ID:          cart.ID,
		Items:       make([]dto.CartLineVO, 0, len(cart.Items)),
		Subtotal:    decimal.Zero,
		TotalWeight: decimal.Zero,
	}
	for _, it := range cart.Items {
		line := dto.CartLineVO{ItemID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
		if p := it.Product; p != nil {
			qty := decimal.NewFromInt(int64(it.Quantity))
			line.Name, line.Slug, line.SKU = p.Name, p.Slug, p.SKU
			line.UnitPrice = p.EffectivePrice()
			line.LineTotal = line.UnitPrice.Mul(qty)
			line.Weight = p.Weight
			line.Stock = p.Stock
			line.Available = isPurchasable(p, it.Quantity)
			if line.Available {
				resp.Subtotal = resp.Subtotal.Add(line.LineTotal)
				resp.TotalWeight = resp.TotalWeight.Add(p.Weight.Mul(qty))
				resp.ItemCount += it.Quantity
			}
		}
		resp.Items = append(resp.Items, line)
	}
	return resp
}

// isPurchasable 未删除、在售且库存足够
func isPurchasable(p *model.Product, qty int) bool {
	return p != nil && !p.DeletedAt.Valid && p.IsActive && p.Stock >= qty
}

// AddItem 加入购物车，已存在的商品合并数量
func (s *CartService) AddItem(ctx context.Context, userID int64, req *dto.AddCartItemRequest) (*dto.CartResponse, error) {
	if req.Quantity <= 0 {
		return nil, invalidf("数量必须大于 0")
	}
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, notFound(err, "商品")
	}
	if !p.IsActive {
		return nil, invalidf("商品已下架")
	}

	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.carts.FindItemByProduct(ctx, cart.ID, p.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = &model.CartItem{CartID: cart.ID, ProductID: p.ID}
	}
	qty := item.Quantity + req.Quantity
	if qty > maxCartQuantity {
		return nil, invalidf("单个商品最多购买 %d 件", maxCartQuantity)
	}
	if qty > p.Stock {
		return nil, ErrOutOfStock
	}
	item.Quantity = qty
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// UpdateItem 修改数量，0 表示删除
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*dto.CartResponse, error) {
	if quantity < 0 {
		return nil, invalidf("数量不能为负")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	if quantity > maxCartQuantity {
		return nil, invalidf("单个商品最多购买 %d 件", maxCartQuantity)
	}

	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.carts.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, notFound(err, "购物车商品")
	}
	p, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, notFound(err, "商品")
	}
	if quantity > p.Stock {
		return nil, ErrOutOfStock
	}
	item.Quantity = quantity
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// RemoveItem 删除购物车行
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) (*dto.CartResponse, error) {
	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.carts.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("购物车商品")
	}
	return s.Get(ctx, userID)
}

// Clear 清空购物车
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	return s.carts.Clear(ctx, cart.ID)
}

// ==================== WishlistService 收藏 ====================

// WishlistService 收藏夹
type WishlistService struct {
	wishlist repository.WishlistRepository
	products repository.ProductRepository
	cart     *CartService
}

// NewWishlistService 创建收藏服务
func NewWishlistService(uow *repository.UnitOfWork, cart *CartService) *WishlistService {
	return &WishlistService{wishlist: uow.Wishlist, products: uow.Products, cart: cart}
}

// List 收藏列表（已删除商品不返回）
func (s *WishlistService) List(ctx context.Context, userID int64) ([]*dto.ProductVO, error) {
	items, err := s.wishlist.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ProductVO, 0, len(items))
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		out = append(out, dto.NewProductVO(it.Product))
	}
	return out, nil
}

// Add 收藏商品，重复收藏不报错
func (s *WishlistService) Add(ctx context.Context, userID, productID int64) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return notFound(err, "商品")
	}
	return s.wishlist.Add(ctx, userID, productID)
}

// Remove 取消收藏
func (s *WishlistService) Remove(ctx context.Context, userID, productID int64) error {
	ok, err := s.wishlist.Remove(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundf("收藏")
	}
	return nil
}

// MoveToCart 从收藏移入购物车（数量 1），成功后取消收藏
func (s *WishlistService) MoveToCart(ctx context.Context, userID, productID int64) (*dto.CartResponse, error) {
	cart, err := s.cart.AddItem(ctx, userID, &dto.AddCartItemRequest{ProductID: productID, Quantity: 1})
	if err != nil {
		return nil, err
	}
	if _, err := s.wishlist.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}
	return cart, nil
}
