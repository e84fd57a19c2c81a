package repository

import (
	"context"
	"strings"
	"time"

	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ==================== 过滤条件 ====================

// OrderFilter 订单过滤条件
type OrderFilter struct {
	UserID        int64
	Status        string
	PaymentStatus string
	StartDate     *time.Time
	EndDate       *time.Time
	Keyword       string // 订单号 / 收货手机号
	Page
}

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
type OrderRepository interface {
	// Create 创建订单（连同 Items）
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByNumber(ctx context.Context, number string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// UpdateStatusFrom 乐观更新：仅当当前状态为 from 时更新，返回是否更新成功
	UpdateStatusFrom(ctx context.Context, id int64, from string, fields map[string]interface{}) (bool, error)
	NumberExists(ctx context.Context, number string) (bool, error)

	// 统计
	Stats(ctx context.Context, start, end *time.Time) (*OrderStats, error)

	// 定时任务
	FindExpiredUnpaid(ctx context.Context, before time.Time, limit int) ([]model.Order, error)

	// 明细
	UpdateItem(ctx context.Context, item *model.OrderItem) error
	FindVendorItemsMissingCommission(ctx context.Context, afterID int64, limit int) ([]model.OrderItem, error)
	VendorSales(ctx context.Context, vendorID int64) (*VendorSales, error)
	FindAll(ctx context.Context, batch int, fn func(orders []model.Order) error) error
}

// OrderStats 订单统计
type OrderStats struct {
	TotalOrders int64            `json:"total_orders"`
	Revenue     decimal.Decimal  `json:"revenue"` // 未取消订单金额合计
	ByStatus    map[string]int64 `json:"by_status"`
}

// VendorSales 商家销售汇总
type VendorSales struct {
	ItemCount  int64           `json:"item_count"`
	GrossSales decimal.Decimal `json:"gross_sales"`
	Commission decimal.Decimal `json:"commission"`
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_number = ?", number).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})

	// 应用过滤条件
	if filter.UserID > 0 {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		db = db.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", filter.EndDate)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + kw + "%"
		db = db.Where("(order_number LIKE ? OR shipping_phone LIKE ?)", like, like)
	}

	// 计算总数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Preload("Items").
		Order("created_at DESC").Order("id DESC").
		Scopes(filter.Page.Scope()).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields).Error
}

func (r *orderRepository) UpdateStatusFrom(ctx context.Context, id int64, from string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *orderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Order{}).Where("order_number = ?", number).Count(&count).Error
	return count > 0, err
}

func (r *orderRepository) Stats(ctx context.Context, start, end *time.Time) (*OrderStats, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&model.Order{})
		if start != nil {
			db = db.Where("created_at >= ?", start)
		}
		if end != nil {
			db = db.Where("created_at <= ?", end)
		}
		return db
	}

	// 各状态订单数
	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Scopes(scope).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	stats := &OrderStats{ByStatus: make(map[string]int64)}
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
		stats.TotalOrders += sc.Count
	}

	// 营收：未取消订单
	var revenue struct{ Amount decimal.Decimal }
	if err := r.db.WithContext(ctx).Scopes(scope).
		Where("status <> ?", model.OrderStatusCancelled).
		Select("COALESCE(SUM(total), 0) AS amount").
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	stats.Revenue = revenue.Amount
	return stats, nil
}

func (r *orderRepository) FindExpiredUnpaid(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_method = ? AND payment_status = ? AND status = ?",
			model.PaymentMethodOnline, model.PaymentStatusUnpaid, model.OrderStatusPending).
		Where("created_at < ?", before).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ==================== 明细 ====================

func (r *orderRepository) UpdateItem(ctx context.Context, item *model.OrderItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *orderRepository) FindVendorItemsMissingCommission(ctx context.Context, afterID int64, limit int) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Where("vendor_id IS NOT NULL AND (commission_rate = 0 OR commission_amount = 0)").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *orderRepository) VendorSales(ctx context.Context, vendorID int64) (*VendorSales, error) {
	var out VendorSales
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.vendor_id = ? AND orders.status <> ? AND orders.deleted_at IS NULL",
			vendorID, model.OrderStatusCancelled).
		Select("COUNT(*) AS item_count, " +
			"COALESCE(SUM(order_items.line_total), 0) AS gross_sales, " +
			"COALESCE(SUM(order_items.commission_amount), 0) AS commission").
		Scan(&out).Error
	return &out, err
}

func (r *orderRepository) FindAll(ctx context.Context, batch int, fn func(orders []model.Order) error) error {
	var orders []model.Order
	return r.db.WithContext(ctx).Preload("Items").FindInBatches(&orders, batch, func(tx *gorm.DB, _ int) error {
		return fn(orders)
	}).Error
}
