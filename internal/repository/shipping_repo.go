package repository

import (
	"context"
	"errors"

	"phonebay/internal/model"

	"gorm.io/gorm"
)

// ShippingRepository 配送仓库接口（区域 / 方式 / 运费）
type ShippingRepository interface {
	// 区域
	CreateZone(ctx context.Context, zone *model.ShippingZone) error
	GetZone(ctx context.Context, id int64) (*model.ShippingZone, error)
	ListZones(ctx context.Context, activeOnly bool) ([]model.ShippingZone, error)
	UpdateZone(ctx context.Context, zone *model.ShippingZone) error
	DeleteZone(ctx context.Context, id int64) error
	// ClearDefaultZone 取消其他区域的默认标记
	ClearDefaultZone(ctx context.Context, exceptID int64) error

	// 配送方式
	CreateMethod(ctx context.Context, m *model.ShippingMethod) error
	GetMethod(ctx context.Context, id int64) (*model.ShippingMethod, error)
	ListMethods(ctx context.Context, activeOnly bool) ([]model.ShippingMethod, error)
	UpdateMethod(ctx context.Context, m *model.ShippingMethod) error
	DeleteMethod(ctx context.Context, id int64) error
	MethodCodeExists(ctx context.Context, code string, excludeID int64) (bool, error)

	// 运费
	UpsertRate(ctx context.Context, rate *model.ShippingRate) error
	GetRate(ctx context.Context, id int64) (*model.ShippingRate, error)
	// FindRate 没有返回 nil
	FindRate(ctx context.Context, zoneID, methodID int64) (*model.ShippingRate, error)
	ListRatesByZone(ctx context.Context, zoneID int64) ([]model.ShippingRate, error)
	DeleteRate(ctx context.Context, id int64) error
}

type shippingRepository struct {
	db *gorm.DB
}

// NewShippingRepository 创建配送仓库
func NewShippingRepository(db *gorm.DB) ShippingRepository {
	return &shippingRepository{db: db}
}

// ==================== 区域 ====================

func (r *shippingRepository) CreateZone(ctx context.Context, zone *model.ShippingZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *shippingRepository) GetZone(ctx context.Context, id int64) (*model.ShippingZone, error) {
	var zone model.ShippingZone
	if err := r.db.WithContext(ctx).First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

// ListZones 按 id 升序，区域匹配依赖此顺序
func (r *shippingRepository) ListZones(ctx context.Context, activeOnly bool) ([]model.ShippingZone, error) {
	var zones []model.ShippingZone
	db := r.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Find(&zones).Error
	return zones, err
}

func (r *shippingRepository) UpdateZone(ctx context.Context, zone *model.ShippingZone) error {
	return r.db.WithContext(ctx).Save(zone).Error
}

func (r *shippingRepository) DeleteZone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone_id = ?", id).Delete(&model.ShippingRate{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ShippingZone{}, id).Error
	})
}

func (r *shippingRepository) ClearDefaultZone(ctx context.Context, exceptID int64) error {
	return r.db.WithContext(ctx).Model(&model.ShippingZone{}).
		Where("id <> ? AND is_default = ?", exceptID, true).
		Update("is_default", false).Error
}

// ==================== 配送方式 ====================

func (r *shippingRepository) CreateMethod(ctx context.Context, m *model.ShippingMethod) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *shippingRepository) GetMethod(ctx context.Context, id int64) (*model.ShippingMethod, error) {
	var m model.ShippingMethod
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *shippingRepository) ListMethods(ctx context.Context, activeOnly bool) ([]model.ShippingMethod, error) {
	var methods []model.ShippingMethod
	db := r.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Find(&methods).Error
	return methods, err
}

func (r *shippingRepository) UpdateMethod(ctx context.Context, m *model.ShippingMethod) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *shippingRepository) DeleteMethod(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("method_id = ?", id).Delete(&model.ShippingRate{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ShippingMethod{}, id).Error
	})
}

func (r *shippingRepository) MethodCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.ShippingMethod{}).
		Where("code = ? AND id <> ?", code, excludeID).
		Count(&count).Error
	return count > 0, err
}

// ==================== 运费 ====================

// UpsertRate 区域 × 方式唯一，已存在则覆盖
func (r *shippingRepository) UpsertRate(ctx context.Context, rate *model.ShippingRate) error {
	existing, err := r.FindRate(ctx, rate.ZoneID, rate.MethodID)
	if err != nil {
		return err
	}
	if existing != nil {
		rate.ID = existing.ID
		rate.CreatedAt = existing.CreatedAt
		rate.CreatedBy = existing.CreatedBy
	}
	return r.db.WithContext(ctx).Omit("Method").Save(rate).Error
}

func (r *shippingRepository) GetRate(ctx context.Context, id int64) (*model.ShippingRate, error) {
	var rate model.ShippingRate
	if err := r.db.WithContext(ctx).Preload("Method").First(&rate, id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *shippingRepository) FindRate(ctx context.Context, zoneID, methodID int64) (*model.ShippingRate, error) {
	var rate model.ShippingRate
	err := r.db.WithContext(ctx).Preload("Method").
		Where("zone_id = ? AND method_id = ?", zoneID, methodID).
		First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *shippingRepository) ListRatesByZone(ctx context.Context, zoneID int64) ([]model.ShippingRate, error) {
	var rates []model.ShippingRate
	err := r.db.WithContext(ctx).Preload("Method").
		Where("zone_id = ?", zoneID).
		Order("method_id ASC").
		Find(&rates).Error
	return rates, err
}

func (r *shippingRepository) DeleteRate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.ShippingRate{}, id).Error
}
