package repository

import (
	"context"
	"errors"

	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ==================== VendorRepository 商家仓库 ====================

// VendorRepository 商家仓库接口
type VendorRepository interface {
	Create(ctx context.Context, v *model.VendorProfile) error
	GetByID(ctx context.Context, id int64) (*model.VendorProfile, error)
	// GetByUserID 没有返回 nil
	GetByUserID(ctx context.Context, userID int64) (*model.VendorProfile, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.VendorProfile, error)
	List(ctx context.Context, status string, page Page) ([]model.VendorProfile, int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	// AddBalance 原子累加余额
	AddBalance(ctx context.Context, id int64, amount decimal.Decimal) error
	FindAll(ctx context.Context, batch int, fn func(vendors []model.VendorProfile) error) error
}

type vendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建商家仓库
func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

func (r *vendorRepository) Create(ctx context.Context, v *model.VendorProfile) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *vendorRepository) GetByID(ctx context.Context, id int64) (*model.VendorProfile, error) {
	var v model.VendorProfile
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vendorRepository) GetByUserID(ctx context.Context, userID int64) (*model.VendorProfile, error) {
	var v model.VendorProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vendorRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.VendorProfile, error) {
	var vendors []model.VendorProfile
	if len(ids) == 0 {
		return vendors, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vendors).Error
	return vendors, err
}

func (r *vendorRepository) List(ctx context.Context, status string, page Page) ([]model.VendorProfile, int64, error) {
	var vendors []model.VendorProfile
	var total int64

	db := r.db.WithContext(ctx).Model(&model.VendorProfile{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id DESC").Scopes(page.Scope()).Find(&vendors).Error
	return vendors, total, err
}

func (r *vendorRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.VendorProfile{}).Where("id = ?", id).Updates(fields).Error
}

func (r *vendorRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.VendorProfile{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *vendorRepository) AddBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.VendorProfile{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount.InexactFloat64())).Error
}

func (r *vendorRepository) FindAll(ctx context.Context, batch int, fn func(vendors []model.VendorProfile) error) error {
	var vendors []model.VendorProfile
	return r.db.WithContext(ctx).FindInBatches(&vendors, batch, func(tx *gorm.DB, _ int) error {
		return fn(vendors)
	}).Error
}
