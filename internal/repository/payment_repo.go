package repository

import (
	"context"

	"phonebay/internal/model"

	"gorm.io/gorm"
)

// PaymentRepository 支付流水仓库接口
type PaymentRepository interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	GetByTranID(ctx context.Context, tranID string) (*model.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// UpdateStatusFrom 仅当当前状态在 from 中时更新
	UpdateStatusFrom(ctx context.Context, id int64, from []string, fields map[string]interface{}) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付流水仓库
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *paymentRepository) GetByTranID(ctx context.Context, tranID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("tran_id = ?", tranID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error) {
	var txns []model.PaymentTransaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id DESC").Find(&txns).Error
	return txns, err
}

func (r *paymentRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).Where("id = ?", id).Updates(fields).Error
}

func (r *paymentRepository) UpdateStatusFrom(ctx context.Context, id int64, from []string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}
