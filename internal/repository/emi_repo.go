package repository

import (
	"context"
	"errors"
	"time"

	"phonebay/internal/model"

	"gorm.io/gorm"
)

// ==================== EMIPlanRepository 分期方案仓库 ====================

// EMIPlanRepository 分期方案仓库接口
type EMIPlanRepository interface {
	Create(ctx context.Context, plan *model.EMIPlan) error
	GetByID(ctx context.Context, id int64) (*model.EMIPlan, error)
	List(ctx context.Context, activeOnly bool) ([]model.EMIPlan, error)
	Update(ctx context.Context, plan *model.EMIPlan) error
	Delete(ctx context.Context, id int64) error
}

type emiPlanRepository struct {
	db *gorm.DB
}

// NewEMIPlanRepository 创建分期方案仓库
func NewEMIPlanRepository(db *gorm.DB) EMIPlanRepository {
	return &emiPlanRepository{db: db}
}

func (r *emiPlanRepository) Create(ctx context.Context, plan *model.EMIPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *emiPlanRepository) GetByID(ctx context.Context, id int64) (*model.EMIPlan, error) {
	var plan model.EMIPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *emiPlanRepository) List(ctx context.Context, activeOnly bool) ([]model.EMIPlan, error) {
	var plans []model.EMIPlan
	db := r.db.WithContext(ctx).Order("bank_name ASC").Order("months ASC")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Find(&plans).Error
	return plans, err
}

func (r *emiPlanRepository) Update(ctx context.Context, plan *model.EMIPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *emiPlanRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.EMIPlan{}, id).Error
}

// ==================== EMIApplicationRepository 分期申请仓库 ====================

// EMIApplicationFilter 分期申请过滤条件
type EMIApplicationFilter struct {
	UserID int64
	Status string
	Page
}

// EMIApplicationRepository 分期申请仓库接口
type EMIApplicationRepository interface {
	// Create 创建申请（连同 Installments）
	Create(ctx context.Context, app *model.EMIApplication) error
	GetByID(ctx context.Context, id int64) (*model.EMIApplication, error)
	List(ctx context.Context, filter EMIApplicationFilter) ([]model.EMIApplication, int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	// UpdateStatusFrom 仅当当前状态为 from 时更新
	UpdateStatusFrom(ctx context.Context, id int64, from string, fields map[string]interface{}) (bool, error)
	// FindLiveByOrder 查找订单上进行中的申请，没有返回 nil
	FindLiveByOrder(ctx context.Context, orderID int64) (*model.EMIApplication, error)
	FindByStatus(ctx context.Context, status string, batch int, fn func(apps []model.EMIApplication) error) error
}

type emiApplicationRepository struct {
	db *gorm.DB
}

// NewEMIApplicationRepository 创建分期申请仓库
func NewEMIApplicationRepository(db *gorm.DB) EMIApplicationRepository {
	return &emiApplicationRepository{db: db}
}

func (r *emiApplicationRepository) Create(ctx context.Context, app *model.EMIApplication) error {
	return r.db.WithContext(ctx).Omit("Plan").Create(app).Error
}

func (r *emiApplicationRepository) GetByID(ctx context.Context, id int64) (*model.EMIApplication, error) {
	var app model.EMIApplication
	err := r.db.WithContext(ctx).
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *emiApplicationRepository) List(ctx context.Context, filter EMIApplicationFilter) ([]model.EMIApplication, int64, error) {
	var apps []model.EMIApplication
	var total int64

	db := r.db.WithContext(ctx).Model(&model.EMIApplication{})
	if filter.UserID > 0 {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC").Order("id DESC").
		Scopes(filter.Page.Scope()).
		Find(&apps).Error
	return apps, total, err
}

func (r *emiApplicationRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.EMIApplication{}).Where("id = ?", id).Updates(fields).Error
}

func (r *emiApplicationRepository) UpdateStatusFrom(ctx context.Context, id int64, from string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.EMIApplication{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *emiApplicationRepository) FindLiveByOrder(ctx context.Context, orderID int64) (*model.EMIApplication, error) {
	var app model.EMIApplication
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID,
			[]string{model.EMIStatusPending, model.EMIStatusApproved, model.EMIStatusActive}).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *emiApplicationRepository) FindByStatus(ctx context.Context, status string, batch int, fn func(apps []model.EMIApplication) error) error {
	var apps []model.EMIApplication
	return r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Where("status = ?", status).
		FindInBatches(&apps, batch, func(tx *gorm.DB, _ int) error {
			return fn(apps)
		}).Error
}

// ==================== EMIInstallmentRepository 分期明细仓库 ====================

// DueInstallment 待提醒 / 逾期的分期（带借款人信息）
type DueInstallment struct {
	model.EMIInstallment
	UserID  int64 `gorm:"column:user_id"`
	OrderID int64 `gorm:"column:order_id"`
}

// EMIInstallmentRepository 分期明细仓库接口
type EMIInstallmentRepository interface {
	Get(ctx context.Context, applicationID int64, number int) (*model.EMIInstallment, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]model.EMIInstallment, error)
	Update(ctx context.Context, inst *model.EMIInstallment) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	CreateBatch(ctx context.Context, items []model.EMIInstallment) error
	DeleteUnpaid(ctx context.Context, applicationID int64) error
	CountByStatus(ctx context.Context, applicationID int64, status string) (int64, error)

	// FindDueForReminder 进行中申请里 [from, to] 内到期、且 remindedBefore 之后未提醒的待还分期
	FindDueForReminder(ctx context.Context, from, to, remindedBefore time.Time, limit int) ([]DueInstallment, error)
	// FindNewlyOverdue 进行中申请里到期日早于 today 的待还分期
	FindNewlyOverdue(ctx context.Context, today time.Time, limit int) ([]DueInstallment, error)
}

type emiInstallmentRepository struct {
	db *gorm.DB
}

// NewEMIInstallmentRepository 创建分期明细仓库
func NewEMIInstallmentRepository(db *gorm.DB) EMIInstallmentRepository {
	return &emiInstallmentRepository{db: db}
}

func (r *emiInstallmentRepository) Get(ctx context.Context, applicationID int64, number int) (*model.EMIInstallment, error) {
	var inst model.EMIInstallment
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND number = ?", applicationID, number).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *emiInstallmentRepository) ListByApplication(ctx context.Context, applicationID int64) ([]model.EMIInstallment, error) {
	var items []model.EMIInstallment
	err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).Order("number ASC").Find(&items).Error
	return items, err
}

func (r *emiInstallmentRepository) Update(ctx context.Context, inst *model.EMIInstallment) error {
	return r.db.WithContext(ctx).Save(inst).Error
}

func (r *emiInstallmentRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.EMIInstallment{}).Where("id = ?", id).Updates(fields).Error
}

func (r *emiInstallmentRepository) CreateBatch(ctx context.Context, items []model.EMIInstallment) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *emiInstallmentRepository) DeleteUnpaid(ctx context.Context, applicationID int64) error {
	return r.db.WithContext(ctx).
		Where("application_id = ? AND status <> ?", applicationID, model.InstallmentPaid).
		Delete(&model.EMIInstallment{}).Error
}

func (r *emiInstallmentRepository) CountByStatus(ctx context.Context, applicationID int64, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EMIInstallment{}).
		Where("application_id = ? AND status = ?", applicationID, status).
		Count(&count).Error
	return count, err
}

func (r *emiInstallmentRepository) activeScope(db *gorm.DB) *gorm.DB {
	return db.Model(&model.EMIInstallment{}).
		Select("emi_installments.*, emi_applications.user_id, emi_applications.order_id").
		Joins("JOIN emi_applications ON emi_applications.id = emi_installments.application_id").
		Where("emi_applications.status = ? AND emi_applications.deleted_at IS NULL", model.EMIStatusActive).
		Where("emi_installments.status = ?", model.InstallmentPending)
}

func (r *emiInstallmentRepository) FindDueForReminder(ctx context.Context, from, to, remindedBefore time.Time, limit int) ([]DueInstallment, error) {
	var out []DueInstallment
	err := r.db.WithContext(ctx).Scopes(r.activeScope).
		Where("emi_installments.due_date >= ? AND emi_installments.due_date <= ?", from, to).
		Where("(emi_installments.reminder_sent_at IS NULL OR emi_installments.reminder_sent_at < ?)", remindedBefore).
		Order("emi_installments.due_date ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *emiInstallmentRepository) FindNewlyOverdue(ctx context.Context, today time.Time, limit int) ([]DueInstallment, error) {
	var out []DueInstallment
	err := r.db.WithContext(ctx).Scopes(r.activeScope).
		Where("emi_installments.due_date < ?", today).
		Order("emi_installments.due_date ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
