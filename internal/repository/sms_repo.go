package repository

import (
	"context"
	"time"

	"phonebay/internal/model"

	"gorm.io/gorm"
)

// SMSLogFilter 短信日志过滤条件
type SMSLogFilter struct {
	Phone     string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Page
}

// SMSRepository 短信仓库接口（模板 + 日志）
type SMSRepository interface {
	// 模板
	CreateTemplate(ctx context.Context, tpl *model.SMSTemplate) error
	GetTemplate(ctx context.Context, id int64) (*model.SMSTemplate, error)
	GetTemplateByCode(ctx context.Context, code string) (*model.SMSTemplate, error)
	ListTemplates(ctx context.Context) ([]model.SMSTemplate, error)
	UpdateTemplate(ctx context.Context, tpl *model.SMSTemplate) error
	DeleteTemplate(ctx context.Context, id int64) error
	TemplateCodeExists(ctx context.Context, code string) (bool, error)

	// 日志
	CreateLog(ctx context.Context, log *model.SMSLog) error
	UpdateLog(ctx context.Context, id int64, createdAt time.Time, fields map[string]interface{}) error
	ListLogs(ctx context.Context, filter SMSLogFilter) ([]model.SMSLog, int64, error)
	// FindRetryable since 之后发送失败且尝试次数未达上限的日志
	FindRetryable(ctx context.Context, since time.Time, maxAttempts, limit int) ([]model.SMSLog, error)
}

type smsRepository struct {
	db *gorm.DB
}

// NewSMSRepository 创建短信仓库
func NewSMSRepository(db *gorm.DB) SMSRepository {
	return &smsRepository{db: db}
}

// ==================== 模板 ====================

func (r *smsRepository) CreateTemplate(ctx context.Context, tpl *model.SMSTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *smsRepository) GetTemplate(ctx context.Context, id int64) (*model.SMSTemplate, error) {
	var tpl model.SMSTemplate
	if err := r.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *smsRepository) GetTemplateByCode(ctx context.Context, code string) (*model.SMSTemplate, error) {
	var tpl model.SMSTemplate
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *smsRepository) ListTemplates(ctx context.Context) ([]model.SMSTemplate, error) {
	var tpls []model.SMSTemplate
	err := r.db.WithContext(ctx).Order("code ASC").Find(&tpls).Error
	return tpls, err
}

func (r *smsRepository) UpdateTemplate(ctx context.Context, tpl *model.SMSTemplate) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

func (r *smsRepository) DeleteTemplate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.SMSTemplate{}, id).Error
}

func (r *smsRepository) TemplateCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SMSTemplate{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// ==================== 日志 ====================

func (r *smsRepository) CreateLog(ctx context.Context, log *model.SMSLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// UpdateLog 带上分区键 created_at，PostgreSQL 可直接裁剪到对应分区
func (r *smsRepository) UpdateLog(ctx context.Context, id int64, createdAt time.Time, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.SMSLog{}).
		Where("id = ? AND created_at = ?", id, createdAt).
		Updates(fields).Error
}

func (r *smsRepository) ListLogs(ctx context.Context, filter SMSLogFilter) ([]model.SMSLog, int64, error) {
	var logs []model.SMSLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.SMSLog{})
	if filter.Phone != "" {
		db = db.Where("phone = ?", filter.Phone)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", filter.EndDate)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Order("id DESC").Scopes(filter.Page.Scope()).Find(&logs).Error
	return logs, total, err
}

func (r *smsRepository) FindRetryable(ctx context.Context, since time.Time, maxAttempts, limit int) ([]model.SMSLog, error) {
	var logs []model.SMSLog
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ? AND attempts < ?", model.SMSStatusFailed, since, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
