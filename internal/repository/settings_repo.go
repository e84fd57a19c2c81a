package repository

import (
	"context"
	"errors"

	"phonebay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository 站点设置仓库接口
type SettingsRepository interface {
	// Get 读取单例，不存在时写入默认值
	Get(ctx context.Context) (*model.SiteSettings, error)
	Save(ctx context.Context, s *model.SiteSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository 创建站点设置仓库
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.SiteSettings, error) {
	var s model.SiteSettings
	err := r.db.WithContext(ctx).First(&s, model.SiteSettingsID).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 首次访问：并发时只有一个写入成功
	def := model.DefaultSiteSettings()
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&def).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).First(&s, model.SiteSettingsID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, s *model.SiteSettings) error {
	s.ID = model.SiteSettingsID
	return r.db.WithContext(ctx).Save(s).Error
}
