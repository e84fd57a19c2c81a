package service

import (
	"context"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/cache"

	"github.com/shopspring/decimal"
)

const (
	settingsCacheKey = "settings:site"
	settingsCacheTTL = 10 * time.Minute
)

var hundred = decimal.NewFromInt(100)

// SettingsService 站点设置
type SettingsService struct {
	repo  repository.SettingsRepository
	cache cache.Cache
}

// NewSettingsService 创建站点设置服务
func NewSettingsService(repo repository.SettingsRepository, c cache.Cache) *SettingsService {
	return &SettingsService{repo: repo, cache: c}
}

// Get 读取站点设置（缓存）
func (s *SettingsService) Get(ctx context.Context) (*model.SiteSettings, error) {
	return cache.GetOrLoad(ctx, s.cache, settingsCacheKey, settingsCacheTTL, func(ctx context.Context) (*model.SiteSettings, error) {
		return s.repo.Get(ctx)
	})
}

// Update 更新站点设置并清除缓存
func (s *SettingsService) Update(ctx context.Context, req *dto.UpdateSettingsRequest) (*model.SiteSettings, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.SiteName != nil {
		st.SiteName = *req.SiteName
	}
	if req.SupportPhone != nil {
		st.SupportPhone = *req.SupportPhone
	}
	if req.SupportEmail != nil {
		st.SupportEmail = *req.SupportEmail
	}
	if req.ClearFreeShipping {
		st.FreeShippingThreshold = decimal.NullDecimal{}
	} else if req.FreeShippingThreshold != nil {
		if req.FreeShippingThreshold.IsNegative() {
			return nil, invalidf("包邮门槛不能为负")
		}
		st.FreeShippingThreshold = decimal.NewNullDecimal(*req.FreeShippingThreshold)
	}
	if req.DefaultCommissionRate != nil {
		if req.DefaultCommissionRate.IsNegative() || req.DefaultCommissionRate.GreaterThan(hundred) {
			return nil, invalidf("佣金比例须在 0~100 之间")
		}
		st.DefaultCommissionRate = *req.DefaultCommissionRate
	}
	if req.CODEnabled != nil {
		st.CODEnabled = *req.CODEnabled
	}
	if req.EMIEnabled != nil {
		st.EMIEnabled = *req.EMIEnabled
	}
	if req.MinEMIAmount != nil {
		if req.MinEMIAmount.IsNegative() {
			return nil, invalidf("最低分期金额不能为负")
		}
		st.MinEMIAmount = *req.MinEMIAmount
	}
	if req.SMSNotificationsEnabled != nil {
		st.SMSNotificationsEnabled = *req.SMSNotificationsEnabled
	}
	if req.MaintenanceMode != nil {
		st.MaintenanceMode = *req.MaintenanceMode
	}

	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, settingsCacheKey)
	return st, nil
}
