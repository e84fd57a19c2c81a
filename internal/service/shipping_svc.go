package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"
	"phonebay/pkg/cache"

	"github.com/shopspring/decimal"
)

const (
	activeZonesCacheKey = "shipping:zones:active"
	activeZonesCacheTTL = 10 * time.Minute
)

// ==================== ShippingService 运费服务 ====================

// ShippingService 配送区域匹配与运费计算
type ShippingService struct {
	repo     repository.ShippingRepository
	settings *SettingsService
	cache    cache.Cache
}

// NewShippingService 创建运费服务
func NewShippingService(repo repository.ShippingRepository, settings *SettingsService, c cache.Cache) *ShippingService {
	return &ShippingService{repo: repo, settings: settings, cache: c}
}

// QuoteParams 运费查询参数
type QuoteParams struct {
	City     string
	MethodID int64 // 0 = 全部配送方式
	Weight   decimal.Decimal
	Subtotal decimal.Decimal
}

// ==================== 区域匹配 ====================

// ResolveZone 根据城市名匹配配送区域
func (s *ShippingService) ResolveZone(ctx context.Context, city string) (*model.ShippingZone, error) {
	zones, err := s.activeZones(ctx)
	if err != nil {
		return nil, err
	}
	zone := MatchZone(zones, city)
	if zone == nil {
		return nil, notFoundf("没有覆盖城市 %s 的配送区域", city)
	}
	return zone, nil
}

// MatchZone 按 id 顺序线性扫描：
// 1. 别名精确匹配（去首尾空格）
// 2. 忽略大小写、合并空白后匹配
// 3. 子串匹配（别名包含城市或城市包含别名）
// 4. 默认区域
func MatchZone(zones []model.ShippingZone, city string) *model.ShippingZone {
	trimmed := strings.TrimSpace(city)
	norm := normalizeCity(city)

	if trimmed != "" {
		for i := range zones {
			for _, alias := range zones[i].Cities {
				if strings.TrimSpace(alias) == trimmed {
					return &zones[i]
				}
			}
		}
		for i := range zones {
			for _, alias := range zones[i].Cities {
				if normalizeCity(alias) == norm {
					return &zones[i]
				}
			}
		}
		for i := range zones {
			for _, alias := range zones[i].Cities {
				a := normalizeCity(alias)
				if a == "" {
					continue
				}
				if strings.Contains(norm, a) || strings.Contains(a, norm) {
					return &zones[i]
				}
			}
		}
	}

	for i := range zones {
		if zones[i].IsDefault {
			return &zones[i]
		}
	}
	return nil
}

func normalizeCity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (s *ShippingService) activeZones(ctx context.Context) ([]model.ShippingZone, error) {
	return cache.GetOrLoad(ctx, s.cache, activeZonesCacheKey, activeZonesCacheTTL, func(ctx context.Context) ([]model.ShippingZone, error) {
		return s.repo.ListZones(ctx, true)
	})
}

func (s *ShippingService) invalidateZones(ctx context.Context) {
	_ = s.cache.Delete(ctx, activeZonesCacheKey)
}

// ==================== 运费计算 ====================

// Quote 运费报价，按费用从低到高
func (s *ShippingService) Quote(ctx context.Context, p QuoteParams) ([]dto.ShippingQuote, error) {
	if p.Weight.IsNegative() || p.Subtotal.IsNegative() {
		return nil, invalidf("重量和金额不能为负")
	}
	zone, err := s.ResolveZone(ctx, p.City)
	if err != nil {
		return nil, err
	}

	threshold := decimal.NullDecimal{}
	if s.settings != nil {
		st, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		threshold = st.FreeShippingThreshold
	}

	var rates []model.ShippingRate
	if p.MethodID > 0 {
		rate, err := s.repo.FindRate(ctx, zone.ID, p.MethodID)
		if err != nil {
			return nil, err
		}
		if rate == nil {
			return nil, notFoundf("区域 %s 不支持该配送方式", zone.Name)
		}
		rates = append(rates, *rate)
	} else {
		if rates, err = s.repo.ListRatesByZone(ctx, zone.ID); err != nil {
			return nil, err
		}
	}

	quotes := make([]dto.ShippingQuote, 0, len(rates))
	for i := range rates {
		r := &rates[i]
		if r.Method == nil || !r.Method.IsActive {
			continue
		}
		cost, free := ComputeShippingCost(r, p.Weight, p.Subtotal, threshold)
		quotes = append(quotes, dto.ShippingQuote{
			ZoneID:           zone.ID,
			ZoneName:         zone.Name,
			MethodID:         r.MethodID,
			MethodName:       r.Method.Name,
			MethodCode:       r.Method.Code,
			Cost:             cost,
			Free:             free,
			EstimatedDaysMin: r.Method.EstimatedDaysMin,
			EstimatedDaysMax: r.Method.EstimatedDaysMax,
		})
	}
	if len(quotes) == 0 {
		return nil, notFoundf("区域 %s 暂无可用配送方式", zone.Name)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Cost.LessThan(quotes[j].Cost)
	})
	return quotes, nil
}

// QuoteCheapest 下单用：指定方式或最便宜的方式
func (s *ShippingService) QuoteCheapest(ctx context.Context, p QuoteParams) (*dto.ShippingQuote, error) {
	quotes, err := s.Quote(ctx, p)
	if err != nil {
		return nil, err
	}
	return &quotes[0], nil
}

// ComputeShippingCost 计算单条运费
// flat: Amount
// per_kg: Amount + PerKgAmount * ceil(max(weight - BaseWeight, 0))
// 满足方式包邮额或全站包邮门槛时为 0
func ComputeShippingCost(rate *model.ShippingRate, weight, subtotal decimal.Decimal, siteThreshold decimal.NullDecimal) (decimal.Decimal, bool) {
	if rate.FreeAbove.Valid && subtotal.GreaterThanOrEqual(rate.FreeAbove.Decimal) {
		return decimal.Zero, true
	}
	if siteThreshold.Valid && subtotal.GreaterThanOrEqual(siteThreshold.Decimal) {
		return decimal.Zero, true
	}

	cost := rate.Amount
	if rate.RateType == model.RateTypePerKg {
		extra := weight.Sub(rate.BaseWeight)
		if extra.IsPositive() {
			cost = cost.Add(rate.PerKgAmount.Mul(extra.Ceil()))
		}
	}
	return cost.Round(2), false
}

// ==================== 区域 ====================

// ListZones 全部区域
func (s *ShippingService) ListZones(ctx context.Context) ([]model.ShippingZone, error) {
	return s.repo.ListZones(ctx, false)
}

// CreateZone 创建区域
func (s *ShippingService) CreateZone(ctx context.Context, req *dto.ShippingZoneRequest) (*model.ShippingZone, error) {
	zone := &model.ShippingZone{IsActive: true}
	applyZoneRequest(zone, req)
	if err := s.repo.CreateZone(ctx, zone); err != nil {
		return nil, translateErr(err)
	}
	if err := s.afterZoneWrite(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// UpdateZone 更新区域
func (s *ShippingService) UpdateZone(ctx context.Context, id int64, req *dto.ShippingZoneRequest) (*model.ShippingZone, error) {
	zone, err := s.repo.GetZone(ctx, id)
	if err != nil {
		return nil, notFound(err, "配送区域")
	}
	applyZoneRequest(zone, req)
	if err := s.repo.UpdateZone(ctx, zone); err != nil {
		return nil, translateErr(err)
	}
	if err := s.afterZoneWrite(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// DeleteZone 删除区域及其运费
func (s *ShippingService) DeleteZone(ctx context.Context, id int64) error {
	if _, err := s.repo.GetZone(ctx, id); err != nil {
		return notFound(err, "配送区域")
	}
	if err := s.repo.DeleteZone(ctx, id); err != nil {
		return err
	}
	s.invalidateZones(ctx)
	return nil
}

// afterZoneWrite 默认区域唯一，并清缓存
func (s *ShippingService) afterZoneWrite(ctx context.Context, zone *model.ShippingZone) error {
	if zone.IsDefault {
		if err := s.repo.ClearDefaultZone(ctx, zone.ID); err != nil {
			return err
		}
	}
	s.invalidateZones(ctx)
	return nil
}

func applyZoneRequest(zone *model.ShippingZone, req *dto.ShippingZoneRequest) {
	seen := make(map[string]struct{}, len(req.Cities))
	cities := make([]string, 0, len(req.Cities))
	for _, c := range req.Cities {
		c = strings.TrimSpace(c)
		key := normalizeCity(c)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cities = append(cities, c)
	}

	zone.Name = strings.TrimSpace(req.Name)
	zone.Cities = cities
	zone.IsDefault = req.IsDefault
	if req.IsActive != nil {
		zone.IsActive = *req.IsActive
	}
}

// ==================== 配送方式 ====================

// ListMethods 配送方式
func (s *ShippingService) ListMethods(ctx context.Context, activeOnly bool) ([]model.ShippingMethod, error) {
	return s.repo.ListMethods(ctx, activeOnly)
}

// CreateMethod 创建配送方式
func (s *ShippingService) CreateMethod(ctx context.Context, req *dto.ShippingMethodRequest) (*model.ShippingMethod, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	exists, err := s.repo.MethodCodeExists(ctx, code, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("配送方式编码已存在: %s", code)
	}

	m := &model.ShippingMethod{
		Name:             req.Name,
		Code:             code,
		EstimatedDaysMin: req.EstimatedDaysMin,
		EstimatedDaysMax: req.EstimatedDaysMax,
		IsActive:         true,
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if err := s.repo.CreateMethod(ctx, m); err != nil {
		return nil, translateErr(err)
	}
	return m, nil
}

// UpdateMethod 更新配送方式
func (s *ShippingService) UpdateMethod(ctx context.Context, id int64, req *dto.ShippingMethodRequest) (*model.ShippingMethod, error) {
	m, err := s.repo.GetMethod(ctx, id)
	if err != nil {
		return nil, notFound(err, "配送方式")
	}
	code := strings.ToLower(strings.TrimSpace(req.Code))
	exists, err := s.repo.MethodCodeExists(ctx, code, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("配送方式编码已存在: %s", code)
	}

	m.Name, m.Code = req.Name, code
	m.EstimatedDaysMin, m.EstimatedDaysMax = req.EstimatedDaysMin, req.EstimatedDaysMax
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateMethod(ctx, m); err != nil {
		return nil, translateErr(err)
	}
	return m, nil
}

// DeleteMethod 删除配送方式
func (s *ShippingService) DeleteMethod(ctx context.Context, id int64) error {
	if _, err := s.repo.GetMethod(ctx, id); err != nil {
		return notFound(err, "配送方式")
	}
	return s.repo.DeleteMethod(ctx, id)
}

// ==================== 运费 ====================

// ListRates 区域下的运费
func (s *ShippingService) ListRates(ctx context.Context, zoneID int64) ([]model.ShippingRate, error) {
	if _, err := s.repo.GetZone(ctx, zoneID); err != nil {
		return nil, notFound(err, "配送区域")
	}
	return s.repo.ListRatesByZone(ctx, zoneID)
}

// UpsertRate 设置区域 × 配送方式的运费
func (s *ShippingService) UpsertRate(ctx context.Context, req *dto.ShippingRateRequest) (*model.ShippingRate, error) {
	if _, err := s.repo.GetZone(ctx, req.ZoneID); err != nil {
		return nil, notFound(err, "配送区域")
	}
	if _, err := s.repo.GetMethod(ctx, req.MethodID); err != nil {
		return nil, notFound(err, "配送方式")
	}
	if req.Amount.IsNegative() || req.PerKgAmount.IsNegative() || req.BaseWeight.IsNegative() {
		return nil, invalidf("运费与重量不能为负")
	}
	if req.FreeAbove != nil && req.FreeAbove.IsNegative() {
		return nil, invalidf("包邮金额不能为负")
	}

	rate := &model.ShippingRate{
		ZoneID:      req.ZoneID,
		MethodID:    req.MethodID,
		RateType:    req.RateType,
		Amount:      req.Amount,
		PerKgAmount: req.PerKgAmount,
		BaseWeight:  req.BaseWeight,
	}
	if req.FreeAbove != nil {
		rate.FreeAbove = decimal.NewNullDecimal(*req.FreeAbove)
	}
	if err := s.repo.UpsertRate(ctx, rate); err != nil {
		return nil, translateErr(err)
	}
	return rate, nil
}

// DeleteRate 删除运费
func (s *ShippingService) DeleteRate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetRate(ctx, id); err != nil {
		return notFound(err, "运费")
	}
	return s.repo.DeleteRate(ctx, id)
}
