package service

import (
	"context"
	"errors"
	"testing"

	"phonebay/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMatchZone(t *testing.T) {
	zones := []model.ShippingZone{
		{BaseModel: model.BaseModel{ID: 1}, Name: "Dhaka", Cities: datatypes.JSONSlice[string]{"Dhaka", "Savar"}},
		{BaseModel: model.BaseModel{ID: 2}, Name: "Chattogram", Cities: datatypes.JSONSlice[string]{"Chattogram", "Chittagong"}},
		{BaseModel: model.BaseModel{ID: 3}, Name: "Rest", IsDefault: true},
	}

	tests := []struct {
		name   string
		city   string
		wantID int64
	}{
		{"精确匹配", "Savar", 1},
		{"首尾空格", "  Chittagong ", 2},
		{"忽略大小写", "DHAKA", 1},
		{"合并空白", "dhaka   CITY", 1},
		{"无法匹配", "chitta gong", 3},
		{"子串匹配", "Dhaka North", 1},
		{"默认区域", "Sylhet", 3},
		{"空城市走默认", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := MatchZone(zones, tt.city)
			require.NotNil(t, z)
			assert.Equal(t, tt.wantID, z.ID)
		})
	}

	assert.Nil(t, MatchZone(zones[:2], "Sylhet"), "没有默认区域时返回 nil")
}

func TestComputeShippingCost(t *testing.T) {
	flat := &model.ShippingRate{RateType: model.RateTypeFlat, Amount: dec("60")}
	perKg := &model.ShippingRate{
		RateType:    model.RateTypePerKg,
		Amount:      dec("100"),
		PerKgAmount: dec("20"),
		BaseWeight:  dec("1"),
		FreeAbove:   decimal.NewNullDecimal(dec("50000")),
	}
	noThreshold := decimal.NullDecimal{}

	tests := []struct {
		name      string
		rate      *model.ShippingRate
		weight    string
		subtotal  string
		threshold decimal.NullDecimal
		want      string
		free      bool
	}{
		{"固定运费", flat, "3", "1000", noThreshold, "60.00", false},
		{"首重以内", perKg, "0.8", "1000", noThreshold, "100.00", false},
		{"续重向上取整", perKg, "2.1", "1000", noThreshold, "140.00", false},
		{"方式包邮", perKg, "5", "50000", noThreshold, "0.00", true},
		{"全站包邮门槛", flat, "1", "3000", decimal.NewNullDecimal(dec("3000")), "0.00", true},
		{"未达到门槛", flat, "1", "2999.99", decimal.NewNullDecimal(dec("3000")), "60.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, free := ComputeShippingCost(tt.rate, dec(tt.weight), dec(tt.subtotal), tt.threshold)
			assert.Equal(t, tt.want, cost.StringFixed(2))
			assert.Equal(t, tt.free, free)
		})
	}
}

func TestShippingService_Quote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dhaka, outside, method := env.seedShipping(t)

	express := &model.ShippingMethod{Name: "Express", Code: "express", IsActive: true}
	require.NoError(t, env.db.Create(express).Error)
	require.NoError(t, env.db.Create(&model.ShippingRate{ZoneID: dhaka.ID, MethodID: express.ID, RateType: model.RateTypeFlat, Amount: dec("150")}).Error)

	t.Run("按费用排序", func(t *testing.T) {
		quotes, err := env.shipping.Quote(ctx, QuoteParams{City: "dhaka", Weight: dec("1"), Subtotal: dec("1000")})
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		assert.Equal(t, method.ID, quotes[0].MethodID)
		assert.Equal(t, "60.00", quotes[0].Cost.StringFixed(2))
		assert.Equal(t, "express", quotes[1].MethodCode)
	})

	t.Run("默认区域", func(t *testing.T) {
		q, err := env.shipping.QuoteCheapest(ctx, QuoteParams{City: "Rajshahi", Weight: dec("1"), Subtotal: dec("1000")})
		require.NoError(t, err)
		assert.Equal(t, outside.ID, q.ZoneID)
		assert.Equal(t, "120.00", q.Cost.StringFixed(2))
	})

	t.Run("区域不支持的配送方式", func(t *testing.T) {
		_, err := env.shipping.Quote(ctx, QuoteParams{City: "Rajshahi", MethodID: express.ID})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("重量为负", func(t *testing.T) {
		_, err := env.shipping.Quote(ctx, QuoteParams{City: "Dhaka", Weight: dec("-1")})
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}
