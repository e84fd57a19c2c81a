package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phonebay/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==================== JWT ====================

func TestGenerateAndParseToken(t *testing.T) {
	access, refresh, err := GenerateTokenPair(42, "8801712345678", model.RoleVendor)
	require.NoError(t, err)

	claims, err := ParseToken(access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, model.RoleVendor, claims.Role)
	assert.Equal(t, SubjectAccess, claims.Subject)

	claims, err = ParseToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, SubjectRefresh, claims.Subject)

	_, err = ParseToken(access + "x")
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	old := GetJWTConfig()
	defer SetJWTConfig(old)

	cfg := *old
	cfg.AccessTokenTTL = -time.Minute
	SetJWTConfig(&cfg)

	access, _, err := GenerateTokenPair(1, "8801712345678", model.RoleCustomer)
	require.NoError(t, err)
	_, err = ParseToken(access)
	assert.Error(t, err)
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	r.GET("/admin", JWTAuth(), RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/optional", OptionalAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})

	customerAccess, customerRefresh, _ := GenerateTokenPair(7, "8801712345678", model.RoleCustomer)
	adminAccess, _, _ := GenerateTokenPair(1, "8801812345678", model.RoleAdmin)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"未登录", "/me", "", http.StatusUnauthorized},
		{"Refresh Token 不能访问", "/me", customerRefresh, http.StatusUnauthorized},
		{"正常访问", "/me", customerAccess, http.StatusOK},
		{"非管理员", "/admin", customerAccess, http.StatusForbidden},
		{"管理员", "/admin", adminAccess, http.StatusOK},
		{"可选认证-匿名", "/optional", "", http.StatusOK},
		{"可选认证-无效 Token 也放行", "/optional", "bad", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(r, http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := performRequest(r, http.MethodGet, "/optional", customerAccess)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}

// ==================== 限流 ====================

func TestCooldownLimiter(t *testing.T) {
	l := NewCooldownLimiter()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Check("otp:8801712345678", time.Minute).Allowed)

	now = now.Add(20 * time.Second)
	res := l.Check("otp:8801712345678", time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)
	assert.Equal(t, 40, RetryAfterSeconds(res.RetryAfter))

	// 其他 key 不受影响
	assert.True(t, l.Check("otp:8801812345678", time.Minute).Allowed)

	now = now.Add(41 * time.Second)
	assert.True(t, l.Check("otp:8801712345678", time.Minute).Allowed)
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "操作过于频繁，请 30 秒后重试", FormatRetryMessage(30*time.Second))
	assert.Equal(t, "操作过于频繁，请 2 分钟后重试", FormatRetryMessage(2*time.Minute))
	assert.Equal(t, "操作过于频繁，请 1 分 5 秒后重试", FormatRetryMessage(65*time.Second))
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewIPRateLimiter(1, 2)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, performRequest(r, http.MethodGet, "/ping", "").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	l := NewIPRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("1.2.3.4"))
	}
}

// ==================== 校验 ====================

func TestBDPhoneValidator(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type req struct {
		Phone string `binding:"required,bdphone"`
	}
	assert.NoError(t, binding.Validator.ValidateStruct(&req{Phone: "01712345678"}))
	assert.Error(t, binding.Validator.ValidateStruct(&req{Phone: "12345"}))
}

// ==================== 审计 ====================

func TestAuditCallbacks(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.EMIPlan{}))
	require.NoError(t, RegisterAuditCallbacks(db))

	ctx := WithAuditInfo(context.Background(), 99, model.RoleAdmin)
	plan := model.EMIPlan{Name: "City Bank 12m", BankName: "City Bank", Months: 12}
	require.NoError(t, db.WithContext(ctx).Create(&plan).Error)
	assert.Equal(t, int64(99), plan.CreatedBy)
	assert.Equal(t, int64(99), plan.UpdatedBy)

	ctx2 := WithAuditInfo(context.Background(), 100, model.RoleAdmin)
	require.NoError(t, db.WithContext(ctx2).Model(&model.EMIPlan{}).
		Where("id = ?", plan.ID).Updates(map[string]interface{}{"name": "City Bank 12 months"}).Error)

	var got model.EMIPlan
	require.NoError(t, db.First(&got, plan.ID).Error)
	assert.Equal(t, int64(99), got.CreatedBy)
	assert.Equal(t, int64(100), got.UpdatedBy)

	// 无审计信息时不覆盖
	require.NoError(t, db.Model(&model.EMIPlan{}).Where("id = ?", plan.ID).Update("months", 6).Error)
	require.NoError(t, db.First(&got, plan.ID).Error)
	assert.Equal(t, int64(100), got.UpdatedBy)
}
