package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/middleware"
	"phonebay/internal/model"
	"phonebay/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T, e *testEnv) *AuthService {
	t.Helper()
	return NewAuthService(e.uow.Users, e.cache, e.sms)
}

// resetOTPCooldown 冷却是进程级的，测试间需要清理
func resetOTPCooldown(t *testing.T, phone string) {
	t.Helper()
	middleware.GetCooldown().Reset("otp:" + phone)
	t.Cleanup(func() { middleware.GetCooldown().Reset("otp:" + phone) })
}

func TestAuthService_RegisterLogin(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	ctx := context.Background()

	tok, err := svc.Register(ctx, &dto.RegisterRequest{Name: " Karim ", Phone: "01711-000111", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.Equal(t, "8801711000111", tok.User.Phone)
	assert.Equal(t, "Karim", tok.User.Name)
	assert.Equal(t, model.RoleCustomer, tok.User.Role)

	_, err = svc.Register(ctx, &dto.RegisterRequest{Name: "dup", Phone: "+8801711000111", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrConflict), "不同写法的同一号码")

	_, err = svc.Register(ctx, &dto.RegisterRequest{Name: "bad", Phone: "0123", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	got, err := svc.Login(ctx, &dto.LoginRequest{Phone: "8801711000111", Password: "secret123"})
	require.NoError(t, err)
	require.NotNil(t, got.User.LastLoginAt)

	_, err = svc.Login(ctx, &dto.LoginRequest{Phone: "01711000111", Password: "wrong"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = svc.Login(ctx, &dto.LoginRequest{Phone: "01799999999", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials), "不暴露号码是否存在")

	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", got.User.ID).Update("is_active", false).Error)
	_, err = svc.Login(ctx, &dto.LoginRequest{Phone: "01711000111", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrUserDisabled))
}

func TestAuthService_Refresh(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	ctx := context.Background()

	tok, err := svc.Register(ctx, &dto.RegisterRequest{Name: "R", Phone: "01811000222", Password: "secret123"})
	require.NoError(t, err)

	again, err := svc.Refresh(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tok.User.ID, again.User.ID)

	_, err = svc.Refresh(ctx, tok.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken), "access token 不能用于刷新")

	_, err = svc.Refresh(ctx, "garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	me, err := svc.Me(ctx, tok.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "8801811000222", me.Phone)
}

func TestAuthService_OTPFlow(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	ctx := context.Background()
	user := e.seedUser(t, "8801911000333", model.RoleCustomer)
	resetOTPCooldown(t, user.Phone)

	_, err := svc.RequestOTP(ctx, "01611000999")
	assert.True(t, errors.Is(err, ErrNotFound), "未注册号码")

	resp, err := svc.RequestOTP(ctx, "01911000333")
	require.NoError(t, err)
	assert.Equal(t, 300, resp.ExpiresIn)

	msgs := e.sms.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, user.Phone, msgs[0].Phone)
	assert.Equal(t, model.TemplateOTP, msgs[0].Template)
	code := e.sms.lastCode(t)

	// 冷却期内再次请求
	_, err = svc.RequestOTP(ctx, "01911000333")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Positive(t, rl.RetryAfter)

	// 错误验证码
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: "01911000333", Code: wrong})
	assert.True(t, errors.Is(err, ErrInvalidOTP))

	tok, err := svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: "01911000333", Code: code})
	require.NoError(t, err)
	assert.True(t, tok.User.PhoneVerified)

	// 一次性
	_, err = svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: "01911000333", Code: code})
	assert.True(t, errors.Is(err, ErrInvalidOTP))
}

func TestAuthService_OTPTemplate(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	e.sms.templates[model.TemplateOTP] = "PhoneBay code {code}, valid {minutes} min"
	user := e.seedUser(t, "8801511000444", model.RoleCustomer)
	resetOTPCooldown(t, user.Phone)

	_, err := svc.RequestOTP(context.Background(), user.Phone)
	require.NoError(t, err)
	msgs := e.sms.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "valid 5 min")
}

func TestAuthService_OTPAttemptsExhausted(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	ctx := context.Background()
	user := e.seedUser(t, "8801311000555", model.RoleCustomer)
	resetOTPCooldown(t, user.Phone)

	_, err := svc.RequestOTP(ctx, user.Phone)
	require.NoError(t, err)
	code := e.sms.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < otpMaxAttempts; i++ {
		_, err := svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: user.Phone, Code: wrong})
		require.True(t, errors.Is(err, ErrInvalidOTP))
	}
	_, err = svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: user.Phone, Code: code})
	assert.True(t, errors.Is(err, ErrInvalidOTP), "超过尝试次数后验证码作废")
}

func TestAuthService_OTPSendFailureReleasesCooldown(t *testing.T) {
	e := newTestEnv(t)
	svc := newAuthService(t, e)
	ctx := context.Background()
	user := e.seedUser(t, "8801411000666", model.RoleCustomer)
	resetOTPCooldown(t, user.Phone)

	e.sms.err = ErrUnavailable
	_, err := svc.RequestOTP(ctx, user.Phone)
	assert.True(t, errors.Is(err, ErrUnavailable))

	e.sms.err = nil
	_, err = svc.RequestOTP(ctx, user.Phone)
	assert.NoError(t, err, "发送失败不占用冷却")
}

// ttlRecorder 记录验证码写入缓存时使用的 TTL
type ttlRecorder struct {
	*cache.Memory
	mu   sync.Mutex
	ttls []time.Duration
}

func (r *ttlRecorder) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if strings.HasPrefix(key, otpKeyPrefix) {
		r.mu.Lock()
		r.ttls = append(r.ttls, ttl)
		r.mu.Unlock()
	}
	return r.Memory.Set(ctx, key, value, ttl)
}

func TestAuthService_OTPWrongGuessKeepsExpiry(t *testing.T) {
	e := newTestEnv(t)
	rec := &ttlRecorder{Memory: cache.NewMemory(time.Minute)}
	svc := NewAuthService(e.uow.Users, rec, e.sms)
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()
	user := e.seedUser(t, "8801311000777", model.RoleCustomer)
	resetOTPCooldown(t, user.Phone)

	_, err := svc.RequestOTP(ctx, user.Phone)
	require.NoError(t, err)
	code := e.sms.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	// 每分钟猜错一次
	for i := 0; i < otpMaxAttempts-1; i++ {
		clock = clock.Add(time.Minute)
		_, err := svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: user.Phone, Code: wrong})
		require.True(t, errors.Is(err, ErrInvalidOTP))
	}

	require.Len(t, rec.ttls, otpMaxAttempts)
	assert.Equal(t, OTPTTL, rec.ttls[0])
	for i := 1; i < len(rec.ttls); i++ {
		assert.Less(t, rec.ttls[i], rec.ttls[i-1], "猜错不能延长有效期")
	}
	assert.Equal(t, time.Minute, rec.ttls[len(rec.ttls)-1])

	// 超过首次签发的有效期后，正确验证码也失效
	clock = clock.Add(time.Minute)
	_, err = svc.VerifyOTP(ctx, &dto.VerifyOTPRequest{Phone: user.Phone, Code: code})
	assert.True(t, errors.Is(err, ErrInvalidOTP))
}
